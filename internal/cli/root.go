// Package cli wires the framevault commands: configuration, logging, the
// session store and the external tools are built here and handed to the
// pipeline, batch and rnd packages.
package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/backmassage/framevault/internal/config"
	"github.com/backmassage/framevault/internal/errors"
	"github.com/backmassage/framevault/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g.
// FRAMEVAULT_STORE_DSN for store.dsn.
const EnvPrefix = "FRAMEVAULT"

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	a := &app{version: version}

	root := &cobra.Command{
		Use:   "framevault",
		Short: "Archive artwork masters into clips, stills and social assets",
		Long: `framevault turns a ProRes artwork master into an archive project:
an optimized proxy, scene clips and grouped clips, full-resolution and
compressed stills. Sessions are persisted so an interrupted run resumes
at the stage where it stopped.

It also prepares social media composites from a folder of images and
videos, and converts a project's R&D folder.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "config file (default ./framevault.yaml or $XDG_CONFIG_HOME/framevault/framevault.yaml)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newArchiveCmd(a),
		newResumeCmd(a),
		newSessionsCmd(a),
		newSocialCmd(a),
		newRndCmd(a),
		newCheckCmd(a),
		newSettingsCmd(a),
	)
	closeAfterRun(root, a)
	return root
}

// closeAfterRun releases the store, cache and log file after every
// command. PersistentPostRun is skipped when RunE fails, so each RunE is
// wrapped instead.
func closeAfterRun(cmd *cobra.Command, a *app) {
	if run := cmd.RunE; run != nil {
		cmd.RunE = func(c *cobra.Command, args []string) error {
			defer a.close()
			return run(c, args)
		}
	}
	for _, sub := range cmd.Commands() {
		closeAfterRun(sub, a)
	}
}

// load reads .env, the config file and the environment, then opens the
// logger. Flags override file and environment values.
func (a *app) load() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	config.SetDefaults(v)
	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
	} else {
		v.SetConfigName("framevault")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(configDir())
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	if a.verbose {
		v.Set("logging.level", string(config.LevelDebug))
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	log, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	a.v, a.cfg, a.log = v, cfg, log
	a.onClose(log.Close)
	if used := v.ConfigFileUsed(); used != "" {
		log.Debug("Config: %s", used)
	}
	return nil
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "framevault")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "framevault")
}
