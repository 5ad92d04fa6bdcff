package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/backmassage/framevault/internal/check"
	"github.com/backmassage/framevault/internal/config"
	"github.com/backmassage/framevault/internal/display"
	"github.com/backmassage/framevault/internal/logging"
	"github.com/backmassage/framevault/internal/planner"
	"github.com/backmassage/framevault/internal/probe"
	"github.com/backmassage/framevault/internal/probecache"
	"github.com/backmassage/framevault/internal/progress"
	"github.com/backmassage/framevault/internal/store"
	"github.com/backmassage/framevault/internal/term"
)

// app is the state shared by every command of one invocation.
type app struct {
	version string
	cfgFile string
	verbose bool

	v   *viper.Viper
	cfg *config.Config
	log *logging.Logger

	closers []func() error
}

// onClose registers fn to run after the command, in reverse order.
func (a *app) onClose(fn func() error) { a.closers = append(a.closers, fn) }

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.log != nil {
			a.log.Debug("close: %v", err)
		}
	}
	a.closers = nil
}

func (a *app) openStore() (*store.Store, error) {
	st, err := store.Open(a.cfg.Store)
	if err != nil {
		return nil, err
	}
	a.onClose(st.Close)
	a.log.Debug("Store: %s %s", a.cfg.Store.Driver, redactDSN(a.cfg.Store.DSN))
	return st, nil
}

// probeSource returns ffprobe, behind the badger cache when enabled. A
// cache that cannot be opened (another process holds it) is skipped.
func (a *app) probeSource() probe.Source {
	var src probe.Source = probe.New(a.cfg.Tools.FFprobe, a.cfg.Timeouts.Probe)
	if !a.cfg.Cache.Enabled {
		return src
	}
	c, err := probecache.Open(a.cfg.Cache.Dir, src, a.log)
	if err != nil {
		a.log.Warn("Probe cache unavailable, probing directly: %v", err)
		return src
	}
	a.onClose(c.Close)
	return c
}

// caps validates the toolchain for the configured hardware preference.
func (a *app) caps(ctx context.Context) (planner.Caps, error) {
	caps, err := check.Deps(ctx, a.cfg.Tools, check.System{})
	if err != nil {
		return caps, err
	}
	if caps.NVENC && a.cfg.Tools.Hardware != config.HardwareCPU {
		a.log.Info("Encoder: h264_nvenc")
	} else {
		a.log.Info("Encoder: libx264")
	}
	return caps, nil
}

func (a *app) presets() (*config.PresetSet, error) {
	return config.LoadPresets(a.cfg.Paths.PresetsFile)
}

func (a *app) banner(w io.Writer) {
	display.PrintBanner(w, a.version)
}

// redactDSN hides a postgres password in log output.
func redactDSN(dsn string) string {
	if i := strings.Index(dsn, "password="); i >= 0 {
		end := strings.IndexByte(dsn[i:], ' ')
		if end < 0 {
			return dsn[:i] + "password=***"
		}
		return dsn[:i] + "password=***" + dsn[i+end:]
	}
	return dsn
}

// absPath returns the absolute path with symlinks resolved, for comparing
// input against output hierarchy.
func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// resolveDirs checks that in exists, creates out, and refuses an output
// inside the input so recursive scans never see their own results.
func resolveDirs(in, out string) (string, string, error) {
	inAbs, err := absPath(config.NormalizeDirArg(in))
	if err != nil {
		return "", "", fmt.Errorf("input not found: %s", in)
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return "", "", fmt.Errorf("cannot create output directory %s: %w", out, err)
	}
	outAbs, err := absPath(config.NormalizeDirArg(out))
	if err != nil {
		return "", "", fmt.Errorf("cannot resolve output path %s: %w", out, err)
	}
	if err := config.ValidatePaths(inAbs, outAbs); err != nil {
		return "", "", fmt.Errorf("%w (choose an output path outside %s)", err, in)
	}
	return inAbs, outAbs, nil
}

// eventPrinter renders progress events: running updates redraw one line
// on a terminal, everything else goes to the debug log.
type eventPrinter struct {
	mu   sync.Mutex
	w    io.Writer
	tty  bool
	log  *logging.Logger
	open bool // A progress line is on screen.
}

func newEventPrinter(w io.Writer, log *logging.Logger) *eventPrinter {
	f, ok := w.(*os.File)
	return &eventPrinter{w: w, tty: ok && term.IsTerminal(f), log: log}
}

func (p *eventPrinter) Report(e progress.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tty && e.Status == progress.StatusRunning {
		fmt.Fprintf(p.w, "\r%s", formatEvent(e))
		p.open = true
		return
	}
	if p.open {
		fmt.Fprintln(p.w)
		p.open = false
	}
	p.log.Debug("%s", formatEvent(e))
}

// done ends a pending progress line.
func (p *eventPrinter) done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open {
		fmt.Fprintln(p.w)
		p.open = false
	}
}

// formatEvent is "<stage> [bar] cur/total item (detail)".
func formatEvent(e progress.Event) string {
	var b strings.Builder
	b.WriteString(e.Stage)
	if e.Total > 0 {
		fmt.Fprintf(&b, " %s %d/%d", display.Bar(e.Current, e.Total, 20), e.Current, e.Total)
	}
	if e.Item != "" {
		b.WriteString(" " + e.Item)
	}
	if e.Status != progress.StatusRunning && e.Status != "" {
		b.WriteString(" " + string(e.Status))
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, " (%s)", e.Detail)
	}
	return b.String()
}

// watch pumps events from ch into p. The returned stop closes ch and
// waits for the pump to drain.
func watch(ch *progress.Channel, p *eventPrinter) (stop func()) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for e := range ch.Events() {
			p.Report(e)
		}
	}()
	return func() {
		ch.Close()
		wg.Wait()
		p.done()
	}
}
