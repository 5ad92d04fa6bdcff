package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/backmassage/framevault/internal/errors"
	"github.com/backmassage/framevault/internal/store"
)

func newSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and write application settings kept in the session database",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List every setting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			all, err := st.Settings(cmd.Context())
			if err != nil {
				return err
			}
			if len(all) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No settings.")
				return nil
			}
			t := newTable("Category", "Key", "Value", "Type", "Description")
			for _, s := range all {
				t.Row(s.Category, s.Key, s.Value, s.ValueType, s.Description)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return nil
		},
	}

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value of a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			s, ok, err := st.Setting(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return errors.NewValidationError("key", "no such setting").WithValue(args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.Value)
			return nil
		},
	}

	var s store.AppSetting
	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Create or replace a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			s.Key, s.Value = args[0], args[1]
			if err := st.PutSetting(cmd.Context(), s); err != nil {
				return err
			}
			a.log.Success("%s = %s", s.Key, s.Value)
			return nil
		},
	}
	f := set.Flags()
	f.StringVar(&s.ValueType, "type", store.TypeString, "value type: string, int, bool or json")
	f.StringVar(&s.Category, "category", "general", "category")
	f.StringVar(&s.Description, "description", "", "description")

	cmd.AddCommand(list, get, set)
	return cmd
}
