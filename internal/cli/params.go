package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

func newParamsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "params <tab>",
		Short: "Print the resolved param=value pairs of a tab",
		Long: `Print the pairs a run of the tab receives: the defaults, overridden by the tab's own rows, ` +
			`followed by params the defaults do not define.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(false); err != nil {
				return err
			}
			defer a.close()

			name := args[0]
			ws, err := a.openWorkspace(cmd, a.resolveDir(nil, "."), nil)
			if err != nil {
				return err
			}
			if !slices.Contains(ws.Available(), name) {
				return fmt.Errorf("no tab %q in %s", name, ws.Dir())
			}
			if _, err := ws.OpenNames([]string{name}); err != nil {
				return err
			}

			pairs, err := ws.Set().ParamValuePairs(ws.Set().IndexOf(name))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if pairs == nil {
					return writeJSON(out, []any{})
				}
				return writeJSON(out, pairs)
			}
			for _, p := range pairs {
				fmt.Fprintf(out, "%s=%s\n", p.Param, p.Value)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
