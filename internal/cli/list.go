package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/clive/experimenter/internal/experiment"
)

func newListCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list [dir]",
		Short: "Print the tabs of a directory and their rows",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(false); err != nil {
				return err
			}
			defer a.close()

			ws, err := a.openWorkspace(cmd, a.resolveDir(args, "."), nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tabs := ws.Set().Tabs()
			if asJSON {
				return writeJSON(out, tabs)
			}

			for _, t := range tabs {
				printTab(out, t)
			}
			if hidden := len(ws.Available()) - len(tabs); hidden > 0 {
				fmt.Fprintf(out, "%d more tab file(s) not opened (max_visible_tabs=%d)\n", hidden, a.cfg.MaxVisibleTabs)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printTab(w io.Writer, t experiment.Tab) {
	rows := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = r.Fields()
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(experiment.Header...).
		Rows(rows...)

	fmt.Fprintf(w, "%s (%s)\n%s\n", t.Name, t.Kind, tbl.Render())
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
