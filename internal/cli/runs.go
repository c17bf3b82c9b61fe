package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/clive/experimenter/internal/runs"
)

func newRunsCmd(a *app) *cobra.Command {
	var (
		tab    string
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			if err := a.setup(false); err != nil {
				return err
			}
			defer a.close()

			_, store, err := a.openRuns(true)
			if err != nil {
				return err
			}

			var list []runs.Run
			if tab != "" {
				dir := ""
				if d := a.resolveDir(nil, ""); d != "" {
					if dir, err = filepath.Abs(d); err != nil {
						return err
					}
				}
				list, err = store.ListByTab(dir, tab, limit)
			} else {
				list, err = store.List(limit)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, list)
			}
			if len(list) == 0 {
				fmt.Fprintln(out, "no runs recorded")
				return nil
			}
			for i := range list {
				r := &list[i]
				started := time.UnixMilli(r.StartedAt).Format("2006-01-02 15:04:05")
				fmt.Fprintf(out, "%s  %s  ", started, filepath.Base(r.Dir))
				printRun(out, r, false)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tab, "tab", "", "only runs of this tab (in --dir when given)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print one run with its params and output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(false); err != nil {
				return err
			}
			defer a.close()

			_, store, err := a.openRuns(true)
			if err != nil {
				return err
			}
			r, err := store.Get(args[0])
			if err != nil {
				return err
			}
			if r == nil {
				return fmt.Errorf("no run %q", args[0])
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "dir: %s\n", r.Dir)
			for _, p := range r.Params {
				fmt.Fprintf(out, "param: %s=%s\n", p.Param, p.Value)
			}
			printRun(out, r, true)
			return nil
		},
	})
	return cmd
}
