package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/clive/experimenter/internal/runner"
	"github.com/clive/experimenter/internal/runs"
	"github.com/clive/experimenter/internal/workspace"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		all        bool
		showOutput bool
		command    string
		paramFlag  string
	)

	cmd := &cobra.Command{
		Use:   "run [tab...]",
		Short: "Run tabs with the configured command and record the runs",
		Long: `Run each named tab, or every tab with --all, one after the other. ` +
			`The command gets "<param_flag> <param> <value>" for every resolved pair, ` +
			`and EXPERIMENTER_TAB and EXPERIMENTER_PARAMS in its environment.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("name at least one tab or pass --all")
			}
			if err := a.setup(false); err != nil {
				return err
			}
			defer a.close()

			if command != "" {
				a.cfg.Run.Command = strings.Fields(command)
			}
			if cmd.Flags().Changed("param-flag") {
				a.cfg.Run.ParamFlag = paramFlag
			}

			_, store, _ := a.openRuns(false)
			ws, err := a.openWorkspace(cmd, a.resolveDir(nil, "."), store)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var done []*runs.Run
			var runErr error
			if all {
				if _, err := ws.OpenNames(ws.Available()); err != nil {
					return err
				}
				done, runErr = ws.RunAll(ctx)
			} else {
				done, runErr = runNamed(ctx, ws, args)
			}

			out := cmd.OutOrStdout()
			for _, r := range done {
				printRun(out, r, showOutput)
			}
			if runErr != nil {
				return runErr
			}
			if failed := countFailed(done); failed > 0 {
				return fmt.Errorf("%d of %d run(s) failed", failed, len(done))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "run every tab in the directory")
	cmd.Flags().BoolVarP(&showOutput, "output", "o", false, "print the output of each run")
	cmd.Flags().StringVar(&command, "command", "", "command to run instead of run.command")
	cmd.Flags().StringVar(&paramFlag, "param-flag", "", "flag put before each param, instead of run.param_flag")
	return cmd
}

// runNamed opens exactly names and runs them in the given order.
func runNamed(ctx context.Context, ws *workspace.Workspace, names []string) ([]*runs.Run, error) {
	for _, name := range names {
		if !slices.Contains(ws.Available(), name) {
			return nil, fmt.Errorf("no tab %q in %s", name, ws.Dir())
		}
	}
	if _, err := ws.OpenNames(names); err != nil {
		return nil, err
	}

	reqs := make([]runner.Request, 0, len(names))
	for _, name := range names {
		req, err := ws.Prepare(ws.Set().IndexOf(name))
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return ws.ExecuteAll(ctx, reqs)
}

func printRun(w io.Writer, r *runs.Run, showOutput bool) {
	status := "ok"
	if r.ExitCode != 0 || r.Error != "" {
		status = "FAILED"
	}
	fmt.Fprintf(w, "%-12s exit %-3d %-8s %s  %s\n", r.Tab, r.ExitCode, r.Duration().Round(time.Millisecond), status, r.ID)
	if r.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", r.Error)
	}
	if showOutput {
		for _, line := range r.Output {
			fmt.Fprintf(w, "  | %s\n", line)
		}
	}
}

func countFailed(done []*runs.Run) int {
	n := 0
	for _, r := range done {
		if r.ExitCode != 0 || r.Error != "" {
			n++
		}
	}
	return n
}
