package cli

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/clive/experimenter/internal/tui"
	"github.com/clive/experimenter/internal/workspace"
)

// NewRootCmd builds the experimenter command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "experimenter [dir]",
		Short: "Edit and run tabbed experiment parameter tables",
		Long: `experimenter edits a directory of ;-delimited parameter tables, one file per tab. ` +
			`The defaults tab defines the params every experiment tab chooses from. ` +
			`Without a subcommand it opens the editor.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE:         a.runEdit,
	}
	rootCmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "log at debug level and show the debug panel")
	rootCmd.PersistentFlags().StringVarP(&a.dir, "dir", "d", "", "experiments directory")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "edit [dir]",
			Short: "Open the editor on an experiments directory",
			Args:  cobra.MaximumNArgs(1),
			RunE:  a.runEdit,
		},
		newListCmd(a),
		newParamsCmd(a),
		newRunCmd(a),
		newRunsCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
	)
	return rootCmd
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func (a *app) runEdit(cmd *cobra.Command, args []string) error {
	if err := a.setup(true); err != nil {
		return err
	}
	defer a.close()

	_, store, _ := a.openRuns(false)
	ws := workspace.New(a.workspaceOptions(store))

	m := tui.NewRootModel(tui.Options{
		Workspace: ws,
		Dir:       a.resolveDir(args, ""),
		Debug:     a.debug,
		LogLines:  a.lines,
		Logger:    a.log,
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run editor: %w", err)
	}
	return nil
}
