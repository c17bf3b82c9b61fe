// Package cli implements the experimenter command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/clive/experimenter/internal/config"
	"github.com/clive/experimenter/internal/csvstore"
	"github.com/clive/experimenter/internal/logs"
	"github.com/clive/experimenter/internal/runner"
	"github.com/clive/experimenter/internal/runs"
	"github.com/clive/experimenter/internal/workspace"
)

const debugLineBuffer = 256

// app holds what every command shares: flags, config and the logger.
type app struct {
	debug bool
	dir   string

	cfg     *config.Config
	level   *slog.LevelVar
	log     *slog.Logger
	lines   chan string
	closers []io.Closer
}

// setup loads the config and builds the logger. For the TUI, stderr is
// never a sink and --debug adds the sink feeding the debug panel.
func (a *app) setup(tui bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, err := logs.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	a.level = new(slog.LevelVar)
	a.level.Set(level)
	if a.debug {
		a.level.Set(slog.LevelDebug)
	}

	opts := logs.Options{
		Level:   a.level,
		Format:  cfg.Log.Format,
		Journal: logs.UnderSystemd(),
	}
	if !tui || (cfg.Log.File != "" && cfg.Log.File != "-") {
		w, err := logs.OpenFile(cfg.Log.File)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, w)
		opts.Writer = w
	}
	if tui && a.debug {
		a.lines = make(chan string, debugLineBuffer)
		opts.Lines = a.lines
	}
	a.log = logs.New(opts)
	slog.SetDefault(a.log)
	return nil
}

// close releases what setup and openRuns opened.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
	a.closers = nil
}

// openRuns opens the run history. required=false logs a failure and carries
// on without history.
func (a *app) openRuns(required bool) (*runs.DB, *runs.RunStore, error) {
	db, err := runs.Open(a.cfg.RunsDBPath)
	if err != nil {
		if required {
			return nil, nil, err
		}
		a.log.Warn("run history disabled", "path", a.cfg.RunsDBPath, "error", err)
		return nil, nil, nil
	}
	a.closers = append(a.closers, db)
	return db, runs.NewRunStore(db), nil
}

func (a *app) executor() *runner.CommandExecutor {
	return &runner.CommandExecutor{
		Command:   a.cfg.Run.Command,
		ParamFlag: a.cfg.Run.ParamFlag,
		WorkDir:   a.cfg.Run.WorkDir,
		Timeout:   a.cfg.Run.Timeout,
		Logger:    a.log,
	}
}

func (a *app) workspaceOptions(store *runs.RunStore) workspace.Options {
	return workspace.Options{
		Store: csvstore.Options{
			MaxVisibleTabs: a.cfg.MaxVisibleTabs,
			PruneOnSaveAll: a.cfg.PruneOnSaveAll,
			Logger:         a.log,
		},
		Executor: a.executor(),
		Runs:     store,
		Logger:   a.log,
	}
}

// resolveDir picks the directory from args, then --dir, then the config.
// fallback is used when none is set.
func (a *app) resolveDir(args []string, fallback string) string {
	switch {
	case len(args) > 0:
		return args[0]
	case a.dir != "":
		return a.dir
	case a.cfg.ExperimentsDir != "":
		return a.cfg.ExperimentsDir
	}
	return fallback
}

// openWorkspace opens dir and reports skipped files on stderr.
func (a *app) openWorkspace(cmd *cobra.Command, dir string, store *runs.RunStore) (*workspace.Workspace, error) {
	ws := workspace.New(a.workspaceOptions(store))
	res, err := ws.Open(dir)
	if err != nil {
		return nil, err
	}
	for _, s := range res.Skipped {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: skipped %s: %v\n", s.Name, s.Err)
	}
	return ws, nil
}
