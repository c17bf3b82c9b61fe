// Package workspace ties an experiments directory to the tab set loaded from
// it, and to the executor and run history used to run its tabs.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/clive/experimenter/internal/csvstore"
	"github.com/clive/experimenter/internal/experiment"
	"github.com/clive/experimenter/internal/runner"
	"github.com/clive/experimenter/internal/runs"
)

// Options wires a Workspace to its collaborators. Executor and Runs may be
// nil: running then fails with runner.ErrNotConfigured, and runs are not
// recorded.
type Options struct {
	Store    csvstore.Options
	Executor runner.Executor
	Runs     *runs.RunStore
	Logger   *slog.Logger
}

// Workspace is the editing session over one directory. It is not safe for
// concurrent use, except for Execute.
type Workspace struct {
	dir       string
	set       *experiment.Set
	available []string

	store    csvstore.Options
	executor runner.Executor
	runs     *runs.RunStore
	log      *slog.Logger
}

func New(opts Options) *Workspace {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if opts.Store.Logger == nil {
		opts.Store.Logger = log
	}
	return &Workspace{
		store:    opts.Store,
		executor: opts.Executor,
		runs:     opts.Runs,
		log:      log,
	}
}

// Dir returns the chosen directory, or "" before Open.
func (w *Workspace) Dir() string { return w.dir }

// Set returns the open tabs, or nil before Open.
func (w *Workspace) Set() *experiment.Set { return w.set }

// Available lists every tab file in the directory as of the last load.
func (w *Workspace) Available() []string {
	return append([]string(nil), w.available...)
}

// Open chooses dir and loads its tabs, replacing any open set.
func (w *Workspace) Open(dir string) (*csvstore.LoadResult, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	res, err := csvstore.Load(abs, w.store)
	if err != nil {
		return nil, err
	}
	w.adopt(abs, res)
	w.log.Info("opened experiments dir", "dir", abs, "tabs", res.Set.Len(), "available", len(res.Available))
	return res, nil
}

// Reload reads the directory again, dropping unsaved edits.
func (w *Workspace) Reload() (*csvstore.LoadResult, error) {
	if err := w.requireDir("reload"); err != nil {
		return nil, err
	}
	return w.Open(w.dir)
}

// OpenNames replaces the open tabs with exactly names, defaults first.
func (w *Workspace) OpenNames(names []string) (*csvstore.LoadResult, error) {
	if err := w.requireDir("open tabs"); err != nil {
		return nil, err
	}
	res, err := csvstore.LoadNames(w.dir, names, w.store)
	if err != nil {
		return nil, err
	}
	w.adopt(w.dir, res)
	return res, nil
}

func (w *Workspace) adopt(dir string, res *csvstore.LoadResult) {
	w.dir = dir
	w.set = res.Set
	w.available = res.Available
}

// SaveTab writes the tab at index to the directory.
func (w *Workspace) SaveTab(index int) error {
	if err := w.requireDir("save tab"); err != nil {
		return err
	}
	if err := csvstore.SaveTab(w.set, index, w.dir); err != nil {
		return err
	}
	w.log.Info("saved tab", "tab", w.tabName(index))
	return nil
}

// SaveAll writes every open tab. See csvstore.SaveAll.
func (w *Workspace) SaveAll() error {
	if err := w.requireDir("save all"); err != nil {
		return err
	}
	if err := csvstore.SaveAll(w.set, w.dir, w.store); err != nil {
		return err
	}
	w.log.Info("saved all tabs", "tabs", w.set.Len())
	names, err := csvstore.ScanDir(w.dir, w.store)
	if err == nil {
		w.available = names
		w.set.Reserve(names)
	}
	return nil
}

// Prepare resolves the request for the tab at index. The request is a
// snapshot and can be handed to Execute off the editing goroutine.
func (w *Workspace) Prepare(index int) (runner.Request, error) {
	if err := w.requireDir("run tab"); err != nil {
		return runner.Request{}, err
	}
	pairs, err := w.set.ParamValuePairs(index)
	if err != nil {
		return runner.Request{}, err
	}
	return runner.Request{Tab: w.tabName(index), Pairs: pairs}, nil
}

// PrepareAll resolves a request for every open tab in order.
func (w *Workspace) PrepareAll() ([]runner.Request, error) {
	if err := w.requireDir("run all"); err != nil {
		return nil, err
	}
	reqs := make([]runner.Request, 0, w.set.Len())
	for i := 0; i < w.set.Len(); i++ {
		req, err := w.Prepare(i)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// Execute runs req and records it in the run history. A run that could not
// start at all is not recorded.
func (w *Workspace) Execute(ctx context.Context, req runner.Request) (*runs.Run, error) {
	if w.executor == nil {
		return nil, runner.ErrNotConfigured
	}
	res, runErr := w.executor.Execute(ctx, req)
	if errors.Is(runErr, runner.ErrNotConfigured) {
		return nil, runErr
	}

	run := runs.NewRun(w.dir, req, res, runErr)
	if w.runs != nil {
		if err := w.runs.Insert(run); err != nil {
			w.log.Error("failed to record run", "tab", req.Tab, "error", err)
		}
	}
	if runErr != nil {
		return run, fmt.Errorf("run %s: %w", req.Tab, runErr)
	}
	return run, nil
}

// ExecuteAll runs reqs one after the other. It stops early when ctx is done
// and returns the runs made so far with every failure joined.
func (w *Workspace) ExecuteAll(ctx context.Context, reqs []runner.Request) ([]*runs.Run, error) {
	var done []*runs.Run
	var errs []error
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		run, err := w.Execute(ctx, req)
		if run != nil {
			done = append(done, run)
		}
		if err != nil {
			if errors.Is(err, runner.ErrNotConfigured) {
				return done, err
			}
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
		}
	}
	return done, errors.Join(errs...)
}

// RunTab resolves and runs the tab at index.
func (w *Workspace) RunTab(ctx context.Context, index int) (*runs.Run, error) {
	req, err := w.Prepare(index)
	if err != nil {
		return nil, err
	}
	return w.Execute(ctx, req)
}

// RunAll runs every open tab in order.
func (w *Workspace) RunAll(ctx context.Context) ([]*runs.Run, error) {
	reqs, err := w.PrepareAll()
	if err != nil {
		return nil, err
	}
	return w.ExecuteAll(ctx, reqs)
}

func (w *Workspace) requireDir(op string) error {
	if w.set == nil {
		return &experiment.PreconditionError{Op: op, Reason: "no experiments directory chosen"}
	}
	return nil
}

func (w *Workspace) tabName(index int) string {
	tab, _ := w.set.Tab(index)
	return tab.Name
}
