package csvstore

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/clive/experimenter/internal/experiment"
)

// Options tune loading and saving.
type Options struct {
	MaxVisibleTabs int  // tabs opened by Load; <1 means experiment.DefaultMaxVisibleTabs
	PruneOnSaveAll bool // SaveAll deletes files of tabs deleted or renamed this session
	Logger         *slog.Logger
}

func (o Options) maxVisible() int {
	if o.MaxVisibleTabs < 1 {
		return experiment.DefaultMaxVisibleTabs
	}
	return o.MaxVisibleTabs
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// SkippedFile is a tab file that failed to load and was left out of the set.
type SkippedFile struct {
	Name string
	Err  error
}

// LoadResult is what Load hands back besides errors.
type LoadResult struct {
	Set       *experiment.Set
	Available []string // every tab name found in the directory, in load order
	Skipped   []SkippedFile
}

// TabPath returns the file path of the tab called name.
func TabPath(dir, name string) string {
	return filepath.Join(dir, name+Ext)
}

// ScanDir lists the tab names in dir: defaults first, the rest sorted
// lexicographically by file name. Files whose name cannot be a tab name,
// such as a bare ".csv", are skipped with a warning.
func ScanDir(dir string, opts Options) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &experiment.StorageError{Op: "read dir", Path: dir, Err: err}
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Ext) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), Ext)
		if name != experiment.DefaultsTabName {
			if err := experiment.ValidateTabName(name); err != nil {
				opts.logger().Warn("ignoring tab file", "dir", dir, "file", entry.Name(), "error", err)
				continue
			}
		}
		files = append(files, entry.Name())
	}

	defaults := experiment.DefaultsTabName + Ext
	sort.Slice(files, func(i, j int) bool {
		if files[i] == defaults || files[j] == defaults {
			return files[i] == defaults && files[j] != defaults
		}
		return files[i] < files[j]
	})

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = strings.TrimSuffix(f, Ext)
	}
	return names, nil
}

// Load opens up to MaxVisibleTabs tabs from dir. A directory without tab
// files yields a single blank defaults tab.
//
// The first file plays the defaults role: if it cannot be loaded the whole
// load fails, since every other tab derives from it. Any other file that
// fails is skipped and reported in LoadResult.Skipped.
func Load(dir string, opts Options) (*LoadResult, error) {
	names, err := ScanDir(dir, opts)
	if err != nil {
		return nil, err
	}

	selected := names
	if len(selected) > opts.maxVisible() {
		selected = selected[:opts.maxVisible()]
	}

	return loadTabs(dir, selected, names, opts)
}

// LoadNames opens exactly the named tabs. The defaults tab is always opened
// first when the directory has one, whether or not it was asked for.
func LoadNames(dir string, names []string, opts Options) (*LoadResult, error) {
	available, err := ScanDir(dir, opts)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(available))
	for _, n := range available {
		known[n] = true
	}

	var selected []string
	if known[experiment.DefaultsTabName] {
		selected = append(selected, experiment.DefaultsTabName)
	}
	seen := map[string]bool{experiment.DefaultsTabName: true}
	for _, n := range names {
		if seen[n] {
			continue
		}
		if !known[n] {
			return nil, &experiment.StorageError{Op: "open", Path: TabPath(dir, n), Err: os.ErrNotExist}
		}
		seen[n] = true
		selected = append(selected, n)
	}

	return loadTabs(dir, selected, available, opts)
}

// loadTabs opens names out of the available ones. Tabs the set synthesizes
// start out saved, and every available name stays reserved so new or renamed
// tabs never land on a file that is not open.
func loadTabs(dir string, names, available []string, opts Options) (*LoadResult, error) {
	log := opts.logger().With("dir", dir)
	res := &LoadResult{Available: available}

	var tabs []experiment.Tab
	for i, name := range names {
		rows, err := ParseTabFile(TabPath(dir, name))
		if err != nil {
			if i == 0 {
				return nil, fmt.Errorf("load %s: %w", name, err)
			}
			log.Warn("skipping tab file", "tab", name, "error", err)
			res.Skipped = append(res.Skipped, SkippedFile{Name: name, Err: err})
			continue
		}
		if i == 0 && name != experiment.DefaultsTabName {
			log.Warn("no defaults tab file, using first tab as defaults", "tab", name)
		}
		tabs = append(tabs, experiment.Tab{Name: name, Rows: rows})
	}

	res.Set = experiment.NewSet(tabs)
	for i := range res.Set.Len() {
		res.Set.MarkSaved(i)
	}
	res.Set.Reserve(available)
	log.Debug("loaded tabs", "tabs", len(tabs), "skipped", len(res.Skipped))
	return res, nil
}

// SaveTab writes the tab at index to {dir}/{name}.csv and clears its dirty
// flag.
func SaveTab(set *experiment.Set, index int, dir string) error {
	tab, ok := set.Tab(index)
	if !ok {
		return &experiment.PreconditionError{Op: "save tab", Reason: fmt.Sprintf("tab %d out of range", index)}
	}
	if err := WriteTabFile(TabPath(dir, tab.Name), tab.Rows); err != nil {
		return err
	}
	set.MarkSaved(index)
	return nil
}

// TabFailure is one tab that SaveAll could not write.
type TabFailure struct {
	Tab string
	Err error
}

// SaveAllError reports the tabs that failed during SaveAll. Tabs not listed
// were written.
type SaveAllError struct {
	Failures []TabFailure
}

func (e *SaveAllError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Tab, f.Err)
	}
	return fmt.Sprintf("save all: %d tab(s) failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes every failure cause to errors.Is and errors.As.
func (e *SaveAllError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// FailedTabs returns the names of the tabs that were not written.
func (e *SaveAllError) FailedTabs() []string {
	names := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		names[i] = f.Tab
	}
	return names
}

// SaveAll writes every tab in order, carrying on past failures. With
// PruneOnSaveAll set and every write successful, files of tabs deleted or
// renamed during the session are removed afterwards.
func SaveAll(set *experiment.Set, dir string, opts Options) error {
	log := opts.logger().With("dir", dir)

	var failures []TabFailure
	for i, name := range set.TabNames() {
		if err := SaveTab(set, i, dir); err != nil {
			log.Error("failed to save tab", "tab", name, "error", err)
			failures = append(failures, TabFailure{Tab: name, Err: err})
		}
	}
	if len(failures) > 0 {
		return &SaveAllError{Failures: failures}
	}

	if opts.PruneOnSaveAll {
		removed, err := Prune(set, dir)
		if err != nil {
			return fmt.Errorf("prune stale tabs: %w", err)
		}
		if len(removed) > 0 {
			log.Info("removed stale tab files", "tabs", removed)
		}
	}
	return nil
}

// Prune deletes the files of tabs deleted or renamed away since the set was
// loaded and returns the names removed. Files of tabs that were simply never
// opened are left alone.
func Prune(set *experiment.Set, dir string) ([]string, error) {
	var removed []string
	var errs []error
	for _, n := range set.Retired() {
		path := TabPath(dir, n)
		err := os.Remove(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, &experiment.StorageError{Op: "remove", Path: path, Err: err})
			continue
		}
		if err == nil {
			removed = append(removed, n)
		}
	}
	if len(errs) == 0 {
		set.ClearRetired()
	}
	return removed, errors.Join(errs...)
}
