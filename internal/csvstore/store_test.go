package csvstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/clive/experimenter/internal/experiment"
)

const header = "Param;Value;Comment\n"

func TestScanDirOrdersDefaultsFirst(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"zeta.csv", "exp002.csv", "defaults.csv", "a.csv", "notes.txt"} {
		writeFile(t, dir, name, header)
	}
	if err := os.Mkdir(filepath.Join(dir, "dir.csv"), 0o755); err != nil {
		t.Fatal(err)
	}

	names, err := ScanDir(dir, Options{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	want := []string{"defaults", "a", "exp002", "zeta"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("got %v, want %v", names, want)
	}
}

func TestScanDirIgnoresInvalidNames(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{".csv", ".hidden.csv", "a;b.csv", "defaults.csv", "exp001.csv"} {
		writeFile(t, dir, name, header)
	}

	names, err := ScanDir(dir, Options{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if want := []string{"defaults", "exp001"}; !reflect.DeepEqual(names, want) {
		t.Errorf("got %v, want %v", names, want)
	}
}

func TestLoadScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "defaults.csv", "Param;Value;Comment\nalpha;1;first param\n")
	writeFile(t, dir, "exp001.csv", "Param;Value;Comment\nalpha;2;\n")

	res, err := Load(dir, Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	set := res.Set

	want := []experiment.Tab{
		{Name: "defaults", Kind: experiment.KindFreeText, Rows: []experiment.ParameterRow{{Param: "alpha", Value: "1", Comment: "first param"}}},
		{Name: "exp001", Kind: experiment.KindParamChoice, Rows: []experiment.ParameterRow{{Param: "alpha", Value: "2", Comment: ""}}},
	}
	if got := set.Tabs(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
	if got := set.ResolveParamChoice("alpha"); got != "first param" {
		t.Errorf("ResolveParamChoice(alpha) = %q, want %q", got, "first param")
	}
	if set.Dirty() {
		t.Error("freshly loaded set should not be dirty")
	}
}

func TestLoadCountsFiles(t *testing.T) {
	for n := 0; n <= 4; n++ {
		t.Run(fmt.Sprintf("%d files", n), func(t *testing.T) {
			dir := t.TempDir()
			for i := 0; i < n; i++ {
				name := experiment.DefaultTabName(i)
				writeFile(t, dir, name+Ext, header+"p;v;c\n")
			}

			res, err := Load(dir, Options{})
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			wantTabs := n
			if n == 0 {
				wantTabs = 1
			}
			if res.Set.Len() != wantTabs {
				t.Fatalf("expected %d tabs, got %d", wantTabs, res.Set.Len())
			}
			tab, _ := res.Set.Tab(0)
			if tab.Name != experiment.DefaultsTabName || tab.Kind != experiment.KindFreeText {
				t.Errorf("tab 0 = %s/%s, want defaults/free_text", tab.Name, tab.Kind)
			}
			if n == 0 && !reflect.DeepEqual(tab.Rows, []experiment.ParameterRow{{}}) {
				t.Errorf("expected one blank row, got %#v", tab.Rows)
			}
			if res.Set.Dirty() {
				t.Error("freshly loaded set should not be dirty")
			}
		})
	}
}

func TestLoadCapsVisibleTabs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "defaults.csv", header)
	for i := 1; i <= 5; i++ {
		writeFile(t, dir, fmt.Sprintf("exp%03d.csv", i), header)
	}

	res, err := Load(dir, Options{MaxVisibleTabs: 3})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := res.Set.TabNames(); !reflect.DeepEqual(got, []string{"defaults", "exp001", "exp002"}) {
		t.Errorf("unexpected tabs %v", got)
	}
	if len(res.Available) != 6 {
		t.Errorf("expected 6 available, got %d", len(res.Available))
	}
}

func TestNewTabsKeepClearOfHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "defaults.csv", header+"alpha;1;first param\n")
	for i := 1; i <= 11; i++ {
		writeFile(t, dir, fmt.Sprintf("exp%03d.csv", i), header+"alpha;precious;\n")
	}
	opts := Options{MaxVisibleTabs: 10}

	res, err := Load(dir, opts)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	set := res.Set

	idx := set.AddTab()
	if got := set.TabNames()[idx]; got != "exp012" {
		t.Errorf("new tab got %q, want exp012", got)
	}
	if err := set.RenameTab(1, "exp010"); !errors.Is(err, experiment.ErrPrecondition) {
		t.Errorf("expected rename onto a hidden file to fail, got %v", err)
	}

	if err := SaveAll(set, dir, opts); err != nil {
		t.Fatalf("save all: %v", err)
	}
	for _, name := range []string{"exp010", "exp011"} {
		rows, err := ParseTabFile(TabPath(dir, name))
		if err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		if len(rows) != 1 || rows[0].Value != "precious" {
			t.Errorf("%s was overwritten: %#v", name, rows)
		}
	}
}

func TestLoadSkipsBadExperimentFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "defaults.csv", header+"alpha;1;x\n")
	writeFile(t, dir, "exp001.csv", header+"alpha;2\n")
	writeFile(t, dir, "exp002.csv", header+"alpha;3;\n")

	res, err := Load(dir, Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := res.Set.TabNames(); !reflect.DeepEqual(got, []string{"defaults", "exp002"}) {
		t.Errorf("unexpected tabs %v", got)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Name != "exp001" {
		t.Fatalf("unexpected skipped %#v", res.Skipped)
	}
	if !errors.Is(res.Skipped[0].Err, experiment.ErrFormat) {
		t.Errorf("expected format error, got %v", res.Skipped[0].Err)
	}
}

func TestLoadFailsOnBadDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "defaults.csv", header+"alpha\n")
	writeFile(t, dir, "exp001.csv", header)

	_, err := Load(dir, Options{})
	if !errors.Is(err, experiment.ErrFormat) {
		t.Fatalf("expected format error, got %v", err)
	}
}

func TestLoadUnreadableDir(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"), Options{})
	if !errors.Is(err, experiment.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestLoadNames(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "defaults.csv", header)
	writeFile(t, dir, "exp001.csv", header)
	writeFile(t, dir, "exp002.csv", header)
	writeFile(t, dir, "exp003.csv", header)

	res, err := LoadNames(dir, []string{"exp003", "defaults", "exp001", "exp003"}, Options{})
	if err != nil {
		t.Fatalf("load names: %v", err)
	}
	if got := res.Set.TabNames(); !reflect.DeepEqual(got, []string{"defaults", "exp003", "exp001"}) {
		t.Errorf("unexpected tabs %v", got)
	}

	if _, err := LoadNames(dir, []string{"nope"}, Options{}); !errors.Is(err, experiment.ErrStorage) {
		t.Errorf("expected storage error for unknown tab, got %v", err)
	}
}

func TestSaveTabPersistsRename(t *testing.T) {
	dir := t.TempDir()
	set := experiment.NewSet(nil)
	set.AddTab()
	if err := set.RenameTab(1, "sweep"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, err := os.Stat(TabPath(dir, "sweep")); !os.IsNotExist(err) {
		t.Fatal("rename should not touch disk before save")
	}

	if err := SaveTab(set, 1, dir); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(TabPath(dir, "sweep")); err != nil {
		t.Errorf("expected sweep.csv after save: %v", err)
	}
	tab, _ := set.Tab(1)
	if tab.Dirty {
		t.Error("saved tab should not be dirty")
	}
}

func TestSaveAllPartialFailure(t *testing.T) {
	dir := t.TempDir()
	set := experiment.NewSet(nil)
	set.AddTab() // exp001
	// A directory where the file should go makes the second write fail.
	if err := os.Mkdir(TabPath(dir, "exp001"), 0o755); err != nil {
		t.Fatal(err)
	}

	err := SaveAll(set, dir, Options{})
	var saveErr *SaveAllError
	if !errors.As(err, &saveErr) {
		t.Fatalf("expected *SaveAllError, got %T (%v)", err, err)
	}
	if got := saveErr.FailedTabs(); !reflect.DeepEqual(got, []string{"exp001"}) {
		t.Errorf("failed tabs = %v, want [exp001]", got)
	}
	if !errors.Is(err, experiment.ErrStorage) {
		t.Errorf("expected storage error cause, got %v", err)
	}
	if _, err := os.Stat(TabPath(dir, "defaults")); err != nil {
		t.Errorf("defaults should have been written: %v", err)
	}
}

func TestSaveAllThenLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	set := experiment.NewSet(nil)
	_ = set.SetCell(0, 0, experiment.ColumnParam, "alpha")
	_ = set.SetCell(0, 0, experiment.ColumnComment, "first; param")
	set.AddTab()
	_ = set.SetCell(1, 0, experiment.ColumnParam, "alpha")
	_ = set.SetCell(1, 0, experiment.ColumnValue, "2")

	if err := SaveAll(set, dir, Options{}); err != nil {
		t.Fatalf("save all: %v", err)
	}
	res, err := Load(dir, Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got, want := res.Set.Tabs(), set.Tabs(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestSaveAllLeavesStaleFilesByDefault(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "defaults.csv", header)
	writeFile(t, dir, "exp001.csv", header)

	res, err := Load(dir, Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := res.Set.DeleteTab(1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := SaveAll(res.Set, dir, Options{}); err != nil {
		t.Fatalf("save all: %v", err)
	}
	if _, err := os.Stat(TabPath(dir, "exp001")); err != nil {
		t.Errorf("exp001.csv should survive without pruning: %v", err)
	}
}

func TestSaveAllPrunesRetiredTabs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "defaults.csv", header)
	writeFile(t, dir, "exp001.csv", header)
	writeFile(t, dir, "exp002.csv", header)
	writeFile(t, dir, "exp003.csv", header)

	opts := Options{MaxVisibleTabs: 3, PruneOnSaveAll: true}
	res, err := Load(dir, opts)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	set := res.Set
	if err := set.DeleteTab(1); err != nil { // exp001
		t.Fatalf("delete: %v", err)
	}
	if err := set.RenameTab(1, "sweep"); err != nil { // exp002 -> sweep
		t.Fatalf("rename: %v", err)
	}

	if err := SaveAll(set, dir, opts); err != nil {
		t.Fatalf("save all: %v", err)
	}

	names, err := ScanDir(dir, Options{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	// exp003 was never opened and must survive.
	want := []string{"defaults", "exp003", "sweep"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("got %v, want %v", names, want)
	}
	if len(set.Retired()) != 0 {
		t.Errorf("retired names should be cleared, got %v", set.Retired())
	}
}
