package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clive/experimenter/internal/config"
	"github.com/clive/experimenter/internal/experiment"
	"github.com/clive/experimenter/internal/runs"
)

var configEnv = []string{
	"EXPERIMENTER_DIR", "EXPERIMENTER_MAX_TABS", "EXPERIMENTER_PRUNE",
	"EXPERIMENTER_ADDR", "EXPERIMENTER_API_KEY", "EXPERIMENTER_RUNS_DB",
	"EXPERIMENTER_RUN_COMMAND", "LOG_LEVEL", "EXPERIMENTER_LOG_FILE",
}

// isolate points config, logs and run history at a fresh home directory.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range configEnv {
		t.Setenv(k, "")
	}
	t.Chdir(t.TempDir())
	return home
}

func scenarioDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"defaults.csv": "Param;Value;Comment\nalpha;1;first param\nbeta;5;second param\n",
		"exp001.csv":   "Param;Value;Comment\nalpha;2;first param\n",
		"exp002.csv":   "Param;Value;Comment\ngamma;x;\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestList(t *testing.T) {
	isolate(t)
	dir := scenarioDir(t)

	out, err := execute(t, "list", dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{"defaults (free_text)", "exp001 (param_choice)", "first param", "gamma"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q:\n%s", want, out)
		}
	}
}

func TestListJSON(t *testing.T) {
	isolate(t)

	out, err := execute(t, "list", "--json", "--dir", scenarioDir(t))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var tabs []experiment.Tab
	if err := json.Unmarshal([]byte(out), &tabs); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(tabs) != 3 || tabs[1].Name != "exp001" || tabs[1].Rows[0].Value != "2" {
		t.Errorf("unexpected tabs %+v", tabs)
	}
}

func TestListMissingDir(t *testing.T) {
	isolate(t)
	if _, err := execute(t, "list", filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected an error for a missing directory")
	}
}

func TestParams(t *testing.T) {
	isolate(t)
	dir := scenarioDir(t)

	tests := []struct {
		name string
		tab  string
		want string
	}{
		{"defaults", "defaults", "alpha=1\nbeta=5\n"},
		{"override", "exp001", "alpha=2\nbeta=5\n"},
		{"extra param", "exp002", "alpha=1\nbeta=5\ngamma=x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "params", tt.tab, "--dir", dir)
			if err != nil {
				t.Fatalf("params: %v", err)
			}
			if out != tt.want {
				t.Errorf("got %q, want %q", out, tt.want)
			}
		})
	}

	t.Run("unknown tab", func(t *testing.T) {
		if _, err := execute(t, "params", "exp999", "--dir", dir); err == nil || !strings.Contains(err.Error(), "exp999") {
			t.Errorf("expected unknown tab error, got %v", err)
		}
	})

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, "params", "exp001", "--json", "--dir", dir)
		if err != nil {
			t.Fatalf("params: %v", err)
		}
		var pairs []experiment.Pair
		if err := json.Unmarshal([]byte(out), &pairs); err != nil || len(pairs) != 2 {
			t.Errorf("unexpected pairs %v (%v)", pairs, err)
		}
	})
}

func TestRun(t *testing.T) {
	isolate(t)
	dir := scenarioDir(t)

	t.Run("needs a tab", func(t *testing.T) {
		if _, err := execute(t, "run", "--dir", dir); err == nil {
			t.Error("expected an error without tabs")
		}
	})

	t.Run("not configured", func(t *testing.T) {
		if _, err := execute(t, "run", "exp001", "--dir", dir); err == nil || !strings.Contains(err.Error(), "no run command") {
			t.Errorf("expected not configured error, got %v", err)
		}
	})

	t.Run("passes params", func(t *testing.T) {
		out, err := execute(t, "run", "exp001", "--dir", dir, "--command", "echo", "--param-flag=--set", "--output")
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if !strings.Contains(out, "| --set alpha 2 --set beta 5") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("failure exits non-zero", func(t *testing.T) {
		out, err := execute(t, "run", "exp002", "--dir", dir, "--command", "false")
		if err == nil || !strings.Contains(err.Error(), "1 of 1") {
			t.Errorf("expected failure, got %v", err)
		}
		if !strings.Contains(out, "FAILED") {
			t.Errorf("expected FAILED in output:\n%s", out)
		}
	})

	t.Run("all", func(t *testing.T) {
		out, err := execute(t, "run", "--all", "--dir", dir, "--command", "true")
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if strings.Count(out, " ok ") != 3 {
			t.Errorf("expected 3 successful runs:\n%s", out)
		}
	})
}

func TestRunsHistory(t *testing.T) {
	isolate(t)
	dir := scenarioDir(t)

	out, err := execute(t, "runs")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if !strings.Contains(out, "no runs recorded") {
		t.Errorf("expected empty history, got %q", out)
	}

	if _, err := execute(t, "run", "exp001", "exp002", "--dir", dir, "--command", "true"); err != nil {
		t.Fatalf("run: %v", err)
	}

	out, err = execute(t, "runs", "--json")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	var list []runs.Run
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(list))
	}

	out, err = execute(t, "runs", "--tab", "exp002", "--dir", dir, "--json")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	var byTab []runs.Run
	if err := json.Unmarshal([]byte(out), &byTab); err != nil || len(byTab) != 1 || byTab[0].Tab != "exp002" {
		t.Fatalf("unexpected runs %+v (%v)", byTab, err)
	}

	out, err = execute(t, "runs", "show", byTab[0].ID)
	if err != nil {
		t.Fatalf("runs show: %v", err)
	}
	if !strings.Contains(out, "param: gamma=x") {
		t.Errorf("unexpected run details:\n%s", out)
	}

	if _, err := execute(t, "runs", "show", "missing"); err == nil {
		t.Error("expected an error for an unknown run")
	}
	if _, err := execute(t, "runs", "--limit", "0"); err == nil {
		t.Error("expected an error for a zero limit")
	}
}

func TestConfigInit(t *testing.T) {
	isolate(t)

	out, err := execute(t, "config", "init")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, filepath.Join(".experimenter", "config.yaml")) {
		t.Errorf("unexpected output %q", out)
	}

	if _, err := execute(t, "config", "init"); err == nil {
		t.Error("expected init to refuse overwriting")
	}
	if _, err := execute(t, "config", "init", "--force"); err != nil {
		t.Errorf("expected --force to overwrite: %v", err)
	}

	out, err = execute(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "max_visible_tabs: 10") {
		t.Errorf("unexpected config:\n%s", out)
	}
}

func TestResolveDir(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		flag     string
		config   string
		fallback string
		want     string
	}{
		{"argument wins", []string{"arg"}, "flag", "cfg", ".", "arg"},
		{"flag", nil, "flag", "cfg", ".", "flag"},
		{"config", nil, "", "cfg", ".", "cfg"},
		{"fallback", nil, "", "", ".", "."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &app{dir: tt.flag, cfg: config.DefaultConfig()}
			a.cfg.ExperimentsDir = tt.config
			if got := a.resolveDir(tt.args, tt.fallback); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
