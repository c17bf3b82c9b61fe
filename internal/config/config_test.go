package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"EXPERIMENTER_DIR", "EXPERIMENTER_MAX_TABS", "EXPERIMENTER_PRUNE",
	"EXPERIMENTER_ADDR", "EXPERIMENTER_API_KEY", "EXPERIMENTER_RUNS_DB",
	"EXPERIMENTER_RUN_COMMAND", "LOG_LEVEL", "EXPERIMENTER_LOG_FILE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxVisibleTabs != 10 {
		t.Errorf("expected 10 visible tabs, got %d", cfg.MaxVisibleTabs)
	}
	if cfg.Server.Addr != ":8742" {
		t.Errorf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Run.ParamFlag != "-p" {
		t.Errorf("unexpected param flag %q", cfg.Run.ParamFlag)
	}
	if cfg.PruneOnSaveAll {
		t.Error("prune should be off by default")
	}
}

func TestLoadFirstFileWins(t *testing.T) {
	clearEnv(t)
	project := writeConfig(t, `
experiments_dir: /data/sweeps
max_visible_tabs: 4
run:
  command: ["python", "train.py"]
  param_flag: "--set"
  timeout: 90s
server:
  api_key: secret
log:
  format: json
`)
	global := writeConfig(t, "max_visible_tabs: 7\n")

	cfg, err := loadFrom(project, global)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ExperimentsDir != "/data/sweeps" || cfg.MaxVisibleTabs != 4 {
		t.Errorf("project file not applied: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Run.Command, []string{"python", "train.py"}) {
		t.Errorf("unexpected command %v", cfg.Run.Command)
	}
	if cfg.Run.ParamFlag != "--set" || cfg.Run.Timeout != 90*time.Second {
		t.Errorf("unexpected run config %+v", cfg.Run)
	}
	if cfg.Server.Addr != ":8742" || cfg.Server.APIKey != "secret" {
		t.Errorf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "info" {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}
}

func TestLoadFallsBackToGlobal(t *testing.T) {
	clearEnv(t)
	global := writeConfig(t, "max_visible_tabs: 7\n")

	cfg, err := loadFrom(filepath.Join(t.TempDir(), "missing.yaml"), global)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxVisibleTabs != 7 {
		t.Errorf("expected 7, got %d", cfg.MaxVisibleTabs)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "experiments_dir: /from/file\nmax_visible_tabs: 4\n")

	t.Setenv("EXPERIMENTER_DIR", "/from/env")
	t.Setenv("EXPERIMENTER_MAX_TABS", "12")
	t.Setenv("EXPERIMENTER_PRUNE", "true")
	t.Setenv("EXPERIMENTER_RUN_COMMAND", "sh run.sh  --fast")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := loadFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ExperimentsDir != "/from/env" || cfg.MaxVisibleTabs != 12 || !cfg.PruneOnSaveAll {
		t.Errorf("env not applied: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Run.Command, []string{"sh", "run.sh", "--fast"}) {
		t.Errorf("unexpected command %v", cfg.Run.Command)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("unexpected level %q", cfg.Log.Level)
	}
}

func TestEnvIgnoresUnparsable(t *testing.T) {
	clearEnv(t)
	t.Setenv("EXPERIMENTER_MAX_TABS", "lots")

	cfg, err := loadFrom()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxVisibleTabs != 10 {
		t.Errorf("expected fallback 10, got %d", cfg.MaxVisibleTabs)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"zero tabs", "max_visible_tabs: 0\n", "max_visible_tabs"},
		{"empty addr", "server:\n  addr: \"\"\n", "server.addr"},
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"bad format", "log:\n  format: xml\n", "log.format"},
		{"negative timeout", "run:\n  timeout: -1s\n", "run.timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := loadFrom(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadBadYAML(t *testing.T) {
	clearEnv(t)
	if _, err := loadFrom(writeConfig(t, "max_visible_tabs: [\n")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestExpandHome(t *testing.T) {
	home := homeDir()
	tests := []struct {
		in, want string
	}{
		{"~", home},
		{"~/exp", filepath.Join(home, "exp")},
		{"/abs/path", "/abs/path"},
		{"rel/~/path", "rel/~/path"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := expandHome(tt.in); got != tt.want {
			t.Errorf("expandHome(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".experimenter", "config.yaml")

	cfg := DefaultConfig()
	cfg.ExperimentsDir = "/data/sweeps"
	cfg.Run.Command = []string{"./train"}
	cfg.Run.Timeout = 2 * time.Minute
	if err := saveTo(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := loadFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Errorf("got %+v, want %+v", got, cfg)
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv("EXPERIMENTER_API_KEY", "")
	os.Unsetenv("EXPERIMENTER_API_KEY")

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("EXPERIMENTER_API_KEY=from-dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := loadDotEnv(path); err != nil {
		t.Fatalf("load .env: %v", err)
	}
	if got := os.Getenv("EXPERIMENTER_API_KEY"); got != "from-dotenv" {
		t.Errorf("expected value from .env, got %q", got)
	}

	if err := loadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing .env should be ignored, got %v", err)
	}
}
