package runner

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/clive/experimenter/internal/experiment"
)

func shell(script string) []string {
	return []string{"sh", "-c", script, "sh"}
}

func TestArgs(t *testing.T) {
	e := &CommandExecutor{Command: []string{"python", "train.py"}, ParamFlag: "-p"}
	got := e.Args([]experiment.Pair{{Param: "lr", Value: "0.1"}, {Param: "layers", Value: "64;32"}})
	want := []string{"python", "train.py", "-p", "lr", "0.1", "-p", "layers", "64;32"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	e.ParamFlag = ""
	got = e.Args([]experiment.Pair{{Param: "lr", Value: "0.1"}})
	if !reflect.DeepEqual(got, []string{"python", "train.py", "lr", "0.1"}) {
		t.Errorf("unexpected args without flag %v", got)
	}
}

func TestExecutePassesParams(t *testing.T) {
	e := &CommandExecutor{
		Command:   shell(`printf '%s\n' "$@"; echo "tab=$EXPERIMENTER_TAB"; echo "$EXPERIMENTER_PARAMS"`),
		ParamFlag: "-p",
	}
	res, err := e.Execute(t.Context(), Request{
		Tab:   "exp001",
		Pairs: []experiment.Pair{{Param: "alpha", Value: "2"}, {Param: "beta", Value: "two words"}},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("expected exit 0, got %d", res.ExitCode)
	}

	want := []string{"-p", "alpha", "2", "-p", "beta", "two words", "tab=exp001"}
	if len(res.Output) != len(want)+1 || !reflect.DeepEqual(res.Output[:len(want)], want) {
		t.Fatalf("unexpected output %q", res.Output)
	}
	var params map[string]string
	if err := json.Unmarshal([]byte(res.Output[len(want)]), &params); err != nil {
		t.Fatalf("decode params: %v", err)
	}
	if !reflect.DeepEqual(params, map[string]string{"alpha": "2", "beta": "two words"}) {
		t.Errorf("unexpected params %v", params)
	}
	if res.FinishedAt.Before(res.StartedAt) {
		t.Error("finished before started")
	}
}

func TestExecuteNonZeroExitIsResult(t *testing.T) {
	e := &CommandExecutor{Command: shell("echo failing >&2; exit 3")}
	res, err := e.Execute(t.Context(), Request{Tab: "exp001"})
	if err != nil {
		t.Fatalf("non-zero exit should not be an error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("expected exit 3, got %d", res.ExitCode)
	}
	if !reflect.DeepEqual(res.Output, []string{"failing"}) {
		t.Errorf("stderr not captured: %q", res.Output)
	}
}

func TestExecuteKeepsLastLines(t *testing.T) {
	e := &CommandExecutor{
		Command:  shell("for i in 1 2 3 4 5; do echo $i; done"),
		MaxLines: 3,
	}
	res, err := e.Execute(t.Context(), Request{Tab: "exp001"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !reflect.DeepEqual(res.Output, []string{"3", "4", "5"}) {
		t.Errorf("got %q", res.Output)
	}
}

func TestExecuteStripsANSI(t *testing.T) {
	e := &CommandExecutor{Command: shell(`printf '\033[31mred\033[0m\n'`)}
	res, err := e.Execute(t.Context(), Request{Tab: "exp001"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !reflect.DeepEqual(res.Output, []string{"red"}) {
		t.Errorf("got %q", res.Output)
	}
}

func TestExecuteTimeout(t *testing.T) {
	e := &CommandExecutor{Command: shell("echo started; sleep 5"), Timeout: 200 * time.Millisecond}

	start := time.Now()
	res, err := e.Execute(t.Context(), Request{Tab: "exp001"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 4*time.Second {
		t.Error("process was not killed on timeout")
	}
	if len(res.Output) == 0 || res.Output[0] != "started" {
		t.Errorf("partial output lost: %q", res.Output)
	}
}

func TestExecuteCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	e := &CommandExecutor{Command: shell("sleep 5")}
	_, err := e.Execute(ctx, Request{Tab: "exp001"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}

func TestExecuteNotConfigured(t *testing.T) {
	e := &CommandExecutor{}
	if _, err := e.Execute(t.Context(), Request{Tab: "exp001"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestExecuteMissingBinary(t *testing.T) {
	e := &CommandExecutor{Command: []string{"/nonexistent/experiment-binary"}}
	_, err := e.Execute(t.Context(), Request{Tab: "exp001"})
	if err == nil || !strings.Contains(err.Error(), "start") {
		t.Fatalf("expected start error, got %v", err)
	}
}
