// Package runner hands the resolved parameters of a tab to an external
// command.
package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"time"

	"github.com/clive/experimenter/internal/experiment"
)

// DefaultMaxLines is how many trailing output lines a Result keeps.
const DefaultMaxLines = 500

// ErrNotConfigured is returned when no run command has been set up.
var ErrNotConfigured = errors.New("no run command configured")

// Request is one tab's resolved parameters.
type Request struct {
	Tab   string
	Pairs []experiment.Pair
}

// Result describes a finished run. A command exiting non-zero still produces
// a Result; only failures to run at all are errors.
type Result struct {
	ExitCode   int
	Output     []string // combined stdout and stderr, last lines only
	StartedAt  time.Time
	FinishedAt time.Time
}

// Executor runs a request to completion.
type Executor interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// CommandExecutor runs Command with ParamFlag name value appended for every
// pair.
type CommandExecutor struct {
	Command   []string
	ParamFlag string
	WorkDir   string
	Timeout   time.Duration // 0 means no timeout
	MaxLines  int           // <1 means DefaultMaxLines
	Logger    *slog.Logger
}

// ANSI escape code pattern for stripping colors and cursor movement from output
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]|\x1b\][^\x07]*\x07|\x1b[()][AB012]`)

func stripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// Args returns the argv the executor would run for pairs.
func (e *CommandExecutor) Args(pairs []experiment.Pair) []string {
	args := append([]string(nil), e.Command...)
	for _, p := range pairs {
		if e.ParamFlag != "" {
			args = append(args, e.ParamFlag)
		}
		args = append(args, p.Param, p.Value)
	}
	return args
}

// Execute runs the command and waits for it. Cancelling ctx or hitting the
// timeout kills the process; the partial Result is returned with the
// context error.
func (e *CommandExecutor) Execute(ctx context.Context, req Request) (Result, error) {
	if len(e.Command) == 0 {
		return Result{}, ErrNotConfigured
	}
	log := e.logger().With("tab", req.Tab)

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	params, err := paramsJSON(req.Pairs)
	if err != nil {
		return Result{}, err
	}

	args := e.Args(req.Pairs)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = e.WorkDir
	cmd.Env = append(os.Environ(),
		"EXPERIMENTER_TAB="+req.Tab,
		"EXPERIMENTER_PARAMS="+params,
	)
	cmd.WaitDelay = time.Second

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	res := Result{StartedAt: time.Now()}
	if err := cmd.Start(); err != nil {
		pw.Close()
		res.FinishedAt = time.Now()
		return res, fmt.Errorf("start %s: %w", args[0], err)
	}
	log.Debug("run started", "pid", cmd.Process.Pid, "args", args)

	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		pw.Close()
		waitErr <- err
	}()

	res.Output = e.collect(pr)
	err = <-waitErr
	res.FinishedAt = time.Now()
	res.ExitCode = cmd.ProcessState.ExitCode()

	if ctxErr := ctx.Err(); ctxErr != nil {
		log.Warn("run interrupted", "error", ctxErr)
		return res, fmt.Errorf("run %s: %w", req.Tab, ctxErr)
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return res, fmt.Errorf("run %s: %w", req.Tab, err)
	}

	log.Info("run finished", "exit_code", res.ExitCode, "duration", res.FinishedAt.Sub(res.StartedAt))
	return res, nil
}

// collect reads r to EOF, keeping the last MaxLines lines.
func (e *CommandExecutor) collect(r io.Reader) []string {
	limit := e.MaxLines
	if limit < 1 {
		limit = DefaultMaxLines
	}

	lines := []string{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, stripANSI(scanner.Text()))
		if len(lines) > limit {
			lines = lines[len(lines)-limit:]
		}
	}
	if err := scanner.Err(); err != nil {
		lines = append(lines, "output truncated: "+err.Error())
		io.Copy(io.Discard, r)
	}
	return lines
}

func (e *CommandExecutor) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

func paramsJSON(pairs []experiment.Pair) (string, error) {
	m := make(map[string]string, len(pairs))
	for _, p := range pairs {
		m[p.Param] = p.Value
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}
	return string(data), nil
}
