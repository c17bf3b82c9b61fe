// Package logs builds the slog logger shared by the CLI, the TUI and the API
// server. Sinks are fanned out with slog-multi.
package logs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
)

// Options selects the sinks of a logger.
type Options struct {
	Level  *slog.LevelVar // shared so the level can be raised at runtime
	Writer io.Writer      // text or JSON sink; nil disables it
	Format string         // "json" or anything else for text

	// Journal adds a systemd journal handler. Set it from UnderSystemd.
	Journal bool

	// Lines receives one formatted line per record, for the TUI debug
	// panel. Records are dropped while the channel is full.
	Lines chan<- string
}

// New returns a logger writing to every sink selected in opts. With no sink
// it discards everything.
func New(opts Options) *slog.Logger {
	level := opts.Level
	if level == nil {
		level = new(slog.LevelVar)
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler
	if opts.Writer != nil {
		if opts.Format == "json" {
			handlers = append(handlers, slog.NewJSONHandler(opts.Writer, handlerOpts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(opts.Writer, handlerOpts))
		}
	}

	if opts.Journal {
		journalHandler, err := slogjournal.NewHandler(&slogjournal.Options{
			Level: level,
			ReplaceGroup: func(key string) string {
				return toJournalKey(key)
			},
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				a.Key = toJournalKey(a.Key)
				return a
			},
		})
		if err != nil {
			if len(handlers) > 0 {
				record := slog.NewRecord(time.Now(), slog.LevelWarn, "new systemd journal handler", 0)
				record.Add("error", err)
				_ = handlers[0].Handle(context.Background(), record)
			}
		} else {
			handlers = append(handlers, journalHandler)
		}
	}

	if opts.Lines != nil {
		handlers = append(handlers, slog.NewTextHandler(lineWriter(opts.Lines), &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if len(groups) == 0 && a.Key == slog.TimeKey {
					return slog.Attr{}
				}
				return a
			},
		}))
	}

	if len(handlers) == 0 {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slogmulti.Fanout(handlers...))
}

// lineWriter forwards each write, one record per write, to a channel.
type lineWriter chan<- string

func (w lineWriter) Write(p []byte) (int, error) {
	select {
	case w <- strings.TrimRight(string(p), "\n"):
	default:
	}
	return len(p), nil
}

// ParseLevel maps a config level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("parse log level %q: %w", s, err)
	}
	return level, nil
}

// OpenFile opens path for appending, creating its directory. "-" and ""
// mean stderr.
func OpenFile(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stderr}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// UnderSystemd reports whether the process runs inside a systemd service.
func UnderSystemd() bool {
	cgroupPath, err := getCgroupPath()
	if err != nil {
		return false
	}
	return strings.HasSuffix(path.Dir(cgroupPath), ".service")
}

func toJournalKey(str string) string {
	str = strings.ToUpper(str)
	str = strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' ||
			r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, str)
	return str
}

func getCgroupPath() (string, error) {
	content, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return "", err
	}
	parts := strings.Split(strings.TrimSpace(string(content)), ":")
	if len(parts) >= 3 {
		return parts[2], nil
	}
	return "", nil
}
