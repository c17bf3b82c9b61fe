package runs

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clive/experimenter/internal/experiment"
	"github.com/clive/experimenter/internal/runner"
)

// Run is one recorded execution of a tab.
type Run struct {
	ID         string            `json:"id"`
	Dir        string            `json:"dir"`
	Tab        string            `json:"tab"`
	Params     []experiment.Pair `json:"params"`
	ExitCode   int               `json:"exitCode"`
	Output     []string          `json:"output"`
	Error      string            `json:"error,omitempty"`
	StartedAt  int64             `json:"startedAt"` // unix millis
	FinishedAt int64             `json:"finishedAt"`
}

// NewRun builds a Run record from an executor request and its outcome.
func NewRun(dir string, req runner.Request, res runner.Result, runErr error) *Run {
	r := &Run{
		Dir:        dir,
		Tab:        req.Tab,
		Params:     req.Pairs,
		ExitCode:   res.ExitCode,
		Output:     res.Output,
		StartedAt:  res.StartedAt.UnixMilli(),
		FinishedAt: res.FinishedAt.UnixMilli(),
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}
	return r
}

// Duration returns how long the run took.
func (r *Run) Duration() time.Duration {
	return time.Duration(r.FinishedAt-r.StartedAt) * time.Millisecond
}

// RunStore records and lists runs.
type RunStore struct {
	db *DB
}

func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// Insert stores r, assigning an ID when it has none.
func (s *RunStore) Insert(r *Run) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	params, err := json.Marshal(nonNilPairs(r.Params))
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	output, err := json.Marshal(nonNilLines(r.Output))
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO runs (id, dir, tab, params, exit_code, output, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Dir, r.Tab, string(params), r.ExitCode, string(output), r.Error, r.StartedAt, r.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Get returns a run by ID, or nil when there is none.
func (s *RunStore) Get(id string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT id, dir, tab, params, exit_code, output, error, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// List returns the most recent runs first, at most limit of them.
func (s *RunStore) List(limit int) ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT id, dir, tab, params, exit_code, output, error, started_at, finished_at
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return collectRuns(rows)
}

// ListByTab returns the runs of one tab in dir, most recent first. An empty
// dir matches every directory.
func (s *RunStore) ListByTab(dir, tab string, limit int) ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT id, dir, tab, params, exit_code, output, error, started_at, finished_at
		FROM runs WHERE (? = '' OR dir = ?) AND tab = ?
		ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, dir, dir, tab, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs by tab: %w", err)
	}
	return collectRuns(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var r Run
	var params, output string
	if err := sc.Scan(&r.ID, &r.Dir, &r.Tab, &params, &r.ExitCode, &output, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(params), &r.Params); err != nil {
		return nil, fmt.Errorf("decode params of run %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(output), &r.Output); err != nil {
		return nil, fmt.Errorf("decode output of run %s: %w", r.ID, err)
	}
	return &r, nil
}

func collectRuns(rows *sql.Rows) ([]Run, error) {
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func nonNilPairs(p []experiment.Pair) []experiment.Pair {
	if p == nil {
		return []experiment.Pair{}
	}
	return p
}

func nonNilLines(l []string) []string {
	if l == nil {
		return []string{}
	}
	return l
}
