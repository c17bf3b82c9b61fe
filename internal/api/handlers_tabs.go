package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/clive/experimenter/internal/experiment"
	"github.com/clive/experimenter/internal/runs"
	"github.com/clive/experimenter/internal/workspace"
)

type TabHandler struct {
	open   OpenFunc
	logger *slog.Logger
	mu     sync.Mutex // serializes load-modify-save cycles
}

func NewTabHandler(open OpenFunc, logger *slog.Logger) *TabHandler {
	return &TabHandler{open: open, logger: logger}
}

type tabListResponse struct {
	Dir       string   `json:"dir"`
	Open      []string `json:"open"`
	Available []string `json:"available"`
}

type tabResponse struct {
	Name string                    `json:"name"`
	Kind experiment.RowKind        `json:"kind"`
	Rows []experiment.ParameterRow `json:"rows"`
}

type putTabRequest struct {
	Rows []experiment.ParameterRow `json:"rows"`
}

type paramsResponse struct {
	Tab    string            `json:"tab"`
	Params []experiment.Pair `json:"params"`
}

type runAllResponse struct {
	Runs  []*runs.Run `json:"runs"`
	Error string      `json:"error,omitempty"`
}

func newTabResponse(t experiment.Tab) tabResponse {
	return tabResponse{Name: t.Name, Kind: t.Kind, Rows: t.Rows}
}

// List handles GET /tabs
func (h *TabHandler) List(w http.ResponseWriter, r *http.Request) {
	ws, err := h.open()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tabListResponse{
		Dir:       ws.Dir(),
		Open:      ws.Set().TabNames(),
		Available: ws.Available(),
	})
}

// loadTab opens the workspace with the tab called name as the only
// non-defaults tab and returns its index. It writes the error response
// itself and returns ok=false on failure.
func (h *TabHandler) loadTab(w http.ResponseWriter, name string) (*workspace.Workspace, int, bool) {
	ws, err := h.open()
	if err != nil {
		writeErr(w, err)
		return nil, 0, false
	}
	if !slices.Contains(ws.Available(), name) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("tab %q not found", name))
		return nil, 0, false
	}
	if _, err := ws.OpenNames([]string{name}); err != nil {
		writeErr(w, err)
		return nil, 0, false
	}
	return ws, ws.Set().IndexOf(name), true
}

// Get handles GET /tabs/{name}
func (h *TabHandler) Get(w http.ResponseWriter, r *http.Request) {
	ws, idx, ok := h.loadTab(w, chi.URLParam(r, "name"))
	if !ok {
		return
	}
	tab, _ := ws.Set().Tab(idx)
	writeJSON(w, http.StatusOK, newTabResponse(tab))
}

// Put handles PUT /tabs/{name}. It replaces the rows of the tab, creating the
// tab when no file of that name exists, and saves it.
func (h *TabHandler) Put(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req putTabRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Rows == nil {
		req.Rows = []experiment.ParameterRow{}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ws, err := h.open()
	if err != nil {
		writeErr(w, err)
		return
	}

	created := !slices.Contains(ws.Available(), name)
	var idx int
	if created {
		if _, err := ws.OpenNames(nil); err != nil {
			writeErr(w, err)
			return
		}
		if name != experiment.DefaultsTabName {
			idx = ws.Set().AddTab()
			if err := ws.Set().RenameTab(idx, name); err != nil {
				writeErr(w, err)
				return
			}
		}
	} else {
		if _, err := ws.OpenNames([]string{name}); err != nil {
			writeErr(w, err)
			return
		}
		idx = ws.Set().IndexOf(name)
	}

	if err := ws.Set().ReplaceRows(idx, req.Rows); err != nil {
		writeErr(w, err)
		return
	}
	if err := ws.SaveTab(idx); err != nil {
		writeErr(w, err)
		return
	}

	tab, _ := ws.Set().Tab(idx)
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, newTabResponse(tab))
}

// Params handles GET /tabs/{name}/params
func (h *TabHandler) Params(w http.ResponseWriter, r *http.Request) {
	ws, idx, ok := h.loadTab(w, chi.URLParam(r, "name"))
	if !ok {
		return
	}
	pairs, err := ws.Set().ParamValuePairs(idx)
	if err != nil {
		writeErr(w, err)
		return
	}
	if pairs == nil {
		pairs = []experiment.Pair{}
	}
	tab, _ := ws.Set().Tab(idx)
	writeJSON(w, http.StatusOK, paramsResponse{Tab: tab.Name, Params: pairs})
}

// Run handles POST /tabs/{name}/run. A run that started is reported with 200
// even when it failed; the failure is in the run's error field.
func (h *TabHandler) Run(w http.ResponseWriter, r *http.Request) {
	ws, idx, ok := h.loadTab(w, chi.URLParam(r, "name"))
	if !ok {
		return
	}
	run, err := ws.RunTab(r.Context(), idx)
	if run == nil {
		writeErr(w, err)
		return
	}
	if err != nil {
		h.logger.Warn("run failed", "tab", run.Tab, "error", err)
	}
	writeJSON(w, http.StatusOK, run)
}

// RunAll handles POST /run, running every open tab in order.
func (h *TabHandler) RunAll(w http.ResponseWriter, r *http.Request) {
	ws, err := h.open()
	if err != nil {
		writeErr(w, err)
		return
	}
	done, err := ws.RunAll(r.Context())
	if len(done) == 0 && err != nil {
		writeErr(w, err)
		return
	}

	resp := runAllResponse{Runs: done}
	if resp.Runs == nil {
		resp.Runs = []*runs.Run{}
	}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
