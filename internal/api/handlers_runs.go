package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/clive/experimenter/internal/runs"
)

const defaultRunLimit = 50

type RunHandler struct {
	store *runs.RunStore
}

func NewRunHandler(store *runs.RunStore) *RunHandler {
	return &RunHandler{store: store}
}

// List handles GET /runs?limit=N&tab=NAME&dir=DIR
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	var (
		list []runs.Run
		err  error
	)
	if tab := r.URL.Query().Get("tab"); tab != "" {
		list, err = h.store.ListByTab(r.URL.Query().Get("dir"), tab, limit)
	} else {
		list, err = h.store.List(limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// Get handles GET /runs/{id}
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.store.Get(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	writeJSON(w, http.StatusOK, run)
}
