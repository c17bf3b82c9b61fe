package api

import (
	"net/http"

	"github.com/clive/experimenter/internal/runs"
)

type HealthResponse struct {
	Status   string `json:"status"`
	RunCount int    `json:"runCount"`
	Message  string `json:"message,omitempty"`
}

type HealthHandler struct {
	db *runs.DB
}

func NewHealthHandler(db *runs.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}

	if h.db != nil {
		count, err := h.db.RunCount()
		if err != nil {
			resp.Status = "degraded"
			resp.Message = err.Error()
		} else {
			resp.RunCount = count
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
