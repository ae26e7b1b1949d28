package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"derivate/internal/catalog"
	"derivate/internal/ready"
	"derivate/internal/store"
)

type statusResponse struct {
	Enabled     []string `json:"enabled"`
	ItemTypes   []string `json:"item_types"`
	ThresholdMB int      `json:"threshold_mb"`
	BasePath    string   `json:"base_path"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{
		Enabled:     s.cfg.Derivatives.Enabled,
		ItemTypes:   catalog.ItemKeys(),
		ThresholdMB: s.cfg.Derivatives.ThresholdMB,
		BasePath:    s.cfg.Paths.BasePath,
	})
}

type jobView struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	ItemID     int64      `json:"item_id,omitempty"`
	MediaID    int64      `json:"media_id,omitempty"`
	TypeKey    string     `json:"type,omitempty"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	jobs, err := s.store.ListJobs(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]jobView, len(jobs))
	for i, job := range jobs {
		views[i] = jobView{
			ID:         job.ID,
			Kind:       string(job.Kind),
			ItemID:     job.ItemID,
			MediaID:    job.MediaID,
			TypeKey:    job.TypeKey,
			Status:     string(job.Status),
			Error:      job.Error,
			CreatedAt:  job.CreatedAt,
			StartedAt:  job.StartedAt,
			FinishedAt: job.FinishedAt,
		}
	}
	s.writeJSON(w, http.StatusOK, map[string][]jobView{"jobs": views})
}

// handleItem serves GET /api/items/{id}/derivatives?type=, the per-item
// readiness report.
func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/items/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] != "derivatives" {
		s.writeError(w, http.StatusNotFound, "expected /api/items/{id}/derivatives")
		return
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	report, err := s.coord.ItemReport(r.Context(), id, strings.TrimSpace(r.URL.Query().Get("type")))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]map[string]ready.TypeState{"derivatives": report})
}
