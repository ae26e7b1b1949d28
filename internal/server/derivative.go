package server

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"derivate/internal/ready"
	"derivate/internal/store"
)

// handleDerivative serves GET /derivative/{type}/{id}?force=&prepare=.
// Without prepare, a ready or synchronously built file is streamed as an
// attachment; with prepare, only a JSON readiness status is returned.
func (s *Server) handleDerivative(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/derivative/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		s.writeError(w, http.StatusNotFound, "expected /derivative/{type}/{id}")
		return
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	query := r.URL.Query()
	req := ready.Request{
		TypeKey: parts[0],
		ItemID:  id,
		Force:   queryFlag(query.Get("force")),
		Prepare: queryFlag(query.Get("prepare")),
	}

	result, err := s.coord.Handle(r.Context(), req)
	if err != nil {
		s.writeReadinessError(w, err)
		return
	}

	if req.Prepare || result.State == ready.StateQueued {
		status := http.StatusOK
		if result.State == ready.StateQueued {
			status = http.StatusAccepted
		}
		s.writeJSON(w, status, map[string]string{"status": string(result.State)})
		return
	}

	s.sendFile(w, result.Path, result.Spec.MediaType)
}

// writeReadinessError maps coordinator sentinels onto structured HTTP
// responses; build tool output never leaves the log.
func (s *Server) writeReadinessError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ready.ErrUnknownType), errors.Is(err, ready.ErrMediaLevel):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ready.ErrDisabled):
		s.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ready.ErrInfeasible), errors.Is(err, ready.ErrNotReady):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ready.ErrInProgress):
		w.Header().Set("Retry-After", "30")
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, "derivative build failed")
	}
}

// sendFile streams a completed derivative as an attachment with 30-day
// cache headers.
func (s *Server) sendFile(w http.ResponseWriter, path, mediaType string) {
	file, err := os.Open(path)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "derivative file unavailable")
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "derivative file unavailable")
		return
	}

	const maxAge = 30 * 24 * time.Hour
	header := w.Header()
	header.Set("Content-Type", mediaType)
	header.Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	header.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	header.Set("Cache-Control", "private, max-age="+strconv.Itoa(int(maxAge.Seconds())))
	header.Set("Expires", time.Now().Add(maxAge).UTC().Format(http.TimeFormat))

	if _, err := io.Copy(w, file); err != nil {
		s.logger.Warn("derivative download interrupted")
	}
}

func queryFlag(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "0", "false":
		return false
	default:
		return true
	}
}
