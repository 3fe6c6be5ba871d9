package server

import (
	"bytes"
	"net/http"

	"github.com/me/rspd/internal/cache"
	"github.com/me/rspd/internal/scheduler"
	"github.com/me/rspd/pkg/model"
)

// handleCache returns a copy of the front buffer, or the back buffer with
// ?buffer=back. ?format=text returns the register dump instead of JSON.
func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	q := r.URL.Query()

	buffer := q.Get("buffer")
	switch buffer {
	case "", "front", "back":
	default:
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid query parameters",
			model.FieldError{Field: "buffer", Message: "must be front or back"}))
		return
	}
	text := q.Get("format") == "text"

	var snap cache.Snapshot
	var dump bytes.Buffer
	err := s.driver.Do(r.Context(), func(sched *scheduler.Scheduler) {
		state := sched.Cache().Front()
		if buffer == "back" {
			state = sched.Cache().Back()
		}
		if text {
			state.Print(&dump)
			return
		}
		snap = state.Snapshot()
	})
	if err != nil {
		respondDriverError(w, reqID, err)
		return
	}

	if text {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(dump.Bytes())
		return
	}
	respondOK(w, reqID, snap)
}

func (s *Server) handleScheduler(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var st model.SchedulerStatus
	err := s.driver.Do(r.Context(), func(sched *scheduler.Scheduler) {
		st = sched.Status()
	})
	if err != nil {
		respondDriverError(w, reqID, err)
		return
	}
	respondOK(w, reqID, st)
}
