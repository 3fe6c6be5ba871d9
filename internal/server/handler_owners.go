package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/me/rspd/internal/command"
	"github.com/me/rspd/internal/scheduler"
	"github.com/me/rspd/pkg/model"
)

// handleCancel removes every queued command of an owner, as when a client
// disconnects.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	owner := chi.URLParam(r, "owner")

	var removed int
	err := s.driver.Do(r.Context(), func(sched *scheduler.Scheduler) {
		removed = sched.Cancel(command.ClientPort(owner))
	})
	if err != nil {
		respondDriverError(w, reqID, err)
		return
	}
	if _, err := s.store.CancelCommands(r.Context(), owner, "", s.now()); err != nil {
		s.logger.Error("journal cancel", "owner", owner, "error", err)
	}

	s.logger.Info("commands cancelled", "owner", owner, "removed", removed)
	respondOK(w, reqID, model.RemoveResponse{Owner: owner, Removed: removed})
}

func (s *Server) handleRemoveSubscription(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	owner := chi.URLParam(r, "owner")
	handle := chi.URLParam(r, "handle")

	var removed int
	err := s.driver.Do(r.Context(), func(sched *scheduler.Scheduler) {
		removed = sched.RemoveSubscription(command.ClientPort(owner), handle)
	})
	if err != nil {
		respondDriverError(w, reqID, err)
		return
	}
	if removed == 0 {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("subscription", handle))
		return
	}
	if _, err := s.store.CancelCommands(r.Context(), owner, handle, s.now()); err != nil {
		s.logger.Error("journal cancel", "owner", owner, "handle", handle, "error", err)
	}

	respondOK(w, reqID, model.RemoveResponse{Owner: owner, Handle: handle, Removed: removed})
}
