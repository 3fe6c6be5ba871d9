package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/me/rspd/internal/cache"
	"github.com/me/rspd/internal/command"
	"github.com/me/rspd/internal/scheduler"
	"github.com/me/rspd/pkg/model"
)

func (s *Server) handleEnterCommand(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req model.CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "invalid JSON body: " + err.Error(),
		})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid command", errs...))
		return
	}

	id := s.newID()
	count := req.Count
	if req.Operation == model.OperationWrite {
		count = len(req.Values)
	}
	if count < 1 {
		count = 1
	}

	// The journal row exists before the command can run, so its
	// completion always finds it.
	rec := &model.CommandRecord{
		ID:          id,
		Owner:       req.Owner,
		Board:       req.Board,
		Register:    req.Register,
		Count:       count,
		Operation:   req.Operation,
		Period:      req.Period,
		RequestedAt: model.NewTimestamp(req.At, 0),
		EffectiveAt: model.NewTimestamp(req.At, 0),
		State:       model.CommandStateQueued,
		Values:      req.Values,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.CreateCommand(r.Context(), rec); err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err))
		return
	}

	var (
		effective model.Timestamp
		kind      model.QueueKind
		rangeErr  error
		entered   bool
	)
	err := s.driver.Do(r.Context(), func(sched *scheduler.Scheduler) {
		if rangeErr = sched.Cache().Front().CheckRange(req.Board, req.Register, count); rangeErr != nil {
			return
		}
		var cmd scheduler.Command
		cmd, kind = command.FromRequest(id, req, s.sink)
		effective = sched.Enter(cmd, kind)
		entered = true
	})
	if !entered {
		s.discardCommand(r.Context(), id)
	}
	if err != nil {
		respondDriverError(w, reqID, err)
		return
	}
	if rangeErr != nil {
		field := "register"
		if errors.Is(rangeErr, cache.ErrUnknownBoard) {
			field = "board"
		}
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid command",
			model.FieldError{Field: field, Message: rangeErr.Error()}))
		return
	}

	if effective != rec.EffectiveAt {
		if err := s.store.SetEffectiveAt(context.WithoutCancel(r.Context()), id, effective); err != nil {
			// The command is scheduled; only its journal entry is stale.
			s.logger.Error("journal effective time", "id", id, "error", err)
		}
	}

	s.logger.Info("command entered", "id", id, "owner", req.Owner, "operation", req.Operation,
		"queue", kind, "effective", effective)
	respondCreated(w, reqID, model.EnterResponse{
		ID:          id,
		Handle:      id,
		Queue:       kind,
		EffectiveAt: effective,
	})
}

// discardCommand removes the journal row of a command that was never
// admitted.
func (s *Server) discardCommand(ctx context.Context, id string) {
	if err := s.store.DeleteCommand(context.WithoutCancel(ctx), id); err != nil {
		s.logger.Error("discard journal command", "id", id, "error", err)
	}
}

func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts, apiErr := listOptions(r)
	if apiErr != nil {
		respondError(w, reqID, http.StatusBadRequest, apiErr)
		return
	}

	recs, total, err := s.store.ListCommands(r.Context(), opts)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err))
		return
	}
	if recs == nil {
		recs = []*model.CommandRecord{}
	}
	respondList(w, reqID, recs, pagination(opts, total))
}

func (s *Server) handleGetCommand(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	rec, err := s.store.GetCommand(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err))
		return
	}
	if rec == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("command", id))
		return
	}
	respondOK(w, reqID, rec)
}
