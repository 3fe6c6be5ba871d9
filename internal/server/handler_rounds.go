package server

import (
	"net/http"

	"github.com/me/rspd/pkg/model"
)

func (s *Server) handleListRounds(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts, apiErr := listOptions(r)
	if apiErr != nil {
		respondError(w, reqID, http.StatusBadRequest, apiErr)
		return
	}

	rounds, total, err := s.store.ListRounds(r.Context(), opts)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err))
		return
	}
	if rounds == nil {
		rounds = []*model.Round{}
	}
	respondList(w, reqID, rounds, pagination(opts, total))
}
