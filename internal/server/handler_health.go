package server

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/me/rspd/internal/scheduler"
)

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Scheduler string `json:"scheduler"`
	Store     string `json:"store"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	resp := healthResponse{
		Status:    "healthy",
		Version:   "0.1.0",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Scheduler: "not_started",
		Store:     "unavailable",
	}
	if s.store != nil {
		resp.Store = "sqlite"
	}
	if s.driver != nil {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		err := s.driver.Do(ctx, func(sched *scheduler.Scheduler) {
			resp.Scheduler = sched.State().String()
		})
		if err != nil {
			resp.Status = "degraded"
			resp.Scheduler = "unavailable"
		}
	}
	respondOK(w, reqID, resp)
}
