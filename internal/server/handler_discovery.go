package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "rspd API",
		Version:     "v1",
		Description: "Station register scheduler: timed and periodic board register access",
		Endpoints: []endpointInfo{
			{"/api/v1/commands", []string{"GET", "POST"}, "Schedule a register read, write or subscription; list the journal"},
			{"/api/v1/commands/{id}", []string{"GET"}, "Single command with its latest result"},
			{"/api/v1/owners/{owner}/commands", []string{"DELETE"}, "Cancel every queued command of an owner"},
			{"/api/v1/owners/{owner}/subscriptions/{handle}", []string{"DELETE"}, "Remove one subscription"},
			{"/api/v1/rounds", []string{"GET"}, "Synchronization round journal (?state=FORCED_INCOMPLETE)"},
			{"/api/v1/cache", []string{"GET"}, "Register cache (?buffer=front|back, ?format=text)"},
			{"/api/v1/scheduler", []string{"GET"}, "Queue lengths and per-board sync progress"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
