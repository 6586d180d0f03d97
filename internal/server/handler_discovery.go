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
	respond(w, r, http.StatusOK, discoveryResponse{
		Name:        "onelane API",
		Version:     "v1",
		Description: "Single-lane bridge scheduler: vehicle registration, crossing arbitration and live state",
		Endpoints: []endpointInfo{
			{"/ws", []string{"GET"}, "Websocket command channel and live event stream"},
			{"/api/v1/state", []string{"GET"}, "Current bridge snapshot"},
			{"/api/v1/reset", []string{"POST"}, "Drop every vehicle and free the bridge"},
			{"/api/v1/vehicles", []string{"POST"}, "Register a vehicle"},
			{"/api/v1/vehicles/{id}", []string{"GET"}, "Single vehicle detail"},
			{"/api/v1/vehicles/{id}/request-crossing", []string{"POST"}, "Ask for the bridge; denials are returned with status 200"},
			{"/api/v1/vehicles/{id}/finish-crossing", []string{"POST"}, "Leave the bridge and return to the queue or exit"},
			{"/api/v1/events", []string{"GET"}, "Event journal, newest first (?limit, ?offset, ?type)"},
			{"/api/v1/sse/events", []string{"GET"}, "Server-Sent Events stream of broadcast events"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
