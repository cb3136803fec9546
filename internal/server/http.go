package server

import (
	"encoding/json"
	"net/http"
)

// NewHTTPHandler returns an http.Handler with all routes registered. The
// WebSocket endpoint is served at the root. When adminToken is non-empty,
// GET /v1/connections requires Authorization: Bearer <token>.
func (s *RelayServer) NewHTTPHandler(adminToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.Handle("GET /v1/connections", RequireToken(adminToken, http.HandlerFunc(s.handleConnections)))
	mux.HandleFunc("GET /", s.handleWebSocket)
	return mux
}

// handleHealth handles GET /v1/health.
func (s *RelayServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"connections": s.Presence.Len(),
	})
}

// handleConnections handles GET /v1/connections.
// Returns the live connection roster, most recently active first.
func (s *RelayServer) handleConnections(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"connections": s.Presence.Roster(),
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
