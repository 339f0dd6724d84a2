package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/botfarm/gofarm/pkg/farmapi"
)

// Bot control passes through to the agent. The controlplane only checks
// that the account exists so the dashboard gets a clean 404 instead of an
// agent error.

func (s *Server) handleAccountStart(w http.ResponseWriter, r *http.Request) {
	username := pathParam(r, "username")
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	a, err := s.getAccount(ctx, username)
	if err != nil {
		writeError(w, 500, fmt.Sprintf("db get: %v", err))
		return
	}
	if a == nil {
		writeError(w, 404, "account not found")
		return
	}

	res, err := s.agent.StartBot(ctx, farmapi.StartBotRequest{Username: username})
	if err != nil {
		if farmapi.IsNotFound(err) {
			writeError(w, 404, "account not found")
			return
		}
		writeError(w, 502, fmt.Sprintf("agent start: %v", err))
		return
	}
	writeJSON(w, 200, res)
}

func (s *Server) handleAccountStop(w http.ResponseWriter, r *http.Request) {
	username := pathParam(r, "username")
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	if err := s.agent.StopBot(ctx, username); err != nil {
		writeError(w, 502, fmt.Sprintf("agent stop: %v", err))
		return
	}
	writeJSON(w, 200, map[string]any{"success": true})
}

func (s *Server) handleAccountStats(w http.ResponseWriter, r *http.Request) {
	username := pathParam(r, "username")
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	stats, err := s.agent.Stats(ctx, username)
	if err != nil {
		if farmapi.IsNotFound(err) {
			writeError(w, 404, "account not found")
			return
		}
		writeError(w, 502, fmt.Sprintf("agent stats: %v", err))
		return
	}
	writeJSON(w, 200, stats)
}
