package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Server is the agent's HTTP surface: start/stop, bot list, log and stat
// queries, and the websocket push channel.
type Server struct {
	sup *Supervisor
	hub *Hub
}

func NewServer(sup *Supervisor, hub *Hub) *Server {
	return &Server{sup: sup, hub: hub}
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", wrap(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	r.POST("/agent/start", wrap(s.handleStart))
	r.POST("/agent/stop", wrap(s.handleStop))

	api := r.Group("/api")
	api.GET("/bots", wrap(s.handleBots))
	api.GET("/logs/:username", wrap(s.handleLogs))
	api.GET("/stats/:username", wrap(s.handleStats))

	r.GET("/ws", wrap(s.hub.ServeWS))

	return r
}

type startRequest struct {
	Username string `json:"username"`
	Plugin   string `json:"plugin"`
	Args     string `json:"args"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		writeError(w, 400, "invalid json body")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	pid, alreadyRunning, err := s.sup.Start(ctx, req.Username, StartOverrides{Plugin: req.Plugin, Args: req.Args})
	if err != nil {
		switch {
		case errors.Is(err, ErrAccountNotFound):
			writeError(w, 404, "account not found")
		case errors.Is(err, ErrNoCredential):
			writeError(w, 400, "no password")
		default:
			writeError(w, 500, fmt.Sprintf("start failed: %v", err))
		}
		return
	}
	writeJSON(w, 200, map[string]any{"success": true, "pid": pid, "already_running": alreadyRunning})
}

type stopRequest struct {
	Username string `json:"username"`
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	var req stopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		writeError(w, 400, "invalid json body")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := s.sup.Stop(ctx, req.Username); err != nil {
		writeError(w, 500, fmt.Sprintf("stop failed: %v", err))
		return
	}
	writeJSON(w, 200, map[string]any{"success": true})
}

func (s *Server) handleBots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, s.sup.List())
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	username := pathParam(r, "username")
	view, err := s.sup.LogsFor(username)
	if err != nil {
		writeError(w, 500, fmt.Sprintf("read log: %v", err))
		return
	}
	writeJSON(w, 200, view)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	username := pathParam(r, "username")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := s.sup.Stats(ctx, username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			writeError(w, 404, "account not found")
			return
		}
		writeError(w, 500, fmt.Sprintf("stats failed: %v", err))
		return
	}
	writeJSON(w, 200, stats)
}

type paramsKeyType string

const paramsKey paramsKeyType = "gofarm_path_params"

// wrap adapts net/http handlers to gin, injecting path params into the
// request context.
func wrap(h func(http.ResponseWriter, *http.Request)) gin.HandlerFunc {
	return func(c *gin.Context) {
		m := map[string]string{}
		for _, p := range c.Params {
			m[p.Key] = p.Value
		}
		ctx := context.WithValue(c.Request.Context(), paramsKey, m)
		c.Request = c.Request.WithContext(ctx)
		h(c.Writer, c.Request)
	}
}

func pathParam(r *http.Request, key string) string {
	if m, ok := r.Context().Value(paramsKey).(map[string]string); ok {
		return m[key]
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
