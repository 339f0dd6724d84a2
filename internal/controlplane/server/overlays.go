package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Overlays are free-form per-account JSON blobs the dashboard renders on
// top of the bot grid. Missing overlays read as an empty object.

func (s *Server) loadOverlay(ctx context.Context, username string) (map[string]any, error) {
	row := s.db.QueryRowContext(ctx, `SELECT data FROM overlays WHERE username=?`, username)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("overlay for %q is corrupt: %w", username, err)
	}
	return out, nil
}

func (s *Server) saveOverlay(ctx context.Context, username string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO overlays (username, data, updated_at) VALUES (?, ?, ?)
ON CONFLICT(username) DO UPDATE SET data=excluded.data, updated_at=excluded.updated_at
`, username, string(raw), time.Now().Format(time.RFC3339Nano))
	return err
}

func (s *Server) handleOverlayGet(w http.ResponseWriter, r *http.Request) {
	username := pathParam(r, "username")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	overlay, err := s.loadOverlay(ctx, username)
	if err != nil {
		writeError(w, 500, fmt.Sprintf("load overlay: %v", err))
		return
	}
	writeJSON(w, 200, overlay)
}

// handleOverlaySave merges posted keys into the stored overlay.
func (s *Server) handleOverlaySave(w http.ResponseWriter, r *http.Request) {
	username := pathParam(r, "username")
	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, 400, "invalid json body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	overlay, err := s.loadOverlay(ctx, username)
	if err != nil {
		writeError(w, 500, fmt.Sprintf("load overlay: %v", err))
		return
	}
	for k, v := range patch {
		overlay[k] = v
	}
	if err := s.saveOverlay(ctx, username, overlay); err != nil {
		writeError(w, 500, fmt.Sprintf("save overlay: %v", err))
		return
	}
	writeJSON(w, 200, overlay)
}
