package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Settings are a flat key/value blob. Each value is stored as JSON so the
// dashboard can round-trip strings, numbers and booleans unchanged.

func (s *Server) loadSettings(ctx context.Context) (map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]any{}
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		out[key] = v
	}
	return out, rows.Err()
}

func (s *Server) saveSettings(ctx context.Context, patch map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for key, v := range patch {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal setting %q: %w", key, err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO settings (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value
`, key, string(raw)); err != nil {
			return fmt.Errorf("save setting %q: %w", key, err)
		}
	}
	return tx.Commit()
}

func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	settings, err := s.loadSettings(ctx)
	if err != nil {
		writeError(w, 500, fmt.Sprintf("load settings: %v", err))
		return
	}
	writeJSON(w, 200, settings)
}

// handleSettingsSave merges the posted keys into stored settings and
// returns the full merged blob.
func (s *Server) handleSettingsSave(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, 400, "invalid json body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.saveSettings(ctx, patch); err != nil {
		writeError(w, 500, fmt.Sprintf("save settings: %v", err))
		return
	}
	settings, err := s.loadSettings(ctx)
	if err != nil {
		writeError(w, 500, fmt.Sprintf("load settings: %v", err))
		return
	}
	writeJSON(w, 200, settings)
}
