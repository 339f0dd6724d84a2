package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/botfarm/gofarm/pkg/farmapi"
	"github.com/botfarm/gofarm/pkg/secrets"
)

type createAccountRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Plugin   string `json:"plugin"`
	Args     string `json:"args"`
	RSN      string `json:"rsn"`
}

func (s *Server) handleAccountsCreate(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeError(w, 400, "username is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if existing, err := s.getAccount(ctx, req.Username); err != nil {
		writeError(w, 500, fmt.Sprintf("db get: %v", err))
		return
	} else if existing != nil {
		writeError(w, 409, "account already exists")
		return
	}

	var passwordEnc string
	if req.Password != "" {
		if s.masterKey == nil {
			writeError(w, 500, secrets.MasterKeyEnv+" not configured")
			return
		}
		enc, err := secrets.EncryptString(s.masterKey, req.Password)
		if err != nil {
			writeError(w, 500, fmt.Sprintf("encrypt: %v", err))
			return
		}
		passwordEnc = enc
	}

	now := time.Now()
	a := Account{
		Username:    req.Username,
		PasswordEnc: passwordEnc,
		Plugin:      req.Plugin,
		Args:        req.Args,
		RSN:         strings.TrimSpace(req.RSN),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.insertAccount(ctx, a); err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, a)
}

type updateAccountRequest struct {
	Password *string `json:"password"`
	Plugin   *string `json:"plugin"`
	Args     *string `json:"args"`
	RSN      *string `json:"rsn"`
}

func (s *Server) handleAccountUpdate(w http.ResponseWriter, r *http.Request) {
	username := pathParam(r, "username")
	var req updateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
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

	if req.Password != nil && *req.Password != "" {
		if s.masterKey == nil {
			writeError(w, 500, secrets.MasterKeyEnv+" not configured")
			return
		}
		enc, err := secrets.EncryptString(s.masterKey, *req.Password)
		if err != nil {
			writeError(w, 500, fmt.Sprintf("encrypt: %v", err))
			return
		}
		a.PasswordEnc = enc
	}
	if req.Plugin != nil {
		a.Plugin = *req.Plugin
	}
	if req.Args != nil {
		a.Args = *req.Args
	}
	if req.RSN != nil {
		a.RSN = strings.TrimSpace(*req.RSN)
	}

	if err := s.updateAccount(ctx, *a); err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, a)
}

// handleAccountsList joins stored accounts with the agent's live status.
// An unreachable agent degrades every row to "offline" rather than failing
// the listing.
func (s *Server) handleAccountsList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	accounts, err := s.listAccounts(ctx)
	if err != nil {
		writeError(w, 500, fmt.Sprintf("db list: %v", err))
		return
	}

	byName := map[string]farmapi.BotSummary{}
	agentUp := true
	bots, err := s.agent.Bots(ctx)
	if err != nil {
		srvLog.WithError(err).Warn("agent status unavailable")
		agentUp = false
	}
	for _, b := range bots {
		byName[b.Username] = b
	}

	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		v := accountView{Account: a, HasPassword: a.PasswordEnc != "", Status: "stopped"}
		if !agentUp {
			v.Status = "offline"
		} else if b, ok := byName[a.Username]; ok {
			v.Status = b.Status
			v.PID = b.PID
			v.StartTime = b.StartTime
		}
		views = append(views, v)
	}
	writeJSON(w, 200, views)
}

// handleLaunchConfig returns the decrypted launch configuration for the
// agent. Loopback use only; a reverse proxy must not expose it.
func (s *Server) handleLaunchConfig(w http.ResponseWriter, r *http.Request) {
	username := pathParam(r, "username")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
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

	password := ""
	if a.PasswordEnc != "" {
		if s.masterKey == nil {
			writeError(w, 500, secrets.MasterKeyEnv+" not configured")
			return
		}
		pw, err := secrets.DecryptString(s.masterKey, a.PasswordEnc)
		if err != nil {
			writeError(w, 500, fmt.Sprintf("decrypt: %v", err))
			return
		}
		password = pw
	}

	writeJSON(w, 200, farmapi.LaunchConfig{
		Username: a.Username,
		Password: password,
		Plugin:   a.Plugin,
		Args:     a.Args,
		RSN:      a.RSN,
	})
}
