package server

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/botfarm/gofarm/pkg/farmapi"
	"github.com/botfarm/gofarm/pkg/secrets"
)

var srvLog = logrus.WithField("component", "controlplane")

type Config struct {
	DBPath       string
	SecretsDir   string // optional badger store for env-style secrets
	AgentURL     string
	DashboardDir string // optional static dashboard assets
	HiscoresURL  string // override for tests; default is the official endpoint
}

// Server is the dashboard/control-plane API: account, settings and overlay
// persistence plus proxying bot control to the agent.
type Server struct {
	cfg     Config
	db      *sql.DB
	secrets *secrets.Store
	agent   *farmapi.Client

	masterKey []byte // nil when FARM_MASTER_KEY is not configured
}

func New(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path is required")
	}
	if cfg.AgentURL == "" {
		cfg.AgentURL = "http://localhost:3001"
	}
	if cfg.HiscoresURL == "" {
		cfg.HiscoresURL = defaultHiscoresURL
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite is happiest on a single connection
	db.SetMaxIdleConns(1)

	s := &Server{cfg: cfg, db: db, agent: farmapi.New(cfg.AgentURL)}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if cfg.SecretsDir != "" {
		store, err := secrets.Open(secrets.OpenOptions{Path: cfg.SecretsDir})
		if err != nil {
			srvLog.WithError(err).Warn("secrets store unavailable, env vars only")
		} else {
			s.secrets = store
		}
	}

	if raw := s.getenv(secrets.MasterKeyEnv); raw != "" {
		key, err := secrets.ParseMasterKey(raw)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.masterKey = key
	} else {
		srvLog.Warnf("%s not set: account credential writes are disabled", secrets.MasterKeyEnv)
	}

	return s, nil
}

func (s *Server) Close() error {
	if s.secrets != nil {
		_ = s.secrets.Close()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", wrap(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	api := r.Group("/api")
	api.GET("/settings", wrap(s.handleSettingsGet))
	api.POST("/settings", wrap(s.handleSettingsSave))
	api.POST("/test-webhook", wrap(s.handleTestWebhook))
	api.GET("/hiscores", wrap(s.handleHiscores))

	accounts := api.Group("/accounts")
	accounts.GET("", wrap(s.handleAccountsList))
	accounts.POST("", wrap(s.handleAccountsCreate))
	byName := accounts.Group("/:username")
	byName.PUT("", wrap(s.handleAccountUpdate))
	byName.GET("/launch-config", wrap(s.handleLaunchConfig))
	byName.POST("/start", wrap(s.handleAccountStart))
	byName.POST("/stop", wrap(s.handleAccountStop))
	byName.GET("/stats", wrap(s.handleAccountStats))

	r.GET("/overlay/:username", wrap(s.handleOverlayGet))
	r.POST("/overlay/:username", wrap(s.handleOverlaySave))

	if s.cfg.DashboardDir != "" {
		r.NoRoute(gin.WrapH(http.FileServer(http.Dir(s.cfg.DashboardDir))))
	}

	return r
}
