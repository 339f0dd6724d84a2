package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/botfarm/gofarm/internal/controlplane/server"
	"github.com/botfarm/gofarm/pkg/logger"
)

func main() {
	// Load .env (best-effort). If missing, fall back to real env vars.
	_ = godotenv.Load()

	getenv := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return def
	}

	var (
		listenAddr   = flag.String("listen", getenv("FARM_SERVER_LISTEN", ":8080"), "HTTP listen address")
		dbPath       = flag.String("db", getenv("FARM_SERVER_DB", "data/controlplane.db"), "SQLite db file path")
		secretsDir   = flag.String("secrets-dir", getenv("FARM_SECRETS_DIR", ""), "optional badger secrets directory")
		agentURL     = flag.String("agent", getenv("FARM_AGENT_URL", "http://localhost:3001"), "bot agent base URL")
		dashboardDir = flag.String("dashboard", getenv("FARM_DASHBOARD_DIR", ""), "optional static dashboard directory")
		logLevel     = flag.String("log-level", getenv("FARM_LOG_LEVEL", "info"), "daemon log level")
		logFile      = flag.String("log-file", getenv("FARM_SERVER_LOG", ""), "daemon log file (console only if empty)")
	)
	flag.Parse()

	if err := logger.Setup(logger.Config{Level: *logLevel, OutputFile: *logFile}); err != nil {
		log.Fatalf("logger setup failed: %v", err)
	}

	srv, err := server.New(server.Config{
		DBPath:       *dbPath,
		SecretsDir:   *secretsDir,
		AgentURL:     *agentURL,
		DashboardDir: *dashboardDir,
	})
	if err != nil {
		log.Fatalf("init server failed: %v", err)
	}
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:              *listenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("controlplane listening on %s", *listenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server error: %v", err)
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-stopCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)

	fmt.Println("server stopped")
}
