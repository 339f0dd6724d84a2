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

	"github.com/botfarm/gofarm/internal/agent"
	"github.com/botfarm/gofarm/pkg/farmapi"
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
		configPath = flag.String("config", getenv("FARM_AGENT_CONFIG", ""), "optional YAML config file")
		listenAddr = flag.String("listen", getenv("FARM_AGENT_LISTEN", ""), "HTTP listen address")
		serverURL  = flag.String("server", getenv("FARM_SERVER_URL", ""), "controlplane base URL")
		logDir     = flag.String("log-dir", getenv("FARM_LOG_DIR", ""), "per-account rolling log directory")
		workDir    = flag.String("work-dir", getenv("FARM_WORK_DIR", ""), "launcher working directory")
		logLevel   = flag.String("log-level", getenv("FARM_LOG_LEVEL", "info"), "daemon log level")
		logFile    = flag.String("log-file", getenv("FARM_AGENT_LOG", ""), "daemon log file (console only if empty)")
	)
	flag.Parse()

	if err := logger.Setup(logger.Config{Level: *logLevel, OutputFile: *logFile}); err != nil {
		log.Fatalf("logger setup failed: %v", err)
	}

	cfg, err := agent.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	// Flags and env override the file.
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}
	if *logDir != "" {
		cfg.LogDir = *logDir
	}
	if *workDir != "" {
		cfg.WorkDir = *workDir
	}

	settings := farmapi.New(cfg.ServerURL)
	alerts := agent.NewAlertSink(settings)

	sup := agent.NewSupervisor(*cfg, agent.NewRemoteAccounts(cfg.ServerURL), alerts)
	hub := agent.NewHub(cfg.SnapshotInterval, sup.Snapshot)
	sup.AttachHub(hub)

	alertCtx, alertCancel := context.WithCancel(context.Background())
	defer alertCancel()
	go alerts.Run(alertCtx)

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           agent.NewServer(sup, hub).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("agent listening on %s", cfg.ListenAddr)
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
	hub.Close()
	sup.Shutdown()

	fmt.Println("agent stopped")
}
