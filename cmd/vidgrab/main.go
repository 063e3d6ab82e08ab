package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"vidgrab/internal/config"
	"vidgrab/internal/download"
	"vidgrab/internal/logging"
	"vidgrab/internal/server"
	"vidgrab/internal/store"
	"vidgrab/internal/thumb"
	"vidgrab/internal/ytdlp"
)

func main() {
	cfg := config.New()

	flag.StringVar(&cfg.Host, "host", cfg.Host, "Host address to bind")
	flag.IntVar(&cfg.Port, "port", cfg.Port, "Server port")
	flag.StringVar(&cfg.ScratchDir, "scratch-dir", "", "Directory for temporary download files (default: OS temp dir)")
	flag.StringVar(&cfg.DBPath, "db", "", "Path to SQLite database (default: OS cache dir: vidgrab/vidgrab.db)")
	flag.StringVar(&cfg.YTDLPPath, "ytdlp", "", "Path to the yt-dlp binary (default: resolve from PATH)")
	flag.DurationVar(&cfg.DownloadBudget, "budget", cfg.DownloadBudget, "Wall-clock budget for buffered downloads")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug|info|warn|error")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.ResolveScratchDir(); err != nil {
		log.Fatalf("resolve scratch dir: %v", err)
	}
	if err := cfg.ResolveDBPath(); err != nil {
		log.Fatalf("resolve db path: %v", err)
	}

	logging.Init(logging.ParseLevel(cfg.LogLevel))

	if err := os.MkdirAll(cfg.AbsScratchDir, 0o755); err != nil {
		log.Fatalf("create scratch dir: %v", err)
	}

	// Check the extraction tool early; every download depends on it.
	tool := ytdlp.New(cfg.YTDLPPath)
	if err := tool.Check(); err != nil {
		log.Fatalf("yt-dlp not found: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.AbsDBPath), 0o755); err != nil {
		log.Fatalf("create db dir: %v", err)
	}
	st, err := store.Open(cfg.AbsDBPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	// Provider wiring happens once here; handlers only see capabilities.
	providers := server.Providers{
		Meta:       tool,
		Dispatcher: download.NewDispatcher(tool, cfg.AbsScratchDir, cfg.DownloadBudget),
		Thumbs:     thumb.NewFetcher(0),
	}
	handler := server.New(providers, st)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      0, // streamed downloads outlive any fixed write timeout
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logging.LogServerStart(cfg.Addr, cfg.Summary())
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-shutdownCtx.Done()
	logging.LogServerShutdown("shutdown signal received; draining", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.LogServerShutdown("http shutdown", err)
	}
	if err := st.Close(); err != nil {
		logging.LogServerShutdown("store close", err)
	}
	logging.LogServerShutdown("shutdown complete", nil)
}
