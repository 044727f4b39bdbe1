package main

import (
	"context"
	"ctchen222/Tic-Tac-Toe-AI/internal/api/service"
	"ctchen222/Tic-Tac-Toe-AI/internal/config"
	"ctchen222/Tic-Tac-Toe-AI/internal/db"
	"ctchen222/Tic-Tac-Toe-AI/internal/events"
	"ctchen222/Tic-Tac-Toe-AI/internal/hub"
	"ctchen222/Tic-Tac-Toe-AI/internal/logger"
	"ctchen222/Tic-Tac-Toe-AI/internal/server"
	"ctchen222/Tic-Tac-Toe-AI/internal/session"
	"ctchen222/Tic-Tac-Toe-AI/internal/telemetry"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var flagWriteConfig = flag.Bool("write-config", false, "Write the default config file and exit")

func main() {
	flag.Parse()

	if *flagWriteConfig {
		path, err := config.WriteDefault()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(path)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize telemetry
	shutdown, err := telemetry.InitOtel(ctx, cfg.Telemetry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize telemetry: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Error("Error shutting down telemetry", "error", err)
		}
	}()
	logger.Init(cfg.Log.SlogLevel())

	profiles, err := cfg.OpponentProfiles()
	if err != nil {
		slog.Error("Invalid opponent profiles", "error", err)
		os.Exit(1)
	}

	// Publish session events to Redis when configured
	var listeners []session.Listener
	if cfg.Redis.Addr != "" {
		rdb, err := db.NewRedisClient(ctx, cfg.Redis.Addr)
		if err != nil {
			slog.Error("Failed to initialize redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		listeners = append(listeners, events.NewRedisPublisher(rdb, cfg.Redis.Channel))
		slog.Info("Publishing session events", "redis.addr", cfg.Redis.Addr, "redis.channel", cfg.Redis.Channel)
	}

	// Create hub
	h := hub.NewHub(hub.Options{
		Profiles:     profiles,
		Heartbeat:    cfg.Server.HeartbeatInterval,
		AutoOpponent: cfg.Session.AutoOpponent,
		Listeners:    listeners,
	})
	go h.Run(ctx)

	sessionService := service.NewSessionService(cfg.Session.Secret, cfg.Session.TokenTTL, profiles)

	// Create the Gin-based server
	srv := server.NewServer(h, sessionService)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Engine(),
	}

	go func() {
		slog.Info("http server started", "server.addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("ListenAndServe failed", "error", err)
			stop <- syscall.SIGTERM
		}
	}()

	<-stop

	slog.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	// Close every room before telemetry is flushed
	cancel()
	<-h.Done()

	slog.Info("Server exiting")
}
