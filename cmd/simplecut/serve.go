package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/simplecut/simplecut-agent/internal/api"
	"github.com/simplecut/simplecut-agent/internal/config"
	"github.com/simplecut/simplecut-agent/internal/db"
	"github.com/simplecut/simplecut-agent/internal/editor"
	"github.com/simplecut/simplecut-agent/internal/encode"
	"github.com/simplecut/simplecut-agent/internal/hwaccel"
	"github.com/simplecut/simplecut-agent/internal/logging"
	"github.com/simplecut/simplecut-agent/internal/playback"
	"github.com/simplecut/simplecut-agent/internal/probe"
	"github.com/simplecut/simplecut-agent/internal/store"
	"github.com/simplecut/simplecut-agent/internal/ui"
)

func runServe() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	appLog, err := logging.OpenAppLog(cfg.LogDir())
	if err != nil {
		return fmt.Errorf("failed to open app log: %w", err)
	}
	defer appLog.Close()

	logger := logging.NewAppLogger(cfg.LogLevel(), appLog)
	logger.Info("starting simplecut agent",
		"version", config.Version,
		"data_dir", logging.SanitizePath(cfg.DataDir()),
		"config_file", cfg.File(),
	)

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := store.NewRepository(database.Conn())

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                  SIMPLECUT AGENT v%-24s║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-28d║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s║\n", authToken)
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	detector := hwaccel.NewDetector(cfg.FFmpegPath(), cfg.HWAccelDisabled(), logger)
	go detector.Encoder(context.Background())

	controller := encode.NewController(encode.Config{
		Binary:   cfg.FFmpegPath(),
		LogDir:   cfg.LogDir(),
		Encoders: detector,
		Recorder: repo,
		Logger:   logger,
	})

	player := playback.NewServer(logger)

	workspace, err := editor.New(context.Background(), editor.Config{
		Prober:   probe.NewProber(cfg.FFprobePath(), logger),
		Encoder:  controller,
		Player:   player,
		Settings: repo,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	defer workspace.Close()

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Workspace:  workspace,
		Repository: repo,
		Playback:   player,
		Encoders:   detector,
		Logger:     logger,
		StartTime:  startTime,
		Version:    config.Version,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Source: workspace,
			Logger: logger,
			URL:    fmt.Sprintf("http://%s", apiServer.Addr()),
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")

	stopExport(controller, logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// stopExport cancels a running export and waits for the encoder to finalise
// the container, bounded by the terminate grace period.
func stopExport(controller *encode.Controller, logger *slog.Logger) {
	finished := make(chan struct{})
	var once sync.Once
	unsub := controller.Subscribe(func(ev encode.Event) {
		if ev.Kind == encode.EventFinished {
			once.Do(func() { close(finished) })
		}
	})
	defer unsub()

	if !controller.Cancel() {
		return
	}
	logger.Info("cancelling running export")
	select {
	case <-finished:
	case <-time.After(encode.DefaultTerminateGrace + time.Second):
		logger.Warn("export did not stop within the grace period")
	}
}

func ensureAuthToken(repo store.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, api.AuthTokenKey)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, api.AuthTokenKey, token); err != nil {
		return "", err
	}

	return token, nil
}
