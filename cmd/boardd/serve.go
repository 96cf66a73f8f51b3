package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"departure-board-backend/config"
	"departure-board-backend/internal/api"
	"departure-board-backend/internal/darwin"
	"departure-board-backend/internal/db"
	"departure-board-backend/internal/dispatch"
	"departure-board-backend/internal/notification"
	"departure-board-backend/internal/poller"
	"departure-board-backend/internal/stations"
	"departure-board-backend/internal/store"
	"departure-board-backend/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the poll loop and the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(configPath)
	},
}

func serve(configPath string) error {
	logger := log.New(os.Stdout, "boardd ", log.LstdFlags)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	gormDB, err := db.Init(&cfg.Database, cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)

	var notifier poller.Notifier
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, &webpushOptions)
		pool.Start(ctx)
		notifier = pool
	} else {
		logger.Println("Warning: VAPID keys are not configured, issue alerts are disabled")
	}

	pollerSvc := poller.NewService(
		func() (*config.Config, error) { return config.Load(configPath) },
		appStore,
		newDarwinClient(cfg.Darwin, logger),
		dispatch.New(newRenderer(cfg.Images, logger), logger),
		notifier,
		loadStations(cfg.StationsFile, logger),
		logger,
	)
	go pollerSvc.Run(ctx)

	router := api.NewRouter(appStore, &webpushOptions, cfg.Server, cfg.Images.OutputDir)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server Shutdown: %w", err)
	}

	logger.Println("Server gracefully stopped")
	return nil
}

func newDarwinClient(cfg config.DarwinConfig, logger *log.Logger) *darwin.Client {
	return darwin.New(darwin.Options{
		Endpoint:        cfg.Endpoint,
		APIKey:          cfg.APIKey,
		Timeout:         cfg.Timeout,
		RequestsPerSec:  cfg.RequestsPerSec,
		BoardAttempts:   cfg.BoardAttempts,
		DetailsAttempts: cfg.DetailsAttempts,
		DetailsTTL:      time.Duration(cfg.DetailsCacheTTL) * time.Second,
	}, logger)
}

// newRenderer runs renders in the worker binary when one is configured,
// otherwise in this process.
func newRenderer(cfg config.ImagesConfig, logger *log.Logger) dispatch.Renderer {
	if cfg.WorkerPath == "" {
		logger.Println("Warning: images.worker_path is not set, rendering in-process")
		return worker.New(cfg.FontDir, logger)
	}
	r := dispatch.NewProcessRenderer(cfg.WorkerPath, cfg.Timeout, logger)
	if cfg.FontDir != "" {
		r.Args = []string{"--fonts", cfg.FontDir}
	}
	return r
}

func loadStations(path string, logger *log.Logger) *stations.Directory {
	dir, err := stations.Load(path)
	if err != nil {
		logger.Printf("Warning: %v; routes must be configured by station code", err)
		return stations.Empty()
	}
	logger.Printf("loaded %d stations from %s", dir.Len(), path)
	return dir
}
