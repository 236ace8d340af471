package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Brownie44l1/plant-api/internal/classify"
	"github.com/Brownie44l1/plant-api/internal/config"
	"github.com/Brownie44l1/plant-api/internal/facts"
	"github.com/Brownie44l1/plant-api/internal/handlers"
	"github.com/Brownie44l1/plant-api/internal/ingest"
	"github.com/Brownie44l1/plant-api/internal/logging"
	"github.com/Brownie44l1/plant-api/internal/model"
)

func main() {
	configPath := flag.String("config", "configs/config.yml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Production)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting plant classification service...")

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}

	logger.Info("Server exited")
}

// run wires the service and blocks until a shutdown signal. Resources are
// released on every return path.
func run(cfg *config.Config, logger *zap.Logger) error {
	labels, err := model.LoadLabels(cfg.Model.LabelsPath)
	if err != nil {
		return fmt.Errorf("failed to load labels from %s: %w", cfg.Model.LabelsPath, err)
	}

	classifier, err := model.NewONNXClassifier(cfg.ONNX(len(labels)))
	if err != nil {
		return fmt.Errorf("failed to load classifier from %s: %w", cfg.Model.Path, err)
	}
	defer classifier.Close()

	logger.Info("Classifier loaded",
		zap.String("model", cfg.Model.Path),
		zap.Int("classes", len(labels)),
		zap.String("layout", cfg.Model.Layout))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Facts.Timeout)
	store, err := facts.Open(ctx, cfg.FactStore(), logger)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to open %s fact store: %w", cfg.Facts.Backend, err)
	}
	defer store.Close()

	uploads, err := ingest.NewStore(cfg.Upload.Dir, cfg.Upload.UniqueNames, logger)
	if err != nil {
		return fmt.Errorf("failed to prepare upload directory: %w", err)
	}

	orchestrator := classify.New(classify.Config{
		Resolver:   uploads,
		Decoder:    ingest.Decoder{Size: cfg.Model.ImageSize, Layout: model.Layout(cfg.Model.Layout)},
		Classifier: classifier,
		Labels:     labels,
		Lookup:     facts.NewLookup(store, cfg.Facts.Timeout, logger),
		Threshold:  cfg.Classifier.ConfidenceThreshold,
	}, logger)

	gin.SetMode(cfg.Server.Mode)
	router := handlers.NewRouter(handlers.NewHandler(uploads, orchestrator, logger), logger)

	serverAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	logger.Info("Server running",
		zap.String("address", serverAddr),
		zap.String("upload_dir", uploads.Dir()),
		zap.String("facts_backend", cfg.Facts.Backend),
		zap.Float64("threshold", cfg.Classifier.ConfidenceThreshold))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("failed to start server: %w", err)
	}

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
