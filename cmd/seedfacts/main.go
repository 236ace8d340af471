// Command seedfacts imports plant fact records from a YAML file into the
// configured fact store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Brownie44l1/plant-api/internal/config"
	"github.com/Brownie44l1/plant-api/internal/facts"
	"github.com/Brownie44l1/plant-api/internal/logging"
)

func main() {
	configPath := flag.String("config", "configs/config.yml", "path to the YAML config file")
	file := flag.String("file", "configs/plants.yml", "YAML file with fact records")
	timeout := flag.Duration("timeout", time.Minute, "overall import timeout")
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

	records, err := facts.LoadSeedFile(*file)
	if err != nil {
		logger.Fatal("Failed to read seed file", zap.String("file", *file), zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	opts := cfg.FactStore()
	// The memory backend would only seed itself; import the file given here instead.
	opts.SeedFile = ""
	store, err := facts.Open(ctx, opts, logger)
	if err != nil {
		logger.Fatal("Failed to open fact store", zap.String("backend", cfg.Facts.Backend), zap.Error(err))
	}
	defer store.Close()

	n, err := facts.Seed(ctx, store, records)
	if err != nil {
		logger.Fatal("Import failed", zap.Int("imported", n), zap.Error(err))
	}

	logger.Info("Import complete",
		zap.String("backend", cfg.Facts.Backend),
		zap.Int("records", n))
}
