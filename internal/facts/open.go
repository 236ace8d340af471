package facts

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Backends accepted by Open.
const (
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendPostgres = DriverPostgres
	BackendSQLite   = DriverSQLite
)

// Options selects and configures a Store.
type Options struct {
	Backend string
	// URI is the MongoDB URI or the SQL data source name.
	URI        string
	Database   string
	Collection string
	// SeedFile preloads the memory backend.
	SeedFile string
}

// Open builds the configured store.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (Store, error) {
	switch opts.Backend {
	case BackendMemory:
		store := NewMemoryStore()
		if opts.SeedFile == "" {
			return store, nil
		}
		records, err := LoadSeedFile(opts.SeedFile)
		if err != nil {
			return nil, err
		}
		if _, err := Seed(ctx, store, records); err != nil {
			return nil, err
		}
		logger.Info("Fact store seeded", zap.String("file", opts.SeedFile), zap.Int("records", len(records)))
		return store, nil
	case BackendMongo:
		return NewMongoStore(ctx, opts.URI, opts.Database, opts.Collection, logger)
	case BackendPostgres, BackendSQLite:
		return NewSQLStore(opts.Backend, opts.URI, logger)
	default:
		return nil, fmt.Errorf("unknown fact store backend %q", opts.Backend)
	}
}
