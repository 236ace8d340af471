package facts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadSeedFile reads a YAML list of records.
func LoadSeedFile(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer file.Close()

	var records []Record
	if err := yaml.NewDecoder(file).Decode(&records); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode seed file: %w", err)
	}

	for i, r := range records {
		if r.PlantName == "" {
			return nil, fmt.Errorf("seed record %d has no Plant Name", i)
		}
	}
	return records, nil
}

// Seed upserts records into store and returns how many were written.
func Seed(ctx context.Context, store Store, records []Record) (int, error) {
	for i, r := range records {
		if err := store.Upsert(ctx, r); err != nil {
			return i, fmt.Errorf("failed to upsert %q: %w", r.PlantName, err)
		}
	}
	return len(records), nil
}
