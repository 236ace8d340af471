// Package facts resolves plant labels to reference records describing the
// species. Records live in an external store keyed by exact plant name.
package facts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// NotAvailable marks a field with no reference data.
const NotAvailable = "N/A"

// ErrNotFound is returned by a Store when no record has the requested name.
var ErrNotFound = errors.New("plant not found")

// PlantFact is the descriptive data shown next to a classification.
type PlantFact struct {
	BotanicalName       string `json:"botanical_name"`
	ChemicalComponents  string `json:"chemical_components"`
	MedicinalProperties string `json:"medicinal_properties"`
	MedicalUses         string `json:"medical_uses"`
}

// Unavailable is a PlantFact with every field set to NotAvailable.
func Unavailable() PlantFact {
	return PlantFact{
		BotanicalName:       NotAvailable,
		ChemicalComponents:  NotAvailable,
		MedicinalProperties: NotAvailable,
		MedicalUses:         NotAvailable,
	}
}

// Record is a stored reference document. Field names follow the source
// collection ("Plant Name", "Botanical Name", ...).
type Record struct {
	PlantName           string `yaml:"Plant Name" bson:"Plant Name" json:"plant_name"`
	BotanicalName       string `yaml:"Botanical Name" bson:"Botanical Name" json:"botanical_name"`
	ChemicalComponents  string `yaml:"Chemical Components" bson:"Chemical Components" json:"chemical_components"`
	MedicinalProperties string `yaml:"Medicinal Properties" bson:"Medicinal Properties" json:"medicinal_properties"`
	MedicalUses         string `yaml:"Medical Uses" bson:"Medical Uses" json:"medical_uses"`
}

// Fact projects the record, substituting NotAvailable for empty fields.
func (r Record) Fact() PlantFact {
	return PlantFact{
		BotanicalName:       orNA(r.BotanicalName),
		ChemicalComponents:  orNA(r.ChemicalComponents),
		MedicinalProperties: orNA(r.MedicinalProperties),
		MedicalUses:         orNA(r.MedicalUses),
	}
}

func orNA(s string) string {
	if s == "" {
		return NotAvailable
	}
	return s
}

// Store is a keyed collection of plant records.
type Store interface {
	// FindByName returns the record whose PlantName equals name exactly,
	// or ErrNotFound.
	FindByName(ctx context.Context, name string) (*Record, error)
	// Upsert inserts or replaces the record with the same PlantName.
	Upsert(ctx context.Context, rec Record) error
	Close() error
}

// Lookup enriches labels with reference data.
type Lookup struct {
	store   Store
	timeout time.Duration
	logger  *zap.Logger
}

// NewLookup wraps store. A zero timeout leaves the caller's deadline untouched.
func NewLookup(store Store, timeout time.Duration, logger *zap.Logger) *Lookup {
	return &Lookup{
		store:   store,
		timeout: timeout,
		logger:  logger,
	}
}

// Lookup returns the facts for label. A label with no record is not an
// error: the result is Unavailable and a warning is logged so mismatches
// between classifier labels and the store can be found.
func (l *Lookup) Lookup(ctx context.Context, label string) (PlantFact, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	rec, err := l.store.FindByName(ctx, label)
	if errors.Is(err, ErrNotFound) {
		l.logger.Warn("Plant not found in fact store", zap.String("plant", label))
		return Unavailable(), nil
	}
	if err != nil {
		return Unavailable(), fmt.Errorf("fact lookup for %q: %w", label, err)
	}
	return rec.Fact(), nil
}
