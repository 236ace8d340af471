// Package classify runs the decode, score, threshold and enrich flow for a
// stored upload.
package classify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"go.uber.org/zap"

	"github.com/Brownie44l1/plant-api/internal/facts"
	"github.com/Brownie44l1/plant-api/internal/ingest"
	"github.com/Brownie44l1/plant-api/internal/model"
)

// UnknownPlant is reported when the top score is below the threshold.
const UnknownPlant = "Unknown Plant"

// DefaultThreshold is the minimum confidence for a named result.
const DefaultThreshold = 0.6

// Result is a classified and enriched upload.
type Result struct {
	Label      string          `json:"label"`
	Confidence float64         `json:"confidence"`
	Facts      facts.PlantFact `json:"facts"`
	Image      string          `json:"image"`
}

// Percent formats the confidence the way it is displayed: ×100, two decimals.
func (r Result) Percent() string {
	return FormatPercent(r.Confidence)
}

// FormatPercent renders a [0,1] confidence as a percentage with two decimals.
func FormatPercent(confidence float64) string {
	return fmt.Sprintf("%.2f", confidence*100)
}

// Error is a failed classification. Its message is safe to return to clients;
// the underlying cause is available through Unwrap.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return "Classification failed: " + e.Stage
}

func (e *Error) Unwrap() error { return e.Err }

// Resolver maps a stored image reference to a file.
type Resolver interface {
	Resolve(ref string) (ingest.StoredImage, error)
}

// Decoder loads a stored image as a classifier input.
type Decoder interface {
	DecodeFile(path string) (model.ImageTensor, error)
}

// Orchestrator ties the pipeline together. It holds no per-request state and
// is safe for concurrent use as long as its collaborators are.
type Orchestrator struct {
	resolver   Resolver
	decoder    Decoder
	classifier model.Classifier
	labels     model.Labels
	lookup     *facts.Lookup
	threshold  float64
	logger     *zap.Logger
}

// Config holds the Orchestrator collaborators.
type Config struct {
	Resolver   Resolver
	Decoder    Decoder
	Classifier model.Classifier
	Labels     model.Labels
	Lookup     *facts.Lookup
	Threshold  float64
}

// New builds an Orchestrator. A zero threshold means DefaultThreshold.
func New(cfg Config, logger *zap.Logger) *Orchestrator {
	threshold := cfg.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	return &Orchestrator{
		resolver:   cfg.Resolver,
		decoder:    cfg.Decoder,
		classifier: cfg.Classifier,
		labels:     cfg.Labels,
		lookup:     cfg.Lookup,
		threshold:  threshold,
		logger:     logger,
	}
}

// Classify scores the image behind ref. A NaN score counts as zero. Below
// the threshold the label is UnknownPlant and no lookup is made; otherwise
// the label is enriched with reference facts, falling back to N/A fields
// when none exist.
func (o *Orchestrator) Classify(ctx context.Context, ref string) (*Result, error) {
	stored, err := o.resolver.Resolve(ref)
	if err != nil {
		return nil, o.fail("image not found", ref, err)
	}

	tensor, err := o.decoder.DecodeFile(stored.Path)
	if err != nil {
		return nil, o.fail("unreadable image", ref, err)
	}

	scores, err := o.classifier.Predict(tensor)
	if err != nil {
		return nil, o.fail("model error", ref, err)
	}

	top, score, err := model.Argmax(scores)
	if err != nil {
		return nil, o.fail("model error", ref, err)
	}
	confidence := widen(score)
	if math.IsNaN(confidence) {
		confidence = 0
	}

	result := &Result{
		Label:      UnknownPlant,
		Confidence: confidence,
		Facts:      facts.Unavailable(),
		Image:      stored.Filename,
	}

	if confidence < o.threshold {
		o.logger.Info("Low confidence classification",
			zap.String("image", stored.Filename),
			zap.Int("top_index", top),
			zap.Float64("confidence", confidence))
		return result, nil
	}

	label, err := o.labels.Name(top)
	if err != nil {
		return nil, o.fail("model error", ref, err)
	}
	result.Label = label

	fact, err := o.lookup.Lookup(ctx, label)
	if err != nil {
		return nil, o.fail("fact store unavailable", ref, err)
	}
	result.Facts = fact

	o.logger.Info("Classified image",
		zap.String("image", stored.Filename),
		zap.String("label", label),
		zap.Float64("confidence", confidence))
	return result, nil
}

func (o *Orchestrator) fail(stage, ref string, err error) error {
	o.logger.Error("Error during classification",
		zap.String("ref", ref),
		zap.String("stage", stage),
		zap.Error(err))
	return &Error{Stage: stage, Err: err}
}

// IsClassificationError reports whether err came from Classify.
func IsClassificationError(err error) bool {
	var cerr *Error
	return errors.As(err, &cerr)
}

// widen converts a float32 score without picking up float32 noise digits,
// so 0.92 stays 0.92.
func widen(f float32) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(float64(f), 'g', -1, 32), 64)
	if err != nil {
		return float64(f)
	}
	return v
}
