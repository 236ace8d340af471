package classify

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Brownie44l1/plant-api/internal/facts"
	"github.com/Brownie44l1/plant-api/internal/ingest"
	"github.com/Brownie44l1/plant-api/internal/model"
)

type fakeClassifier struct {
	scores []float32
	err    error
	calls  int
	shape  []int64
}

func (f *fakeClassifier) Predict(t model.ImageTensor) ([]float32, error) {
	f.calls++
	f.shape = t.Shape
	return f.scores, f.err
}

var labels = model.Labels{"Fern", "Neem", "Rose"}

var roseRecord = facts.Record{
	PlantName:           "Rose",
	BotanicalName:       "Rosa indica",
	ChemicalComponents:  "Citronellol",
	MedicinalProperties: "Astringent",
	MedicalUses:         "Sore throat",
}

type fixture struct {
	orch       *Orchestrator
	classifier *fakeClassifier
	store      *ingest.Store
	logs       *observer.ObservedLogs
}

func newFixture(t *testing.T, scores []float32) *fixture {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	store, err := ingest.NewStore(filepath.Join(t.TempDir(), "upload"), false, logger)
	require.NoError(t, err)

	classifier := &fakeClassifier{scores: scores}
	orch := New(Config{
		Resolver:   store,
		Decoder:    ingest.Decoder{Size: 224, Layout: model.LayoutNHWC},
		Classifier: classifier,
		Labels:     labels,
		Lookup:     facts.NewLookup(facts.NewMemoryStore(roseRecord), 0, logger),
	}, logger)

	return &fixture{orch: orch, classifier: classifier, store: store, logs: logs}
}

func (f *fixture) upload(t *testing.T, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	stored, err := f.store.Accept(ingest.UploadedImage{Filename: name, Data: buf.Bytes()})
	require.NoError(t, err)
	return stored.Ref
}

func TestClassifyKnownPlant(t *testing.T) {
	f := newFixture(t, []float32{0.03, 0.05, 0.92})
	ref := f.upload(t, "rose.png")

	result, err := f.orch.Classify(context.Background(), ref)
	require.NoError(t, err)

	assert.Equal(t, "Rose", result.Label)
	assert.Equal(t, 0.92, result.Confidence)
	assert.Equal(t, "92.00", result.Percent())
	assert.Equal(t, "rose.png", result.Image)
	assert.Equal(t, roseRecord.Fact(), result.Facts)
	assert.Equal(t, []int64{1, 224, 224, 3}, f.classifier.shape)
}

func TestClassifyLowConfidence(t *testing.T) {
	f := newFixture(t, []float32{0.35, 0.25, 0.40})
	ref := f.upload(t, "rose.png")

	result, err := f.orch.Classify(context.Background(), ref)
	require.NoError(t, err)

	assert.Equal(t, UnknownPlant, result.Label)
	assert.Equal(t, 0.40, result.Confidence)
	assert.Equal(t, "40.00", result.Percent())
	assert.Equal(t, facts.Unavailable(), result.Facts, "fact lookup is skipped")
	assert.Zero(t, f.logs.FilterMessage("Plant not found in fact store").Len())
}

func TestClassifyLabelWithoutFacts(t *testing.T) {
	f := newFixture(t, []float32{0.75, 0.15, 0.10})
	ref := f.upload(t, "fern.png")

	result, err := f.orch.Classify(context.Background(), ref)
	require.NoError(t, err)

	assert.Equal(t, "Fern", result.Label, "label is kept on a lookup miss")
	assert.Equal(t, "75.00", result.Percent())
	assert.Equal(t, facts.Unavailable(), result.Facts)

	missed := f.logs.FilterMessage("Plant not found in fact store").All()
	require.Len(t, missed, 1)
	assert.Equal(t, "Fern", missed[0].ContextMap()["plant"])
}

func TestClassifyThresholdBoundary(t *testing.T) {
	f := newFixture(t, []float32{0.6, 0.4, 0.0})
	ref := f.upload(t, "fern.png")

	result, err := f.orch.Classify(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "Fern", result.Label, "confidence equal to the threshold is accepted")
}

func TestClassifyConfidenceIsMaxScore(t *testing.T) {
	vectors := [][]float32{
		{0.1, 0.2, 0.7},
		{0.5, 0.5, 0.0},
		{0.0, 0.0, 0.0},
		{1.0, 0.0, 0.0},
		{0.33, 0.34, 0.33},
	}
	for _, v := range vectors {
		f := newFixture(t, v)
		result, err := f.orch.Classify(context.Background(), f.upload(t, "leaf.png"))
		require.NoError(t, err)

		_, maxScore, err := model.Argmax(v)
		require.NoError(t, err)
		assert.InDelta(t, float64(maxScore), result.Confidence, 1e-6)
		assert.GreaterOrEqual(t, result.Confidence, 0.0)
		assert.LessOrEqual(t, result.Confidence, 1.0)
	}
}

func TestClassifyNaNScoreIsUnknown(t *testing.T) {
	nan := float32(math.NaN())
	f := newFixture(t, []float32{nan, nan, nan})

	result, err := f.orch.Classify(context.Background(), f.upload(t, "rose.png"))
	require.NoError(t, err)

	assert.Equal(t, UnknownPlant, result.Label)
	assert.Zero(t, result.Confidence)
	assert.Equal(t, facts.Unavailable(), result.Facts)
}

func TestClassifyDecodeFailure(t *testing.T) {
	f := newFixture(t, []float32{0.1, 0.1, 0.8})
	stored, err := f.store.Accept(ingest.UploadedImage{Filename: "broken.jpg", Data: []byte("garbage")})
	require.NoError(t, err)

	_, err = f.orch.Classify(context.Background(), stored.Ref)
	require.Error(t, err)
	assert.True(t, IsClassificationError(err))
	assert.Equal(t, "Classification failed: unreadable image", err.Error())

	var derr *ingest.DecodeError
	assert.True(t, errors.As(err, &derr), "cause is kept for logging")
	assert.Zero(t, f.classifier.calls, "classifier is not called")
	assert.Equal(t, 1, f.logs.FilterMessage("Error during classification").Len())
}

func TestClassifyUnknownRef(t *testing.T) {
	f := newFixture(t, []float32{1})

	_, err := f.orch.Classify(context.Background(), "../../etc/passwd")
	require.Error(t, err)
	assert.Equal(t, "Classification failed: image not found", err.Error())
	assert.Zero(t, f.classifier.calls)
}

func TestClassifyModelFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.classifier.err = &model.ClassifierError{Op: "predict", Err: errors.New("shape mismatch")}
	ref := f.upload(t, "rose.png")

	_, err := f.orch.Classify(context.Background(), ref)
	require.Error(t, err)
	assert.Equal(t, "Classification failed: model error", err.Error())

	var cerr *model.ClassifierError
	assert.True(t, errors.As(err, &cerr))
}

func TestClassifyIndexBeyondLabels(t *testing.T) {
	f := newFixture(t, []float32{0.0, 0.0, 0.0, 0.9})
	ref := f.upload(t, "rose.png")

	_, err := f.orch.Classify(context.Background(), ref)
	require.Error(t, err)
	assert.True(t, IsClassificationError(err))
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "87.34", FormatPercent(0.8734))
	assert.Equal(t, "92.00", FormatPercent(0.92))
	assert.Equal(t, "100.00", FormatPercent(1))
	assert.Equal(t, "0.00", FormatPercent(0))
	assert.Equal(t, FormatPercent(0.8734), FormatPercent(0.8734))
}

func TestWiden(t *testing.T) {
	assert.Equal(t, 0.92, widen(0.92))
	assert.Equal(t, 0.6, widen(0.6))
	assert.Equal(t, 1.0, widen(1))
}

func TestNewDefaultsThreshold(t *testing.T) {
	o := New(Config{}, zap.NewNop())
	assert.Equal(t, DefaultThreshold, o.threshold)

	o = New(Config{Threshold: 0.8}, zap.NewNop())
	assert.Equal(t, 0.8, o.threshold)
}
