package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/plant-api/internal/facts"
	"github.com/Brownie44l1/plant-api/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Server.Port)
	assert.Equal(t, "static/upload", cfg.Upload.Dir)
	assert.False(t, cfg.Upload.UniqueNames)
	assert.Equal(t, 224, cfg.Model.ImageSize)
	assert.Equal(t, "nhwc", cfg.Model.Layout)
	assert.Equal(t, 0.6, cfg.Classifier.ConfidenceThreshold)
	assert.Equal(t, "mongo", cfg.Facts.Backend)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Facts.URI)
	assert.Equal(t, "plant", cfg.Facts.Database)
	assert.Equal(t, "values", cfg.Facts.Collection)
	assert.Equal(t, 5*time.Second, cfg.Facts.Timeout)
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("FACTS_DB", "/var/lib/plant/facts.db")

	path := writeConfig(t, `
server:
  port: "8081"
  mode: debug
log:
  level: debug
  production: true
upload:
  dir: /tmp/uploads
  unique_names: true
model:
  path: models/mobilenet.onnx
  labels_path: models/mobilenet.txt
  input_name: input_1
  output_name: dense
  image_size: 128
  layout: nchw
classifier:
  confidence_threshold: 0.75
facts:
  backend: sqlite
  uri: ${FACTS_DB}
  timeout: 250ms
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.True(t, cfg.Log.Production)
	assert.True(t, cfg.Upload.UniqueNames)
	assert.Equal(t, "input_1", cfg.Model.InputName)
	assert.Equal(t, 128, cfg.Model.ImageSize)
	assert.Equal(t, "nchw", cfg.Model.Layout)
	assert.Equal(t, 0.75, cfg.Classifier.ConfidenceThreshold)
	assert.Equal(t, "sqlite", cfg.Facts.Backend)
	assert.Equal(t, "/var/lib/plant/facts.db", cfg.Facts.URI)
	assert.Equal(t, 250*time.Millisecond, cfg.Facts.Timeout)
}

func TestLoadConfigPortOverride(t *testing.T) {
	t.Setenv("PORT", "9090")

	cfg, err := LoadConfig(writeConfig(t, "server:\n  port: \"8081\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
}

func TestLoadConfigMongoURIFromUnsetVariable(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("MONGO_URI", "")

	cfg, err := LoadConfig(writeConfig(t, "facts:\n  backend: mongo\n  uri: ${MONGO_URI}\n"))
	require.NoError(t, err)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Facts.URI)

	t.Setenv("MONGO_URI", "mongodb://facts:27017")
	cfg, err = LoadConfig(writeConfig(t, "facts:\n  backend: mongo\n  uri: ${MONGO_URI}\n"))
	require.NoError(t, err)
	assert.Equal(t, "mongodb://facts:27017", cfg.Facts.URI)
}

func TestShippedConfigLoads(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("MONGO_URI", "")
	t.Setenv("ONNXRUNTIME_LIB", "")

	cfg, err := LoadConfig(filepath.Join("..", "..", "configs", "config.yml"))
	require.NoError(t, err)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Facts.URI)
	assert.Empty(t, cfg.Model.LibraryPath)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "server: [unclosed"))
	assert.Error(t, err)

	tests := map[string]string{
		"layout":    "model:\n  layout: hwc\n",
		"size":      "model:\n  image_size: -1\n",
		"threshold": "classifier:\n  confidence_threshold: 1.5\n",
		"backend":   "facts:\n  backend: redis\n",
		"uri":       "facts:\n  backend: postgres\n",
	}
	for name, body := range tests {
		_, err := LoadConfig(writeConfig(t, body))
		assert.Error(t, err, name)
	}

	cfg, err := LoadConfig(writeConfig(t, "facts:\n  backend: memory\n"))
	require.NoError(t, err, "memory backend needs no uri")
	assert.Empty(t, cfg.Facts.URI)
}

func TestComponentSettings(t *testing.T) {
	t.Setenv("PORT", "")

	cfg, err := LoadConfig(writeConfig(t, `
model:
  library_path: /usr/lib/libonnxruntime.so
  layout: nchw
facts:
  backend: memory
  seed_file: configs/plants.yml
`))
	require.NoError(t, err)

	assert.Equal(t, model.ONNXConfig{
		ModelPath:   "models/plant_classifier.onnx",
		LibraryPath: "/usr/lib/libonnxruntime.so",
		InputName:   "input",
		OutputName:  "output",
		ImageSize:   224,
		Layout:      model.LayoutNCHW,
		NumClasses:  30,
	}, cfg.ONNX(30))

	assert.Equal(t, facts.Options{
		Backend:    facts.BackendMemory,
		Database:   "plant",
		Collection: "values",
		SeedFile:   "configs/plants.yml",
	}, cfg.FactStore())
}
