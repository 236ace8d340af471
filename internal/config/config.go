package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Brownie44l1/plant-api/internal/facts"
	"github.com/Brownie44l1/plant-api/internal/model"
)

// Config holds application configuration
type Config struct {
	Server struct {
		Port string `yaml:"port"`
		// Mode is the gin mode: debug, release or test.
		Mode string `yaml:"mode"`
	} `yaml:"server"`

	Log struct {
		Level      string `yaml:"level"`
		Production bool   `yaml:"production"`
	} `yaml:"log"`

	Upload struct {
		Dir string `yaml:"dir"`
		// UniqueNames prefixes stored files with a random id so concurrent
		// uploads with the same name do not overwrite each other.
		UniqueNames bool `yaml:"unique_names"`
	} `yaml:"upload"`

	Model struct {
		Path        string `yaml:"path"`
		LabelsPath  string `yaml:"labels_path"`
		LibraryPath string `yaml:"library_path"`
		InputName   string `yaml:"input_name"`
		OutputName  string `yaml:"output_name"`
		ImageSize   int    `yaml:"image_size"`
		Layout      string `yaml:"layout"` // "nhwc" or "nchw"
	} `yaml:"model"`

	Classifier struct {
		ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	} `yaml:"classifier"`

	Facts struct {
		Backend    string        `yaml:"backend"` // memory, mongo, postgres, sqlite
		URI        string        `yaml:"uri"`     // MongoDB URI or SQL DSN
		Database   string        `yaml:"database"`
		Collection string        `yaml:"collection"`
		SeedFile   string        `yaml:"seed_file"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"facts"`
}

// LoadConfig loads configuration from a YAML file. Variables from a .env
// file in the working directory are loaded first and may be referenced as
// ${VAR} in paths and URIs. An empty path yields the defaults.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := &Config{}

	if configPath != "" {
		file, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		decoder := yaml.NewDecoder(file)
		if err := decoder.Decode(config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	config.applyDefaults()
	config.expandEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "5000"
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Upload.Dir == "" {
		c.Upload.Dir = "static/upload"
	}
	if c.Model.Path == "" {
		c.Model.Path = "models/plant_classifier.onnx"
	}
	if c.Model.LabelsPath == "" {
		c.Model.LabelsPath = "models/labels.txt"
	}
	if c.Model.InputName == "" {
		c.Model.InputName = "input"
	}
	if c.Model.OutputName == "" {
		c.Model.OutputName = "output"
	}
	if c.Model.ImageSize == 0 {
		c.Model.ImageSize = 224
	}
	if c.Model.Layout == "" {
		c.Model.Layout = "nhwc"
	}
	if c.Classifier.ConfidenceThreshold == 0 {
		c.Classifier.ConfidenceThreshold = 0.6
	}
	if c.Facts.Backend == "" {
		c.Facts.Backend = "mongo"
	}
	if c.Facts.Database == "" {
		c.Facts.Database = "plant"
	}
	if c.Facts.Collection == "" {
		c.Facts.Collection = "values"
	}
	if c.Facts.Timeout == 0 {
		c.Facts.Timeout = 5 * time.Second
	}
}

func (c *Config) expandEnv() {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Port = port
	}
	c.Upload.Dir = os.ExpandEnv(c.Upload.Dir)
	c.Model.Path = os.ExpandEnv(c.Model.Path)
	c.Model.LabelsPath = os.ExpandEnv(c.Model.LabelsPath)
	c.Model.LibraryPath = os.ExpandEnv(c.Model.LibraryPath)
	c.Facts.URI = os.ExpandEnv(c.Facts.URI)
	// Defaulted after expansion so an unset ${VAR} falls back too.
	if c.Facts.URI == "" && c.Facts.Backend == "mongo" {
		c.Facts.URI = "mongodb://localhost:27017"
	}
	c.Facts.SeedFile = os.ExpandEnv(c.Facts.SeedFile)
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Model.ImageSize <= 0 {
		return fmt.Errorf("model.image_size must be positive, got %d", c.Model.ImageSize)
	}
	if c.Model.Layout != "nhwc" && c.Model.Layout != "nchw" {
		return fmt.Errorf("model.layout must be nhwc or nchw, got %q", c.Model.Layout)
	}
	if c.Classifier.ConfidenceThreshold < 0 || c.Classifier.ConfidenceThreshold > 1 {
		return fmt.Errorf("classifier.confidence_threshold must be in [0,1], got %v", c.Classifier.ConfidenceThreshold)
	}
	switch c.Facts.Backend {
	case "memory", "mongo", "postgres", "sqlite":
	default:
		return fmt.Errorf("facts.backend must be memory, mongo, postgres or sqlite, got %q", c.Facts.Backend)
	}
	if c.Facts.Backend != "memory" && c.Facts.URI == "" {
		return fmt.Errorf("facts.uri is required for the %s backend", c.Facts.Backend)
	}
	return nil
}

// ONNX returns the classifier settings for a model with numClasses outputs.
func (c *Config) ONNX(numClasses int) model.ONNXConfig {
	return model.ONNXConfig{
		ModelPath:   c.Model.Path,
		LibraryPath: c.Model.LibraryPath,
		InputName:   c.Model.InputName,
		OutputName:  c.Model.OutputName,
		ImageSize:   c.Model.ImageSize,
		Layout:      model.Layout(c.Model.Layout),
		NumClasses:  numClasses,
	}
}

// FactStore returns the fact store options.
func (c *Config) FactStore() facts.Options {
	return facts.Options{
		Backend:    c.Facts.Backend,
		URI:        c.Facts.URI,
		Database:   c.Facts.Database,
		Collection: c.Facts.Collection,
		SeedFile:   c.Facts.SeedFile,
	}
}
