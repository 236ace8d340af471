// Command classify scores a single image with the configured model.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Brownie44l1/plant-api/internal/classify"
	"github.com/Brownie44l1/plant-api/internal/config"
	"github.com/Brownie44l1/plant-api/internal/ingest"
	"github.com/Brownie44l1/plant-api/internal/logging"
	"github.com/Brownie44l1/plant-api/internal/model"
)

func main() {
	configPath := flag.String("config", "configs/config.yml", "path to the YAML config file")
	imagePath := flag.String("image", "", "image to classify (jpg or png)")
	flag.Parse()

	if *imagePath == "" {
		flag.Usage()
		os.Exit(2)
	}

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

	labels, err := model.LoadLabels(cfg.Model.LabelsPath)
	if err != nil {
		logger.Fatal("Failed to load labels", zap.Error(err))
	}

	classifier, err := model.NewONNXClassifier(cfg.ONNX(len(labels)))
	if err != nil {
		logger.Fatal("Failed to load classifier", zap.Error(err))
	}
	defer classifier.Close()

	decoder := ingest.Decoder{Size: cfg.Model.ImageSize, Layout: model.Layout(cfg.Model.Layout)}
	tensor, err := decoder.DecodeFile(*imagePath)
	if err != nil {
		logger.Fatal("Failed to decode image", zap.Error(err))
	}

	scores, err := classifier.Predict(tensor)
	if err != nil {
		logger.Fatal("Prediction failed", zap.Error(err))
	}

	top, score, err := model.Argmax(scores)
	if err != nil {
		logger.Fatal("Prediction failed", zap.Error(err))
	}

	label := classify.UnknownPlant
	if float64(score) >= cfg.Classifier.ConfidenceThreshold {
		if label, err = labels.Name(top); err != nil {
			logger.Fatal("Prediction failed", zap.Error(err))
		}
	}

	fmt.Printf("label:      %s\n", label)
	fmt.Printf("index:      %d\n", top)
	fmt.Printf("confidence: %s%%\n", classify.FormatPercent(float64(score)))
}
