// Command labels writes the class label file for a training dataset laid
// out as one subdirectory per class.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Brownie44l1/plant-api/internal/model"
)

func main() {
	dataset := flag.String("dataset", "", "dataset directory with one subdirectory per class")
	out := flag.String("out", "models/labels.txt", "label file to write")
	flag.Parse()

	if *dataset == "" {
		flag.Usage()
		os.Exit(2)
	}

	labels, err := model.LabelsFromDataset(*dataset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if err := model.WriteLabels(*out, labels); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d labels to %s\n", len(labels), *out)
}
