package model

import (
	"bufio"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Labels is the ordered class list. Position i names output index i.
type Labels []string

// LoadLabels reads a newline-delimited label file. Line order defines the
// class index and surrounding whitespace is trimmed. A blank line inside the
// file keeps its index as an empty label; trailing blank lines are ignored.
func LoadLabels(path string) (Labels, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open labels")
	}
	defer f.Close()

	var labels Labels
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read labels")
	}
	for len(labels) > 0 && labels[len(labels)-1] == "" {
		labels = labels[:len(labels)-1]
	}
	if len(labels) == 0 {
		return nil, errors.Errorf("label file %s is empty", path)
	}
	return labels, nil
}

// Name returns the label for class index i.
func (l Labels) Name(i int) (string, error) {
	if i < 0 || i >= len(l) {
		return "", errors.Errorf("class index %d out of range [0,%d)", i, len(l))
	}
	return l[i], nil
}

// LabelsFromDataset lists the class subdirectories of a training dataset in
// name order, the same order directory-based training loaders assign indices.
func LabelsFromDataset(dir string) (Labels, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read dataset directory")
	}

	var labels Labels
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		labels = append(labels, e.Name())
	}
	if len(labels) == 0 {
		return nil, errors.Errorf("dataset %s has no class directories", dir)
	}
	sort.Strings(labels)
	return labels, nil
}

// WriteLabels writes one label per line.
func WriteLabels(path string, labels Labels) error {
	var b strings.Builder
	for _, l := range labels {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return errors.Wrap(os.WriteFile(path, []byte(b.String()), 0o644), "failed to write labels")
}

// Argmax returns the first index holding the maximum value and that value.
func Argmax(v []float32) (int, float32, error) {
	if len(v) == 0 {
		return 0, 0, errors.New("empty prediction vector")
	}
	maxIdx := 0
	maxVal := v[0]
	for i, val := range v {
		if val > maxVal {
			maxVal = val
			maxIdx = i
		}
	}
	return maxIdx, maxVal, nil
}
