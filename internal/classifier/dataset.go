package classifier

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/abhijithsuren/dga-lab-v2/internal/features"
)

// Sample is one labeled row of the training dataset.
type Sample struct {
	Features []float64
	Label    Label
}

// LoadDataset reads a labeled feature CSV. The header must contain the
// feature columns (in any order), a "label" column, and may carry extra
// columns such as tld_id, which are ignored. Label values are matched
// case-insensitively against DGA / NOT_DGA; numeric labels are read as
// 1 = DGA, 0 = NOT_DGA.
func LoadDataset(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read dataset header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	labelIdx, ok := cols["label"]
	if !ok {
		return nil, fmt.Errorf("dataset %s has no label column", path)
	}

	featureIdx := make([]int, 0, len(features.ColumnNames()))
	for _, name := range features.ColumnNames() {
		idx, ok := cols[name]
		if !ok {
			return nil, fmt.Errorf("dataset %s is missing feature column %q", path, name)
		}
		featureIdx = append(featureIdx, idx)
	}

	var samples []Sample
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset row: %w", err)
		}

		label, ok := parseLabel(row[labelIdx])
		if !ok {
			continue
		}

		vec := make([]float64, len(featureIdx))
		for i, idx := range featureIdx {
			if idx < len(row) {
				// Unparseable cells become 0, same as the offline trainer.
				vec[i], _ = strconv.ParseFloat(strings.TrimSpace(row[idx]), 64)
			}
		}
		samples = append(samples, Sample{Features: vec, Label: label})
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("dataset %s has no usable rows", path)
	}
	return samples, nil
}

func parseLabel(raw string) (Label, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "DGA", "1":
		return LabelDGA, true
	case "NOT_DGA", "0":
		return LabelNotDGA, true
	}
	return LabelNotDGA, false
}
