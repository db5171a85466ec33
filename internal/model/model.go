// Feedrank - Personalized Post Recommendation Service
// Copyright 2026 Alex Smolin (asmolin)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/asmolin/feedrank

// Package model adapts a pretrained gradient-boosted classifier for the
// scoring pipeline. Artifacts are LightGBM model files scored with the
// pure-Go leaves library; the transformation stored in the artifact is
// loaded too, so predictions are probabilities of the positive class.
package model

import (
	"fmt"
	"runtime"

	"github.com/dmitryikh/leaves"
)

// Classifier scores a dense feature matrix, returning the probability of
// the positive class per row, in row order.
type Classifier interface {
	// PredictProba scores the whole matrix in one batched call.
	PredictProba(matrix [][]float64) ([]float64, error)
	// NumFeatures is the feature count the model was trained with.
	NumFeatures() int
}

// GBDT is a leaves-backed Classifier. It is immutable after Load and
// safe for concurrent use.
type GBDT struct {
	ensemble *leaves.Ensemble
	path     string
}

var _ Classifier = (*GBDT)(nil)

// Load reads a model artifact from disk. The artifact must be a binary
// classifier: exactly one output group after transformation.
func Load(path string) (*GBDT, error) {
	ensemble, err := leaves.LGEnsembleFromFile(path, true)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	if ensemble.NOutputGroups() != 1 {
		return nil, fmt.Errorf("load model %s: expected binary classifier, got %d output groups",
			path, ensemble.NOutputGroups())
	}
	return &GBDT{ensemble: ensemble, path: path}, nil
}

// NumFeatures returns the feature count the model expects per row.
func (m *GBDT) NumFeatures() int {
	return m.ensemble.NFeatures()
}

// Path returns the artifact location the model was loaded from.
func (m *GBDT) Path() string {
	return m.path
}

// PredictProba scores the matrix with a single dense batched call.
// An empty matrix yields an empty score vector.
func (m *GBDT) PredictProba(matrix [][]float64) ([]float64, error) {
	vals, ncols, err := flatten(matrix)
	if err != nil {
		return nil, err
	}
	nrows := len(matrix)
	if nrows == 0 {
		return []float64{}, nil
	}
	if want := m.ensemble.NFeatures(); ncols != want {
		return nil, fmt.Errorf("feature matrix has %d columns, model expects %d", ncols, want)
	}

	predictions := make([]float64, nrows)
	if err := m.ensemble.PredictDense(vals, nrows, ncols, predictions, 0, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	return predictions, nil
}

// flatten packs a rectangular matrix into row-major dense storage.
// Ragged input is rejected: every row must carry the same column count.
func flatten(matrix [][]float64) ([]float64, int, error) {
	if len(matrix) == 0 {
		return nil, 0, nil
	}
	ncols := len(matrix[0])
	vals := make([]float64, 0, len(matrix)*ncols)
	for i, row := range matrix {
		if len(row) != ncols {
			return nil, 0, fmt.Errorf("ragged feature matrix: row %d has %d columns, row 0 has %d",
				i, len(row), ncols)
		}
		vals = append(vals, row...)
	}
	return vals, ncols, nil
}
