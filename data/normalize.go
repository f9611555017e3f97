package data

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/LearnedVector/denoising-wavenet/neural/tensor"
)

// Normalization is a mean/std transform fit once from training data.
// Normalize and Denormalize are exact inverses of each other.
type Normalization struct {
	Mean float64
	Std  float64
}

// FitNormalization computes normalization statistics over every value
// of the given channels x time arrays.
func FitNormalization(arrays [][][]float64) (*Normalization, error) {
	var all []float64
	for _, a := range arrays {
		for _, ch := range a {
			all = append(all, ch...)
		}
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("cannot fit normalization on empty data")
	}

	mean, std := stat.MeanStdDev(all, nil)
	if std == 0 {
		std = 1
	}
	return &Normalization{Mean: mean, Std: std}, nil
}

// Normalize transforms tensor values in place to zero mean, unit
// variance under the fit statistics.
func (n *Normalization) Normalize(t *tensor.Tensor) {
	for i, v := range t.Data {
		t.Data[i] = (v - n.Mean) / n.Std
	}
}

// Denormalize is the exact inverse of Normalize, in place.
func (n *Normalization) Denormalize(t *tensor.Tensor) {
	for i, v := range t.Data {
		t.Data[i] = v*n.Std + n.Mean
	}
}
