// Package data provides the batch model the trainer consumes: ragged
// (channels x time) sample pairs collated into padded tensors with
// descending valid lengths, plus invertible normalization fit from
// training statistics.
package data

import (
	"fmt"
	"sort"

	"github.com/LearnedVector/denoising-wavenet/neural/tensor"
)

// Sample is one raw training pair: an input and a target waveform,
// each channels x time. Input and target lengths may differ (the
// input may carry lookahead context beyond the target span).
type Sample struct {
	X [][]float64
	Y [][]float64
}

// TimeLen returns the time extent of a channels x time array.
func TimeLen(a [][]float64) int {
	if len(a) == 0 {
		return 0
	}
	return len(a[0])
}

// Batch is a collection of samples padded to a common maximum length.
// TYs holds each sample's true (unpadded) target length in descending
// order; the windowing loop relies on that ordering to shrink the
// active sub-batch with a single advancing cursor.
type Batch struct {
	X   *tensor.Tensor // (batch, channelsIn, maxTX)
	Y   *tensor.Tensor // (batch, channelsOut, maxTY)
	TYs []int

	samples []Sample // original collation order, for decollation
}

// Collate pads a set of ragged samples into one batch. Samples are
// ordered by descending target length before padding.
func Collate(samples []Sample) (*Batch, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot collate an empty batch")
	}

	ordered := make([]Sample, len(samples))
	copy(ordered, samples)
	sort.SliceStable(ordered, func(i, j int) bool {
		return TimeLen(ordered[i].Y) > TimeLen(ordered[j].Y)
	})

	channelsIn := len(ordered[0].X)
	channelsOut := len(ordered[0].Y)
	maxTX, maxTY := 0, 0
	for _, s := range ordered {
		if len(s.X) != channelsIn || len(s.Y) != channelsOut {
			return nil, fmt.Errorf("inconsistent channel counts within batch")
		}
		if tx := TimeLen(s.X); tx > maxTX {
			maxTX = tx
		}
		if ty := TimeLen(s.Y); ty > maxTY {
			maxTY = ty
		}
	}

	x := tensor.NewTensor([]int{len(ordered), channelsIn, maxTX}, nil, false)
	y := tensor.NewTensor([]int{len(ordered), channelsOut, maxTY}, nil, false)
	tys := make([]int, len(ordered))

	for i, s := range ordered {
		tys[i] = TimeLen(s.Y)
		for c := 0; c < channelsIn; c++ {
			copy(x.Data[(i*channelsIn+c)*maxTX:], s.X[c])
		}
		for c := 0; c < channelsOut; c++ {
			copy(y.Data[(i*channelsOut+c)*maxTY:], s.Y[c])
		}
	}

	return &Batch{X: x, Y: y, TYs: tys, samples: ordered}, nil
}

// Size returns the number of samples in the batch.
func (b *Batch) Size() int {
	return len(b.TYs)
}

// Decollate recovers the raw, unpadded sample at the given index, as
// it was before collation and normalization.
func (b *Batch) Decollate(idx int) (Sample, error) {
	if idx < 0 || idx >= len(b.samples) {
		return Sample{}, fmt.Errorf("sample index %d out of range for batch of %d", idx, len(b.samples))
	}
	return b.samples[idx], nil
}
