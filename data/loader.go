package data

import (
	"encoding/gob"
	"fmt"
	"os"

	"golang.org/x/exp/rand"
)

// Loader batches a slice of samples. Each call to Batch re-collates
// from the raw samples, so the trainer is free to normalize batch
// tensors in place.
type Loader struct {
	Samples   []Sample
	BatchSize int

	NormIn  *Normalization
	NormOut *Normalization
}

// NewLoader creates a loader over the given samples.
func NewLoader(samples []Sample, batchSize int) (*Loader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("loader needs at least one sample")
	}
	return &Loader{Samples: samples, BatchSize: batchSize}, nil
}

// FitNormalization fits input and target statistics from the loader's
// samples. Call once, on the training loader; validation and test
// loaders share the training statistics.
func (l *Loader) FitNormalization() error {
	xs := make([][][]float64, len(l.Samples))
	ys := make([][][]float64, len(l.Samples))
	for i, s := range l.Samples {
		xs[i] = s.X
		ys[i] = s.Y
	}

	normIn, err := FitNormalization(xs)
	if err != nil {
		return err
	}
	normOut, err := FitNormalization(ys)
	if err != nil {
		return err
	}
	l.NormIn = normIn
	l.NormOut = normOut
	return nil
}

// Normalization returns the input and target transforms, which are
// nil until fit (or assigned from another loader's statistics).
func (l *Loader) Normalization() (in, out *Normalization) {
	return l.NormIn, l.NormOut
}

// NumSamples returns the total number of samples.
func (l *Loader) NumSamples() int {
	return len(l.Samples)
}

// NumBatches returns the number of batches per epoch.
func (l *Loader) NumBatches() int {
	return (len(l.Samples) + l.BatchSize - 1) / l.BatchSize
}

// Batch collates the i-th batch.
func (l *Loader) Batch(i int) (*Batch, error) {
	if i < 0 || i >= l.NumBatches() {
		return nil, fmt.Errorf("batch index %d out of range", i)
	}
	start := i * l.BatchSize
	end := start + l.BatchSize
	if end > len(l.Samples) {
		end = len(l.Samples)
	}
	return Collate(l.Samples[start:end])
}

// Shuffle permutes the sample order for the next epoch.
func (l *Loader) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(l.Samples), func(i, j int) {
		l.Samples[i], l.Samples[j] = l.Samples[j], l.Samples[i]
	})
}

// SaveSamples writes a sample set to a gob file.
func SaveSamples(samples []Sample, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	return gob.NewEncoder(file).Encode(samples)
}

// LoadSamples reads a sample set from a gob file.
func LoadSamples(filePath string) ([]Sample, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var samples []Sample
	if err := gob.NewDecoder(file).Decode(&samples); err != nil {
		return nil, fmt.Errorf("failed to decode samples from %s: %w", filePath, err)
	}
	return samples, nil
}
