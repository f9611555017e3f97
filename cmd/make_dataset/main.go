package main

import (
	"flag"
	"log"
	"math"

	"golang.org/x/exp/rand"

	"github.com/LearnedVector/denoising-wavenet/data"
)

var (
	outPath    = flag.String("out", "datasets/train.gob", "Output gob file")
	nSamples   = flag.Int("n_samples", 64, "Number of samples to generate")
	minLen     = flag.Int("min_len", 8000, "Minimum sample length in timesteps")
	maxLen     = flag.Int("max_len", 16000, "Maximum sample length in timesteps")
	sampleRate = flag.Int("sample_rate", 16000, "Sample rate used for tone frequencies")
	noiseLevel = flag.Float64("noise_level", 0.3, "Amplitude of the additive noise")
	seed       = flag.Uint64("seed", 1, "Random seed")
)

// Generates a synthetic denoising dataset: each target is a clean tone
// mixture and each input is the same signal with additive uniform noise.
func main() {
	flag.Parse()

	if *minLen < 1 || *maxLen < *minLen {
		log.Fatalf("Invalid length range [%d, %d]", *minLen, *maxLen)
	}

	rng := rand.New(rand.NewSource(*seed))
	samples := make([]data.Sample, *nSamples)
	for i := range samples {
		n := *minLen + rng.Intn(*maxLen-*minLen+1)
		samples[i] = makeSample(rng, n)
	}

	if err := data.SaveSamples(samples, *outPath); err != nil {
		log.Fatalf("Failed to save samples: %v", err)
	}
	log.Printf("Wrote %d samples to %s", len(samples), *outPath)
}

func makeSample(rng *rand.Rand, n int) data.Sample {
	f1 := 100 + rng.Float64()*900
	f2 := 100 + rng.Float64()*900
	clean := make([]float64, n)
	noisy := make([]float64, n)
	for t := 0; t < n; t++ {
		phase := float64(t) / float64(*sampleRate)
		clean[t] = 0.5*math.Sin(2*math.Pi*f1*phase) + 0.3*math.Sin(2*math.Pi*f2*phase)
		noisy[t] = clean[t] + *noiseLevel*(2*rng.Float64()-1)
	}
	return data.Sample{
		X: [][]float64{noisy},
		Y: [][]float64{clean},
	}
}
