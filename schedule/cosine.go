// Package schedule drives a cyclical learning rate through an
// optimizer: cosine annealing with warm restarts, advanced by a
// continuous (fractional) epoch position so restarts need not align
// to epoch boundaries.
package schedule

import (
	"fmt"
	"math"
)

// LearningRateSetter is the slice of the optimizer the driver mutates.
type LearningRateSetter interface {
	SetLearningRate(lr float64)
}

// CosineWarmRestarts anneals the learning rate from BaseLR down to
// EtaMin over a period of T0 epochs, then restarts. Each restart
// multiplies the period by TMult.
//
// Step must be called with non-decreasing positions across a run;
// this is not enforced, and violating it produces a schedule
// discontinuity rather than an error.
type CosineWarmRestarts struct {
	BaseLR float64
	EtaMin float64
	T0     float64
	TMult  float64

	opt    LearningRateSetter
	lastLR float64
}

// NewCosineWarmRestarts creates the driver and primes the optimizer
// with the position-zero learning rate.
func NewCosineWarmRestarts(opt LearningRateSetter, baseLR, t0, tMult, etaMin float64) (*CosineWarmRestarts, error) {
	if t0 <= 0 {
		return nil, fmt.Errorf("schedule period T0 must be positive, got %v", t0)
	}
	if tMult < 1 {
		return nil, fmt.Errorf("schedule period multiplier must be >= 1, got %v", tMult)
	}
	s := &CosineWarmRestarts{
		BaseLR: baseLR,
		EtaMin: etaMin,
		T0:     t0,
		TMult:  tMult,
		opt:    opt,
	}
	s.Step(0)
	return s, nil
}

// Step advances the schedule to the given fractional epoch position
// (epoch + batchIndex*batchSize/numTrainingSamples) and writes the
// resulting learning rate into the optimizer.
func (s *CosineWarmRestarts) Step(position float64) {
	if position < 0 {
		position = 0
	}

	// Locate the position within its restart period.
	var tCur, tI float64
	if s.TMult == 1 {
		tCur = math.Mod(position, s.T0)
		tI = s.T0
	} else {
		// n completed restarts satisfy
		// position >= T0 * (TMult^n - 1) / (TMult - 1).
		n := math.Floor(math.Log(position/s.T0*(s.TMult-1)+1) / math.Log(s.TMult))
		tI = s.T0 * math.Pow(s.TMult, n)
		tCur = position - s.T0*(math.Pow(s.TMult, n)-1)/(s.TMult-1)
	}

	s.lastLR = s.EtaMin + (s.BaseLR-s.EtaMin)*(1+math.Cos(math.Pi*tCur/tI))/2
	s.opt.SetLearningRate(s.lastLR)
}

// LearningRate returns the rate computed by the most recent Step.
func (s *CosineWarmRestarts) LearningRate() float64 {
	return s.lastLR
}
