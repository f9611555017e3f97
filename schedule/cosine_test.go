package schedule_test

import (
	"math"
	"testing"

	"github.com/LearnedVector/denoising-wavenet/schedule"
)

type lrSink struct {
	lr float64
}

func (s *lrSink) SetLearningRate(lr float64) { s.lr = lr }

func TestCosineStartsAtBase(t *testing.T) {
	sink := &lrSink{}
	sched, err := schedule.NewCosineWarmRestarts(sink, 0.1, 2, 1, 0.001)
	if err != nil {
		t.Fatalf("NewCosineWarmRestarts failed: %v", err)
	}

	if math.Abs(sink.lr-0.1) > 1e-12 {
		t.Errorf("position 0 learning rate %v, expected base 0.1", sink.lr)
	}
	if sched.LearningRate() != sink.lr {
		t.Errorf("LearningRate() %v disagrees with optimizer %v", sched.LearningRate(), sink.lr)
	}
}

func TestCosineAnnealsToEtaMin(t *testing.T) {
	sink := &lrSink{}
	sched, err := schedule.NewCosineWarmRestarts(sink, 0.1, 2, 1, 0.001)
	if err != nil {
		t.Fatalf("NewCosineWarmRestarts failed: %v", err)
	}

	// Just before the end of the first period the rate approaches the
	// floor; halfway through it is the midpoint of base and floor.
	sched.Step(1.0)
	mid := 0.001 + (0.1-0.001)/2
	if math.Abs(sink.lr-mid) > 1e-9 {
		t.Errorf("midpoint learning rate %v, expected %v", sink.lr, mid)
	}

	sched.Step(1.999)
	if sink.lr > 0.0011 {
		t.Errorf("end-of-period learning rate %v, expected near floor 0.001", sink.lr)
	}
}

func TestWarmRestart(t *testing.T) {
	sink := &lrSink{}
	sched, err := schedule.NewCosineWarmRestarts(sink, 0.1, 2, 1, 0.0)
	if err != nil {
		t.Fatalf("NewCosineWarmRestarts failed: %v", err)
	}

	// Positions 2, 4, ... are restarts back to the base rate.
	sched.Step(2.0)
	if math.Abs(sink.lr-0.1) > 1e-9 {
		t.Errorf("learning rate after restart %v, expected base 0.1", sink.lr)
	}
}

func TestGrowingPeriods(t *testing.T) {
	sink := &lrSink{}
	sched, err := schedule.NewCosineWarmRestarts(sink, 0.1, 1, 2, 0.0)
	if err != nil {
		t.Fatalf("NewCosineWarmRestarts failed: %v", err)
	}

	// With T0=1 and TMult=2 the periods are [0,1), [1,3), [3,7).
	// Position 2 is halfway through the second period.
	sched.Step(2.0)
	if math.Abs(sink.lr-0.05) > 1e-9 {
		t.Errorf("learning rate at half of grown period %v, expected 0.05", sink.lr)
	}

	sched.Step(3.0)
	if math.Abs(sink.lr-0.1) > 1e-9 {
		t.Errorf("learning rate at second restart %v, expected base 0.1", sink.lr)
	}
}

func TestFractionalPositionsDecreaseWithinPeriod(t *testing.T) {
	sink := &lrSink{}
	sched, err := schedule.NewCosineWarmRestarts(sink, 0.1, 4, 1, 0.0)
	if err != nil {
		t.Fatalf("NewCosineWarmRestarts failed: %v", err)
	}

	prev := math.Inf(1)
	for pos := 0.0; pos < 4.0; pos += 0.25 {
		sched.Step(pos)
		if sink.lr > prev {
			t.Fatalf("learning rate increased within a period at position %v: %v > %v", pos, sink.lr, prev)
		}
		prev = sink.lr
	}
}

func TestInvalidConfig(t *testing.T) {
	if _, err := schedule.NewCosineWarmRestarts(&lrSink{}, 0.1, 0, 1, 0); err == nil {
		t.Errorf("expected error for non-positive period")
	}
	if _, err := schedule.NewCosineWarmRestarts(&lrSink{}, 0.1, 1, 0.5, 0); err == nil {
		t.Errorf("expected error for period multiplier below 1")
	}
}
