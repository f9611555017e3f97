package checkpoint_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/LearnedVector/denoising-wavenet/checkpoint"
	"github.com/LearnedVector/denoising-wavenet/model"
	"github.com/LearnedVector/denoising-wavenet/neural/nn"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model_0.ckpt")

	m, err := model.NewChannelAffine(2, 2)
	if err != nil {
		t.Fatalf("NewChannelAffine failed: %v", err)
	}
	m.Weight.Data[0] = 0.5
	m.Bias.Data[1] = -0.25
	opt := nn.NewOptimizer(m.Parameters(), 1e-3, 0)

	if err := checkpoint.Save(path, m, opt); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	m2, err := model.NewChannelAffine(2, 2)
	if err != nil {
		t.Fatalf("NewChannelAffine failed: %v", err)
	}
	opt2 := nn.NewOptimizer(m2.Parameters(), 1e-3, 0)
	if err := checkpoint.Load(path, m2, opt2); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m2.Weight.Data[0] != 0.5 || m2.Bias.Data[1] != -0.25 {
		t.Errorf("restored parameters diverged: w=%v b=%v", m2.Weight.Data, m2.Bias.Data)
	}
}

func TestLoadRejectsShapeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model_0.ckpt")

	m, err := model.NewChannelAffine(2, 2)
	if err != nil {
		t.Fatalf("NewChannelAffine failed: %v", err)
	}
	opt := nn.NewOptimizer(m.Parameters(), 1e-3, 0)
	if err := checkpoint.Save(path, m, opt); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	other, err := model.NewChannelAffine(3, 3)
	if err != nil {
		t.Fatalf("NewChannelAffine failed: %v", err)
	}
	optOther := nn.NewOptimizer(other.Parameters(), 1e-3, 0)

	err = checkpoint.Load(path, other, optOther)
	if err == nil {
		t.Fatalf("expected configuration mismatch loading into a different model")
	}
	if !errors.Is(err, checkpoint.ErrConfigurationMismatch) {
		t.Errorf("error %v is not an ErrConfigurationMismatch", err)
	}
}
