// Package checkpoint handles saving and loading training state using
// the gob encoding. A checkpoint is the pair (model parameters,
// optimizer state) serialized together; loading one into a model of a
// different shape is a fatal configuration error.
package checkpoint

import (
	"encoding/gob"
	"os"

	"github.com/pkg/errors"

	"github.com/LearnedVector/denoising-wavenet/model"
	"github.com/LearnedVector/denoising-wavenet/neural/nn"
	"github.com/LearnedVector/denoising-wavenet/neural/tensor"
)

// ErrConfigurationMismatch reports a checkpoint whose parameter shapes
// do not match the constructed model. It is fatal; the run aborts.
var ErrConfigurationMismatch = errors.New("checkpoint does not match the constructed model")

type state struct {
	Params []*tensor.Tensor
	Optim  []byte
}

// Save writes the model parameters and optimizer state to filePath.
func Save(filePath string, m model.Model, opt nn.Optimizer) error {
	optBlob, err := opt.State()
	if err != nil {
		return errors.Wrap(err, "failed to serialize optimizer state")
	}

	file, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	return gob.NewEncoder(file).Encode(state{Params: m.Parameters(), Optim: optBlob})
}

// Load restores a checkpoint into an already constructed model and
// optimizer. Parameter counts and shapes must match exactly.
func Load(filePath string, m model.Model, opt nn.Optimizer) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	var st state
	if err := gob.NewDecoder(file).Decode(&st); err != nil {
		return errors.Wrapf(err, "failed to decode checkpoint %s", filePath)
	}

	params := m.Parameters()
	if len(st.Params) != len(params) {
		return errors.Wrapf(ErrConfigurationMismatch,
			"checkpoint holds %d parameter tensors, model has %d", len(st.Params), len(params))
	}
	for i, p := range params {
		if !shapesEqual(st.Params[i].Shape, p.Shape) {
			return errors.Wrapf(ErrConfigurationMismatch,
				"parameter %d has shape %v in checkpoint, %v in model", i, st.Params[i].Shape, p.Shape)
		}
	}

	for i, p := range params {
		copy(p.Data, st.Params[i].Data)
	}
	if err := opt.LoadState(st.Optim); err != nil {
		return errors.Wrap(ErrConfigurationMismatch, err.Error())
	}
	return nil
}

func shapesEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
