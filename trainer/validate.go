package trainer

import (
	"gonum.org/v1/gonum/floats"

	"github.com/LearnedVector/denoising-wavenet/data"
	"github.com/LearnedVector/denoising-wavenet/model"
	"github.com/LearnedVector/denoising-wavenet/neural/tensor"
)

// Validate runs one full pass over the validation set with the model
// in evaluation mode. Sequences are evaluated whole, not windowed, and
// no gradients are applied. For the first batch a denormalized output
// sample is exported for inspection, together with the raw input and
// target unless the writer still holds a representative copy. The
// model is returned to training mode regardless of how validation
// ends.
func (t *Trainer) Validate(loader Loader, epoch int) ([]float64, error) {
	t.model.SetMode(model.Eval)
	defer t.model.SetMode(model.Train)

	avgLoss := make([]float64, t.loss.NumCriteria())

	for iIter := 0; iIter < loader.NumBatches(); iIter++ {
		batch, err := loader.Batch(iIter)
		if err != nil {
			return nil, err
		}
		x, y := t.preBatch(batch, loader)

		output, err := t.model.Predict(x)
		if err != nil {
			return nil, err
		}
		output, err = truncateToWindow(output, y.Shape[2])
		if err != nil {
			return nil, err
		}

		lossVec, err := t.loss.Calc(y, output, batch.TYs)
		if err != nil {
			return nil, err
		}
		floats.Add(avgLoss, lossVec.Values())

		if iIter == 0 {
			if err := t.exportOne(batch, output, loader, epoch); err != nil {
				return nil, err
			}
		}
	}

	floats.Scale(1/float64(loader.NumSamples()), avgLoss)
	if err := t.writeLossScalars("loss/valid", avgLoss, epoch); err != nil {
		return nil, err
	}
	return avgLoss, nil
}

// exportOne writes the first sample's denormalized model output, plus
// the raw input and target when the writer does not already hold a
// representative copy.
func (t *Trainer) exportOne(batch *data.Batch, output *tensor.Tensor, loader Loader, step int) error {
	_, normOut := loader.Normalization()
	out, err := postOne(output, batch.TYs, 0, normOut)
	if err != nil {
		return err
	}

	arrays := map[string][][]float64{"out": out}
	if !t.Writer.ReusedSample() {
		raw, err := batch.Decollate(0)
		if err != nil {
			return err
		}
		arrays["x"] = raw.X
		arrays["y"] = raw.Y
	}
	_, err = t.Writer.WriteOne(step, arrays)
	return err
}

// postOne extracts sample idx from a padded (batch, channels, time)
// output, truncated to its valid length and denormalized, as a
// channels x time array.
func postOne(output *tensor.Tensor, tys []int, idx int, norm *data.Normalization) ([][]float64, error) {
	one, err := output.Slice(0, idx, idx+1)
	if err != nil {
		return nil, err
	}
	one, err = one.Slice(2, 0, tys[idx])
	if err != nil {
		return nil, err
	}

	one = one.Clone()
	if norm != nil {
		norm.Denormalize(one)
	}

	channels := one.Shape[1]
	timeLen := one.Shape[2]
	arr := make([][]float64, channels)
	for c := 0; c < channels; c++ {
		arr[c] = one.Data[c*timeLen : (c+1)*timeLen]
	}
	return arr, nil
}
