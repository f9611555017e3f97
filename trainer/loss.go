package trainer

import (
	"fmt"

	"github.com/LearnedVector/denoising-wavenet/neural/nn"
	"github.com/LearnedVector/denoising-wavenet/neural/tensor"
)

// LossVector holds one scalar loss term per configured criterion, in
// declared order. Terms stay separate for per-criterion observability
// and are only combined by Sum for backpropagation and reporting. A
// nil term marks a zero-weighted criterion that was skipped entirely.
type LossVector struct {
	terms []*tensor.Tensor
}

// Values returns the loss values, one per criterion. Skipped criteria
// contribute exactly 0.
func (lv LossVector) Values() []float64 {
	vals := make([]float64, len(lv.terms))
	for i, term := range lv.terms {
		if term != nil {
			vals[i] = term.Item()
		}
	}
	return vals
}

// Sum combines the terms into a single scalar for backpropagation.
func (lv LossVector) Sum() (*tensor.Tensor, error) {
	var total *tensor.Tensor
	for _, term := range lv.terms {
		if term == nil {
			continue
		}
		if total == nil {
			total = term
			continue
		}
		var err error
		total, err = total.Add(term)
		if err != nil {
			return nil, err
		}
	}
	if total == nil {
		return tensor.NewTensor([]int{1}, []float64{0}, false), nil
	}
	return total, nil
}

// WeightedLoss combines several elementwise criteria with per-criterion
// weights, each normalized by the true valid length of the samples it
// is computed over.
type WeightedLoss struct {
	criteria []nn.Criterion
	weights  []float64
}

// NewWeightedLoss resolves the declared criterion identifiers against
// the registry. One weight per criterion is required.
func NewWeightedLoss(names []string, weights []float64) (*WeightedLoss, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("at least one criterion is required")
	}
	if len(weights) != len(names) {
		return nil, fmt.Errorf("%d loss weights for %d criteria", len(weights), len(names))
	}
	criteria := make([]nn.Criterion, len(names))
	for i, name := range names {
		c, err := nn.NewCriterion(name)
		if err != nil {
			return nil, err
		}
		criteria[i] = c
	}
	return &WeightedLoss{criteria: criteria, weights: weights}, nil
}

// Names returns the criterion names in declared order.
func (wl *WeightedLoss) Names() []string {
	names := make([]string, len(wl.criteria))
	for i, c := range wl.criteria {
		names[i] = c.Name()
	}
	return names
}

// NumCriteria returns the number of configured criteria.
func (wl *WeightedLoss) NumCriteria() int {
	return len(wl.criteria)
}

// Calc computes the LossVector for target y and model output of
// matching shape, given the per-sample valid lengths tys.
//
// When all lengths are equal each criterion is computed once over the
// full tensors and divided by the common length. Otherwise every
// sample is sliced to its own valid length first and normalized by
// that length. The two paths agree numerically on uniform batches.
func (wl *WeightedLoss) Calc(y, output *tensor.Tensor, tys []int) (LossVector, error) {
	if len(y.Shape) != 3 {
		return LossVector{}, fmt.Errorf("expected target of shape (batch, channels, time), got %v", y.Shape)
	}
	if len(tys) != y.Shape[0] {
		return LossVector{}, fmt.Errorf("%d valid lengths for batch of %d", len(tys), y.Shape[0])
	}
	windowLen := y.Shape[2]
	if windowLen <= 0 {
		return LossVector{}, fmt.Errorf("degenerate window of length %d", windowLen)
	}
	for i, ty := range tys {
		if ty <= 0 || ty > windowLen {
			return LossVector{}, fmt.Errorf("valid length %d of sample %d outside window of length %d", ty, i, windowLen)
		}
	}

	uniform := true
	for _, ty := range tys[1:] {
		if ty != tys[0] {
			uniform = false
			break
		}
	}

	terms := make([]*tensor.Tensor, len(wl.criteria))
	for ci, criterion := range wl.criteria {
		if wl.weights[ci] == 0 {
			continue
		}

		var term *tensor.Tensor
		var err error
		if uniform {
			term, err = wl.uniformTerm(criterion, y, output, tys[0])
		} else {
			term, err = wl.raggedTerm(criterion, y, output, tys)
		}
		if err != nil {
			return LossVector{}, err
		}

		term, err = term.MulScalar(wl.weights[ci])
		if err != nil {
			return LossVector{}, err
		}
		terms[ci] = term
	}
	return LossVector{terms: terms}, nil
}

// uniformTerm computes one criterion over the whole batch at once and
// divides by the common valid length.
func (wl *WeightedLoss) uniformTerm(criterion nn.Criterion, y, output *tensor.Tensor, ty int) (*tensor.Tensor, error) {
	sum, err := criterion.Loss(output, y)
	if err != nil {
		return nil, err
	}
	return sum.DivScalar(float64(ty))
}

// raggedTerm slices every sample to its own valid length and
// normalizes by that length before accumulating.
func (wl *WeightedLoss) raggedTerm(criterion nn.Criterion, y, output *tensor.Tensor, tys []int) (*tensor.Tensor, error) {
	var total *tensor.Tensor
	for i, ty := range tys {
		itemY, err := sliceSample(y, i, ty)
		if err != nil {
			return nil, err
		}
		itemOut, err := sliceSample(output, i, ty)
		if err != nil {
			return nil, err
		}

		sum, err := criterion.Loss(itemOut, itemY)
		if err != nil {
			return nil, err
		}
		sum, err = sum.DivScalar(float64(ty))
		if err != nil {
			return nil, err
		}

		if total == nil {
			total = sum
		} else if total, err = total.Add(sum); err != nil {
			return nil, err
		}
	}
	return total, nil
}

// sliceSample extracts sample i truncated to its valid length.
func sliceSample(t *tensor.Tensor, i, ty int) (*tensor.Tensor, error) {
	item, err := t.Slice(0, i, i+1)
	if err != nil {
		return nil, err
	}
	return item.Slice(2, 0, ty)
}
