package nn

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/LearnedVector/denoising-wavenet/neural/tensor"
)

// Criterion computes a sum-reduced elementwise loss between a model
// output and a target of the same shape. The returned scalar tensor
// participates in the graph so the loss can be backpropagated.
type Criterion interface {
	Name() string
	Loss(output, target *tensor.Tensor) (*tensor.Tensor, error)
}

// criterionRegistry maps declared criterion identifiers to
// constructors. Identifiers are resolved once at configuration load,
// never at run time.
var criterionRegistry = map[string]func() Criterion{
	"MSELoss": func() Criterion { return mseLoss{} },
	"L1Loss":  func() Criterion { return l1Loss{} },
}

// RegisterCriterion adds a criterion constructor under the given
// identifier. Registering an identifier twice is a programming error.
func RegisterCriterion(name string, ctor func() Criterion) error {
	if _, ok := criterionRegistry[name]; ok {
		return errors.Errorf("criterion %q registered twice", name)
	}
	criterionRegistry[name] = ctor
	return nil
}

// NewCriterion resolves a criterion identifier. An unknown identifier
// is a configuration error and fails immediately.
func NewCriterion(name string) (Criterion, error) {
	ctor, ok := criterionRegistry[name]
	if !ok {
		return nil, errors.Errorf("unknown criterion %q (known: %v)", name, CriterionNames())
	}
	return ctor(), nil
}

// CriterionNames returns the registered identifiers, sorted.
func CriterionNames() []string {
	names := make([]string, 0, len(criterionRegistry))
	for name := range criterionRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// mseLoss is the sum-reduced squared error criterion.
type mseLoss struct{}

func (mseLoss) Name() string { return "MSELoss" }

func (mseLoss) Loss(output, target *tensor.Tensor) (*tensor.Tensor, error) {
	diff, err := output.Sub(target)
	if err != nil {
		return nil, err
	}
	sq, err := diff.Mul(diff)
	if err != nil {
		return nil, err
	}
	return sq.Sum()
}

// l1Loss is the sum-reduced absolute error criterion.
type l1Loss struct{}

func (l1Loss) Name() string { return "L1Loss" }

func (l1Loss) Loss(output, target *tensor.Tensor) (*tensor.Tensor, error) {
	diff, err := output.Sub(target)
	if err != nil {
		return nil, err
	}
	abs, err := diff.Abs()
	if err != nil {
		return nil, err
	}
	return abs.Sum()
}
