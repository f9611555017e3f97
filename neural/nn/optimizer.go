package nn

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"

	"github.com/LearnedVector/denoising-wavenet/neural/tensor"
)

// Optimizer interface defines the contract for optimizers.
type Optimizer interface {
	Step()
	ZeroGrad()
	LearningRate() float64
	SetLearningRate(lr float64)
	State() ([]byte, error)
	LoadState(blob []byte) error
}

// Adam represents the Adam optimizer. Moment estimates are kept in
// slices aligned with the parameter list so the optimizer state can be
// serialized and validated against a reconstructed model.
type Adam struct {
	parameters   []*tensor.Tensor
	learningRate float64
	weightDecay  float64
	beta1        float64
	beta2        float64
	epsilon      float64
	t            int
	m            []*tensor.Tensor // 1st moment vector
	v            []*tensor.Tensor // 2nd moment vector
}

// NewOptimizer creates a new Adam optimizer over the given parameters.
func NewOptimizer(parameters []*tensor.Tensor, learningRate, weightDecay float64) *Adam {
	m := make([]*tensor.Tensor, len(parameters))
	v := make([]*tensor.Tensor, len(parameters))
	for i, p := range parameters {
		m[i] = tensor.NewTensor(p.Shape, nil, false)
		v[i] = tensor.NewTensor(p.Shape, nil, false)
	}
	return &Adam{
		parameters:   parameters,
		learningRate: learningRate,
		weightDecay:  weightDecay,
		beta1:        0.9,
		beta2:        0.999,
		epsilon:      1e-8,
		m:            m,
		v:            v,
	}
}

// Step performs a single optimization step.
func (o *Adam) Step() {
	o.t++
	bc1 := 1 - math.Pow(o.beta1, float64(o.t))
	bc2 := 1 - math.Pow(o.beta2, float64(o.t))

	for pi, p := range o.parameters {
		if p.Grad == nil {
			continue
		}
		m := o.m[pi]
		v := o.v[pi]
		for i := range p.Data {
			g := p.Grad.Data[i]
			if o.weightDecay != 0 {
				g += o.weightDecay * p.Data[i]
			}

			// Update biased moment estimates
			m.Data[i] = o.beta1*m.Data[i] + (1-o.beta1)*g
			v.Data[i] = o.beta2*v.Data[i] + (1-o.beta2)*g*g

			// Bias-corrected update
			mHat := m.Data[i] / bc1
			vHat := v.Data[i] / bc2
			p.Data[i] -= o.learningRate * mHat / (math.Sqrt(vHat) + o.epsilon)
		}
	}
}

// ZeroGrad resets the gradients of all parameters.
func (o *Adam) ZeroGrad() {
	for _, p := range o.parameters {
		p.ZeroGrad()
	}
}

// LearningRate returns the learning rate used on the next Step.
func (o *Adam) LearningRate() float64 {
	return o.learningRate
}

// SetLearningRate changes the learning rate used on the next Step.
func (o *Adam) SetLearningRate(lr float64) {
	o.learningRate = lr
}

// adamState is the serialized form of the optimizer state.
type adamState struct {
	T int
	M []*tensor.Tensor
	V []*tensor.Tensor
}

// State serializes the step counter and moment estimates.
func (o *Adam) State() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(adamState{T: o.t, M: o.m, V: o.v}); err != nil {
		return nil, fmt.Errorf("failed to encode optimizer state: %w", err)
	}
	return buf.Bytes(), nil
}

// LoadState restores a previously serialized optimizer state. The
// moment shapes must match the parameters the optimizer was built
// over.
func (o *Adam) LoadState(blob []byte) error {
	var st adamState
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&st); err != nil {
		return fmt.Errorf("failed to decode optimizer state: %w", err)
	}
	if len(st.M) != len(o.parameters) || len(st.V) != len(o.parameters) {
		return fmt.Errorf("optimizer state holds %d moment pairs, model has %d parameters", len(st.M), len(o.parameters))
	}
	for i, p := range o.parameters {
		if len(st.M[i].Data) != len(p.Data) || len(st.V[i].Data) != len(p.Data) {
			return fmt.Errorf("optimizer moment %d has size %d, parameter has size %d", i, len(st.M[i].Data), len(p.Data))
		}
	}
	o.t = st.T
	o.m = st.M
	o.v = st.V
	return nil
}
