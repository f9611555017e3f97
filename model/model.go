// Package model defines the contract the trainer drives models
// through, and a registry resolving declared model identifiers to
// constructors at configuration load.
package model

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/LearnedVector/denoising-wavenet/neural/tensor"
)

// Mode selects mode-dependent model behavior, e.g. stochastic
// regularization that is active in training only.
type Mode int

const (
	Train Mode = iota
	Eval
)

// Model maps an input tensor of shape (batch, channelsIn, time) to an
// output tensor of shape (batch, channelsOut, time') with
// time' >= the requested target window length. Predict presents one
// synchronized result; any internal fan-out across devices is opaque
// to the caller.
type Model interface {
	Predict(x *tensor.Tensor) (*tensor.Tensor, error)
	Parameters() []*tensor.Tensor
	SetMode(mode Mode)
}

// Constructor builds a model for the given channel counts.
type Constructor func(channelsIn, channelsOut int) (Model, error)

var registry = map[string]Constructor{
	"ChannelAffine": func(cin, cout int) (Model, error) { return NewChannelAffine(cin, cout) },
}

// Register adds a model constructor under the given identifier.
// Registering an identifier twice is a programming error.
func Register(name string, ctor Constructor) error {
	if _, ok := registry[name]; ok {
		return errors.Errorf("model %q registered twice", name)
	}
	registry[name] = ctor
	return nil
}

// New resolves a declared model identifier. Unknown identifiers fail
// immediately at configuration load.
func New(name string, channelsIn, channelsOut int) (Model, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, errors.Errorf("unknown model %q (known: %v)", name, Names())
	}
	return ctor(channelsIn, channelsOut)
}

// Names returns the registered model identifiers, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
