package model

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/LearnedVector/denoising-wavenet/neural/tensor"
)

// ChannelAffine is a minimal reference model: each output channel is a
// learned affine map of the matching input channel,
// out[b,c,t] = w[c]*x[b,c,t] + bias[c]. It exists so the trainer and
// its tests have a real parameterized model to drive; it is not a
// serious denoising architecture.
type ChannelAffine struct {
	Weight *tensor.Tensor
	Bias   *tensor.Tensor
}

// NewChannelAffine creates the model. Input and output channel counts
// must match, since every channel maps onto itself.
func NewChannelAffine(channelsIn, channelsOut int) (*ChannelAffine, error) {
	if channelsIn != channelsOut {
		return nil, fmt.Errorf("ChannelAffine requires matching channel counts, got %d in, %d out", channelsIn, channelsOut)
	}
	weight := tensor.NewTensor([]int{channelsIn}, nil, true)
	for i := range weight.Data {
		weight.Data[i] = 1.0
	}
	return &ChannelAffine{
		Weight: weight,
		Bias:   tensor.NewTensor([]int{channelsIn}, nil, true),
	}, nil
}

// Predict applies the per-channel affine map. x has shape (B, C, T).
func (m *ChannelAffine) Predict(x *tensor.Tensor) (*tensor.Tensor, error) {
	if len(x.Shape) != 3 {
		return nil, fmt.Errorf("ChannelAffine expects input of shape (batch, channels, time), got %v", x.Shape)
	}
	if x.Shape[1] != m.Weight.Shape[0] {
		return nil, fmt.Errorf("input has %d channels, model has %d", x.Shape[1], m.Weight.Shape[0])
	}

	channels := x.Shape[1]
	timeLen := x.Shape[2]

	out := tensor.NewTensor(x.Shape, nil, true)
	for i := range out.Data {
		c := (i / timeLen) % channels
		out.Data[i] = m.Weight.Data[c]*x.Data[i] + m.Bias.Data[c]
	}
	out.Creator = &channelAffineOp{x: x, w: m.Weight, b: m.Bias}
	return out, nil
}

// channelAffineOp is the backward pass of the affine map.
type channelAffineOp struct {
	x *tensor.Tensor
	w *tensor.Tensor
	b *tensor.Tensor
}

func (op *channelAffineOp) Inputs() []*tensor.Tensor {
	return []*tensor.Tensor{op.x, op.w, op.b}
}

func (op *channelAffineOp) Backward(grad *tensor.Tensor) error {
	channels := op.x.Shape[1]
	timeLen := op.x.Shape[2]

	if op.w.Grad == nil {
		op.w.Grad = tensor.NewTensor(op.w.Shape, nil, false)
	}
	if op.b.Grad == nil {
		op.b.Grad = tensor.NewTensor(op.b.Shape, nil, false)
	}
	for i := range grad.Data {
		c := (i / timeLen) % channels
		op.w.Grad.Data[c] += grad.Data[i] * op.x.Data[i]
		op.b.Grad.Data[c] += grad.Data[i]
	}

	if op.x.RequiresGrad {
		if op.x.Grad == nil {
			op.x.Grad = tensor.NewTensor(op.x.Shape, nil, false)
		}
		for i := range grad.Data {
			c := (i / timeLen) % channels
			op.x.Grad.Data[i] += grad.Data[i] * op.w.Data[c]
		}
	}
	return nil
}

// Parameters returns the learnable tensors.
func (m *ChannelAffine) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{m.Weight, m.Bias}
}

// SetMode is a no-op: the affine map has no mode-dependent behavior.
func (m *ChannelAffine) SetMode(Mode) {}

// GobEncode serializes the parameters.
func (m *ChannelAffine) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(m.Weight); err != nil {
		return nil, err
	}
	if err := enc.Encode(m.Bias); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode restores the parameters.
func (m *ChannelAffine) GobDecode(data []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&m.Weight); err != nil {
		return err
	}
	return dec.Decode(&m.Bias)
}
