// Package tensor provides a small autograd tensor for training
// sequence models. Tensors are dense float64 arrays with an arbitrary
// shape; operations that receive a tensor requiring gradients record a
// Creator so that Backward can walk the graph in reverse.
package tensor

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// Operation represents an operation in the computation graph.
type Operation interface {
	Inputs() []*Tensor
	Backward(grad *Tensor) error
}

// Tensor represents a multi-dimensional array of float64 values.
type Tensor struct {
	Data         []float64
	Shape        []int
	Grad         *Tensor   `gob:"-"`
	Creator      Operation `gob:"-"`
	RequiresGrad bool
}

// NewTensor creates a new Tensor with the given shape and optional data.
// If data is nil, a zero-filled backing slice of the right size is
// allocated.
func NewTensor(shape []int, data []float64, requiresGrad bool) *Tensor {
	if data == nil {
		data = make([]float64, sizeOf(shape))
	}
	return &Tensor{
		Data:         data,
		Shape:        shape,
		RequiresGrad: requiresGrad,
	}
}

// Clone creates a deep copy of the tensor. The clone is a new leaf in
// the graph: it shares no gradient or creator with the original.
func (t *Tensor) Clone() *Tensor {
	newData := make([]float64, len(t.Data))
	copy(newData, t.Data)
	newShape := make([]int, len(t.Shape))
	copy(newShape, t.Shape)

	return &Tensor{
		Data:         newData,
		Shape:        newShape,
		RequiresGrad: t.RequiresGrad,
	}
}

// ZeroGrad resets the gradient of the tensor to zeros.
func (t *Tensor) ZeroGrad() {
	if t.RequiresGrad {
		if t.Grad == nil {
			t.Grad = NewTensor(t.Shape, nil, false)
		} else {
			for i := range t.Grad.Data {
				t.Grad.Data[i] = 0
			}
		}
	}
}

// Item returns the single value held by a scalar tensor.
func (t *Tensor) Item() float64 {
	return t.Data[0]
}

// Backward runs backpropagation from t, seeding its gradient with grad.
// The graph is walked in reverse topological order so every creator
// sees its complete output gradient before propagating further.
func (t *Tensor) Backward(grad *Tensor) error {
	// Order nodes by DFS finish time: a node is appended to topo only
	// after all of its inputs have been, so iterating topo back to
	// front visits every consumer of a node before the node itself.
	// A node shared by several consumers then holds its complete
	// accumulated gradient before its creator propagates it onward.
	type frame struct {
		node     *Tensor
		expanded bool
	}

	topo := []*Tensor{}
	visited := map[*Tensor]bool{}
	stack := []frame{{node: t}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.node == nil {
			continue
		}
		if f.expanded {
			topo = append(topo, f.node)
			continue
		}
		if visited[f.node] {
			continue
		}
		visited[f.node] = true

		stack = append(stack, frame{node: f.node, expanded: true})
		if f.node.Creator != nil {
			for _, child := range f.node.Creator.Inputs() {
				if !visited[child] {
					stack = append(stack, frame{node: child})
				}
			}
		}
	}

	for _, v := range topo {
		if v.Grad == nil {
			v.Grad = NewTensor(v.Shape, nil, false)
		}
	}

	// Seed the gradient of the output tensor.
	copy(t.Grad.Data, grad.Data)

	for i := len(topo) - 1; i >= 0; i-- {
		v := topo[i]
		if v.Creator != nil {
			if err := v.Creator.Backward(v.Grad); err != nil {
				return fmt.Errorf("error during backward pass for tensor with shape %v: %w", v.Shape, err)
			}
		}
	}
	return nil
}

// GobEncode implements the gob.GobEncoder interface. Grad and Creator
// are transient and intentionally excluded.
func (t *Tensor) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	if err := enc.Encode(t.Data); err != nil {
		return nil, err
	}
	if err := enc.Encode(t.Shape); err != nil {
		return nil, err
	}
	if err := enc.Encode(t.RequiresGrad); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface.
func (t *Tensor) GobDecode(data []byte) error {
	buf := bytes.NewBuffer(data)
	dec := gob.NewDecoder(buf)

	if err := dec.Decode(&t.Data); err != nil {
		return err
	}
	if err := dec.Decode(&t.Shape); err != nil {
		return err
	}
	return dec.Decode(&t.RequiresGrad)
}

func sizeOf(shape []int) int {
	size := 1
	for _, dim := range shape {
		size *= dim
	}
	return size
}

func compareShapes(s1, s2 []int) bool {
	if len(s1) != len(s2) {
		return false
	}
	for i := range s1 {
		if s1[i] != s2[i] {
			return false
		}
	}
	return true
}

func calculateStrides(shape []int) []int {
	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}
