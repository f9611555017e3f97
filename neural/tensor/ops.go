package tensor

import (
	"fmt"
	"math"
)

// Add performs element-wise addition of two tensors.
func (t *Tensor) Add(other *Tensor) (*Tensor, error) {
	if !compareShapes(t.Shape, other.Shape) {
		return nil, fmt.Errorf("mismatched shapes for Add operation: %v and %v", t.Shape, other.Shape)
	}

	resultData := make([]float64, len(t.Data))
	for i := range t.Data {
		resultData[i] = t.Data[i] + other.Data[i]
	}

	result := NewTensor(t.Shape, resultData, t.RequiresGrad || other.RequiresGrad)
	if result.RequiresGrad {
		result.Creator = &AddOperation{t, other}
	}
	return result, nil
}

// AddOperation represents the addition operation for the backward pass.
type AddOperation struct {
	A *Tensor
	B *Tensor
}

func (op *AddOperation) Inputs() []*Tensor {
	return []*Tensor{op.A, op.B}
}

func (op *AddOperation) Backward(grad *Tensor) error {
	// Gradient of addition passes the gradient through to both inputs.
	for _, in := range []*Tensor{op.A, op.B} {
		if !in.RequiresGrad {
			continue
		}
		if in.Grad == nil {
			in.Grad = NewTensor(in.Shape, nil, false)
		}
		for i := range grad.Data {
			in.Grad.Data[i] += grad.Data[i]
		}
	}
	return nil
}

// Sub performs element-wise subtraction of two tensors.
func (t *Tensor) Sub(other *Tensor) (*Tensor, error) {
	if !compareShapes(t.Shape, other.Shape) {
		return nil, fmt.Errorf("mismatched shapes for Sub operation: %v and %v", t.Shape, other.Shape)
	}

	resultData := make([]float64, len(t.Data))
	for i := range t.Data {
		resultData[i] = t.Data[i] - other.Data[i]
	}

	result := NewTensor(t.Shape, resultData, t.RequiresGrad || other.RequiresGrad)
	if result.RequiresGrad {
		result.Creator = &SubOperation{t, other}
	}
	return result, nil
}

// SubOperation represents the subtraction operation for the backward pass.
type SubOperation struct {
	A *Tensor
	B *Tensor
}

func (op *SubOperation) Inputs() []*Tensor {
	return []*Tensor{op.A, op.B}
}

func (op *SubOperation) Backward(grad *Tensor) error {
	if op.A.RequiresGrad {
		if op.A.Grad == nil {
			op.A.Grad = NewTensor(op.A.Shape, nil, false)
		}
		for i := range grad.Data {
			op.A.Grad.Data[i] += grad.Data[i]
		}
	}
	if op.B.RequiresGrad {
		if op.B.Grad == nil {
			op.B.Grad = NewTensor(op.B.Shape, nil, false)
		}
		for i := range grad.Data {
			op.B.Grad.Data[i] -= grad.Data[i]
		}
	}
	return nil
}

// Mul performs element-wise multiplication of two tensors.
func (t *Tensor) Mul(other *Tensor) (*Tensor, error) {
	if !compareShapes(t.Shape, other.Shape) {
		return nil, fmt.Errorf("mismatched shapes for Mul operation: %v and %v", t.Shape, other.Shape)
	}

	resultData := make([]float64, len(t.Data))
	for i := range t.Data {
		resultData[i] = t.Data[i] * other.Data[i]
	}

	result := NewTensor(t.Shape, resultData, t.RequiresGrad || other.RequiresGrad)
	if result.RequiresGrad {
		result.Creator = &MulOperation{t, other}
	}
	return result, nil
}

// MulOperation represents the multiplication operation for the backward pass.
type MulOperation struct {
	A *Tensor
	B *Tensor
}

func (op *MulOperation) Inputs() []*Tensor {
	return []*Tensor{op.A, op.B}
}

func (op *MulOperation) Backward(grad *Tensor) error {
	if op.A.RequiresGrad {
		if op.A.Grad == nil {
			op.A.Grad = NewTensor(op.A.Shape, nil, false)
		}
		for i := range grad.Data {
			op.A.Grad.Data[i] += grad.Data[i] * op.B.Data[i]
		}
	}
	if op.B.RequiresGrad {
		if op.B.Grad == nil {
			op.B.Grad = NewTensor(op.B.Shape, nil, false)
		}
		for i := range grad.Data {
			op.B.Grad.Data[i] += grad.Data[i] * op.A.Data[i]
		}
	}
	return nil
}

// MulScalar performs element-wise multiplication by a scalar.
func (t *Tensor) MulScalar(val float64) (*Tensor, error) {
	resultData := make([]float64, len(t.Data))
	for i, v := range t.Data {
		resultData[i] = v * val
	}

	result := NewTensor(t.Shape, resultData, t.RequiresGrad)
	if result.RequiresGrad {
		result.Creator = &MulScalarOperation{t, val}
	}
	return result, nil
}

// MulScalarOperation represents the scalar multiplication operation for
// the backward pass.
type MulScalarOperation struct {
	Input  *Tensor
	Scalar float64
}

func (op *MulScalarOperation) Inputs() []*Tensor {
	return []*Tensor{op.Input}
}

func (op *MulScalarOperation) Backward(grad *Tensor) error {
	if !op.Input.RequiresGrad {
		return nil
	}
	if op.Input.Grad == nil {
		op.Input.Grad = NewTensor(op.Input.Shape, nil, false)
	}
	for i := range grad.Data {
		op.Input.Grad.Data[i] += grad.Data[i] * op.Scalar
	}
	return nil
}

// DivScalar performs element-wise division by a scalar.
func (t *Tensor) DivScalar(val float64) (*Tensor, error) {
	if val == 0 {
		return nil, fmt.Errorf("division by zero scalar")
	}
	return t.MulScalar(1 / val)
}

// Abs applies the absolute value function element-wise.
func (t *Tensor) Abs() (*Tensor, error) {
	resultData := make([]float64, len(t.Data))
	for i, v := range t.Data {
		resultData[i] = math.Abs(v)
	}

	result := NewTensor(t.Shape, resultData, t.RequiresGrad)
	if result.RequiresGrad {
		result.Creator = &AbsOperation{t}
	}
	return result, nil
}

// AbsOperation represents the absolute value operation for the backward
// pass. The subgradient at zero is taken as zero.
type AbsOperation struct {
	Input *Tensor
}

func (op *AbsOperation) Inputs() []*Tensor {
	return []*Tensor{op.Input}
}

func (op *AbsOperation) Backward(grad *Tensor) error {
	if !op.Input.RequiresGrad {
		return nil
	}
	if op.Input.Grad == nil {
		op.Input.Grad = NewTensor(op.Input.Shape, nil, false)
	}
	for i := range grad.Data {
		switch {
		case op.Input.Data[i] > 0:
			op.Input.Grad.Data[i] += grad.Data[i]
		case op.Input.Data[i] < 0:
			op.Input.Grad.Data[i] -= grad.Data[i]
		}
	}
	return nil
}

// Sum reduces the tensor to a scalar holding the sum of all elements.
func (t *Tensor) Sum() (*Tensor, error) {
	total := 0.0
	for _, v := range t.Data {
		total += v
	}

	result := NewTensor([]int{1}, []float64{total}, t.RequiresGrad)
	if result.RequiresGrad {
		result.Creator = &SumOperation{t}
	}
	return result, nil
}

// SumOperation represents the full sum reduction for the backward pass.
type SumOperation struct {
	Input *Tensor
}

func (op *SumOperation) Inputs() []*Tensor {
	return []*Tensor{op.Input}
}

func (op *SumOperation) Backward(grad *Tensor) error {
	if !op.Input.RequiresGrad {
		return nil
	}
	if op.Input.Grad == nil {
		op.Input.Grad = NewTensor(op.Input.Shape, nil, false)
	}
	// The gradient of a sum broadcasts the scalar gradient to every
	// element of the input.
	for i := range op.Input.Grad.Data {
		op.Input.Grad.Data[i] += grad.Data[0]
	}
	return nil
}

// Slice returns a new Tensor holding a copy of the slice [start, end)
// of the original tensor along the given axis. The result participates
// in the graph: gradients flow back into the sliced region.
func (t *Tensor) Slice(axis, start, end int) (*Tensor, error) {
	if axis < 0 || axis >= len(t.Shape) {
		return nil, fmt.Errorf("axis %d out of bounds for tensor with shape %v", axis, t.Shape)
	}
	if start < 0 || end > t.Shape[axis] || start > end {
		return nil, fmt.Errorf("invalid slice indices for axis %d: start %d, end %d for dimension size %d", axis, start, end, t.Shape[axis])
	}

	newShape := make([]int, len(t.Shape))
	copy(newShape, t.Shape)
	newShape[axis] = end - start

	result := NewTensor(newShape, nil, t.RequiresGrad)
	if result.RequiresGrad {
		result.Creator = &SliceOperation{t, axis, start, end}
	}

	strides := calculateStrides(t.Shape)
	newStrides := calculateStrides(newShape)

	for i := range result.Data {
		// Convert the flat index in the slice to coordinates, shift
		// along the sliced axis, and map back into the original.
		offset := 0
		tempIdx := i
		for dim := 0; dim < len(newShape); dim++ {
			coord := tempIdx / newStrides[dim]
			tempIdx %= newStrides[dim]
			if dim == axis {
				coord += start
			}
			offset += coord * strides[dim]
		}
		result.Data[i] = t.Data[offset]
	}
	return result, nil
}

// SliceOperation represents a slice along one axis for the backward pass.
type SliceOperation struct {
	Input *Tensor
	Axis  int
	Start int
	End   int
}

func (op *SliceOperation) Inputs() []*Tensor {
	return []*Tensor{op.Input}
}

func (op *SliceOperation) Backward(grad *Tensor) error {
	if !op.Input.RequiresGrad {
		return nil
	}
	if op.Input.Grad == nil {
		op.Input.Grad = NewTensor(op.Input.Shape, nil, false)
	}

	inputStrides := calculateStrides(op.Input.Shape)
	gradStrides := calculateStrides(grad.Shape)

	for i := range grad.Data {
		offset := 0
		tempIdx := i
		for dim := 0; dim < len(grad.Shape); dim++ {
			coord := tempIdx / gradStrides[dim]
			tempIdx %= gradStrides[dim]
			if dim == op.Axis {
				coord += op.Start
			}
			offset += coord * inputStrides[dim]
		}
		op.Input.Grad.Data[offset] += grad.Data[i]
	}
	return nil
}
