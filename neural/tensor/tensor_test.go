package tensor_test

import (
	"math"
	"testing"

	"github.com/LearnedVector/denoising-wavenet/neural/tensor"
)

func TestSumBackward(t *testing.T) {
	x := tensor.NewTensor([]int{2, 3}, []float64{1, 2, 3, 4, 5, 6}, true)

	s, err := x.Sum()
	if err != nil {
		t.Fatalf("Sum failed: %v", err)
	}
	if s.Item() != 21 {
		t.Errorf("expected sum 21, got %v", s.Item())
	}

	if err := s.Backward(tensor.NewTensor([]int{1}, []float64{1.0}, false)); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}
	for i, g := range x.Grad.Data {
		if g != 1.0 {
			t.Errorf("grad[%d] = %v, expected 1.0", i, g)
		}
	}
}

func TestSubMulSumBackward(t *testing.T) {
	// d/da sum((a-b)^2) = 2(a-b)
	a := tensor.NewTensor([]int{3}, []float64{1, 2, 3}, true)
	b := tensor.NewTensor([]int{3}, []float64{0, 1, 5}, false)

	diff, err := a.Sub(b)
	if err != nil {
		t.Fatalf("Sub failed: %v", err)
	}
	sq, err := diff.Mul(diff)
	if err != nil {
		t.Fatalf("Mul failed: %v", err)
	}
	loss, err := sq.Sum()
	if err != nil {
		t.Fatalf("Sum failed: %v", err)
	}
	if loss.Item() != 1+1+4 {
		t.Errorf("expected loss 6, got %v", loss.Item())
	}

	if err := loss.Backward(tensor.NewTensor([]int{1}, []float64{1.0}, false)); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}
	want := []float64{2, 2, -4}
	for i, g := range a.Grad.Data {
		if math.Abs(g-want[i]) > 1e-12 {
			t.Errorf("grad[%d] = %v, expected %v", i, g, want[i])
		}
	}
}

func TestAbsBackward(t *testing.T) {
	x := tensor.NewTensor([]int{3}, []float64{-2, 0, 3}, true)

	ab, err := x.Abs()
	if err != nil {
		t.Fatalf("Abs failed: %v", err)
	}
	loss, err := ab.Sum()
	if err != nil {
		t.Fatalf("Sum failed: %v", err)
	}
	if err := loss.Backward(tensor.NewTensor([]int{1}, []float64{1.0}, false)); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	want := []float64{-1, 0, 1}
	for i, g := range x.Grad.Data {
		if g != want[i] {
			t.Errorf("grad[%d] = %v, expected %v", i, g, want[i])
		}
	}
}

func TestSliceBackward(t *testing.T) {
	// 1 sample, 1 channel, 4 timesteps
	x := tensor.NewTensor([]int{1, 1, 4}, []float64{1, 2, 3, 4}, true)

	seg, err := x.Slice(2, 1, 3)
	if err != nil {
		t.Fatalf("Slice failed: %v", err)
	}
	if !shapeEquals(seg.Shape, []int{1, 1, 2}) {
		t.Fatalf("unexpected slice shape %v", seg.Shape)
	}
	if seg.Data[0] != 2 || seg.Data[1] != 3 {
		t.Errorf("unexpected slice data %v", seg.Data)
	}

	loss, err := seg.Sum()
	if err != nil {
		t.Fatalf("Sum failed: %v", err)
	}
	if err := loss.Backward(tensor.NewTensor([]int{1}, []float64{1.0}, false)); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	want := []float64{0, 1, 1, 0}
	for i, g := range x.Grad.Data {
		if g != want[i] {
			t.Errorf("grad[%d] = %v, expected %v", i, g, want[i])
		}
	}
}

func TestSharedNodeBackward(t *testing.T) {
	// total = 2*out + 3*out with out an interior node: out must collect
	// both consumers' contributions before propagating to w.
	w := tensor.NewTensor([]int{1}, []float64{1}, true)

	out, err := w.MulScalar(1)
	if err != nil {
		t.Fatalf("MulScalar failed: %v", err)
	}
	a, err := out.MulScalar(2)
	if err != nil {
		t.Fatalf("MulScalar failed: %v", err)
	}
	b, err := out.MulScalar(3)
	if err != nil {
		t.Fatalf("MulScalar failed: %v", err)
	}
	total, err := a.Add(b)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if err := total.Backward(tensor.NewTensor([]int{1}, []float64{1.0}, false)); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}
	if got := out.Grad.Data[0]; got != 5 {
		t.Errorf("shared node grad = %v, expected 5", got)
	}
	if got := w.Grad.Data[0]; got != 5 {
		t.Errorf("leaf grad = %v, expected 5", got)
	}
}

func TestSharedSliceBackward(t *testing.T) {
	// Two per-sample slices of one interior node, each summed and
	// joined, like a padded batch reduced sample by sample.
	x := tensor.NewTensor([]int{2, 1, 4}, []float64{1, 2, 3, 4, 5, 6, 7, 8}, true)

	out, err := x.MulScalar(1)
	if err != nil {
		t.Fatalf("MulScalar failed: %v", err)
	}

	sumOf := func(sample, timeLen int) *tensor.Tensor {
		s, err := out.Slice(0, sample, sample+1)
		if err != nil {
			t.Fatalf("Slice failed: %v", err)
		}
		s, err = s.Slice(2, 0, timeLen)
		if err != nil {
			t.Fatalf("Slice failed: %v", err)
		}
		total, err := s.Sum()
		if err != nil {
			t.Fatalf("Sum failed: %v", err)
		}
		return total
	}

	total, err := sumOf(0, 4).Add(sumOf(1, 2))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := total.Backward(tensor.NewTensor([]int{1}, []float64{1.0}, false)); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	want := []float64{1, 1, 1, 1, 1, 1, 0, 0}
	for i, g := range x.Grad.Data {
		if g != want[i] {
			t.Errorf("grad[%d] = %v, expected %v", i, g, want[i])
		}
	}
}

func TestGobRoundTrip(t *testing.T) {
	x := tensor.NewTensor([]int{2, 2}, []float64{1, 2, 3, 4}, true)

	blob, err := x.GobEncode()
	if err != nil {
		t.Fatalf("GobEncode failed: %v", err)
	}
	var y tensor.Tensor
	if err := y.GobDecode(blob); err != nil {
		t.Fatalf("GobDecode failed: %v", err)
	}

	if !shapeEquals(y.Shape, x.Shape) {
		t.Errorf("shape mismatch after round trip: %v vs %v", y.Shape, x.Shape)
	}
	for i := range x.Data {
		if y.Data[i] != x.Data[i] {
			t.Errorf("data[%d] = %v, expected %v", i, y.Data[i], x.Data[i])
		}
	}
}

func shapeEquals(a, b []int) bool {
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
