package trainer_test

import (
	"testing"

	"github.com/LearnedVector/denoising-wavenet/trainer"
)

func TestClipLengths(t *testing.T) {
	cases := []struct {
		tys  []int
		t, l int
		want []int
	}{
		// Two sequences of length 10 and 4, windows of 4.
		{[]int{10, 4}, 0, 4, []int{4, 4}},
		{[]int{10}, 4, 4, []int{4}},
		{[]int{10}, 8, 4, []int{2}},
		// Cap at the window length.
		{[]int{100, 20}, 0, 16, []int{16, 16}},
		// Exhausted sample clamps to zero instead of going negative.
		{[]int{3}, 5, 4, []int{0}},
	}

	for _, c := range cases {
		got := trainer.ClipLengths(c.tys, c.t, c.l)
		if len(got) != len(c.want) {
			t.Fatalf("ClipLengths(%v, %d, %d) = %v, expected %v", c.tys, c.t, c.l, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("ClipLengths(%v, %d, %d)[%d] = %d, expected %d", c.tys, c.t, c.l, i, got[i], c.want[i])
			}
		}
	}
}
