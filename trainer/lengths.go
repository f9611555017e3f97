package trainer

// ClipLengths computes, for each active sample, how much of its valid
// target falls inside the window starting at t with length l:
// min(tys[i]-t, l), never negative. The caller guarantees t < tys[i]
// for active samples; the clamp to zero only guards the degenerate
// case of an exhausted sample slipping through.
func ClipLengths(tys []int, t, l int) []int {
	clipped := make([]int, len(tys))
	for i, ty := range tys {
		n := ty - t
		if n > l {
			n = l
		}
		if n < 0 {
			n = 0
		}
		clipped[i] = n
	}
	return clipped
}
