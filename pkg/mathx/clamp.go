package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SubFloor returns a-b, or zero when b >= a. Works for unsigned types
// without wrapping.
func SubFloor[T constraints.Integer](a, b T) T {
	if b >= a {
		return 0
	}
	return a - b
}

// AddCap returns a+b capped at limit. The sum is computed in uint64 so that
// narrow unsigned types never wrap before the cap is applied.
func AddCap[T constraints.Unsigned](a, b, limit T) T {
	sum := uint64(a) + uint64(b)
	if sum > uint64(limit) {
		return limit
	}
	return T(sum)
}
