// Package mathx has the generic range helpers used for config checks and
// history paging.
package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]; swapped bounds are tolerated.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	lo, hi = order(lo, hi)
	return Min(Max(v, lo), hi)
}

// Between reports whether v lies in [lo, hi], inclusive.
func Between[T constraints.Ordered](v, lo, hi T) bool {
	lo, hi = order(lo, hi)
	return lo <= v && v <= hi
}

func Min[T constraints.Ordered](a, b T) T {
	if b < a {
		return b
	}
	return a
}

func Max[T constraints.Ordered](a, b T) T {
	if b > a {
		return b
	}
	return a
}

func order[T constraints.Ordered](a, b T) (T, T) {
	if b < a {
		return b, a
	}
	return a, b
}

// CeilDiv is ceil(a/b) for unsigned a, b; b == 0 yields 0.
func CeilDiv[T constraints.Unsigned](a, b T) T {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
