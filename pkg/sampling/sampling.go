// Package sampling provides the weighted and uniform random selection helpers
// shared by the text generators.
package sampling

import "math/rand/v2"

// Source is the randomness used by the selection helpers. *rand.Rand from
// math/rand/v2 satisfies it, which lets tests pass a seeded generator.
type Source interface {
	Float64() float64
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }
func (globalSource) IntN(n int) int   { return rand.IntN(n) }

// Global is a Source backed by the process-wide math/rand/v2 generator.
var Global Source = globalSource{}

// OrGlobal returns src, or Global if src is nil.
func OrGlobal(src Source) Source {
	if src == nil {
		return Global
	}
	return src
}

// Weighted pairs an item with its (unnormalized) selection weight.
type Weighted[T any] struct {
	Item   T
	Weight float64
}

// Pick chooses one item with probability proportional to its weight. It returns
// false when pairs is empty. When the weights sum to zero or less, the first
// item is returned.
func Pick[T any](src Source, pairs []Weighted[T]) (T, bool) {
	var zero T
	if len(pairs) == 0 {
		return zero, false
	}

	var total float64
	for _, p := range pairs {
		if p.Weight > 0 {
			total += p.Weight
		}
	}
	if total <= 0 {
		return pairs[0].Item, true
	}

	r := OrGlobal(src).Float64() * total
	for _, p := range pairs {
		if p.Weight <= 0 {
			continue
		}
		r -= p.Weight
		if r < 0 {
			return p.Item, true
		}
	}
	// Float rounding can leave r at exactly zero after the last positive weight.
	for i := len(pairs) - 1; i >= 0; i-- {
		if pairs[i].Weight > 0 {
			return pairs[i].Item, true
		}
	}
	return pairs[len(pairs)-1].Item, true
}

// Uniform returns a uniformly random element of items, or false if it is empty.
func Uniform[T any](src Source, items []T) (T, bool) {
	var zero T
	if len(items) == 0 {
		return zero, false
	}
	return items[OrGlobal(src).IntN(len(items))], true
}

// IntRange returns a uniformly random integer in [lo, hi]. Reversed bounds are
// swapped.
func IntRange(src Source, lo, hi int) int {
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + OrGlobal(src).IntN(hi-lo+1)
}
