// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package pseudonym

import (
	"math/bits"
)

// goldenRatio spreads consecutive cursor positions across the index space.
const goldenRatio = 0.6180339887498949

// Iterator walks a template's values without repeating any. The cursor is
// explicit state: Next advances it, Exhausted reports when every index has
// been visited, and a fresh Iterator starts over.
//
// Cursor positions map to indexes through i -> (i*stride + offset) mod n with
// gcd(stride, n) == 1, which visits every index exactly once in an order that
// does not look sequential.
type Iterator struct {
	t      *Template
	n      uint64
	stride uint64
	offset uint64
	cursor uint64
	seen   map[string]struct{}
}

// Iterator returns a new unique-value iterator. The seed selects the order.
func (t *Template) Iterator(seed uint64) *Iterator {
	n := t.indexSpace()
	it := &Iterator{t: t, n: n, seen: make(map[string]struct{})}
	if n > 1 {
		mixed := splitmix64(seed)
		it.stride = (uint64(float64(n)*goldenRatio) + mixed%n) % n
		for it.stride == 0 || gcd(it.stride, n) != 1 {
			it.stride = (it.stride + 1) % n
		}
		it.offset = splitmix64(mixed) % n
	}
	return it
}

// Next returns the next value not returned before, or false once the
// template has nothing left.
func (it *Iterator) Next() (string, bool) {
	for it.cursor < it.n {
		v := it.t.Value(it.index(it.cursor))
		it.cursor++
		if _, dup := it.seen[v]; dup {
			continue
		}
		it.seen[v] = struct{}{}
		return v, true
	}
	return "", false
}

// Exhausted reports whether every index has been visited.
func (it *Iterator) Exhausted() bool {
	return it.cursor >= it.n
}

// Emitted returns how many distinct values Next has returned.
func (it *Iterator) Emitted() int {
	return len(it.seen)
}

func (it *Iterator) index(i uint64) uint64 {
	if it.n <= 1 {
		return 0
	}
	hi, lo := bits.Mul64(i, it.stride)
	_, rem := bits.Div64(hi, lo, it.n)
	return (rem + it.offset) % it.n
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
