// Copyright 2024-2026 Madhukar Beema, Distinguished Engineer. All rights reserved.
// Use of this source code is governed by the Business Source License
// included in the LICENSE file of this repository.

package pseudonym

import (
	"errors"
	"fmt"
	"math"
	"regexp/syntax"
	"strings"
)

const (
	// unbounded is the saturated count of a template with too many values to count.
	unbounded = math.MaxUint64

	// maxIndexSpace bounds the index range iterators walk, so index
	// arithmetic never overflows.
	maxIndexSpace = 1 << 62

	// openRepeatSpan is how far past its minimum an unbounded repeat may go.
	openRepeatSpan = 3
)

var (
	errNoValues = errors.New("template produces no values")

	// dotClass replaces '.' and other wildcards.
	dotClass = []rune{'0', '9', 'A', 'Z', 'a', 'z'}

	// printableClass bounds negated classes such as [^/].
	printableClass = []rune{'!', '~'}
)

// Template is a compiled regular expression that can enumerate the strings
// it matches. Value(i) maps every index below Size() to a value.
type Template struct {
	source string
	root   node
	size   uint64
}

// Compile expands placeholders in template and compiles it.
func Compile(template string) (*Template, error) {
	expanded := ExpandPlaceholders(template)
	re, err := syntax.Parse(expanded, syntax.Perl)
	if err != nil {
		return nil, fmt.Errorf("compile template %q: %w", template, err)
	}
	root := build(re)
	if root.count() == 0 {
		return nil, fmt.Errorf("compile template %q: %w", template, errNoValues)
	}
	return &Template{source: template, root: root, size: root.count()}, nil
}

// String returns the template as written, before placeholder expansion.
func (t *Template) String() string {
	return t.source
}

// Size returns the number of indexable values, saturated at MaxUint64.
func (t *Template) Size() uint64 {
	return t.size
}

// Bounded reports whether Size is exact.
func (t *Template) Bounded() bool {
	return t.size != unbounded
}

// Value returns the value at index i. Indexes wrap around the index space.
func (t *Template) Value(i uint64) string {
	i %= t.indexSpace()
	var b strings.Builder
	t.root.write(&b, i)
	return b.String()
}

// Cardinality estimates the number of distinct values, capped at limit.
// Small templates are enumerated, since ambiguous alternations can yield the
// same string at several indexes.
func (t *Template) Cardinality(limit uint64) uint64 {
	if t.size >= limit {
		return limit
	}
	seen := make(map[string]struct{}, t.size)
	for i := uint64(0); i < t.size; i++ {
		seen[t.Value(i)] = struct{}{}
	}
	return uint64(len(seen))
}

func (t *Template) indexSpace() uint64 {
	if t.size > maxIndexSpace {
		return maxIndexSpace
	}
	return t.size
}

// node is one element of a compiled template. count is saturating; write
// appends the value at index i, where i < count().
type node interface {
	count() uint64
	write(b *strings.Builder, i uint64)
}

func build(re *syntax.Regexp) node {
	switch re.Op {
	case syntax.OpNoMatch:
		return &alternate{}
	case syntax.OpLiteral:
		return literal(string(re.Rune))
	case syntax.OpCharClass:
		return newClass(re.Rune)
	case syntax.OpAnyChar, syntax.OpAnyCharNotNL:
		return newClass(dotClass)
	case syntax.OpCapture:
		return build(re.Sub[0])
	case syntax.OpStar:
		return newRepeat(build(re.Sub[0]), 0, -1)
	case syntax.OpPlus:
		return newRepeat(build(re.Sub[0]), 1, -1)
	case syntax.OpQuest:
		return newRepeat(build(re.Sub[0]), 0, 1)
	case syntax.OpRepeat:
		return newRepeat(build(re.Sub[0]), re.Min, re.Max)
	case syntax.OpConcat:
		parts := make([]node, len(re.Sub))
		for i, sub := range re.Sub {
			parts[i] = build(sub)
		}
		return newConcat(parts)
	case syntax.OpAlternate:
		alts := make([]node, len(re.Sub))
		for i, sub := range re.Sub {
			alts[i] = build(sub)
		}
		return newAlternate(alts)
	default:
		// Empty matches, anchors and word boundaries contribute nothing.
		return literal("")
	}
}

type literal string

func (l literal) count() uint64 { return 1 }

func (l literal) write(b *strings.Builder, _ uint64) { b.WriteString(string(l)) }

// class is a set of rune ranges stored as lo, hi pairs.
type class struct {
	ranges []rune
	size   uint64
}

func newClass(ranges []rune) *class {
	var size uint64
	for i := 0; i+1 < len(ranges); i += 2 {
		size += uint64(ranges[i+1]-ranges[i]) + 1
	}
	if size > 0xFFFF {
		ranges = intersect(ranges, printableClass)
		size = 0
		for i := 0; i+1 < len(ranges); i += 2 {
			size += uint64(ranges[i+1]-ranges[i]) + 1
		}
	}
	return &class{ranges: ranges, size: size}
}

func intersect(ranges, bounds []rune) []rune {
	var out []rune
	for i := 0; i+1 < len(ranges); i += 2 {
		for j := 0; j+1 < len(bounds); j += 2 {
			lo := max(ranges[i], bounds[j])
			hi := min(ranges[i+1], bounds[j+1])
			if lo <= hi {
				out = append(out, lo, hi)
			}
		}
	}
	return out
}

func (c *class) count() uint64 { return c.size }

func (c *class) write(b *strings.Builder, i uint64) {
	for k := 0; k+1 < len(c.ranges); k += 2 {
		width := uint64(c.ranges[k+1]-c.ranges[k]) + 1
		if i < width {
			b.WriteRune(c.ranges[k] + rune(i))
			return
		}
		i -= width
	}
}

// concat enumerates its parts as a mixed-radix number, last part fastest.
type concat struct {
	parts  []node
	counts []uint64
	total  uint64
}

func newConcat(parts []node) *concat {
	c := &concat{parts: parts, counts: make([]uint64, len(parts)), total: 1}
	for i, p := range parts {
		c.counts[i] = p.count()
		c.total = satMul(c.total, c.counts[i])
	}
	return c
}

func (c *concat) count() uint64 { return c.total }

func (c *concat) write(b *strings.Builder, i uint64) {
	digits := make([]uint64, len(c.parts))
	for k := len(c.parts) - 1; k >= 0; k-- {
		digits[k] = i % c.counts[k]
		i /= c.counts[k]
	}
	for k, p := range c.parts {
		p.write(b, digits[k])
	}
}

// alternate enumerates each alternative's values in turn.
type alternate struct {
	alts   []node
	counts []uint64
	total  uint64
}

func newAlternate(alts []node) *alternate {
	a := &alternate{alts: alts, counts: make([]uint64, len(alts))}
	for i, alt := range alts {
		a.counts[i] = alt.count()
		a.total = satAdd(a.total, a.counts[i])
	}
	return a
}

func (a *alternate) count() uint64 { return a.total }

func (a *alternate) write(b *strings.Builder, i uint64) {
	for k, alt := range a.alts {
		if i < a.counts[k] {
			alt.write(b, i)
			return
		}
		i -= a.counts[k]
	}
}

// repeat enumerates sub repeated min..max times, shortest lengths first.
type repeat struct {
	sub     node
	min     int
	base    uint64
	lengths []uint64 // lengths[n] = base^(min+n)
	total   uint64
}

func newRepeat(sub node, minRep, maxRep int) *repeat {
	if maxRep < 0 {
		maxRep = minRep + openRepeatSpan
	}
	r := &repeat{sub: sub, min: minRep, base: sub.count()}
	for n := minRep; n <= maxRep; n++ {
		c := satPow(r.base, n)
		r.lengths = append(r.lengths, c)
		r.total = satAdd(r.total, c)
	}
	return r
}

func (r *repeat) count() uint64 { return r.total }

func (r *repeat) write(b *strings.Builder, i uint64) {
	for k, c := range r.lengths {
		if i < c {
			n := r.min + k
			digits := make([]uint64, n)
			for d := n - 1; d >= 0; d-- {
				digits[d] = i % r.base
				i /= r.base
			}
			for _, d := range digits {
				r.sub.write(b, d)
			}
			return
		}
		i -= c
	}
}

func satAdd(a, b uint64) uint64 {
	if a > unbounded-b {
		return unbounded
	}
	return a + b
}

func satMul(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > unbounded/b {
		return unbounded
	}
	return a * b
}

func satPow(base uint64, n int) uint64 {
	result := uint64(1)
	for ; n > 0; n-- {
		result = satMul(result, base)
		if result == unbounded {
			break
		}
	}
	return result
}
