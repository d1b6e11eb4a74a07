// Copyright 2025 CardinalHQ, Inc
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package compose bundles accumulators so that one pass over the data
// feeds every statistic, and the bundle is itself an accumulator.
package compose

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/multierr"

	"github.com/cardinalhq/accumux/pkg/accumulator"
	"github.com/cardinalhq/accumux/pkg/numeric"
)

const (
	KindComposite   accumulator.Kind = "composite"
	KindPair        accumulator.Kind = "pair"
	KindMap         accumulator.Kind = "map"
	KindConditional accumulator.Kind = "conditional"
)

// Member is a named accumulator inside a composite.
type Member[T numeric.Float] struct {
	Name string
	Acc  accumulator.Accumulator[T]
}

func Named[T numeric.Float](name string, acc accumulator.Accumulator[T]) Member[T] {
	return Member[T]{Name: name, Acc: acc}
}

// Composite is an ordered set of named accumulators driven together.
// It keeps its own weight ledger, so Weight reports the weight every
// member has seen even for members whose n means something else.
type Composite[T numeric.Float] struct {
	members []Member[T]
	index   map[string]int
	n       T
}

var (
	_ accumulator.Accumulator[float64]      = &Composite[float64]{}
	_ accumulator.MeanReporter[float64]     = &Composite[float64]{}
	_ accumulator.VarianceReporter[float64] = &Composite[float64]{}
	_ accumulator.MinReporter[float64]      = &Composite[float64]{}
	_ accumulator.MaxReporter[float64]      = &Composite[float64]{}
	_ accumulator.CountReporter[float64]    = &Composite[float64]{}
)

// New builds a composite that owns the given members, which should be
// empty.  Names must be non-empty and unique.
func New[T numeric.Float](members ...Member[T]) (*Composite[T], error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: composite needs at least one member", accumulator.ErrInvalidConfig)
	}
	c := &Composite[T]{
		members: make([]Member[T], 0, len(members)),
		index:   make(map[string]int, len(members)),
	}
	for _, m := range members {
		if m.Name == "" {
			return nil, fmt.Errorf("%w: composite member has no name", accumulator.ErrInvalidConfig)
		}
		if m.Acc == nil {
			return nil, fmt.Errorf("%w: composite member %q has no accumulator", accumulator.ErrInvalidConfig, m.Name)
		}
		if _, dup := c.index[m.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate composite member %q", accumulator.ErrInvalidConfig, m.Name)
		}
		c.index[m.Name] = len(c.members)
		c.members = append(c.members, m)
	}
	return c, nil
}

// FromKinds builds a composite of default-configured members, each
// named after its kind.
func FromKinds[T numeric.Float](kinds ...accumulator.Kind) (*Composite[T], error) {
	specs := make([]NamedSpec, len(kinds))
	for i, k := range kinds {
		specs[i] = NamedSpec{Name: string(k), Spec: accumulator.Spec{Kind: k}}
	}
	return FromSpecs[T](specs...)
}

func (c *Composite[T]) Kind() accumulator.Kind { return KindComposite }

// Key fingerprints the ordered member names and their keys.
func (c *Composite[T]) Key() uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(string(KindComposite))
	for _, m := range c.members {
		_, _ = d.WriteString(":" + m.Name + "=" + strconv.FormatUint(m.Acc.Key(), 16))
	}
	return d.Sum64()
}

func (c *Composite[T]) Matches(other accumulator.Accumulator[T]) bool {
	o, ok := other.(*Composite[T])
	if !ok || o == nil || len(o.members) != len(c.members) {
		return false
	}
	for i, m := range c.members {
		om := o.members[i]
		if om.Name != m.Name || !m.Acc.Matches(om.Acc) {
			return false
		}
	}
	return true
}

func (c *Composite[T]) Update(x T) {
	c.n++
	for _, m := range c.members {
		m.Acc.Update(x)
	}
}

// UpdateWeighted checks w once; an invalid weight reaches no member.
func (c *Composite[T]) UpdateWeighted(x T, w T) error {
	if err := accumulator.CheckWeight(w); err != nil {
		return err
	}
	c.n += w
	var errs error
	for _, m := range c.members {
		if err := m.Acc.UpdateWeighted(x, w); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", m.Name, err))
		}
	}
	return errs
}

// Merge requires the same ordered member names with matching members.
// Compatibility is checked before any member changes.
func (c *Composite[T]) Merge(other accumulator.Accumulator[T]) error {
	if !c.Matches(other) {
		return fmt.Errorf("%w: composite member sets differ", accumulator.ErrIncompatibleAccumulator)
	}
	o := other.(*Composite[T])
	var errs error
	for i, m := range c.members {
		if err := m.Acc.Merge(o.members[i].Acc); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", m.Name, err))
		}
	}
	c.n += o.n
	return errs
}

// Value is the first member's primary statistic.
func (c *Composite[T]) Value() T    { return c.members[0].Acc.Value() }
func (c *Composite[T]) Weight() T   { return c.n }
func (c *Composite[T]) Count() T    { return c.n }
func (c *Composite[T]) Empty() bool { return c.n == 0 }

func (c *Composite[T]) Reset() {
	c.n = 0
	for _, m := range c.members {
		m.Acc.Reset()
	}
}

// Member returns the named member.
func (c *Composite[T]) Member(name string) (accumulator.Accumulator[T], bool) {
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return c.members[i].Acc, true
}

func (c *Composite[T]) Names() []string {
	names := make([]string, len(c.members))
	for i, m := range c.members {
		names[i] = m.Name
	}
	return names
}

func (c *Composite[T]) Len() int { return len(c.members) }

// ValueOf returns the named member's primary statistic, or NaN for an
// unknown name.
func (c *Composite[T]) ValueOf(name string) T {
	acc, ok := c.Member(name)
	if !ok {
		return numeric.NaN[T]()
	}
	return acc.Value()
}

// Values maps each member name to its primary statistic.
func (c *Composite[T]) Values() map[string]T {
	ret := make(map[string]T, len(c.members))
	for _, m := range c.members {
		ret[m.Name] = m.Acc.Value()
	}
	return ret
}

// Lookup returns the named member as A.
func Lookup[A any, T numeric.Float](c *Composite[T], name string) (A, bool) {
	var zero A
	acc, ok := c.Member(name)
	if !ok {
		return zero, false
	}
	a, ok := acc.(A)
	return a, ok
}

// delegate finds the member answering a statistic, preferring one of
// the given kind and falling back to the first member in order that
// reports it.
func delegate[R any, T numeric.Float](c *Composite[T], kind accumulator.Kind) (R, bool) {
	var fallback R
	found := false
	for _, m := range c.members {
		r, ok := m.Acc.(R)
		if !ok {
			continue
		}
		if m.Acc.Kind() == kind {
			return r, true
		}
		if !found {
			fallback, found = r, true
		}
	}
	return fallback, found
}

// Mean delegates to a mean-reporting member, or returns NaN when no
// member tracks the mean.
func (c *Composite[T]) Mean() T {
	if r, ok := delegate[accumulator.MeanReporter[T]](c, accumulator.KindMean); ok {
		return r.Mean()
	}
	return numeric.NaN[T]()
}

// Variance delegates to a variance-reporting member, or returns NaN.
func (c *Composite[T]) Variance() T {
	if r, ok := delegate[accumulator.VarianceReporter[T]](c, accumulator.KindVariance); ok {
		return r.Variance()
	}
	return numeric.NaN[T]()
}

// Min delegates to a min-reporting member, or returns NaN.
func (c *Composite[T]) Min() T {
	if r, ok := delegate[accumulator.MinReporter[T]](c, accumulator.KindMin); ok {
		return r.Min()
	}
	return numeric.NaN[T]()
}

// Max delegates to a max-reporting member, or returns NaN.
func (c *Composite[T]) Max() T {
	if r, ok := delegate[accumulator.MaxReporter[T]](c, accumulator.KindMax); ok {
		return r.Max()
	}
	return numeric.NaN[T]()
}

func (c *Composite[T]) Snapshot() accumulator.Record {
	members := make([]accumulator.Record, len(c.members))
	for i, m := range c.members {
		members[i] = m.Acc.Snapshot()
		members[i].Name = m.Name
	}
	return accumulator.Record{
		Kind:    KindComposite,
		Fields:  map[string]float64{"n": float64(c.n)},
		Members: members,
	}
}

// Restore replaces every member's state.  The record must name the same
// members in the same order; on any failure the composite is unchanged.
func (c *Composite[T]) Restore(r accumulator.Record) error {
	if r.Kind != KindComposite {
		return accumulator.Incompatible(KindComposite, r.Kind)
	}
	if len(r.Members) != len(c.members) {
		return fmt.Errorf("%w: composite record has %d members, want %d",
			accumulator.ErrIncompatibleAccumulator, len(r.Members), len(c.members))
	}
	n, err := accumulator.WeightField[T](r)
	if err != nil {
		return err
	}
	for i, m := range c.members {
		if r.Members[i].Name != m.Name {
			return fmt.Errorf("%w: composite member %d is %q, want %q",
				accumulator.ErrIncompatibleAccumulator, i, r.Members[i].Name, m.Name)
		}
	}
	saved := make([]accumulator.Record, 0, len(c.members))
	for i, m := range c.members {
		saved = append(saved, m.Acc.Snapshot())
		if err := m.Acc.Restore(r.Members[i]); err != nil {
			for j, prev := range saved {
				_ = c.members[j].Acc.Restore(prev)
			}
			return fmt.Errorf("%s: %w", m.Name, err)
		}
	}
	c.n = n
	return nil
}
