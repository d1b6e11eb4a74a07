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


package compose

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/cardinalhq/accumux/pkg/accumulator"
	"github.com/cardinalhq/accumux/pkg/numeric"
)

// Conditional routes each observation to Then when pred holds and to Else
// otherwise.  Both sides keep their state, so two conditionals with the
// same predicate merge side by side.  The name identifies pred.
type Conditional[T numeric.Float] struct {
	Then accumulator.Accumulator[T]
	Else accumulator.Accumulator[T]
	name string
	pred func(T) bool
}

var _ accumulator.Accumulator[float64] = &Conditional[float64]{}

func NewConditional[T numeric.Float](name string, pred func(T) bool, then, otherwise accumulator.Accumulator[T]) (*Conditional[T], error) {
	switch {
	case name == "":
		return nil, fmt.Errorf("%w: conditional has no name", accumulator.ErrInvalidConfig)
	case pred == nil:
		return nil, fmt.Errorf("%w: conditional %q has no predicate", accumulator.ErrInvalidConfig, name)
	case then == nil || otherwise == nil:
		return nil, fmt.Errorf("%w: conditional %q needs both accumulators", accumulator.ErrInvalidConfig, name)
	}
	return &Conditional[T]{Then: then, Else: otherwise, name: name, pred: pred}, nil
}

func (c *Conditional[T]) Kind() accumulator.Kind { return KindConditional }

func (c *Conditional[T]) Name() string { return c.name }

func (c *Conditional[T]) Key() uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%s:%s:%x:%x", KindConditional, c.name, c.Then.Key(), c.Else.Key()))
}

func (c *Conditional[T]) Matches(other accumulator.Accumulator[T]) bool {
	o, ok := other.(*Conditional[T])
	return ok && o != nil && o.name == c.name && c.Then.Matches(o.Then) && c.Else.Matches(o.Else)
}

func (c *Conditional[T]) side(x T) accumulator.Accumulator[T] {
	if c.pred(x) {
		return c.Then
	}
	return c.Else
}

func (c *Conditional[T]) Update(x T) { c.side(x).Update(x) }

func (c *Conditional[T]) UpdateWeighted(x T, w T) error {
	if err := accumulator.CheckWeight(w); err != nil {
		return err
	}
	return c.side(x).UpdateWeighted(x, w)
}

func (c *Conditional[T]) Merge(other accumulator.Accumulator[T]) error {
	if !c.Matches(other) {
		return accumulator.Incompatible(KindConditional, accumulator.KindOf(other))
	}
	o := other.(*Conditional[T])
	if err := c.Then.Merge(o.Then); err != nil {
		return fmt.Errorf("then: %w", err)
	}
	if err := c.Else.Merge(o.Else); err != nil {
		return fmt.Errorf("else: %w", err)
	}
	return nil
}

// Value is Then's primary statistic.
func (c *Conditional[T]) Value() T    { return c.Then.Value() }
func (c *Conditional[T]) Weight() T   { return c.Then.Weight() + c.Else.Weight() }
func (c *Conditional[T]) Empty() bool { return c.Then.Empty() && c.Else.Empty() }

func (c *Conditional[T]) Reset() {
	c.Then.Reset()
	c.Else.Reset()
}

func (c *Conditional[T]) Snapshot() accumulator.Record {
	then, otherwise := c.Then.Snapshot(), c.Else.Snapshot()
	then.Name, otherwise.Name = "then", "else"
	return accumulator.Record{
		Kind:    KindConditional,
		Members: []accumulator.Record{then, otherwise},
	}
}

// Restore leaves both sides unchanged when either fails to restore.
func (c *Conditional[T]) Restore(r accumulator.Record) error {
	if r.Kind != KindConditional {
		return accumulator.Incompatible(KindConditional, r.Kind)
	}
	if len(r.Members) != 2 {
		return fmt.Errorf("%w: conditional record has %d members", accumulator.ErrMalformedRecord, len(r.Members))
	}
	saved := c.Then.Snapshot()
	if err := c.Then.Restore(r.Members[0]); err != nil {
		return fmt.Errorf("then: %w", err)
	}
	if err := c.Else.Restore(r.Members[1]); err != nil {
		_ = c.Then.Restore(saved)
		return fmt.Errorf("else: %w", err)
	}
	return nil
}
