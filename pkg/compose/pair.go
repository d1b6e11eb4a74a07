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

// Pair drives two accumulators of types fixed at compile time.
type Pair[T numeric.Float, A accumulator.Accumulator[T], B accumulator.Accumulator[T]] struct {
	First  A
	Second B
	n      T
}

var _ accumulator.Accumulator[float64] = &Pair[float64, *accumulator.Moments[float64], *accumulator.Max[float64]]{}

func NewPair[T numeric.Float, A accumulator.Accumulator[T], B accumulator.Accumulator[T]](first A, second B) *Pair[T, A, B] {
	return &Pair[T, A, B]{First: first, Second: second}
}

func (p *Pair[T, A, B]) Kind() accumulator.Kind { return KindPair }

func (p *Pair[T, A, B]) Key() uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%s:%x:%x", KindPair, p.First.Key(), p.Second.Key()))
}

func (p *Pair[T, A, B]) Matches(other accumulator.Accumulator[T]) bool {
	o, ok := other.(*Pair[T, A, B])
	return ok && o != nil && p.First.Matches(o.First) && p.Second.Matches(o.Second)
}

func (p *Pair[T, A, B]) Update(x T) {
	p.n++
	p.First.Update(x)
	p.Second.Update(x)
}

func (p *Pair[T, A, B]) UpdateWeighted(x T, w T) error {
	if err := accumulator.CheckWeight(w); err != nil {
		return err
	}
	p.n += w
	if err := p.First.UpdateWeighted(x, w); err != nil {
		return err
	}
	return p.Second.UpdateWeighted(x, w)
}

func (p *Pair[T, A, B]) Merge(other accumulator.Accumulator[T]) error {
	if !p.Matches(other) {
		return accumulator.Incompatible(KindPair, accumulator.KindOf(other))
	}
	o := other.(*Pair[T, A, B])
	if err := p.First.Merge(o.First); err != nil {
		return err
	}
	if err := p.Second.Merge(o.Second); err != nil {
		return err
	}
	p.n += o.n
	return nil
}

// Value is the first accumulator's primary statistic.
func (p *Pair[T, A, B]) Value() T    { return p.First.Value() }
func (p *Pair[T, A, B]) Weight() T   { return p.n }
func (p *Pair[T, A, B]) Empty() bool { return p.n == 0 }

func (p *Pair[T, A, B]) Reset() {
	p.n = 0
	p.First.Reset()
	p.Second.Reset()
}

func (p *Pair[T, A, B]) Snapshot() accumulator.Record {
	first, second := p.First.Snapshot(), p.Second.Snapshot()
	first.Name, second.Name = "first", "second"
	return accumulator.Record{
		Kind:    KindPair,
		Fields:  map[string]float64{"n": float64(p.n)},
		Members: []accumulator.Record{first, second},
	}
}

// Restore leaves the pair unchanged when either side fails to restore.
func (p *Pair[T, A, B]) Restore(r accumulator.Record) error {
	if r.Kind != KindPair {
		return accumulator.Incompatible(KindPair, r.Kind)
	}
	if len(r.Members) != 2 {
		return fmt.Errorf("%w: pair record has %d members", accumulator.ErrMalformedRecord, len(r.Members))
	}
	n, err := accumulator.WeightField[T](r)
	if err != nil {
		return err
	}
	saved := p.First.Snapshot()
	if err := p.First.Restore(r.Members[0]); err != nil {
		return fmt.Errorf("first: %w", err)
	}
	if err := p.Second.Restore(r.Members[1]); err != nil {
		_ = p.First.Restore(saved)
		return fmt.Errorf("second: %w", err)
	}
	p.n = n
	return nil
}
