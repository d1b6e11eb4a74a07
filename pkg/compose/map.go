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

// Map reports fn applied to an inner accumulator's value.  Updates and
// merges go straight to the inner accumulator, so a Map merges exactly
// when its inner accumulator does.  The name identifies fn: two maps
// match only when their names and inner accumulators do.
type Map[T numeric.Float] struct {
	inner accumulator.Accumulator[T]
	name  string
	fn    func(T) T
}

var _ accumulator.Accumulator[float64] = &Map[float64]{}

func NewMap[T numeric.Float](name string, inner accumulator.Accumulator[T], fn func(T) T) (*Map[T], error) {
	switch {
	case name == "":
		return nil, fmt.Errorf("%w: map has no name", accumulator.ErrInvalidConfig)
	case inner == nil:
		return nil, fmt.Errorf("%w: map %q has no accumulator", accumulator.ErrInvalidConfig, name)
	case fn == nil:
		return nil, fmt.Errorf("%w: map %q has no function", accumulator.ErrInvalidConfig, name)
	}
	return &Map[T]{inner: inner, name: name, fn: fn}, nil
}

func (m *Map[T]) Kind() accumulator.Kind { return KindMap }

func (m *Map[T]) Key() uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%s:%s:%x", KindMap, m.name, m.inner.Key()))
}

func (m *Map[T]) Matches(other accumulator.Accumulator[T]) bool {
	o, ok := other.(*Map[T])
	return ok && o != nil && o.name == m.name && m.inner.Matches(o.inner)
}

func (m *Map[T]) Update(x T) { m.inner.Update(x) }

func (m *Map[T]) UpdateWeighted(x T, w T) error { return m.inner.UpdateWeighted(x, w) }

func (m *Map[T]) Merge(other accumulator.Accumulator[T]) error {
	if !m.Matches(other) {
		return accumulator.Incompatible(KindMap, accumulator.KindOf(other))
	}
	return m.inner.Merge(other.(*Map[T]).inner)
}

func (m *Map[T]) Value() T    { return m.fn(m.inner.Value()) }
func (m *Map[T]) Weight() T   { return m.inner.Weight() }
func (m *Map[T]) Empty() bool { return m.inner.Empty() }
func (m *Map[T]) Reset()      { m.inner.Reset() }

func (m *Map[T]) Name() string { return m.name }

// Inner returns the wrapped accumulator.
func (m *Map[T]) Inner() accumulator.Accumulator[T] { return m.inner }

func (m *Map[T]) Snapshot() accumulator.Record {
	inner := m.inner.Snapshot()
	inner.Name = m.name
	return accumulator.Record{
		Kind:    KindMap,
		Members: []accumulator.Record{inner},
	}
}

func (m *Map[T]) Restore(r accumulator.Record) error {
	if r.Kind != KindMap {
		return accumulator.Incompatible(KindMap, r.Kind)
	}
	if len(r.Members) != 1 {
		return fmt.Errorf("%w: map record has %d members", accumulator.ErrMalformedRecord, len(r.Members))
	}
	if r.Members[0].Name != m.name {
		return fmt.Errorf("%w: map record is %q, want %q",
			accumulator.ErrIncompatibleAccumulator, r.Members[0].Name, m.name)
	}
	return m.inner.Restore(r.Members[0])
}
