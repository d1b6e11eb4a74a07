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

package accumulator

import (
	"math"

	"github.com/cardinalhq/accumux/pkg/numeric"
)

// Min tracks the smallest value observed.  NaN observations count toward
// the weight but never become the minimum.
type Min[T numeric.Float] struct {
	n T
	v T
}

// Max tracks the largest value observed.  NaN observations count toward
// the weight but never become the maximum.
type Max[T numeric.Float] struct {
	n T
	v T
}

var (
	_ Accumulator[float64] = &Min[float64]{}
	_ Accumulator[float64] = &Max[float64]{}
	_ Accumulator[float32] = &Min[float32]{}
	_ Accumulator[float32] = &Max[float32]{}
)

func NewMin[T numeric.Float]() *Min[T] {
	return &Min[T]{v: T(math.Inf(1))}
}

func NewMax[T numeric.Float]() *Max[T] {
	return &Max[T]{v: T(math.Inf(-1))}
}

func (m *Min[T]) Kind() Kind  { return KindMin }
func (m *Min[T]) Key() uint64 { return ConfigKey(KindMin, nil) }

func (m *Min[T]) Matches(other Accumulator[T]) bool {
	_, ok := other.(*Min[T])
	return ok
}

func (m *Min[T]) Update(x T) {
	m.n++
	if x < m.v {
		m.v = x
	}
}

func (m *Min[T]) UpdateWeighted(x T, w T) error {
	if err := checkWeight(w); err != nil {
		return err
	}
	m.n += w
	if x < m.v {
		m.v = x
	}
	return nil
}

func (m *Min[T]) Merge(other Accumulator[T]) error {
	o, ok := other.(*Min[T])
	if !ok || o == nil {
		return Incompatible(KindMin, KindOf(other))
	}
	m.n += o.n
	if o.v < m.v {
		m.v = o.v
	}
	return nil
}

// Min returns the minimum, or +Inf when empty.
func (m *Min[T]) Min() T      { return m.v }
func (m *Min[T]) Value() T    { return m.v }
func (m *Min[T]) Weight() T   { return m.n }
func (m *Min[T]) Empty() bool { return m.n == 0 }

func (m *Min[T]) Reset() {
	m.n = 0
	m.v = T(math.Inf(1))
}

func (m *Min[T]) Snapshot() Record {
	return extremumSnapshot(KindMin, m.n, m.v, math.Inf(1))
}

func (m *Min[T]) Restore(r Record) error {
	n, v, err := extremumRestore[T](r, KindMin, math.Inf(1))
	if err != nil {
		return err
	}
	m.n, m.v = n, v
	return nil
}

func (m *Max[T]) Kind() Kind  { return KindMax }
func (m *Max[T]) Key() uint64 { return ConfigKey(KindMax, nil) }

func (m *Max[T]) Matches(other Accumulator[T]) bool {
	_, ok := other.(*Max[T])
	return ok
}

func (m *Max[T]) Update(x T) {
	m.n++
	if x > m.v {
		m.v = x
	}
}

func (m *Max[T]) UpdateWeighted(x T, w T) error {
	if err := checkWeight(w); err != nil {
		return err
	}
	m.n += w
	if x > m.v {
		m.v = x
	}
	return nil
}

func (m *Max[T]) Merge(other Accumulator[T]) error {
	o, ok := other.(*Max[T])
	if !ok || o == nil {
		return Incompatible(KindMax, KindOf(other))
	}
	m.n += o.n
	if o.v > m.v {
		m.v = o.v
	}
	return nil
}

// Max returns the maximum, or -Inf when empty.
func (m *Max[T]) Max() T      { return m.v }
func (m *Max[T]) Value() T    { return m.v }
func (m *Max[T]) Weight() T   { return m.n }
func (m *Max[T]) Empty() bool { return m.n == 0 }

func (m *Max[T]) Reset() {
	m.n = 0
	m.v = T(math.Inf(-1))
}

func (m *Max[T]) Snapshot() Record {
	return extremumSnapshot(KindMax, m.n, m.v, math.Inf(-1))
}

func (m *Max[T]) Restore(r Record) error {
	n, v, err := extremumRestore[T](r, KindMax, math.Inf(-1))
	if err != nil {
		return err
	}
	m.n, m.v = n, v
	return nil
}

// The sentinel is left out of the record so that empty extrema stay
// encodable as JSON.
func extremumSnapshot[T numeric.Float](kind Kind, n T, v T, sentinel float64) Record {
	fields := map[string]float64{"n": float64(n)}
	if float64(v) != sentinel {
		fields[string(kind)] = float64(v)
	}
	return Record{Kind: kind, Fields: fields}
}

func extremumRestore[T numeric.Float](r Record, kind Kind, sentinel float64) (T, T, error) {
	if err := expectKind(r, kind); err != nil {
		return 0, 0, err
	}
	n, err := weightField[T](r)
	if err != nil {
		return 0, 0, err
	}
	v, ok := r.Fields[string(kind)]
	if !ok {
		v = sentinel
	}
	return n, T(v), nil
}
