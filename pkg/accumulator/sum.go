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

import "github.com/cardinalhq/accumux/pkg/numeric"

// Sum is a compensated weighted sum.
type Sum[T numeric.Float] struct {
	n     T
	total numeric.KBNSum[T]
}

var (
	_ Accumulator[float64] = &Sum[float64]{}
	_ Accumulator[float32] = &Sum[float32]{}
)

func NewSum[T numeric.Float]() *Sum[T] {
	return &Sum[T]{}
}

func (s *Sum[T]) Kind() Kind  { return KindSum }
func (s *Sum[T]) Key() uint64 { return ConfigKey(KindSum, nil) }

func (s *Sum[T]) Matches(other Accumulator[T]) bool {
	_, ok := other.(*Sum[T])
	return ok
}

func (s *Sum[T]) Update(x T) {
	s.n++
	s.total.Add(x)
}

func (s *Sum[T]) UpdateWeighted(x T, w T) error {
	if err := checkWeight(w); err != nil {
		return err
	}
	s.n += w
	s.total.Add(w * x)
	return nil
}

func (s *Sum[T]) Merge(other Accumulator[T]) error {
	o, ok := other.(*Sum[T])
	if !ok || o == nil {
		return Incompatible(KindSum, KindOf(other))
	}
	s.n += o.n
	s.total.Merge(o.total)
	return nil
}

// Sum returns the weighted total; it is 0 when empty.
func (s *Sum[T]) Sum() T      { return s.total.Value() }
func (s *Sum[T]) Value() T    { return s.total.Value() }
func (s *Sum[T]) Count() T    { return s.n }
func (s *Sum[T]) Weight() T   { return s.n }
func (s *Sum[T]) Empty() bool { return s.n == 0 }

func (s *Sum[T]) Reset() {
	s.n = 0
	s.total.Reset()
}

func (s *Sum[T]) Snapshot() Record {
	fields := map[string]float64{"n": float64(s.n)}
	putSum(fields, "sum", s.total)
	return Record{Kind: KindSum, Fields: fields}
}

func (s *Sum[T]) Restore(r Record) error {
	if err := expectKind(r, KindSum); err != nil {
		return err
	}
	n, err := weightField[T](r)
	if err != nil {
		return err
	}
	total, err := getSum[T](r, "sum")
	if err != nil {
		return err
	}
	s.n, s.total = n, total
	return nil
}
