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

// Count tracks the total weight observed.
type Count[T numeric.Float] struct {
	n T
}

var (
	_ Accumulator[float64] = &Count[float64]{}
	_ Accumulator[float32] = &Count[float32]{}
)

func NewCount[T numeric.Float]() *Count[T] {
	return &Count[T]{}
}

func (c *Count[T]) Kind() Kind  { return KindCount }
func (c *Count[T]) Key() uint64 { return ConfigKey(KindCount, nil) }

func (c *Count[T]) Matches(other Accumulator[T]) bool {
	_, ok := other.(*Count[T])
	return ok
}

func (c *Count[T]) Update(_ T) {
	c.n++
}

func (c *Count[T]) UpdateWeighted(_ T, w T) error {
	if err := checkWeight(w); err != nil {
		return err
	}
	c.n += w
	return nil
}

func (c *Count[T]) Merge(other Accumulator[T]) error {
	o, ok := other.(*Count[T])
	if !ok || o == nil {
		return Incompatible(KindCount, KindOf(other))
	}
	c.n += o.n
	return nil
}

// Count returns n; it is 0 when empty.
func (c *Count[T]) Count() T    { return c.n }
func (c *Count[T]) Value() T    { return c.n }
func (c *Count[T]) Weight() T   { return c.n }
func (c *Count[T]) Empty() bool { return c.n == 0 }
func (c *Count[T]) Reset()      { c.n = 0 }

func (c *Count[T]) Snapshot() Record {
	return Record{
		Kind:   KindCount,
		Fields: map[string]float64{"n": float64(c.n)},
	}
}

func (c *Count[T]) Restore(r Record) error {
	if err := expectKind(r, KindCount); err != nil {
		return err
	}
	n, err := weightField[T](r)
	if err != nil {
		return err
	}
	c.n = n
	return nil
}
