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

// Package window keeps accumulators over bounded views of a stream: the
// last N observations, or a set of fixed time intervals.
package window

import (
	"fmt"

	"github.com/cardinalhq/accumux/pkg/accumulator"
	"github.com/cardinalhq/accumux/pkg/numeric"
	"github.com/cardinalhq/accumux/pkg/reduce"
)

// Sliding holds the last size weighted observations. The accumulator is
// updated incrementally until the first eviction, after which it is
// rebuilt from the retained observations on the next read.
type Sliding[T numeric.Float] struct {
	size    int
	newFn   reduce.Factory[T]
	values  []T
	weights []T
	head    int
	count   int
	acc     accumulator.Accumulator[T]
	stale   bool
}

func NewSliding[T numeric.Float](size int, newFn reduce.Factory[T]) (*Sliding[T], error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: window size %d", accumulator.ErrInvalidConfig, size)
	}
	if newFn == nil {
		return nil, fmt.Errorf("%w: nil factory", accumulator.ErrInvalidConfig)
	}
	return &Sliding[T]{
		size:    size,
		newFn:   newFn,
		values:  make([]T, size),
		weights: make([]T, size),
		acc:     newFn(),
	}, nil
}

// Update adds x with weight 1. An observation the accumulator rejects is
// not kept.
func (s *Sliding[T]) Update(x T) {
	_ = s.push(x, 1)
}

func (s *Sliding[T]) UpdateWeighted(x, w T) error {
	if err := accumulator.CheckWeight(w); err != nil {
		return err
	}
	return s.push(x, w)
}

// push stores the observation only once the live accumulator has taken
// it. After the first eviction observations are stored as given and
// Result rebuilds from them.
func (s *Sliding[T]) push(x, w T) error {
	if s.count == s.size {
		s.values[s.head] = x
		s.weights[s.head] = w
		s.head = (s.head + 1) % s.size
		s.stale = true
		return nil
	}
	if !s.stale {
		if err := s.acc.UpdateWeighted(x, w); err != nil {
			return err
		}
	}
	i := (s.head + s.count) % s.size
	s.values[i] = x
	s.weights[i] = w
	s.count++
	return nil
}

// Result returns the accumulator over the retained observations. The
// returned value is owned by the window and changes with later updates.
func (s *Sliding[T]) Result() accumulator.Accumulator[T] {
	if s.stale {
		s.acc.Reset()
		// Retained weights were checked on the way in.
		s.each(func(x, w T) {
			_ = s.acc.UpdateWeighted(x, w)
		})
		s.stale = false
	}
	return s.acc
}

func (s *Sliding[T]) Value() T { return s.Result().Value() }

// Values returns the retained observations, oldest first.
func (s *Sliding[T]) Values() []T {
	ret := make([]T, 0, s.count)
	s.each(func(x, _ T) { ret = append(ret, x) })
	return ret
}

func (s *Sliding[T]) each(fn func(x, w T)) {
	for k := 0; k < s.count; k++ {
		i := (s.head + k) % s.size
		fn(s.values[i], s.weights[i])
	}
}

func (s *Sliding[T]) Len() int   { return s.count }
func (s *Sliding[T]) Size() int  { return s.size }
func (s *Sliding[T]) Full() bool { return s.count == s.size }

func (s *Sliding[T]) Reset() {
	s.head, s.count = 0, 0
	s.acc.Reset()
	s.stale = false
}

// Merge appends the other window's observations, oldest first, as if
// they had arrived after this window's own.
func (s *Sliding[T]) Merge(other *Sliding[T]) error {
	if other == nil {
		return fmt.Errorf("%w: nil window", accumulator.ErrIncompatibleAccumulator)
	}
	if !s.acc.Matches(other.acc) {
		return accumulator.Incompatible(s.acc.Kind(), other.acc.Kind())
	}
	type obs struct{ x, w T }
	pending := make([]obs, 0, other.count)
	other.each(func(x, w T) { pending = append(pending, obs{x, w}) })
	for _, o := range pending {
		if err := s.push(o.x, o.w); err != nil {
			return err
		}
	}
	return nil
}
