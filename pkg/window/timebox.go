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

package window

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/cardinalhq/accumux/pkg/accumulator"
	"github.com/cardinalhq/accumux/pkg/numeric"
	"github.com/cardinalhq/accumux/pkg/reduce"
)

type TimeFunc func() time.Time

type boxConfig struct {
	interval      time.Duration
	intervalCount int64
	grace         time.Duration
	timefunc      TimeFunc
}

// TimeBox keeps one accumulator per fixed time interval. Intervals are
// numbered from the Unix epoch, so boxes built with the same interval
// line up and can be merged bucket by bucket.
type TimeBox[T numeric.Float] struct {
	boxConfig
	newFn   reduce.Factory[T]
	buckets map[int64]accumulator.Accumulator[T]
}

func NewTimeBox[T numeric.Float](newFn reduce.Factory[T], options ...TimeBoxOption) (*TimeBox[T], error) {
	box := &TimeBox[T]{
		boxConfig: boxConfig{
			interval:      time.Minute,
			intervalCount: 60,
			grace:         0,
			timefunc:      time.Now,
		},
		newFn:   newFn,
		buckets: map[int64]accumulator.Accumulator[T]{},
	}
	for _, opt := range options {
		opt.apply(&box.boxConfig)
	}

	switch {
	case newFn == nil:
		return nil, fmt.Errorf("%w: nil factory", accumulator.ErrInvalidConfig)
	case box.interval <= 0:
		return nil, fmt.Errorf("%w: interval %s", accumulator.ErrInvalidConfig, box.interval)
	case box.intervalCount < 1:
		return nil, fmt.Errorf("%w: interval count %d", accumulator.ErrInvalidConfig, box.intervalCount)
	case box.grace < 0:
		return nil, fmt.Errorf("%w: grace %s", accumulator.ErrInvalidConfig, box.grace)
	case box.timefunc == nil:
		return nil, fmt.Errorf("%w: nil time function", accumulator.ErrInvalidConfig)
	}
	return box, nil
}

func (b *TimeBox[T]) IntervalForTime(ts time.Time) int64 {
	return ts.UnixNano() / int64(b.interval)
}

func (b *TimeBox[T]) TimeForInterval(interval int64) time.Time {
	return time.Unix(0, 0).Add(b.interval * time.Duration(interval))
}

// Put adds a weighted observation to the interval containing ts. If ts
// is older than the retained span plus grace, nothing is added and
// tooOld is true.
func (b *TimeBox[T]) Put(ts time.Time, x, w T) (tooOld bool, err error) {
	if err := accumulator.CheckWeight(w); err != nil {
		return false, err
	}
	if b.tooOld(ts) {
		return true, nil
	}
	acc := b.bucket(b.IntervalForTime(ts))
	return false, acc.UpdateWeighted(x, w)
}

func (b *TimeBox[T]) bucket(interval int64) accumulator.Accumulator[T] {
	acc, ok := b.buckets[interval]
	if !ok {
		acc = b.newFn()
		b.buckets[interval] = acc
	}
	return acc
}

func (b *TimeBox[T]) tooOld(ts time.Time) bool {
	return b.timefunc().Sub(ts) > b.interval*time.Duration(b.intervalCount)+b.grace
}

func (b *TimeBox[T]) intervalTooOld(now time.Time, interval int64) bool {
	currentInterval := b.IntervalForTime(now.Add(-b.grace))
	return interval < currentInterval-b.intervalCount
}

// Intervals returns the intervals holding data, ascending.
func (b *TimeBox[T]) Intervals() []int64 {
	return slices.Sorted(maps.Keys(b.buckets))
}

// ClosedIntervals returns, ascending, the intervals that fell out of the
// retained span as of now and will receive no further data.
func (b *TimeBox[T]) ClosedIntervals(now time.Time) []int64 {
	var closed []int64
	for _, interval := range b.Intervals() {
		if b.intervalTooOld(now, interval) {
			closed = append(closed, interval)
		}
	}
	return closed
}

// Bucket returns the accumulator for an interval without removing it.
func (b *TimeBox[T]) Bucket(interval int64) (accumulator.Accumulator[T], bool) {
	acc, ok := b.buckets[interval]
	return acc, ok
}

// Take removes and returns the accumulator for an interval.
func (b *TimeBox[T]) Take(interval int64) (accumulator.Accumulator[T], bool) {
	acc, ok := b.buckets[interval]
	if ok {
		delete(b.buckets, interval)
	}
	return acc, ok
}

// Window merges every interval still open as of now into a new
// accumulator. The buckets are not modified.
func (b *TimeBox[T]) Window(now time.Time) (accumulator.Accumulator[T], error) {
	var open []accumulator.Accumulator[T]
	for _, interval := range b.Intervals() {
		if !b.intervalTooOld(now, interval) {
			open = append(open, b.buckets[interval])
		}
	}
	return reduce.Tree(b.newFn, open)
}

// Merge folds the other box into this one interval by interval. Every
// bucket is checked for compatibility first, so a failed merge leaves
// the receiver unchanged.
func (b *TimeBox[T]) Merge(other *TimeBox[T]) error {
	if other == nil {
		return fmt.Errorf("%w: nil time box", accumulator.ErrIncompatibleAccumulator)
	}
	if other.interval != b.interval {
		return fmt.Errorf("%w: interval %s vs %s", accumulator.ErrIncompatibleAccumulator, b.interval, other.interval)
	}
	blank := b.newFn()
	for interval, src := range other.buckets {
		dst, ok := b.buckets[interval]
		if !ok {
			dst = blank
		}
		if !dst.Matches(src) {
			return fmt.Errorf("interval %d: %w", interval, accumulator.Incompatible(dst.Kind(), src.Kind()))
		}
	}
	for _, interval := range other.Intervals() {
		if err := b.bucket(interval).Merge(other.buckets[interval]); err != nil {
			return fmt.Errorf("interval %d: %w", interval, err)
		}
	}
	return nil
}

// Expire drops the intervals closed as of now and returns them.
func (b *TimeBox[T]) Expire(now time.Time) []int64 {
	closed := b.ClosedIntervals(now)
	for _, interval := range closed {
		delete(b.buckets, interval)
	}
	return closed
}

func (b *TimeBox[T]) Len() int { return len(b.buckets) }

func (b *TimeBox[T]) Reset() {
	clear(b.buckets)
}
