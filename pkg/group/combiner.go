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

// Package group keeps one accumulator per string key and hands the
// whole set back at a fixed interval.
package group

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/cardinalhq/accumux/pkg/accumulator"
	"github.com/cardinalhq/accumux/pkg/numeric"
	"github.com/cardinalhq/accumux/pkg/reduce"
)

type Entry[T numeric.Float] struct {
	Key string
	Acc accumulator.Accumulator[T]
}

// Buckets maps the xxhash of a key to the entries sharing that hash.
type Buckets[T numeric.Float] map[uint64][]*Entry[T]

func (b Buckets[T]) Get(key string) (accumulator.Accumulator[T], bool) {
	for _, e := range b[xxhash.Sum64String(key)] {
		if e.Key == key {
			return e.Acc, true
		}
	}
	return nil, false
}

// Keys returns every key in the set, sorted.
func (b Buckets[T]) Keys() []string {
	var keys []string
	for _, list := range b {
		for _, e := range list {
			keys = append(keys, e.Key)
		}
	}
	slices.Sort(keys)
	return keys
}

func (b Buckets[T]) Len() int {
	n := 0
	for _, list := range b {
		n += len(list)
	}
	return n
}

// Records snapshots every entry, named by its key, in key order.
func (b Buckets[T]) Records() []accumulator.Record {
	keys := b.Keys()
	ret := make([]accumulator.Record, 0, len(keys))
	for _, k := range keys {
		acc, _ := b.Get(k)
		r := acc.Snapshot()
		r.Name = k
		ret = append(ret, r)
	}
	return ret
}

func (b Buckets[T]) entry(key string, newFn reduce.Factory[T]) *Entry[T] {
	h := xxhash.Sum64String(key)
	for _, e := range b[h] {
		if e.Key == key {
			return e
		}
	}
	e := &Entry[T]{Key: key, Acc: newFn()}
	b[h] = append(b[h], e)
	return e
}

type Combiner[T numeric.Float] struct {
	sync.Mutex
	interval time.Duration
	cutoff   time.Time
	newFn    reduce.Factory[T]
	bucket   Buckets[T]
	logger   *zap.Logger
}

type Option interface {
	apply(*options)
}

type options struct {
	logger *zap.Logger
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = logger
	})
}

func NewCombiner[T numeric.Float](now time.Time, interval time.Duration, newFn reduce.Factory[T], opts ...Option) (*Combiner[T], error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: flush interval %s", accumulator.ErrInvalidConfig, interval)
	}
	if newFn == nil {
		return nil, fmt.Errorf("%w: nil factory", accumulator.ErrInvalidConfig)
	}
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt.apply(&o)
	}
	return &Combiner[T]{
		interval: interval,
		cutoff:   now.Add(interval),
		newFn:    newFn,
		bucket:   Buckets[T]{},
		logger:   o.logger,
	}, nil
}

// Record adds a weighted observation under key. When the flush interval
// has passed it returns the accumulated set and starts a new one;
// otherwise it returns nil.
func (l *Combiner[T]) Record(now time.Time, key string, x, w T) (Buckets[T], error) {
	if err := accumulator.CheckWeight(w); err != nil {
		return nil, fmt.Errorf("key %q: %w", key, err)
	}
	l.Lock()
	defer l.Unlock()
	if err := l.bucket.entry(key, l.newFn).Acc.UpdateWeighted(x, w); err != nil {
		return nil, fmt.Errorf("key %q: %w", key, err)
	}
	return l.flush(now, false), nil
}

// Flush returns the accumulated set regardless of the interval.
func (l *Combiner[T]) Flush(now time.Time) Buckets[T] {
	l.Lock()
	defer l.Unlock()
	return l.flush(now, true)
}

func (l *Combiner[T]) flush(now time.Time, force bool) Buckets[T] {
	if !force && now.Before(l.cutoff) {
		return nil
	}

	bucketpile := l.bucket
	l.bucket = Buckets[T]{}
	l.cutoff = now.Add(l.interval)
	l.logger.Debug("flushing groups",
		zap.Int("keys", bucketpile.Len()),
		zap.Bool("forced", force))
	return bucketpile
}

// Merge folds a bucket set, typically flushed by another combiner, into
// the pending set. Every entry is checked before any is merged.
func (l *Combiner[T]) Merge(other Buckets[T]) error {
	l.Lock()
	defer l.Unlock()
	blank := l.newFn()
	for _, list := range other {
		for _, e := range list {
			dst, ok := l.bucket.Get(e.Key)
			if !ok {
				dst = blank
			}
			if !dst.Matches(e.Acc) {
				return fmt.Errorf("key %q: %w", e.Key, accumulator.Incompatible(dst.Kind(), e.Acc.Kind()))
			}
		}
	}
	for _, key := range other.Keys() {
		src, _ := other.Get(key)
		if err := l.bucket.entry(key, l.newFn).Acc.Merge(src); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
	}
	return nil
}

// Pending returns the number of keys accumulated since the last flush.
func (l *Combiner[T]) Pending() int {
	l.Lock()
	defer l.Unlock()
	return l.bucket.Len()
}
