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

// Package reduce combines partial accumulators.  Because merge is
// associative and commutative up to rounding, any combination order
// gives the same statistics, which lets partitions be reduced in
// parallel.
package reduce

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/accumux/pkg/accumulator"
	"github.com/cardinalhq/accumux/pkg/numeric"
)

// Factory returns a new empty accumulator.  Every call must return an
// accumulator with the same configuration.
type Factory[T numeric.Float] func() accumulator.Accumulator[T]

// Fold merges each part into dst in order, skipping nil parts.  It stops
// at the first failing merge.
func Fold[T numeric.Float](dst accumulator.Accumulator[T], parts ...accumulator.Accumulator[T]) error {
	for i, p := range parts {
		if p == nil {
			continue
		}
		if err := dst.Merge(p); err != nil {
			return fmt.Errorf("part %d: %w", i, err)
		}
	}
	return nil
}

// Tree merges parts pairwise, level by level, carrying an odd part up to
// the next level.  The parts are left unchanged; the result is a new
// accumulator from newFn.
func Tree[T numeric.Float](newFn Factory[T], parts []accumulator.Accumulator[T]) (accumulator.Accumulator[T], error) {
	level, err := firstLevel(newFn, parts)
	if err != nil {
		return nil, err
	}
	for len(level) > 1 {
		next := level[:0]
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				break
			}
			if err := level[i].Merge(level[i+1]); err != nil {
				return nil, err
			}
			next = append(next, level[i])
		}
		level = next
	}
	return level[0], nil
}

// ParallelTree is Tree with the merges of each level run concurrently.
// Each merge still touches exactly two accumulators, and no accumulator
// is in two merges at once.
func ParallelTree[T numeric.Float](ctx context.Context, newFn Factory[T], parts []accumulator.Accumulator[T], opts ...Option) (accumulator.Accumulator[T], error) {
	o := newOptions(opts)
	start := time.Now()
	level, err := firstLevel(newFn, parts)
	if err != nil {
		return nil, err
	}
	defer func() {
		o.recorder.RecordMerge(ctx, len(parts), time.Since(start))
	}()
	for len(level) > 1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.workers)
		pairs := len(level) / 2
		for i := 0; i < pairs; i++ {
			dst, src := level[2*i], level[2*i+1]
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return dst.Merge(src)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		next := make([]accumulator.Accumulator[T], 0, pairs+1)
		for i := 0; i < pairs; i++ {
			next = append(next, level[2*i])
		}
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}
		level = next
	}
	return level[0], nil
}

// firstLevel copies the non-nil parts into fresh accumulators, so later
// levels can merge in place without touching the caller's parts.
func firstLevel[T numeric.Float](newFn Factory[T], parts []accumulator.Accumulator[T]) ([]accumulator.Accumulator[T], error) {
	level := make([]accumulator.Accumulator[T], 0, len(parts))
	for i, p := range parts {
		if p == nil {
			continue
		}
		acc := newFn()
		if err := acc.Merge(p); err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		level = append(level, acc)
	}
	if len(level) == 0 {
		level = append(level, newFn())
	}
	return level, nil
}
