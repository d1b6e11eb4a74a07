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

package reduce

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/cardinalhq/accumux/pkg/accumulator"
	"github.com/cardinalhq/accumux/pkg/numeric"
)

// MapReduce feeds values, with optional per-value weights, through one
// private accumulator per worker and merges the workers' results.
// Workers take chunks round-robin and check ctx between chunks.
func MapReduce[T numeric.Float](ctx context.Context, values []T, weights []T, newFn Factory[T], opts ...Option) (accumulator.Accumulator[T], error) {
	if weights != nil && len(weights) != len(values) {
		return nil, fmt.Errorf("%w: %d weights for %d values", accumulator.ErrInvalidConfig, len(weights), len(values))
	}
	o := newOptions(opts)

	chunks := (len(values) + o.chunkSize - 1) / o.chunkSize
	workers := max(min(o.workers, chunks), 1)

	pool := o.pool
	if pool == nil {
		p, err := ants.NewPool(workers)
		if err != nil {
			return nil, err
		}
		defer p.Release()
		pool = p
	}

	parts := make([]accumulator.Accumulator[T], workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		parts[w] = newFn()
		wg.Add(1)
		task := func() {
			defer wg.Done()
			errs[w] = reducePartition(ctx, o, parts[w], values, weights, w, workers)
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			errs[w] = fmt.Errorf("worker %d: %w", w, err)
		}
	}
	wg.Wait()
	if err := multierr.Combine(errs...); err != nil {
		return nil, err
	}

	start := time.Now()
	acc, err := Tree(newFn, parts)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	o.recorder.RecordMerge(ctx, len(parts), elapsed)
	o.logger.Debug("reduced partitions",
		zap.Int("values", len(values)),
		zap.Int("workers", workers),
		zap.Duration("mergeTime", elapsed))
	return acc, nil
}

func reducePartition[T numeric.Float](ctx context.Context, o *options, acc accumulator.Accumulator[T], values, weights []T, worker, workers int) error {
	start := time.Now()
	observed := 0
	for c := worker * o.chunkSize; c < len(values); c += workers * o.chunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(c+o.chunkSize, len(values))
		if weights == nil {
			for _, x := range values[c:end] {
				acc.Update(x)
			}
		} else {
			for i := c; i < end; i++ {
				if err := acc.UpdateWeighted(values[i], weights[i]); err != nil {
					return fmt.Errorf("value %d: %w", i, err)
				}
			}
		}
		observed += end - c
	}
	elapsed := time.Since(start)
	o.recorder.RecordPartition(ctx, observed, elapsed)
	o.logger.Debug("partition reduced",
		zap.Int("worker", worker),
		zap.Int("observations", observed),
		zap.Duration("elapsed", elapsed))
	return nil
}

// Partition splits values into n contiguous parts of near-equal length.
func Partition[T any](values []T, n int) [][]T {
	if n < 1 {
		n = 1
	}
	n = min(n, max(len(values), 1))
	parts := make([][]T, 0, n)
	size, extra := len(values)/n, len(values)%n
	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < extra {
			end++
		}
		parts = append(parts, values[start:end])
		start = end
	}
	return parts
}
