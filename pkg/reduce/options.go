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
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// Recorder receives reduction measurements.
type Recorder interface {
	RecordPartition(ctx context.Context, observations int, elapsed time.Duration)
	RecordMerge(ctx context.Context, parts int, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordPartition(context.Context, int, time.Duration) {}
func (nopRecorder) RecordMerge(context.Context, int, time.Duration)     {}

type options struct {
	workers   int
	chunkSize int
	logger    *zap.Logger
	recorder  Recorder
	pool      *ants.Pool
}

type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) {
	f(o)
}

func newOptions(opts []Option) *options {
	o := &options{
		workers:   runtime.GOMAXPROCS(0),
		chunkSize: 4096,
		logger:    zap.NewNop(),
		recorder:  nopRecorder{},
	}
	for _, opt := range opts {
		opt.apply(o)
	}
	return o
}

// WithWorkers sets the number of private accumulators, and the
// concurrency of tree merges.  Values below 1 are ignored.
func WithWorkers(workers int) Option {
	return optionFunc(func(o *options) {
		if workers > 0 {
			o.workers = workers
		}
	})
}

// WithChunkSize sets how many observations a worker takes at a time
// between cancellation checks.  Values below 1 are ignored.
func WithChunkSize(size int) Option {
	return optionFunc(func(o *options) {
		if size > 0 {
			o.chunkSize = size
		}
	})
}

func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	})
}

func WithRecorder(recorder Recorder) Option {
	return optionFunc(func(o *options) {
		if recorder != nil {
			o.recorder = recorder
		}
	})
}

// WithPool runs partition work on an existing pool, which the caller
// keeps ownership of.
func WithPool(pool *ants.Pool) Option {
	return optionFunc(func(o *options) {
		o.pool = pool
	})
}
