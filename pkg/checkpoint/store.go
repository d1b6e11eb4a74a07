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

// Package checkpoint saves and restores named accumulator records
// through a key-value store.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/cardinalhq/accumux/pkg/accumulator"
	"github.com/cardinalhq/accumux/pkg/codec"
	"github.com/cardinalhq/accumux/pkg/compose"
	"github.com/cardinalhq/accumux/pkg/numeric"
)

var ErrNotFound = errors.New("checkpoint not found")

const DefaultPrefix = "accumux/"

type Store struct {
	kvs    KVS
	codec  codec.Codec
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

type StoreOption interface {
	apply(*Store)
}

type storeOptionFunc func(*Store)

func (f storeOptionFunc) apply(s *Store) {
	f(s)
}

func WithCodec(c codec.Codec) StoreOption {
	return storeOptionFunc(func(s *Store) {
		s.codec = c
	})
}

func WithPrefix(prefix string) StoreOption {
	return storeOptionFunc(func(s *Store) {
		s.prefix = prefix
	})
}

// WithTTL expires saved records after ttl.  Zero keeps them forever.
func WithTTL(ttl time.Duration) StoreOption {
	return storeOptionFunc(func(s *Store) {
		s.ttl = ttl
	})
}

func WithLogger(logger *zap.Logger) StoreOption {
	return storeOptionFunc(func(s *Store) {
		s.logger = logger
	})
}

// NewStore uses the proto codec unless told otherwise.
func NewStore(kvs KVS, options ...StoreOption) *Store {
	s := &Store{
		kvs:    kvs,
		codec:  codec.Proto,
		prefix: DefaultPrefix,
		logger: zap.NewNop(),
	}
	for _, opt := range options {
		opt.apply(s)
	}
	return s
}

func (s *Store) key(name string) []byte {
	return []byte(s.prefix + name)
}

func (s *Store) Save(ctx context.Context, name string, r accumulator.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("%w: empty checkpoint name", accumulator.ErrInvalidConfig)
	}
	r.Name = name
	b, err := s.codec.Marshal(r)
	if err != nil {
		return fmt.Errorf("checkpoint %q: %w", name, err)
	}
	if err := s.kvs.Set(s.key(name), b, s.ttl); err != nil {
		return fmt.Errorf("checkpoint %q: %w", name, err)
	}
	s.logger.Debug("saved checkpoint",
		zap.String("name", name),
		zap.String("kind", string(r.Kind)),
		zap.Int("bytes", len(b)))
	return nil
}

// SaveAll saves every record under its Name, continuing past failures.
func (s *Store) SaveAll(ctx context.Context, records []accumulator.Record) error {
	var errs *multierror.Error
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			errs = multierror.Append(errs, err)
			break
		}
		errs = multierror.Append(errs, s.Save(ctx, r.Name, r))
	}
	return errs.ErrorOrNil()
}

func (s *Store) Load(ctx context.Context, name string) (accumulator.Record, error) {
	if err := ctx.Err(); err != nil {
		return accumulator.Record{}, err
	}
	b, err := s.kvs.Get(s.key(name))
	if err != nil {
		return accumulator.Record{}, fmt.Errorf("checkpoint %q: %w", name, err)
	}
	if b == nil {
		return accumulator.Record{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	r, err := s.codec.Unmarshal(b)
	if err != nil {
		return accumulator.Record{}, fmt.Errorf("checkpoint %q: %w", name, err)
	}
	return r, nil
}

// LoadAll returns every record under the prefix in name order.  Records
// that fail to decode are skipped and reported in the returned error.
func (s *Store) LoadAll(ctx context.Context) ([]accumulator.Record, error) {
	var (
		records []accumulator.Record
		errs    *multierror.Error
	)
	err := s.kvs.ForEachPrefix([]byte(s.prefix), func(key, value []byte) bool {
		if err := ctx.Err(); err != nil {
			errs = multierror.Append(errs, err)
			return false
		}
		name := strings.TrimPrefix(string(key), s.prefix)
		r, err := s.codec.Unmarshal(value)
		if err != nil {
			s.logger.Warn("skipping unreadable checkpoint", zap.String("name", name), zap.Error(err))
			errs = multierror.Append(errs, fmt.Errorf("checkpoint %q: %w", name, err))
			return true
		}
		r.Name = name
		records = append(records, r)
		return true
	})
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	return records, errs.ErrorOrNil()
}

// Names lists the saved checkpoints in order.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	var names []string
	err := s.kvs.ForEachPrefix([]byte(s.prefix), func(key, _ []byte) bool {
		names = append(names, strings.TrimPrefix(string(key), s.prefix))
		return ctx.Err() == nil
	})
	if err == nil {
		err = ctx.Err()
	}
	return names, err
}

func (s *Store) Delete(ctx context.Context, names ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	keys := make([][]byte, len(names))
	for i, name := range names {
		keys[i] = s.key(name)
	}
	return s.kvs.Delete(keys...)
}

func (s *Store) Maintain() error {
	return s.kvs.Maintain()
}

func (s *Store) Close() error {
	return s.kvs.Close()
}

// SaveAccumulator snapshots acc and saves it under name.
func SaveAccumulator[T numeric.Float](ctx context.Context, s *Store, name string, acc accumulator.Accumulator[T]) error {
	return s.Save(ctx, name, acc.Snapshot())
}

// Restore rebuilds the accumulator saved under name.
func Restore[T numeric.Float](ctx context.Context, s *Store, name string) (accumulator.Accumulator[T], error) {
	r, err := s.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	acc, err := compose.FromRecord[T](r)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %q: %w", name, err)
	}
	return acc, nil
}
