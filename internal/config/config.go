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

// Package config holds the accumux command configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/cardinalhq/accumux/pkg/accumulator"
	"github.com/cardinalhq/accumux/pkg/codec"
	"github.com/cardinalhq/accumux/pkg/compose"
)

type Config struct {
	// Statistics computed over the input.  A statistic without a name
	// is named after its kind.
	Statistics []compose.NamedSpec `yaml:"statistics"`
	Workers    int                 `yaml:"workers"`
	ChunkSize  int                 `yaml:"chunk_size"`
	Codec      string              `yaml:"codec"`
	Checkpoint CheckpointConfig    `yaml:"checkpoint"`
	Group      GroupConfig         `yaml:"group"`
}

type CheckpointConfig struct {
	// Path of the badger directory.  Empty keeps checkpoints in memory.
	Path   string        `yaml:"path"`
	Prefix string        `yaml:"prefix"`
	TTL    time.Duration `yaml:"ttl"`
}

type GroupConfig struct {
	FlushInterval time.Duration `yaml:"flush_interval"`
}

var defaultStatistics = []accumulator.Kind{
	accumulator.KindCount,
	accumulator.KindMean,
	accumulator.KindVariance,
	accumulator.KindMin,
	accumulator.KindMax,
}

// Default returns a validated configuration computing count, mean,
// variance, min and max.
func Default() *Config {
	c := &Config{}
	_ = c.Validate()
	return c
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes and validates YAML.  Unknown fields are rejected.
func Parse(b []byte) (*Config, error) {
	c := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate fills defaults for zero values and reports every invalid
// setting.
func (c *Config) Validate() error {
	var errs error

	if len(c.Statistics) == 0 {
		for _, k := range defaultStatistics {
			c.Statistics = append(c.Statistics, compose.NamedSpec{Name: string(k), Spec: accumulator.Spec{Kind: k}})
		}
	}
	for i := range c.Statistics {
		nameSpecs(&c.Statistics[i])
	}
	if _, err := compose.FromSpecs[float64](c.Statistics...); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("statistics: %w", err))
	}

	if c.Workers == 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Workers < 0 {
		errs = multierr.Append(errs, errors.New("workers must be greater than or equal to 0"))
	}

	if c.ChunkSize == 0 {
		c.ChunkSize = 4096
	}
	if c.ChunkSize < 0 {
		errs = multierr.Append(errs, errors.New("chunk_size must be greater than or equal to 0"))
	}

	if c.Codec == "" {
		c.Codec = codec.JSON.Name()
	}
	if _, err := codec.ByName(c.Codec); err != nil {
		errs = multierr.Append(errs, err)
	}

	if c.Checkpoint.Prefix == "" {
		c.Checkpoint.Prefix = "accumux/"
	}
	if c.Checkpoint.TTL < 0 {
		errs = multierr.Append(errs, errors.New("checkpoint ttl must be greater than or equal to 0"))
	}

	if c.Group.FlushInterval == 0 {
		c.Group.FlushInterval = time.Minute
	}
	if c.Group.FlushInterval < 0 {
		errs = multierr.Append(errs, errors.New("group flush_interval must be greater than or equal to 0"))
	}
	return errs
}

func nameSpecs(s *compose.NamedSpec) {
	if s.Name == "" {
		s.Name = string(s.Kind)
	}
	for i := range s.Members {
		nameSpecs(&s.Members[i])
	}
}
