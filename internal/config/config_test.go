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

package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/accumux/pkg/accumulator"
	"github.com/cardinalhq/accumux/pkg/codec"
	"github.com/cardinalhq/accumux/pkg/compose"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	c := Default()
	assert.Equal(t, runtime.GOMAXPROCS(0), c.Workers)
	assert.Equal(t, 4096, c.ChunkSize)
	assert.Equal(t, "json", c.Codec)
	assert.Equal(t, "accumux/", c.Checkpoint.Prefix)
	assert.Equal(t, time.Minute, c.Group.FlushInterval)
	require.Len(t, c.Statistics, 5)
	assert.Equal(t, "variance", c.Statistics[2].Name)
}

func TestParse(t *testing.T) {
	t.Parallel()

	c, err := Parse([]byte(`
statistics:
  - kind: kurtosis
  - name: p
    kind: quantile
    params:
      accuracy: 0.005
  - name: hist
    kind: histogram
    params: {lo: 0, hi: 10, bins: 5}
  - name: nested
    kind: composite
    members:
      - kind: min
      - kind: max
workers: 3
chunk_size: 128
codec: proto
checkpoint:
  path: /tmp/accumux
  ttl: 1h
group:
  flush_interval: 30s
`))
	require.NoError(t, err)
	assert.Equal(t, 3, c.Workers)
	assert.Equal(t, 128, c.ChunkSize)
	assert.Equal(t, codec.Proto.Name(), c.Codec)
	assert.Equal(t, "/tmp/accumux", c.Checkpoint.Path)
	assert.Equal(t, time.Hour, c.Checkpoint.TTL)
	assert.Equal(t, 30*time.Second, c.Group.FlushInterval)

	require.Len(t, c.Statistics, 4)
	assert.Equal(t, "kurtosis", c.Statistics[0].Name)
	assert.Equal(t, 0.005, c.Statistics[1].Param(accumulator.ParamAccuracy, 0))
	assert.Equal(t, []string{"min", "max"}, []string{c.Statistics[3].Members[0].Name, c.Statistics[3].Members[1].Name})
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()

	c, err := Parse(nil)
	require.NoError(t, err)
	assert.Len(t, c.Statistics, 5)
}

func TestParse_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("wrokers: 2\n"))
	assert.Error(t, err)
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config Config
	}{
		{"negative workers", Config{Workers: -1}},
		{"negative chunk size", Config{ChunkSize: -5}},
		{"unknown codec", Config{Codec: "xml"}},
		{"negative ttl", Config{Checkpoint: CheckpointConfig{TTL: -time.Second}}},
		{"negative flush", Config{Group: GroupConfig{FlushInterval: -time.Second}}},
		{"unknown kind", Config{Statistics: []compose.NamedSpec{{Name: "x", Spec: accumulator.Spec{Kind: "median-of-medians"}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.config
			assert.Error(t, c.Validate())
		})
	}
}

func TestValidate_CollectsAll(t *testing.T) {
	t.Parallel()

	c := Config{
		Workers:    -1,
		Codec:      "xml",
		Statistics: []compose.NamedSpec{{Spec: accumulator.Spec{Kind: accumulator.KindMean}}, {Spec: accumulator.Spec{Kind: accumulator.KindMean}}},
	}
	err := c.Validate()
	assert.ErrorIs(t, err, codec.ErrUnknownCodec)
	assert.ErrorIs(t, err, accumulator.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "workers")
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "accumux.yaml")
	require.NoError(t, os.WriteFile(path, []byte("codec: yaml\n"), 0o600))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "yaml", c.Codec)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
