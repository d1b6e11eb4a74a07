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

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/accumux/pkg/accumulator"
	"github.com/cardinalhq/accumux/pkg/codec"
	"github.com/cardinalhq/accumux/pkg/compose"
)

const testConfig = `
statistics:
  - kind: mean
  - kind: variance
  - kind: min
  - kind: max
workers: 2
chunk_size: 3
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func decode(t *testing.T, c codec.Codec, out string) *compose.Composite[float64] {
	t.Helper()
	r, err := c.Unmarshal([]byte(out))
	require.NoError(t, err)
	acc, err := compose.FromRecord[float64](r)
	require.NoError(t, err)
	comp, ok := acc.(*compose.Composite[float64])
	require.True(t, ok)
	return comp
}

func TestKinds(t *testing.T) {
	t.Parallel()

	out, err := run(t, "", "kinds")
	require.NoError(t, err)
	lines := strings.Fields(out)
	assert.Contains(t, lines, "kurtosis")
	assert.Contains(t, lines, "quantile")
	assert.Equal(t, "composite", lines[len(lines)-1])
}

func TestReduce_File(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", testConfig)
	input := writeFile(t, dir, "values.txt", "# sample\n2\n4\n4\n\n4\n5\n5\n7\n9\n")

	for _, c := range []codec.Codec{codec.JSON, codec.YAML, codec.Proto} {
		out, err := run(t, "", "reduce", "--config", cfg, "--codec", c.Name(), input)
		require.NoError(t, err, c.Name())
		comp := decode(t, c, out)
		assert.Equal(t, 8.0, comp.Count())
		assert.InDelta(t, 5.0, comp.Mean(), 1e-12)
		assert.InDelta(t, 4.0, comp.Variance(), 1e-12)
		assert.Equal(t, 2.0, comp.Min())
		assert.Equal(t, 9.0, comp.Max())
	}
}

func TestReduce_WeightedStdin(t *testing.T) {
	t.Parallel()

	cfg := writeFile(t, t.TempDir(), "config.yaml", testConfig)
	out, err := run(t, "2\n4,3\n5,2\n7\n9\n", "reduce", "--config", cfg)
	require.NoError(t, err)
	comp := decode(t, codec.JSON, out)
	assert.Equal(t, 8.0, comp.Count())
	assert.InDelta(t, 5.0, comp.Mean(), 1e-12)
	assert.InDelta(t, 4.0, comp.Variance(), 1e-12)
}

func TestReduce_BadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{"not a number", "1\nabc\n", nil, "stdin:2"},
		{"bad weight", "1,-2\n", nil, "invalid weight"},
		{"too many columns", "1,2,3\n", nil, "too many columns"},
		{"missing key", "1\n", []string{"--group"}, "key,value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.stdin, append([]string{"reduce"}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReduce_Group(t *testing.T) {
	t.Parallel()

	cfg := writeFile(t, t.TempDir(), "config.yaml", testConfig)
	out, err := run(t, "b,10\na,1\na,3,3\nb,20\n", "reduce", "--config", cfg, "--group")
	require.NoError(t, err)

	recs, err := codec.JSON.UnmarshalRecords([]byte(out))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].Name)
	assert.Equal(t, "b", recs[1].Name)

	a, err := compose.FromRecord[float64](recs[0])
	require.NoError(t, err)
	assert.Equal(t, 4.0, a.Weight())
	assert.InDelta(t, 2.5, a.(*compose.Composite[float64]).Mean(), 1e-12)
}

func TestMerge_Files(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", testConfig)
	var parts []string
	for i, stdin := range []string{"2\n4\n4\n4\n", "5\n5\n7\n9\n"} {
		out, err := run(t, stdin, "reduce", "--config", cfg, "--codec", "yaml")
		require.NoError(t, err)
		parts = append(parts, writeFile(t, dir, "part"+string(rune('a'+i))+".yaml", out))
	}

	out, err := run(t, "", append([]string{"merge", "--config", cfg, "--codec", "yaml"}, parts...)...)
	require.NoError(t, err)
	comp := decode(t, codec.YAML, out)
	assert.Equal(t, 8.0, comp.Count())
	assert.InDelta(t, 4.0, comp.Variance(), 1e-12)

	_, err = run(t, "", "merge", "--config", cfg)
	assert.ErrorIs(t, err, accumulator.ErrInvalidConfig)
}

func TestReduce_SaveAndMergeCheckpoints(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", testConfig+"checkpoint:\n  path: "+filepath.Join(dir, "db")+"\n")

	_, err := run(t, "2\n4\n4\n4\n", "reduce", "--config", cfg, "--save", "first")
	require.NoError(t, err)
	_, err = run(t, "5\n5\n7\n9\n", "reduce", "--config", cfg, "--save", "second")
	require.NoError(t, err)

	out, err := run(t, "", "merge", "--config", cfg, "--from", "first,second")
	require.NoError(t, err)
	comp := decode(t, codec.JSON, out)
	assert.Equal(t, 8.0, comp.Count())
	assert.InDelta(t, 5.0, comp.Mean(), 1e-12)
	assert.Equal(t, 9.0, comp.Max())

	_, err = run(t, "1\n", "reduce", "--save", "nowhere")
	assert.ErrorIs(t, err, accumulator.ErrInvalidConfig)
}
