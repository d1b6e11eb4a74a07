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

package codec

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/accumux/pkg/accumulator"
	"github.com/cardinalhq/accumux/pkg/compose"
)

func summary(t *testing.T) *compose.Composite[float64] {
	t.Helper()
	c, err := compose.FromSpecs[float64](
		compose.NamedSpec{Name: "kurtosis", Spec: accumulator.Spec{Kind: accumulator.KindKurtosis}},
		compose.NamedSpec{Name: "min", Spec: accumulator.Spec{Kind: accumulator.KindMin}},
		compose.NamedSpec{Name: "sum", Spec: accumulator.Spec{Kind: accumulator.KindSum}},
		compose.NamedSpec{Name: "ema", Spec: accumulator.Spec{Kind: accumulator.KindEMA, Params: map[string]float64{accumulator.ParamAlpha: 0.3}}},
		compose.NamedSpec{Name: "hist", Spec: accumulator.Spec{Kind: accumulator.KindHistogram, Params: map[string]float64{
			accumulator.ParamLo: 0, accumulator.ParamHi: 100, accumulator.ParamBins: 10,
		}}},
		compose.NamedSpec{Name: "p", Spec: accumulator.Spec{Kind: accumulator.KindQuantile}},
		compose.NamedSpec{Name: "distinct", Spec: accumulator.Spec{Kind: accumulator.KindDistinct}},
	)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 500; i++ {
		c.Update(math.Floor(rng.Float64()*1000) / 10)
	}
	return c
}

func assertSameValues(t *testing.T, want accumulator.Accumulator[float64], rec accumulator.Record) {
	t.Helper()
	got, err := compose.FromRecord[float64](rec)
	require.NoError(t, err)
	gc, ok := got.(*compose.Composite[float64])
	require.True(t, ok)
	wc := want.(*compose.Composite[float64])
	assert.Equal(t, wc.Names(), gc.Names())
	assert.Equal(t, wc.Count(), gc.Count())
	for name, v := range wc.Values() {
		assert.InDelta(t, v, gc.ValueOf(name), 1e-9*math.Abs(v)+1e-12, name)
	}
}

func TestCodecs_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			c, err := ByName(name)
			require.NoError(t, err)
			acc := summary(t)
			rec := acc.Snapshot()
			rec.Name = "latency"

			b, err := c.Marshal(rec)
			require.NoError(t, err)
			got, err := c.Unmarshal(b)
			require.NoError(t, err)
			assert.Equal(t, "latency", got.Name)
			assert.Equal(t, rec.Kind, got.Kind)
			require.Len(t, got.Members, len(rec.Members))
			assertSameValues(t, acc, got)
		})
	}
}

func TestCodecs_Records(t *testing.T) {
	t.Parallel()

	recs := []accumulator.Record{
		{Kind: accumulator.KindCount, Name: "a", Fields: map[string]float64{"n": 3}},
		{Kind: accumulator.KindSum, Name: "b", Fields: map[string]float64{"n": 2, "sum": 0.1, "sum.c": 1e-18}},
	}
	for _, c := range []Codec{JSON, YAML, Proto} {
		b, err := c.MarshalRecords(recs)
		require.NoError(t, err, c.Name())
		got, err := c.UnmarshalRecords(b)
		require.NoError(t, err, c.Name())
		assert.Equal(t, recs, got, c.Name())
	}
}

func TestCodecs_NonFinite(t *testing.T) {
	t.Parallel()

	rec := accumulator.Record{
		Kind:   accumulator.KindVariance,
		Fields: map[string]float64{"n": 1, "mean": math.Inf(1), "m2": math.NaN()},
	}

	_, err := JSON.Marshal(rec)
	assert.ErrorIs(t, err, ErrNonFinite)
	_, err = JSON.MarshalRecords([]accumulator.Record{{Kind: compose.KindComposite, Members: []accumulator.Record{rec}}})
	assert.ErrorIs(t, err, ErrNonFinite)

	for _, c := range []Codec{YAML, Proto} {
		b, err := c.Marshal(rec)
		require.NoError(t, err, c.Name())
		got, err := c.Unmarshal(b)
		require.NoError(t, err, c.Name())
		assert.True(t, math.IsInf(got.Fields["mean"], 1), c.Name())
		assert.True(t, math.IsNaN(got.Fields["m2"]), c.Name())
	}
}

func TestProto_Framing(t *testing.T) {
	t.Parallel()

	b, err := Proto.Marshal(accumulator.Record{Kind: accumulator.KindCount, Fields: map[string]float64{"n": 1}})
	require.NoError(t, err)
	assert.Equal(t, []byte("ACMX\x01\x00"), b[:headerLen])

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", []byte("ACM")},
		{"bad magic", append([]byte("XXXX"), b[4:]...)},
		{"bad version", append([]byte("ACMX\x02\x00"), b[headerLen:]...)},
		{"garbage body", []byte("ACMX\x01\x00\xff\xff\xff")},
		{"no kind", []byte("ACMX\x01\x00")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Proto.Unmarshal(tt.data)
			assert.ErrorIs(t, err, accumulator.ErrMalformedRecord)
		})
	}
}

func TestByName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"json", "proto", "yaml"}, Names())
	c, err := ByName("yaml")
	require.NoError(t, err)
	assert.Equal(t, YAML, c)
	_, err = ByName("xml")
	assert.ErrorIs(t, err, ErrUnknownCodec)
}
