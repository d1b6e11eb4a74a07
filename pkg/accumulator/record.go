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

package accumulator

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/cardinalhq/accumux/pkg/numeric"
)

// Record is the flat, encoding-neutral form of an accumulator's state.
// Params carry configuration, Fields carry primitive state, Blob carries
// opaque sketch state and Members holds the ordered member records of a
// composite.
type Record struct {
	Kind    Kind               `json:"kind" yaml:"kind"`
	Name    string             `json:"name,omitempty" yaml:"name,omitempty"`
	Params  map[string]float64 `json:"params,omitempty" yaml:"params,omitempty"`
	Fields  map[string]float64 `json:"fields,omitempty" yaml:"fields,omitempty"`
	Blob    []byte             `json:"blob,omitempty" yaml:"blob,omitempty"`
	Members []Record           `json:"members,omitempty" yaml:"members,omitempty"`
}

// Field returns a required state field.
func (r Record) Field(name string) (float64, error) {
	v, ok := r.Fields[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s record has no field %q", ErrMalformedRecord, r.Kind, name)
	}
	return v, nil
}

// Param returns a configuration parameter, or def when absent.
func (r Record) Param(name string, def float64) float64 {
	if v, ok := r.Params[name]; ok {
		return v
	}
	return def
}

// Spec describes a configured accumulator.
type Spec struct {
	Kind   Kind               `json:"kind" yaml:"kind"`
	Params map[string]float64 `json:"params,omitempty" yaml:"params,omitempty"`
}

// Param returns a configuration parameter, or def when absent.
func (s Spec) Param(name string, def float64) float64 {
	if v, ok := s.Params[name]; ok {
		return v
	}
	return def
}

// ConfigKey fingerprints a kind and its parameters.  Parameter order
// does not matter.
func ConfigKey(kind Kind, params map[string]float64) uint64 {
	key := string(kind)
	if len(params) > 0 {
		names := make([]string, 0, len(params))
		for k := range params {
			names = append(names, k)
		}
		sort.Strings(names)
		var b strings.Builder
		b.WriteString(key)
		for _, k := range names {
			b.WriteString(":")
			b.WriteString(k)
			b.WriteString("=")
			b.WriteString(strconv.FormatFloat(params[k], 'g', -1, 64))
		}
		key = b.String()
	}
	return xxhash.Sum64String(key)
}

func expectKind(r Record, want Kind) error {
	if r.Kind != want {
		return Incompatible(want, r.Kind)
	}
	return nil
}

// weightField reads n and checks that it is a usable total weight.
func weightField[T numeric.Float](r Record) (T, error) {
	n, err := r.Field("n")
	if err != nil {
		return 0, err
	}
	if n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("%w: %s record has weight %v", ErrMalformedRecord, r.Kind, n)
	}
	return T(n), nil
}

// WeightField is weightField for accumulators built outside this package.
func WeightField[T numeric.Float](r Record) (T, error) {
	return weightField[T](r)
}

func putSum[T numeric.Float](fields map[string]float64, name string, s numeric.KBNSum[T]) {
	sum, c := s.Components()
	fields[name] = float64(sum)
	fields[name+".c"] = float64(c)
}

func getSum[T numeric.Float](r Record, name string) (numeric.KBNSum[T], error) {
	sum, err := r.Field(name)
	if err != nil {
		return numeric.KBNSum[T]{}, err
	}
	// a missing correction term is treated as zero
	c := r.Fields[name+".c"]
	return numeric.KBNSumFrom(T(sum), T(c)), nil
}
