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

// Package codec encodes accumulator records as JSON, YAML or framed
// protobuf.
package codec

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/cardinalhq/accumux/pkg/accumulator"
)

var (
	ErrUnknownCodec = errors.New("unknown codec")
	ErrNonFinite    = errors.New("non-finite value not representable")
)

type Codec interface {
	Name() string
	Marshal(r accumulator.Record) ([]byte, error)
	Unmarshal(b []byte) (accumulator.Record, error)
	MarshalRecords(rs []accumulator.Record) ([]byte, error)
	UnmarshalRecords(b []byte) ([]accumulator.Record, error)
}

var (
	JSON  Codec = jsonCodec{}
	YAML  Codec = yamlCodec{}
	Proto Codec = protoCodec{}
)

var codecs = map[string]Codec{
	JSON.Name():  JSON,
	YAML.Name():  YAML,
	Proto.Name(): Proto,
}

func ByName(name string) (Codec, error) {
	c, ok := codecs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
	return c, nil
}

// Names lists the registered codecs, sorted.
func Names() []string {
	ret := make([]string, 0, len(codecs))
	for name := range codecs {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

func checkFinite(r accumulator.Record) error {
	for _, m := range []map[string]float64{r.Params, r.Fields} {
		for k, v := range m {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: %s %q = %v", ErrNonFinite, r.Kind, k, v)
			}
		}
	}
	for _, m := range r.Members {
		if err := checkFinite(m); err != nil {
			return err
		}
	}
	return nil
}
