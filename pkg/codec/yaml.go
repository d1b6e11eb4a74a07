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
	"encoding/base64"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/cardinalhq/accumux/pkg/accumulator"
)

type yamlCodec struct{}

// yamlRecord carries the blob as base64 text so it survives a round
// trip as a plain scalar.
type yamlRecord struct {
	Kind    accumulator.Kind   `yaml:"kind"`
	Name    string             `yaml:"name,omitempty"`
	Params  map[string]float64 `yaml:"params,omitempty"`
	Fields  map[string]float64 `yaml:"fields,omitempty"`
	Blob    string             `yaml:"blob,omitempty"`
	Members []yamlRecord       `yaml:"members,omitempty"`
}

func toYAML(r accumulator.Record) yamlRecord {
	y := yamlRecord{
		Kind:   r.Kind,
		Name:   r.Name,
		Params: r.Params,
		Fields: r.Fields,
	}
	if len(r.Blob) > 0 {
		y.Blob = base64.StdEncoding.EncodeToString(r.Blob)
	}
	for _, m := range r.Members {
		y.Members = append(y.Members, toYAML(m))
	}
	return y
}

func fromYAML(y yamlRecord) (accumulator.Record, error) {
	r := accumulator.Record{
		Kind:   y.Kind,
		Name:   y.Name,
		Params: y.Params,
		Fields: y.Fields,
	}
	if y.Blob != "" {
		b, err := base64.StdEncoding.DecodeString(y.Blob)
		if err != nil {
			return r, fmt.Errorf("%w: blob: %v", accumulator.ErrMalformedRecord, err)
		}
		r.Blob = b
	}
	for _, m := range y.Members {
		member, err := fromYAML(m)
		if err != nil {
			return r, err
		}
		r.Members = append(r.Members, member)
	}
	return r, nil
}

func (yamlCodec) Name() string { return "yaml" }

func (yamlCodec) Marshal(r accumulator.Record) ([]byte, error) {
	return yaml.Marshal(toYAML(r))
}

func (yamlCodec) Unmarshal(b []byte) (accumulator.Record, error) {
	var y yamlRecord
	if err := yaml.Unmarshal(b, &y); err != nil {
		return accumulator.Record{}, err
	}
	return fromYAML(y)
}

func (yamlCodec) MarshalRecords(rs []accumulator.Record) ([]byte, error) {
	ys := make([]yamlRecord, len(rs))
	for i, r := range rs {
		ys[i] = toYAML(r)
	}
	return yaml.Marshal(ys)
}

func (yamlCodec) UnmarshalRecords(b []byte) ([]accumulator.Record, error) {
	var ys []yamlRecord
	if err := yaml.Unmarshal(b, &ys); err != nil {
		return nil, err
	}
	rs := make([]accumulator.Record, 0, len(ys))
	for _, y := range ys {
		r, err := fromYAML(y)
		if err != nil {
			return nil, err
		}
		rs = append(rs, r)
	}
	return rs, nil
}
