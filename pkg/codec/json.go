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
	"github.com/goccy/go-json"

	"github.com/cardinalhq/accumux/pkg/accumulator"
)

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(r accumulator.Record) ([]byte, error) {
	if err := checkFinite(r); err != nil {
		return nil, err
	}
	return json.Marshal(r)
}

func (jsonCodec) Unmarshal(b []byte) (accumulator.Record, error) {
	var r accumulator.Record
	err := json.Unmarshal(b, &r)
	return r, err
}

func (jsonCodec) MarshalRecords(rs []accumulator.Record) ([]byte, error) {
	for _, r := range rs {
		if err := checkFinite(r); err != nil {
			return nil, err
		}
	}
	return json.Marshal(rs)
}

func (jsonCodec) UnmarshalRecords(b []byte) ([]accumulator.Record, error) {
	var rs []accumulator.Record
	err := json.Unmarshal(b, &rs)
	return rs, err
}
