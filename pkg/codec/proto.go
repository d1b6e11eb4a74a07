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
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cardinalhq/accumux/pkg/accumulator"
)

const (
	Magic   = "ACMX"
	Version = uint16(1)

	headerLen = len(Magic) + 2
)

// protoCodec writes a google.protobuf.Struct behind a six byte header:
// the magic followed by a little-endian format version.
type protoCodec struct{}

func (protoCodec) Name() string { return "proto" }

func (protoCodec) Marshal(r accumulator.Record) ([]byte, error) {
	return frame(toStruct(r))
}

func (protoCodec) Unmarshal(b []byte) (accumulator.Record, error) {
	s, err := unframe(b)
	if err != nil {
		return accumulator.Record{}, err
	}
	return fromStruct(s)
}

func (protoCodec) MarshalRecords(rs []accumulator.Record) ([]byte, error) {
	list := make([]*structpb.Value, len(rs))
	for i, r := range rs {
		list[i] = structpb.NewStructValue(toStruct(r))
	}
	return frame(&structpb.Struct{Fields: map[string]*structpb.Value{
		"records": structpb.NewListValue(&structpb.ListValue{Values: list}),
	}})
}

func (protoCodec) UnmarshalRecords(b []byte) ([]accumulator.Record, error) {
	s, err := unframe(b)
	if err != nil {
		return nil, err
	}
	list := s.GetFields()["records"].GetListValue()
	rs := make([]accumulator.Record, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		sv := v.GetStructValue()
		if sv == nil {
			return nil, fmt.Errorf("%w: record %d is not a struct", accumulator.ErrMalformedRecord, i)
		}
		r, err := fromStruct(sv)
		if err != nil {
			return nil, err
		}
		rs = append(rs, r)
	}
	return rs, nil
}

func frame(s *structpb.Struct) ([]byte, error) {
	body, err := proto.MarshalOptions{Deterministic: true}.Marshal(s)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, headerLen+len(body))
	out = append(out, Magic...)
	out = binary.LittleEndian.AppendUint16(out, Version)
	return append(out, body...), nil
}

func unframe(b []byte) (*structpb.Struct, error) {
	if len(b) < headerLen || !bytes.Equal(b[:len(Magic)], []byte(Magic)) {
		return nil, fmt.Errorf("%w: missing %s header", accumulator.ErrMalformedRecord, Magic)
	}
	if v := binary.LittleEndian.Uint16(b[len(Magic):headerLen]); v != Version {
		return nil, fmt.Errorf("%w: unsupported format version %d", accumulator.ErrMalformedRecord, v)
	}
	s := &structpb.Struct{}
	if err := proto.Unmarshal(b[headerLen:], s); err != nil {
		return nil, fmt.Errorf("%w: %v", accumulator.ErrMalformedRecord, err)
	}
	return s, nil
}

func numbers(m map[string]float64) *structpb.Value {
	fields := make(map[string]*structpb.Value, len(m))
	for k, v := range m {
		fields[k] = structpb.NewNumberValue(v)
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: fields})
}

func toStruct(r accumulator.Record) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"kind": structpb.NewStringValue(string(r.Kind)),
	}
	if r.Name != "" {
		fields["name"] = structpb.NewStringValue(r.Name)
	}
	if len(r.Params) > 0 {
		fields["params"] = numbers(r.Params)
	}
	if len(r.Fields) > 0 {
		fields["fields"] = numbers(r.Fields)
	}
	if len(r.Blob) > 0 {
		fields["blob"] = structpb.NewStringValue(base64.StdEncoding.EncodeToString(r.Blob))
	}
	if len(r.Members) > 0 {
		members := make([]*structpb.Value, len(r.Members))
		for i, m := range r.Members {
			members[i] = structpb.NewStructValue(toStruct(m))
		}
		fields["members"] = structpb.NewListValue(&structpb.ListValue{Values: members})
	}
	return &structpb.Struct{Fields: fields}
}

func fromNumbers(kind, name string, v *structpb.Value) (map[string]float64, error) {
	if v == nil {
		return nil, nil
	}
	s := v.GetStructValue()
	if s == nil {
		return nil, fmt.Errorf("%w: %s %s is not a struct", accumulator.ErrMalformedRecord, kind, name)
	}
	ret := make(map[string]float64, len(s.GetFields()))
	for k, f := range s.GetFields() {
		n, ok := f.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("%w: %s %s %q is not a number", accumulator.ErrMalformedRecord, kind, name, k)
		}
		ret[k] = n.NumberValue
	}
	return ret, nil
}

func fromStruct(s *structpb.Struct) (accumulator.Record, error) {
	fields := s.GetFields()
	kind, ok := fields["kind"].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return accumulator.Record{}, fmt.Errorf("%w: missing kind", accumulator.ErrMalformedRecord)
	}
	r := accumulator.Record{
		Kind: accumulator.Kind(kind.StringValue),
		Name: fields["name"].GetStringValue(),
	}
	var err error
	if r.Params, err = fromNumbers(kind.StringValue, "params", fields["params"]); err != nil {
		return r, err
	}
	if r.Fields, err = fromNumbers(kind.StringValue, "fields", fields["fields"]); err != nil {
		return r, err
	}
	if blob := fields["blob"].GetStringValue(); blob != "" {
		if r.Blob, err = base64.StdEncoding.DecodeString(blob); err != nil {
			return r, fmt.Errorf("%w: blob: %v", accumulator.ErrMalformedRecord, err)
		}
	}
	for i, m := range fields["members"].GetListValue().GetValues() {
		ms := m.GetStructValue()
		if ms == nil {
			return r, fmt.Errorf("%w: member %d is not a struct", accumulator.ErrMalformedRecord, i)
		}
		member, err := fromStruct(ms)
		if err != nil {
			return r, err
		}
		r.Members = append(r.Members, member)
	}
	return r, nil
}
