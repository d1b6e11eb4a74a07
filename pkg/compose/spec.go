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

package compose

import (
	"fmt"

	"github.com/cardinalhq/accumux/pkg/accumulator"
	"github.com/cardinalhq/accumux/pkg/numeric"
)

// NamedSpec describes one composite member.  A composite member lists
// its own members.
type NamedSpec struct {
	Name             string `json:"name" yaml:"name"`
	accumulator.Spec `yaml:",inline"`
	Members          []NamedSpec `json:"members,omitempty" yaml:"members,omitempty"`
}

// FromSpecs builds a composite from member specs.
func FromSpecs[T numeric.Float](specs ...NamedSpec) (*Composite[T], error) {
	members := make([]Member[T], 0, len(specs))
	for _, s := range specs {
		acc, err := Build[T](s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Name, err)
		}
		members = append(members, Named(s.Name, acc))
	}
	return New(members...)
}

// Build constructs the accumulator a spec describes, including nested
// composites.
func Build[T numeric.Float](s NamedSpec) (accumulator.Accumulator[T], error) {
	if s.Kind == KindComposite {
		c, err := FromSpecs[T](s.Members...)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	if len(s.Members) > 0 {
		return nil, fmt.Errorf("%w: %s accumulators have no members", accumulator.ErrInvalidConfig, s.Kind)
	}
	return accumulator.New[T](s.Spec)
}

// FromRecord rebuilds any accumulator from its record, including nested
// composites.  Pair records carry no type information for their sides,
// and Map and Conditional records cannot carry their functions, so those
// restore only into an existing value.
func FromRecord[T numeric.Float](r accumulator.Record) (accumulator.Accumulator[T], error) {
	switch r.Kind {
	case KindPair:
		return nil, fmt.Errorf("%w: pair records restore into an existing pair", accumulator.ErrUnknownKind)
	case KindMap, KindConditional:
		return nil, fmt.Errorf("%w: %s records restore into an existing %s", accumulator.ErrUnknownKind, r.Kind, r.Kind)
	case KindComposite:
	default:
		return accumulator.FromRecord[T](r)
	}

	members := make([]Member[T], len(r.Members))
	for i, mr := range r.Members {
		acc, err := FromRecord[T](mr)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", mr.Name, err)
		}
		members[i] = Named(mr.Name, acc)
	}
	c, err := New(members...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", accumulator.ErrMalformedRecord, err)
	}
	n, err := r.Field("n")
	if err != nil {
		return nil, err
	}
	c.n = T(n)
	return c, nil
}

// SpecOf describes the configuration of an accumulator built by this
// package or by accumulator.New.
func SpecOf[T numeric.Float](name string, acc accumulator.Accumulator[T]) NamedSpec {
	s := NamedSpec{Name: name}
	if c, ok := acc.(*Composite[T]); ok {
		s.Kind = KindComposite
		for _, m := range c.members {
			s.Members = append(s.Members, SpecOf(m.Name, m.Acc))
		}
		return s
	}
	r := acc.Snapshot()
	s.Spec = accumulator.Spec{Kind: r.Kind, Params: r.Params}
	return s
}
