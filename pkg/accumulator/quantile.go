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

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/DataDog/sketches-go/ddsketch/pb/sketchpb"
	"google.golang.org/protobuf/proto"

	"github.com/cardinalhq/accumux/pkg/numeric"
)

// DefaultRelativeAccuracy is used when a quantile spec names no accuracy.
const DefaultRelativeAccuracy = 0.01

// Quantile estimates quantiles with a DDSketch, whose answers are within
// the configured relative accuracy of the true value.  Values the sketch
// cannot index (NaN, or magnitudes beyond its range) are tallied as
// dropped and otherwise ignored.
type Quantile[T numeric.Float] struct {
	accuracy float64
	sketch   *ddsketch.DDSketch
	n        T
	dropped  T
}

var (
	_ Accumulator[float64] = &Quantile[float64]{}
	_ Accumulator[float32] = &Quantile[float32]{}
)

func NewQuantile[T numeric.Float](relativeAccuracy float64) (*Quantile[T], error) {
	if !(relativeAccuracy > 0 && relativeAccuracy < 1) {
		return nil, fmt.Errorf("%w: relative accuracy %v not in (0, 1)", ErrInvalidConfig, relativeAccuracy)
	}
	sketch, err := ddsketch.NewDefaultDDSketch(relativeAccuracy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &Quantile[T]{accuracy: relativeAccuracy, sketch: sketch}, nil
}

func (q *Quantile[T]) Kind() Kind { return KindQuantile }

func (q *Quantile[T]) Key() uint64 {
	return ConfigKey(KindQuantile, q.params())
}

func (q *Quantile[T]) params() map[string]float64 {
	return map[string]float64{"accuracy": q.accuracy}
}

func (q *Quantile[T]) Matches(other Accumulator[T]) bool {
	o, ok := other.(*Quantile[T])
	return ok && o != nil && o.accuracy == q.accuracy
}

func (q *Quantile[T]) Update(x T) {
	q.add(x, 1)
}

func (q *Quantile[T]) UpdateWeighted(x T, w T) error {
	if err := checkWeight(w); err != nil {
		return err
	}
	q.add(x, w)
	return nil
}

func (q *Quantile[T]) add(x T, w T) {
	if err := q.sketch.AddWithCount(float64(x), float64(w)); err != nil {
		q.dropped += w
		return
	}
	q.n += w
}

func (q *Quantile[T]) Merge(other Accumulator[T]) error {
	if !q.Matches(other) {
		return Incompatible(KindQuantile, KindOf(other))
	}
	o := other.(*Quantile[T])
	src := o.sketch
	if o == q {
		src = o.sketch.Copy()
	}
	if err := q.sketch.MergeWith(src); err != nil {
		return fmt.Errorf("%w: %v", ErrIncompatibleAccumulator, err)
	}
	q.n += o.n
	q.dropped += o.dropped
	return nil
}

// Quantile returns the estimated p-quantile, or NaN when empty or when p
// is outside [0, 1].
func (q *Quantile[T]) Quantile(p float64) T {
	if q.n == 0 {
		return numeric.NaN[T]()
	}
	v, err := q.sketch.GetValueAtQuantile(p)
	if err != nil {
		return numeric.NaN[T]()
	}
	return T(v)
}

func (q *Quantile[T]) Quantiles(ps ...float64) []T {
	ret := make([]T, len(ps))
	for i, p := range ps {
		ret[i] = q.Quantile(p)
	}
	return ret
}

func (q *Quantile[T]) Median() T                 { return q.Quantile(0.5) }
func (q *Quantile[T]) RelativeAccuracy() float64 { return q.accuracy }
func (q *Quantile[T]) Dropped() T                { return q.dropped }
func (q *Quantile[T]) Value() T                  { return q.Median() }
func (q *Quantile[T]) Count() T                  { return q.n }
func (q *Quantile[T]) Weight() T                 { return q.n }
func (q *Quantile[T]) Empty() bool               { return q.n == 0 }

func (q *Quantile[T]) Reset() {
	q.sketch.Clear()
	q.n, q.dropped = 0, 0
}

func (q *Quantile[T]) Snapshot() Record {
	r := Record{
		Kind:   KindQuantile,
		Params: q.params(),
		Fields: map[string]float64{
			"n":       float64(q.n),
			"dropped": float64(q.dropped),
		},
	}
	if b, err := proto.Marshal(q.sketch.ToProto()); err == nil {
		r.Blob = b
	}
	return r
}

func (q *Quantile[T]) Restore(r Record) error {
	if err := expectKind(r, KindQuantile); err != nil {
		return err
	}
	if acc := r.Param("accuracy", 0); acc != q.accuracy {
		return fmt.Errorf("%w: quantile accuracy %v into %v", ErrIncompatibleAccumulator, acc, q.accuracy)
	}
	n, err := weightField[T](r)
	if err != nil {
		return err
	}
	dropped := r.Fields["dropped"]

	var pb sketchpb.DDSketch
	if err := proto.Unmarshal(r.Blob, &pb); err != nil {
		return fmt.Errorf("%w: quantile sketch: %v", ErrMalformedRecord, err)
	}
	sketch, err := ddsketch.NewDefaultDDSketch(q.accuracy)
	if err != nil {
		return err
	}
	if pb.Mapping != nil {
		restored, err := ddsketch.FromProto(&pb)
		if err != nil {
			return fmt.Errorf("%w: quantile sketch: %v", ErrMalformedRecord, err)
		}
		if err := sketch.MergeWith(restored); err != nil {
			return fmt.Errorf("%w: %v", ErrIncompatibleAccumulator, err)
		}
	}
	q.sketch, q.n, q.dropped = sketch, n, T(dropped)
	return nil
}
