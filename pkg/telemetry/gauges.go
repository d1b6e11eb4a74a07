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

package telemetry

import (
	"context"
	"math"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/accumux/pkg/accumulator"
	"github.com/cardinalhq/accumux/pkg/numeric"
)

const (
	AttrStatistic = attribute.Key("statistic")
	AttrKind      = attribute.Key("kind")
	AttrMember    = attribute.Key("member")
)

type observation struct {
	attrs metric.MeasurementOption
	value float64
}

// Gauges exposes the latest published values of named accumulators as
// observable gauges.  Publish copies the values out, so the accumulator
// itself is never read from the collection goroutine.
type Gauges[T numeric.Float] struct {
	sync.Mutex
	values  map[string][]observation
	weights map[string]float64
	reg     metric.Registration
}

type memberValues[T numeric.Float] interface {
	Names() []string
	Member(name string) (accumulator.Accumulator[T], bool)
}

func NewGauges[T numeric.Float](meter metric.Meter) (*Gauges[T], error) {
	g := &Gauges[T]{
		values:  map[string][]observation{},
		weights: map[string]float64{},
	}
	value, err := meter.Float64ObservableGauge("accumux.statistic",
		metric.WithDescription("Latest published value of an accumulator"))
	if err != nil {
		return nil, err
	}
	weight, err := meter.Float64ObservableGauge("accumux.weight",
		metric.WithDescription("Total weight behind a published accumulator"))
	if err != nil {
		return nil, err
	}
	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		g.Lock()
		defer g.Unlock()
		for _, name := range sortedKeys(g.values) {
			for _, obs := range g.values[name] {
				o.ObserveFloat64(value, obs.value, obs.attrs)
			}
			o.ObserveFloat64(weight, g.weights[name], metric.WithAttributes(AttrStatistic.String(name)))
		}
		return nil
	}, value, weight)
	if err != nil {
		return nil, err
	}
	g.reg = reg
	return g, nil
}

// Publish records the current values of acc under name, replacing any
// previous values.  Composite members are published individually.
// Undefined values are skipped.
func (g *Gauges[T]) Publish(name string, acc accumulator.Accumulator[T]) {
	var obs []observation
	add := func(a accumulator.Accumulator[T], member string) {
		v := float64(a.Value())
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return
		}
		attrs := []attribute.KeyValue{AttrStatistic.String(name), AttrKind.String(string(a.Kind()))}
		if member != "" {
			attrs = append(attrs, AttrMember.String(member))
		}
		obs = append(obs, observation{attrs: metric.WithAttributes(attrs...), value: v})
	}
	if c, ok := acc.(memberValues[T]); ok {
		for _, m := range c.Names() {
			member, _ := c.Member(m)
			add(member, m)
		}
	} else {
		add(acc, "")
	}

	g.Lock()
	defer g.Unlock()
	g.values[name] = obs
	g.weights[name] = float64(acc.Weight())
}

func (g *Gauges[T]) Remove(name string) {
	g.Lock()
	defer g.Unlock()
	delete(g.values, name)
	delete(g.weights, name)
}

// Close unregisters the collection callback.
func (g *Gauges[T]) Close() error {
	return g.reg.Unregister()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
