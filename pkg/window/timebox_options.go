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

package window

import "time"

type TimeBoxOption interface {
	apply(*boxConfig)
}

type boxOptionFunc func(*boxConfig)

func (f boxOptionFunc) apply(c *boxConfig) {
	f(c)
}

func WithInterval(interval time.Duration) TimeBoxOption {
	return boxOptionFunc(func(c *boxConfig) {
		c.interval = interval
	})
}

func WithIntervalCount(intervalCount int64) TimeBoxOption {
	return boxOptionFunc(func(c *boxConfig) {
		c.intervalCount = intervalCount
	})
}

func WithGrace(grace time.Duration) TimeBoxOption {
	return boxOptionFunc(func(c *boxConfig) {
		c.grace = grace
	})
}

func WithTimeFunc(timefunc TimeFunc) TimeBoxOption {
	return boxOptionFunc(func(c *boxConfig) {
		c.timefunc = timefunc
	})
}
