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

package checkpoint

import "time"

// KVS is a key-value store that uses []byte as keys and values.
// Values have an optional TTL.  Using a TTL of 0 means the value never expires.
// Implementations must be concurrent-safe.
type KVS interface {
	// Get retrieves the value for the given key.
	// If the key does not exist, it returns nil value
	Get(key []byte) (value []byte, err error)

	Set(key []byte, value []byte, ttl time.Duration) error

	// Delete deletes the values for the given keys.  Missing keys are
	// ignored.
	Delete(keys ...[]byte) error

	// ForEachPrefix calls f for each key-value pair with the given prefix,
	// in key order.  If f returns false, the iteration stops.
	ForEachPrefix(prefix []byte, f func(key []byte, value []byte) bool) error

	// Maintain drops expired entries or runs garbage collection.
	Maintain() error

	Close() error
}

// Wiper is implemented by stores that can drop every key.  Used mostly
// in tests.
type Wiper interface {
	Wipe() error
}

type TimeFunc func() time.Time
