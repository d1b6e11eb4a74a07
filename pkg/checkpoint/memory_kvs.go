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

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// MemoryKVS is a map-backed KVS whose expiry follows its time function.
type MemoryKVS struct {
	sync.Mutex
	kvs      map[string]memoryItem
	timefunc TimeFunc
}

type memoryItem struct {
	value []byte
	ttl   time.Time
}

var (
	_ KVS   = (*MemoryKVS)(nil)
	_ Wiper = (*MemoryKVS)(nil)
)

func NewMemoryKVS(timefunc TimeFunc) *MemoryKVS {
	if timefunc == nil {
		timefunc = time.Now
	}
	return &MemoryKVS{
		kvs:      make(map[string]memoryItem),
		timefunc: timefunc,
	}
}

func (m *MemoryKVS) Get(key []byte) ([]byte, error) {
	m.Lock()
	defer m.Unlock()
	strkey := string(key)
	item, ok := m.kvs[strkey]
	if !ok {
		return nil, nil
	}
	if m.expiredItem(item) {
		delete(m.kvs, strkey)
		return nil, nil
	}
	return slices.Clone(item.value), nil
}

func (m *MemoryKVS) Set(key []byte, value []byte, ttl time.Duration) error {
	m.Lock()
	defer m.Unlock()
	itemTTL := time.Time{}
	if ttl != 0 {
		itemTTL = m.timefunc().Add(ttl)
	}
	m.kvs[string(key)] = memoryItem{
		value: slices.Clone(value),
		ttl:   itemTTL,
	}
	return nil
}

func (m *MemoryKVS) expiredItem(item memoryItem) bool {
	return !item.ttl.IsZero() && item.ttl.Before(m.timefunc())
}

func (m *MemoryKVS) Delete(keys ...[]byte) error {
	m.Lock()
	defer m.Unlock()
	for _, key := range keys {
		delete(m.kvs, string(key))
	}
	return nil
}

func (m *MemoryKVS) ForEachPrefix(prefix []byte, f func(k []byte, v []byte) bool) error {
	m.Lock()
	var found []string
	values := map[string][]byte{}
	for k, item := range m.kvs {
		if !strings.HasPrefix(k, string(prefix)) {
			continue
		}
		if m.expiredItem(item) {
			delete(m.kvs, k)
			continue
		}
		found = append(found, k)
		values[k] = item.value
	}
	m.Unlock()

	slices.Sort(found)
	for _, k := range found {
		if !f([]byte(k), slices.Clone(values[k])) {
			return nil
		}
	}
	return nil
}

func (m *MemoryKVS) Maintain() error {
	m.Lock()
	defer m.Unlock()
	for k, item := range m.kvs {
		if m.expiredItem(item) {
			delete(m.kvs, k)
		}
	}
	return nil
}

func (m *MemoryKVS) Close() error {
	return nil
}

func (m *MemoryKVS) Wipe() error {
	m.Lock()
	defer m.Unlock()
	m.kvs = make(map[string]memoryItem)
	return nil
}
