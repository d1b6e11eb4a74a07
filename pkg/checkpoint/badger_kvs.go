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
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type BadgerKVS struct {
	db *badger.DB
}

func NewBadgerKVS(db *badger.DB) *BadgerKVS {
	return &BadgerKVS{db: db}
}

// OpenBadgerKVS opens a database at path, or an in-memory one when path
// is empty.
func OpenBadgerKVS(path string) (*BadgerKVS, error) {
	opt := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opt = opt.WithInMemory(true)
	}
	db, err := badger.Open(opt)
	if err != nil {
		return nil, err
	}
	return NewBadgerKVS(db), nil
}

var (
	_ KVS   = (*BadgerKVS)(nil)
	_ Wiper = (*BadgerKVS)(nil)
)

func (b *BadgerKVS) Get(key []byte) ([]byte, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (b *BadgerKVS) Set(key []byte, value []byte, ttl time.Duration) error {
	return b.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

func (b *BadgerKVS) Delete(keys ...[]byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerKVS) ForEachPrefix(prefix []byte, f func(key []byte, value []byte) bool) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			k := item.KeyCopy(nil)
			v, err := item.ValueCopy(nil)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if !f(k, v) {
				break
			}
		}
		return nil
	})
}

func (b *BadgerKVS) Maintain() error {
	if b.db.Opts().InMemory {
		return nil
	}
	err := b.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}

func (b *BadgerKVS) Close() error {
	return b.db.Close()
}

func (b *BadgerKVS) Wipe() error {
	return b.db.DropAll()
}
