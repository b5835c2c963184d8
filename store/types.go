package store

import "github.com/wolever/machinomy"

// Aliases for all storage types, for shorter names everywhere.

type ReadOnlyKVStore = machinomy.ReadOnlyKVStore
type KVStore = machinomy.KVStore
type SetDeleter = machinomy.SetDeleter
type Batch = machinomy.Batch
type Iterator = machinomy.Iterator
type CacheableKVStore = machinomy.CacheableKVStore
type KVCacheWrap = machinomy.KVCacheWrap

// Model groups a key-value pair, mostly so iterators can be fed from
// slices in tests.
type Model struct {
	Key   []byte
	Value []byte
}
