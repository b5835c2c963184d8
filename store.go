package machinomy

// KVStore and the related interfaces describe the storage every stateful
// component persists into. The channel registry owns one injected
// CacheableKVStore and never touches any other storage.

// ReadOnlyKVStore is the subset of store operations that cannot modify
// state. Queries should accept this type to make their intent clear.
type ReadOnlyKVStore interface {
	// Get returns nil if the key doesn't exist. Panics on nil key.
	Get(key []byte) ([]byte, error)

	// Has checks for existence of the key. Panics on nil key.
	Has(key []byte) (bool, error)

	// Iterator iterates over a domain of keys in ascending order.
	// End is exclusive. Start must be less than end, or the Iterator
	// is invalid.
	// CONTRACT: No writes may happen within a domain while an iterator
	// exists over it.
	Iterator(start, end []byte) (Iterator, error)

	// ReverseIterator iterates over a domain of keys in descending
	// order. End is exclusive. Start must be greater than end, or the
	// Iterator is invalid.
	ReverseIterator(start, end []byte) (Iterator, error)
}

// SetDeleter is the write half of a store.
type SetDeleter interface {
	Set(key, value []byte) error // CONTRACT: key, value readonly []byte
	Delete(key []byte) error     // CONTRACT: key readonly []byte
}

// KVStore is a simple interface to read and write data.
//
// All backing stores must implement this interface. They may implement
// other methods as well, but at least these are required.
type KVStore interface {
	ReadOnlyKVStore
	SetDeleter

	// NewBatch returns a batch that can write multiple ops atomically.
	NewBatch() Batch
}

// Batch groups writes so they can be applied to the underlying store in
// one go.
type Batch interface {
	SetDeleter
	Write() error
}

// Iterator allows iteration over a range of keys. Usage:
//
//	var itr Iterator = ...
//	defer itr.Close()
//
//	for ; itr.Valid(); itr.Next() {
//	    k, v := itr.Key(), itr.Value()
//	    // ...
//	}
type Iterator interface {
	// Valid returns whether the current position is valid.
	// Once invalid, an Iterator is forever invalid.
	Valid() bool

	// Next moves the iterator to the next sequential key as defined by
	// the order of iteration. Panics if Valid returns false.
	Next() error

	// Key returns the key of the cursor. Panics if Valid returns false.
	// CONTRACT: key readonly []byte
	Key() []byte

	// Value returns the value of the cursor. Panics if Valid returns
	// false.
	// CONTRACT: value readonly []byte
	Value() []byte

	// Close releases the Iterator.
	Close()
}

// CacheableKVStore is a KVStore that supports CacheWrapping.
//
// CacheWrap must not return a Committer, since Commit on cache-wraps
// makes no sense.
type CacheableKVStore interface {
	KVStore
	CacheWrap() KVCacheWrap
}

// KVCacheWrap maintains a scratch-pad of uncommitted writes visible to
// all reads through it.
//
// At the end, call Write to flush the cached data down, or Discard to
// drop it. This is how state transitions stay all-or-nothing: mutate the
// wrap, Write on success, Discard on any failure.
type KVCacheWrap interface {
	// CacheableKVStore allows layering caches recursively.
	CacheableKVStore

	// Write syncs with the underlying store.
	Write() error

	// Discard invalidates this CacheWrap and releases all data.
	Discard()
}
