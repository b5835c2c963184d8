package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreSetGetDelete(t *testing.T) {
	db := MemStore()

	k, v := []byte("chan:1"), []byte("open")

	has, err := db.Has(k)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, db.Set(k, v))

	got, err := db.Get(k)
	require.NoError(t, err)
	assert.Equal(t, v, got)

	has, err = db.Has(k)
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, db.Delete(k))

	got, err = db.Get(k)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheWrapWriteAndDiscard(t *testing.T) {
	db := MemStore()
	require.NoError(t, db.Set([]byte("a"), []byte("1")))

	// discarded changes leave no residue
	cache := db.CacheWrap()
	require.NoError(t, cache.Set([]byte("a"), []byte("2")))
	require.NoError(t, cache.Set([]byte("b"), []byte("3")))
	require.NoError(t, cache.Delete([]byte("a")))
	cache.Discard()

	got, err := db.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)
	has, err := db.Has([]byte("b"))
	require.NoError(t, err)
	assert.False(t, has)

	// written changes are all applied
	cache = db.CacheWrap()
	require.NoError(t, cache.Set([]byte("b"), []byte("3")))
	require.NoError(t, cache.Delete([]byte("a")))
	require.NoError(t, cache.Write())

	has, err = db.Has([]byte("a"))
	require.NoError(t, err)
	assert.False(t, has)
	got, err = db.Get([]byte("b"))
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), got)
}

func TestCacheWrapReadsThrough(t *testing.T) {
	db := MemStore()
	require.NoError(t, db.Set([]byte("base"), []byte("under")))

	cache := db.CacheWrap()
	got, err := cache.Get([]byte("base"))
	require.NoError(t, err)
	assert.Equal(t, []byte("under"), got)

	// a delete in the cache shadows the backing value
	require.NoError(t, cache.Delete([]byte("base")))
	got, err = cache.Get([]byte("base"))
	require.NoError(t, err)
	assert.Nil(t, got)

	// but the backing store is untouched until Write
	got, err = db.Get([]byte("base"))
	require.NoError(t, err)
	assert.Equal(t, []byte("under"), got)
}

func TestIteratorCombinesCacheAndParent(t *testing.T) {
	db := MemStore()
	require.NoError(t, db.Set([]byte{1}, []byte("a")))
	require.NoError(t, db.Set([]byte{3}, []byte("c")))
	require.NoError(t, db.Set([]byte{5}, []byte("e")))

	cache := db.CacheWrap()
	require.NoError(t, cache.Set([]byte{2}, []byte("b")))
	require.NoError(t, cache.Set([]byte{3}, []byte("C"))) // overwrite
	require.NoError(t, cache.Delete([]byte{5}))

	it, err := cache.Iterator(nil, nil)
	require.NoError(t, err)
	defer it.Close()

	var keys [][]byte
	var vals [][]byte
	for ; it.Valid(); requireNext(t, it) {
		keys = append(keys, it.Key())
		vals = append(vals, it.Value())
	}
	assert.Equal(t, [][]byte{{1}, {2}, {3}}, keys)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("C")}, vals)
}

func TestReverseIterator(t *testing.T) {
	db := MemStore()
	for _, k := range [][]byte{{1}, {2}, {3}} {
		require.NoError(t, db.Set(k, k))
	}

	it, err := db.ReverseIterator(nil, nil)
	require.NoError(t, err)
	defer it.Close()

	var keys [][]byte
	for ; it.Valid(); requireNext(t, it) {
		keys = append(keys, it.Key())
	}
	assert.Equal(t, [][]byte{{3}, {2}, {1}}, keys)
}

func requireNext(t *testing.T, it Iterator) {
	t.Helper()
	require.NoError(t, it.Next())
}
