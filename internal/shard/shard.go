package shard

import (
	"hash"
	"strconv"
	"sync"

	"github.com/spaolacci/murmur3"
)

// StripedLock serializes operations per key without one mutex per key.
// Keys hash onto a fixed set of stripes with murmur3, so two operations on
// the same account always contend on the same mutex while different
// accounts almost always proceed independently.
type StripedLock struct {
	stripes    []sync.Mutex
	hasherPool sync.Pool
}

// NewStripedLock creates a lock with the given stripe count. Counts below
// one fall back to 64 stripes.
func NewStripedLock(stripes int) *StripedLock {
	if stripes < 1 {
		stripes = 64
	}
	return &StripedLock{
		stripes: make([]sync.Mutex, stripes),
		hasherPool: sync.Pool{
			New: func() interface{} {
				return murmur3.New64()
			},
		},
	}
}

// Lock acquires the stripe for key.
func (l *StripedLock) Lock(key string) {
	l.stripes[l.stripeFor(key)].Lock()
}

// Unlock releases the stripe for key.
func (l *StripedLock) Unlock(key string) {
	l.stripes[l.stripeFor(key)].Unlock()
}

// LockID acquires the stripe for a numeric key.
func (l *StripedLock) LockID(id int64) {
	l.Lock(strconv.FormatInt(id, 10))
}

// UnlockID releases the stripe for a numeric key.
func (l *StripedLock) UnlockID(id int64) {
	l.Unlock(strconv.FormatInt(id, 10))
}

// Stripes returns the stripe count.
func (l *StripedLock) Stripes() int {
	return len(l.stripes)
}

func (l *StripedLock) stripeFor(key string) int {
	hasher := l.hasherPool.Get().(hash.Hash64)
	defer l.hasherPool.Put(hasher)

	hasher.Reset()
	hasher.Write([]byte(key))
	return int(hasher.Sum64() % uint64(len(l.stripes)))
}
