// Package hashtable is the bucketed, per-bucket read-write-locked, chained
// hash table the IPC substrate serves. §1 of the design treats this as an
// external collaborator outside the core's scope; it lives only in the
// server's address space (never in the shared region) and uses ordinary
// in-process sync.RWMutex, not the process-shared primitives in
// internal/ipc.
package hashtable

import (
	"hash/fnv"
	"sync"

	"github.com/shadowcpy/hashtable/internal/protocol"
)

type node struct {
	key   protocol.Key
	value protocol.Value
	next  *node
}

type bucket struct {
	mu   sync.RWMutex
	head *node
}

// Table is a fixed-size bucketed chained hash table.
type Table struct {
	buckets []bucket
}

// New creates a table with the given number of buckets.
func New(size int) *Table {
	if size <= 0 {
		size = 1024
	}
	return &Table{buckets: make([]bucket, size)}
}

func (t *Table) bucketFor(k protocol.Key) *bucket {
	h := fnv.New64a()
	h.Write(k.Data[:k.Len])
	return &t.buckets[h.Sum64()%uint64(len(t.buckets))]
}

// Insert adds or overwrites the value for k.
func (t *Table) Insert(k protocol.Key, v protocol.Value) {
	b := t.bucketFor(k)
	b.mu.Lock()
	defer b.mu.Unlock()
	for n := b.head; n != nil; n = n.next {
		if n.key == k {
			n.value = v
			return
		}
	}
	b.head = &node{key: k, value: v, next: b.head}
}

// Delete removes k, reporting whether it was present.
func (t *Table) Delete(k protocol.Key) bool {
	b := t.bucketFor(k)
	b.mu.Lock()
	defer b.mu.Unlock()
	var prev *node
	for n := b.head; n != nil; n = n.next {
		if n.key == k {
			if prev == nil {
				b.head = n.next
			} else {
				prev.next = n.next
			}
			return true
		}
		prev = n
	}
	return false
}

// ErrOverflow is returned by ReadBucket when the bucket holds more than
// protocol.BucketInlineCapacity entries; §4.6 requires this to surface as
// an application-level Overflow response, not a paginated result.
var ErrOverflow = overflowError{}

type overflowError struct{}

func (overflowError) Error() string { return "hashtable: bucket exceeds inline capacity" }

// ReadBucket returns every (key, value) pair sharing k's bucket. It always
// succeeds, even when the bucket is empty or does not contain k: there is
// no not-found case for a bucket read, only a possible overflow.
func (t *Table) ReadBucket(k protocol.Key) (entries []protocol.Entry, err error) {
	b := t.bucketFor(k)
	b.mu.RLock()
	defer b.mu.RUnlock()

	var count int
	for n := b.head; n != nil; n = n.next {
		count++
		if count > protocol.BucketInlineCapacity {
			return nil, ErrOverflow
		}
	}
	entries = make([]protocol.Entry, 0, count)
	for n := b.head; n != nil; n = n.next {
		entries = append(entries, protocol.Entry{Key: n.key, Value: n.value})
	}
	return entries, nil
}
