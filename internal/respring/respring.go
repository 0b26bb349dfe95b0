// Package respring implements the bounded single-producer/multi-consumer
// broadcast ring described in §4.4: every published message is consumed by
// every currently-joined receiver exactly once, and a slot is reclaimed
// only once the last such receiver has read it. This is the principal
// invention of the core; see §4.4's state machine for the authoritative
// description of the FREE -> PUBLISHING -> LIVE -> RECLAIMING transitions
// implemented below.
package respring

import (
	"sync/atomic"
	"time"

	"github.com/shadowcpy/hashtable/internal/ipc"
	"github.com/shadowcpy/hashtable/internal/layout"
	"github.com/shadowcpy/hashtable/internal/protocol"
)

// Broadcast is the publisher-facing handle on the response ring.
type Broadcast struct {
	frame  *layout.ResponseFrame
	space  *ipc.Sem
	tailMu *ipc.Mutex
}

// Attach wraps an already-initialized ResponseFrame.
func Attach(frame *layout.ResponseFrame) *Broadcast {
	return &Broadcast{
		frame:  frame,
		space:  ipc.AttachSem(&frame.SpaceSem),
		tailMu: ipc.AttachMutex(&frame.TailMu),
	}
}

// DropHandler is invoked when Publish discards a message because no
// receiver is currently joined. Callers use it for the "all clients left,
// dropping" log line from §4.4's Publish step 3.
type DropHandler func(msg protocol.ResponseData)

// Publish reserves a slot, and if at least one receiver is joined, writes
// the message and makes it visible; otherwise the message is discarded and
// the reserved slot is returned immediately (drop-on-no-consumer policy).
// The reservation-to-commit sequence is uninterruptible: aborting partway
// would corrupt the slot's Rem accounting for every future reader.
func (b *Broadcast) Publish(msg protocol.ResponseData, onDrop DropHandler) {
	b.space.Wait()
	b.tailMu.Lock()

	if b.frame.Tail.RxCnt == 0 {
		b.space.Post()
		b.tailMu.Unlock()
		if onDrop != nil {
			onDrop(msg)
		}
		return
	}

	p := b.frame.Tail.Pos
	r := b.frame.Tail.RxCnt

	slot := &b.frame.Buffer[p&(layout.ResCap-1)]
	rw := ipc.AttachRWLock(&slot.RW)
	rw.Lock()
	if atomic.LoadUint32(&slot.Rem) != 0 {
		rw.Unlock()
		b.tailMu.Unlock()
		panic("respring: publish observed a live slot; space semaphore invariant violated")
	}
	slot.Val = msg
	slot.Pos = p
	atomic.StoreUint32(&slot.Rem, uint32(r))
	rw.Unlock()

	b.frame.Tail.Pos = p + 1
	b.tailMu.Unlock()
}

// Join registers a new receiver. The joiner is responsible for every
// message published from this point on, and none before it.
func (b *Broadcast) Join() *Receiver {
	b.tailMu.Lock()
	r := &Receiver{
		frame:    b.frame,
		space:    b.space,
		readNext: b.frame.Tail.Pos,
	}
	b.frame.Tail.RxCnt++
	b.tailMu.Unlock()
	return r
}

// ReceiverCount reports the current joined-receiver count, for /health and
// /metrics reporting.
func (b *Broadcast) ReceiverCount() uint64 {
	b.tailMu.Lock()
	n := b.frame.Tail.RxCnt
	b.tailMu.Unlock()
	return n
}

// Receiver is one joined client's cursor into the broadcast ring.
type Receiver struct {
	frame    *layout.ResponseFrame
	space    *ipc.Sem
	readNext uint64
}

// tryReceive is the non-blocking readiness test from §4.4's Receive
// protocol: the slot's Pos field is the readiness predicate.
func (r *Receiver) tryReceive() (protocol.ResponseData, bool) {
	idx := r.readNext & (layout.ResCap - 1)
	slot := &r.frame.Buffer[idx]
	rw := ipc.AttachRWLock(&slot.RW)
	rw.RLock()

	if slot.Pos != r.readNext {
		rw.RUnlock()
		return protocol.ResponseData{}, false
	}

	msg := slot.Val
	if atomic.AddUint32(&slot.Rem, ^uint32(0)) == 0 {
		r.space.Post()
	}
	rw.RUnlock()

	r.readNext++
	return msg, true
}

// Receive polls for the next message, honoring stop for cooperative
// shutdown. Because readiness is a non-blocking test, shutdown latency is
// bounded by one poll interval.
func (r *Receiver) Receive(stop <-chan struct{}, pollInterval time.Duration) (protocol.ResponseData, bool) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if msg, ok := r.tryReceive(); ok {
			return msg, true
		}
		select {
		case <-stop:
			return protocol.ResponseData{}, false
		case <-ticker.C:
		}
	}
}

// seqLess reports a < b under 64-bit wraparound, matching the wrap-aware
// cursor comparisons described throughout §4.4 and §8.
func seqLess(a, b uint64) bool {
	return int64(a-b) < 0
}

// Leave decrements the receiver count and drains every slot published up
// to the position frozen at that moment, so the publisher's space
// semaphore is never left short by an un-decremented Rem. Leave itself is
// not idempotent: every call decrements the receiver count again. The
// second-leave check lives in session.Client, which calls Leave once and
// guards Close behind a one-shot flag that logs a repeated call.
func (r *Receiver) Leave() {
	tailMu := ipc.AttachMutex(&r.frame.TailMu)
	tailMu.Lock()
	r.frame.Tail.RxCnt--
	drainUntil := r.frame.Tail.Pos
	tailMu.Unlock()

	for seqLess(r.readNext, drainUntil) {
		if _, ok := r.tryReceive(); !ok {
			// The message is already published (readNext <= drainUntil <=
			// pos), so this can only be a transient lost race against the
			// publisher's write-lock; retry immediately.
			continue
		}
	}
}
