package ipc

import "sync/atomic"

// Sem is a process-shared counting semaphore over a single uint32 word.
// Wait blocks until the word is positive then decrements it; Post
// increments it and wakes one waiter. Wait is the classic
// CAS-retry-then-futex-wait loop, so its fast path (word already positive)
// never enters the kernel; Post always issues a futex wake syscall.
type Sem struct {
	word *uint32
}

// InitSem sets the initial value of a semaphore word. Must be called exactly
// once, by the region's creator, before any process calls AttachSem on it.
func InitSem(word *uint32, value uint32) {
	atomic.StoreUint32(word, value)
}

// AttachSem wraps an already-initialized semaphore word. Safe to call from
// any process that has the word mapped into its address space.
func AttachSem(word *uint32) *Sem {
	return &Sem{word: word}
}

// Wait blocks until the semaphore is positive, then decrements it.
func (s *Sem) Wait() {
	for {
		v := atomic.LoadUint32(s.word)
		if v > 0 {
			if atomic.CompareAndSwapUint32(s.word, v, v-1) {
				return
			}
			continue
		}
		if err := futexWait(s.word, 0); err != nil {
			panic("ipc: sem wait: " + err.Error())
		}
	}
}

// Post increments the semaphore and wakes one waiter.
func (s *Sem) Post() {
	atomic.AddUint32(s.word, 1)
	if err := futexWake(s.word, 1); err != nil {
		panic("ipc: sem post: " + err.Error())
	}
}

// Value reports the current count, for diagnostics only.
func (s *Sem) Value() uint32 {
	return atomic.LoadUint32(s.word)
}
