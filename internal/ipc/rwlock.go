package ipc

import "sync/atomic"

// RWLockState is the plain-data, C-compatible layout of an RWLock's words.
// It is embedded directly inside shared memory structures (see
// internal/layout); RWLock wraps a pointer to one.
type RWLockState struct {
	Readers   uint32
	ReaderMu  uint32 // guards Readers during the 0<->1 transition
	WriterMu  uint32 // held by the writer, and by the first/last reader
}

// RWLock is a process-shared readers-writer lock implemented with the
// classic two-mutex "first readers-writers" construction: a writer holds
// WriterMu for the duration of its critical section, and only the reader
// that takes Readers from 0 to 1 (or back to 0) touches WriterMu. Multiple
// concurrent readers otherwise never block each other.
type RWLock struct {
	st       *RWLockState
	readerMu *Mutex
	writerMu *Mutex
}

// InitRWLock zeroes an RWLockState. Called once by the region's creator.
func InitRWLock(st *RWLockState) {
	atomic.StoreUint32(&st.Readers, 0)
	InitMutex(&st.ReaderMu)
	InitMutex(&st.WriterMu)
}

// AttachRWLock wraps an already-initialized RWLockState.
func AttachRWLock(st *RWLockState) *RWLock {
	return &RWLock{
		st:       st,
		readerMu: AttachMutex(&st.ReaderMu),
		writerMu: AttachMutex(&st.WriterMu),
	}
}

// RLock acquires a shared (read) lock. Multiple readers may hold it at once.
func (l *RWLock) RLock() {
	l.readerMu.Lock()
	if atomic.AddUint32(&l.st.Readers, 1) == 1 {
		l.writerMu.Lock()
	}
	l.readerMu.Unlock()
}

// RUnlock releases a shared lock.
func (l *RWLock) RUnlock() {
	l.readerMu.Lock()
	if atomic.AddUint32(&l.st.Readers, ^uint32(0)) == 0 {
		l.writerMu.Unlock()
	}
	l.readerMu.Unlock()
}

// Lock acquires the exclusive (write) lock.
func (l *RWLock) Lock() {
	l.writerMu.Lock()
}

// Unlock releases the exclusive lock.
func (l *RWLock) Unlock() {
	l.writerMu.Unlock()
}
