// Package ipc provides process-shared synchronization primitives backed by
// Linux futexes. Each primitive wraps one or more words that live inside a
// shared memory region (see internal/shm and internal/layout) — the word's
// address, not a copy of it, is the primitive's identity, exactly as §4.2
// of the design requires for primitives that cannot be constructed on the
// caller's stack and copied.
//
// No third-party package in the retrieval pack offers PTHREAD_PROCESS_SHARED
// bindings without cgo, and the teacher codebase never uses cgo, so the
// primitives here are built directly on golang.org/x/sys/unix's raw futex
// syscall — the same package the pack already leans on for mmap (see
// AlephTX-aleph-tx/feeder/shm and calvinalkan-agent-task/pkg/slotcache).
package ipc

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// futexWait blocks while *addr == expected. It returns immediately (with no
// error worth acting on) if the value has already changed.
func futexWait(addr *uint32, expected uint32) error {
	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(unix.FUTEX_WAIT),
		uintptr(expected),
		0, 0, 0,
	)
	if errno != 0 && errno != unix.EAGAIN && errno != unix.EINTR {
		return errno
	}
	return nil
}

// futexWake wakes up to n waiters blocked on addr.
func futexWake(addr *uint32, n int) error {
	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(unix.FUTEX_WAKE),
		uintptr(n),
		0, 0, 0,
	)
	if errno != 0 {
		return errno
	}
	return nil
}
