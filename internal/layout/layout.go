// Package layout defines the C-compatible memory layout shared between the
// server and every client process. Both sides must be built from these
// same definitions — there is no versioning handshake beyond the magic
// marker in SharedMemoryContents.
package layout

import (
	"unsafe"

	"github.com/shadowcpy/hashtable/internal/ipc"
	"github.com/shadowcpy/hashtable/internal/protocol"
)

const (
	// ReqCap is the request ring capacity; must be a power of two.
	ReqCap = 2048
	// ResCap is the broadcast ring capacity; must be a power of two.
	ResCap = 256
	// MagicValue gates client attachment: a client must observe this exact
	// value before it trusts the region's contents.
	MagicValue uint32 = 0x48544231 // "HTB1"
)

func init() {
	if ReqCap&(ReqCap-1) != 0 {
		panic("layout: ReqCap must be a power of two")
	}
	if ResCap&(ResCap-1) != 0 {
		panic("layout: ResCap must be a power of two")
	}
}

// RequestQueue is the bounded ring buffer backing the MPSC request queue.
type RequestQueue struct {
	Write  uint64
	Read   uint64
	Buffer [ReqCap]protocol.RequestData
}

// RequestFrame holds the client-to-worker request ring and its gates.
type RequestFrame struct {
	CountSem uint32 // number of queued requests
	SpaceSem uint32 // free slots
	QueueMu  uint32
	Queue    RequestQueue
}

// ResponseSlot is one entry of the broadcast ring.
type ResponseSlot struct {
	Rem uint32 // receivers still owing a read; 0 means reusable
	_   uint32
	Pos uint64 // absolute sequence number last published into this slot
	RW  ipc.RWLockState
	Val protocol.ResponseData
}

// ResponseTail is the publisher-side state governing the next write
// position and current receiver fan-out.
type ResponseTail struct {
	Pos   uint64
	RxCnt uint64
}

// ResponseFrame holds the worker-to-client broadcast ring.
type ResponseFrame struct {
	SpaceSem uint32
	NumTx    uint64
	TailMu   uint32
	Tail     ResponseTail
	Buffer   [ResCap]ResponseSlot
}

// HashtableMemory is the core payload of the shared region: the two rings.
// The hash table itself lives only in the server's address space.
type HashtableMemory struct {
	Request  RequestFrame
	Response ResponseFrame
}

// SharedMemoryContents is the fixed header followed by the core payload.
// Magic is written last by the creator; clients refuse to attach until it
// matches MagicValue.
type SharedMemoryContents struct {
	Magic   uint32
	_       [4]byte
	Payload HashtableMemory
}

// Size is the exact byte size of the region the creator must truncate the
// backing file to.
func Size() uintptr {
	return unsafe.Sizeof(SharedMemoryContents{})
}

// Init initializes every in-place primitive and ring bookkeeping field of a
// freshly-mapped region. Must run exactly once, by the creator, strictly
// before Magic is stamped — everything here must be visible to any process
// that later observes Magic set.
func Init(root *SharedMemoryContents, numWorkers uint64) {
	req := &root.Payload.Request
	ipc.InitSem(&req.CountSem, 0)
	ipc.InitSem(&req.SpaceSem, ReqCap)
	ipc.InitMutex(&req.QueueMu)
	req.Queue.Write = 0
	req.Queue.Read = 0

	res := &root.Payload.Response
	ipc.InitSem(&res.SpaceSem, ResCap)
	res.NumTx = numWorkers
	ipc.InitMutex(&res.TailMu)
	res.Tail.Pos = 0
	res.Tail.RxCnt = 0
	for i := range res.Buffer {
		slot := &res.Buffer[i]
		slot.Rem = 0
		slot.Pos = uint64(i) - ResCap // wraps; strictly less than any future publish position for this index
		ipc.InitRWLock(&slot.RW)
	}
}
