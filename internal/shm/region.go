// Package shm manages the POSIX shared memory region backing the hash
// table service: creation, readiness gating via a magic marker, attachment,
// and teardown. Mmap handling follows the same syscall-level approach as
// AlephTX-aleph-tx/feeder/shm, generalized from a single mmap'd file to a
// POSIX shared-memory object with a readiness handshake.
package shm

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/shadowcpy/hashtable/internal/layout"
)

// ErrNotReady is returned by Join when the region exists but the creator
// has not yet stamped the magic marker.
var ErrNotReady = errors.New("shm: region not ready")

const dir = "/dev/shm"

func path(name string) string {
	return dir + "/" + strings.TrimPrefix(name, "/")
}

// Region is a mapped view of a SharedMemoryContents. The creator's Region
// owns the backing object and unlinks it on Close; every other holder's
// Region is a non-owning view that only unmaps on Close.
type Region struct {
	data  []byte
	root  *layout.SharedMemoryContents
	owner bool
	path  string
}

// Create unlinks any stale object at name, creates it with exclusive
// creation and user read/write permissions, sizes it, maps it, runs the
// in-place initializer over the payload, and finally stamps Magic. Failure
// before Magic is set leaves the region unlinked.
func Create(name string, numWorkers int) (*Region, error) {
	p := path(name)
	_ = os.Remove(p)

	f, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("shm: create %s: %w", p, err)
	}
	defer f.Close()

	size := int(layout.Size())
	if err := f.Truncate(int64(size)); err != nil {
		_ = os.Remove(p)
		return nil, fmt.Errorf("shm: truncate: %w", err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = os.Remove(p)
		return nil, fmt.Errorf("shm: mmap: %w", err)
	}

	root := (*layout.SharedMemoryContents)(unsafe.Pointer(&data[0]))
	layout.Init(root, uint64(numWorkers))

	// Magic is a release-store once: every primitive above must be
	// initialized before any process can observe this write.
	storeMagic(&root.Magic, layout.MagicValue)

	return &Region{data: data, root: root, owner: true, path: p}, nil
}

// Join opens an existing region and maps it. It fails with ErrNotReady if
// the creator has not yet stamped Magic.
func Join(name string) (*Region, error) {
	p := path(name)
	f, err := os.OpenFile(p, os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("shm: open %s: %w", p, err)
	}
	defer f.Close()

	size := int(layout.Size())
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shm: mmap: %w", err)
	}

	root := (*layout.SharedMemoryContents)(unsafe.Pointer(&data[0]))
	if loadMagic(&root.Magic) != layout.MagicValue {
		_ = unix.Munmap(data)
		return nil, ErrNotReady
	}

	return &Region{data: data, root: root, owner: false, path: p}, nil
}

// Payload returns the shared hash table memory. The returned pointer is
// valid for the lifetime of the Region.
func (r *Region) Payload() *layout.HashtableMemory {
	return &r.root.Payload
}

// Close unmaps the region. The creator additionally unlinks the backing
// object, so no further process can Join it.
func (r *Region) Close() error {
	err := unix.Munmap(r.data)
	if r.owner {
		if rmErr := os.Remove(r.path); rmErr != nil && err == nil {
			err = rmErr
		}
	}
	return err
}
