package layout_test

import (
	"testing"

	"github.com/shadowcpy/hashtable/internal/layout"
)

func Test_Size_Is_Positive_And_Stable(t *testing.T) {
	t.Parallel()

	if layout.Size() == 0 {
		t.Fatal("Size() must be positive")
	}
	if layout.Size() != layout.Size() {
		t.Fatal("Size() must be stable across calls")
	}
}

func Test_Init_Leaves_Every_Response_Slot_Immediately_Reusable(t *testing.T) {
	t.Parallel()

	var root layout.SharedMemoryContents
	layout.Init(&root, 4)

	for i, slot := range root.Payload.Response.Buffer {
		if slot.Rem != 0 {
			t.Fatalf("slot %d: Rem = %d, want 0 after Init", i, slot.Rem)
		}
	}
}

func Test_Init_Sets_Request_Ring_Cursors_To_Zero(t *testing.T) {
	t.Parallel()

	var root layout.SharedMemoryContents
	layout.Init(&root, 4)

	if root.Payload.Request.Queue.Write != 0 || root.Payload.Request.Queue.Read != 0 {
		t.Fatalf("request ring cursors = (%d, %d), want (0, 0)",
			root.Payload.Request.Queue.Write, root.Payload.Request.Queue.Read)
	}
}

func Test_Init_Records_NumWorkers_On_The_Response_Frame(t *testing.T) {
	t.Parallel()

	var root layout.SharedMemoryContents
	layout.Init(&root, 7)

	if root.Payload.Response.NumTx != 7 {
		t.Fatalf("NumTx = %d, want 7", root.Payload.Response.NumTx)
	}
}
