package respring_test

import (
	"testing"
	"time"

	"github.com/shadowcpy/hashtable/internal/ipc"
	"github.com/shadowcpy/hashtable/internal/layout"
	"github.com/shadowcpy/hashtable/internal/protocol"
	"github.com/shadowcpy/hashtable/internal/respring"
)

const testPollInterval = time.Millisecond

func newFrame() *layout.ResponseFrame {
	frame := &layout.ResponseFrame{}
	ipc.InitSem(&frame.SpaceSem, layout.ResCap)
	ipc.InitMutex(&frame.TailMu)
	for i := range frame.Buffer {
		slot := &frame.Buffer[i]
		slot.Pos = uint64(i) - layout.ResCap
		ipc.InitRWLock(&slot.RW)
	}
	return frame
}

func Test_Publish_With_No_Receivers_Drops_And_Invokes_The_Drop_Handler(t *testing.T) {
	t.Parallel()

	bc := respring.Attach(newFrame())
	var dropped protocol.ResponseData
	called := false

	bc.Publish(protocol.ResponseData{RequestID: 1}, func(msg protocol.ResponseData) {
		called = true
		dropped = msg
	})

	if !called {
		t.Fatal("expected the drop handler to run when no receiver is joined")
	}
	if dropped.RequestID != 1 {
		t.Fatalf("dropped.RequestID = %d, want 1", dropped.RequestID)
	}
}

func Test_Join_Then_Publish_Delivers_To_The_Receiver(t *testing.T) {
	t.Parallel()

	bc := respring.Attach(newFrame())
	receiver := bc.Join()

	want := protocol.ResponseData{RequestID: 42}
	bc.Publish(want, func(protocol.ResponseData) {
		t.Fatal("message should not be dropped with a receiver joined")
	})

	stop := make(chan struct{})
	msg, ok := receiver.Receive(stop, testPollInterval)
	if !ok {
		t.Fatal("Receive returned ok=false")
	}
	if msg.RequestID != want.RequestID {
		t.Fatalf("RequestID = %d, want %d", msg.RequestID, want.RequestID)
	}
}

func Test_Every_Joined_Receiver_Gets_Every_Published_Message(t *testing.T) {
	t.Parallel()

	bc := respring.Attach(newFrame())
	r1 := bc.Join()
	r2 := bc.Join()

	const n = 50
	go func() {
		for i := uint32(0); i < n; i++ {
			bc.Publish(protocol.ResponseData{RequestID: i}, func(protocol.ResponseData) {
				t.Error("unexpected drop with receivers joined")
			})
		}
	}()

	stop := make(chan struct{})
	for i := uint32(0); i < n; i++ {
		msg, ok := r1.Receive(stop, testPollInterval)
		if !ok || msg.RequestID != i {
			t.Fatalf("r1: Receive() = (%+v, %v), want RequestID %d", msg, ok, i)
		}
		msg, ok = r2.Receive(stop, testPollInterval)
		if !ok || msg.RequestID != i {
			t.Fatalf("r2: Receive() = (%+v, %v), want RequestID %d", msg, ok, i)
		}
	}
}

func Test_Slot_Is_Reclaimed_Only_After_The_Last_Receiver_Reads_It(t *testing.T) {
	t.Parallel()

	frame := newFrame()
	bc := respring.Attach(frame)
	r1 := bc.Join()
	r2 := bc.Join()

	bc.Publish(protocol.ResponseData{RequestID: 1}, nil)

	slot := &frame.Buffer[0]
	if slot.Rem != 2 {
		t.Fatalf("Rem after publish = %d, want 2 (one per joined receiver)", slot.Rem)
	}

	stop := make(chan struct{})
	if _, ok := r1.Receive(stop, testPollInterval); !ok {
		t.Fatal("r1 Receive failed")
	}
	if slot.Rem != 1 {
		t.Fatalf("Rem after one reader consumed = %d, want 1", slot.Rem)
	}

	if _, ok := r2.Receive(stop, testPollInterval); !ok {
		t.Fatal("r2 Receive failed")
	}
	if slot.Rem != 0 {
		t.Fatalf("Rem after both readers consumed = %d, want 0 (slot reclaimed)", slot.Rem)
	}
}

func Test_ReceiverCount_Tracks_Join_And_Leave(t *testing.T) {
	t.Parallel()

	bc := respring.Attach(newFrame())
	if bc.ReceiverCount() != 0 {
		t.Fatalf("ReceiverCount() = %d, want 0", bc.ReceiverCount())
	}

	r := bc.Join()
	if bc.ReceiverCount() != 1 {
		t.Fatalf("ReceiverCount() = %d, want 1", bc.ReceiverCount())
	}

	r.Leave()
	if bc.ReceiverCount() != 0 {
		t.Fatalf("ReceiverCount() after Leave = %d, want 0", bc.ReceiverCount())
	}
}

func Test_Leave_Drains_Messages_Published_Before_It_Was_Called(t *testing.T) {
	t.Parallel()

	frame := newFrame()
	bc := respring.Attach(frame)
	slow := bc.Join()
	fast := bc.Join()

	bc.Publish(protocol.ResponseData{RequestID: 1}, nil)
	bc.Publish(protocol.ResponseData{RequestID: 2}, nil)

	stop := make(chan struct{})
	if _, ok := fast.Receive(stop, testPollInterval); !ok {
		t.Fatal("fast receiver failed to read first message")
	}
	if _, ok := fast.Receive(stop, testPollInterval); !ok {
		t.Fatal("fast receiver failed to read second message")
	}

	// slow never read either message; Leave must still drain them so the
	// publisher's space semaphore is not left short.
	slow.Leave()

	// Both slots must now be reclaimed: their Rem is back to zero and the
	// space semaphore holds every slot again.
	for i := 0; i < 2; i++ {
		if frame.Buffer[i].Rem != 0 {
			t.Fatalf("slot %d: Rem after Leave = %d, want 0", i, frame.Buffer[i].Rem)
		}
	}
	if got := ipc.AttachSem(&frame.SpaceSem).Value(); got != layout.ResCap {
		t.Fatalf("space after Leave = %d, want %d", got, layout.ResCap)
	}

	// A fresh publish still goes through after the receiver left.
	done := make(chan struct{})
	go func() {
		bc.Publish(protocol.ResponseData{RequestID: 3}, nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked after Leave")
	}
}
