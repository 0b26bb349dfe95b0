package reqring_test

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/shadowcpy/hashtable/internal/ipc"
	"github.com/shadowcpy/hashtable/internal/layout"
	"github.com/shadowcpy/hashtable/internal/metricsx"
	"github.com/shadowcpy/hashtable/internal/protocol"
	"github.com/shadowcpy/hashtable/internal/reqring"
)

func newFrame() *layout.RequestFrame {
	frame := &layout.RequestFrame{}
	ipc.InitSem(&frame.CountSem, 0)
	ipc.InitSem(&frame.SpaceSem, layout.ReqCap)
	ipc.InitMutex(&frame.QueueMu)
	return frame
}

func Test_Enqueue_Dequeue_Round_Trips_A_Request(t *testing.T) {
	t.Parallel()

	queue := reqring.Attach(newFrame(), nil)
	key, _ := protocol.NewKey("k")
	want := protocol.RequestData{ClientID: 7, RequestID: 1, Kind: protocol.RequestInsert, Key: key}

	queue.Enqueue(want)
	got := queue.Dequeue()

	if got != want {
		t.Fatalf("Dequeue() = %+v, want %+v", got, want)
	}
}

func Test_Dequeue_Preserves_FIFO_Order_Under_A_Single_Producer(t *testing.T) {
	t.Parallel()

	queue := reqring.Attach(newFrame(), nil)
	const n = 500
	for i := uint32(0); i < n; i++ {
		queue.Enqueue(protocol.RequestData{RequestID: i})
	}
	for i := uint32(0); i < n; i++ {
		got := queue.Dequeue()
		if got.RequestID != i {
			t.Fatalf("Dequeue() RequestID = %d, want %d", got.RequestID, i)
		}
	}
}

func Test_Dequeue_Sees_Every_Request_From_Many_Concurrent_Producers(t *testing.T) {
	t.Parallel()

	queue := reqring.Attach(newFrame(), nil)
	const producers = 20
	const perProducer = 100
	const total = producers * perProducer

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				queue.Enqueue(protocol.RequestData{ClientID: uint32(p), RequestID: uint32(i)})
			}
		}(p)
	}

	seen := make(map[uint32]map[uint32]bool)
	var mu sync.Mutex
	var consumeWg sync.WaitGroup
	consumeWg.Add(1)
	go func() {
		defer consumeWg.Done()
		for i := 0; i < total; i++ {
			req := queue.Dequeue()
			mu.Lock()
			if seen[req.ClientID] == nil {
				seen[req.ClientID] = make(map[uint32]bool)
			}
			seen[req.ClientID][req.RequestID] = true
			mu.Unlock()
		}
	}()

	wg.Wait()
	consumeWg.Wait()

	if len(seen) != producers {
		t.Fatalf("saw %d distinct producers, want %d", len(seen), producers)
	}
	for p, ids := range seen {
		if len(ids) != perProducer {
			t.Fatalf("producer %d: saw %d distinct request ids, want %d", p, len(ids), perProducer)
		}
	}
}

func Test_Enqueue_Increments_The_Requests_Enqueued_Counter(t *testing.T) {
	metrics := metricsx.NewRegistry()
	queue := reqring.Attach(newFrame(), metrics)

	queue.Enqueue(protocol.RequestData{RequestID: 1})
	queue.Enqueue(protocol.RequestData{RequestID: 2})

	if got := testutil.ToFloat64(metrics.RequestsEnqueued); got != 2 {
		t.Fatalf("RequestsEnqueued = %v, want 2", got)
	}
}

func Test_Occupancy_Reflects_Pending_Requests(t *testing.T) {
	t.Parallel()

	queue := reqring.Attach(newFrame(), nil)
	if got := queue.Occupancy(); got != 0 {
		t.Fatalf("Occupancy() = %d, want 0", got)
	}
	queue.Enqueue(protocol.RequestData{RequestID: 1})
	queue.Enqueue(protocol.RequestData{RequestID: 2})
	if got := queue.Occupancy(); got != 2 {
		t.Fatalf("Occupancy() = %d, want 2", got)
	}
	queue.Dequeue()
	if got := queue.Occupancy(); got != 1 {
		t.Fatalf("Occupancy() = %d, want 1", got)
	}
}
