// Package reqring implements the bounded multi-producer/single-consumer
// (really multi-consumer, but FIFO-serialized through one queue lock)
// request ring described in §4.3: clients enqueue RequestData, workers
// dequeue it, with two semaphores gating occupancy in both directions.
package reqring

import (
	"github.com/shadowcpy/hashtable/internal/ipc"
	"github.com/shadowcpy/hashtable/internal/layout"
	"github.com/shadowcpy/hashtable/internal/metricsx"
	"github.com/shadowcpy/hashtable/internal/protocol"
)

// Queue wraps a layout.RequestFrame with attached synchronization
// primitives. Safe for concurrent use by any number of producers and
// consumers across processes.
type Queue struct {
	frame   *layout.RequestFrame
	count   *ipc.Sem
	space   *ipc.Sem
	mu      *ipc.Mutex
	metrics *metricsx.Registry
}

// Attach wraps an already-initialized RequestFrame. metrics may be nil, in
// which case enqueue counts are simply not reported.
func Attach(frame *layout.RequestFrame, metrics *metricsx.Registry) *Queue {
	return &Queue{
		frame:   frame,
		count:   ipc.AttachSem(&frame.CountSem),
		space:   ipc.AttachSem(&frame.SpaceSem),
		mu:      ipc.AttachMutex(&frame.QueueMu),
		metrics: metrics,
	}
}

// Enqueue reserves a slot (blocking if the ring is full), writes the
// record, and signals it to a consumer. Multiple concurrent producers are
// serialized by the queue mutex, so the ring stays FIFO.
func (q *Queue) Enqueue(req protocol.RequestData) {
	q.space.Wait()
	q.mu.Lock()
	idx := q.frame.Queue.Write & (layout.ReqCap - 1)
	q.frame.Queue.Buffer[idx] = req
	q.frame.Queue.Write++
	q.mu.Unlock()
	q.count.Post()
	if q.metrics != nil {
		q.metrics.RequestsEnqueued.Inc()
	}
}

// Dequeue blocks until a request is available, then removes and returns it.
func (q *Queue) Dequeue() protocol.RequestData {
	q.count.Wait()
	q.mu.Lock()
	idx := q.frame.Queue.Read & (layout.ReqCap - 1)
	req := q.frame.Queue.Buffer[idx]
	q.frame.Queue.Read++
	q.mu.Unlock()
	q.space.Post()
	return req
}

// Occupancy reports the current in-flight count (write - read), for
// /metrics and /health reporting. It is advisory: concurrent producers and
// consumers may change it immediately after this call returns.
func (q *Queue) Occupancy() int {
	return int(q.frame.Queue.Write - q.frame.Queue.Read)
}
