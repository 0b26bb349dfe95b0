// Package worker runs the server-side request executors: each worker
// dequeues a RequestData, applies it to the hash table, and publishes the
// matching ResponseData, per §2's control-flow description.
package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/shadowcpy/hashtable/internal/hashtable"
	"github.com/shadowcpy/hashtable/internal/metricsx"
	"github.com/shadowcpy/hashtable/internal/protocol"
	"github.com/shadowcpy/hashtable/internal/reqring"
	"github.com/shadowcpy/hashtable/internal/respring"
)

// Pool runs a fixed number of worker goroutines against a shared request
// queue and hash table, publishing to a shared broadcast ring.
type Pool struct {
	queue     *reqring.Queue
	broadcast *respring.Broadcast
	table     *hashtable.Table
	metrics   *metricsx.Registry
	logger    zerolog.Logger

	wg sync.WaitGroup
}

// NewPool builds a worker pool. Call Start to launch the goroutines.
func NewPool(queue *reqring.Queue, broadcast *respring.Broadcast, table *hashtable.Table, metrics *metricsx.Registry, logger zerolog.Logger) *Pool {
	return &Pool{queue: queue, broadcast: broadcast, table: table, metrics: metrics, logger: logger}
}

// Start launches n worker goroutines. Each runs until ctx is cancelled;
// because Dequeue blocks uninterruptibly on the count semaphore, a
// cancelled worker only notices at its next successful dequeue, matching
// §5's note that request-ring waits are kernel waits with no cancellation.
func (p *Pool) Start(ctx context.Context, n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
}

// Wait blocks until every worker goroutine has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	log := p.logger.With().Int("worker_id", id).Logger()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		req := p.queue.Dequeue()
		if p.metrics != nil {
			p.metrics.RequestsDequeued.Inc()
			p.metrics.RequestRingDepth.Set(float64(p.queue.Occupancy()))
		}

		resp := p.execute(req)
		wasDropped := false
		p.broadcast.Publish(resp, func(dropped protocol.ResponseData) {
			wasDropped = true
			if p.metrics != nil {
				p.metrics.ResponsesDropped.Inc()
			}
			log.Debug().
				Uint32("client_id", dropped.ClientID).
				Uint32("request_id", dropped.RequestID).
				Msg("all clients left, dropping")
		})
		if p.metrics != nil && !wasDropped {
			p.metrics.ResponsesPublished.Inc()
		}
	}
}

func (p *Pool) execute(req protocol.RequestData) protocol.ResponseData {
	resp := protocol.ResponseData{ClientID: req.ClientID, RequestID: req.RequestID}

	switch req.Kind {
	case protocol.RequestInsert:
		p.table.Insert(req.Key, req.Value)
		resp.Kind = protocol.ResponseInserted

	case protocol.RequestReadBucket:
		entries, err := p.table.ReadBucket(req.Key)
		if err != nil {
			resp.Kind = protocol.ResponseOverflow
		} else {
			resp.Kind = protocol.ResponseBucketContent
			resp.Len = uint8(len(entries))
			copy(resp.Entries[:], entries)
		}

	case protocol.RequestDelete:
		if p.table.Delete(req.Key) {
			resp.Kind = protocol.ResponseDeleted
		} else {
			resp.Kind = protocol.ResponseNotFound
		}

	default:
		resp.Kind = protocol.ResponseNotFound
	}

	return resp
}
