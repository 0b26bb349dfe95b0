// Package session implements the client-side join/leave lifecycle from
// §4.5: a background receiver task owns the broadcast cursor, filters by
// client_id, and forwards matches to a local in-process queue that the
// client's main loop drains.
package session

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/shadowcpy/hashtable/internal/metricsx"
	"github.com/shadowcpy/hashtable/internal/protocol"
	"github.com/shadowcpy/hashtable/internal/respring"
)

// pollInterval bounds how often the receiver task re-tests the broadcast
// ring and the cooperative stop flag.
const pollInterval = 2 * time.Millisecond

// inboxCapacity is the local in-process queue depth between the receiver
// task and the client's main loop.
const inboxCapacity = 256

// Client is one joined session: a random client_id, a background receiver
// task, and the local inbox the main loop reads responses from.
type Client struct {
	id      uint32
	recv    *respring.Receiver
	inbox   chan protocol.ResponseData
	stop    chan struct{}
	wg      sync.WaitGroup
	left    atomic.Bool
	logger  zerolog.Logger
	metrics *metricsx.Registry
}

// Join attaches a new client to the broadcast ring with a fresh random
// client_id and starts its receiver task. §9's open question applies here:
// a 32-bit random id can collide between concurrently-joined clients,
// causing cross-delivery; this implementation does not mitigate it. metrics
// may be nil, in which case delivered-response counts are simply not
// reported.
func Join(bc *respring.Broadcast, logger zerolog.Logger, metrics *metricsx.Registry) *Client {
	id := rand.Uint32()
	c := &Client{
		id:      id,
		recv:    bc.Join(),
		inbox:   make(chan protocol.ResponseData, inboxCapacity),
		stop:    make(chan struct{}),
		logger:  logger.With().Uint32("client_id", id).Logger(),
		metrics: metrics,
	}
	c.wg.Add(1)
	go c.run()
	return c
}

// ClientID returns this session's client_id, stamped on every outgoing
// request so responses can be routed back.
func (c *Client) ClientID() uint32 {
	return c.id
}

// Inbox delivers responses addressed to this client, in publish order.
func (c *Client) Inbox() <-chan protocol.ResponseData {
	return c.inbox
}

func (c *Client) run() {
	defer c.wg.Done()
	defer close(c.inbox)
	for {
		msg, ok := c.recv.Receive(c.stop, pollInterval)
		if !ok {
			c.recv.Leave()
			return
		}
		if msg.ClientID != c.id {
			// Rem was already decremented by Receive; this message simply
			// was not addressed to us.
			continue
		}
		select {
		case c.inbox <- msg:
			if c.metrics != nil {
				c.metrics.ResponsesDelivered.Inc()
			}
		case <-c.stop:
			// Leave() below still drains every slot up to the frozen
			// position, so this message's Rem accounting is not at risk.
		}
	}
}

// Close performs the Leave protocol and waits for the receiver task to
// finish draining. It is idempotent: a second Close is a no-op, logged as
// the caller-logic-error §8 describes, rather than double-decrementing
// rx_cnt.
func (c *Client) Close() {
	if !c.left.CompareAndSwap(false, true) {
		c.logger.Warn().Msg("session: Close called twice on the same client")
		return
	}
	close(c.stop)
	c.wg.Wait()
}
