package telemetry

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"reflow_oven/internal/logger"
)

// DefaultClientBuffer is the number of frames a client may lag behind before frames are dropped.
const DefaultClientBuffer = 256

// Client is one websocket subscriber. Frames are read from Send by the connection's writer.
type Client struct {
	id      uint64
	send    chan []byte
	done    chan struct{}
	dropped atomic.Uint64
	once    sync.Once
}

// Send returns the outgoing frame queue. It is never closed; watch Done instead.
func (c *Client) Send() <-chan []byte { return c.send }

// Done is closed once the client is unregistered.
func (c *Client) Done() <-chan struct{} { return c.done }

// Dropped reports how many frames were discarded because the client fell behind.
func (c *Client) Dropped() uint64 { return c.dropped.Load() }

// Enqueue queues a frame without blocking. It reports false when the frame was dropped.
func (c *Client) Enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// EnqueueJSON marshals v and queues it.
func (c *Client) EnqueueJSON(v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return c.Enqueue(b)
}

// Hub fans telemetry frames out to every registered client.
type Hub struct {
	log     *logger.Logger
	buffer  int
	nextID  atomic.Uint64
	clients *xsync.MapOf[uint64, *Client]
}

func NewHub(log *logger.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultClientBuffer
	}
	return &Hub{
		log:     log,
		buffer:  buffer,
		clients: xsync.NewMapOf[uint64, *Client](),
	}
}

// Register adds a client and returns it.
func (h *Hub) Register() *Client {
	c := &Client{
		id:   h.nextID.Add(1),
		send: make(chan []byte, h.buffer),
		done: make(chan struct{}),
	}
	h.clients.Store(c.id, c)
	return c
}

// Unregister removes c and closes its Done channel. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.clients.Delete(c.id)
	c.once.Do(func() { close(c.done) })
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	return h.clients.Size()
}

// Publish implements Sink: the payload is encoded once and queued for every client.
func (h *Hub) Publish(kind string, payload any) {
	if h.clients.Size() == 0 {
		return
	}
	frame, err := json.Marshal(payload)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_encode_failed", "kind", kind, "err", err)
		}
		return
	}
	h.clients.Range(func(_ uint64, c *Client) bool {
		if !c.Enqueue(frame) && h.log != nil {
			h.log.Warnw("ws_client_lagging", "client", c.id, "kind", kind, "dropped", c.Dropped())
		}
		return true
	})
}
