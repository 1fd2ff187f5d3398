package ws

import (
	"encoding/json"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

var (
	// ErrClientClosed is returned when sending to a connection that has
	// already been closed. Gateways treat it as non-fatal: durable state is
	// persisted before transmitting, so the frame is replayed on reconnect.
	ErrClientClosed = errors.New("client connection is closed")

	// ErrSendBufferFull is returned when the client's outbound buffer is
	// full; the connection is dropped since the peer is not draining it
	ErrSendBufferFull = errors.New("client send buffer is full")
)

// Conn is the transport surface the gateways see: send a frame, and check
// whether the connection is already gone
type Conn interface {
	Send(env *Envelope) error
	Closed() bool
}

// Client represents a single WebSocket connection
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	closed atomic.Bool

	// ID identifies the connection itself, not the device behind it
	ID        uuid.UUID
	AccountID uuid.UUID
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, accountID uuid.UUID) *Client {
	return &Client{
		conn:      conn,
		send:      make(chan []byte, 256),
		ID:        uuid.New(),
		AccountID: accountID,
	}
}

// Send marshals the envelope and queues it for the write pump
func (c *Client) Send(env *Envelope) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	select {
	case c.send <- data:
		return nil
	default:
		// Peer is not draining its buffer; tear the connection down so
		// the read pump exits and disconnect cleanup runs
		c.teardown()
		return ErrSendBufferFull
	}
}

// teardown marks the client closed and closes the underlying connection,
// which makes both pumps exit and fires the disconnect hooks
func (c *Client) teardown() {
	c.closed.Store(true)
	if c.conn != nil {
		c.conn.Close()
	}
}

// Closed reports whether the connection has been torn down
func (c *Client) Closed() bool {
	return c.closed.Load()
}

// FrameHandler is a callback for processing incoming raw frames
type FrameHandler func(client *Client, raw []byte)

// ReadPump pumps frames from the WebSocket connection into the handler.
// Runs in a per-client goroutine. onClose fires exactly once, after the
// connection is marked closed, so registry cleanup never races a new entry.
func (c *Client) ReadPump(handler FrameHandler, onClose func(client *Client)) {
	defer func() {
		c.closed.Store(true)
		if onClose != nil {
			onClose(c)
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		if handler != nil {
			handler(c, message)
		}
	}
}

// WritePump pumps queued frames to the WebSocket connection.
// Runs in a per-client goroutine
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closed.Store(true)
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
