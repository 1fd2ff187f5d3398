package ws

import (
	"encoding/json"
	"log"
)

// HandlerFunc processes one inbound frame's data for a (namespace, event)
// pair. Replies, if any, are sent explicitly through the connection.
type HandlerFunc func(conn Conn, data json.RawMessage)

// DisconnectFunc is notified when a connection goes away
type DisconnectFunc func(conn Conn)

type route struct {
	namespace string
	event     string
}

// Dispatcher routes inbound envelopes to the handler registered for their
// (namespace, event) pair. The routing table is built once at startup;
// malformed or unmatched frames are dropped without a reply.
type Dispatcher struct {
	routes       map[route]HandlerFunc
	onDisconnect []DisconnectFunc
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		routes: make(map[route]HandlerFunc),
	}
}

// Register binds a handler to a (namespace, event) pair. Called once per
// route during startup, before any connection is accepted.
func (d *Dispatcher) Register(namespace, event string, handler HandlerFunc) {
	d.routes[route{namespace: namespace, event: event}] = handler
}

// OnDisconnect adds a hook invoked for every dropped connection
func (d *Dispatcher) OnDisconnect(fn DisconnectFunc) {
	d.onDisconnect = append(d.onDisconnect, fn)
}

// Dispatch parses a raw frame and invokes the matching handler.
// Garbage input is silently discarded: a socket handler has no implicit
// error-reply path, and answering unparseable frames is not part of the
// protocol.
func (d *Dispatcher) Dispatch(conn Conn, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("ws: dropping malformed frame: %v", err)
		return
	}

	handler, ok := d.routes[route{namespace: env.Namespace, event: env.Event}]
	if !ok {
		log.Printf("ws: no handler for %s/%s, frame dropped", env.Namespace, env.Event)
		return
	}

	handler(conn, env.Data)
}

// Disconnect fans the disconnect out to every registered hook
func (d *Dispatcher) Disconnect(conn Conn) {
	for _, fn := range d.onDisconnect {
		fn(conn)
	}
}
