package ws

import "sync"

// Registry is a concurrency-safe map from a live connection to its
// subscription payload. Each gateway owns exactly one instance, created at
// startup and injected through its constructor; entries are removed one by
// one on unsubscribe or disconnect, never bulk-cleared.
type Registry[V any] struct {
	mu      sync.RWMutex
	entries map[Conn]V
}

// NewRegistry creates an empty registry
func NewRegistry[V any]() *Registry[V] {
	return &Registry[V]{
		entries: make(map[Conn]V),
	}
}

// Set stores the value for the connection, replacing any existing entry.
// Entries for already-closed connections are refused so a disconnect racing
// a slow subscribe cannot leave a zombie entry behind.
func (r *Registry[V]) Set(conn Conn, value V) bool {
	if conn.Closed() {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if conn.Closed() {
		return false
	}
	r.entries[conn] = value
	return true
}

// Get returns the value registered for the connection
func (r *Registry[V]) Get(conn Conn) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	value, ok := r.entries[conn]
	return value, ok
}

// Remove deletes the entry for the connection, if any
func (r *Registry[V]) Remove(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, conn)
}

// Find returns a snapshot of all entries matching the predicate. The
// snapshot is taken under the lock so no entry is observed half-written.
func (r *Registry[V]) Find(predicate func(value V) bool) []RegistryEntry[V] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []RegistryEntry[V]
	for conn, value := range r.entries {
		if predicate(value) {
			matches = append(matches, RegistryEntry[V]{Conn: conn, Value: value})
		}
	}
	return matches
}

// Len returns the number of registered connections
func (r *Registry[V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// RegistryEntry pairs a connection with its registered value
type RegistryEntry[V any] struct {
	Conn  Conn
	Value V
}
