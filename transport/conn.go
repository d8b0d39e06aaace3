package transport

import "sync"

// callbackHolder serializes delivery against (un)registration. The
// registration lock is held across the callback invocation, so set(nil)
// does not return while a delivery is in flight. Not re-entrant: a
// callback must not call set on its own connection.
type callbackHolder struct {
	mu sync.Mutex
	fn func([]byte)
}

func (h *callbackHolder) set(fn func([]byte)) {
	h.mu.Lock()
	h.fn = fn
	h.mu.Unlock()
}

func (h *callbackHolder) deliver(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fn != nil {
		h.fn(payload)
	}
}
