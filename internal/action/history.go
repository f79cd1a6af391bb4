package action

import "sync"

// DefaultHistoryLimit bounds the navigation history.
const DefaultHistoryLimit = 50

// History is a bounded stack of dashboard paths visited through navigate
// actions.
type History struct {
	mu    sync.Mutex
	limit int
	paths []string
}

// NewHistory creates a history keeping at most limit entries. A
// non-positive limit uses DefaultHistoryLimit.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// Push records path as the current location. Pushing the current path
// again is a no-op.
func (h *History) Push(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := len(h.paths); n > 0 && h.paths[n-1] == path {
		return
	}
	h.paths = append(h.paths, path)
	if len(h.paths) > h.limit {
		h.paths = h.paths[len(h.paths)-h.limit:]
	}
}

// Back pops the current location and returns the previous one.
func (h *History) Back() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.paths) < 2 {
		return "", false
	}
	h.paths = h.paths[:len(h.paths)-1]
	return h.paths[len(h.paths)-1], true
}

// Current returns the current location.
func (h *History) Current() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.paths) == 0 {
		return "", false
	}
	return h.paths[len(h.paths)-1], true
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.paths)
}
