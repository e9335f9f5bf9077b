package events

import (
	"sync"
	"time"
)

// Event describes one interception decision made during a scrape session.
type Event struct {
	SessionID string    `json:"sessionId"`
	URL       string    `json:"url"`
	Decision  string    `json:"decision"`
	Matched   bool      `json:"matched"`
	At        time.Time `json:"at"`
}

// Hub fans out per-session events to live subscribers. Publishing never
// blocks the finder: slow subscribers drop events.
type Hub struct {
	mu       sync.RWMutex
	subs     map[string]map[chan Event]struct{}
	finished map[string]struct{}
}

// NewHub creates a new event hub
func NewHub() *Hub {
	return &Hub{
		subs:     make(map[string]map[chan Event]struct{}),
		finished: make(map[string]struct{}),
	}
}

// Subscribe registers a listener for one session's events. The returned
// cancel function must be called when the listener goes away; the channel
// is closed when the session ends or the subscription is cancelled.
// Subscribing to a session that already finished yields a closed channel,
// so a subscriber racing the session's end never waits on a feed that
// nothing will publish to.
func (h *Hub) Subscribe(sessionID string) (<-chan Event, func()) {
	ch := make(chan Event, 64)

	h.mu.Lock()
	if _, done := h.finished[sessionID]; done {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[chan Event]struct{})
		h.subs[sessionID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		set, ok := h.subs[sessionID]
		if !ok {
			return
		}
		if _, live := set[ch]; live {
			delete(set, ch)
			close(ch)
		}
		if len(set) == 0 {
			delete(h.subs, sessionID)
		}
	}

	return ch, cancel
}

// Publish delivers an event to every subscriber of its session.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[ev.SessionID] {
		select {
		case ch <- ev:
		default:
			// subscriber is not keeping up
		}
	}
}

// CloseSession closes all subscriber channels for a finished session and
// marks the session so late subscribers are turned away.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.finished[sessionID] = struct{}{}

	set, ok := h.subs[sessionID]
	if !ok {
		return
	}
	for ch := range set {
		close(ch)
	}
	delete(h.subs, sessionID)
}
