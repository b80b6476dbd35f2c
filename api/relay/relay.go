// Package relay is the per-session broadcast channel behind the real-time
// sync features: every device subscribed to a session sees the same
// play/pause/seek and quiz events. The hub only fans out the last message
// to the room; ordering, reconciliation and session validation live with
// the callers.
package relay

import (
	"sync"
	"time"
)

// Event types carried by the hub.
const (
	TypeAudioControl = "audio_control"
	TypeQuizQuestion = "quiz_question"
	TypeQuizAnswer   = "quiz_answer"
	TypeConnected    = "connection_established"
)

// Audio control actions.
const (
	ActionPlay  = "play"
	ActionPause = "pause"
	ActionSeek  = "seek"
)

// Event is one message broadcast to a session's devices.
type Event struct {
	Type      string         `json:"type"`
	Action    string         `json:"action,omitempty"`
	Position  int            `json:"position,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

const subscriberBuffer = 16

type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers a listener on a session and returns its event channel
// plus a cancel func. Cancel is idempotent and closes the channel.
func (h *Hub) Subscribe(sessionID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[chan Event]struct{})
	}
	h.subs[sessionID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[sessionID], ch)
			if len(h.subs[sessionID]) == 0 {
				delete(h.subs, sessionID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish fans the event out to every subscriber of the session and returns
// how many received it. Subscribers with a full buffer are skipped, the way
// the source dropped dead connections: a stale reader never blocks the room.
func (h *Hub) Publish(sessionID string, ev Event) int {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for ch := range h.subs[sessionID] {
		select {
		case ch <- ev:
			delivered++
		default:
		}
	}
	return delivered
}

// ConnectionCount reports the subscribers on one session, or on all
// sessions when sessionID is empty.
func (h *Hub) ConnectionCount(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sessionID != "" {
		return len(h.subs[sessionID])
	}
	total := 0
	for _, conns := range h.subs {
		total += len(conns)
	}
	return total
}
