package store

import "sync"

// Entity names the table a change touched.
type Entity string

const (
	EntityMeeting Entity = "meeting"
	EntityImage   Entity = "image"
)

// Op names the kind of write.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change describes one committed write. MeetingID is the owning meeting for
// image changes and equals ID for meeting changes.
type Change struct {
	Entity    Entity `json:"entity"`
	Op        Op     `json:"op"`
	ID        int64  `json:"id"`
	MeetingID int64  `json:"meeting_id"`
}

// hub fans committed changes out to subscribers. Each subscriber has a
// one-slot signal channel; a pending signal absorbs later ones, so a slow
// subscriber re-queries once and sees the newest state.
type hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscription
}

type subscription struct {
	match  func(Change) bool
	signal chan struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[int]*subscription)}
}

func (h *hub) subscribe(match func(Change) bool) (int, <-chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &subscription{match: match, signal: make(chan struct{}, 1)}
	h.subs[h.nextID] = sub
	return h.nextID, sub.signal
}

func (h *hub) unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

func (h *hub) publish(c Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		if sub.match != nil && !sub.match(c) {
			continue
		}
		select {
		case sub.signal <- struct{}{}:
		default:
		}
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
