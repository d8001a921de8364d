// Package listing filters the live meeting list by a search term.
package listing

import (
	"context"
	"strings"
	"sync"

	"github.com/hpungsan/acta/internal/meeting"
	"github.com/hpungsan/acta/internal/store"
)

// Matches reports whether m matches query: a case-insensitive substring of
// the title or of any tag. The query is used as typed, surrounding spaces
// included. An empty query matches everything.
func Matches(m *meeting.Meeting, query string) bool {
	q := strings.ToLower(query)
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(m.Title), q) {
		return true
	}
	for _, tag := range m.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// Filter returns the meetings matching query, keeping input order.
func Filter(meetings []meeting.Meeting, query string) []meeting.Meeting {
	out := make([]meeting.Meeting, 0, len(meetings))
	for i := range meetings {
		if Matches(&meetings[i], query) {
			out = append(out, meetings[i])
		}
	}
	return out
}

// Cards projects meetings to dashboard cards.
func Cards(meetings []meeting.Meeting) []meeting.Card {
	cards := make([]meeting.Card, 0, len(meetings))
	for i := range meetings {
		cards = append(cards, meetings[i].ToCard())
	}
	return cards
}

// Snapshot is one computed result of the view.
type Snapshot struct {
	Query    string
	Total    int
	Meetings []meeting.Meeting
}

// Source provides the live meeting list.
type Source interface {
	WatchMeetings(ctx context.Context) *store.Live[[]meeting.Meeting]
}

// View keeps the filtered list current. It recomputes when the query
// changes and when the store reports a change. The query is not persisted.
type View struct {
	live    *store.Live[[]meeting.Meeting]
	results chan Snapshot
	queries chan string
	done    chan struct{}
	cancel  context.CancelFunc

	mu      sync.Mutex
	current Snapshot
}

// NewView subscribes to src and starts computing snapshots.
func NewView(ctx context.Context, src Source) *View {
	ctx, cancel := context.WithCancel(ctx)
	v := &View{
		live:    src.WatchMeetings(ctx),
		results: make(chan Snapshot, 1),
		queries: make(chan string),
		done:    make(chan struct{}),
		cancel:  cancel,
	}
	go v.loop(ctx)
	return v
}

func (v *View) loop(ctx context.Context) {
	defer close(v.done)
	defer close(v.results)

	var (
		all    []meeting.Meeting
		query  string
		loaded bool
	)
	for {
		select {
		case <-ctx.Done():
			return
		case q := <-v.queries:
			query = q
		case ms, ok := <-v.live.Updates():
			if !ok {
				return
			}
			all = ms
			loaded = true
		}
		if !loaded {
			continue
		}
		v.publish(Snapshot{Query: query, Total: len(all), Meetings: Filter(all, query)})
	}
}

// publish stores snap as current and replaces any undelivered snapshot.
func (v *View) publish(snap Snapshot) {
	v.mu.Lock()
	v.current = snap
	v.mu.Unlock()

	for {
		select {
		case v.results <- snap:
			return
		default:
		}
		select {
		case <-v.results:
		default:
		}
	}
}

// SetQuery changes the search term. It is a no-op after Close.
func (v *View) SetQuery(q string) {
	select {
	case v.queries <- q:
	case <-v.done:
	}
}

// Results delivers snapshots, newest only.
func (v *View) Results() <-chan Snapshot {
	return v.results
}

// Current returns the latest computed snapshot.
func (v *View) Current() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Close stops the view and its store subscription.
func (v *View) Close() {
	v.cancel()
	<-v.done
	v.live.Close()
}
