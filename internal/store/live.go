package store

import (
	"context"
	"log/slog"
)

// Live is a reactive query. It delivers the query result once on start and
// again after every matching committed change. Only the newest undelivered
// snapshot is kept: a reader that falls behind skips intermediate states.
type Live[T any] struct {
	updates chan T
	cancel  context.CancelFunc
	done    chan struct{}
}

func newLive[T any](ctx context.Context, h *hub, logger *slog.Logger, name string, match func(Change) bool, query func(context.Context) (T, error)) *Live[T] {
	ctx, cancel := context.WithCancel(ctx)
	l := &Live[T]{
		updates: make(chan T, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	// Subscribe before the first query so no commit can slip between them.
	subID, signal := h.subscribe(match)

	go func() {
		defer close(l.done)
		defer close(l.updates)
		defer h.unsubscribe(subID)

		l.refresh(ctx, logger, name, query)
		for {
			select {
			case <-ctx.Done():
				return
			case <-signal:
				l.refresh(ctx, logger, name, query)
			}
		}
	}()

	return l
}

// Updates returns the snapshot channel. It is closed after Close or when the
// context passed to the Watch call is done.
func (l *Live[T]) Updates() <-chan T {
	return l.updates
}

// Close stops the subscription and waits for its goroutine to exit.
func (l *Live[T]) Close() {
	l.cancel()
	<-l.done
}

func (l *Live[T]) refresh(ctx context.Context, logger *slog.Logger, name string, query func(context.Context) (T, error)) {
	v, err := query(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("live query failed", "query", name, "error", err)
		}
		return
	}
	l.deliver(v)
}

// deliver replaces any pending snapshot with v.
func (l *Live[T]) deliver(v T) {
	for {
		select {
		case l.updates <- v:
			return
		default:
		}
		select {
		case <-l.updates:
		default:
		}
	}
}
