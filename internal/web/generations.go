package web

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hpungsan/acta/internal/ai"
	"github.com/hpungsan/acta/internal/errors"
	"github.com/hpungsan/acta/internal/session"
	"github.com/hpungsan/acta/internal/store"
)

// generations runs minutes generation in the background, one session
// controller per meeting, so a page can return while Gemini works. The last
// failure per meeting is kept for the detail page.
type generations struct {
	st      *store.Store
	gen     ai.Generator
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	running map[int64]*session.Controller
	failed  map[int64]string
	wg      sync.WaitGroup
}

func newGenerations(st *store.Store, gen ai.Generator, timeout time.Duration, logger *slog.Logger) *generations {
	return &generations{
		st:      st,
		gen:     gen,
		timeout: timeout,
		logger:  logger,
		running: make(map[int64]*session.Controller),
		failed:  make(map[int64]string),
	}
}

// start opens the meeting in a fresh controller and kicks off generation.
// It returns the task id.
func (g *generations) start(ctx context.Context, meetingID int64) (string, error) {
	if g.gen == nil {
		return "", errors.NewConfiguration("minutes generation is not configured")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.running[meetingID]; ok {
		return "", errors.NewGenerationRunning(meetingID)
	}

	ctrl := session.New(g.st, g.gen, session.WithLogger(g.logger), session.WithGenerateTimeout(g.timeout))
	if err := ctrl.Open(ctx, meetingID); err != nil {
		ctrl.Close()
		return "", err
	}
	task, err := ctrl.Generate(ctx)
	if err != nil {
		ctrl.Close()
		return "", err
	}

	g.running[meetingID] = ctrl
	delete(g.failed, meetingID)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		<-task.Done()
		ctrl.Close()

		var failure string
		for n := range ctrl.Notices() {
			if n.Kind == session.NoticeGenerationFailed {
				failure = n.Message
			}
		}
		if failure == "" && task.Err() != nil {
			failure = session.Describe(task.Err())
		}

		g.mu.Lock()
		delete(g.running, meetingID)
		if failure != "" {
			g.failed[meetingID] = failure
		}
		g.mu.Unlock()
	}()

	return task.ID, nil
}

// status reports whether a generation is in flight and the last failure.
func (g *generations) status(meetingID int64) (running bool, failure string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, running = g.running[meetingID]
	return running, g.failed[meetingID]
}

// dismiss clears the stored failure for a meeting.
func (g *generations) dismiss(meetingID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.failed, meetingID)
}

// stop abandons every in-flight generation and waits for cleanup.
func (g *generations) stop() {
	g.mu.Lock()
	ctrls := make([]*session.Controller, 0, len(g.running))
	for _, c := range g.running {
		ctrls = append(ctrls, c)
	}
	g.mu.Unlock()

	for _, c := range ctrls {
		c.Close()
	}
	g.wg.Wait()
}

// wait blocks until all started generations have finished.
func (g *generations) wait() {
	g.wg.Wait()
}
