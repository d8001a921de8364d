// Package session owns the editable view of one meeting: local edits apply
// immediately and are persisted in issue order by a background worker, and
// minutes generation runs as an asynchronous task guarded against stale
// results.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hpungsan/acta/internal/ai"
	"github.com/hpungsan/acta/internal/errors"
	"github.com/hpungsan/acta/internal/meeting"
)

// State is the controller lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateGenerating
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateGenerating:
		return "generating"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// View is the pane shown for the meeting body.
type View string

const (
	ViewNotes   View = "notes"
	ViewMinutes View = "minutes"
)

// DefaultGenerateTimeout bounds one generation request.
const DefaultGenerateTimeout = 120 * time.Second

const noticeBuffer = 16

// Store is the subset of the record store the controller needs.
type Store interface {
	CreateMeeting(ctx context.Context, d meeting.Draft) (*meeting.Meeting, error)
	GetMeeting(ctx context.Context, id int64) (*meeting.Meeting, error)
	UpdateMeeting(ctx context.Context, id int64, p meeting.Patch) (*meeting.Meeting, error)
	AddImage(ctx context.Context, in meeting.NewImage) (*meeting.Image, error)
	ListImagesForMeeting(ctx context.Context, meetingID int64) ([]meeting.Image, error)
	DeleteImage(ctx context.Context, id int64) error
}

// Controller is safe for concurrent use.
type Controller struct {
	store   Store
	gen     ai.Generator
	logger  *slog.Logger
	timeout time.Duration

	mu        sync.Mutex
	state     State
	epoch     uint64
	current   meeting.Meeting
	view      View
	task      *Task
	cancelGen context.CancelFunc

	queue   *writeQueue
	notices chan Notice
	wg      sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithGenerateTimeout sets the per-generation timeout. Non-positive values
// keep the default.
func WithGenerateTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New returns a controller in the Uninitialized state and starts its
// persistence worker. Call Close to stop it.
func New(store Store, gen ai.Generator, opts ...Option) *Controller {
	c := &Controller{
		store:   store,
		gen:     gen,
		logger:  slog.Default(),
		timeout: DefaultGenerateTimeout,
		view:    ViewNotes,
		queue:   newWriteQueue(),
		notices: make(chan Notice, noticeBuffer),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.queue.run(c.persist)
	return c
}

// Create stores a new empty meeting and makes it current. The returned id
// is the meeting's addressable location.
func (c *Controller) Create(ctx context.Context) (int64, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	if err := c.Flush(ctx); err != nil {
		return 0, err
	}
	m, err := c.store.CreateMeeting(ctx, meeting.Draft{})
	if err != nil {
		return 0, err
	}
	c.load(m)
	c.logger.Info("meeting created", "meeting_id", m.ID)
	return m.ID, nil
}

// Open loads an existing meeting and makes it current. Pending writes are
// flushed first so the loaded state includes them.
func (c *Controller) Open(ctx context.Context, id int64) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := c.Flush(ctx); err != nil {
		return err
	}
	m, err := c.store.GetMeeting(ctx, id)
	if err != nil {
		return err
	}
	c.load(m)
	return nil
}

func (c *Controller) load(m *meeting.Meeting) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.abandonGenerationLocked()
	c.epoch++
	c.current = m.Clone()
	if c.current.Tags == nil {
		c.current.Tags = []string{}
	}
	c.view = ViewNotes
	c.state = StateReady
}

// Close cancels any in-flight generation, persists queued writes and stops
// the worker. The notices channel is closed afterwards. Closed is terminal.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.abandonGenerationLocked()
	c.epoch++
	c.state = StateClosed
	id := c.current.ID
	c.mu.Unlock()

	if n := c.Pending(); n > 0 {
		c.logger.Debug("persisting queued writes before close", "meeting_id", id, "pending", n)
	}
	c.queue.close()
	c.wg.Wait()
	close(c.notices)
}

// abandonGenerationLocked cancels the running generation. Its result, if it
// still arrives, fails the epoch check and is discarded.
func (c *Controller) abandonGenerationLocked() {
	if c.cancelGen != nil {
		c.cancelGen()
		c.cancelGen = nil
	}
	c.task = nil
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// MeetingID returns the current meeting id, or 0 before Open/Create.
func (c *Controller) MeetingID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.ID
}

// Snapshot returns a copy of the local meeting state.
func (c *Controller) Snapshot() meeting.Meeting {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Clone()
}

// View returns the active pane.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// SetView switches the active pane. Not persisted.
func (c *Controller) SetView(v View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view = v
}

// Task returns the in-flight generation task, or nil.
func (c *Controller) Task() *Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.task
}

// Notices delivers asynchronous failures. Notices are dropped (and logged)
// when nobody drains the channel.
func (c *Controller) Notices() <-chan Notice {
	return c.notices
}

// SetTitle replaces the title.
func (c *Controller) SetTitle(title string) error {
	return c.edit(func(m *meeting.Meeting) (meeting.Patch, bool) {
		m.Title = title
		return meeting.Patch{Title: &title}, true
	})
}

// SetNotes replaces the notes.
func (c *Controller) SetNotes(notes string) error {
	return c.edit(func(m *meeting.Meeting) (meeting.Patch, bool) {
		m.Notes = notes
		return meeting.Patch{Notes: &notes}, true
	})
}

// SetMinutes replaces the minutes.
func (c *Controller) SetMinutes(minutes string) error {
	return c.edit(func(m *meeting.Meeting) (meeting.Patch, bool) {
		m.Minutes = &minutes
		return meeting.Patch{Minutes: &minutes}, true
	})
}

// SetTags replaces the tag list. Tags are trimmed and de-duplicated.
func (c *Controller) SetTags(tags []string) error {
	return c.edit(func(m *meeting.Meeting) (meeting.Patch, bool) {
		normalized := meeting.NormalizeTags(tags)
		m.Tags = normalized
		persisted := append([]string(nil), normalized...)
		return meeting.Patch{Tags: &persisted}, true
	})
}

// Update applies every set field of p as one write. Tags are normalized.
func (c *Controller) Update(p meeting.Patch) error {
	return c.edit(func(m *meeting.Meeting) (meeting.Patch, bool) {
		if p.IsEmpty() {
			return meeting.Patch{}, false
		}
		if p.Title != nil {
			m.Title = *p.Title
		}
		if p.Notes != nil {
			m.Notes = *p.Notes
		}
		if p.Minutes != nil {
			minutes := *p.Minutes
			m.Minutes = &minutes
		}
		if p.Tags != nil {
			normalized := meeting.NormalizeTags(*p.Tags)
			m.Tags = normalized
			persisted := append([]string(nil), normalized...)
			p.Tags = &persisted
		}
		return p, true
	})
}

// AddTag appends a trimmed tag. Empty and duplicate tags are ignored and
// report false.
func (c *Controller) AddTag(tag string) (bool, error) {
	var added bool
	err := c.edit(func(m *meeting.Meeting) (meeting.Patch, bool) {
		var tags []string
		tags, added = meeting.AddTag(m.Tags, tag)
		if !added {
			return meeting.Patch{}, false
		}
		m.Tags = tags
		persisted := append([]string(nil), tags...)
		return meeting.Patch{Tags: &persisted}, true
	})
	return added, err
}

// RemoveTag removes the first exact match. Absent tags report false.
func (c *Controller) RemoveTag(tag string) (bool, error) {
	var removed bool
	err := c.edit(func(m *meeting.Meeting) (meeting.Patch, bool) {
		var tags []string
		tags, removed = meeting.RemoveTag(m.Tags, tag)
		if !removed {
			return meeting.Patch{}, false
		}
		m.Tags = tags
		persisted := append([]string(nil), tags...)
		return meeting.Patch{Tags: &persisted}, true
	})
	return removed, err
}

// edit applies fn to the local meeting and queues the resulting patch.
// Edits are accepted while a generation runs.
func (c *Controller) edit(fn func(m *meeting.Meeting) (meeting.Patch, bool)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(); err != nil {
		return err
	}
	patch, changed := fn(&c.current)
	if !changed {
		return nil
	}
	c.enqueueLocked(patch)
	return nil
}

func (c *Controller) editableLocked() error {
	if c.state != StateReady && c.state != StateGenerating {
		return errors.NewSessionNotReady(c.state.String())
	}
	return nil
}

func (c *Controller) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return errors.NewSessionNotReady(c.state.String())
	}
	return nil
}

// enqueueLocked queues a patch for the current meeting. Holding c.mu while
// pushing keeps queue order equal to edit order.
func (c *Controller) enqueueLocked(p meeting.Patch) <-chan error {
	done := make(chan error, 1)
	if !c.queue.push(write{meetingID: c.current.ID, patch: p, done: done}) {
		done <- errors.NewSessionNotReady(StateClosed.String())
	}
	return done
}

// persist runs on the worker goroutine.
func (c *Controller) persist(w write) {
	if w.barrier {
		w.done <- nil
		return
	}
	_, err := c.store.UpdateMeeting(context.Background(), w.meetingID, w.patch)
	if err != nil {
		c.logger.Error("autosave failed", "meeting_id", w.meetingID, "fields", w.patch.Fields(), "error", err)
		c.notify(Notice{
			Kind:      NoticeAutosaveFailed,
			MeetingID: w.meetingID,
			Message:   Describe(err),
			Err:       err,
		})
	} else {
		c.logger.Debug("autosaved", "meeting_id", w.meetingID, "fields", w.patch.Fields())
	}
	w.done <- err
}

// Flush waits until every write issued before the call has been applied.
// It does not report earlier write failures; those arrive as notices.
func (c *Controller) Flush(ctx context.Context) error {
	done := make(chan error, 1)
	if !c.queue.push(write{barrier: true, done: done}) {
		// Closed: the worker drained everything before exiting.
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.NewCancelled("flush")
	}
}

// Pending returns the number of queued writes.
func (c *Controller) Pending() int {
	return c.queue.len()
}

// AddImage attaches an image to the current meeting.
func (c *Controller) AddImage(ctx context.Context, data []byte, mimeType, name string) (*meeting.Image, error) {
	id, err := c.persistedID()
	if err != nil {
		return nil, err
	}
	img, err := c.store.AddImage(ctx, meeting.NewImage{MeetingID: id, Blob: data, MimeType: mimeType, Name: name})
	if err != nil {
		return nil, err
	}
	c.logger.Debug("image attached", "meeting_id", id, "image_id", img.ID, "mime_type", mimeType, "bytes", len(data))
	return img, nil
}

// RemoveImage deletes an image. Missing ids are not an error.
func (c *Controller) RemoveImage(ctx context.Context, imageID int64) error {
	if _, err := c.persistedID(); err != nil {
		return err
	}
	return c.store.DeleteImage(ctx, imageID)
}

// Images lists the current meeting's images, oldest first.
func (c *Controller) Images(ctx context.Context) ([]meeting.Image, error) {
	id, err := c.persistedID()
	if err != nil {
		return nil, err
	}
	return c.store.ListImagesForMeeting(ctx, id)
}

func (c *Controller) persistedID() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editableLocked(); err != nil {
		return 0, err
	}
	return c.current.ID, nil
}

// Generate starts minutes generation from the current notes and images.
// Allowed only from Ready with non-blank notes. The returned task settles
// when the result has been applied and persisted, discarded as stale, or
// the request failed. ctx values are kept but its cancellation is not: the
// task outlives the call and is stopped by Open, Create or Close.
func (c *Controller) Generate(ctx context.Context) (*Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateReady:
	case StateGenerating:
		return nil, errors.NewGenerationRunning(c.current.ID)
	default:
		return nil, errors.NewSessionNotReady(c.state.String())
	}
	if strings.TrimSpace(c.current.Notes) == "" {
		return nil, errors.NewInvalidRequest("notes are empty")
	}

	task := newTask(c.current.ID)
	genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)

	c.state = StateGenerating
	c.task = task
	c.cancelGen = cancel

	c.wg.Add(1)
	go c.runGeneration(genCtx, cancel, task, c.epoch, c.current.ID, c.current.Notes)

	c.logger.Info("minutes generation started", "meeting_id", task.MeetingID, "task_id", task.ID)
	return task, nil
}

func (c *Controller) runGeneration(ctx context.Context, cancel context.CancelFunc, task *Task, epoch uint64, meetingID int64, notes string) {
	defer c.wg.Done()
	defer cancel()

	images, err := c.store.ListImagesForMeeting(ctx, meetingID)
	var res *ai.Result
	if err == nil {
		res, err = c.gen.GenerateMinutes(ctx, notes, images)
	}

	c.mu.Lock()
	stale := c.epoch != epoch || c.current.ID != meetingID
	if !stale {
		c.state = StateReady
		c.task = nil
		c.cancelGen = nil
	}

	if err != nil {
		c.mu.Unlock()
		if stale {
			c.logger.Info("stale generation ended", "meeting_id", meetingID, "task_id", task.ID, "error", err)
		} else {
			c.logger.Warn("minutes generation failed", "meeting_id", meetingID, "task_id", task.ID, "error", err)
			c.notify(Notice{
				Kind:      NoticeGenerationFailed,
				MeetingID: meetingID,
				Message:   Describe(err),
				Err:       err,
			})
		}
		task.reject(err)
		return
	}

	if stale {
		c.mu.Unlock()
		c.logger.Info("discarding stale generation result", "meeting_id", meetingID, "task_id", task.ID)
		task.fulfill(res, false)
		return
	}

	minutes := res.Minutes
	tags := meeting.NormalizeTags(res.Tags)
	c.current.Minutes = &minutes
	c.current.Tags = tags
	c.view = ViewMinutes
	persisted := append([]string(nil), tags...)
	done := c.enqueueLocked(meeting.Patch{Minutes: &minutes, Tags: &persisted})
	c.mu.Unlock()

	if err := <-done; err != nil {
		task.reject(err)
		return
	}
	c.logger.Info("minutes generated", "meeting_id", meetingID, "task_id", task.ID, "tags", len(tags), "images", len(images))
	task.fulfill(&ai.Result{Minutes: minutes, Tags: tags}, true)
}

func (c *Controller) notify(n Notice) {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	select {
	case c.notices <- n:
	default:
		c.logger.Warn("notice dropped", "kind", n.Kind, "meeting_id", n.MeetingID)
	}
}
