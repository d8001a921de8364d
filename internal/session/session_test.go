package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/acta/internal/ai"
	"github.com/hpungsan/acta/internal/db"
	"github.com/hpungsan/acta/internal/errors"
	"github.com/hpungsan/acta/internal/meeting"
	"github.com/hpungsan/acta/internal/store"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

// newWallClockStore uses time.Now, so timestamps carry the system clock's
// full precision.
func newWallClockStore(t *testing.T) *store.Store {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return store.New(database)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	clock := &testClock{t: time.UnixMilli(1_700_000_000_000)}
	return store.New(database, store.WithClock(clock.Now))
}

// fakeGenerator records its inputs and answers with a canned result.
type fakeGenerator struct {
	mu     sync.Mutex
	calls  int
	notes  []string
	images [][]meeting.Image

	result *ai.Result
	err    error

	// block, when set, holds the call until closed (context is ignored).
	block chan struct{}
	// honorCtx makes the call return ctx.Err() if ctx ends first.
	honorCtx bool
}

func (f *fakeGenerator) GenerateMinutes(ctx context.Context, notes string, images []meeting.Image) (*ai.Result, error) {
	f.mu.Lock()
	f.calls++
	f.notes = append(f.notes, notes)
	f.images = append(f.images, images)
	block, honor := f.block, f.honorCtx
	f.mu.Unlock()

	if block != nil {
		if honor {
			select {
			case <-block:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		} else {
			<-block
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	return &res, nil
}

// waitCalls blocks until the generator has been entered n times.
func (f *fakeGenerator) waitCalls(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.calls >= n
	}, 2*time.Second, 5*time.Millisecond)
}

func newController(t *testing.T, st Store, gen ai.Generator, opts ...Option) *Controller {
	t.Helper()
	c := New(st, gen, opts...)
	t.Cleanup(c.Close)
	return c
}

func waitTask(t *testing.T, task *Task) (*ai.Result, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return task.Wait(ctx)
}

func nextNotice(t *testing.T, c *Controller) Notice {
	t.Helper()
	select {
	case n := <-c.Notices():
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("no notice delivered")
		return Notice{}
	}
}

func TestCreate(t *testing.T) {
	st := newTestStore(t)
	c := newController(t, st, &fakeGenerator{})
	ctx := context.Background()

	assert.Equal(t, StateUninitialized, c.State())

	id, err := c.Create(ctx)
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.Equal(t, StateReady, c.State())
	assert.Equal(t, id, c.MeetingID())

	stored, err := st.GetMeeting(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "", stored.Title)
	assert.Equal(t, "", stored.Notes)
	assert.Nil(t, stored.Minutes)
	assert.Empty(t, stored.Tags)
	assert.Equal(t, stored.CreatedAt.UnixMilli(), stored.Date.UnixMilli())
}

func TestOpen_NotFound(t *testing.T) {
	c := newController(t, newTestStore(t), &fakeGenerator{})

	err := c.Open(context.Background(), 404)
	assert.True(t, errors.Is(err, errors.ErrNotFound), "got %v", err)
	assert.Equal(t, StateUninitialized, c.State())
}

func TestEdits_RequireOpenMeeting(t *testing.T) {
	c := newController(t, newTestStore(t), &fakeGenerator{})

	err := c.SetNotes("x")
	assert.True(t, errors.Is(err, errors.ErrSessionNotReady), "got %v", err)

	_, err = c.AddTag("x")
	assert.True(t, errors.Is(err, errors.ErrSessionNotReady))

	_, err = c.AddImage(context.Background(), []byte("x"), "image/png", "a.png")
	assert.True(t, errors.Is(err, errors.ErrSessionNotReady))

	_, err = c.Generate(context.Background())
	assert.True(t, errors.Is(err, errors.ErrSessionNotReady))
}

func TestSetFields_PersistOnFlush(t *testing.T) {
	st := newTestStore(t)
	c := newController(t, st, &fakeGenerator{})
	ctx := context.Background()

	id, err := c.Create(ctx)
	require.NoError(t, err)
	before, err := st.GetMeeting(ctx, id)
	require.NoError(t, err)

	require.NoError(t, c.SetTitle("Planning"))
	require.NoError(t, c.SetNotes("- budget"))
	require.NoError(t, c.SetMinutes("hand written"))

	// Local state is immediate.
	snap := c.Snapshot()
	assert.Equal(t, "Planning", snap.Title)
	assert.Equal(t, "- budget", snap.Notes)

	require.NoError(t, c.Flush(ctx))
	assert.Equal(t, 0, c.Pending())

	after, err := st.GetMeeting(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Planning", after.Title)
	assert.Equal(t, "- budget", after.Notes)
	assert.Equal(t, "hand written", after.MinutesText())
	assert.Greater(t, after.UpdatedAt.UnixMilli(), before.UpdatedAt.UnixMilli())
}

func TestEdits_StoredNoEarlierThanIssued(t *testing.T) {
	st := newWallClockStore(t)
	c := newController(t, st, &fakeGenerator{})
	ctx := context.Background()

	id, err := c.Create(ctx)
	require.NoError(t, err)
	created, err := st.GetMeeting(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	prev := created.UpdatedAt
	for i := 0; i < 50; i++ {
		issued := time.Now()
		require.NoError(t, c.SetNotes(fmt.Sprintf("edit %d", i)))
		require.NoError(t, c.Flush(ctx))

		stored, err := st.GetMeeting(ctx, id)
		require.NoError(t, err)
		require.False(t, stored.UpdatedAt.Before(issued), "edit %d: updatedAt %v before issue time %v", i, stored.UpdatedAt, issued)
		require.True(t, stored.UpdatedAt.After(prev), "edit %d: updatedAt did not advance", i)
		prev = stored.UpdatedAt
	}
}

func TestGenerate_AdvancesUpdatedAtWithWallClock(t *testing.T) {
	st := newWallClockStore(t)
	gen := &fakeGenerator{result: &ai.Result{Minutes: "# Minutes"}}
	c := newController(t, st, gen)
	ctx := context.Background()

	id, err := c.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, c.SetNotes("- notes"))
	require.NoError(t, c.Flush(ctx))
	before, err := st.GetMeeting(ctx, id)
	require.NoError(t, err)

	task, err := c.Generate(ctx)
	require.NoError(t, err)
	_, err = waitTask(t, task)
	require.NoError(t, err)

	after, err := st.GetMeeting(ctx, id)
	require.NoError(t, err)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt), "updatedAt %v not after %v", after.UpdatedAt, before.UpdatedAt)
}

func TestUpdate_AppliesPatchAsOneWrite(t *testing.T) {
	st := newTestStore(t)
	c := newController(t, st, &fakeGenerator{})
	ctx := context.Background()

	id, err := c.Create(ctx)
	require.NoError(t, err)

	tags := []string{" b", "b", "a"}
	require.NoError(t, c.Update(meeting.Patch{Title: stringPtr("Retro"), Minutes: stringPtr("m"), Tags: &tags}))
	snap := c.Snapshot()
	assert.Equal(t, "Retro", snap.Title)
	assert.Equal(t, "m", snap.MinutesText())
	assert.Equal(t, []string{"b", "a"}, snap.Tags)

	require.NoError(t, c.Update(meeting.Patch{}), "empty patch is a no-op")
	require.NoError(t, c.Flush(ctx))

	stored, err := st.GetMeeting(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Retro", stored.Title)
	assert.Equal(t, []string{"b", "a"}, stored.Tags)
}

func TestWrites_AppliedInIssueOrder(t *testing.T) {
	st := newTestStore(t)
	c := newController(t, st, &fakeGenerator{})
	ctx := context.Background()

	id, err := c.Create(ctx)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		require.NoError(t, c.SetNotes(fmt.Sprintf("draft %d", i)))
	}
	require.NoError(t, c.Flush(ctx))

	stored, err := st.GetMeeting(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "draft 49", stored.Notes)
}

func TestTags(t *testing.T) {
	st := newTestStore(t)
	c := newController(t, st, &fakeGenerator{})
	ctx := context.Background()

	id, err := c.Create(ctx)
	require.NoError(t, err)

	added, err := c.AddTag("  design ")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = c.AddTag("design")
	require.NoError(t, err)
	assert.False(t, added, "exact duplicate rejected")

	added, err = c.AddTag("   ")
	require.NoError(t, err)
	assert.False(t, added, "empty rejected")

	added, err = c.AddTag("Design")
	require.NoError(t, err)
	assert.True(t, added, "case-sensitive")

	removed, err := c.RemoveTag("nope")
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, c.Flush(ctx))
	stored, err := st.GetMeeting(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"design", "Design"}, stored.Tags)

	removed, err = c.RemoveTag("design")
	require.NoError(t, err)
	assert.True(t, removed)
	require.NoError(t, c.Flush(ctx))

	stored, err = st.GetMeeting(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"Design"}, stored.Tags)

	tagged, err := st.ListMeetingsByTag(ctx, "Design")
	require.NoError(t, err)
	assert.Len(t, tagged, 1)
}

func TestTags_AddThenRemoveRestores(t *testing.T) {
	st := newTestStore(t)
	c := newController(t, st, &fakeGenerator{})
	ctx := context.Background()

	_, err := c.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, c.SetTags([]string{"a", "b"}))

	before := c.Snapshot().Tags
	_, err = c.AddTag("c")
	require.NoError(t, err)
	_, err = c.RemoveTag("c")
	require.NoError(t, err)

	assert.Equal(t, before, c.Snapshot().Tags)
}

func TestSetTags_Normalizes(t *testing.T) {
	c := newController(t, newTestStore(t), &fakeGenerator{})
	_, err := c.Create(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.SetTags([]string{" a", "a", "", "b"}))
	assert.Equal(t, []string{"a", "b"}, c.Snapshot().Tags)
}

func TestImages(t *testing.T) {
	st := newTestStore(t)
	c := newController(t, st, &fakeGenerator{})
	ctx := context.Background()

	_, err := c.Create(ctx)
	require.NoError(t, err)

	first, err := c.AddImage(ctx, []byte("one"), "image/png", "one.png")
	require.NoError(t, err)
	second, err := c.AddImage(ctx, []byte("two"), "image/jpeg", "two.jpg")
	require.NoError(t, err)

	images, err := c.Images(ctx)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, first.ID, images[0].ID)
	assert.Equal(t, second.ID, images[1].ID)

	require.NoError(t, c.RemoveImage(ctx, first.ID))
	require.NoError(t, c.RemoveImage(ctx, first.ID), "removing twice is fine")

	images, err = c.Images(ctx)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, second.ID, images[0].ID)
}

func TestGenerate_RequiresNotes(t *testing.T) {
	gen := &fakeGenerator{result: &ai.Result{Minutes: "m"}}
	c := newController(t, newTestStore(t), gen)
	ctx := context.Background()

	_, err := c.Create(ctx)
	require.NoError(t, err)

	_, err = c.Generate(ctx)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)

	require.NoError(t, c.SetNotes(" \n\t "))
	_, err = c.Generate(ctx)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "whitespace-only notes: got %v", err)

	assert.Equal(t, StateReady, c.State())
	assert.Equal(t, 0, gen.calls)
}

func TestGenerate_Success(t *testing.T) {
	st := newTestStore(t)
	gen := &fakeGenerator{result: &ai.Result{Minutes: "# Minutes", Tags: []string{"ops", "ops", " q3 "}}}
	c := newController(t, st, gen)
	ctx := context.Background()

	id, err := c.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, c.SetTags([]string{"old"}))
	require.NoError(t, c.SetNotes("- ship it"))
	img, err := c.AddImage(ctx, []byte("png"), "image/png", "board.png")
	require.NoError(t, err)
	require.NoError(t, c.Flush(ctx))
	before, err := st.GetMeeting(ctx, id)
	require.NoError(t, err)

	task, err := c.Generate(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, id, task.MeetingID)

	res, err := waitTask(t, task)
	require.NoError(t, err)
	assert.Equal(t, TaskFulfilled, task.Status())
	assert.True(t, task.Applied())
	assert.Equal(t, "# Minutes", res.Minutes)
	assert.Equal(t, []string{"ops", "q3"}, res.Tags)

	assert.Equal(t, StateReady, c.State())
	assert.Equal(t, ViewMinutes, c.View())
	assert.Nil(t, c.Task())

	// Generator saw current notes and images.
	assert.Equal(t, []string{"- ship it"}, gen.notes)
	require.Len(t, gen.images[0], 1)
	assert.Equal(t, img.ID, gen.images[0][0].ID)

	stored, err := st.GetMeeting(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "# Minutes", stored.MinutesText())
	assert.Equal(t, []string{"ops", "q3"}, stored.Tags, "tags replaced wholesale")
	assert.True(t, stored.UpdatedAt.After(before.UpdatedAt), "updatedAt %v not after %v", stored.UpdatedAt, before.UpdatedAt)
}

func TestGenerate_FailureLeavesPriorState(t *testing.T) {
	st := newTestStore(t)
	gen := &fakeGenerator{err: errors.NewGenerationFailed(fmt.Errorf("gemini api error: quota exceeded"))}
	c := newController(t, st, gen)
	ctx := context.Background()

	id, err := c.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, c.SetMinutes("previous"))
	require.NoError(t, c.SetTags([]string{"keep"}))
	require.NoError(t, c.SetNotes("notes"))

	task, err := c.Generate(ctx)
	require.NoError(t, err)

	_, err = waitTask(t, task)
	require.Error(t, err)
	assert.Equal(t, TaskRejected, task.Status())
	assert.False(t, task.Applied())

	n := nextNotice(t, c)
	assert.Equal(t, NoticeGenerationFailed, n.Kind)
	assert.Equal(t, id, n.MeetingID)
	assert.Equal(t, "Error generating minutes: gemini api error: quota exceeded", n.Message)

	assert.Equal(t, StateReady, c.State())
	require.NoError(t, c.Flush(ctx))
	stored, err := st.GetMeeting(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "previous", stored.MinutesText())
	assert.Equal(t, []string{"keep"}, stored.Tags)
}

func TestGenerate_MissingKeyNotice(t *testing.T) {
	gen := &fakeGenerator{err: errors.NewConfiguration(ai.MissingKeyMessage)}
	c := newController(t, newTestStore(t), gen)
	ctx := context.Background()

	_, err := c.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, c.SetNotes("notes"))

	task, err := c.Generate(ctx)
	require.NoError(t, err)
	_, err = waitTask(t, task)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))

	n := nextNotice(t, c)
	assert.Equal(t, ai.MissingKeyMessage, n.Message)
}

func TestGenerate_SingleFlight(t *testing.T) {
	gen := &fakeGenerator{result: &ai.Result{Minutes: "m"}, block: make(chan struct{})}
	c := newController(t, newTestStore(t), gen)
	ctx := context.Background()

	_, err := c.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, c.SetNotes("notes"))

	task, err := c.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateGenerating, c.State())
	assert.Same(t, task, c.Task())

	_, err = c.Generate(ctx)
	assert.True(t, errors.Is(err, errors.ErrGenerationRunning), "got %v", err)

	close(gen.block)
	_, err = waitTask(t, task)
	require.NoError(t, err)
	assert.Equal(t, 1, gen.calls)
}

func TestGenerate_EditsAllowedWhileRunning(t *testing.T) {
	st := newTestStore(t)
	gen := &fakeGenerator{result: &ai.Result{Minutes: "m", Tags: []string{"ai"}}, block: make(chan struct{})}
	c := newController(t, st, gen)
	ctx := context.Background()

	id, err := c.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, c.SetNotes("notes"))

	task, err := c.Generate(ctx)
	require.NoError(t, err)

	require.NoError(t, c.SetTitle("edited during generation"))
	_, err = c.AddImage(ctx, []byte("x"), "image/png", "late.png")
	require.NoError(t, err)

	close(gen.block)
	_, err = waitTask(t, task)
	require.NoError(t, err)
	require.NoError(t, c.Flush(ctx))

	stored, err := st.GetMeeting(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "edited during generation", stored.Title)
	assert.Equal(t, "m", stored.MinutesText())
}

func TestGenerate_StaleResultDiscardedOnOpen(t *testing.T) {
	st := newTestStore(t)
	gen := &fakeGenerator{result: &ai.Result{Minutes: "late minutes", Tags: []string{"late"}}, block: make(chan struct{})}
	c := newController(t, st, gen)
	ctx := context.Background()

	other, err := st.CreateMeeting(ctx, meeting.Draft{Title: "other"})
	require.NoError(t, err)

	first, err := c.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, c.SetNotes("notes"))

	task, err := c.Generate(ctx)
	require.NoError(t, err)

	// Navigate away before the reply lands.
	gen.waitCalls(t, 1)
	require.NoError(t, c.Open(ctx, other.ID))
	assert.Equal(t, StateReady, c.State())
	assert.Nil(t, c.Task())

	close(gen.block)
	res, err := waitTask(t, task)
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.False(t, task.Applied(), "stale result must not be applied")

	require.NoError(t, c.Flush(ctx))

	firstStored, err := st.GetMeeting(ctx, first)
	require.NoError(t, err)
	assert.Nil(t, firstStored.Minutes)
	assert.Empty(t, firstStored.Tags)

	otherStored, err := st.GetMeeting(ctx, other.ID)
	require.NoError(t, err)
	assert.Nil(t, otherStored.Minutes)
	assert.Nil(t, c.Snapshot().Minutes)

	select {
	case n := <-c.Notices():
		t.Fatalf("stale result produced a notice: %+v", n)
	default:
	}
}

func TestGenerate_ReopenSameMeetingStillStale(t *testing.T) {
	st := newTestStore(t)
	gen := &fakeGenerator{result: &ai.Result{Minutes: "late"}, block: make(chan struct{})}
	c := newController(t, st, gen)
	ctx := context.Background()

	id, err := c.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, c.SetNotes("notes"))

	task, err := c.Generate(ctx)
	require.NoError(t, err)

	gen.waitCalls(t, 1)
	require.NoError(t, c.Open(ctx, id))
	close(gen.block)

	_, err = waitTask(t, task)
	require.NoError(t, err)
	assert.False(t, task.Applied())

	stored, err := st.GetMeeting(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, stored.Minutes)
}

func TestGenerate_Timeout(t *testing.T) {
	gen := &fakeGenerator{result: &ai.Result{Minutes: "m"}, block: make(chan struct{}), honorCtx: true}
	defer close(gen.block)
	c := newController(t, newTestStore(t), gen, WithGenerateTimeout(50*time.Millisecond))
	ctx := context.Background()

	_, err := c.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, c.SetNotes("notes"))

	task, err := c.Generate(ctx)
	require.NoError(t, err)

	_, err = waitTask(t, task)
	require.Error(t, err)
	assert.Equal(t, TaskRejected, task.Status())
	assert.Equal(t, StateReady, c.State())
	assert.Equal(t, NoticeGenerationFailed, nextNotice(t, c).Kind)
}

func TestGenerate_CallerCancelDoesNotStopTask(t *testing.T) {
	gen := &fakeGenerator{result: &ai.Result{Minutes: "m"}, block: make(chan struct{}), honorCtx: true}
	c := newController(t, newTestStore(t), gen)

	_, err := c.Create(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.SetNotes("notes"))

	reqCtx, cancel := context.WithCancel(context.Background())
	task, err := c.Generate(reqCtx)
	require.NoError(t, err)
	cancel()

	close(gen.block)
	_, err = waitTask(t, task)
	require.NoError(t, err)
	assert.True(t, task.Applied())
}

// failingStore fails every UpdateMeeting once armed.
type failingStore struct {
	Store
	fail atomic.Bool
}

func (f *failingStore) UpdateMeeting(ctx context.Context, id int64, p meeting.Patch) (*meeting.Meeting, error) {
	if f.fail.Load() {
		return nil, errors.NewInternal(fmt.Errorf("disk I/O error"))
	}
	return f.Store.UpdateMeeting(ctx, id, p)
}

func TestAutosaveFailure_Notice(t *testing.T) {
	st := &failingStore{Store: newTestStore(t)}
	c := newController(t, st, &fakeGenerator{})
	ctx := context.Background()

	id, err := c.Create(ctx)
	require.NoError(t, err)

	st.fail.Store(true)
	require.NoError(t, c.SetNotes("lost"), "edit itself succeeds locally")
	require.NoError(t, c.Flush(ctx))

	n := nextNotice(t, c)
	assert.Equal(t, NoticeAutosaveFailed, n.Kind)
	assert.Equal(t, id, n.MeetingID)
	assert.Contains(t, n.Message, "disk I/O error")
	assert.Equal(t, "lost", c.Snapshot().Notes)
}

func TestClose(t *testing.T) {
	st := newTestStore(t)
	c := New(st, &fakeGenerator{})
	ctx := context.Background()

	id, err := c.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, c.SetNotes("persist on close"))

	c.Close()
	c.Close() // idempotent
	assert.Equal(t, StateClosed, c.State())

	stored, err := st.GetMeeting(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "persist on close", stored.Notes)

	assert.True(t, errors.Is(c.SetNotes("x"), errors.ErrSessionNotReady))
	assert.True(t, errors.Is(c.Open(ctx, id), errors.ErrSessionNotReady))

	_, open := <-c.Notices()
	assert.False(t, open, "notices closed")
}

func TestClose_CancelsGeneration(t *testing.T) {
	st := newTestStore(t)
	gen := &fakeGenerator{result: &ai.Result{Minutes: "m"}, block: make(chan struct{}), honorCtx: true}
	defer close(gen.block)
	c := New(st, gen)
	ctx := context.Background()

	id, err := c.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, c.SetNotes("notes"))
	task, err := c.Generate(ctx)
	require.NoError(t, err)

	c.Close()

	select {
	case <-task.Done():
	default:
		t.Fatal("task should have settled by the time Close returns")
	}
	assert.False(t, task.Applied())

	stored, err := st.GetMeeting(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, stored.Minutes)
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"missing key", errors.NewConfiguration(ai.MissingKeyMessage), ai.MissingKeyMessage},
		{"generation", errors.NewGenerationFailed(fmt.Errorf("boom")), "Error generating minutes: boom"},
		{"cancelled", errors.NewCancelled("generation"), "Minutes generation was cancelled."},
		{"not found", errors.NewNotFound("meeting", 3), "This meeting no longer exists."},
		{"running", errors.NewGenerationRunning(1), "Minutes are already being generated."},
		{"invalid", errors.NewInvalidRequest("notes are empty"), "notes are empty"},
		{"plain", fmt.Errorf("eof"), "Something went wrong: eof"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.err))
		})
	}
}

func stringPtr(s string) *string { return &s }
