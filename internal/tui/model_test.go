package tui

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/acta/internal/ai"
	"github.com/hpungsan/acta/internal/db"
	"github.com/hpungsan/acta/internal/errors"
	"github.com/hpungsan/acta/internal/listing"
	"github.com/hpungsan/acta/internal/meeting"
	"github.com/hpungsan/acta/internal/session"
	"github.com/hpungsan/acta/internal/store"
)

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

type harness struct {
	store *store.Store
	view  *listing.View
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	st := store.New(database)

	v := listing.NewView(context.Background(), st)
	t.Cleanup(v.Close)
	return &harness{store: st, view: v}
}

func (h *harness) model(gen ai.Generator) Model {
	return New(Deps{Store: h.store, Generator: gen, Timeout: 5 * time.Second}, h.view)
}

func (h *harness) create(t *testing.T, d meeting.Draft) *meeting.Meeting {
	t.Helper()
	m, err := h.store.CreateMeeting(context.Background(), d)
	require.NoError(t, err)
	return m
}

// snapshot waits for a listing result satisfying cond.
func (h *harness) snapshot(t *testing.T, cond func(listing.Snapshot) bool) listing.Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap, ok := <-h.view.Results():
			require.True(t, ok)
			if cond(snap) {
				return snap
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

func seeded(t *testing.T, h *harness, gen ai.Generator, titles ...string) Model {
	t.Helper()
	for _, title := range titles {
		h.create(t, meeting.Draft{Title: title, Notes: "notes for " + title})
	}
	snap := h.snapshot(t, func(s listing.Snapshot) bool { return s.Total == len(titles) })
	m, _ := update(t, h.model(gen), SnapshotMsg{Snapshot: snap})
	return m
}

func TestUpdate_Snapshot(t *testing.T) {
	h := newHarness(t)
	m := seeded(t, h, nil, "Alpha", "Beta")

	assert.True(t, m.loaded)
	assert.Len(t, m.snapshot.Meetings, 2)
	assert.Equal(t, "Beta", m.snapshot.Meetings[0].Title, "newest first")
	assert.Empty(t, m.status)
}

func TestUpdate_SnapshotClampsSelection(t *testing.T) {
	h := newHarness(t)
	m := seeded(t, h, nil, "A", "B", "C")
	m.selected = 2

	m, _ = update(t, m, SnapshotMsg{Snapshot: listing.Snapshot{Meetings: m.snapshot.Meetings[:1], Total: 3}})
	assert.Equal(t, 0, m.selected)
}

func TestHandleKey_Navigation(t *testing.T) {
	h := newHarness(t)
	m := seeded(t, h, nil, "A", "B", "C")

	m, _ = update(t, m, keyMsg("j"))
	assert.Equal(t, 1, m.selected)
	m, _ = update(t, m, keyMsg("down"))
	assert.Equal(t, 2, m.selected)
	m, _ = update(t, m, keyMsg("j"))
	assert.Equal(t, 2, m.selected, "stays at bottom")

	m, _ = update(t, m, keyMsg("k"))
	assert.Equal(t, 1, m.selected)
	m, _ = update(t, m, keyMsg("up"))
	m, _ = update(t, m, keyMsg("up"))
	assert.Equal(t, 0, m.selected, "stays at top")
}

func TestHandleKey_ScrollsWithSelection(t *testing.T) {
	h := newHarness(t)
	var titles []string
	for i := 0; i < 10; i++ {
		titles = append(titles, fmt.Sprintf("M%d", i))
	}
	m := seeded(t, h, nil, titles...)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 9})
	require.Equal(t, 3, m.listRows())

	for i := 0; i < 5; i++ {
		m, _ = update(t, m, keyMsg("j"))
	}
	assert.Equal(t, 5, m.selected)
	assert.Equal(t, 3, m.offset)
}

func TestHandleKey_Search(t *testing.T) {
	h := newHarness(t)
	m := seeded(t, h, nil, "Design review", "Retro")

	m, _ = update(t, m, keyMsg("/"))
	require.True(t, m.searching)

	// q is typed, not quit, while searching.
	var cmd tea.Cmd
	for _, r := range "desq" {
		m, cmd = update(t, m, keyMsg(string(r)))
		require.NotNil(t, cmd)
		cmd()
	}
	assert.Equal(t, "desq", m.query)

	m, cmd = update(t, m, keyMsg("backspace"))
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, "des", m.query)

	snap := h.snapshot(t, func(s listing.Snapshot) bool { return s.Query == "des" })
	m, _ = update(t, m, SnapshotMsg{Snapshot: snap})
	require.Len(t, m.snapshot.Meetings, 1)
	assert.Equal(t, "Design review", m.snapshot.Meetings[0].Title)

	m, _ = update(t, m, keyMsg("enter"))
	assert.False(t, m.searching)
	assert.Equal(t, "des", m.query, "query kept after leaving search")

	// esc outside search clears the query.
	m, cmd = update(t, m, keyMsg("esc"))
	require.NotNil(t, cmd)
	cmd()
	assert.Empty(t, m.query)
	h.snapshot(t, func(s listing.Snapshot) bool { return s.Query == "" && len(s.Meetings) == 2 })
}

func TestHandleKey_OpenAndToggleDetail(t *testing.T) {
	h := newHarness(t)
	minutes := "# Minutes"
	h.create(t, meeting.Draft{Title: "Processed", Notes: "raw", Minutes: &minutes})
	snap := h.snapshot(t, func(s listing.Snapshot) bool { return s.Total == 1 })
	m, _ := update(t, h.model(nil), SnapshotMsg{Snapshot: snap})

	m, cmd := update(t, m, keyMsg("enter"))
	require.NotNil(t, cmd)
	msg := cmd()
	loaded, ok := msg.(MeetingLoadedMsg)
	require.True(t, ok, "got %T", msg)

	m, _ = update(t, m, loaded)
	require.NotNil(t, m.detail)
	assert.Equal(t, "Processed", m.detail.Title)
	assert.Equal(t, session.ViewMinutes, m.pane, "processed meetings open on minutes")
	assert.Contains(t, m.View(), "# Minutes")

	m, _ = update(t, m, keyMsg("tab"))
	assert.Equal(t, session.ViewNotes, m.pane)
	assert.Contains(t, m.View(), "raw")

	// Reloading the same meeting keeps the chosen pane.
	m, _ = update(t, m, loaded)
	assert.Equal(t, session.ViewNotes, m.pane)

	m, _ = update(t, m, keyMsg("esc"))
	assert.Nil(t, m.detail)
}

func TestHandleKey_New(t *testing.T) {
	h := newHarness(t)
	m := h.model(nil)

	m, cmd := update(t, m, keyMsg("n"))
	require.NotNil(t, cmd)
	created, ok := cmd().(CreatedMsg)
	require.True(t, ok)

	exists, err := h.store.Exists(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	m, cmd = update(t, m, created)
	assert.Contains(t, m.status, "Created meeting")
	require.NotNil(t, cmd)
	loaded, ok := cmd().(MeetingLoadedMsg)
	require.True(t, ok)

	m, _ = update(t, m, loaded)
	require.NotNil(t, m.detail)
	assert.Equal(t, session.ViewNotes, m.pane)
	assert.Contains(t, m.View(), meeting.UntitledLabel)
}

func TestHandleKey_Generate(t *testing.T) {
	h := newHarness(t)
	gen := ai.GeneratorFunc(func(ctx context.Context, notes string, images []meeting.Image) (*ai.Result, error) {
		return &ai.Result{Minutes: "## Summary\n" + notes, Tags: []string{"generated"}}, nil
	})
	m := seeded(t, h, gen, "Standup")
	id := m.snapshot.Meetings[0].ID

	m, cmd := update(t, m, keyMsg("g"))
	require.NotNil(t, cmd)
	assert.True(t, m.generating[id])
	assert.Contains(t, m.View(), "…")

	done, ok := cmd().(GenerateDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.Err)

	m, _ = update(t, m, done)
	assert.False(t, m.generating[id])
	assert.Contains(t, m.status, "Minutes generated")

	got, err := h.store.GetMeeting(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "## Summary\nnotes for Standup", got.MinutesText())
	assert.Contains(t, got.Tags, "generated")
}

func TestHandleKey_GenerateRejectedWhileRunning(t *testing.T) {
	h := newHarness(t)
	gen := ai.GeneratorFunc(func(ctx context.Context, notes string, images []meeting.Image) (*ai.Result, error) {
		return &ai.Result{Minutes: "m"}, nil
	})
	m := seeded(t, h, gen, "Standup")
	m.generating[m.snapshot.Meetings[0].ID] = true

	m, cmd := update(t, m, keyMsg("g"))
	require.NotNil(t, cmd)
	assert.Equal(t, "Minutes are already being generated.", m.errorMessage)
}

func TestHandleKey_GenerateWithoutGenerator(t *testing.T) {
	h := newHarness(t)
	m := seeded(t, h, nil, "Standup")

	m, cmd := update(t, m, keyMsg("g"))
	require.NotNil(t, cmd)
	assert.Contains(t, m.errorMessage, "not configured")
	assert.Empty(t, m.generating)
}

func TestUpdate_GenerateFailure(t *testing.T) {
	h := newHarness(t)
	m := h.model(nil)
	m.generating[7] = true

	m, cmd := update(t, m, GenerateDoneMsg{ID: 7, Err: errors.NewGenerationFailed(fmt.Errorf("quota exceeded"))})
	require.NotNil(t, cmd)
	assert.False(t, m.generating[7])
	assert.True(t, strings.HasPrefix(m.errorMessage, "Error generating minutes"))

	m, _ = update(t, m, ClearErrorMsg{})
	assert.Empty(t, m.errorMessage)
}

func TestUpdate_NotFoundClosesDetail(t *testing.T) {
	h := newHarness(t)
	m := seeded(t, h, nil, "Gone")
	_, cmd := update(t, m, keyMsg("enter"))
	loaded := cmd().(MeetingLoadedMsg)
	m, _ = update(t, m, loaded)
	require.NotNil(t, m.detail)

	m, _ = update(t, m, ErrorMsg{Err: errors.NewNotFound("meeting", m.detail.ID)})
	assert.Nil(t, m.detail)
	assert.Equal(t, "This meeting no longer exists.", m.errorMessage)
}

func TestView_List(t *testing.T) {
	h := newHarness(t)
	h.create(t, meeting.Draft{Title: "", Tags: []string{"ops"}})
	h.create(t, meeting.Draft{Title: "Planning"})
	snap := h.snapshot(t, func(s listing.Snapshot) bool { return s.Total == 2 })
	m, _ := update(t, h.model(nil), SnapshotMsg{Snapshot: snap})

	out := m.View()
	assert.Contains(t, out, "2 of 2 meetings")
	assert.Contains(t, out, "Planning")
	assert.Contains(t, out, meeting.UntitledLabel)
	assert.Contains(t, out, "ops")
}

func TestView_Empty(t *testing.T) {
	h := newHarness(t)
	snap := h.snapshot(t, func(listing.Snapshot) bool { return true })
	m, _ := update(t, h.model(nil), SnapshotMsg{Snapshot: snap})
	assert.Contains(t, m.View(), "No meetings yet")

	m.query = "zzz"
	assert.Contains(t, m.View(), `No meetings match "zzz"`)
}

func TestHandleKey_Quit(t *testing.T) {
	h := newHarness(t)
	m := h.model(nil)

	_, cmd := update(t, m, keyMsg("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	m.searching = true
	_, cmd = update(t, m, keyMsg("ctrl+c"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
