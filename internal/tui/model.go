// Package tui is a terminal dashboard over the live meeting list: a search
// box filters by title and tags, enter opens a meeting, g generates minutes.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hpungsan/acta/internal/ai"
	"github.com/hpungsan/acta/internal/errors"
	"github.com/hpungsan/acta/internal/listing"
	"github.com/hpungsan/acta/internal/meeting"
	"github.com/hpungsan/acta/internal/ops"
	"github.com/hpungsan/acta/internal/session"
	"github.com/hpungsan/acta/internal/store"
)

// Deps holds what the dashboard needs.
type Deps struct {
	Store     *store.Store
	Generator ai.Generator
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Model is the root bubbletea model for the acta TUI.
type Model struct {
	deps Deps
	view *listing.View

	// Listing
	snapshot listing.Snapshot
	loaded   bool
	selected int
	offset   int

	// Search
	query     string
	searching bool

	// Detail pane
	detail *ops.FetchOutput
	pane   session.View

	// Generation in flight, by meeting id
	generating map[int64]bool

	// Status
	status       string
	errorMessage string

	width  int
	height int
}

// New creates a Model reading from view.
func New(deps Deps, view *listing.View) Model {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return Model{
		deps:       deps,
		view:       view,
		pane:       session.ViewNotes,
		generating: make(map[int64]bool),
		status:     "Loading meetings...",
		width:      80,
		height:     24,
	}
}

// Init starts listening for listing snapshots.
func (m Model) Init() tea.Cmd {
	return waitSnapshotCmd(m.view)
}

// waitSnapshotCmd blocks until the listing recomputes.
func waitSnapshotCmd(v *listing.View) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-v.Results()
		if !ok {
			return ViewClosedMsg{}
		}
		return SnapshotMsg{Snapshot: snap}
	}
}

// setQueryCmd pushes the search term to the listing off the update loop.
func setQueryCmd(v *listing.View, q string) tea.Cmd {
	return func() tea.Msg {
		v.SetQuery(q)
		return nil
	}
}

// loadMeetingCmd fetches one meeting with image metadata.
func loadMeetingCmd(st *store.Store, id int64) tea.Cmd {
	return func() tea.Msg {
		out, err := ops.Fetch(context.Background(), st, ops.FetchInput{ID: id, IncludeImages: true})
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return MeetingLoadedMsg{Meeting: out}
	}
}

// createCmd stores an empty meeting.
func createCmd(st *store.Store) tea.Cmd {
	return func() tea.Msg {
		out, err := ops.Create(context.Background(), st, ops.CreateInput{})
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return CreatedMsg{ID: out.ID}
	}
}

// generateCmd runs minutes generation to completion.
func generateCmd(deps Deps, id int64) tea.Cmd {
	return func() tea.Msg {
		_, err := ops.Generate(context.Background(), deps.Store, deps.Generator, ops.GenerateInput{
			ID:      id,
			Timeout: deps.Timeout,
			Logger:  deps.Logger,
		})
		return GenerateDoneMsg{ID: id, Err: err}
	}
}

// clearErrorCmd fires after a delay to clear the error line.
func clearErrorCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearErrorMsg{}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clampSelection()
		return m, nil

	case SnapshotMsg:
		m.snapshot = msg.Snapshot
		m.loaded = true
		m.status = ""
		m.clampSelection()
		cmds := []tea.Cmd{waitSnapshotCmd(m.view)}
		if m.detail != nil {
			cmds = append(cmds, loadMeetingCmd(m.deps.Store, m.detail.ID))
		}
		return m, tea.Batch(cmds...)

	case ViewClosedMsg:
		m.status = "Listing closed"
		return m, nil

	case MeetingLoadedMsg:
		opening := m.detail == nil || m.detail.ID != msg.Meeting.ID
		m.detail = msg.Meeting
		if opening {
			m.pane = session.ViewNotes
			if msg.Meeting.Processed {
				m.pane = session.ViewMinutes
			}
		}
		return m, nil

	case CreatedMsg:
		m.status = fmt.Sprintf("Created meeting %d", msg.ID)
		return m, loadMeetingCmd(m.deps.Store, msg.ID)

	case GenerateDoneMsg:
		delete(m.generating, msg.ID)
		if msg.Err != nil {
			m.errorMessage = session.Describe(msg.Err)
			return m, clearErrorCmd()
		}
		m.status = fmt.Sprintf("Minutes generated for meeting %d", msg.ID)
		if m.detail != nil && m.detail.ID == msg.ID {
			m.pane = session.ViewMinutes
			return m, loadMeetingCmd(m.deps.Store, msg.ID)
		}
		return m, nil

	case ErrorMsg:
		if m.detail != nil && errors.Is(msg.Err, errors.ErrNotFound) {
			m.detail = nil
		}
		m.errorMessage = session.Describe(msg.Err)
		return m, clearErrorCmd()

	case ClearErrorMsg:
		m.errorMessage = ""
		return m, nil
	}

	return m, nil
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == KeyCtrlC {
		return m, tea.Quit
	}

	if m.searching {
		return m.handleSearchKey(msg)
	}

	switch key {
	case KeyQuit:
		return m, tea.Quit

	case KeySearch:
		if m.detail == nil {
			m.searching = true
		}
		return m, nil

	case KeyUp, KeyK:
		if m.detail == nil && m.selected > 0 {
			m.selected--
			m.clampSelection()
		}
		return m, nil

	case KeyDown, KeyJ:
		if m.detail == nil && m.selected < len(m.snapshot.Meetings)-1 {
			m.selected++
			m.clampSelection()
		}
		return m, nil

	case KeyEnter:
		if sel := m.selectedMeeting(); m.detail == nil && sel != nil {
			return m, loadMeetingCmd(m.deps.Store, sel.ID)
		}
		return m, nil

	case KeyEsc, KeyBack:
		if m.detail != nil {
			m.detail = nil
			return m, nil
		}
		if m.query != "" {
			m.query = ""
			return m, setQueryCmd(m.view, "")
		}
		return m, nil

	case KeyTab:
		if m.detail != nil {
			if m.pane == session.ViewNotes {
				m.pane = session.ViewMinutes
			} else {
				m.pane = session.ViewNotes
			}
		}
		return m, nil

	case KeyNew:
		return m, createCmd(m.deps.Store)

	case KeyGenerate:
		id := m.targetID()
		if id == 0 {
			return m, nil
		}
		if m.deps.Generator == nil {
			m.errorMessage = "Minutes generation is not configured."
			return m, clearErrorCmd()
		}
		if m.generating[id] {
			m.errorMessage = session.Describe(errors.NewGenerationRunning(id))
			return m, clearErrorCmd()
		}
		m.generating[id] = true
		m.status = fmt.Sprintf("Generating minutes for meeting %d...", id)
		return m, generateCmd(m.deps, id)

	case KeyRefresh:
		if m.detail != nil {
			return m, loadMeetingCmd(m.deps.Store, m.detail.ID)
		}
		return m, nil
	}

	return m, nil
}

// handleSearchKey edits the search term. Every change recomputes the list.
func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyEnter:
		m.searching = false
		return m, nil
	case tea.KeyUp:
		if m.selected > 0 {
			m.selected--
			m.clampSelection()
		}
		return m, nil
	case tea.KeyDown:
		if m.selected < len(m.snapshot.Meetings)-1 {
			m.selected++
			m.clampSelection()
		}
		return m, nil
	case tea.KeyBackspace:
		if m.query == "" {
			return m, nil
		}
		r := []rune(m.query)
		m.query = string(r[:len(r)-1])
	case tea.KeyRunes, tea.KeySpace:
		m.query += string(msg.Runes)
	default:
		return m, nil
	}
	m.selected = 0
	m.offset = 0
	return m, setQueryCmd(m.view, m.query)
}

func (m Model) selectedMeeting() *meeting.Meeting {
	if m.selected < 0 || m.selected >= len(m.snapshot.Meetings) {
		return nil
	}
	return &m.snapshot.Meetings[m.selected]
}

// targetID is the open meeting, else the selected one, else 0.
func (m Model) targetID() int64 {
	if m.detail != nil {
		return m.detail.ID
	}
	if sel := m.selectedMeeting(); sel != nil {
		return sel.ID
	}
	return 0
}

// listRows is how many meetings fit on screen.
func (m Model) listRows() int {
	rows := m.height - 6
	if rows < 1 {
		rows = 1
	}
	return rows
}

func (m *Model) clampSelection() {
	n := len(m.snapshot.Meetings)
	if m.selected >= n {
		m.selected = n - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
	rows := m.listRows()
	if m.selected < m.offset {
		m.offset = m.selected
	}
	if m.selected >= m.offset+rows {
		m.offset = m.selected - rows + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// View renders the TUI.
func (m Model) View() string {
	var b strings.Builder

	header := TitleStyle.Render("acta")
	if m.loaded {
		header += DimStyle.Render(fmt.Sprintf("  %d of %d meetings", len(m.snapshot.Meetings), m.snapshot.Total))
	}
	b.WriteString(header + "\n")

	if m.detail != nil {
		b.WriteString(m.renderDetail())
	} else {
		b.WriteString(m.renderSearch() + "\n")
		b.WriteString(m.renderList())
	}

	b.WriteString("\n")
	switch {
	case m.errorMessage != "":
		b.WriteString(ErrorStyle.Render(m.errorMessage) + "\n")
	case m.status != "":
		b.WriteString(DimStyle.Render(m.status) + "\n")
	}
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderSearch() string {
	if m.searching {
		return SearchActiveStyle.Render("/ " + m.query + "█")
	}
	if m.query != "" {
		return SearchStyle.Render("/ " + m.query)
	}
	return DimStyle.Render("/ search title or tags")
}

func (m Model) renderList() string {
	if !m.loaded {
		return ""
	}
	if len(m.snapshot.Meetings) == 0 {
		if m.query != "" {
			return DimStyle.Render(fmt.Sprintf("No meetings match %q", m.query)) + "\n"
		}
		return DimStyle.Render("No meetings yet. Press n to start one.") + "\n"
	}

	var b strings.Builder
	end := m.offset + m.listRows()
	if end > len(m.snapshot.Meetings) {
		end = len(m.snapshot.Meetings)
	}
	for i := m.offset; i < end; i++ {
		card := m.snapshot.Meetings[i].ToCard()
		b.WriteString(m.renderCard(card, i == m.selected) + "\n")
	}
	return b.String()
}

func (m Model) renderCard(card meeting.Card, selected bool) string {
	cursor := "  "
	title := card.DisplayTitle
	if selected {
		cursor = SelectedStyle.Render("> ")
		title = SelectedStyle.Render(title)
	}

	mark := DimStyle.Render("○")
	if card.Processed {
		mark = ProcessedStyle.Render("●")
	}
	if m.generating[card.ID] {
		mark = TagStyle.Render("…")
	}

	line := fmt.Sprintf("%s%s %s  %s", cursor, mark, title, DimStyle.Render(card.Date.Local().Format("2006-01-02")))
	if len(card.Tags) > 0 {
		tags := strings.Join(card.Tags, " ")
		if card.MoreTags > 0 {
			tags += fmt.Sprintf(" +%d", card.MoreTags)
		}
		line += "  " + TagStyle.Render(tags)
	}
	return line
}

func (m Model) renderDetail() string {
	d := m.detail
	var b strings.Builder

	b.WriteString(SelectedStyle.Render(meeting.DisplayTitle(d.Title)))
	b.WriteString(DimStyle.Render("  " + d.Date.Local().Format("2006-01-02 15:04")))
	b.WriteString("\n")
	if len(d.Tags) > 0 {
		b.WriteString(TagStyle.Render(strings.Join(d.Tags, " ")) + "\n")
	}
	if len(d.Images) > 0 {
		b.WriteString(DimStyle.Render(fmt.Sprintf("%d image(s)", len(d.Images))) + "\n")
	}

	notesTab, minutesTab := DimStyle.Render("Notes"), DimStyle.Render("Minutes")
	if m.pane == session.ViewNotes {
		notesTab = SelectedStyle.Render("Notes")
	} else {
		minutesTab = SelectedStyle.Render("Minutes")
	}
	b.WriteString(notesTab + " | " + minutesTab)
	if m.generating[d.ID] {
		b.WriteString(TagStyle.Render("  generating..."))
	}
	b.WriteString("\n")

	body := d.Notes
	if m.pane == session.ViewMinutes {
		body = d.MinutesText()
		if body == "" {
			body = "No minutes yet. Press g to generate."
		}
	} else if strings.TrimSpace(body) == "" {
		body = "No notes."
	}

	width := m.width - 4
	if width < 20 {
		width = 20
	}
	b.WriteString(PaneStyle.Width(width).MaxHeight(m.height - 8).Render(body))
	return b.String()
}

func (m Model) renderFooter() string {
	keys := [][2]string{{"/", "search"}, {"enter", "open"}, {"n", "new"}, {"g", "generate"}, {"q", "quit"}}
	if m.detail != nil {
		keys = [][2]string{{"tab", "notes/minutes"}, {"g", "generate"}, {"r", "reload"}, {"esc", "back"}, {"q", "quit"}}
	}
	if m.searching {
		keys = [][2]string{{"type", "filter"}, {"enter/esc", "done"}}
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, FooterKeyStyle.Render(k[0])+" "+FooterDescStyle.Render(k[1]))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, strings.Join(parts, "  "))
}

// Run starts the dashboard and blocks until the user quits.
func Run(ctx context.Context, deps Deps) error {
	view := listing.NewView(ctx, deps.Store)
	defer view.Close()

	p := tea.NewProgram(New(deps, view), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
