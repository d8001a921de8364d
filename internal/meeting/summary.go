package meeting

import (
	"strings"
	"time"
)

// CardTagLimit is how many tags a card shows before collapsing to "+N".
const CardTagLimit = 3

// UntitledLabel is shown for meetings without a title.
const UntitledLabel = "Untitled Session"

// Card is the dashboard projection of a meeting: no minutes body, a short
// notes preview, and at most CardTagLimit tags.
type Card struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	DisplayTitle string    `json:"display_title"`
	Preview      string    `json:"preview"`
	Processed    bool      `json:"processed"`
	Tags         []string  `json:"tags"`
	MoreTags     int       `json:"more_tags"`
	Date         time.Time `json:"date"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DisplayTitle returns title, or UntitledLabel when it is blank.
func DisplayTitle(title string) string {
	if strings.TrimSpace(title) == "" {
		return UntitledLabel
	}
	return title
}

// PreviewChars bounds the notes preview on a card.
const PreviewChars = 160

// ToCard converts a Meeting to its dashboard card.
func (m *Meeting) ToCard() Card {
	display := DisplayTitle(m.Title)

	tags := m.Tags
	more := 0
	if len(tags) > CardTagLimit {
		more = len(tags) - CardTagLimit
		tags = tags[:CardTagLimit]
	}

	return Card{
		ID:           m.ID,
		Title:        m.Title,
		DisplayTitle: display,
		Preview:      truncateRunes(m.Notes, PreviewChars),
		Processed:    m.Minutes != nil && *m.Minutes != "",
		Tags:         append([]string{}, tags...),
		MoreTags:     more,
		Date:         m.Date,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
