package ops

import (
	"context"
	"time"

	"github.com/hpungsan/acta/internal/meeting"
	"github.com/hpungsan/acta/internal/store"
)

// CreateInput contains parameters for the Create operation.
// Every field is optional; an empty input creates an empty meeting dated now.
type CreateInput struct {
	Title string
	Notes string
	Tags  []string
	Date  *time.Time
}

// CreateOutput contains the result of the Create operation.
type CreateOutput struct {
	ID        int64    `json:"id"`
	Title     string   `json:"title"`
	Tags      []string `json:"tags"`
	CreatedAt int64    `json:"created_at"`
}

// Create stores a new meeting.
func Create(ctx context.Context, st *store.Store, input CreateInput) (*CreateOutput, error) {
	draft := meeting.Draft{
		Title: input.Title,
		Notes: input.Notes,
		Tags:  input.Tags,
	}
	if input.Date != nil {
		draft.Date = *input.Date
	}

	m, err := st.CreateMeeting(ctx, draft)
	if err != nil {
		return nil, err
	}
	return &CreateOutput{
		ID:        m.ID,
		Title:     m.Title,
		Tags:      m.Tags,
		CreatedAt: m.CreatedAt.UnixMilli(),
	}, nil
}
