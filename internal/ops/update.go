package ops

import (
	"context"

	"github.com/hpungsan/acta/internal/errors"
	"github.com/hpungsan/acta/internal/meeting"
	"github.com/hpungsan/acta/internal/session"
	"github.com/hpungsan/acta/internal/store"
)

// UpdateInput contains parameters for the Update operation.
type UpdateInput struct {
	ID int64

	// Editable fields (nil = don't change)
	Title   *string
	Notes   *string
	Minutes *string
	Tags    *[]string
}

// UpdateOutput contains the result of the Update operation.
type UpdateOutput struct {
	ID        int64    `json:"id"`
	Updated   []string `json:"updated"`
	UpdatedAt int64    `json:"updated_at"`
}

// Update modifies an existing meeting. Only the given fields change;
// updated_at always advances.
func Update(ctx context.Context, st *store.Store, input UpdateInput) (*UpdateOutput, error) {
	if err := ValidateID(input.ID); err != nil {
		return nil, err
	}

	patch := meeting.Patch{
		Title:   input.Title,
		Notes:   input.Notes,
		Minutes: input.Minutes,
		Tags:    input.Tags,
	}
	if patch.IsEmpty() {
		return nil, errors.NewInvalidRequest("at least one editable field must be provided")
	}

	err := editMeeting(ctx, st, input.ID, func(ctrl *session.Controller) error {
		return ctrl.Update(patch)
	})
	if err != nil {
		return nil, err
	}
	m, err := st.GetMeeting(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &UpdateOutput{
		ID:        m.ID,
		Updated:   patch.Fields(),
		UpdatedAt: m.UpdatedAt.UnixMilli(),
	}, nil
}
