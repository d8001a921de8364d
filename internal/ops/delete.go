package ops

import (
	"context"

	"github.com/hpungsan/acta/internal/store"
)

// DeleteInput contains parameters for the Delete operation.
type DeleteInput struct {
	ID int64
}

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	Deleted       bool  `json:"deleted"`
	ID            int64 `json:"id"`
	ImagesRemoved int   `json:"images_removed"`
}

// Delete removes a meeting and its images.
func Delete(ctx context.Context, st *store.Store, input DeleteInput) (*DeleteOutput, error) {
	if err := ValidateID(input.ID); err != nil {
		return nil, err
	}

	removed, err := st.DeleteMeeting(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &DeleteOutput{
		Deleted:       true,
		ID:            input.ID,
		ImagesRemoved: removed,
	}, nil
}
