package ops

import (
	"context"

	"github.com/hpungsan/acta/internal/meeting"
	"github.com/hpungsan/acta/internal/store"
)

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	ID            int64
	IncludeNotes  *bool // default: true (nil means default)
	IncludeImages bool  // image metadata only, never blobs
}

// FetchOutput contains the result of the Fetch operation.
type FetchOutput struct {
	meeting.Meeting                 // embedded (copy, not pointer)
	Processed       bool            `json:"processed"`
	Images          []meeting.Image `json:"images,omitempty"`
}

// Fetch retrieves a meeting by id.
func Fetch(ctx context.Context, st *store.Store, input FetchInput) (*FetchOutput, error) {
	if err := ValidateID(input.ID); err != nil {
		return nil, err
	}

	m, err := st.GetMeeting(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	output := &FetchOutput{
		Meeting:   *m,
		Processed: m.MinutesText() != "",
	}

	includeNotes := true
	if input.IncludeNotes != nil {
		includeNotes = *input.IncludeNotes
	}
	if !includeNotes {
		output.Notes = ""
	}

	if input.IncludeImages {
		images, err := st.ListImagesForMeeting(ctx, input.ID)
		if err != nil {
			return nil, err
		}
		output.Images = images
	}

	return output, nil
}
