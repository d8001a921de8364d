package ops

import (
	"context"

	"github.com/hpungsan/acta/internal/session"
	"github.com/hpungsan/acta/internal/store"
)

// TagInput contains parameters for TagAdd and TagRemove.
type TagInput struct {
	ID  int64
	Tag string
}

// TagOutput contains the result of a tag operation. Changed is false when
// the tag was blank, already present (add) or absent (remove).
type TagOutput struct {
	ID      int64    `json:"id"`
	Tags    []string `json:"tags"`
	Changed bool     `json:"changed"`
}

// TagAdd appends a trimmed tag unless it is blank or the meeting already
// has it.
func TagAdd(ctx context.Context, st *store.Store, input TagInput) (*TagOutput, error) {
	return changeTags(ctx, st, input, (*session.Controller).AddTag)
}

// TagRemove removes the tag if present.
func TagRemove(ctx context.Context, st *store.Store, input TagInput) (*TagOutput, error) {
	return changeTags(ctx, st, input, (*session.Controller).RemoveTag)
}

func changeTags(ctx context.Context, st *store.Store, input TagInput, fn func(*session.Controller, string) (bool, error)) (*TagOutput, error) {
	if err := ValidateID(input.ID); err != nil {
		return nil, err
	}

	var (
		changed bool
		tags    []string
	)
	err := editMeeting(ctx, st, input.ID, func(ctrl *session.Controller) error {
		var err error
		changed, err = fn(ctrl, input.Tag)
		tags = ctrl.Snapshot().Tags
		return err
	})
	if err != nil {
		return nil, err
	}
	return &TagOutput{ID: input.ID, Tags: tags, Changed: changed}, nil
}
