package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/acta/internal/listing"
	"github.com/hpungsan/acta/internal/meeting"
	"github.com/hpungsan/acta/internal/store"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Query  string // case-insensitive match on title and tags
	Tag    string // exact tag filter, applied before Query
	Limit  int    // default: 50, max: 500
	Offset int    // default: 0
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []meeting.Card `json:"items"`
	Pagination Pagination     `json:"pagination"`
	Sort       string         `json:"sort"`
}

// List returns meeting cards, newest first.
func List(ctx context.Context, st *store.Store, input ListInput) (*ListOutput, error) {
	limit, offset := clampPage(input.Limit, input.Offset)

	var (
		all []meeting.Meeting
		err error
	)
	if strings.TrimSpace(input.Tag) != "" {
		all, err = st.ListMeetingsByTag(ctx, input.Tag)
	} else {
		all, err = st.ListMeetings(ctx)
	}
	if err != nil {
		return nil, err
	}

	matched := listing.Filter(all, input.Query)
	total := len(matched)

	page := []meeting.Meeting{}
	if offset < total {
		page = matched[offset:min(offset+limit, total)]
	}

	return &ListOutput{
		Items: listing.Cards(page),
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(page) < total,
			Total:   total,
		},
		Sort: "created_at_desc",
	}, nil
}
