package ops

import (
	"context"

	"github.com/hpungsan/acta/internal/session"
	"github.com/hpungsan/acta/internal/store"
)

// editMeeting opens a short-lived session on one meeting, runs fn against
// it and waits for the queued writes to land. A failed write is returned
// as the error.
func editMeeting(ctx context.Context, st *store.Store, id int64, fn func(*session.Controller) error) error {
	ctrl := session.New(st, nil)
	err := ctrl.Open(ctx, id)
	if err == nil {
		err = fn(ctrl)
	}
	if err == nil {
		err = ctrl.Flush(ctx)
	}
	ctrl.Close()

	for n := range ctrl.Notices() {
		if err == nil && n.Err != nil {
			err = n.Err
		}
	}
	return err
}
