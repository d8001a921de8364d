package tui

import (
	"github.com/hpungsan/acta/internal/listing"
	"github.com/hpungsan/acta/internal/ops"
)

// SnapshotMsg carries a recomputed listing.
type SnapshotMsg struct {
	Snapshot listing.Snapshot
}

// ViewClosedMsg is sent when the listing stops delivering.
type ViewClosedMsg struct{}

// MeetingLoadedMsg carries the meeting opened in the detail pane.
type MeetingLoadedMsg struct {
	Meeting *ops.FetchOutput
}

// CreatedMsg reports a newly created meeting.
type CreatedMsg struct {
	ID int64
}

// GenerateDoneMsg reports the end of a generation started from the TUI.
type GenerateDoneMsg struct {
	ID  int64
	Err error
}

// ErrorMsg carries a failure to show in the status line.
type ErrorMsg struct {
	Err error
}

// ClearErrorMsg clears a transient error after a timeout.
type ClearErrorMsg struct{}
