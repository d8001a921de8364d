package ops

import (
	"context"
	"testing"

	"github.com/hpungsan/acta/internal/db"
	"github.com/hpungsan/acta/internal/errors"
	"github.com/hpungsan/acta/internal/meeting"
	"github.com/hpungsan/acta/internal/store"
)

// pngBytes is enough of a PNG for content sniffing.
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func setupStore(t *testing.T) *store.Store {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return store.New(database)
}

func mustCreate(t *testing.T, st *store.Store, d meeting.Draft) *meeting.Meeting {
	t.Helper()
	m, err := st.CreateMeeting(context.Background(), d)
	if err != nil {
		t.Fatalf("CreateMeeting failed: %v", err)
	}
	return m
}

func stringPtr(s string) *string { return &s }

func TestParseID(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1", 1, false},
		{" 42 ", 42, false},
		{"", 0, true},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"1.5", 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseID(tc.in)
			if tc.wantErr {
				if !errors.Is(err, errors.ErrInvalidRequest) {
					t.Errorf("ParseID(%q) error = %v, want ErrInvalidRequest", tc.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseID(%q) failed: %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("ParseID(%q) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestClampPage(t *testing.T) {
	tests := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{0, 0, DefaultListLimit, 0},
		{-1, -5, DefaultListLimit, 0},
		{10, 20, 10, 20},
		{MaxListLimit + 1, 0, MaxListLimit, 0},
	}
	for _, tc := range tests {
		l, o := clampPage(tc.limit, tc.offset)
		if l != tc.wantLimit || o != tc.wantOffset {
			t.Errorf("clampPage(%d, %d) = (%d, %d), want (%d, %d)", tc.limit, tc.offset, l, o, tc.wantLimit, tc.wantOffset)
		}
	}
}
