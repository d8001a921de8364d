// Package store is the record store for meetings and images. It wraps the
// SQLite queries in internal/db and publishes every committed write so live
// queries can re-run.
package store

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/hpungsan/acta/internal/db"
	"github.com/hpungsan/acta/internal/errors"
	"github.com/hpungsan/acta/internal/meeting"
)

// Store is safe for concurrent use.
type Store struct {
	db     *sql.DB
	now    func() time.Time
	hub    *hub
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for created/updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used for live query failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New returns a Store over an initialized database (see db.Init).
func New(database *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:     database,
		now:    time.Now,
		hub:    newHub(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the underlying handle for bulk readers such as export.
func (s *Store) DB() *sql.DB {
	return s.db
}

// CreateMeeting stores a new meeting. A zero Date defaults to the creation
// time; tags are normalized. The returned meeting carries the new id.
func (s *Store) CreateMeeting(ctx context.Context, d meeting.Draft) (*meeting.Meeting, error) {
	now := s.now()
	m := &meeting.Meeting{
		Title:     d.Title,
		Date:      d.Date,
		Notes:     d.Notes,
		Minutes:   d.Minutes,
		Tags:      meeting.NormalizeTags(d.Tags),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if m.Date.IsZero() {
		m.Date = now
	}

	id, err := db.InsertMeeting(ctx, s.db, m)
	if err != nil {
		return nil, err
	}
	m.ID = id
	// Match the row as scanned back.
	m.Date = time.Unix(0, m.Date.UnixNano())
	m.CreatedAt = time.Unix(0, now.UnixNano())
	m.UpdatedAt = m.CreatedAt

	s.hub.publish(Change{Entity: EntityMeeting, Op: OpCreate, ID: id, MeetingID: id})
	return m, nil
}

// GetMeeting returns the meeting or NOT_FOUND.
func (s *Store) GetMeeting(ctx context.Context, id int64) (*meeting.Meeting, error) {
	return db.GetMeeting(ctx, s.db, id)
}

// UpdateMeeting merges the patch and sets updatedAt to now.
// Tags in the patch are stored as given; callers keep them unique.
func (s *Store) UpdateMeeting(ctx context.Context, id int64, p meeting.Patch) (*meeting.Meeting, error) {
	m, err := db.UpdateMeeting(ctx, s.db, id, p, s.now())
	if err != nil {
		return nil, err
	}
	s.hub.publish(Change{Entity: EntityMeeting, Op: OpUpdate, ID: id, MeetingID: id})
	return m, nil
}

// DeleteMeeting removes a meeting and, by cascade, its images.
// Returns the number of images removed.
func (s *Store) DeleteMeeting(ctx context.Context, id int64) (int, error) {
	removed, err := db.DeleteMeeting(ctx, s.db, id)
	if err != nil {
		return 0, err
	}
	s.hub.publish(Change{Entity: EntityMeeting, Op: OpDelete, ID: id, MeetingID: id})
	return removed, nil
}

// Exists reports whether a meeting with id is stored.
func (s *Store) Exists(ctx context.Context, id int64) (bool, error) {
	return db.MeetingExists(ctx, s.db, id)
}

// ListMeetings returns all meetings, newest first.
func (s *Store) ListMeetings(ctx context.Context) ([]meeting.Meeting, error) {
	return db.ListMeetings(ctx, s.db)
}

// ListMeetingsByTag returns meetings carrying tag exactly, newest first.
func (s *Store) ListMeetingsByTag(ctx context.Context, tag string) ([]meeting.Meeting, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, errors.NewInvalidRequest("tag is required")
	}
	return db.ListMeetingsByTag(ctx, s.db, tag)
}

// AddImage attaches an image to an existing meeting.
func (s *Store) AddImage(ctx context.Context, in meeting.NewImage) (*meeting.Image, error) {
	if len(in.Blob) == 0 {
		return nil, errors.NewInvalidRequest("image data is empty")
	}
	if strings.TrimSpace(in.MimeType) == "" {
		return nil, errors.NewInvalidRequest("mime type is required")
	}

	img := &meeting.Image{
		MeetingID: in.MeetingID,
		Blob:      in.Blob,
		MimeType:  in.MimeType,
		Name:      in.Name,
		Size:      len(in.Blob),
		CreatedAt: time.Unix(0, s.now().UnixNano()),
	}
	id, err := db.InsertImage(ctx, s.db, img)
	if err != nil {
		return nil, err
	}
	img.ID = id

	s.hub.publish(Change{Entity: EntityImage, Op: OpCreate, ID: id, MeetingID: in.MeetingID})
	return img, nil
}

// GetImage returns an image with its blob, or NOT_FOUND.
func (s *Store) GetImage(ctx context.Context, id int64) (*meeting.Image, error) {
	return db.GetImage(ctx, s.db, id)
}

// ListImagesForMeeting returns a meeting's images, oldest first.
func (s *Store) ListImagesForMeeting(ctx context.Context, meetingID int64) ([]meeting.Image, error) {
	return db.ListImages(ctx, s.db, meetingID)
}

// DeleteImage removes an image. A missing id is not an error.
func (s *Store) DeleteImage(ctx context.Context, id int64) error {
	meetingID, deleted, err := db.DeleteImage(ctx, s.db, id)
	if err != nil {
		return err
	}
	if deleted {
		s.hub.publish(Change{Entity: EntityImage, Op: OpDelete, ID: id, MeetingID: meetingID})
	}
	return nil
}

// Restore writes a meeting and its images with their original ids (import).
func (s *Store) Restore(ctx context.Context, m *meeting.Meeting, images []meeting.Image, replace bool) error {
	return s.RestoreAll(ctx, []db.Restoration{{Meeting: m, Images: images}}, replace)
}

// RestoreAll restores a batch atomically.
func (s *Store) RestoreAll(ctx context.Context, batch []db.Restoration, replace bool) error {
	if len(batch) == 0 {
		return nil
	}
	if err := db.RestoreMeetings(ctx, s.db, batch, replace); err != nil {
		return err
	}
	op := OpCreate
	if replace {
		op = OpUpdate
	}
	for _, r := range batch {
		id := r.Meeting.ID
		s.hub.publish(Change{Entity: EntityMeeting, Op: op, ID: id, MeetingID: id})
		s.hub.publish(Change{Entity: EntityImage, Op: op, MeetingID: id})
	}
	return nil
}

// WatchMeetings is the live form of ListMeetings. Any meeting change
// re-runs the query; image changes do not.
func (s *Store) WatchMeetings(ctx context.Context) *Live[[]meeting.Meeting] {
	match := func(c Change) bool { return c.Entity == EntityMeeting }
	return newLive(ctx, s.hub, s.logger, "meetings", match, s.ListMeetings)
}

// WatchImages is the live form of ListImagesForMeeting.
func (s *Store) WatchImages(ctx context.Context, meetingID int64) *Live[[]meeting.Image] {
	match := func(c Change) bool {
		return c.MeetingID == meetingID && (c.Entity == EntityImage || c.Op == OpDelete)
	}
	query := func(ctx context.Context) ([]meeting.Image, error) {
		return s.ListImagesForMeeting(ctx, meetingID)
	}
	return newLive(ctx, s.hub, s.logger, "images", match, query)
}
