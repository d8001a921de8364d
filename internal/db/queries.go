package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/acta/internal/errors"
	"github.com/hpungsan/acta/internal/meeting"
)

const meetingColumns = `id, title, date, notes, minutes, tags_json, created_at, updated_at`

const imageColumns = `id, meeting_id, blob, mime_type, name, created_at`

// InsertMeeting stores a new meeting and returns the id assigned by SQLite.
// The meeting row and its tag index rows are written in one transaction.
func InsertMeeting(ctx context.Context, db *sql.DB, m *meeting.Meeting) (int64, error) {
	tagsJSON, err := encodeTags(m.Tags)
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO meetings (title, date, notes, minutes, tags_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		m.Title, m.Date.UnixNano(), m.Notes, toNullString(m.Minutes), tagsJSON,
		m.CreatedAt.UnixNano(), m.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return 0, errors.NewInternal(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, errors.NewInternal(err)
	}

	if err := replaceTagIndex(ctx, tx, id, m.Tags); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.NewInternal(err)
	}
	return id, nil
}

// GetMeeting retrieves a meeting by id.
func GetMeeting(ctx context.Context, db *sql.DB, id int64) (*meeting.Meeting, error) {
	row := db.QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, id)
	m, err := scanMeeting(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("meeting", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return m, nil
}

// UpdateMeeting merges the non-nil patch fields into the stored meeting and
// sets updated_at to now, even when the patch is empty. updated_at always
// moves forward by at least one nanosecond. Returns the row as stored after
// the write.
func UpdateMeeting(ctx context.Context, db *sql.DB, id int64, p meeting.Patch, now time.Time) (*meeting.Meeting, error) {
	sets := []string{"updated_at = MAX(?, updated_at + 1)"}
	args := []any{now.UnixNano()}

	if p.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *p.Title)
	}
	if p.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *p.Notes)
	}
	if p.Minutes != nil {
		sets = append(sets, "minutes = ?")
		args = append(args, *p.Minutes)
	}
	if p.Tags != nil {
		tagsJSON, err := encodeTags(*p.Tags)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "tags_json = ?")
		args = append(args, tagsJSON)
	}
	args = append(args, id)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `UPDATE meetings SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return nil, errors.NewNotFound("meeting", id)
	}

	if p.Tags != nil {
		if err := replaceTagIndex(ctx, tx, id, *p.Tags); err != nil {
			return nil, err
		}
	}

	m, err := scanMeeting(tx.QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, id))
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return m, nil
}

// DeleteMeeting removes a meeting. Its images and tag index rows go with it
// (ON DELETE CASCADE). Returns the number of images removed.
func DeleteMeeting(ctx context.Context, db *sql.DB, id int64) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	defer tx.Rollback()

	var images int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM images WHERE meeting_id = ?`, id).Scan(&images); err != nil {
		return 0, errors.NewInternal(err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM meetings WHERE id = ?`, id)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return 0, errors.NewNotFound("meeting", id)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.NewInternal(err)
	}
	return images, nil
}

// ListMeetings returns all meetings, newest first (created_at DESC, id DESC).
func ListMeetings(ctx context.Context, db *sql.DB) ([]meeting.Meeting, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+meetingColumns+`
		FROM meetings
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return collectMeetings(rows)
}

// ListMeetingsByTag returns meetings carrying tag exactly, newest first.
func ListMeetingsByTag(ctx context.Context, db *sql.DB, tag string) ([]meeting.Meeting, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT m.id, m.title, m.date, m.notes, m.minutes, m.tags_json, m.created_at, m.updated_at
		FROM meetings m
		JOIN meeting_tags t ON t.meeting_id = m.id
		WHERE t.tag = ?
		ORDER BY m.created_at DESC, m.id DESC
	`, tag)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return collectMeetings(rows)
}

// InsertImage attaches an image to an existing meeting and returns its id.
// Fails with NOT_FOUND when the meeting does not exist.
func InsertImage(ctx context.Context, db *sql.DB, img *meeting.Image) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	defer tx.Rollback()

	if err := requireMeeting(ctx, tx, img.MeetingID); err != nil {
		return 0, err
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO images (meeting_id, blob, mime_type, name, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, img.MeetingID, img.Blob, img.MimeType, img.Name, img.CreatedAt.UnixNano())
	if err != nil {
		if isForeignKeyError(err) {
			return 0, errors.NewNotFound("meeting", img.MeetingID)
		}
		return 0, errors.NewInternal(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, errors.NewInternal(err)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.NewInternal(err)
	}
	return id, nil
}

// GetImage retrieves an image, blob included.
func GetImage(ctx context.Context, db *sql.DB, id int64) (*meeting.Image, error) {
	row := db.QueryRowContext(ctx, `SELECT `+imageColumns+` FROM images WHERE id = ?`, id)
	img, err := scanImage(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("image", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return img, nil
}

// ListImages returns the images of a meeting in attachment order
// (created_at ASC, id ASC). An unknown meeting yields an empty list.
func ListImages(ctx context.Context, db *sql.DB, meetingID int64) ([]meeting.Image, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+imageColumns+`
		FROM images
		WHERE meeting_id = ?
		ORDER BY created_at ASC, id ASC
	`, meetingID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	images := []meeting.Image{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		images = append(images, *img)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return images, nil
}

// DeleteImage removes an image. Returns the owning meeting id and whether a
// row was deleted; a missing id is not an error.
func DeleteImage(ctx context.Context, db *sql.DB, id int64) (meetingID int64, deleted bool, err error) {
	err = db.QueryRowContext(ctx, `DELETE FROM images WHERE id = ? RETURNING meeting_id`, id).Scan(&meetingID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.NewInternal(err)
	}
	return meetingID, true, nil
}

// MeetingExists reports whether a meeting with id is stored.
func MeetingExists(ctx context.Context, db *sql.DB, id int64) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM meetings WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// Restoration is one meeting with its images as read from an export file.
type Restoration struct {
	Meeting *meeting.Meeting
	Images  []meeting.Image
}

// RestoreMeetings writes meetings and their images with their original ids,
// in one transaction: either every meeting is written or none is.
// With replace, an existing meeting with the same id is deleted first
// (cascading to its images); otherwise an id collision is a CONFLICT.
func RestoreMeetings(ctx context.Context, db *sql.DB, batch []Restoration, replace bool) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	for _, r := range batch {
		if err := restoreTx(ctx, tx, r.Meeting, r.Images, replace); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

func restoreTx(ctx context.Context, tx *sql.Tx, m *meeting.Meeting, images []meeting.Image, replace bool) error {
	tagsJSON, err := encodeTags(m.Tags)
	if err != nil {
		return err
	}

	if replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM meetings WHERE id = ?`, m.ID); err != nil {
			return errors.NewInternal(err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO meetings (id, title, date, notes, minutes, tags_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.ID, m.Title, m.Date.UnixNano(), m.Notes, toNullString(m.Minutes), tagsJSON,
		m.CreatedAt.UnixNano(), m.UpdatedAt.UnixNano(),
	)
	if err != nil {
		if isConstraintError(err) {
			return errors.NewConflict(fmt.Sprintf("meeting %d already exists", m.ID))
		}
		return errors.NewInternal(err)
	}

	if err := replaceTagIndex(ctx, tx, m.ID, m.Tags); err != nil {
		return err
	}

	for _, img := range images {
		if replace {
			if _, err := tx.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, img.ID); err != nil {
				return errors.NewInternal(err)
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO images (id, meeting_id, blob, mime_type, name, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, img.ID, m.ID, img.Blob, img.MimeType, img.Name, img.CreatedAt.UnixNano())
		if err != nil {
			if isConstraintError(err) {
				return errors.NewConflict(fmt.Sprintf("image %d already exists", img.ID))
			}
			return errors.NewInternal(err)
		}
	}
	return nil
}

func requireMeeting(ctx context.Context, tx *sql.Tx, id int64) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM meetings WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return errors.NewNotFound("meeting", id)
	}
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// replaceTagIndex rewrites the meeting_tags rows of one meeting.
func replaceTagIndex(ctx context.Context, tx *sql.Tx, meetingID int64, tags []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM meeting_tags WHERE meeting_id = ?`, meetingID); err != nil {
		return errors.NewInternal(err)
	}
	for i, tag := range tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO meeting_tags (meeting_id, tag, position) VALUES (?, ?, ?)`,
			meetingID, tag, i,
		); err != nil {
			return errors.NewInternal(err)
		}
	}
	return nil
}

// isConstraintError checks for SQLite UNIQUE or PRIMARY KEY violations.
func isConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}

// isForeignKeyError checks for SQLite FOREIGN KEY violations.
func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return string(data), nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func collectMeetings(rows *sql.Rows) ([]meeting.Meeting, error) {
	defer rows.Close()

	meetings := []meeting.Meeting{}
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		meetings = append(meetings, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return meetings, nil
}

// scanMeeting scans a single row into a Meeting struct.
func scanMeeting(row rowScanner) (*meeting.Meeting, error) {
	var (
		m                        meeting.Meeting
		minutes                  sql.NullString
		tagsJSON                 string
		date, created, updatedAt int64
	)

	if err := row.Scan(&m.ID, &m.Title, &date, &m.Notes, &minutes, &tagsJSON, &created, &updatedAt); err != nil {
		return nil, err
	}

	m.Minutes = fromNullString(minutes)
	m.Date = time.Unix(0, date)
	m.CreatedAt = time.Unix(0, created)
	m.UpdatedAt = time.Unix(0, updatedAt)

	m.Tags = []string{}
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
			return nil, err
		}
	}

	return &m, nil
}

func scanImage(row rowScanner) (*meeting.Image, error) {
	var (
		img     meeting.Image
		created int64
	)
	if err := row.Scan(&img.ID, &img.MeetingID, &img.Blob, &img.MimeType, &img.Name, &created); err != nil {
		return nil, err
	}
	img.CreatedAt = time.Unix(0, created)
	img.Size = len(img.Blob)
	return &img, nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
