package meeting

import (
	"encoding/base64"
	"fmt"
	"time"
)

// ExportSchemaVersion is written in the header line of every export file.
const ExportSchemaVersion = "1.0"

// ExportRecord represents one line of a JSONL export file.
// The first line is a header (ActaExport=true); every other line is a meeting
// together with its images.
type ExportRecord struct {
	// Header detection field - true only for header line
	ActaExport bool `json:"_acta_export,omitempty"`

	// Header fields (only present in header line)
	SchemaVersion string `json:"schema_version,omitempty"`
	ExportedAt    int64  `json:"exported_at,omitempty"`

	// Meeting fields
	ID        int64         `json:"id"`
	Title     string        `json:"title"`
	Date      int64         `json:"date"`
	Notes     string        `json:"notes"`
	Minutes   *string       `json:"minutes"`
	Tags      []string      `json:"tags"`
	CreatedAt int64         `json:"created_at"`
	UpdatedAt int64         `json:"updated_at"`
	Images    []ExportImage `json:"images"`
}

// ExportImage is an image embedded in an export line, blob base64-encoded.
type ExportImage struct {
	ID        int64  `json:"id"`
	MimeType  string `json:"mime_type"`
	Name      string `json:"name"`
	Data      string `json:"data"`
	CreatedAt int64  `json:"created_at"`
}

// NewExportHeader returns the header line for an export written at t.
func NewExportHeader(t time.Time) *ExportRecord {
	return &ExportRecord{
		ActaExport:    true,
		SchemaVersion: ExportSchemaVersion,
		ExportedAt:    t.UnixMilli(),
	}
}

// ToExportRecord converts a meeting and its images to an export line.
func ToExportRecord(m *Meeting, images []Image) *ExportRecord {
	rec := &ExportRecord{
		ID:        m.ID,
		Title:     m.Title,
		Date:      m.Date.UnixMilli(),
		Notes:     m.Notes,
		Minutes:   m.Minutes,
		Tags:      m.Tags,
		CreatedAt: m.CreatedAt.UnixMilli(),
		UpdatedAt: m.UpdatedAt.UnixMilli(),
		Images:    make([]ExportImage, 0, len(images)),
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	for _, img := range images {
		rec.Images = append(rec.Images, ExportImage{
			ID:        img.ID,
			MimeType:  img.MimeType,
			Name:      img.Name,
			Data:      base64.StdEncoding.EncodeToString(img.Blob),
			CreatedAt: img.CreatedAt.UnixMilli(),
		})
	}
	return rec
}

// ToMeeting converts an export line back to a Meeting and its images.
// Tags are normalized so a hand-edited file cannot break tag uniqueness.
func (r *ExportRecord) ToMeeting() (*Meeting, []Image, error) {
	m := &Meeting{
		ID:        r.ID,
		Title:     r.Title,
		Date:      time.UnixMilli(r.Date),
		Notes:     r.Notes,
		Minutes:   r.Minutes,
		Tags:      NormalizeTags(r.Tags),
		CreatedAt: time.UnixMilli(r.CreatedAt),
		UpdatedAt: time.UnixMilli(r.UpdatedAt),
	}

	images := make([]Image, 0, len(r.Images))
	for _, ei := range r.Images {
		blob, err := base64.StdEncoding.DecodeString(ei.Data)
		if err != nil {
			return nil, nil, fmt.Errorf("image %d: invalid base64: %w", ei.ID, err)
		}
		images = append(images, Image{
			ID:        ei.ID,
			MeetingID: r.ID,
			Blob:      blob,
			MimeType:  ei.MimeType,
			Name:      ei.Name,
			Size:      len(blob),
			CreatedAt: time.UnixMilli(ei.CreatedAt),
		})
	}
	return m, images, nil
}
