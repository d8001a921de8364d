package meeting

import "time"

// Meeting is one recorded session: authored notes, generated minutes and tags.
type Meeting struct {
	// ID is assigned by the store on creation and never reused
	ID int64 `json:"id"`

	// Title defaults to empty
	Title string `json:"title"`

	// Date is set at creation and not auto-updated
	Date time.Time `json:"date"`

	// Notes is the primary authored content (markdown or plain text)
	Notes string `json:"notes"`

	// Minutes is absent until generated, then editable (nullable)
	Minutes *string `json:"minutes,omitempty"`

	// Tags are unique, case-sensitive, in insertion order
	Tags []string `json:"tags"`

	// CreatedAt is immutable after creation
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is refreshed on every write
	UpdatedAt time.Time `json:"updated_at"`
}

// MinutesText returns the minutes or "" when none were generated.
func (m *Meeting) MinutesText() string {
	if m.Minutes == nil {
		return ""
	}
	return *m.Minutes
}

// Clone returns a deep copy safe to hand across goroutines.
func (m Meeting) Clone() Meeting {
	out := m
	if m.Minutes != nil {
		minutes := *m.Minutes
		out.Minutes = &minutes
	}
	out.Tags = append([]string(nil), m.Tags...)
	return out
}

// Image is a binary attachment belonging to exactly one meeting.
type Image struct {
	ID        int64     `json:"id"`
	MeetingID int64     `json:"meeting_id"`
	Blob      []byte    `json:"-"`
	MimeType  string    `json:"mime_type"`
	Name      string    `json:"name"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Draft holds the caller-supplied initial values for a new meeting.
// Zero Date means "now".
type Draft struct {
	Title   string
	Date    time.Time
	Notes   string
	Minutes *string
	Tags    []string
}

// NewImage holds the fields needed to attach an image.
type NewImage struct {
	MeetingID int64
	Blob      []byte
	MimeType  string
	Name      string
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Title   *string
	Notes   *string
	Minutes *string
	Tags    *[]string
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Notes == nil && p.Minutes == nil && p.Tags == nil
}

// Fields lists the names of the fields the patch touches, for logging.
func (p Patch) Fields() []string {
	var fields []string
	if p.Title != nil {
		fields = append(fields, "title")
	}
	if p.Notes != nil {
		fields = append(fields, "notes")
	}
	if p.Minutes != nil {
		fields = append(fields, "minutes")
	}
	if p.Tags != nil {
		fields = append(fields, "tags")
	}
	return fields
}
