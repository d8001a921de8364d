package ops

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hpungsan/acta/internal/errors"
	"github.com/hpungsan/acta/internal/meeting"
)

func TestCreateAndFetch(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()

	created, err := Create(ctx, st, CreateInput{Title: "Sprint review", Notes: "demo went well", Tags: []string{" eng ", "eng", "demo"}})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID <= 0 {
		t.Fatalf("ID = %d, want positive", created.ID)
	}
	if len(created.Tags) != 2 {
		t.Errorf("Tags = %v, want normalized [eng demo]", created.Tags)
	}

	out, err := Fetch(ctx, st, FetchInput{ID: created.ID})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if out.Title != "Sprint review" || out.Notes != "demo went well" {
		t.Errorf("Fetch = %+v", out.Meeting)
	}
	if out.Processed {
		t.Error("Processed = true, want false without minutes")
	}
	if out.Images != nil {
		t.Errorf("Images = %v, want nil when not requested", out.Images)
	}
}

func TestFetch_Options(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	m := mustCreate(t, st, meeting.Draft{Notes: "secret notes", Minutes: stringPtr("## Summary")})
	if _, err := st.AddImage(ctx, meeting.NewImage{MeetingID: m.ID, Blob: pngBytes, MimeType: "image/png", Name: "a.png"}); err != nil {
		t.Fatalf("AddImage failed: %v", err)
	}

	noNotes := false
	out, err := Fetch(ctx, st, FetchInput{ID: m.ID, IncludeNotes: &noNotes, IncludeImages: true})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if out.Notes != "" {
		t.Errorf("Notes = %q, want empty", out.Notes)
	}
	if !out.Processed {
		t.Error("Processed = false, want true")
	}
	if len(out.Images) != 1 || out.Images[0].Name != "a.png" {
		t.Fatalf("Images = %+v", out.Images)
	}

	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := decoded["title"]; !ok {
		t.Error("embedded meeting fields should be flattened into the output")
	}
	img := decoded["images"].([]any)[0].(map[string]any)
	if _, ok := img["blob"]; ok {
		t.Error("image blobs must not be serialized")
	}
}

func TestFetch_NotFound(t *testing.T) {
	st := setupStore(t)
	_, err := Fetch(context.Background(), st, FetchInput{ID: 99})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}

	_, err = Fetch(context.Background(), st, FetchInput{ID: 0})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for id 0, got: %v", err)
	}
}
