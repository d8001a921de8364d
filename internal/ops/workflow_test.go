package ops

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/acta/internal/ai"
	"github.com/hpungsan/acta/internal/attach"
	"github.com/hpungsan/acta/internal/errors"
	"github.com/hpungsan/acta/internal/meeting"
)

// TestFullWorkflow exercises the meeting lifecycle:
// create → update → tag → image → generate → list → export → delete → import → fetch
func TestFullWorkflow(t *testing.T) {
	st := setupStore(t)
	ctx := context.Background()
	cfg := unsafeConfig()

	// 1. Create
	created, err := Create(ctx, st, CreateInput{})
	require.NoError(t, err)
	id := created.ID

	// 2. Update notes and title
	_, err = Update(ctx, st, UpdateInput{ID: id, Title: stringPtr("Launch sync"), Notes: stringPtr("Ship v2 on Monday. Alice owns docs.")})
	require.NoError(t, err)

	// 3. Tag
	_, err = TagAdd(ctx, st, TagInput{ID: id, Tag: "launch"})
	require.NoError(t, err)

	// 4. Attach an image
	added, err := ImageAdd(ctx, st, ImageAddInput{MeetingID: id, Items: []attach.Item{{Data: pngBytes, Name: "plan.png"}}})
	require.NoError(t, err)
	require.Len(t, added.Accepted, 1)

	// 5. Generate minutes
	var sentNotes string
	var sentImages int
	gen := ai.GeneratorFunc(func(_ context.Context, notes string, images []meeting.Image) (*ai.Result, error) {
		sentNotes, sentImages = notes, len(images)
		return &ai.Result{Minutes: "## Action Items\n- Alice: docs", Tags: []string{"launch", "docs"}}, nil
	})
	genOut, err := Generate(ctx, st, gen, GenerateInput{ID: id})
	require.NoError(t, err)
	require.Contains(t, sentNotes, "Ship v2")
	require.Equal(t, 1, sentImages)
	require.Equal(t, []string{"launch", "docs"}, genOut.Tags)

	// 6. List shows it as processed
	listOut, err := List(ctx, st, ListInput{Query: "DOCS"})
	require.NoError(t, err)
	require.Len(t, listOut.Items, 1)
	require.True(t, listOut.Items[0].Processed)

	// 7. Export
	path := filepath.Join(t.TempDir(), "all.jsonl")
	exportOut, err := Export(ctx, st, cfg, ExportInput{Path: path})
	require.NoError(t, err)
	require.Equal(t, 1, exportOut.Count)

	// 8. Delete
	_, err = Delete(ctx, st, DeleteInput{ID: id})
	require.NoError(t, err)
	_, err = Fetch(ctx, st, FetchInput{ID: id})
	require.True(t, errors.Is(err, errors.ErrNotFound))

	// 9. Import restores it under the same id
	importOut, err := Import(ctx, st, cfg, ImportInput{Path: path})
	require.NoError(t, err)
	require.Equal(t, 1, importOut.Imported)

	// 10. Fetch
	fetchOut, err := Fetch(ctx, st, FetchInput{ID: id, IncludeImages: true})
	require.NoError(t, err)
	require.Equal(t, "Launch sync", fetchOut.Title)
	require.True(t, fetchOut.Processed)
	require.Len(t, fetchOut.Images, 1)
	require.Equal(t, "plan.png", fetchOut.Images[0].Name)
}
