package ops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/acta/internal/attach"
	"github.com/hpungsan/acta/internal/errors"
	"github.com/hpungsan/acta/internal/meeting"
	"github.com/hpungsan/acta/internal/session"
	"github.com/hpungsan/acta/internal/store"
)

// ImageAddInput contains parameters for the ImageAdd operation.
// Paths are read from disk; Items carry bytes already in memory (uploads,
// MCP base64 payloads). Both may be set; paths are attached first.
type ImageAddInput struct {
	MeetingID int64
	Paths     []string
	Items     []attach.Item
}

// ImageAddOutput contains the result of the ImageAdd operation.
type ImageAddOutput struct {
	MeetingID int64            `json:"meeting_id"`
	Accepted  []meeting.Image  `json:"accepted"`
	Skipped   []attach.Skipped `json:"skipped"`
}

// ImageAdd attaches the image items among input to a meeting. Non-images
// are reported as skipped, not as errors.
func ImageAdd(ctx context.Context, st *store.Store, input ImageAddInput) (*ImageAddOutput, error) {
	if err := ValidateID(input.MeetingID); err != nil {
		return nil, err
	}
	if len(input.Paths) == 0 && len(input.Items) == 0 {
		return nil, errors.NewInvalidRequest("at least one file is required")
	}
	output := &ImageAddOutput{
		MeetingID: input.MeetingID,
		Accepted:  []meeting.Image{},
		Skipped:   []attach.Skipped{},
	}

	err := editMeeting(ctx, st, input.MeetingID, func(ctrl *session.Controller) error {
		if len(input.Paths) > 0 {
			out, err := attach.AcceptFiles(ctx, ctrl, input.Paths)
			if err != nil {
				return err
			}
			output.Accepted = append(output.Accepted, out.Accepted...)
			output.Skipped = append(output.Skipped, out.Skipped...)
		}
		if len(input.Items) > 0 {
			out, err := attach.Accept(ctx, ctrl, input.Items)
			if err != nil {
				return err
			}
			offset := len(input.Paths)
			for _, s := range out.Skipped {
				s.Index += offset
				output.Skipped = append(output.Skipped, s)
			}
			output.Accepted = append(output.Accepted, out.Accepted...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return output, nil
}

// ImageListInput contains parameters for the ImageList operation.
type ImageListInput struct {
	MeetingID int64
}

// ImageListOutput contains the result of the ImageList operation.
type ImageListOutput struct {
	MeetingID int64           `json:"meeting_id"`
	Items     []meeting.Image `json:"items"`
}

// ImageList returns image metadata for a meeting, oldest first.
func ImageList(ctx context.Context, st *store.Store, input ImageListInput) (*ImageListOutput, error) {
	if err := ValidateID(input.MeetingID); err != nil {
		return nil, err
	}
	exists, err := st.Exists(ctx, input.MeetingID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.NewNotFound("meeting", input.MeetingID)
	}

	images, err := st.ListImagesForMeeting(ctx, input.MeetingID)
	if err != nil {
		return nil, err
	}
	return &ImageListOutput{MeetingID: input.MeetingID, Items: images}, nil
}

// ImageRemoveInput contains parameters for the ImageRemove operation.
type ImageRemoveInput struct {
	ID int64
}

// ImageRemoveOutput contains the result of the ImageRemove operation.
type ImageRemoveOutput struct {
	ID      int64 `json:"id"`
	Removed bool  `json:"removed"`
}

// ImageRemove deletes one image. Removing a missing image is not an error.
func ImageRemove(ctx context.Context, st *store.Store, input ImageRemoveInput) (*ImageRemoveOutput, error) {
	if err := ValidateID(input.ID); err != nil {
		return nil, err
	}
	img, err := st.GetImage(ctx, input.ID)
	if errors.Is(err, errors.ErrNotFound) {
		return &ImageRemoveOutput{ID: input.ID, Removed: false}, nil
	}
	if err != nil {
		return nil, err
	}

	err = editMeeting(ctx, st, img.MeetingID, func(ctrl *session.Controller) error {
		return ctrl.RemoveImage(ctx, input.ID)
	})
	if errors.Is(err, errors.ErrNotFound) {
		// The meeting went away, taking the image with it.
		return &ImageRemoveOutput{ID: input.ID, Removed: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &ImageRemoveOutput{ID: input.ID, Removed: true}, nil
}

// ImageSaveInput contains parameters for the ImageSave operation.
type ImageSaveInput struct {
	ID   int64
	Path string // file or existing directory; existing files are never overwritten
}

// ImageSaveOutput contains the result of the ImageSave operation.
type ImageSaveOutput struct {
	ID       int64  `json:"id"`
	Path     string `json:"path"`
	MimeType string `json:"mime_type"`
	Size     int    `json:"size"`
}

// ImageSave writes an image's bytes to disk.
func ImageSave(ctx context.Context, st *store.Store, input ImageSaveInput) (*ImageSaveOutput, error) {
	if err := ValidateID(input.ID); err != nil {
		return nil, err
	}
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(input.Path) {
		return nil, errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	img, err := st.GetImage(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	path := filepath.Clean(input.Path)
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, SanitizeForFilename(attach.DisplayName(img.Name, img.MimeType)))
	}

	file, err := openFileNoFollow(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, errors.NewConflict(fmt.Sprintf("%s already exists", path))
		}
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to create image file: %w", err))
	}
	defer file.Close()

	if _, err := file.Write(img.Blob); err != nil {
		os.Remove(path)
		return nil, errors.NewInternal(err)
	}

	return &ImageSaveOutput{
		ID:       img.ID,
		Path:     path,
		MimeType: img.MimeType,
		Size:     img.Size,
	}, nil
}
