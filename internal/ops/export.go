package ops

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/hpungsan/acta/internal/config"
	"github.com/hpungsan/acta/internal/errors"
	"github.com/hpungsan/acta/internal/meeting"
	"github.com/hpungsan/acta/internal/store"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path string // optional, default: ~/.acta/exports/<tag|all>-<timestamp>.jsonl
	Tag  string // optional, export only meetings with this tag
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	Images     int    `json:"images"`
	ExportedAt int64  `json:"exported_at"`
}

// Export writes meetings and their images to a JSONL file: one header line,
// then one meeting per line with images inlined as base64.
// The file is written to a temp name and renamed into place, so a failed
// export leaves any existing file untouched.
func Export(ctx context.Context, st *store.Store, cfg *config.Config, input ExportInput) (*ExportOutput, error) {
	now := time.Now()

	exportPath := input.Path
	if exportPath == "" {
		var err error
		exportPath, err = defaultExportPath(input.Tag, now)
		if err != nil {
			return nil, err
		}
	}
	if err := ValidatePath(exportPath, PathCheckWrite, cfg); err != nil {
		return nil, err
	}

	var (
		meetings []meeting.Meeting
		err      error
	)
	if strings.TrimSpace(input.Tag) != "" {
		meetings, err = st.ListMeetingsByTag(ctx, input.Tag)
	} else {
		meetings, err = st.ListMeetings(ctx)
	}
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(meeting.NewExportHeader(now)); err != nil {
		return nil, errors.NewInternal(err)
	}

	// Oldest first so a re-import recreates meetings in creation order.
	imageCount := 0
	for i := len(meetings) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelled("export")
		}
		m := &meetings[i]
		images, err := st.ListImagesForMeeting(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		if err := enc.Encode(meeting.ToExportRecord(m, images)); err != nil {
			return nil, errors.NewInternal(err)
		}
		imageCount += len(images)
	}

	if err := w.Flush(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}
	// Close before rename (required on Windows).
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	if isSymlink(exportPath) {
		return nil, errors.NewInvalidRequest("export path is a symlink")
	}
	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return &ExportOutput{
		Path:       exportPath,
		Count:      len(meetings),
		Images:     imageCount,
		ExportedAt: now.UnixMilli(),
	}, nil
}

// defaultExportPath returns ~/.acta/exports/<tag|all>-<timestamp>.jsonl.
func defaultExportPath(tag string, now time.Time) (string, error) {
	dir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}
	name := "all"
	if tag = strings.TrimSpace(tag); tag != "" {
		name = SanitizeForFilename(strings.ToLower(tag))
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%s.jsonl", name, now.Format("2006-01-02T150405"))), nil
}
