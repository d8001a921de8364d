package ops

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hpungsan/acta/internal/config"
	"github.com/hpungsan/acta/internal/db"
	"github.com/hpungsan/acta/internal/errors"
	"github.com/hpungsan/acta/internal/meeting"
	"github.com/hpungsan/acta/internal/store"
)

// ImportMode controls collision behavior during import.
type ImportMode string

const (
	ImportModeError   ImportMode = "error"   // fail on any problem, import nothing
	ImportModeReplace ImportMode = "replace" // overwrite meetings with the same id
)

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required
	Mode ImportMode // default: error
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Replaced int           `json:"replaced"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError represents a problem with one line of the import file.
type ImportError struct {
	Line    int    `json:"line"`
	ID      int64  `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type importRecord struct {
	line int
	db.Restoration
}

// Import reads an export file back into the store. Ids are preserved.
//
// Mode error is all or nothing: any unreadable line or id collision aborts
// the import and is reported in Errors. Mode replace imports line by line,
// overwriting existing meetings and skipping bad lines.
func Import(ctx context.Context, st *store.Store, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	if input.Mode != ImportModeError && input.Mode != ImportModeReplace {
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace")
	}
	if err := ValidatePath(input.Path, PathCheckRead, cfg); err != nil {
		return nil, err
	}

	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	records, parseErrors := parseExportFile(file)

	switch input.Mode {
	case ImportModeReplace:
		return importReplace(ctx, st, records, parseErrors)
	default:
		return importAll(ctx, st, records, parseErrors)
	}
}

// parseExportFile reads one JSON object per line. Lines may be large
// (images are inlined), so no scanner token limit applies.
func parseExportFile(r io.Reader) ([]importRecord, []ImportError) {
	var (
		records     []importRecord
		parseErrors []ImportError
	)
	reader := bufio.NewReader(r)
	lineNum := 0

	for {
		line, readErr := reader.ReadBytes('\n')
		if len(line) > 0 {
			lineNum++
			if rec, ierr := parseLine(lineNum, line); ierr != nil {
				parseErrors = append(parseErrors, *ierr)
			} else if rec != nil {
				records = append(records, *rec)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "READ_ERROR",
				Message: fmt.Sprintf("failed to read file: %v", readErr),
			})
			break
		}
	}
	return records, parseErrors
}

// parseLine returns nil, nil for blank and header lines.
func parseLine(lineNum int, line []byte) (*importRecord, *ImportError) {
	if len(bytes.TrimSpace(line)) == 0 {
		return nil, nil
	}

	var rec meeting.ExportRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, &ImportError{Line: lineNum, Code: "PARSE_ERROR", Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if rec.ActaExport {
		return nil, nil
	}
	if rec.ID <= 0 {
		return nil, &ImportError{Line: lineNum, Code: "INVALID_RECORD", Message: "missing or invalid id field"}
	}

	m, images, err := rec.ToMeeting()
	if err != nil {
		return nil, &ImportError{Line: lineNum, ID: rec.ID, Code: "INVALID_RECORD", Message: err.Error()}
	}
	return &importRecord{line: lineNum, Restoration: db.Restoration{Meeting: m, Images: images}}, nil
}

func importAll(ctx context.Context, st *store.Store, records []importRecord, parseErrors []ImportError) (*ImportOutput, error) {
	if len(parseErrors) > 0 {
		return &ImportOutput{Errors: parseErrors}, nil
	}

	var collisions []ImportError
	seen := make(map[int64]int, len(records))
	for _, rec := range records {
		id := rec.Meeting.ID
		if first, dup := seen[id]; dup {
			collisions = append(collisions, ImportError{
				Line:    rec.line,
				ID:      id,
				Code:    "DUPLICATE_ID",
				Message: fmt.Sprintf("meeting %d already appears on line %d", id, first),
			})
			continue
		}
		seen[id] = rec.line

		exists, err := st.Exists(ctx, id)
		if err != nil {
			return nil, err
		}
		if exists {
			collisions = append(collisions, ImportError{
				Line:    rec.line,
				ID:      id,
				Code:    "ID_COLLISION",
				Message: fmt.Sprintf("meeting %d already exists", id),
			})
		}
	}
	if len(collisions) > 0 {
		return &ImportOutput{Errors: collisions}, nil
	}

	batch := make([]db.Restoration, 0, len(records))
	for _, rec := range records {
		batch = append(batch, rec.Restoration)
	}
	if err := st.RestoreAll(ctx, batch, false); err != nil {
		return nil, err
	}
	return &ImportOutput{Imported: len(batch), Errors: []ImportError{}}, nil
}

func importReplace(ctx context.Context, st *store.Store, records []importRecord, parseErrors []ImportError) (*ImportOutput, error) {
	out := &ImportOutput{
		Skipped: len(parseErrors),
		Errors:  append([]ImportError{}, parseErrors...),
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelled("import")
		}
		id := rec.Meeting.ID
		exists, err := st.Exists(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := st.Restore(ctx, rec.Meeting, rec.Images, true); err != nil {
			code := "INSERT_FAILED"
			if ae, ok := errors.As(err); ok {
				code = string(ae.Code)
			}
			out.Errors = append(out.Errors, ImportError{Line: rec.line, ID: id, Code: code, Message: err.Error()})
			out.Skipped++
			continue
		}
		if exists {
			out.Replaced++
		}
		out.Imported++
	}
	return out, nil
}
