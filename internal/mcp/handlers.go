package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/acta/internal/ai"
	"github.com/hpungsan/acta/internal/attach"
	"github.com/hpungsan/acta/internal/config"
	"github.com/hpungsan/acta/internal/errors"
	"github.com/hpungsan/acta/internal/ops"
	"github.com/hpungsan/acta/internal/store"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store  *store.Store
	cfg    *config.Config
	gen    ai.Generator
	logger *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Deps) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Handlers{store: deps.Store, cfg: cfg, gen: deps.Generator, logger: logger}
}

// Request types for each tool

// CreateRequest represents the arguments for meeting_create.
type CreateRequest struct {
	Title string   `json:"title,omitempty"`
	Notes string   `json:"notes,omitempty"`
	Tags  []string `json:"tags,omitempty"`
	Date  *int64   `json:"date,omitempty"`
}

// FetchRequest represents the arguments for meeting_fetch.
type FetchRequest struct {
	ID            int64 `json:"id"`
	IncludeNotes  *bool `json:"include_notes,omitempty"`
	IncludeImages bool  `json:"include_images,omitempty"`
}

// UpdateRequest represents the arguments for meeting_update.
type UpdateRequest struct {
	ID      int64     `json:"id"`
	Title   *string   `json:"title,omitempty"`
	Notes   *string   `json:"notes,omitempty"`
	Minutes *string   `json:"minutes,omitempty"`
	Tags    *[]string `json:"tags,omitempty"`
}

// ListRequest represents the arguments for meeting_list.
type ListRequest struct {
	Query  string `json:"query,omitempty"`
	Tag    string `json:"tag,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// IDRequest is shared by tools that take a single id.
type IDRequest struct {
	ID int64 `json:"id"`
}

// TagRequest represents the arguments for meeting_tag_add and meeting_tag_remove.
type TagRequest struct {
	ID  int64  `json:"id"`
	Tag string `json:"tag"`
}

// ExportRequest represents the arguments for meeting_export.
type ExportRequest struct {
	Path string `json:"path,omitempty"`
	Tag  string `json:"tag,omitempty"`
}

// ImportRequest represents the arguments for meeting_import.
type ImportRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

// ImageAddRequest represents the arguments for image_add.
type ImageAddRequest struct {
	MeetingID int64         `json:"meeting_id"`
	Images    []InlineImage `json:"images,omitempty"`
	Paths     []string      `json:"paths,omitempty"`
}

// InlineImage is one base64-encoded image in image_add.
type InlineImage struct {
	Data     string `json:"data"`
	MimeType string `json:"mime_type,omitempty"`
	Name     string `json:"name,omitempty"`
}

// MeetingRequest is shared by tools scoped to a meeting.
type MeetingRequest struct {
	MeetingID int64 `json:"meeting_id"`
}

// HandleCreate handles the meeting_create tool.
func (h *Handlers) HandleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[CreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	input := ops.CreateInput{Title: r.Title, Notes: r.Notes, Tags: r.Tags}
	if r.Date != nil {
		d := time.UnixMilli(*r.Date)
		input.Date = &d
	}

	result, err := ops.Create(ctx, h.store, input)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleFetch handles the meeting_fetch tool.
func (h *Handlers) HandleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[FetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Fetch(ctx, h.store, ops.FetchInput{
		ID:            r.ID,
		IncludeNotes:  r.IncludeNotes,
		IncludeImages: r.IncludeImages,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleUpdate handles the meeting_update tool.
func (h *Handlers) HandleUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[UpdateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Update(ctx, h.store, ops.UpdateInput{
		ID:      r.ID,
		Title:   r.Title,
		Notes:   r.Notes,
		Minutes: r.Minutes,
		Tags:    r.Tags,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleList handles the meeting_list tool.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(ctx, h.store, ops.ListInput{
		Query:  r.Query,
		Tag:    r.Tag,
		Limit:  r.Limit,
		Offset: r.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleDelete handles the meeting_delete tool.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Delete(ctx, h.store, ops.DeleteInput{ID: r.ID})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleTagAdd handles the meeting_tag_add tool.
func (h *Handlers) HandleTagAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[TagRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.TagAdd(ctx, h.store, ops.TagInput{ID: r.ID, Tag: r.Tag})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleTagRemove handles the meeting_tag_remove tool.
func (h *Handlers) HandleTagRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[TagRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.TagRemove(ctx, h.store, ops.TagInput{ID: r.ID, Tag: r.Tag})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleGenerate handles the meeting_generate tool.
func (h *Handlers) HandleGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if h.gen == nil {
		return errorResult(errors.NewConfiguration("minutes generation is not configured")), nil
	}

	result, err := ops.Generate(ctx, h.store, h.gen, ops.GenerateInput{
		ID:      r.ID,
		Timeout: h.cfg.GenerateTimeout(),
		Logger:  h.logger,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleExport handles the meeting_export tool.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.store, h.cfg, ops.ExportInput{Path: r.Path, Tag: r.Tag})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleImport handles the meeting_import tool.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Import(ctx, h.store, h.cfg, ops.ImportInput{Path: r.Path, Mode: ops.ImportMode(r.Mode)})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleImageAdd handles the image_add tool.
func (h *Handlers) HandleImageAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[ImageAddRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if len(r.Images) == 0 && len(r.Paths) == 0 {
		return errorResult(errors.NewInvalidRequest("images or paths is required")), nil
	}

	items := make([]attach.Item, 0, len(r.Images))
	for i, img := range r.Images {
		data, err := base64.StdEncoding.DecodeString(img.Data)
		if err != nil {
			e := errors.NewInvalidRequest("images[].data must be base64")
			e.Details = map[string]any{"index": i}
			return errorResult(e), nil
		}
		items = append(items, attach.Item{Data: data, MimeType: img.MimeType, Name: img.Name})
	}

	result, err := ops.ImageAdd(ctx, h.store, ops.ImageAddInput{
		MeetingID: r.MeetingID,
		Items:     items,
		Paths:     r.Paths,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleImageList handles the image_list tool.
func (h *Handlers) HandleImageList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[MeetingRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ImageList(ctx, h.store, ops.ImageListInput{MeetingID: r.MeetingID})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleImageRemove handles the image_remove tool.
func (h *Handlers) HandleImageRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ImageRemove(ctx, h.store, ops.ImageRemoveInput{ID: r.ID})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// errorResult creates an MCP error result from an error.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if actaErr, ok := errors.As(err); ok {
		errorObj := map[string]any{
			"code":    actaErr.Code,
			"message": actaErr.Message,
			"status":  actaErr.Status,
		}
		// Internal details can carry file paths or SQL text.
		if actaErr.Code != errors.ErrInternal && actaErr.Details != nil {
			errorObj["details"] = actaErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
