package mcp

import "github.com/mark3labs/mcp-go/mcp"

var stringItems = mcp.Items(map[string]any{"type": "string"})

var createToolDef = mcp.NewTool("meeting_create",
	mcp.WithDescription("Create a meeting record. All fields are optional; an empty call creates an untitled meeting dated now. Returns the new numeric id."),
	mcp.WithString("title", mcp.Description("Meeting title")),
	mcp.WithString("notes", mcp.Description("Raw meeting notes (markdown or plain text)")),
	mcp.WithArray("tags", mcp.Description("Tags; trimmed and de-duplicated"), stringItems),
	mcp.WithNumber("date", mcp.Description("Meeting date as unix milliseconds (default: now)")),
)

var fetchToolDef = mcp.NewTool("meeting_fetch",
	mcp.WithDescription("Fetch one meeting with notes, minutes and tags. Image bytes are never returned; use include_images for metadata."),
	mcp.WithNumber("id", mcp.Description("Meeting id"), mcp.Required()),
	mcp.WithBoolean("include_notes", mcp.Description("Include raw notes (default true)")),
	mcp.WithBoolean("include_images", mcp.Description("Include image metadata (default false)")),
)

var updateToolDef = mcp.NewTool("meeting_update",
	mcp.WithDescription("Update fields of a meeting. Omitted fields are unchanged; updated_at always advances. tags replaces the whole tag list."),
	mcp.WithNumber("id", mcp.Description("Meeting id"), mcp.Required()),
	mcp.WithString("title", mcp.Description("New title")),
	mcp.WithString("notes", mcp.Description("New notes")),
	mcp.WithString("minutes", mcp.Description("New minutes (markdown)")),
	mcp.WithArray("tags", mcp.Description("New tag list"), stringItems),
)

var listToolDef = mcp.NewTool("meeting_list",
	mcp.WithDescription("List meetings newest first as summary cards. query matches title and tags case-insensitively; tag filters by exact tag."),
	mcp.WithString("query", mcp.Description("Search term")),
	mcp.WithString("tag", mcp.Description("Exact tag filter")),
	mcp.WithNumber("limit", mcp.Description("Page size (default 50, max 500)")),
	mcp.WithNumber("offset", mcp.Description("Page offset (default 0)")),
)

var deleteToolDef = mcp.NewTool("meeting_delete",
	mcp.WithDescription("Permanently delete a meeting and all of its images."),
	mcp.WithNumber("id", mcp.Description("Meeting id"), mcp.Required()),
)

var tagAddToolDef = mcp.NewTool("meeting_tag_add",
	mcp.WithDescription("Add one tag to a meeting. Blank or already-present tags leave the meeting unchanged."),
	mcp.WithNumber("id", mcp.Description("Meeting id"), mcp.Required()),
	mcp.WithString("tag", mcp.Description("Tag to add"), mcp.Required()),
)

var tagRemoveToolDef = mcp.NewTool("meeting_tag_remove",
	mcp.WithDescription("Remove one tag from a meeting."),
	mcp.WithNumber("id", mcp.Description("Meeting id"), mcp.Required()),
	mcp.WithString("tag", mcp.Description("Tag to remove"), mcp.Required()),
)

var generateToolDef = mcp.NewTool("meeting_generate",
	mcp.WithDescription("Generate structured minutes (Summary, Key Decisions, Action Items, Visual References) and tags from the meeting's notes and images with Gemini. Replaces existing minutes and tags. Requires non-empty notes and a configured API key."),
	mcp.WithNumber("id", mcp.Description("Meeting id"), mcp.Required()),
)

var exportToolDef = mcp.NewTool("meeting_export",
	mcp.WithDescription("Export meetings with their images to a JSONL file in ~/.acta/exports or an allowed path."),
	mcp.WithString("path", mcp.Description("Destination .jsonl path (default: ~/.acta/exports/<tag|all>-<timestamp>.jsonl)")),
	mcp.WithString("tag", mcp.Description("Only export meetings with this tag")),
)

var importToolDef = mcp.NewTool("meeting_import",
	mcp.WithDescription("Import meetings from a JSONL export file. Ids are preserved."),
	mcp.WithString("path", mcp.Description("Source .jsonl path"), mcp.Required()),
	mcp.WithString("mode", mcp.Description("error (default): import nothing on any collision; replace: overwrite meetings with the same id"), mcp.Enum("error", "replace")),
)

var imageAddToolDef = mcp.NewTool("image_add",
	mcp.WithDescription("Attach images to a meeting, from base64 data or from files on disk. Non-image items are skipped and reported."),
	mcp.WithNumber("meeting_id", mcp.Description("Meeting id"), mcp.Required()),
	mcp.WithArray("images", mcp.Description("Inline images"), mcp.Items(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"data":      map[string]any{"type": "string", "description": "base64-encoded bytes"},
			"mime_type": map[string]any{"type": "string"},
			"name":      map[string]any{"type": "string"},
		},
		"required": []string{"data"},
	})),
	mcp.WithArray("paths", mcp.Description("Image files on disk"), stringItems),
)

var imageListToolDef = mcp.NewTool("image_list",
	mcp.WithDescription("List image metadata for a meeting, oldest first."),
	mcp.WithNumber("meeting_id", mcp.Description("Meeting id"), mcp.Required()),
)

var imageRemoveToolDef = mcp.NewTool("image_remove",
	mcp.WithDescription("Remove one image. Removing a missing image is not an error."),
	mcp.WithNumber("id", mcp.Description("Image id"), mcp.Required()),
)
