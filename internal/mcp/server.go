package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/acta/internal/ai"
	"github.com/hpungsan/acta/internal/config"
	"github.com/hpungsan/acta/internal/ops"
	"github.com/hpungsan/acta/internal/store"
)

// RecentResourceURI lists the newest meetings as JSON cards.
const RecentResourceURI = "acta://meetings/recent"

const recentLimit = 10

// Deps holds what the MCP tools need.
type Deps struct {
	Store     *store.Store
	Config    *config.Config
	Generator ai.Generator
	Logger    *slog.Logger
}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"meeting_create": {
		def:     createToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCreate },
	},
	"meeting_fetch": {
		def:     fetchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFetch },
	},
	"meeting_update": {
		def:     updateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUpdate },
	},
	"meeting_list": {
		def:     listToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleList },
	},
	"meeting_delete": {
		def:     deleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDelete },
	},
	"meeting_tag_add": {
		def:     tagAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTagAdd },
	},
	"meeting_tag_remove": {
		def:     tagRemoveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTagRemove },
	},
	"meeting_generate": {
		def:     generateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGenerate },
	},
	"meeting_export": {
		def:     exportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
	"meeting_import": {
		def:     importToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleImport },
	},
	"image_add": {
		def:     imageAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleImageAdd },
	},
	"image_list": {
		def:     imageListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleImageList },
	},
	"image_remove": {
		def:     imageRemoveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleImageRemove },
	},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns the names that match no tool.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates an MCP server with the acta tools and the recent
// meetings resource. Tools in cfg.DisabledTools are not registered.
func NewServer(deps Deps, version string) *server.MCPServer {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := server.NewMCPServer(
		"acta",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("acta is a local meeting-notes store. Meetings have notes, AI-generated minutes, tags and images."),
		server.WithRecovery(),
	)

	h := NewHandlers(deps)

	if unknown := ValidateDisabledTools(deps.Config.DisabledTools); len(unknown) > 0 {
		deps.Logger.Warn("unknown tools in disabled_tools", "tools", unknown)
	}
	disabled := make(map[string]bool, len(deps.Config.DisabledTools))
	for _, name := range deps.Config.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	s.AddResource(
		mcp.NewResource(
			RecentResourceURI,
			"Recent meetings",
			mcp.WithResourceDescription(fmt.Sprintf("The %d newest meetings as summary cards", recentLimit)),
			mcp.WithMIMEType("application/json"),
		),
		h.handleRecentResource,
	)

	return s
}

// Run serves MCP over stdio until stdin closes.
func Run(deps Deps, version string) error {
	return server.ServeStdio(NewServer(deps, version))
}

func (h *Handlers) handleRecentResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	out, err := ops.List(ctx, h.store, ops.ListInput{Limit: recentLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}
	b, err := json.Marshal(out.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal meetings: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
