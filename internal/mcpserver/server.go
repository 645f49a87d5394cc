// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes deckhand tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/deckhand/internal/presentation"
)

// ManifestFormatURI is the resource describing the manifest document.
const ManifestFormatURI = "deckhand://manifest-format"

// Server wraps the MCP server with deckhand tools.
type Server struct {
	mcp *server.MCPServer
	svc *presentation.Service
	log *slog.Logger
}

// New creates a new MCP server with all deckhand tools registered.
func New(svc *presentation.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{svc: svc, log: logger}

	s.mcp = server.NewMCPServer(
		"deckhand",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_presentations",
		mcp.WithDescription("List the presentations in the library with their entry file and asset and tab counts."),
	), s.listPresentations)

	s.mcp.AddTool(mcp.NewTool("get_presentation",
		mcp.WithDescription("Get the effective state of a presentation: assets in order, groups, tabs and "+
			"any dangling references that were dropped."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Presentation id (folder name)")),
	), s.getPresentation)

	s.mcp.AddTool(mcp.NewTool("get_manifest",
		mcp.WithDescription("Read the stored manifest of a presentation and its checksum."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Presentation id")),
	), s.getManifest)

	s.mcp.AddTool(mcp.NewTool("patch_manifest",
		mcp.WithDescription("Deep-merge a partial document into the manifest. Objects merge key by key, "+
			"arrays replace, null removes a key. The merged result is validated before it is written. "+
			"Read the "+ManifestFormatURI+" resource first."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Presentation id")),
		mcp.WithObject("patch", mcp.Required(), mcp.Description("Partial manifest document")),
		mcp.WithString("if_match", mcp.Description("Checksum from get_manifest; the write fails if the manifest changed")),
	), s.patchManifest)

	s.mcp.AddTool(mcp.NewTool("reorder_slides",
		mcp.WithDescription("Move the listed slide files to the front in the given order. "+
			"Unlisted slides keep their relative order after them."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Presentation id")),
		mcp.WithArray("files", mcp.Required(), mcp.Items(map[string]any{"type": "string"}),
			mcp.Description("Slide file names in their new order")),
	), s.reorderSlides)

	s.mcp.AddTool(mcp.NewTool("create_group",
		mcp.WithDescription("Create a group. With rename set, a taken id gets a numeric suffix instead of failing."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Presentation id")),
		mcp.WithString("group", mcp.Required(), mcp.Description("Group id (letters, digits, - and _)")),
		mcp.WithString("label", mcp.Required(), mcp.Description("Display label")),
		mcp.WithString("tab", mcp.Description("Tab the group belongs to; empty for a shared group")),
		mcp.WithNumber("order", mcp.Description("Sort order; defaults to after the existing groups")),
		mcp.WithBoolean("rename", mcp.Description("Pick a free id when the group id is taken")),
	), s.createGroup)

	s.mcp.AddTool(mcp.NewTool("create_tab",
		mcp.WithDescription("Declare a tab. Its entry document defaults to tab-<tab>.html and may be written later."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Presentation id")),
		mcp.WithString("tab", mcp.Required(), mcp.Description("Tab id")),
		mcp.WithString("label", mcp.Required(), mcp.Description("Display label")),
		mcp.WithString("subtitle", mcp.Description("Optional subtitle")),
		mcp.WithString("file", mcp.Description("Entry document file name")),
		mcp.WithBoolean("rename", mcp.Description("Pick a free id when the tab id is taken")),
	), s.createTab)

	s.mcp.AddTool(mcp.NewTool("set_group_tab",
		mcp.WithDescription("Scope a group to a tab, or make it shared with an empty tab."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Presentation id")),
		mcp.WithString("group", mcp.Required(), mcp.Description("Group id")),
		mcp.WithString("tab", mcp.Description("Tab id; empty makes the group shared")),
	), s.setGroupTab)

	s.mcp.AddTool(mcp.NewTool("sync_from_entry_documents",
		mcp.WithDescription("Derive groups and slide membership from the sections and slide links of the "+
			"index and tab entry documents. merge keeps existing groups; replace rebuilds them."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Presentation id")),
		mcp.WithString("strategy", mcp.Enum(string(presentation.Merge), string(presentation.Replace)),
			mcp.Description("merge (default) or replace")),
	), s.syncFromEntryDocuments)

	s.mcp.AddResource(
		mcp.NewResource(ManifestFormatURI, "Manifest Format",
			mcp.WithResourceDescription("Shape and rules of the presentation.json manifest."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readManifestFormat,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) failed(tool string, err error) (*mcp.CallToolResult, error) {
	s.log.Debug("mcp: tool failed", slog.String("tool", tool), slog.String("error", err.Error()))
	return mcp.NewToolResultError(err.Error()), nil
}

func (s *Server) listPresentations(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.svc.List(ctx)
	if err != nil {
		return s.failed("list_presentations", err)
	}
	return jsonResult(list)
}

func (s *Server) getPresentation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.svc.Get(ctx, id)
	if err != nil {
		return s.failed("get_presentation", err)
	}
	return jsonResult(p)
}

func (s *Server) getManifest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, sum, err := s.svc.Manifest(ctx, id)
	if err != nil {
		return s.failed("get_manifest", err)
	}
	return jsonResult(map[string]any{"checksum": sum, "manifest": m})
}

func (s *Server) patchManifest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	patch, ok := req.GetArguments()["patch"].(map[string]any)
	if !ok {
		return mcp.NewToolResultError("patch must be an object"), nil
	}
	m, sum, err := s.svc.PatchManifest(ctx, id, patch, req.GetString("if_match", ""))
	if err != nil {
		return s.failed("patch_manifest", err)
	}
	return jsonResult(map[string]any{"checksum": sum, "manifest": m})
}

func (s *Server) reorderSlides(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	files, err := stringList(req.GetArguments()["files"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.svc.ReorderAssets(ctx, id, files)
	if err != nil {
		return s.failed("reorder_slides", err)
	}
	return jsonResult(p)
}

func (s *Server) createGroup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	group, err := req.RequireString("group")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	label, err := req.RequireString("label")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in := presentation.GroupInput{
		ID:     group,
		Label:  label,
		TabID:  req.GetString("tab", ""),
		Rename: req.GetBool("rename", false),
	}
	if _, ok := req.GetArguments()["order"]; ok {
		order := req.GetInt("order", 0)
		in.Order = &order
	}
	_, created, err := s.svc.CreateGroup(ctx, id, in)
	if err != nil {
		return s.failed("create_group", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("created group: %s", created)), nil
}

func (s *Server) createTab(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tab, err := req.RequireString("tab")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	label, err := req.RequireString("label")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	_, created, err := s.svc.CreateTab(ctx, id, presentation.TabInput{
		ID:       tab,
		Label:    label,
		Subtitle: req.GetString("subtitle", ""),
		File:     req.GetString("file", ""),
		Rename:   req.GetBool("rename", false),
	})
	if err != nil {
		return s.failed("create_tab", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("created tab: %s", created)), nil
}

func (s *Server) setGroupTab(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	group, err := req.RequireString("group")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tab := req.GetString("tab", "")
	if _, err := s.svc.SetGroupParentTab(ctx, id, group, tab); err != nil {
		return s.failed("set_group_tab", err)
	}
	if tab == "" {
		return mcp.NewToolResultText(fmt.Sprintf("group %s is shared", group)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("group %s belongs to tab %s", group, tab)), nil
}

func (s *Server) syncFromEntryDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	strategy, err := presentation.ParseSyncStrategy(req.GetString("strategy", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	report, err := s.svc.SyncFromEntryDocuments(ctx, id, strategy)
	if err != nil {
		return s.failed("sync_from_entry_documents", err)
	}
	return jsonResult(report)
}

func (s *Server) readManifestFormat(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ManifestFormatURI,
			MIMEType: "text/markdown",
			Text:     ManifestFormatContract,
		},
	}, nil
}

// stringList accepts a JSON array of strings as decoded by the transport.
func stringList(v any) ([]string, error) {
	switch list := v.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("files must be a list of strings")
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("files must be a list of strings")
}
