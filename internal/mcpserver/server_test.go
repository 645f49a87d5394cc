package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/deckhand/internal/manifest"
	"github.com/starford/deckhand/internal/models"
	"github.com/starford/deckhand/internal/presentation"
	"github.com/starford/deckhand/internal/testutil"
)

func testServer(t *testing.T, opts ...presentation.ServiceOption) (*Server, string) {
	t.Helper()
	root, fs := testutil.TestLibrary(t)
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, f := range []string{"a.html", "b.html", "c.html"} {
		testutil.WriteFileAt(t, root, "deck/"+f, testutil.Slide(f), base.Add(time.Duration(i)*time.Minute))
	}
	testutil.WriteFile(t, root, "deck/tab-mary.html", testutil.Slide("Mary"))

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	svc := presentation.NewService(fs, manifest.NewStore(fs, ""), logger, opts...)
	return New(svc, logger), root
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"list_presentations":        srv.listPresentations,
		"get_presentation":          srv.getPresentation,
		"get_manifest":              srv.getManifest,
		"patch_manifest":            srv.patchManifest,
		"reorder_slides":            srv.reorderSlides,
		"create_group":              srv.createGroup,
		"create_tab":                srv.createTab,
		"set_group_tab":             srv.setGroupTab,
		"sync_from_entry_documents": srv.syncFromEntryDocuments,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func getPresentation(t *testing.T, srv *Server) models.Presentation {
	t.Helper()
	r := callTool(t, srv, "get_presentation", map[string]interface{}{"id": "deck"})
	if r.IsError {
		t.Fatalf("get_presentation: %s", resultText(r))
	}
	var p models.Presentation
	if err := json.Unmarshal([]byte(resultText(r)), &p); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestListPresentations(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "list_presentations", map[string]interface{}{})
	var list []models.Summary
	if err := json.Unmarshal([]byte(resultText(r)), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != "deck" || list[0].AssetCount != 3 {
		t.Errorf("list = %+v", list)
	}
}

func TestGetPresentationMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_presentation", map[string]interface{}{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing presentation")
	}
	r = callTool(t, srv, "get_presentation", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for missing id")
	}
}

func TestPatchManifestWithChecksum(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "get_manifest", map[string]interface{}{"id": "deck"})
	var got struct {
		Checksum string `json:"checksum"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &got); err != nil {
		t.Fatal(err)
	}

	r = callTool(t, srv, "patch_manifest", map[string]interface{}{
		"id":       "deck",
		"patch":    map[string]interface{}{"meta": map[string]interface{}{"name": "Review"}},
		"if_match": got.Checksum,
	})
	if r.IsError {
		t.Fatalf("patch: %s", resultText(r))
	}
	if p := getPresentation(t, srv); p.Name != "Review" {
		t.Errorf("name = %q", p.Name)
	}

	// The checksum is stale now.
	r = callTool(t, srv, "patch_manifest", map[string]interface{}{
		"id":       "deck",
		"patch":    map[string]interface{}{"meta": map[string]interface{}{"name": "Again"}},
		"if_match": got.Checksum,
	})
	if !r.IsError {
		t.Error("expected conflict for stale checksum")
	}

	r = callTool(t, srv, "patch_manifest", map[string]interface{}{
		"id":    "deck",
		"patch": map[string]interface{}{"tabs": []interface{}{map[string]interface{}{"id": "x"}}},
	})
	if !r.IsError || !strings.Contains(resultText(r), "tabs[0].label") {
		t.Errorf("invalid patch result = %q", resultText(r))
	}
}

func TestReorderSlides(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "reorder_slides", map[string]interface{}{
		"id":    "deck",
		"files": []interface{}{"c.html", "a.html"},
	})
	if r.IsError {
		t.Fatalf("reorder: %s", resultText(r))
	}
	p := getPresentation(t, srv)
	var order []string
	for _, a := range p.Assets {
		order = append(order, a.File)
	}
	if strings.Join(order, ",") != "c.html,a.html,b.html" {
		t.Errorf("order = %v", order)
	}

	r = callTool(t, srv, "reorder_slides", map[string]interface{}{"id": "deck", "files": "c.html"})
	if !r.IsError {
		t.Error("expected error for non-list files")
	}
}

func TestGroupsAndTabs(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_group", map[string]interface{}{"id": "deck", "group": "notes", "label": "Notes", "order": 3})
	if text := resultText(r); text != "created group: notes" {
		t.Errorf("create result = %q", text)
	}
	r = callTool(t, srv, "create_group", map[string]interface{}{"id": "deck", "group": "notes", "label": "Notes"})
	if !r.IsError {
		t.Error("expected conflict")
	}
	r = callTool(t, srv, "create_group", map[string]interface{}{"id": "deck", "group": "notes", "label": "Notes", "rename": true})
	if text := resultText(r); text != "created group: notes-2" {
		t.Errorf("rename result = %q", text)
	}

	r = callTool(t, srv, "create_tab", map[string]interface{}{"id": "deck", "tab": "john", "label": "John"})
	if text := resultText(r); text != "created tab: john" {
		t.Errorf("create tab result = %q", text)
	}

	r = callTool(t, srv, "set_group_tab", map[string]interface{}{"id": "deck", "group": "notes", "tab": "mary"})
	if r.IsError {
		t.Fatalf("set tab: %s", resultText(r))
	}
	p := getPresentation(t, srv)
	for _, g := range p.Groups {
		if g.ID == "notes" && (g.TabID != "mary" || g.Order != 3) {
			t.Errorf("notes = %+v", g)
		}
	}

	r = callTool(t, srv, "set_group_tab", map[string]interface{}{"id": "deck", "group": "notes", "tab": "ghost"})
	if !r.IsError {
		t.Error("expected error for unknown tab")
	}
}

func TestSyncFromEntryDocuments(t *testing.T) {
	srv, root := testServer(t)
	testutil.WriteFile(t, root, "deck/tab-mary.html", `<html><body>
	<section data-group="picks" data-group-label="Picks"><a href="b.html">B</a></section>
	</body></html>`)

	r := callTool(t, srv, "sync_from_entry_documents", map[string]interface{}{"id": "deck", "strategy": "bogus"})
	if !r.IsError {
		t.Error("expected error for unknown strategy")
	}

	r = callTool(t, srv, "sync_from_entry_documents", map[string]interface{}{"id": "deck"})
	if r.IsError {
		t.Fatalf("sync: %s", resultText(r))
	}
	var report presentation.SyncReport
	if err := json.Unmarshal([]byte(resultText(r)), &report); err != nil {
		t.Fatal(err)
	}
	if report.Strategy != presentation.Merge || len(report.GroupsCreated) != 1 {
		t.Errorf("report = %+v", report)
	}
	p := getPresentation(t, srv)
	if b, _ := p.Asset("b.html"); b.Group != report.GroupsCreated[0] {
		t.Errorf("b.html group = %q, want %q", b.Group, report.GroupsCreated[0])
	}
}

func TestSyncSeesFilesWrittenAfterListing(t *testing.T) {
	srv, root := testServer(t, presentation.WithoutCache())

	r := callTool(t, srv, "list_presentations", nil)
	if r.IsError {
		t.Fatalf("list: %s", resultText(r))
	}

	testutil.WriteFile(t, root, "deck/d.html", testutil.Slide("D"))
	testutil.WriteFile(t, root, "deck/tab-mary.html", `<html><body>
	<section data-group="late" data-group-label="Late"><a href="d.html">D</a></section>
	</body></html>`)

	r = callTool(t, srv, "sync_from_entry_documents", map[string]interface{}{"id": "deck"})
	if r.IsError {
		t.Fatalf("sync: %s", resultText(r))
	}
	var report presentation.SyncReport
	if err := json.Unmarshal([]byte(resultText(r)), &report); err != nil {
		t.Fatal(err)
	}
	if len(report.Warnings) != 0 || report.SlidesAssigned != 1 {
		t.Errorf("report = %+v", report)
	}

	p := getPresentation(t, srv)
	d, ok := p.Asset("d.html")
	if !ok {
		t.Fatal("d.html not visible after sync")
	}
	if d.Group != "late" {
		t.Errorf("d.html group = %q, want late", d.Group)
	}
}

func TestManifestFormatResource(t *testing.T) {
	srv, _ := testServer(t)
	contents, err := srv.readManifestFormat(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != ManifestFormatURI || !strings.Contains(tc.Text, "tabId") {
		t.Errorf("resource = %+v", contents[0])
	}
}
