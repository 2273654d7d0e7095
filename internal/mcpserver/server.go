// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes moewiki tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/moewiki/internal/paste"
	"github.com/starford/moewiki/internal/wiki"
)

// DefaultEditor is the editor key recorded on saves made through MCP.
const DefaultEditor = "mcp"

// MarkupURI is the resource URI of the markup contract.
const MarkupURI = "moewiki://markup"

// Server wraps the MCP server with moewiki tools.
type Server struct {
	mcp    *server.MCPServer
	wiki   *wiki.Service
	pastes *paste.Service
	editor string
}

// New creates a new MCP server with all moewiki tools registered.
func New(svc *wiki.Service, pastes *paste.Service, editor string) *Server {
	if editor == "" {
		editor = DefaultEditor
	}
	s := &Server{wiki: svc, pastes: pastes, editor: editor}

	s.mcp = server.NewMCPServer(
		"moewiki",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	area := mcp.WithString("area", mcp.Description("Wiki area (default area when omitted)"))

	s.mcp.AddTool(mcp.NewTool("read_page",
		mcp.WithDescription("Read the raw markup of a wiki page, its head or an archived version."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Page path (e.g. projects/road-map)")),
		mcp.WithString("version", mcp.Description("Version number; latest when omitted")),
		area,
	), s.readPage)

	s.mcp.AddTool(mcp.NewTool("edit_page",
		mcp.WithDescription("Create or update a wiki page. Saving identical title and body is a no-op. "+
			"Body MUST follow the markup contract; read it via the get_markup_contract tool "+
			"or the "+MarkupURI+" resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Page path")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Page title")),
		mcp.WithString("body", mcp.Description("Markdown body with [[wikilinks]]")),
		mcp.WithString("note", mcp.Description("Short edit summary")),
		mcp.WithString("if_match", mcp.Description("ETag from read_page for optimistic concurrency")),
		area,
	), s.editPage)

	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List the children of a page, or the top-level pages."),
		mcp.WithString("parent", mcp.Description("Parent path (empty for top level)")),
		mcp.WithString("cursor", mcp.Description("Cursor from a previous call")),
		area,
	), s.listPages)

	s.mcp.AddTool(mcp.NewTool("recent_changes",
		mcp.WithDescription("List pages by last update, newest first."),
		mcp.WithString("cursor", mcp.Description("Cursor from a previous call")),
		area,
	), s.recentChanges)

	s.mcp.AddTool(mcp.NewTool("page_history",
		mcp.WithDescription("List the revisions of a page, newest first."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Page path")),
		mcp.WithString("cursor", mcp.Description("Cursor from a previous call")),
		area,
	), s.pageHistory)

	s.mcp.AddTool(mcp.NewTool("diff_page",
		mcp.WithDescription("Unified diff between two revisions of a page. "+
			"Without versions the two latest revisions are compared."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Page path")),
		mcp.WithString("v1", mcp.Description("First version")),
		mcp.WithString("v2", mcp.Description("Second version; latest when omitted")),
		area,
	), s.diffPage)

	s.mcp.AddTool(mcp.NewTool("search_pages",
		mcp.WithDescription("Full-text search through page titles and bodies."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		area,
	), s.searchPages)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all pages that link to the specified page."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the page to find backlinks for")),
		area,
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("create_paste",
		mcp.WithDescription("Store a syntax-highlighted code snippet."),
		mcp.WithString("code", mcp.Required(), mcp.Description("Source code")),
		mcp.WithString("language", mcp.Description("Language name, plain text when omitted")),
		area,
	), s.createPaste)

	s.mcp.AddTool(mcp.NewTool("get_markup_contract",
		mcp.WithDescription("Returns the moewiki page markup contract. "+
			"Call this before editing pages to ensure correct structure."),
	), s.getMarkupContract)

	// Resource: markup contract.
	s.mcp.AddResource(
		mcp.NewResource(MarkupURI, "Page Markup Contract",
			mcp.WithResourceDescription("Markdown dialect and wikilink syntax of moewiki pages."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readMarkupResource,
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

func (s *Server) readPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	view, err := s.wiki.View(ctx, req.GetString("area", ""), path, req.GetString("version", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read %s: %v", path, err)), nil
	}
	return jsonResult(map[string]any{
		"path":       view.Path.Normalized,
		"version":    view.Revision.ID(),
		"title":      view.Revision.Title,
		"body":       view.Revision.BodyRaw,
		"editor":     view.Revision.EditorKey,
		"updated_at": view.Revision.UpdatedAt,
		"etag":       view.ETag,
		"backlinks":  view.Backlinks,
	})
}

func (s *Server) editPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.wiki.Edit(ctx, wiki.EditRequest{
		Area:      req.GetString("area", ""),
		Path:      path,
		Title:     title,
		Body:      req.GetString("body", ""),
		Note:      req.GetString("note", ""),
		IfMatch:   req.GetString("if_match", ""),
		EditorKey: s.editor,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("edit %s: %v", path, err)), nil
	}
	switch {
	case res.Created:
		return mcp.NewToolResultText("created: " + res.Path.Normalized), nil
	case res.Changed:
		return mcp.NewToolResultText("updated: " + res.Path.Normalized), nil
	default:
		return mcp.NewToolResultText("unchanged: " + res.Path.Normalized), nil
	}
}

func (s *Server) listPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.wiki.ListPages(ctx, req.GetString("area", ""), req.GetString("parent", ""), req.GetString("cursor", ""), 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(list)
}

func (s *Server) recentChanges(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.wiki.RecentChanges(ctx, req.GetString("area", ""), req.GetString("cursor", ""), 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(list)
}

func (s *Server) pageHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hist, err := s.wiki.History(ctx, req.GetString("area", ""), path, req.GetString("cursor", ""), 0)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("history %s: %v", path, err)), nil
	}
	type entry struct {
		Version string `json:"version"`
		Title   string `json:"title"`
		Editor  string `json:"editor"`
		Notes   string `json:"notes"`
		Updated string `json:"updated_at"`
	}
	out := struct {
		Revisions  []entry `json:"revisions"`
		NextCursor string  `json:"next_cursor"`
	}{Revisions: make([]entry, 0, len(hist.Revisions)), NextCursor: hist.NextCursor}
	for _, r := range hist.Revisions {
		out.Revisions = append(out.Revisions, entry{
			Version: r.ID(),
			Title:   r.Title,
			Editor:  r.EditorKey,
			Notes:   r.Notes,
			Updated: r.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return jsonResult(out)
}

func (s *Server) diffPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	view, err := s.wiki.Diff(ctx, req.GetString("area", ""), path, req.GetString("v1", ""), req.GetString("v2", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("diff %s: %v", path, err)), nil
	}
	if view.Identical {
		return mcp.NewToolResultText("no differences"), nil
	}
	return mcp.NewToolResultText(view.Unified), nil
}

func (s *Server) searchPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.wiki.Search(ctx, req.GetString("area", ""), query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.wiki.Backlinks(ctx, req.GetString("area", ""), path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}

func (s *Server) createPaste(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := req.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.pastes.Create(ctx, paste.CreateRequest{
		Area:     req.GetString("area", ""),
		UserKey:  s.editor,
		Code:     code,
		Language: req.GetString("language", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("paste %d (%s, %d lines)", p.ID, p.Language, p.Lines())), nil
}

func (s *Server) getMarkupContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(MarkupContract), nil
}

func (s *Server) readMarkupResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      MarkupURI,
			MIMEType: "text/markdown",
			Text:     MarkupContract,
		},
	}, nil
}
