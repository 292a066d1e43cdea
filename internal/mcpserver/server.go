// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes folio workspaces and documents to LLM clients over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/folio/internal/document"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/models"
)

// Views is the folder-tree surface the tools drive.
type Views interface {
	CreateWorkspace(ctx context.Context, uid int64, name string) (*models.View, error)
	WorkspaceViews(ctx context.Context, workspaceID uuid.UUID) ([]models.View, error)
	GetView(ctx context.Context, id uuid.UUID) (*models.View, error)
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]models.View, error)
	DuplicateView(ctx context.Context, uid int64, id uuid.UUID) (*models.View, error)
	ImportView(ctx context.Context, uid int64, parentID uuid.UUID, name string, it models.ImportType, data []byte) (*models.View, []models.ImportedUnit, error)
	DeleteView(ctx context.Context, id uuid.UUID) error
	OpenView(ctx context.Context, id uuid.UUID) error
	CloseView(ctx context.Context, id uuid.UUID) error
	UpdateContent(ctx context.Context, id uuid.UUID, it models.ImportType, data []byte) error
}

// Documents reads document content, preferring the open copy.
type Documents interface {
	ReadCurrent(ctx context.Context, id uuid.UUID) (*document.Data, error)
}

// Searcher runs full-text queries over document content.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]index.SearchResult, error)
}

const (
	importFormatURI    = "folio://import-format"
	starterTemplateURI = "folio://starter-template"
)

// Server wraps the MCP server with folio tools.
type Server struct {
	mcp    *server.MCPServer
	views  Views
	docs   Documents
	search Searcher
	uid    int64
	fetch  fetcher
}

// New creates a new MCP server with all folio tools registered. Every
// mutation is attributed to uid.
func New(views Views, docs Documents, search Searcher, uid int64) *Server {
	s := &Server{views: views, docs: docs, search: search, uid: uid, fetch: fetchHTTP}

	s.mcp = server.NewMCPServer(
		"Folio",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("create_workspace",
		mcp.WithDescription("Create a workspace. It starts with a \"Getting started\" document."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Workspace name")),
	), s.createWorkspace)

	s.mcp.AddTool(mcp.NewTool("list_views",
		mcp.WithDescription("List every view of a workspace, or the direct children of one view."),
		mcp.WithString("workspace_id", mcp.Description("Workspace to list")),
		mcp.WithString("parent_id", mcp.Description("View whose children to list; wins over workspace_id")),
	), s.listViews)

	s.mcp.AddTool(mcp.NewTool("read_view",
		mcp.WithDescription("Read the plain text of a document view, one block per line."),
		mcp.WithString("view_id", mcp.Required(), mcp.Description("View ID")),
	), s.readView)

	s.mcp.AddTool(mcp.NewTool("import_markdown",
		mcp.WithDescription("Create a document view from Markdown. "+
			"Read the import format first via the get_import_format tool or the "+
			importFormatURI+" resource."),
		mcp.WithString("parent_id", mcp.Required(), mcp.Description("Parent view or workspace ID")),
		mcp.WithString("name", mcp.Required(), mcp.Description("View name")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content")),
	), s.importMarkdown)

	s.mcp.AddTool(mcp.NewTool("import_url",
		mcp.WithDescription("Download a Markdown or plain text file (http, https or a base64 data: URI) "+
			"and import it as a document view."),
		mcp.WithString("parent_id", mcp.Required(), mcp.Description("Parent view or workspace ID")),
		mcp.WithString("url", mcp.Required(), mcp.Description("Source URL")),
		mcp.WithString("name", mcp.Description("View name; defaults to the file name")),
	), s.importURL)

	s.mcp.AddTool(mcp.NewTool("update_view",
		mcp.WithDescription("Replace the whole content of a document view with Markdown. "+
			"The format is the same as for import_markdown."),
		mcp.WithString("view_id", mcp.Required(), mcp.Description("View ID")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content")),
	), s.updateView)

	s.mcp.AddTool(mcp.NewTool("duplicate_view",
		mcp.WithDescription("Copy a view and its current content next to the original."),
		mcp.WithString("view_id", mcp.Required(), mcp.Description("View ID")),
	), s.duplicateView)

	s.mcp.AddTool(mcp.NewTool("delete_view",
		mcp.WithDescription("Delete a view, its children and their content. Deleted content cannot be restored."),
		mcp.WithString("view_id", mcp.Required(), mcp.Description("View ID")),
	), s.deleteView)

	s.mcp.AddTool(mcp.NewTool("search_views",
		mcp.WithDescription("Full-text search through document titles and content."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchViews)

	s.mcp.AddTool(mcp.NewTool("get_import_format",
		mcp.WithDescription("Returns how imported Markdown maps onto document blocks."),
	), s.getImportFormat)

	s.mcp.AddResource(
		mcp.NewResource(importFormatURI, "Import Format",
			mcp.WithResourceDescription("How imported Markdown and plain text become document blocks."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readImportFormatResource,
	)

	s.mcp.AddResource(
		mcp.NewResource(starterTemplateURI, "Starter Template",
			mcp.WithResourceDescription("YAML template of the page every new workspace starts with."),
			mcp.WithMIMEType("application/yaml"),
		),
		s.readStarterTemplateResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func requireID(req mcp.CallToolRequest, key string) (uuid.UUID, error) {
	raw, err := req.RequireString(key)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return id, nil
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

type workspaceResult struct {
	Workspace *models.View  `json:"workspace"`
	Views     []models.View `json:"views"`
}

func (s *Server) createWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	root, err := s.views.CreateWorkspace(ctx, s.uid, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	views, err := s.views.WorkspaceViews(ctx, root.ID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(workspaceResult{Workspace: root, Views: views}), nil
}

func (s *Server) listViews(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var (
		views []models.View
		err   error
	)
	switch {
	case req.GetString("parent_id", "") != "":
		var id uuid.UUID
		if id, err = requireID(req, "parent_id"); err == nil {
			views, err = s.views.ListChildren(ctx, id)
		}
	case req.GetString("workspace_id", "") != "":
		var id uuid.UUID
		if id, err = requireID(req, "workspace_id"); err == nil {
			views, err = s.views.WorkspaceViews(ctx, id)
		}
	default:
		err = errors.New("one of workspace_id or parent_id is required")
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if views == nil {
		views = []models.View{}
	}
	return jsonResult(views), nil
}

func (s *Server) readView(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "view_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.views.GetView(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if v.Type != models.ContentTypeDocument {
		return mcp.NewToolResultError(fmt.Sprintf("view %s holds %s content, not a document", id, v.Type)), nil
	}
	data, err := s.docs.ReadCurrent(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(data.PlainText()), nil
}

type importResult struct {
	View  *models.View `json:"view"`
	Title string       `json:"title,omitempty"`
	Units int          `json:"units"`
}

func (s *Server) importBytes(ctx context.Context, parentID uuid.UUID, name string, it models.ImportType, data []byte) *mcp.CallToolResult {
	v, units, err := s.views.ImportView(ctx, s.uid, parentID, name, it, data)
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	res := importResult{View: v, Units: len(units)}
	if len(units) > 0 {
		if d, err := document.DecodeSnapshot(units[0].Snapshot); err == nil {
			res.Title = d.Title()
		}
	}
	return jsonResult(res)
}

func (s *Server) importMarkdown(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	parentID, err := requireID(req, "parent_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.importBytes(ctx, parentID, name, models.ImportTypeMarkdown, []byte(content)), nil
}

func (s *Server) importURL(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	parentID, err := requireID(req, "parent_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := fetchSource(ctx, s.fetch, rawURL)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name := req.GetString("name", "")
	if name == "" {
		name = f.name
	}
	return s.importBytes(ctx, parentID, name, f.importType, f.data), nil
}

// updateView opens the view for the length of the edit.
func (s *Server) updateView(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "view_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.views.OpenView(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	err = s.views.UpdateContent(ctx, id, models.ImportTypeMarkdown, []byte(content))
	if cerr := s.views.CloseView(ctx, id); err == nil {
		err = cerr
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.views.GetView(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.docs.ReadCurrent(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(importResult{View: v, Title: data.Title(), Units: 1}), nil
}

func (s *Server) duplicateView(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "view_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.views.DuplicateView(ctx, s.uid, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(v), nil
}

func (s *Server) deleteView(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireID(req, "view_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.views.DeleteView(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) searchViews(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.search.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	return jsonResult(results), nil
}

func (s *Server) getImportFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ImportFormatContract), nil
}

func (s *Server) readImportFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      importFormatURI,
			MIMEType: "text/markdown",
			Text:     ImportFormatContract,
		},
	}, nil
}

func (s *Server) readStarterTemplateResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      starterTemplateURI,
			MIMEType: "application/yaml",
			Text:     string(document.StarterTemplate()),
		},
	}, nil
}
