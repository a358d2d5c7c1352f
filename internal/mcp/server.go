package mcp

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jcdickinson/rbxdocs/internal/daemon"
	"github.com/jcdickinson/rbxdocs/internal/rpc"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

//go:embed instructions.md
var instructions string

const resourceScheme = "rbxdoc://"

// Backend is the subset of the daemon client the MCP tools use.
type Backend interface {
	Search(ctx context.Context, req rpc.SearchRequest) (*rpc.SearchResponse, error)
	Reload(ctx context.Context) (*rpc.ReloadResponse, error)
	GetDoc(ctx context.Context, req rpc.GetDocRequest) (*rpc.GetDocResponse, error)
}

type Server struct {
	mcpServer *server.MCPServer
	backend   Backend
}

func NewServer(socketPath string) (*Server, error) {
	client, err := daemon.ConnectOrSpawn(socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to daemon: %w", err)
	}
	return newServer(client), nil
}

func newServer(backend Backend) *Server {
	s := &Server{backend: backend}

	mcpServer := server.NewMCPServer(
		"rbxdocs",
		"0.1.0",
		server.WithInstructions(instructions),
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.mcpServer = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(
		mcp.NewTool("search_docs",
			mcp.WithDescription("Fuzzy search over Roblox API names (classes, members, enums, enum items, data types). Returns ranked results with documentation links and rbxdoc:// resource URIs."),
			mcp.WithString("query",
				mcp.Description("Name or partial name, e.g. \"anchored\" or \"Part.Size\""),
				mcp.Required(),
			),
			mcp.WithNumber("max_results",
				mcp.Description("Maximum number of results (default from settings, normally 25)"),
			),
			mcp.WithNumber("score_threshold",
				mcp.Description("Minimum score from 0 to 100 (default from settings, normally 30)"),
			),
			mcp.WithBoolean("show_deprecated",
				mcp.Description("Include deprecated APIs"),
			),
		),
		s.handleSearchDocs,
	)

	mcpServer.AddTool(
		mcp.NewTool("get_doc",
			mcp.WithDescription("Read the documentation of one API by its full dotted name, e.g. \"Part.Anchored\" or \"Enum.Material\"."),
			mcp.WithString("name",
				mcp.Description("Full dotted name as returned by search_docs"),
				mcp.Required(),
			),
		),
		s.handleGetDoc,
	)

	mcpServer.AddTool(
		mcp.NewTool("reload_docs",
			mcp.WithDescription("Re-download the API dump and documentation for the current Roblox client version. Slow; only needed after a Roblox release."),
		),
		s.handleReloadDocs,
	)
}

func (s *Server) registerResources(mcpServer *server.MCPServer) {
	mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			resourceScheme+"{name}",
			"Roblox API documentation",
			mcp.WithTemplateDescription("Documentation for one Roblox API by full dotted name. Search results return these URIs."),
			mcp.WithTemplateMIMEType("text/markdown"),
		),
		s.handleReadResource,
	)
}

// searchResult is the shape search_docs reports to the model.
type searchResult struct {
	Name    string   `json:"name"`
	URI     string   `json:"uri"`
	URL     string   `json:"url,omitempty"`
	Kind    string   `json:"kind"`
	Score   int      `json:"score"`
	Tags    []string `json:"tags,omitempty"`
	Summary string   `json:"summary,omitempty"`
}

// toolError reports err as a tool-level failure. A daemon that has not loaded
// any documentation yet is reported as having no results.
func toolError(action string, err error) *mcp.CallToolResult {
	var re *daemon.ResponseError
	if errors.As(err, &re) && re.Status == http.StatusServiceUnavailable {
		return mcp.NewToolResultError("no results available: documentation is not loaded yet (" + re.Message + ")")
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", action, err))
}

func (s *Server) handleSearchDocs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	searchReq := rpc.SearchRequest{Query: query}
	if n, ok := args["max_results"].(float64); ok {
		searchReq.MaxResults = int(n)
	}
	if n, ok := args["score_threshold"].(float64); ok {
		threshold := int(n)
		searchReq.ScoreThreshold = &threshold
	}
	if b, ok := args["show_deprecated"].(bool); ok {
		searchReq.ShowDeprecated = &b
	}

	resp, err := s.backend.Search(ctx, searchReq)
	if err != nil {
		return toolError("search", err), nil
	}
	if len(resp.Results) == 0 {
		return mcp.NewToolResultText("no results"), nil
	}

	results := make([]searchResult, len(resp.Results))
	for i, r := range resp.Results {
		results[i] = searchResult{
			Name:    r.Title,
			URI:     resourceScheme + r.Title,
			URL:     r.URL,
			Kind:    r.Kind,
			Score:   r.Score,
			Tags:    r.Tags,
			Summary: r.Summary,
		}
	}

	resultJSON, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func (s *Server) handleGetDoc(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, _ := req.GetArguments()["name"].(string)
	name = strings.TrimPrefix(strings.TrimSpace(name), resourceScheme)
	if name == "" {
		return mcp.NewToolResultError("missing required parameter: name"), nil
	}

	resp, err := s.backend.GetDoc(ctx, rpc.GetDocRequest{Name: name})
	if err != nil {
		return toolError("get doc", err), nil
	}
	return mcp.NewToolResultText(resp.Markdown), nil
}

func (s *Server) handleReloadDocs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.backend.Reload(ctx)
	if err != nil {
		return toolError("reload", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("loaded %s: %d APIs (%d deprecated)",
		resp.Version, resp.Active+resp.Deprecated, resp.Deprecated)), nil
}

func (s *Server) handleReadResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	name := strings.TrimPrefix(uri, resourceScheme)
	if name == "" || name == uri {
		return nil, fmt.Errorf("invalid resource URI: %s", uri)
	}

	resp, err := s.backend.GetDoc(ctx, rpc.GetDocRequest{Name: name})
	if err != nil {
		return nil, fmt.Errorf("getting doc: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/markdown",
			Text:     resp.Markdown,
		},
	}, nil
}

func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) Shutdown(_ context.Context) error {
	return nil
}
