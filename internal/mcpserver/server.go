// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the publish pipeline to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/pagefeed/internal/apperr"
	"github.com/starford/pagefeed/internal/ledger"
	"github.com/starford/pagefeed/internal/models"
	"github.com/starford/pagefeed/internal/publish"
)

// ContractURI is the resource URI of the page format contract.
const ContractURI = "pagefeed://page-format"

// Pipeline is the publish surface the tools call into.
type Pipeline interface {
	Run(ctx context.Context) (publish.Result, error)
	Preview(ctx context.Context) (publish.Result, error)
	Eligible(ctx context.Context) ([]models.Entry, error)
	RenderEntry(ctx context.Context, entryID string) (string, error)
}

// History lists past runs. May be nil.
type History interface {
	ListRuns(ctx context.Context, limit int) ([]ledger.Run, error)
}

// Server wraps the MCP server with pagefeed tools.
type Server struct {
	mcp     *server.MCPServer
	pipe    Pipeline
	history History
}

type runSummary struct {
	RunID     string   `json:"run_id,omitempty"`
	DryRun    bool     `json:"dry_run"`
	Items     []string `json:"items"`
	Committed []string `json:"committed"`
	Skipped   int      `json:"skipped"`
}

// New creates a new MCP server with all tools registered.
func New(pipe Pipeline, history History) *Server {
	s := &Server{pipe: pipe, history: history}

	s.mcp = server.NewMCPServer(
		"pagefeed",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_entries",
		mcp.WithDescription("List the pages the next publish run would include, in source order."),
	), s.listEntries)

	s.mcp.AddTool(mcp.NewTool("preview_entry",
		mcp.WithDescription("Render one page's body to the HTML fragment that would appear in the feed. "+
			"Does not mark the page published."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Page identifier as returned by list_entries")),
	), s.previewEntry)

	s.mcp.AddTool(mcp.NewTool("publish_feed",
		mcp.WithDescription("Run the publish pipeline: write the feed and mark included pages published. "+
			"With dry_run the feed is built but nothing is written or marked."),
		mcp.WithBoolean("dry_run", mcp.Description("Build without writing or committing")),
	), s.publishFeed)

	s.mcp.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List recent publish runs, newest first."),
		mcp.WithNumber("limit", mcp.Description("Max runs to return (default 20)")),
	), s.listRuns)

	s.mcp.AddTool(mcp.NewTool("get_block_contract",
		mcp.WithDescription("Returns the page format contract: which properties a page needs "+
			"and how each block kind is rendered into the feed."),
	), s.getBlockContract)

	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Page Format Contract",
			mcp.WithResourceDescription("Page properties and block rendering rules for feed publishing."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
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

func (s *Server) listEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.pipe.Eligible(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("no entries pending"), nil
	}
	out, _ := json.MarshalIndent(entries, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) previewEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	markup, err := s.pipe.RenderEntry(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(markup), nil
}

func (s *Server) publishFeed(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dryRun := req.GetBool("dry_run", false)

	var (
		res publish.Result
		err error
	)
	if dryRun {
		res, err = s.pipe.Preview(ctx)
	} else {
		res, err = s.pipe.Run(ctx)
	}
	if err != nil {
		var pce *apperr.PartialCommitError
		if errors.As(err, &pce) {
			return mcp.NewToolResultError(fmt.Sprintf("%v (already marked: %v)", err, pce.Committed)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	sum := runSummary{
		RunID:     res.RunID,
		DryRun:    dryRun,
		Items:     make([]string, 0, len(res.Document.Items)),
		Committed: res.Committed,
		Skipped:   res.Skipped,
	}
	if sum.Committed == nil {
		sum.Committed = []string{}
	}
	for _, it := range res.Document.Items {
		sum.Items = append(sum.Items, it.Title)
	}
	out, _ := json.MarshalIndent(sum, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.history == nil {
		return mcp.NewToolResultError("ledger disabled"), nil
	}
	runs, err := s.history.ListRuns(ctx, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(runs) == 0 {
		return mcp.NewToolResultText("no runs recorded"), nil
	}
	out, _ := json.MarshalIndent(runs, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getBlockContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PageFormatContract), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     PageFormatContract,
		},
	}, nil
}
