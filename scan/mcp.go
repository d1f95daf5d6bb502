package scan

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/darkmark/kit"
)

// RegisterMCP registers the scanner tools on an MCP server.
func (s *Scanner) RegisterMCP(srv *mcp.Server) {
	s.registerScanTool(srv)
	s.registerResultsTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	sch := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sch["required"] = required
	}
	return sch
}

type scanToolRequest struct {
	URL string `json:"url"`
}

func (s *Scanner) registerScanTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "darkmark_scan",
		Description: "Scan a web page for dark patterns: extract its visible text blocks and submit them for classification.",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Page URL to scan"},
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*scanToolRequest)
		if r.URL == "" {
			return nil, errors.New("url is required")
		}
		res, err := s.Scan(ctx, r.URL)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"id":     res.DocID,
			"blocks": len(res.Blocks),
			"frames": res.Submission.FramesCollected,
		}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r scanToolRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

type resultsToolRequest struct {
	ID string `json:"id"`
}

func (s *Scanner) registerResultsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "darkmark_results",
		Description: "Fetch the dark-pattern classification results and summary for a scanned document.",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Document id returned by darkmark_scan"},
		}, []string{"id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*resultsToolRequest)
		if r.ID == "" {
			return nil, errors.New("id is required")
		}
		rows, err := s.Results(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		sum, err := s.Summary(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"summary": sum, "rows": rows}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r resultsToolRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
