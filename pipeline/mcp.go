package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP exposes the pipeline as an MCP tool so agent hosts can
// request summaries over the same rate-limited path as the CLI.
func (p *Pipeline) RegisterMCP(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "gistify_summarize",
		Description: "Summarize a web page, arXiv reference, or local PDF into a Markdown report.",
		InputSchema: inputSchema(map[string]any{
			"source": map[string]any{
				"type":        "string",
				"description": "URL, arXiv ID (e.g. 2301.07041), or local PDF path",
			},
			"dump_content": map[string]any{
				"type":        "boolean",
				"description": "Also write the extracted article body as Markdown",
			},
		}, []string{"source"}),
	}

	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args summarizeArgs
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("invalid arguments: %w", err))
			return &res, nil
		}

		out, err := p.Run(ctx, args.Source, RunOptions{DumpContent: args.DumpContent})
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(err)
			return &res, nil
		}

		resp := summarizeResult{
			Denied:      out.Denied,
			ReportPath:  out.ReportPath,
			ContentPath: out.ContentPath,
			Title:       out.Title,
		}
		if out.Denied {
			resp.RetryAfter = out.RetryAfter.String()
		}
		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

type summarizeArgs struct {
	Source      string `json:"source"`
	DumpContent bool   `json:"dump_content"`
}

type summarizeResult struct {
	Denied      bool   `json:"denied"`
	RetryAfter  string `json:"retry_after,omitempty"`
	ReportPath  string `json:"report_path,omitempty"`
	ContentPath string `json:"content_path,omitempty"`
	Title       string `json:"title,omitempty"`
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}
