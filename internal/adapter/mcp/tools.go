package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/fundsage/FundSage/internal/domain/flow"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.runAnalysisTool(),
		s.getRunTool(),
		s.listRunsTool(),
	)
}

func (s *Server) runAnalysisTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("run_analysis",
		mcplib.WithDescription("Run a pension analysis for one member and return the structured result"),
		mcplib.WithString("subject_id",
			mcplib.Required(),
			mcplib.Description("The member whose pension data to analyze"),
		),
		mcplib.WithString("query",
			mcplib.Required(),
			mcplib.Description("The analysis question, e.g. 'How is my pension doing?'"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleRunAnalysis,
	}
}

func (s *Server) getRunTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_run",
		mcplib.WithDescription("Get one archived analysis run by run ID"),
		mcplib.WithString("run_id",
			mcplib.Required(),
			mcplib.Description("The run ID to look up"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetRun,
	}
}

func (s *Server) listRunsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_runs",
		mcplib.WithDescription("List recent archived runs for one member"),
		mcplib.WithString("subject_id",
			mcplib.Required(),
			mcplib.Description("The member whose runs to list"),
		),
		mcplib.WithNumber("limit",
			mcplib.Description("Maximum number of runs to return (default 10)"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleListRuns,
	}
}

func (s *Server) handleRunAnalysis(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Runner == nil {
		return mcplib.NewToolResultError("runner not configured"), nil
	}
	args := req.GetArguments()
	subjectID, ok := args["subject_id"].(string)
	if !ok || subjectID == "" {
		return mcplib.NewToolResultError("subject_id is required"), nil
	}
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return mcplib.NewToolResultError("query is required"), nil
	}

	result, err := s.deps.Runner.Run(ctx, flow.RunRequest{SubjectID: subjectID, Query: query})
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("analysis failed", err), nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleGetRun(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Runs == nil {
		return mcplib.NewToolResultError("run reader not configured"), nil
	}
	args := req.GetArguments()
	runID, ok := args["run_id"].(string)
	if !ok || runID == "" {
		return mcplib.NewToolResultError("run_id is required"), nil
	}
	rec, err := s.deps.Runs.Get(ctx, runID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to get run %s", runID), err,
		), nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal run", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleListRuns(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Runs == nil {
		return mcplib.NewToolResultError("run reader not configured"), nil
	}
	args := req.GetArguments()
	subjectID, ok := args["subject_id"].(string)
	if !ok || subjectID == "" {
		return mcplib.NewToolResultError("subject_id is required"), nil
	}
	limit := 10
	if n, ok := args["limit"].(float64); ok && n > 0 {
		limit = int(n)
	}
	recs, err := s.deps.Runs.ListBySubject(ctx, subjectID, limit)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to list runs for %s", subjectID), err,
		), nil
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal runs", err), nil
	}
	return toolResultJSON(string(data)), nil
}
