// Package mcpserver exposes screening as Model Context Protocol tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/fmuoria/fair-hire/internal/agent"
	"github.com/fmuoria/fair-hire/internal/models"
	"github.com/fmuoria/fair-hire/internal/store"
)

const (
	serverName    = "fair-hire"
	serverVersion = "1.0.0"
)

// JobLister lists open jobs
type JobLister interface {
	ListJobs(ctx context.Context, opts store.ListOptions) ([]*models.Job, error)
}

// Tools holds the dependencies of the tool handlers
type Tools struct {
	agent  *agent.ScreeningAgent
	jobs   JobLister
	logger *zap.Logger
}

// NewTools creates the tool handlers
func NewTools(ag *agent.ScreeningAgent, jobs JobLister, logger *zap.Logger) *Tools {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tools{agent: ag, jobs: jobs, logger: logger}
}

// NewServer registers every tool on a new MCP server
func NewServer(t *Tools) *server.MCPServer {
	s := server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false))
	t.register(s)
	return s
}

// Serve runs the MCP server on stdin/stdout until the client disconnects
func Serve(t *Tools) error {
	if err := server.ServeStdio(NewServer(t)); err != nil {
		return fmt.Errorf("mcp server error: %w", err)
	}
	return nil
}

func (t *Tools) register(s *server.MCPServer) {
	scoreTool := mcp.NewTool("score_resume",
		mcp.WithDescription("Score a plain-text resume against a job without storing anything. Pass job_id or an inline job."),
	)
	scoreTool.InputSchema = mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"resume_text":      map[string]interface{}{"type": "string", "description": "Plain-text resume"},
			"job_id":           map[string]interface{}{"type": "string", "description": "Stored job to score against"},
			"title":            map[string]interface{}{"type": "string", "description": "Inline job title"},
			"seniority":        map[string]interface{}{"type": "string", "description": "junior, mid, senior or lead"},
			"required_skills":  map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			"preferred_skills": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			"min_years":        map[string]interface{}{"type": "number", "description": "Years of experience required (optional)"},
		},
		Required: []string{"resume_text"},
	}
	s.AddTool(scoreTool, t.handleScoreResume)

	addTool := mcp.NewTool("add_resume",
		mcp.WithDescription("Parse a plain-text resume into a stored candidate, optionally applying them to a job"),
	)
	addTool.InputSchema = mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"resume_text": map[string]interface{}{"type": "string", "description": "Plain-text resume"},
			"name":        map[string]interface{}{"type": "string", "description": "Candidate name when it cannot be detected"},
			"job_id":      map[string]interface{}{"type": "string", "description": "Job to apply to (optional)"},
		},
		Required: []string{"resume_text"},
	}
	s.AddTool(addTool, t.handleAddResume)

	listTool := mcp.NewTool("list_jobs",
		mcp.WithDescription("List stored jobs"),
	)
	listTool.InputSchema = mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"limit":  map[string]interface{}{"type": "integer", "description": "Max jobs to return (optional)"},
			"offset": map[string]interface{}{"type": "integer", "description": "Jobs to skip (optional)"},
		},
	}
	s.AddTool(listTool, t.handleListJobs)

	screenTool := mcp.NewTool("screen_job",
		mcp.WithDescription("Score, decide and rank every application of a job and return the report"),
	)
	screenTool.InputSchema = mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"job_id": map[string]interface{}{"type": "string", "description": "Job to screen"},
		},
		Required: []string{"job_id"},
	}
	s.AddTool(screenTool, t.handleScreenJob)

	reportTool := mcp.NewTool("job_report",
		mcp.WithDescription("Return the ranked results of the last screening of a job"),
	)
	reportTool.InputSchema = screenTool.InputSchema
	s.AddTool(reportTool, t.handleJobReport)

	auditTool := mcp.NewTool("fairness_audit",
		mcp.WithDescription("Compute demographic parity, disparate impact (80% rule) and equal opportunity for a screened job"),
	)
	auditTool.InputSchema = mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"job_id":    map[string]interface{}{"type": "string", "description": "Screened job"},
			"attribute": map[string]interface{}{"type": "string", "description": "Protected attribute (default: gender)"},
		},
		Required: []string{"job_id"},
	}
	s.AddTool(auditTool, t.handleFairnessAudit)
}

func (t *Tools) handleScoreResume(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments format"), nil
	}

	text := stringArg(args, "resume_text")
	if text == "" {
		return mcp.NewToolResultError("resume_text is required"), nil
	}

	job, err := t.jobFromArgs(ctx, args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	parsed, err := t.agent.ParseResume(text)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse resume: %v", err)), nil
	}
	candidate := parsed.Candidate()

	breakdown, decision, err := t.agent.Evaluate(candidate, *job)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to score resume: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"candidate": candidate.Name,
		"skills":    candidate.Skills,
		"breakdown": breakdown,
		"decision":  decision,
	})
}

func (t *Tools) jobFromArgs(ctx context.Context, args map[string]interface{}) (*models.Job, error) {
	if id := stringArg(args, "job_id"); id != "" {
		return t.agent.Job(ctx, id)
	}

	job := &models.Job{
		Title:           stringArg(args, "title"),
		Seniority:       models.Seniority(stringArg(args, "seniority")),
		RequiredSkills:  stringSliceArg(args, "required_skills"),
		PreferredSkills: stringSliceArg(args, "preferred_skills"),
	}
	if v, ok := args["min_years"].(float64); ok && v > 0 {
		job.MinYears = v
	}
	if job.Title == "" {
		job.Title = "Ad-hoc job"
	}
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job: %w", err)
	}
	return job, nil
}

func (t *Tools) handleAddResume(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments format"), nil
	}

	text := stringArg(args, "resume_text")
	if text == "" {
		return mcp.NewToolResultError("resume_text is required"), nil
	}

	c, err := t.agent.AddResume(ctx, text, stringArg(args, "name"), stringArg(args, "job_id"))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to add resume: %v", err)), nil
	}
	t.logger.Info("resume added via mcp", zap.String("candidate_id", c.ID))
	return jsonResult(c)
}

func (t *Tools) handleListJobs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		args = map[string]interface{}{}
	}

	opts := store.ListOptions{}
	if v, ok := args["limit"].(float64); ok && v > 0 {
		opts.Limit = int(v)
	}
	if v, ok := args["offset"].(float64); ok && v > 0 {
		opts.Offset = int(v)
	}

	jobs, err := t.jobs.ListJobs(ctx, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list jobs: %v", err)), nil
	}
	if len(jobs) == 0 {
		return mcp.NewToolResultText("No jobs found."), nil
	}
	return jsonResult(jobs)
}

func (t *Tools) handleScreenJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, errResult := requiredJobID(request)
	if errResult != nil {
		return errResult, nil
	}

	report, err := t.agent.ScreenJob(ctx, jobID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to screen job: %v", err)), nil
	}
	return jsonResult(report)
}

func (t *Tools) handleJobReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, errResult := requiredJobID(request)
	if errResult != nil {
		return errResult, nil
	}

	report, err := t.agent.Report(ctx, jobID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load report: %v", err)), nil
	}
	return jsonResult(report)
}

func (t *Tools) handleFairnessAudit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, errResult := requiredJobID(request)
	if errResult != nil {
		return errResult, nil
	}
	args := request.Params.Arguments.(map[string]interface{})

	attribute := stringArg(args, "attribute")
	if attribute == "" {
		attribute = "gender"
	}

	audit, err := t.agent.Audit(ctx, jobID, attribute)
	if errors.Is(err, agent.ErrNotScreened) {
		return mcp.NewToolResultError("Job has not been screened yet, call screen_job first"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to audit job: %v", err)), nil
	}
	return jsonResult(audit)
}

func requiredJobID(request mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return "", mcp.NewToolResultError("invalid arguments format")
	}
	jobID := stringArg(args, "job_id")
	if jobID == "" {
		return "", mcp.NewToolResultError("job_id is required")
	}
	return jobID, nil
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

func stringSliceArg(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		if s, ok := args[key].([]string); ok {
			return s
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
