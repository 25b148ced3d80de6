package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/flowcraft/internal/marketing"
	"github.com/kalambet/flowcraft/internal/storage"
)

const recentFlowsLimit = 10

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store   *storage.Store
	Engines EngineFactory
	Now     func() time.Time // defaults to time.Now
}

// NewMCPServer creates an MCP server with the flowcraft tools and resources
// registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	s := server.NewMCPServer(
		"flowcraft",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("flowcraft compiles multi-channel marketing flows and generates channel-tailored content."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("compile_flow",
			mcp.WithDescription("Compile a marketing objective and a list of channels into a draft flow and store it."),
			mcp.WithString("objective", mcp.Description("Marketing objective"), mcp.Required()),
			mcp.WithArray("channels", mcp.Description("Channel names, e.g. twitter, linkedin, email"), mcp.Required()),
			mcp.WithString("constraints", mcp.Description("Optional JSON object of constraints (budget, audience, tone)")),
		),
		mcpCompileFlow(deps),
	)

	s.AddTool(
		mcp.NewTool("generate_content",
			mcp.WithDescription("Generate content of one type for one channel."),
			mcp.WithString("prompt", mcp.Description("What to write or render"), mcp.Required()),
			mcp.WithString("content_type", mcp.Description("post, article, image, video, story, reel, message or voice"), mcp.Required()),
			mcp.WithString("channel", mcp.Description("Target channel"), mcp.Required()),
		),
		mcpGenerateContent(deps),
	)

	s.AddTool(
		mcp.NewTool("optimize_content",
			mcp.WithDescription("Rewrite content for a channel using its performance metrics."),
			mcp.WithString("content", mcp.Description("Content to optimize"), mcp.Required()),
			mcp.WithString("channel", mcp.Description("Target channel"), mcp.Required()),
			mcp.WithString("performance", mcp.Description("JSON object of metric name to value")),
		),
		mcpOptimizeContent(deps),
	)

	s.AddTool(
		mcp.NewTool("update_analytics",
			mcp.WithDescription("Recompute the analytics of a stored flow from its A/B test metrics."),
			mcp.WithString("flow_id", mcp.Description("Flow ID"), mcp.Required()),
		),
		mcpUpdateAnalytics(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"flows://recent",
			"Recent Flows",
			mcp.WithResourceDescription("Last 10 updated flows (summaries only)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecentFlows(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"channels://specs",
			"Channel Specifications",
			mcp.WithResourceDescription("Format, length and tone constraints of every channel"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceChannels,
	)

	return s
}

func mcpCompileFlow(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		objective, err := req.RequireString("objective")
		if err != nil {
			return mcpError("objective is required"), nil
		}
		names := req.GetStringSlice("channels", nil)
		if len(names) == 0 {
			return mcpError("channels is required"), nil
		}
		channels, err := marketing.ParseChannels(names)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		var constraints map[string]any
		if raw := req.GetString("constraints", ""); raw != "" {
			if err := json.Unmarshal([]byte(raw), &constraints); err != nil {
				return mcpError(fmt.Sprintf("invalid constraints JSON: %v", err)), nil
			}
		}

		engine, err := deps.Engines(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load model configuration: %v", err)), nil
		}
		flow, err := engine.Compiler.Compile(ctx, marketing.CompileRequest{
			Objective:   objective,
			Channels:    channels,
			Constraints: constraints,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("compile failed: %v", err)), nil
		}
		if err := deps.Store.SaveFlow(flow); err != nil {
			return mcpError(fmt.Sprintf("flow compiled but failed to save: %v", err)), nil
		}

		return mcpJSON(flow)
	}
}

func mcpGenerateContent(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, err := req.RequireString("prompt")
		if err != nil {
			return mcpError("prompt is required"), nil
		}
		ct, err := req.RequireString("content_type")
		if err != nil {
			return mcpError("content_type is required"), nil
		}
		ch, err := req.RequireString("channel")
		if err != nil {
			return mcpError("channel is required"), nil
		}
		channels, err := marketing.ParseChannels([]string{ch})
		if err != nil {
			return mcpError(err.Error()), nil
		}

		engine, err := deps.Engines(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load model configuration: %v", err)), nil
		}
		content, err := engine.Generator.Generate(ctx, marketing.GenerateRequest{
			Prompt:      prompt,
			ContentType: marketing.ContentType(ct),
			Channel:     channels[0],
		})
		if err != nil {
			return mcpError(fmt.Sprintf("generation failed: %v", err)), nil
		}

		return mcpJSON(content)
	}
}

func mcpOptimizeContent(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}
		ch, err := req.RequireString("channel")
		if err != nil {
			return mcpError("channel is required"), nil
		}
		channels, err := marketing.ParseChannels([]string{ch})
		if err != nil {
			return mcpError(err.Error()), nil
		}

		var perf map[string]float64
		if raw := req.GetString("performance", ""); raw != "" {
			if err := json.Unmarshal([]byte(raw), &perf); err != nil {
				return mcpError(fmt.Sprintf("invalid performance JSON: %v", err)), nil
			}
		}

		engine, err := deps.Engines(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load model configuration: %v", err)), nil
		}
		optimized, err := engine.Optimizer.Optimize(ctx, content, channels[0], perf)
		if err != nil {
			return mcpError(fmt.Sprintf("optimization failed: %v", err)), nil
		}
		return mcpText(optimized), nil
	}
}

func mcpUpdateAnalytics(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("flow_id")
		if err != nil {
			return mcpError("flow_id is required"), nil
		}

		flow, err := deps.Store.GetFlow(id)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load flow %s: %v", id, err)), nil
		}
		marketing.UpdateAnalytics(flow)
		flow.UpdatedAt = deps.Now().UTC()
		if err := deps.Store.SaveFlow(flow); err != nil {
			return mcpError(fmt.Sprintf("failed to save flow: %v", err)), nil
		}

		return mcpJSON(flow.Analytics)
	}
}

func mcpResourceRecentFlows(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		flows, err := deps.Store.ListFlows(storage.FlowFilter{Limit: recentFlowsLimit})
		if err != nil {
			return nil, fmt.Errorf("failed to list flows: %w", err)
		}

		type flowSummary struct {
			ID        string              `json:"id"`
			Name      string              `json:"name"`
			Status    marketing.Status    `json:"status"`
			Channels  []marketing.Channel `json:"channels"`
			UpdatedAt string              `json:"updated_at"`
		}

		summaries := make([]flowSummary, len(flows))
		for i, f := range flows {
			summaries[i] = flowSummary{
				ID:        f.ID,
				Name:      f.Name,
				Status:    f.Status,
				Channels:  f.Channels(),
				UpdatedAt: f.UpdatedAt.Format(time.RFC3339),
			}
		}

		return jsonResource(req.Params.URI, summaries)
	}
}

func mcpResourceChannels(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	specs := make(map[marketing.Channel]marketing.ChannelSpec)
	for _, c := range marketing.AllChannels() {
		specs[c], _ = marketing.LookupSpec(c)
	}
	return jsonResource(req.Params.URI, specs)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
