package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/partsbin/internal/apperror"
	"github.com/kalambet/partsbin/internal/catalog"
	"github.com/kalambet/partsbin/internal/inventory"
)

// SummaryURI is the MCP resource describing the active inventory.
const SummaryURI = "inventory://summary"

// NewMCPServer creates an MCP server with all partsbin tools and resources registered.
func NewMCPServer(deps Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"partsbin",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("partsbin: local inventory of electronics components. Query stock and ask for project ideas."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_components",
			mcp.WithDescription("List components in the active inventory."),
			mcp.WithString("type", mcp.Description("Category name or id to filter by")),
			mcp.WithString("search", mcp.Description("Substring matched against part number, value, location and notes")),
			mcp.WithNumber("low_stock", mcp.Description("Only components with quantity at or below this threshold")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 50)")),
		),
		mcpListComponents(deps),
	)

	s.AddTool(
		mcp.NewTool("get_component",
			mcp.WithDescription("Get one component by id or part number."),
			mcp.WithString("id", mcp.Description("Component id or part number"), mcp.Required()),
		),
		mcpGetComponent(deps),
	)

	s.AddTool(
		mcp.NewTool("list_categories",
			mcp.WithDescription("List component categories and their attributes."),
		),
		mcpListCategories(deps),
	)

	s.AddTool(
		mcp.NewTool("project_ideas",
			mcp.WithDescription("Suggest electronics projects that can be built from the given components."),
			mcp.WithArray("components", mcp.Description("Component ids or part numbers; empty means the whole inventory")),
		),
		mcpProjectIdeas(deps),
	)

	s.AddResource(
		mcp.NewResource(
			SummaryURI,
			"Inventory Summary",
			mcp.WithResourceDescription("Active inventory with component and unit counts per category"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSummary(deps),
	)

	return s
}

func mcpListComponents(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 50)
		if limit <= 0 {
			limit = 50
		}
		if limit > 500 {
			limit = 500
		}
		f := inventory.Filter{
			Type:   req.GetString("type", ""),
			Search: req.GetString("search", ""),
			Limit:  limit,
		}
		if n := req.GetInt("low_stock", -1); n >= 0 {
			f.LowStock = &n
		}

		var cs []catalog.Component
		err := deps.Manager.Do(ctx, func(svc *inventory.Service) error {
			var err error
			cs, err = svc.List(ctx, f)
			return err
		})
		if err != nil {
			return mcpError(fmt.Sprintf("list failed: %s", apperror.UserMessage(err))), nil
		}
		if len(cs) == 0 {
			return mcpText("[]"), nil
		}
		return mcpJSON(componentViews(deps.Registry, cs))
	}
}

func mcpGetComponent(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		var c catalog.Component
		err = deps.Manager.Do(ctx, func(svc *inventory.Service) error {
			var err error
			c, err = svc.Lookup(ctx, id)
			return err
		})
		if err != nil {
			return mcpError(apperror.UserMessage(err)), nil
		}
		return mcpJSON(componentViews(deps.Registry, []catalog.Component{c})[0])
	}
}

func mcpListCategories(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcpJSON(deps.Registry.List())
	}
}

func mcpProjectIdeas(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Ideas == nil || !deps.Ideas.Available() {
			return mcpError("project ideas not available: no LLM API key configured"), nil
		}

		var cs []catalog.Component
		ids := req.GetStringSlice("components", nil)
		err := deps.Manager.Do(ctx, func(svc *inventory.Service) error {
			if len(ids) == 0 {
				var err error
				cs, err = svc.List(ctx, inventory.Filter{})
				return err
			}
			for _, id := range ids {
				c, err := svc.Lookup(ctx, id)
				if err != nil {
					return err
				}
				cs = append(cs, c)
			}
			return nil
		})
		if err != nil {
			return mcpError(apperror.UserMessage(err)), nil
		}

		text, err := deps.Ideas.Suggest(ctx, cs)
		if err != nil {
			return mcpError(apperror.UserMessage(err)), nil
		}
		return mcpText(text), nil
	}
}

func mcpResourceSummary(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		var sum inventory.Summary
		err := deps.Manager.Do(ctx, func(svc *inventory.Service) error {
			var err error
			sum, err = svc.Summarize(ctx)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to summarize inventory: %w", err)
		}

		b, err := json.Marshal(map[string]any{
			"inventory": deps.Manager.Active(),
			"summary":   sum,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal summary: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func componentViews(reg *catalog.Registry, cs []catalog.Component) []componentView {
	out := make([]componentView, len(cs))
	for i, c := range cs {
		out[i] = componentView{Component: c, TypeName: reg.DisplayName(c.Type), Value: reg.ValueOf(c)}
	}
	return out
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
