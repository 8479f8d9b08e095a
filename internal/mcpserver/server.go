// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Tessera tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tesselcraft/tessera/internal/apperr"
	"github.com/tesselcraft/tessera/internal/models"
	"github.com/tesselcraft/tessera/internal/schemaservice"
)

// Server wraps the MCP server with Tessera tools.
type Server struct {
	mcp *server.MCPServer
	svc *schemaservice.Service
}

// New creates a new MCP server with all Tessera tools registered.
func New(svc *schemaservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Tessera",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_schemas",
		mcp.WithDescription("List stored widget schemas with their keys, names, and types."),
		mcp.WithString("type", mcp.Description("Optional type filter: static or dynamic (empty for all)")),
	), s.listSchemas)

	s.mcp.AddTool(mcp.NewTool("search_schemas",
		mcp.WithDescription("Search stored schemas by name and description."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchSchemas)

	s.mcp.AddTool(mcp.NewTool("read_schema",
		mcp.WithDescription("Read the full schema document stored under a widget key."),
		mcp.WithString("widgetKey", mcp.Required(), mcp.Description("Widget key of the schema (e.g. widget.spot_price)")),
	), s.readSchema)

	s.mcp.AddTool(mcp.NewTool("upsert_schema",
		mcp.WithDescription("Create or replace a schema document. The document MUST follow "+
			"the canonical Tessera schema format (JSON with name, type, widgetKey, channel "+
			"bindings, and a schema tree). Read the contract first via the "+
			"get_schema_contract tool or the tessera://schema-format resource."),
		mcp.WithString("document", mcp.Required(), mcp.Description("Schema document as a JSON string following the Tessera schema format contract")),
	), s.upsertSchema)

	s.mcp.AddTool(mcp.NewTool("get_schema_contract",
		mcp.WithDescription("Returns the canonical Tessera schema format contract. "+
			"Call this before creating or updating schemas to ensure correct structure."),
	), s.getSchemaContract)

	s.mcp.AddTool(mcp.NewTool("resolve_schema",
		mcp.WithDescription("Compose the full widget tree for a schema: nested references "+
			"inlined, unresolvable ones replaced by placeholder nodes."),
		mcp.WithString("widgetKey", mcp.Required(), mcp.Description("Widget key of the schema to resolve")),
	), s.resolveSchema)

	s.mcp.AddTool(mcp.NewTool("required_channels",
		mcp.WithDescription("List the live data channels the composed tree under a widget key consumes."),
		mcp.WithString("widgetKey", mcp.Required(), mcp.Description("Widget key of the schema to inspect")),
	), s.requiredChannels)

	// Resource: schema format contract.
	s.mcp.AddResource(
		mcp.NewResource("tessera://schema-format", "Schema Format Contract",
			mcp.WithResourceDescription("Canonical JSON schema document format that all schemas must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSchemaFormatResource,
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

type schemaSummary struct {
	WidgetKey string            `json:"widgetKey"`
	Name      string            `json:"name"`
	Type      models.SchemaType `json:"type"`
	UpdatedAt int64             `json:"updatedAt"`
}

func (s *Server) listSchemas(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ := ""
	if v, err := req.RequireString("type"); err == nil {
		typ = v
	}

	schemas, _, err := s.svc.List(ctx, 500, 0, typ, "widget_key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	summaries := make([]schemaSummary, 0, len(schemas))
	for _, sc := range schemas {
		summaries = append(summaries, schemaSummary{
			WidgetKey: sc.WidgetKey,
			Name:      sc.Name,
			Type:      sc.Type,
			UpdatedAt: sc.UpdatedAt,
		})
	}
	out, _ := json.MarshalIndent(summaries, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) searchSchemas(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no matches"), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("widgetKey")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	schema, err := s.svc.Get(ctx, key)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", key)), nil
	}
	out, _ := json.MarshalIndent(schema, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) upsertSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	document, err := req.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var doc models.SchemaProject
	if err := json.Unmarshal([]byte(document), &doc); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("document is not valid JSON: %v", err)), nil
	}

	// An existing widget key means replace; anything else is a create.
	if doc.WidgetKey != "" {
		taken, err := s.svc.Exists(ctx, doc.WidgetKey)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if taken {
			updated, err := s.svc.Update(ctx, doc.WidgetKey, &doc)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultText(fmt.Sprintf("updated: %s", updated.WidgetKey)), nil
		}
	}

	created, err := s.svc.Create(ctx, &doc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", created.WidgetKey)), nil
}

func (s *Server) getSchemaContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(SchemaFormatContract), nil
}

func (s *Server) resolveSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("widgetKey")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	snap, err := s.svc.Resolve(ctx, key)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", key)), nil
	}
	if err != nil && snap.Tree == nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	// A degraded run still carries a renderable fallback tree; the snapshot's
	// state and error fields tell the consumer what happened.
	out, _ := json.MarshalIndent(snap, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) requiredChannels(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("widgetKey")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	bindings, err := s.svc.RequiredChannels(ctx, key)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", key)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bindings) == 0 {
		return mcp.NewToolResultText("no channels required"), nil
	}
	out, _ := json.MarshalIndent(bindings, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readSchemaFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "tessera://schema-format",
			MIMEType: "text/markdown",
			Text:     SchemaFormatContract,
		},
	}, nil
}
