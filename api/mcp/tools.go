package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/memories-sh/memories-go/pkg/memories"
)

var (
	addToolName    = "memories_add"
	addDescription = "Store a memory (rule, decision, fact, note or skill) in the memories service. Content is required; tags and tenant/user/project scope are optional."

	searchToolName    = "memories_search"
	searchDescription = "Search stored memories by free text. Optionally filter by memory type or layer (rule, working, long_term) and narrow the scope."

	contextToolName    = "context_get"
	contextDescription = "Retrieve the rules and memories relevant to a query, ready to prime an agent. Supports retrieval mode, strategy (baseline or hybrid_graph) and graph expansion settings."
)

func scopeOf(tenantID, userID, projectID string) memories.Scope {
	return memories.Scope{TenantID: tenantID, UserID: userID, ProjectID: projectID}
}

// AddInput represents the input arguments for the memories_add tool.
type AddInput struct {
	Content   string   `json:"content" jsonschema:"the memory text to store"`
	Type      string   `json:"type,omitempty" jsonschema:"one of rule, decision, fact, note, skill (default note)"`
	Tags      []string `json:"tags,omitempty" jsonschema:"free-form labels for the memory"`
	TenantID  string   `json:"tenantId,omitempty" jsonschema:"tenant to scope the call to, overriding the server default"`
	UserID    string   `json:"userId,omitempty" jsonschema:"user to scope the call to, overriding the server default"`
	ProjectID string   `json:"projectId,omitempty" jsonschema:"project to scope the call to, overriding the server default"`
}

// AddOutput is the structured output of memories_add.
type AddOutput struct {
	Result any `json:"result"`
}

// SearchInput represents the input arguments for the memories_search tool.
type SearchInput struct {
	Query     string `json:"query" jsonschema:"the text to search memories for"`
	Limit     *int   `json:"limit,omitempty" jsonschema:"maximum number of memories to return, 1 to 50 (default 8)"`
	Type      string `json:"type,omitempty" jsonschema:"only return memories of this type"`
	Layer     string `json:"layer,omitempty" jsonschema:"only return memories in this layer: rule, working or long_term"`
	TenantID  string `json:"tenantId,omitempty" jsonschema:"tenant to scope the call to, overriding the server default"`
	UserID    string `json:"userId,omitempty" jsonschema:"user to scope the call to, overriding the server default"`
	ProjectID string `json:"projectId,omitempty" jsonschema:"project to scope the call to, overriding the server default"`
}

// SearchOutput is the structured output of memories_search.
type SearchOutput struct {
	Count    int `json:"count"`
	Memories any `json:"memories"`
}

// ContextInput represents the input arguments for the context_get tool.
type ContextInput struct {
	Query      string `json:"query" jsonschema:"the task or question to gather context for"`
	Mode       string `json:"mode,omitempty" jsonschema:"one of all, working, long_term, rules_only (default all)"`
	Strategy   string `json:"strategy,omitempty" jsonschema:"baseline or hybrid_graph (default baseline)"`
	Limit      *int   `json:"limit,omitempty" jsonschema:"maximum number of memories, 1 to 50 (default 8)"`
	GraphDepth *int   `json:"graphDepth,omitempty" jsonschema:"graph expansion depth, 0 to 2 (default 1)"`
	GraphLimit *int   `json:"graphLimit,omitempty" jsonschema:"maximum graph neighbours, 1 to 50 (default 8)"`
	TenantID   string `json:"tenantId,omitempty" jsonschema:"tenant to scope the call to, overriding the server default"`
	UserID     string `json:"userId,omitempty" jsonschema:"user to scope the call to, overriding the server default"`
	ProjectID  string `json:"projectId,omitempty" jsonschema:"project to scope the call to, overriding the server default"`
}

// ContextOutput is the structured output of context_get.
type ContextOutput struct {
	Rules    any `json:"rules"`
	Memories any `json:"memories"`
	Trace    any `json:"trace"`
}

// handleAdd stores a memory via MCP.
func (s *Server) handleAdd(ctx context.Context, _ *mcp.CallToolRequest, input AddInput) (*mcp.CallToolResult, AddOutput, error) {
	res, err := s.config.Client.AddMemory(ctx, memories.AddMemoryInput{
		Content: input.Content,
		Type:    memories.MemoryType(input.Type),
		Tags:    input.Tags,
		Scope:   scopeOf(input.TenantID, input.UserID, input.ProjectID),
	})
	if err != nil {
		return s.errorResult(addToolName, err), AddOutput{}, nil
	}

	output := AddOutput{Result: decode(res.Data)}
	return jsonResult(output), output, nil
}

// handleSearch searches memories via MCP.
func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	in := memories.NewSearchInput(input.Query)
	if input.Limit != nil {
		in.Limit = *input.Limit
	}
	in.Type = memories.MemoryType(input.Type)
	in.Layer = memories.Layer(input.Layer)
	in.Scope = scopeOf(input.TenantID, input.UserID, input.ProjectID)

	res, err := s.config.Client.SearchMemories(ctx, in)
	if err != nil {
		return s.errorResult(searchToolName, err), SearchOutput{}, nil
	}

	output := SearchOutput{Count: res.Count, Memories: decodeAll(res.Memories)}
	return jsonResult(output), output, nil
}

// handleContext retrieves context via MCP.
func (s *Server) handleContext(ctx context.Context, _ *mcp.CallToolRequest, input ContextInput) (*mcp.CallToolResult, ContextOutput, error) {
	in := memories.NewContextInput(input.Query)
	in.Mode = memories.Mode(input.Mode)
	in.Strategy = memories.Strategy(input.Strategy)
	if input.Limit != nil {
		in.Limit = *input.Limit
	}
	if input.GraphDepth != nil {
		in.GraphDepth = *input.GraphDepth
	}
	if input.GraphLimit != nil {
		in.GraphLimit = *input.GraphLimit
	}
	in.Scope = scopeOf(input.TenantID, input.UserID, input.ProjectID)

	res, err := s.config.Client.GetContext(ctx, in)
	if err != nil {
		return s.errorResult(contextToolName, err), ContextOutput{}, nil
	}

	output := ContextOutput{
		Rules:    decodeAll(res.Rules),
		Memories: decodeAll(res.Memories),
		Trace:    decode(res.Trace),
	}
	return jsonResult(output), output, nil
}

// errorResult reports err as a tool error whose text is the same error
// envelope the HTTP API would return.
func (s *Server) errorResult(tool string, err error) *mcp.CallToolResult {
	e := memories.AsError(err)
	s.config.Logger.Warn("mcp tool failed",
		"tool", tool,
		"status", e.Status,
		"error", err,
	)

	text, merr := json.Marshal(map[string]any{"ok": false, "error": e.Payload()})
	if merr != nil {
		text = []byte(e.Error())
	}

	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(text)},
		},
	}
}

func jsonResult(output any) *mcp.CallToolResult {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to serialize results: %v", err)},
			},
		}
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}
}

func decode(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

func decodeAll(items []json.RawMessage) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		out = append(out, decode(item))
	}
	return out
}
