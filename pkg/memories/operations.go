package memories

import (
	"context"
	"encoding/json"
	"strings"
)

// AddMemoryInput is a memory to store. Scope holds per-call overrides of the
// configured scope defaults.
type AddMemoryInput struct {
	Content string
	Type    MemoryType
	Tags    []string
	Scope   Scope
}

// AddMemoryRequest is the upstream body for EndpointAddMemory.
type AddMemoryRequest struct {
	Content string     `json:"content"`
	Type    MemoryType `json:"type"`
	Tags    []string   `json:"tags"`
	Scope   *Scope     `json:"scope,omitempty"`
}

// AddMemoryResult pairs the request that was sent with the upstream data.
type AddMemoryResult struct {
	Request *AddMemoryRequest
	Data    json.RawMessage
}

// Request validates the input and builds the upstream body. Content is
// trimmed, Type defaults to note, and tags are trimmed with blanks dropped.
func (in AddMemoryInput) Request(defaults Scope) (*AddMemoryRequest, error) {
	verr := &ValidationError{}

	content := strings.TrimSpace(in.Content)
	if content == "" {
		verr.Add("content", "must not be empty")
	}

	typ := in.Type
	if typ == "" {
		typ = DefaultMemoryType
	}
	if !oneOf(typ, MemoryTypes) {
		verr.Add("type", "must be one of: %s", joinValues(MemoryTypes))
	}

	if err := verr.Err(); err != nil {
		return nil, err
	}

	tags := make([]string, 0, len(in.Tags))
	for _, tag := range in.Tags {
		if t := strings.TrimSpace(tag); t != "" {
			tags = append(tags, t)
		}
	}

	return &AddMemoryRequest{
		Content: content,
		Type:    typ,
		Tags:    tags,
		Scope:   NewScope(in.Scope, defaults),
	}, nil
}

// AddMemory stores a memory upstream.
func (c *Client) AddMemory(ctx context.Context, in AddMemoryInput) (*AddMemoryResult, error) {
	req, err := in.Request(c.settings.ScopeDefaults())
	if err != nil {
		return nil, err
	}

	data, err := c.Post(ctx, EndpointAddMemory, req)
	if err != nil {
		return nil, err
	}

	return &AddMemoryResult{Request: req, Data: data}, nil
}

// SearchInput is a memory search. Use NewSearchInput for defaults.
type SearchInput struct {
	Query string
	Limit int

	// Type and Layer filter results when set.
	Type  MemoryType
	Layer Layer

	Scope Scope
}

// NewSearchInput returns a SearchInput with the default limit.
func NewSearchInput(query string) SearchInput {
	return SearchInput{Query: query, Limit: DefaultLimit}
}

// SearchRequest is the upstream body for EndpointSearchMemories.
type SearchRequest struct {
	Query string     `json:"query"`
	Limit int        `json:"limit"`
	Scope *Scope     `json:"scope,omitempty"`
	Type  MemoryType `json:"type,omitempty"`
	Layer Layer      `json:"layer,omitempty"`
}

// SearchResult lists the memories matching a search.
type SearchResult struct {
	Count    int               `json:"count"`
	Memories []json.RawMessage `json:"memories"`
}

// Request validates the input and builds the upstream body.
func (in SearchInput) Request(defaults Scope) (*SearchRequest, error) {
	verr := &ValidationError{}

	if strings.TrimSpace(in.Query) == "" {
		verr.Add("q", "must not be empty")
	}
	checkRange(verr, "limit", in.Limit, MinLimit, MaxLimit)
	if in.Type != "" && !oneOf(in.Type, MemoryTypes) {
		verr.Add("type", "must be one of: %s", joinValues(MemoryTypes))
	}
	if in.Layer != "" && !oneOf(in.Layer, Layers) {
		verr.Add("layer", "must be one of: %s", joinValues(Layers))
	}

	if err := verr.Err(); err != nil {
		return nil, err
	}

	return &SearchRequest{
		Query: in.Query,
		Limit: in.Limit,
		Scope: NewScope(in.Scope, defaults),
		Type:  in.Type,
		Layer: in.Layer,
	}, nil
}

// SearchMemories searches upstream memories. Memories is empty unless the
// upstream result is an object carrying a "memories" array.
func (c *Client) SearchMemories(ctx context.Context, in SearchInput) (*SearchResult, error) {
	req, err := in.Request(c.settings.ScopeDefaults())
	if err != nil {
		return nil, err
	}

	data, err := c.Post(ctx, EndpointSearchMemories, req)
	if err != nil {
		return nil, err
	}

	fields := objectFields(data)
	memories := arrayField(fields, "memories")
	return &SearchResult{Count: len(memories), Memories: memories}, nil
}

// ContextInput is a context retrieval. Use NewContextInput for defaults;
// an empty Mode or Strategy also takes the default.
type ContextInput struct {
	Query      string
	Mode       Mode
	Strategy   Strategy
	Limit      int
	GraphDepth int
	GraphLimit int
	Scope      Scope
}

// NewContextInput returns a ContextInput with every default applied.
func NewContextInput(query string) ContextInput {
	return ContextInput{
		Query:      query,
		Mode:       DefaultMode,
		Strategy:   DefaultStrategy,
		Limit:      DefaultLimit,
		GraphDepth: DefaultGraphDepth,
		GraphLimit: DefaultGraphLimit,
	}
}

// ContextRequest is the upstream body for EndpointGetContext.
type ContextRequest struct {
	Query      string   `json:"query"`
	Mode       Mode     `json:"mode"`
	Strategy   Strategy `json:"strategy"`
	Limit      int      `json:"limit"`
	GraphDepth int      `json:"graphDepth"`
	GraphLimit int      `json:"graphLimit"`
	Scope      *Scope   `json:"scope,omitempty"`
}

// ContextResult is the context bundle for a query. Trace is JSON null when
// the upstream sends none.
type ContextResult struct {
	Rules    []json.RawMessage `json:"rules"`
	Memories []json.RawMessage `json:"memories"`
	Trace    json.RawMessage   `json:"trace"`
}

// Request validates the input and builds the upstream body.
func (in ContextInput) Request(defaults Scope) (*ContextRequest, error) {
	verr := &ValidationError{}

	if strings.TrimSpace(in.Query) == "" {
		verr.Add("q", "must not be empty")
	}

	mode := in.Mode
	if mode == "" {
		mode = DefaultMode
	}
	if !oneOf(mode, Modes) {
		verr.Add("mode", "must be one of: %s", joinValues(Modes))
	}

	strategy := in.Strategy
	if strategy == "" {
		strategy = DefaultStrategy
	}
	if !oneOf(strategy, Strategies) {
		verr.Add("strategy", "must be one of: %s", joinValues(Strategies))
	}

	checkRange(verr, "limit", in.Limit, MinLimit, MaxLimit)
	checkRange(verr, "graphDepth", in.GraphDepth, 0, MaxGraphDepth)
	checkRange(verr, "graphLimit", in.GraphLimit, MinLimit, MaxLimit)

	if err := verr.Err(); err != nil {
		return nil, err
	}

	return &ContextRequest{
		Query:      in.Query,
		Mode:       mode,
		Strategy:   strategy,
		Limit:      in.Limit,
		GraphDepth: in.GraphDepth,
		GraphLimit: in.GraphLimit,
		Scope:      NewScope(in.Scope, defaults),
	}, nil
}

// GetContext retrieves rules and memories relevant to a query.
func (c *Client) GetContext(ctx context.Context, in ContextInput) (*ContextResult, error) {
	req, err := in.Request(c.settings.ScopeDefaults())
	if err != nil {
		return nil, err
	}

	data, err := c.Post(ctx, EndpointGetContext, req)
	if err != nil {
		return nil, err
	}

	fields := objectFields(data)
	return &ContextResult{
		Rules:    arrayField(fields, "rules"),
		Memories: arrayField(fields, "memories"),
		Trace:    fields["trace"],
	}, nil
}

func checkRange(verr *ValidationError, field string, v, lo, hi int) {
	if v < lo || v > hi {
		verr.Add(field, "must be between %d and %d", lo, hi)
	}
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

// objectFields returns the members of a JSON object, or nil for any other value.
func objectFields(data json.RawMessage) map[string]json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}
	return fields
}

// arrayField returns fields[key] when it is a JSON array, and an empty
// slice otherwise.
func arrayField(fields map[string]json.RawMessage, key string) []json.RawMessage {
	var items []json.RawMessage
	if err := json.Unmarshal(fields[key], &items); err != nil || items == nil {
		return []json.RawMessage{}
	}
	return items
}
