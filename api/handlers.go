package api

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/memories-sh/memories-go/pkg/eventstream"
	"github.com/memories-sh/memories-go/pkg/memories"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
	BaseURL string `json:"baseUrl"`
}

// AddMemoryRequest is the body of POST /memories/add.
type AddMemoryRequest struct {
	Content   string              `json:"content"`
	Type      memories.MemoryType `json:"type"`
	Tags      []string            `json:"tags"`
	TenantID  string              `json:"tenantId"`
	UserID    string              `json:"userId"`
	ProjectID string              `json:"projectId"`
}

// AddMemoryResponse is returned by POST /memories/add.
type AddMemoryResponse struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
}

// SearchResponse is returned by GET /memories/search.
type SearchResponse struct {
	OK bool `json:"ok"`
	memories.SearchResult
}

// ContextResponse is returned by GET /context.
type ContextResponse struct {
	OK bool `json:"ok"`
	memories.ContextResult
}

// handleHealth reports liveness without calling upstream.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		OK:      true,
		Service: s.config.ServiceName,
		BaseURL: s.client.Settings().BaseURL(),
	})
}

// handleAddMemory stores a memory and emits a memories.memory.added event.
func (s *Server) handleAddMemory(c *fiber.Ctx) error {
	started := time.Now()

	var req AddMemoryRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		verr := &memories.ValidationError{}
		verr.Add("body", "must be a JSON object: %v", err)
		return writeError(c, verr)
	}

	res, err := s.client.AddMemory(c.UserContext(), memories.AddMemoryInput{
		Content: req.Content,
		Type:    req.Type,
		Tags:    req.Tags,
		Scope:   memories.Scope{TenantID: req.TenantID, UserID: req.UserID, ProjectID: req.ProjectID},
	})
	if err != nil {
		return writeError(c, err)
	}

	s.emitMemoryAdded(c, started, res.Request)

	return c.JSON(AddMemoryResponse{OK: true, Result: res.Data})
}

// handleSearchMemories searches memories by the q query parameter.
func (s *Server) handleSearchMemories(c *fiber.Ctx) error {
	verr := &memories.ValidationError{}

	in := memories.NewSearchInput(c.Query("q"))
	in.Limit = queryInt(c, verr, "limit", in.Limit)
	in.Type = memories.MemoryType(queryEnum(c, verr, "type", ""))
	in.Layer = memories.Layer(queryEnum(c, verr, "layer", ""))
	in.Scope = queryScope(c)

	if err := verr.Err(); err != nil {
		return writeError(c, err)
	}

	res, err := s.client.SearchMemories(c.UserContext(), in)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(SearchResponse{OK: true, SearchResult: *res})
}

// handleContext retrieves rules and memories relevant to q.
func (s *Server) handleContext(c *fiber.Ctx) error {
	verr := &memories.ValidationError{}

	in := memories.NewContextInput(c.Query("q"))
	in.Mode = memories.Mode(queryEnum(c, verr, "mode", string(in.Mode)))
	in.Strategy = memories.Strategy(queryEnum(c, verr, "strategy", string(in.Strategy)))
	in.Limit = queryInt(c, verr, "limit", in.Limit)
	in.GraphDepth = queryInt(c, verr, "graphDepth", in.GraphDepth)
	in.GraphLimit = queryInt(c, verr, "graphLimit", in.GraphLimit)
	in.Scope = queryScope(c)

	if err := verr.Err(); err != nil {
		return writeError(c, err)
	}

	res, err := s.client.GetContext(c.UserContext(), in)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(ContextResponse{OK: true, ContextResult: *res})
}

// emitMemoryAdded enqueues the event for a successful add. It never blocks.
// Strings taken from c are copied since the event outlives the request.
func (s *Server) emitMemoryAdded(c *fiber.Ctx, started time.Time, req *memories.AddMemoryRequest) {
	if s.events == nil {
		return
	}

	completed := time.Now()
	s.events.Enqueue(eventstream.NewMemoryAddedEvent(
		eventstream.EventSource{
			Service: s.config.ServiceName,
			BaseURL: s.client.Settings().BaseURL(),
		},
		eventstream.RequestMeta{
			Path:        utils.CopyString(c.Path()),
			RequestID:   utils.CopyString(requestID(c)),
			StartedAt:   started.UTC(),
			CompletedAt: completed.UTC(),
			DurationMs:  completed.Sub(started).Milliseconds(),
			HTTPStatus:  fiber.StatusOK,
		},
		eventstream.MemoryMetaFrom(req),
	))
}

// queryInt parses an optional integer query parameter, recording an issue
// when it is present but not an integer.
func queryInt(c *fiber.Ctx, verr *memories.ValidationError, name string, def int) int {
	if !c.Context().QueryArgs().Has(name) {
		return def
	}

	v, err := strconv.Atoi(strings.TrimSpace(c.Query(name)))
	if err != nil {
		verr.Add(name, "must be an integer")
		return def
	}
	return v
}

// queryEnum reads an optional enum query parameter. A parameter that is
// present but empty is an issue rather than a request for the default.
func queryEnum(c *fiber.Ctx, verr *memories.ValidationError, name, def string) string {
	if !c.Context().QueryArgs().Has(name) {
		return def
	}

	v := c.Query(name)
	if v == "" {
		verr.Add(name, "must not be empty")
		return def
	}
	return v
}

func queryScope(c *fiber.Ctx) memories.Scope {
	return memories.Scope{
		TenantID:  c.Query("tenantId"),
		UserID:    c.Query("userId"),
		ProjectID: c.Query("projectId"),
	}
}
