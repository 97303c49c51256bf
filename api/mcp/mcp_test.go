package mcp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/memories-sh/memories-go/pkg/logger"
	"github.com/memories-sh/memories-go/pkg/memories"
)

type testSettings struct {
	baseURL string
}

func (s testSettings) APIKey() (string, error)       { return "mem_test", nil }
func (s testSettings) BaseURL() string               { return s.baseURL }
func (s testSettings) ScopeDefaults() memories.Scope { return memories.Scope{TenantID: "acme"} }

var _ = Describe("MCP Server", func() {
	var (
		upstream *httptest.Server
		client   *memories.Client

		mu       sync.Mutex
		lastPath string
		lastBody map[string]any
		respond  string
	)

	BeforeEach(func() {
		respond = `{"ok":true,"data":{"id":"m1"}}`
		upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			mu.Lock()
			lastPath = r.URL.Path
			lastBody = nil
			_ = json.Unmarshal(raw, &lastBody)
			body := respond
			mu.Unlock()
			_, _ = io.WriteString(w, body)
		}))

		var err error
		client, err = memories.NewClient(memories.Config{Settings: testSettings{baseURL: upstream.URL}})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		upstream.Close()
	})

	Describe("NewServer", func() {
		It("returns an error when the client is nil", func() {
			_, err := NewServer(Config{Logger: logger.Nop()})
			Expect(err).To(MatchError("memories client is required"))
		})

		It("returns an error when logger is nil", func() {
			_, err := NewServer(Config{Client: client})
			Expect(err).To(MatchError("logger is required"))
		})

		It("returns an HTTP handler", func() {
			server, err := NewServer(Config{Client: client, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())
			Expect(server.Handler()).NotTo(BeNil())
		})
	})

	Describe("tools", func() {
		var (
			ctx     context.Context
			session *mcp.ClientSession
		)

		BeforeEach(func() {
			ctx = context.Background()

			server, err := NewServer(Config{Client: client, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())

			serverTransport, clientTransport := mcp.NewInMemoryTransports()
			_, err = server.mcpServer.Connect(ctx, serverTransport, nil)
			Expect(err).NotTo(HaveOccurred())

			c := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
			session, err = c.Connect(ctx, clientTransport, nil)
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			Expect(session.Close()).To(Succeed())
		})

		textOf := func(res *mcp.CallToolResult) string {
			Expect(res.Content).To(HaveLen(1))
			text, ok := res.Content[0].(*mcp.TextContent)
			Expect(ok).To(BeTrue())
			return text.Text
		}

		It("lists the three memories tools", func() {
			res, err := session.ListTools(ctx, nil)
			Expect(err).NotTo(HaveOccurred())

			names := []string{}
			for _, tool := range res.Tools {
				names = append(names, tool.Name)
			}
			Expect(names).To(ConsistOf("memories_add", "memories_search", "context_get"))
		})

		It("adds a memory with the default scope", func() {
			res, err := session.CallTool(ctx, &mcp.CallToolParams{
				Name:      "memories_add",
				Arguments: map[string]any{"content": " Use pnpm ", "type": "rule", "tags": []string{"build"}},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())
			Expect(textOf(res)).To(MatchJSON(`{"result":{"id":"m1"}}`))

			mu.Lock()
			defer mu.Unlock()
			Expect(lastPath).To(Equal("/api/sdk/v1/memories/add"))
			Expect(lastBody).To(Equal(map[string]any{
				"content": "Use pnpm",
				"type":    "rule",
				"tags":    []any{"build"},
				"scope":   map[string]any{"tenantId": "acme"},
			}))
		})

		It("searches with defaults", func() {
			respond = `{"ok":true,"data":{"memories":[{"id":"m1"}]}}`

			res, err := session.CallTool(ctx, &mcp.CallToolParams{
				Name:      "memories_search",
				Arguments: map[string]any{"query": "pnpm", "projectId": "p1"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())
			Expect(textOf(res)).To(MatchJSON(`{"count":1,"memories":[{"id":"m1"}]}`))

			mu.Lock()
			defer mu.Unlock()
			Expect(lastBody).To(HaveKeyWithValue("limit", float64(8)))
			Expect(lastBody).To(HaveKeyWithValue("scope", map[string]any{"tenantId": "acme", "projectId": "p1"}))
		})

		It("gets context with explicit graph settings", func() {
			respond = `{"ok":true,"data":{"rules":[{"r":1}]}}`

			res, err := session.CallTool(ctx, &mcp.CallToolParams{
				Name:      "context_get",
				Arguments: map[string]any{"query": "deploy", "strategy": "hybrid_graph", "graphDepth": 0},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())
			Expect(textOf(res)).To(MatchJSON(`{"rules":[{"r":1}],"memories":[],"trace":null}`))

			mu.Lock()
			defer mu.Unlock()
			Expect(lastBody).To(HaveKeyWithValue("strategy", "hybrid_graph"))
			Expect(lastBody).To(HaveKeyWithValue("graphDepth", float64(0)))
		})

		It("reports validation failures as tool errors", func() {
			res, err := session.CallTool(ctx, &mcp.CallToolParams{
				Name:      "memories_search",
				Arguments: map[string]any{"query": "x", "limit": 100},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())

			var envelope map[string]any
			Expect(json.Unmarshal([]byte(textOf(res)), &envelope)).To(Succeed())
			Expect(envelope).To(HaveKeyWithValue("ok", false))
			Expect(envelope["error"]).To(HaveKeyWithValue("code", "INVALID_REQUEST"))
		})

		It("reports upstream failures as tool errors", func() {
			respond = `{"ok":false,"error":{"type":"http_error","code":"QUOTA","message":"over"}}`

			res, err := session.CallTool(ctx, &mcp.CallToolParams{
				Name:      "memories_add",
				Arguments: map[string]any{"content": "x"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
			Expect(textOf(res)).To(MatchJSON(`{"ok":false,"error":{"type":"http_error","code":"QUOTA","message":"over"}}`))
		})
	})
})
