package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	memoriesconfig "github.com/memories-sh/memories-go/pkg/config"
	"github.com/memories-sh/memories-go/pkg/eventstream"
	"github.com/memories-sh/memories-go/pkg/logger"
	"github.com/memories-sh/memories-go/pkg/memories"
)

type testSettings struct {
	apiKey  string
	baseURL string
	scope   memories.Scope
}

func (s *testSettings) APIKey() (string, error) {
	if strings.TrimSpace(s.apiKey) == "" {
		return "", errors.New("Missing environment variable: MEMORIES_API_KEY")
	}
	return s.apiKey, nil
}

func (s *testSettings) BaseURL() string               { return s.baseURL }
func (s *testSettings) ScopeDefaults() memories.Scope { return s.scope }

// fakeQueue records enqueued events.
type fakeQueue struct {
	mu     sync.Mutex
	events []*eventstream.MemoryAddedEvent
}

func (q *fakeQueue) Enqueue(event *eventstream.MemoryAddedEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, event)
	return true
}

func (q *fakeQueue) enqueued() []*eventstream.MemoryAddedEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*eventstream.MemoryAddedEvent(nil), q.events...)
}

// upstreamCall is one request seen by the fake upstream.
type upstreamCall struct {
	Path   string
	Header http.Header
	Body   map[string]any
}

var _ = Describe("Server", func() {
	var (
		upstream *httptest.Server
		settings *testSettings
		queue    *fakeQueue
		server   *Server
		config   Config

		mu       sync.Mutex
		calls    []upstreamCall
		status   int
		response string
	)

	setUpstream := func(code int, body string) {
		mu.Lock()
		defer mu.Unlock()
		status, response = code, body
	}

	upstreamCalls := func() []upstreamCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]upstreamCall(nil), calls...)
	}

	do := func(req *http.Request) (int, map[string]any, http.Header) {
		resp, err := server.app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())

		var body map[string]any
		Expect(json.Unmarshal(raw, &body)).To(Succeed(), "body: %s", raw)
		return resp.StatusCode, body, resp.Header
	}

	get := func(target string) (int, map[string]any) {
		code, body, _ := do(httptest.NewRequest(http.MethodGet, target, nil))
		return code, body
	}

	postJSON := func(target, payload string) (int, map[string]any) {
		req := httptest.NewRequest(http.MethodPost, target, bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		code, body, _ := do(req)
		return code, body
	}

	BeforeEach(func() {
		mu.Lock()
		calls = nil
		mu.Unlock()
		setUpstream(http.StatusOK, `{"ok":true,"data":{"id":"m1"}}`)

		upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			var decoded map[string]any
			_ = json.Unmarshal(raw, &decoded)

			mu.Lock()
			calls = append(calls, upstreamCall{Path: r.URL.Path, Header: r.Header.Clone(), Body: decoded})
			code, body := status, response
			mu.Unlock()

			w.WriteHeader(code)
			_, _ = io.WriteString(w, body)
		}))

		settings = &testSettings{apiKey: "mem_test", baseURL: upstream.URL}
		queue = &fakeQueue{}
		config = Config{ListenAddr: ":0", DisableMCP: true}
	})

	JustBeforeEach(func() {
		client, err := memories.NewClient(memories.Config{Settings: settings})
		Expect(err).NotTo(HaveOccurred())

		server, err = NewServer(config, client, queue, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		upstream.Close()
	})

	It("requires a client and a logger", func() {
		_, err := NewServer(Config{}, nil, nil, logger.Nop())
		Expect(err).To(MatchError("memories client is required"))
	})

	Describe("GET /health", func() {
		BeforeEach(func() {
			settings.baseURL = "http://x/"
		})

		It("reports the service and base URL without calling upstream", func() {
			code, body := get("/health")
			Expect(code).To(Equal(http.StatusOK))
			Expect(body).To(Equal(map[string]any{
				"ok":      true,
				"service": "memories-python-starter",
				"baseUrl": "http://x/",
			}))
			Expect(upstreamCalls()).To(BeEmpty())
		})

		It("reports the default base URL when none is configured", func() {
			GinkgoT().Setenv("MEMORIES_BASE_URL", "")
			v, err := memoriesconfig.InitViper(GinkgoT().TempDir())
			Expect(err).NotTo(HaveOccurred())

			client, err := memories.NewClient(memories.Config{Settings: memoriesconfig.NewResolver(v)})
			Expect(err).NotTo(HaveOccurred())
			server, err = NewServer(config, client, queue, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			raw, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(raw).To(MatchJSON(`{"ok":true,"service":"memories-python-starter","baseUrl":"https://memories.sh"}`))
		})

		It("sets a request ID header", func() {
			_, _, header := do(httptest.NewRequest(http.MethodGet, "/health", nil))
			Expect(header.Get(fiber.HeaderXRequestID)).To(HaveLen(36))
		})
	})

	Describe("POST /memories/add", func() {
		It("forwards the cleaned memory and wraps the result", func() {
			code, body := postJSON("/memories/add", `{"content":"  Use pnpm ","tags":[" a ",""],"projectId":"p1"}`)
			Expect(code).To(Equal(http.StatusOK))
			Expect(body).To(Equal(map[string]any{"ok": true, "result": map[string]any{"id": "m1"}}))

			got := upstreamCalls()
			Expect(got).To(HaveLen(1))
			Expect(got[0].Path).To(Equal("/api/sdk/v1/memories/add"))
			Expect(got[0].Header.Get("Authorization")).To(Equal("Bearer mem_test"))
			Expect(got[0].Body).To(Equal(map[string]any{
				"content": "Use pnpm",
				"type":    "note",
				"tags":    []any{"a"},
				"scope":   map[string]any{"projectId": "p1"},
			}))
		})

		It("enqueues exactly one memory added event", func() {
			code, _ := postJSON("/memories/add", `{"content":"Use pnpm","type":"rule","tags":["build"]}`)
			Expect(code).To(Equal(http.StatusOK))

			events := queue.enqueued()
			Expect(events).To(HaveLen(1))
			Expect(events[0].EventType).To(Equal(eventstream.EventTypeMemoryAdded))
			Expect(events[0].Source.Service).To(Equal("memories-python-starter"))
			Expect(events[0].RequestMeta.Path).To(Equal("/memories/add"))
			Expect(events[0].RequestMeta.HTTPStatus).To(Equal(http.StatusOK))
			Expect(events[0].RequestMeta.RequestID).NotTo(BeEmpty())
			Expect(events[0].Memory.Type).To(Equal(memories.MemoryTypeRule))
			Expect(events[0].Memory.Tags).To(Equal([]string{"build"}))
			Expect(events[0].Memory.ContentLength).To(Equal(8))
		})

		It("keeps each request's own ID on events sent over one keep-alive connection", func() {
			ln, err := net.Listen("tcp", "127.0.0.1:0")
			Expect(err).NotTo(HaveOccurred())
			go func() { _ = server.app.Listener(ln) }()
			DeferCleanup(server.app.Shutdown)

			httpClient := &http.Client{Transport: &http.Transport{MaxConnsPerHost: 1}}
			DeferCleanup(httpClient.CloseIdleConnections)

			ids := []string{"AAAAAAAAAAAAAAAA", "BBBBBBBBBBBBBBBB", "CCCCCCCCCCCCCCCC"}
			for _, id := range ids {
				req, err := http.NewRequest(http.MethodPost, "http://"+ln.Addr().String()+"/memories/add", strings.NewReader(`{"content":"Use pnpm"}`))
				Expect(err).NotTo(HaveOccurred())
				req.Header.Set("Content-Type", "application/json")
				req.Header.Set(fiber.HeaderXRequestID, id)

				resp, err := httpClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				_, _ = io.Copy(io.Discard, resp.Body)
				Expect(resp.Body.Close()).To(Succeed())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get(fiber.HeaderXRequestID)).To(Equal(id))
			}

			events := queue.enqueued()
			Expect(events).To(HaveLen(len(ids)))
			for i, id := range ids {
				Expect(events[i].RequestMeta.RequestID).To(Equal(id))
			}
		})

		It("rejects blank content with 422 before calling upstream", func() {
			code, body := postJSON("/memories/add", `{"content":"   "}`)
			Expect(code).To(Equal(http.StatusUnprocessableEntity))
			Expect(body).To(HaveKeyWithValue("ok", false))
			Expect(body["error"]).To(HaveKeyWithValue("type", "validation_error"))
			Expect(body["error"]).To(HaveKeyWithValue("code", "INVALID_REQUEST"))
			Expect(body["error"]).To(HaveKeyWithValue("details", ContainElement(HaveKeyWithValue("field", "content"))))
			Expect(upstreamCalls()).To(BeEmpty())
			Expect(queue.enqueued()).To(BeEmpty())
		})

		It("rejects malformed JSON with 422", func() {
			code, body := postJSON("/memories/add", `{"content":`)
			Expect(code).To(Equal(http.StatusUnprocessableEntity))
			Expect(body["error"]).To(HaveKeyWithValue("code", "INVALID_REQUEST"))
			Expect(upstreamCalls()).To(BeEmpty())
		})

		Context("when the API key is missing", func() {
			BeforeEach(func() {
				settings.apiKey = ""
			})

			It("fails with 500 MISSING_ENV and no upstream call", func() {
				code, body := postJSON("/memories/add", `{"content":"x"}`)
				Expect(code).To(Equal(http.StatusInternalServerError))
				Expect(body).To(Equal(map[string]any{
					"ok": false,
					"error": map[string]any{
						"type":    "validation_error",
						"code":    "MISSING_ENV",
						"message": "Missing environment variable: MEMORIES_API_KEY",
					},
				}))
				Expect(upstreamCalls()).To(BeEmpty())
				Expect(queue.enqueued()).To(BeEmpty())
			})
		})

		It("passes an envelope failure through with the upstream status", func() {
			setUpstream(http.StatusOK, `{"ok":false,"error":{"type":"http_error","code":"QUOTA","message":"over"}}`)

			code, body := postJSON("/memories/add", `{"content":"x"}`)
			Expect(code).To(Equal(http.StatusOK))
			Expect(body).To(Equal(map[string]any{
				"ok":    false,
				"error": map[string]any{"type": "http_error", "code": "QUOTA", "message": "over"},
			}))
			Expect(queue.enqueued()).To(BeEmpty())
		})

		It("maps a non-envelope upstream failure to HTTP_<status>", func() {
			setUpstream(http.StatusServiceUnavailable, `{"detail":"down"}`)

			code, body := postJSON("/memories/add", `{"content":"x"}`)
			Expect(code).To(Equal(http.StatusServiceUnavailable))
			Expect(body).To(Equal(map[string]any{
				"ok": false,
				"error": map[string]any{
					"type":    "http_error",
					"code":    "HTTP_503",
					"message": "Upstream request failed",
					"details": map[string]any{"detail": "down"},
				},
			}))
		})

		It("maps a non-JSON upstream body to 502 INVALID_JSON", func() {
			setUpstream(http.StatusOK, `not json`)

			code, body := postJSON("/memories/add", `{"content":"x"}`)
			Expect(code).To(Equal(http.StatusBadGateway))
			Expect(body["error"]).To(HaveKeyWithValue("code", "INVALID_JSON"))
		})
	})

	Describe("GET /memories/search", func() {
		It("returns the count and memories", func() {
			setUpstream(http.StatusOK, `{"ok":true,"data":{"memories":[{"id":1}]}}`)

			code, body := get("/memories/search?q=pnpm&type=rule&tenantId=acme")
			Expect(code).To(Equal(http.StatusOK))
			Expect(body).To(Equal(map[string]any{
				"ok":       true,
				"count":    float64(1),
				"memories": []any{map[string]any{"id": float64(1)}},
			}))

			got := upstreamCalls()
			Expect(got).To(HaveLen(1))
			Expect(got[0].Path).To(Equal("/api/sdk/v1/memories/search"))
			Expect(got[0].Body).To(Equal(map[string]any{
				"query": "pnpm",
				"limit": float64(8),
				"type":  "rule",
				"scope": map[string]any{"tenantId": "acme"},
			}))
		})

		It("returns an empty list when memories is not an array", func() {
			setUpstream(http.StatusOK, `{"ok":true,"data":{"memories":"nope"}}`)

			code, body := get("/memories/search?q=x")
			Expect(code).To(Equal(http.StatusOK))
			Expect(body).To(Equal(map[string]any{"ok": true, "count": float64(0), "memories": []any{}}))
		})

		DescribeTable("rejects invalid parameters with 422",
			func(target string) {
				code, body := get(target)
				Expect(code).To(Equal(http.StatusUnprocessableEntity))
				Expect(body).To(HaveKeyWithValue("ok", false))
				Expect(upstreamCalls()).To(BeEmpty())
			},
			Entry("missing q", "/memories/search"),
			Entry("blank q", "/memories/search?q=%20%20"),
			Entry("limit zero", "/memories/search?q=x&limit=0"),
			Entry("limit too high", "/memories/search?q=x&limit=51"),
			Entry("limit not a number", "/memories/search?q=x&limit=ten"),
			Entry("unknown layer", "/memories/search?q=x&layer=short"),
		)

		DescribeTable("rejects empty enum parameters instead of dropping them",
			func(target, field string) {
				code, body := get(target)
				Expect(code).To(Equal(http.StatusUnprocessableEntity))
				Expect(body["error"]).To(HaveKeyWithValue("details", ContainElement(HaveKeyWithValue("field", field))))
				Expect(upstreamCalls()).To(BeEmpty())
			},
			Entry("empty type", "/memories/search?q=x&type=", "type"),
			Entry("empty layer", "/memories/search?q=x&layer=", "layer"),
			Entry("empty mode", "/context?q=x&mode=", "mode"),
			Entry("empty strategy", "/context?q=x&strategy=", "strategy"),
		)
	})

	Describe("GET /context", func() {
		It("sends defaults and fills missing fields", func() {
			setUpstream(http.StatusOK, `{"ok":true,"data":{"rules":[{"r":1}]}}`)

			code, body := get("/context?q=deploy")
			Expect(code).To(Equal(http.StatusOK))
			Expect(body).To(Equal(map[string]any{
				"ok":       true,
				"rules":    []any{map[string]any{"r": float64(1)}},
				"memories": []any{},
				"trace":    nil,
			}))

			got := upstreamCalls()
			Expect(got).To(HaveLen(1))
			Expect(got[0].Path).To(Equal("/api/sdk/v1/context/get"))
			Expect(got[0].Body).To(Equal(map[string]any{
				"query":      "deploy",
				"mode":       "all",
				"strategy":   "baseline",
				"limit":      float64(8),
				"graphDepth": float64(1),
				"graphLimit": float64(8),
			}))
		})

		It("accepts explicit retrieval settings", func() {
			code, _ := get("/context?q=x&mode=rules_only&strategy=hybrid_graph&limit=3&graphDepth=0&graphLimit=2")
			Expect(code).To(Equal(http.StatusOK))

			got := upstreamCalls()
			Expect(got).To(HaveLen(1))
			Expect(got[0].Body).To(HaveKeyWithValue("mode", "rules_only"))
			Expect(got[0].Body).To(HaveKeyWithValue("strategy", "hybrid_graph"))
			Expect(got[0].Body).To(HaveKeyWithValue("graphDepth", float64(0)))
			Expect(got[0].Body).To(HaveKeyWithValue("graphLimit", float64(2)))
		})

		It("rejects a graph depth above 2", func() {
			code, body := get("/context?q=x&graphDepth=3")
			Expect(code).To(Equal(http.StatusUnprocessableEntity))
			Expect(body["error"]).To(HaveKeyWithValue("details", ContainElement(HaveKeyWithValue("field", "graphDepth"))))
			Expect(upstreamCalls()).To(BeEmpty())
		})
	})

	Describe("framework errors", func() {
		It("renders unknown routes as an ok:false 404", func() {
			code, body := get("/nope")
			Expect(code).To(Equal(http.StatusNotFound))
			Expect(body).To(HaveKeyWithValue("ok", false))
			Expect(body["error"]).To(HaveKeyWithValue("code", "HTTP_404"))
		})

		It("renders panics as an ok:false 500", func() {
			server.app.Get("/boom", func(_ *fiber.Ctx) error {
				panic("boom")
			})

			code, body := get("/boom")
			Expect(code).To(Equal(http.StatusInternalServerError))
			Expect(body).To(Equal(map[string]any{
				"ok": false,
				"error": map[string]any{
					"type":    "http_error",
					"code":    "INTERNAL_ERROR",
					"message": "Internal server error",
				},
			}))
		})
	})

	Describe("MCP endpoint", func() {
		initialize := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"test","version":"0"}}}`

		mcpRequest := func() *http.Request {
			req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(initialize))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json, text/event-stream")
			return req
		}

		It("is not served when disabled", func() {
			resp, err := server.app.Test(mcpRequest(), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		Context("when enabled", func() {
			BeforeEach(func() {
				config.DisableMCP = false
			})

			It("answers MCP requests", func() {
				resp, err := server.app.Test(mcpRequest(), -1)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
			})
		})
	})
})
