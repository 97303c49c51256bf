package memories_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/memories-sh/memories-go/pkg/memories"
)

var _ = Describe("Operations", func() {
	var (
		upstream *fakeUpstream
		settings stubSettings
		client   *memories.Client
		ctx      context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		upstream = newFakeUpstream(http.StatusOK, `{"ok":true,"data":{"id":"m1"}}`)
		settings = stubSettings{apiKey: "k", baseURL: upstream.URL}
	})

	JustBeforeEach(func() {
		var err error
		client, err = memories.NewClient(memories.Config{Settings: settings})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		upstream.Close()
	})

	expectValidation := func(err error, fields ...string) {
		var verr *memories.ValidationError
		Expect(errors.As(err, &verr)).To(BeTrue(), "expected validation error, got %v", err)
		got := make([]string, 0, len(verr.Issues))
		for _, issue := range verr.Issues {
			got = append(got, issue.Field)
		}
		Expect(got).To(ConsistOf(fields))
		Expect(upstream.calls()).To(BeEmpty())
	}

	Describe("AddMemory", func() {
		It("defaults the type, cleans tags and omits an empty scope", func() {
			res, err := client.AddMemory(ctx, memories.AddMemoryInput{
				Content: "  Use pnpm  ",
				Tags:    []string{" a ", "", "  ", "b"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Data).To(MatchJSON(`{"id":"m1"}`))

			Expect(upstream.calls()[0].Path).To(Equal("/api/sdk/v1/memories/add"))
			Expect(upstream.lastBody()).To(Equal(map[string]any{
				"content": "Use pnpm",
				"type":    "note",
				"tags":    []any{"a", "b"},
			}))
		})

		It("sends an empty tags array when none are given", func() {
			_, err := client.AddMemory(ctx, memories.AddMemoryInput{Content: "x", Type: memories.MemoryTypeRule})
			Expect(err).NotTo(HaveOccurred())
			Expect(upstream.lastBody()).To(HaveKeyWithValue("tags", []any{}))
			Expect(upstream.lastBody()).To(HaveKeyWithValue("type", "rule"))
		})

		Context("with configured scope defaults", func() {
			BeforeEach(func() {
				settings.scope = memories.Scope{TenantID: "acme", UserID: "u1"}
			})

			It("merges overrides over defaults", func() {
				res, err := client.AddMemory(ctx, memories.AddMemoryInput{
					Content: "x",
					Scope:   memories.Scope{UserID: "u2", ProjectID: "p1"},
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(res.Request.Scope).To(Equal(&memories.Scope{TenantID: "acme", UserID: "u2", ProjectID: "p1"}))
				Expect(upstream.lastBody()).To(HaveKeyWithValue("scope", map[string]any{
					"tenantId":  "acme",
					"userId":    "u2",
					"projectId": "p1",
				}))
			})
		})

		It("rejects blank content and unknown types without calling upstream", func() {
			_, err := client.AddMemory(ctx, memories.AddMemoryInput{Content: "   ", Type: "opinion"})
			expectValidation(err, "content", "type")
		})

		It("passes upstream errors through", func() {
			upstream.respond(http.StatusOK, `{"ok":false,"error":{"type":"http_error","code":"QUOTA","message":"over"}}`)

			_, err := client.AddMemory(ctx, memories.AddMemoryInput{Content: "x"})
			Expect(asMemoriesError(err).Body.Code).To(Equal("QUOTA"))
		})
	})

	Describe("SearchMemories", func() {
		It("sends the query as given with defaults and counts memories", func() {
			upstream.respond(http.StatusOK, `{"ok":true,"data":{"memories":[{"id":1},{"id":2}]}}`)

			res, err := client.SearchMemories(ctx, memories.NewSearchInput(" pnpm "))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Count).To(Equal(2))
			Expect(res.Memories).To(HaveLen(2))
			Expect(res.Memories[0]).To(MatchJSON(`{"id":1}`))

			Expect(upstream.calls()[0].Path).To(Equal("/api/sdk/v1/memories/search"))
			Expect(upstream.lastBody()).To(Equal(map[string]any{"query": " pnpm ", "limit": float64(8)}))
		})

		It("forwards type and layer filters", func() {
			in := memories.NewSearchInput("x")
			in.Type = memories.MemoryTypeDecision
			in.Layer = memories.LayerLongTerm
			in.Limit = 50

			_, err := client.SearchMemories(ctx, in)
			Expect(err).NotTo(HaveOccurred())
			Expect(upstream.lastBody()).To(Equal(map[string]any{
				"query": "x",
				"limit": float64(50),
				"type":  "decision",
				"layer": "long_term",
			}))
		})

		DescribeTable("normalizes unexpected result shapes to an empty list",
			func(body string) {
				upstream.respond(http.StatusOK, body)

				res, err := client.SearchMemories(ctx, memories.NewSearchInput("x"))
				Expect(err).NotTo(HaveOccurred())
				Expect(res.Count).To(Equal(0))
				Expect(res.Memories).NotTo(BeNil())

				raw, err := json.Marshal(res)
				Expect(err).NotTo(HaveOccurred())
				Expect(raw).To(MatchJSON(`{"count":0,"memories":[]}`))
			},
			Entry("memories is an object", `{"ok":true,"data":{"memories":{"a":1}}}`),
			Entry("memories is missing", `{"ok":true,"data":{}}`),
			Entry("data is a list", `{"ok":true,"data":[1,2,3]}`),
			Entry("data is null", `{"ok":true,"data":null}`),
		)

		DescribeTable("rejects invalid input",
			func(mutate func(*memories.SearchInput), fields ...string) {
				in := memories.NewSearchInput("x")
				mutate(&in)
				_, err := client.SearchMemories(ctx, in)
				expectValidation(err, fields...)
			},
			Entry("blank query", func(in *memories.SearchInput) { in.Query = " " }, "q"),
			Entry("limit too low", func(in *memories.SearchInput) { in.Limit = 0 }, "limit"),
			Entry("limit too high", func(in *memories.SearchInput) { in.Limit = 51 }, "limit"),
			Entry("unknown type", func(in *memories.SearchInput) { in.Type = "opinion" }, "type"),
			Entry("unknown layer", func(in *memories.SearchInput) { in.Layer = "short_term" }, "layer"),
		)
	})

	Describe("GetContext", func() {
		It("sends every default and fills missing fields", func() {
			upstream.respond(http.StatusOK, `{"ok":true,"data":{"rules":[{"r":1}]}}`)

			res, err := client.GetContext(ctx, memories.NewContextInput("deploy"))
			Expect(err).NotTo(HaveOccurred())

			Expect(upstream.calls()[0].Path).To(Equal("/api/sdk/v1/context/get"))
			Expect(upstream.lastBody()).To(Equal(map[string]any{
				"query":      "deploy",
				"mode":       "all",
				"strategy":   "baseline",
				"limit":      float64(8),
				"graphDepth": float64(1),
				"graphLimit": float64(8),
			}))

			raw, err := json.Marshal(res)
			Expect(err).NotTo(HaveOccurred())
			Expect(raw).To(MatchJSON(`{"rules":[{"r":1}],"memories":[],"trace":null}`))
		})

		It("treats empty mode and strategy as defaults", func() {
			_, err := client.GetContext(ctx, memories.ContextInput{Query: "x", Limit: 1, GraphLimit: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(upstream.lastBody()).To(HaveKeyWithValue("mode", "all"))
			Expect(upstream.lastBody()).To(HaveKeyWithValue("strategy", "baseline"))
			Expect(upstream.lastBody()).To(HaveKeyWithValue("graphDepth", float64(0)))
		})

		It("passes the trace through", func() {
			upstream.respond(http.StatusOK, `{"ok":true,"data":{"rules":[],"memories":[{"m":1}],"trace":{"steps":2}}}`)

			res, err := client.GetContext(ctx, memories.NewContextInput("x"))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Trace).To(MatchJSON(`{"steps":2}`))
			Expect(res.Memories).To(HaveLen(1))
		})

		It("forwards the query without trimming it", func() {
			upstream.respond(http.StatusOK, `{"ok":true,"data":{}}`)

			_, err := client.GetContext(ctx, memories.NewContextInput("  deploy steps "))
			Expect(err).NotTo(HaveOccurred())
			Expect(upstream.lastBody()).To(HaveKeyWithValue("query", "  deploy steps "))
		})

		DescribeTable("rejects invalid input",
			func(mutate func(*memories.ContextInput), fields ...string) {
				in := memories.NewContextInput("x")
				mutate(&in)
				_, err := client.GetContext(ctx, in)
				expectValidation(err, fields...)
			},
			Entry("blank query", func(in *memories.ContextInput) { in.Query = "" }, "q"),
			Entry("unknown mode", func(in *memories.ContextInput) { in.Mode = "recent" }, "mode"),
			Entry("unknown strategy", func(in *memories.ContextInput) { in.Strategy = "graph" }, "strategy"),
			Entry("graph depth too deep", func(in *memories.ContextInput) { in.GraphDepth = 3 }, "graphDepth"),
			Entry("negative graph depth", func(in *memories.ContextInput) { in.GraphDepth = -1 }, "graphDepth"),
			Entry("graph limit too high", func(in *memories.ContextInput) { in.GraphLimit = 51 }, "graphLimit"),
			Entry("several at once", func(in *memories.ContextInput) {
				in.Limit = 0
				in.GraphLimit = 0
			}, "limit", "graphLimit"),
		)
	})
})
