package server_test

import (
	"net/http"
	"net/url"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/agentweb/agentweb/pkg/types"
)

var env *testEnv

var _ = BeforeSuite(func() {
	env = newTestEnv()
})

var _ = AfterSuite(func() {
	if env != nil {
		env.close()
	}
})

var _ = Describe("Rendering static pages", func() {
	It("renders a server-side page with the lite backend", func() {
		result := env.render("/static", url.Values{"no_cache": {"true"}})

		Expect(result.Backend).To(Equal(types.BackendLite))
		Expect(result.Error).To(BeEmpty())
		Expect(result.Data).NotTo(BeNil())
		Expect(result.Data.Title).To(Equal("Gadget Handbook"))
		Expect(result.Data.HTTPStatus).To(Equal(http.StatusOK))
		Expect(result.Detection).NotTo(BeNil())
		Expect(result.Detection.IsSPA).To(BeFalse())
	})

	It("produces a chunk digest led by the summary", func() {
		result := env.render("/static", url.Values{"no_cache": {"true"}})

		Expect(result.Chunks).NotTo(BeEmpty())
		Expect(result.Chunks[0].Type).To(Equal(types.ChunkTypeSummary))
		Expect(result.Chunks[0].Score).To(Equal(10))
		Expect(result.Summary).To(HavePrefix("[chunk:"))
		Expect(result.Summary).To(ContainSubstring("type=summary"))
	})

	It("ranks chunks against a query", func() {
		result := env.render("/static", url.Values{
			"no_cache":    {"true"},
			"query":       {"installation"},
			"chunk_limit": {"3"},
		})

		Expect(len(result.Chunks)).To(BeNumerically("<=", 3))
		for _, c := range result.Chunks {
			Expect(c.Relevance).NotTo(BeNil())
		}

		var matched bool
		for _, c := range result.Chunks {
			if strings.Contains(strings.ToLower(c.Text), "install") {
				matched = true
			}
		}
		Expect(matched).To(BeTrue(), "query-matching chunks should rank into the limit")
	})
})

var _ = Describe("Result caching", func() {
	It("serves repeated requests from the cache", func() {
		first := env.render("/static", nil)
		Expect(first.Cached).To(BeFalse())

		second := env.render("/static", nil)
		Expect(second.Cached).To(BeTrue())
		Expect(second.Backend).To(Equal(first.Backend))
		Expect(second.Summary).To(Equal(first.Summary))
	})

	It("reports and invalidates cache entries over HTTP", func() {
		env.render("/static", nil)

		resp, body := env.postJSON("/cache/invalidate",
			`{"url":"`+env.origin.URL+`/static"}`)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(string(body)).To(ContainSubstring(`"removed"`))

		after := env.render("/static", nil)
		Expect(after.Cached).To(BeFalse())
	})
})

var _ = Describe("SPA handling", func() {
	It("classifies an app shell via /detect", func() {
		resp, body := env.postJSON("/detect", `{"html":"<div id=\"root\"></div>"}`)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(string(body)).To(ContainSubstring(`"isSPA":true`))
	})

	It("falls back to the static parse when the browser is unavailable", func() {
		result := env.render("/spa", url.Values{"no_cache": {"true"}})

		Expect(result.Detection.IsSPA).To(BeTrue())
		Expect(result.Backend).To(Equal(types.BackendLiteFallback))
		Expect(result.Data).NotTo(BeNil())
		Expect(result.Data.Backend).To(Equal(types.BackendLiteFallback))
	})
})

var _ = Describe("Failure reporting", func() {
	It("reports origin errors as a structured error result", func() {
		result := env.render("/missing", url.Values{"no_cache": {"true"}})

		Expect(result.Backend).To(Equal(types.BackendError))
		Expect(result.ErrorType).To(Equal(types.ErrorTypeFetchStatus))
		Expect(result.Error).NotTo(BeEmpty())
	})
})
