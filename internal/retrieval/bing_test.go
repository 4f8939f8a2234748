// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieval

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

const sampleBingJSON = `{
  "webPages": {
    "value": [
      {"name": "Go Concurrency Patterns", "url": "https://go.example/concurrency", "snippet": "Share memory by communicating."},
      {"name": "Spam Page", "url": "https://spam.example/offer", "snippet": "Cheap offers."},
      {"name": "Channels in Go", "url": "https://go.example/channels", "snippet": "Channels connect goroutines."}
    ]
  }
}`

func newBingTestBackend(t *testing.T, ts *httptest.Server, mutate func(*BingConfig)) *BingBackend {
	t.Helper()
	old := bingAPIBase
	bingAPIBase = ts.URL
	t.Cleanup(func() { bingAPIBase = old })

	cfg := BingConfig{
		APIKey:    "test-key",
		Client:    ts.Client(),
		Extractor: &mockExtractor{},
		Warnings:  &bytes.Buffer{},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	b, err := NewBingBackend(cfg)
	if err != nil {
		t.Fatalf("NewBingBackend: %v", err)
	}
	return b
}

func TestBingMissingAPIKey(t *testing.T) {
	t.Setenv(BingEnvVar, "")
	_, err := NewBingBackend(BingConfig{})
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want ConfigError", err)
	}
	if !strings.Contains(err.Error(), BingEnvVar) {
		t.Errorf("error should name the environment variable: %v", err)
	}
}

func TestBingAPIKeyFromEnv(t *testing.T) {
	t.Setenv(BingEnvVar, "env-key")
	b, err := NewBingBackend(BingConfig{})
	if err != nil {
		t.Fatalf("NewBingBackend: %v", err)
	}
	if b.apiKey != "env-key" {
		t.Errorf("apiKey = %q, want env fallback", b.apiKey)
	}
}

func TestBingInvalidFreshness(t *testing.T) {
	_, err := NewBingBackend(BingConfig{APIKey: "k", Freshness: "Fortnight"})
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want ConfigError", err)
	}
}

func TestBingSearch(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, sampleBingJSON)
	}))
	defer ts.Close()

	b := newBingTestBackend(t, ts, nil)
	results, err := b.Search(context.Background(), "go concurrency", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	if gotQuery != "go concurrency" {
		t.Errorf("query = %q", gotQuery)
	}

	r := results[0]
	if r.URL != "https://go.example/concurrency" {
		t.Errorf("URL = %q", r.URL)
	}
	if r.Title != "Go Concurrency Patterns" {
		t.Errorf("Title = %q", r.Title)
	}
	if r.Description != "Share memory by communicating." {
		t.Errorf("Description = %q", r.Description)
	}
	if len(r.Snippets) != 1 || r.Snippets[0] != r.Description {
		t.Errorf("Snippets = %v, want [description]", r.Snippets)
	}
	if r.Source != "bing" {
		t.Errorf("Source = %q", r.Source)
	}
}

func TestBingEmptyQueryNoCall(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, sampleBingJSON)
	}))
	defer ts.Close()

	b := newBingTestBackend(t, ts, nil)
	for _, q := range []string{"", "   "} {
		results, err := b.Search(context.Background(), q, nil)
		if err != nil {
			t.Fatalf("Search(%q): %v", q, err)
		}
		if len(results) != 0 {
			t.Errorf("Search(%q) returned %d results, want 0", q, len(results))
		}
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("provider calls = %d, want 0", calls)
	}
}

func TestBingExcludeURLsUnion(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, sampleBingJSON)
	}))
	defer ts.Close()

	b := newBingTestBackend(t, ts, func(cfg *BingConfig) {
		cfg.ExcludeURLs = []string{"https://go.example/concurrency"}
	})
	results, err := b.Search(context.Background(), "go", []string{"https://spam.example/offer"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].URL != "https://go.example/channels" {
		t.Errorf("URL = %q, both configured and per-call exclusions should apply", results[0].URL)
	}
}

func TestBingDomainFiltersFoldedIntoQuery(t *testing.T) {
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		fmt.Fprint(w, sampleBingJSON)
	}))
	defer ts.Close()

	b := newBingTestBackend(t, ts, func(cfg *BingConfig) {
		cfg.IncludeDomains = []string{"go.example", "docs.example"}
		cfg.ExcludeDomains = []string{"spam.example"}
	})
	results, err := b.Search(context.Background(), "channels", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if !strings.Contains(gotQuery, "(site:go.example OR site:docs.example)") {
		t.Errorf("query = %q, want include domains as site: clause", gotQuery)
	}
	if !strings.Contains(gotQuery, "-site:spam.example") {
		t.Errorf("query = %q, want exclude domains as -site: clause", gotQuery)
	}

	// The provider ignored the -site: clause and returned a spam.example
	// item anyway; it must not leak through.
	for _, r := range results {
		if strings.Contains(r.URL, "spam.example") {
			t.Errorf("excluded domain leaked through: %q", r.URL)
		}
	}
	if len(results) != 2 {
		t.Errorf("len(results) = %d, want 2", len(results))
	}
}

func TestBingFreshnessParam(t *testing.T) {
	var gotFreshness string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFreshness = r.URL.Query().Get("freshness")
		fmt.Fprint(w, sampleBingJSON)
	}))
	defer ts.Close()

	b := newBingTestBackend(t, ts, func(cfg *BingConfig) { cfg.Freshness = "Week" })
	if _, err := b.Search(context.Background(), "go", nil); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotFreshness != "Week" {
		t.Errorf("freshness = %q, want Week", gotFreshness)
	}
}

func TestBingMaxResultsCap(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, sampleBingJSON)
	}))
	defer ts.Close()

	b := newBingTestBackend(t, ts, func(cfg *BingConfig) { cfg.MaxResults = 2 })
	results, err := b.Search(context.Background(), "go", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("len(results) = %d, want 2", len(results))
	}
}

func TestBingOverFetchCompensatesExclusions(t *testing.T) {
	var gotCount string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCount = r.URL.Query().Get("count")
		fmt.Fprint(w, sampleBingJSON)
	}))
	defer ts.Close()

	b := newBingTestBackend(t, ts, func(cfg *BingConfig) {
		cfg.MaxResults = 2
		cfg.ExcludeURLs = []string{"https://go.example/concurrency"}
	})
	results, err := b.Search(context.Background(), "go", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	// The request asks for headroom beyond the cap so exclusion hits do not
	// under-fill the result list.
	if gotCount != "3" {
		t.Errorf("count = %q, want 3 (cap plus exclude-set size)", gotCount)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want a full 2 despite the exclusion", len(results))
	}
	for _, r := range results {
		if r.URL == "https://go.example/concurrency" {
			t.Error("excluded URL leaked through")
		}
	}
}

func TestBingMissingEnvelopeMeansEmpty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"_type": "SearchResponse"}`)
	}))
	defer ts.Close()

	b := newBingTestBackend(t, ts, nil)
	results, err := b.Search(context.Background(), "no hits", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0", len(results))
	}
}

func TestBingRetriesTransientThenSucceeds(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, sampleBingJSON)
	}))
	defer ts.Close()

	b := newBingTestBackend(t, ts, nil)
	results, err := b.Search(context.Background(), "go", nil)
	if err != nil {
		t.Fatalf("Search should succeed on the third attempt: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("len(results) = %d, want 3", len(results))
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("provider calls = %d, want exactly 3", calls)
	}
}

func TestBingExhaustsRetries(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	b := newBingTestBackend(t, ts, nil)
	_, err := b.Search(context.Background(), "go", nil)

	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want ProviderError", err)
	}
	if pe.Backend != "bing" {
		t.Errorf("Backend = %q", pe.Backend)
	}
	// 3 attempts total, no 4th.
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("provider calls = %d, want 3", calls)
	}
}

func TestBingMalformedJSONRetried(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"webPages": {`)
	}))
	defer ts.Close()

	b := newBingTestBackend(t, ts, nil)
	_, err := b.Search(context.Background(), "go", nil)

	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want ProviderError", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("provider calls = %d, want 3 (malformed JSON is transient)", calls)
	}
}

func TestBingRawContentEnrichment(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, sampleBingJSON)
	}))
	defer ts.Close()

	t.Run("extraction succeeds", func(t *testing.T) {
		ex := &mockExtractor{text: "full article body"}
		b := newBingTestBackend(t, ts, func(cfg *BingConfig) {
			cfg.IncludeRawContent = true
			cfg.Extractor = ex
		})
		results, err := b.Search(context.Background(), "go", nil)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		r := results[0]
		if len(r.Snippets) != 2 || r.Snippets[0] != r.Description || r.Snippets[1] != "full article body" {
			t.Errorf("Snippets = %v", r.Snippets)
		}
	})

	t.Run("extraction failure degrades", func(t *testing.T) {
		var warnings bytes.Buffer
		b := newBingTestBackend(t, ts, func(cfg *BingConfig) {
			cfg.IncludeRawContent = true
			cfg.Extractor = &mockExtractor{err: fmt.Errorf("dial tcp: connection refused")}
			cfg.Warnings = &warnings
		})
		results, err := b.Search(context.Background(), "go", nil)
		if err != nil {
			t.Fatalf("extraction failure must not fail the call: %v", err)
		}
		for _, r := range results {
			if len(r.Snippets) != 1 {
				t.Errorf("Snippets = %v, want description only", r.Snippets)
			}
		}
		if !strings.Contains(warnings.String(), "warning:") {
			t.Error("expected extraction warnings to be logged")
		}
	})

	t.Run("disabled never calls extractor", func(t *testing.T) {
		ex := &mockExtractor{text: "should not appear"}
		b := newBingTestBackend(t, ts, func(cfg *BingConfig) { cfg.Extractor = ex })
		if _, err := b.Search(context.Background(), "go", nil); err != nil {
			t.Fatalf("Search: %v", err)
		}
		if ex.calls != 0 {
			t.Errorf("extractor calls = %d, want 0", ex.calls)
		}
	})
}
