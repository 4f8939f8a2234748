// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrieval queries web search providers and returns normalized
// source records. Each backend (Bing, Google, Tavily, Wikipedia) wraps one
// provider API behind the same Search contract per the Strategy pattern;
// callers configure exactly one backend per Retriever and never depend on a
// concrete provider type.
package retrieval

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pdiddy/retrieval-engine/pkg/types"
)

// Backend searches a single web provider. Search returns results in
// provider order; excludeURLs extends the backend's configured exclude set
// for this call only. An empty query returns no results and makes no
// network call.
type Backend interface {
	Name() string
	Search(ctx context.Context, query string, excludeURLs []string) ([]types.Result, error)
}

// ContentExtractor provides best-effort page text for snippet enrichment.
// Satisfied by extract.Extractor.
type ContentExtractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// ConfigError reports an invalid backend configuration: a missing
// credential or an unsupported option value. It is raised at construction
// and never retried.
type ConfigError struct {
	Backend string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s configuration: %s", e.Backend, e.Reason)
}

// ProviderError reports a provider call that failed after the retry budget
// was exhausted. Err carries the last underlying error.
type ProviderError struct {
	Backend string
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s search failed: %v", e.Backend, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retriever is a thin dispatch over one configured backend. It carries the
// original caller contract of accepting a query list: only the first query
// is ever issued.
type Retriever struct {
	backend Backend
}

// NewRetriever returns a Retriever that dispatches to b.
func NewRetriever(b Backend) *Retriever {
	return &Retriever{backend: b}
}

// Name returns the configured backend's identifier.
func (r *Retriever) Name() string { return r.backend.Name() }

// Search issues the first query of the list against the configured backend.
// A nil or empty list, or a blank first query, returns no results without a
// network call.
func (r *Retriever) Search(ctx context.Context, queries []string, excludeURLs []string) ([]types.Result, error) {
	query := FirstQuery(queries)
	if query == "" {
		return nil, nil
	}
	return r.backend.Search(ctx, query, excludeURLs)
}

// FirstQuery returns the first query of a list, trimmed. Backends issue a
// single query per call; extra entries are silently dropped.
func FirstQuery(queries []string) string {
	if len(queries) == 0 {
		return ""
	}
	return strings.TrimSpace(queries[0])
}

// NewBackend constructs the backend named by cfg.Backend. Warnings from
// best-effort operations are written to warn (stderr when nil).
func NewBackend(cfg types.RetrievalConfig, warn io.Writer) (Backend, error) {
	switch cfg.Backend {
	case "bing":
		return NewBingBackend(BingConfig{
			APIKey:            cfg.BingAPIKey,
			MaxResults:        cfg.MaxResults,
			ExcludeURLs:       cfg.ExcludeURLs,
			IncludeRawContent: rawContentEnabled(cfg.IncludeRawContent),
			IncludeDomains:    cfg.IncludeDomains,
			ExcludeDomains:    cfg.ExcludeDomains,
			Freshness:         cfg.Freshness,
			HTTP:              cfg.HTTPConfig,
			Warnings:          warn,
		})
	case "google":
		return NewGoogleBackend(GoogleConfig{
			APIKey:            cfg.GoogleAPIKey,
			CSEID:             cfg.GoogleCSEID,
			MaxResults:        cfg.MaxResults,
			ExcludeURLs:       cfg.ExcludeURLs,
			IncludeRawContent: rawContentEnabled(cfg.IncludeRawContent),
			HTTP:              cfg.HTTPConfig,
			Warnings:          warn,
		})
	case "tavily":
		return NewTavilyBackend(TavilyConfig{
			APIKey:            cfg.TavilyAPIKey,
			MaxResults:        cfg.MaxResults,
			ExcludeURLs:       cfg.ExcludeURLs,
			IncludeRawContent: rawContentEnabled(cfg.IncludeRawContent),
			IncludeDomains:    cfg.IncludeDomains,
			ExcludeDomains:    cfg.ExcludeDomains,
			SearchDepth:       cfg.SearchDepth,
			HTTP:              cfg.HTTPConfig,
			Warnings:          warn,
		})
	case "wikipedia":
		return NewWikipediaBackend(WikipediaConfig{
			Contact:           cfg.WikipediaContact,
			MaxResults:        cfg.MaxResults,
			ExcludeURLs:       cfg.ExcludeURLs,
			IncludeRawContent: cfg.IncludeRawContent,
			HTTP:              cfg.HTTPConfig,
			Warnings:          warn,
		})
	default:
		return nil, &ConfigError{Backend: cfg.Backend, Reason: "unknown backend (want bing, google, tavily, or wikipedia)"}
	}
}

// defaultTimeout bounds provider calls when the caller configures none, so
// a stuck provider cannot block the calling goroutine indefinitely.
const defaultTimeout = 15 * time.Second

// newHTTPClient returns a client honoring cfg.Timeout, with defaultTimeout
// as the floor against unbounded requests.
func newHTTPClient(cfg types.HTTPConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// credential returns the explicit value when set, otherwise the named
// environment variable.
func credential(explicit, envVar string) string {
	if explicit != "" {
		return explicit
	}
	return os.Getenv(envVar)
}

// warnWriter returns w, or stderr when w is nil.
func warnWriter(w io.Writer) io.Writer {
	if w == nil {
		return os.Stderr
	}
	return w
}

// rawContentEnabled resolves a tri-state enrichment setting for backends
// whose default is off.
func rawContentEnabled(v *bool) bool {
	return v != nil && *v
}

// fetchCount returns how many items to request from a provider: MaxResults
// plus headroom for the exclude set, so exclusion hits do not under-fill
// the result list, capped at the provider's per-request maximum.
func fetchCount(maxResults, excluded, providerMax int) int {
	n := maxResults + excluded
	if n > providerMax {
		return providerMax
	}
	return n
}

// newExcludeSet unions the configured exclude URLs with the per-call set.
func newExcludeSet(configured, call []string) map[string]struct{} {
	set := make(map[string]struct{}, len(configured)+len(call))
	for _, u := range configured {
		set[u] = struct{}{}
	}
	for _, u := range call {
		set[u] = struct{}{}
	}
	return set
}

// hostExcluded reports whether rawURL's host matches any of the excluded
// domains, either exactly or as a subdomain.
func hostExcluded(rawURL string, domains []string) bool {
	if len(domains) == 0 {
		return false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, d := range domains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// appendRawContent fetches page text for r and appends it to Snippets.
// Extraction is best-effort: failures are logged to warn and the result
// keeps its description-only snippets.
func appendRawContent(ctx context.Context, ex ContentExtractor, warn io.Writer, r *types.Result) {
	text, err := ex.Extract(ctx, r.URL)
	if err != nil {
		fmt.Fprintf(warn, "warning: failed to extract content from %s: %v\n", r.URL, err)
		return
	}
	if text != "" {
		r.Snippets = append(r.Snippets, text)
	}
}
