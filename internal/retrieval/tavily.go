// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/retrieval-engine/internal/extract"
	"github.com/pdiddy/retrieval-engine/internal/httputil"
	"github.com/pdiddy/retrieval-engine/pkg/types"
)

// tavilyAPIBase is the Tavily search endpoint. Declared as a var so tests
// can substitute an httptest server.
var tavilyAPIBase = "https://api.tavily.com/search"

// TavilyEnvVar is the environment variable consulted when no explicit
// Tavily API key is configured.
const TavilyEnvVar = "TAVILY_API_KEY"

// tavilyDepthValues are the provider's accepted search depths.
var tavilyDepthValues = map[string]bool{"basic": true, "advanced": true}

// tavilyMaxResults is the provider's maximum max_results per request.
const tavilyMaxResults = 20

// TavilyConfig configures a TavilyBackend.
type TavilyConfig struct {
	// APIKey authenticates against Tavily. Falls back to the TAVILY_API_KEY
	// environment variable.
	APIKey string

	// MaxResults caps results per call (default 10).
	MaxResults int

	// ExcludeURLs lists URLs never to return.
	ExcludeURLs []string

	// IncludeRawContent enables page content enrichment. Tavily returns
	// pre-fetched page content itself; the extractor is only a fallback for
	// items where the provider omitted it.
	IncludeRawContent bool

	// IncludeDomains restricts results to these domains (structured request
	// field, unlike Bing).
	IncludeDomains []string

	// ExcludeDomains drops results from these domains (structured request
	// field).
	ExcludeDomains []string

	// SearchDepth selects basic or advanced search (default basic).
	SearchDepth string

	// HTTP holds timeout and User-Agent settings.
	HTTP types.HTTPConfig

	// Client overrides the HTTP client (tests).
	Client *http.Client

	// Extractor overrides the content extractor (tests).
	Extractor ContentExtractor

	// Warnings receives best-effort failure notices (default stderr).
	Warnings io.Writer
}

// TavilyBackend queries the Tavily search API.
type TavilyBackend struct {
	cfg       TavilyConfig
	apiKey    string
	client    *http.Client
	extractor ContentExtractor
	warn      io.Writer
	retry     httputil.Policy
}

// NewTavilyBackend validates cfg and returns a ready backend.
func NewTavilyBackend(cfg TavilyConfig) (*TavilyBackend, error) {
	apiKey := credential(cfg.APIKey, TavilyEnvVar)
	if apiKey == "" {
		return nil, &ConfigError{Backend: "tavily", Reason: "API key must be provided or set as environment variable " + TavilyEnvVar}
	}
	if cfg.SearchDepth == "" {
		cfg.SearchDepth = "basic"
	}
	if !tavilyDepthValues[cfg.SearchDepth] {
		return nil, &ConfigError{Backend: "tavily", Reason: fmt.Sprintf("unsupported search depth %q (want basic or advanced)", cfg.SearchDepth)}
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}

	b := &TavilyBackend{
		cfg:       cfg,
		apiKey:    apiKey,
		client:    cfg.Client,
		extractor: cfg.Extractor,
		warn:      warnWriter(cfg.Warnings),
	}
	if b.client == nil {
		b.client = newHTTPClient(cfg.HTTP)
	}
	if b.extractor == nil {
		b.extractor = extract.New(cfg.HTTP)
	}
	return b, nil
}

// Name returns the backend identifier.
func (b *TavilyBackend) Name() string { return "tavily" }

// Search queries Tavily and returns normalized results in provider order,
// filtering excluded URLs until MaxResults survivors are collected.
func (b *TavilyBackend) Search(ctx context.Context, query string, excludeURLs []string) ([]types.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	exclude := newExcludeSet(b.cfg.ExcludeURLs, excludeURLs)

	reqBody := tavilySearchRequest{
		Query:             query,
		SearchDepth:       b.cfg.SearchDepth,
		MaxResults:        fetchCount(b.cfg.MaxResults, len(exclude), tavilyMaxResults),
		IncludeDomains:    b.cfg.IncludeDomains,
		ExcludeDomains:    b.cfg.ExcludeDomains,
		IncludeRawContent: b.cfg.IncludeRawContent,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encoding Tavily request: %w", err)
	}

	var tr tavilyResponse
	err = b.retry.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilyAPIBase, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
		if b.cfg.HTTP.UserAgent != "" {
			req.Header.Set("User-Agent", b.cfg.HTTP.UserAgent)
		}

		resp, err := b.client.Do(req)
		if err != nil {
			return httputil.Transient(fmt.Errorf("Tavily API request: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return httputil.Transientf("Tavily API returned HTTP %d", resp.StatusCode)
		}

		tr = tavilyResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
			return httputil.Transient(fmt.Errorf("parsing Tavily response: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, &ProviderError{Backend: "tavily", Err: err}
	}

	var results []types.Result
	for _, item := range tr.Results {
		if len(results) >= b.cfg.MaxResults {
			break
		}
		if item.URL == "" {
			fmt.Fprintf(b.warn, "warning: skipping Tavily result without URL for query %q\n", query)
			continue
		}
		if _, dropped := exclude[item.URL]; dropped {
			continue
		}

		r := types.Result{
			URL:         item.URL,
			Title:       item.Title,
			Description: item.Content,
			Snippets:    []string{item.Content},
			Source:      "tavily",
		}
		if b.cfg.IncludeRawContent {
			if item.RawContent != "" {
				r.Snippets = append(r.Snippets, item.RawContent)
			} else {
				appendRawContent(ctx, b.extractor, b.warn, &r)
			}
		}
		results = append(results, r)
	}
	return results, nil
}

// Tavily API JSON structures.
type tavilySearchRequest struct {
	Query             string   `json:"query"`
	SearchDepth       string   `json:"search_depth"`
	MaxResults        int      `json:"max_results"`
	IncludeDomains    []string `json:"include_domains,omitempty"`
	ExcludeDomains    []string `json:"exclude_domains,omitempty"`
	IncludeRawContent bool     `json:"include_raw_content,omitempty"`
}

type tavilyResponse struct {
	Results []tavilyResult `json:"results"`
}

type tavilyResult struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Content    string  `json:"content"`
	RawContent string  `json:"raw_content"`
	Score      float64 `json:"score"`
}
