// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/retrieval-engine/internal/extract"
	"github.com/pdiddy/retrieval-engine/internal/httputil"
	"github.com/pdiddy/retrieval-engine/pkg/types"
)

// googleAPIBase is the Google Custom Search endpoint. Declared as a var so
// tests can substitute an httptest server.
var googleAPIBase = "https://www.googleapis.com/customsearch/v1"

// Environment variables consulted when no explicit Google credentials are
// configured.
const (
	GoogleKeyEnvVar = "GOOGLE_SEARCH_API_KEY"
	GoogleCSEEnvVar = "GOOGLE_CSE_ID"
)

// googleMaxNum is the provider's maximum num per request.
const googleMaxNum = 10

// GoogleConfig configures a GoogleBackend.
type GoogleConfig struct {
	// APIKey authenticates against the Custom Search API. Falls back to the
	// GOOGLE_SEARCH_API_KEY environment variable.
	APIKey string

	// CSEID identifies the Custom Search Engine. Falls back to the
	// GOOGLE_CSE_ID environment variable.
	CSEID string

	// MaxResults caps results per call (default 10).
	MaxResults int

	// ExcludeURLs lists URLs never to return.
	ExcludeURLs []string

	// IncludeRawContent enables page content enrichment.
	IncludeRawContent bool

	// HTTP holds timeout and User-Agent settings.
	HTTP types.HTTPConfig

	// Client overrides the HTTP client (tests).
	Client *http.Client

	// Extractor overrides the content extractor (tests).
	Extractor ContentExtractor

	// Warnings receives best-effort failure notices (default stderr).
	Warnings io.Writer
}

// GoogleBackend queries the Google Custom Search API.
type GoogleBackend struct {
	cfg       GoogleConfig
	apiKey    string
	cseID     string
	client    *http.Client
	extractor ContentExtractor
	warn      io.Writer
	retry     httputil.Policy
}

// NewGoogleBackend validates cfg and returns a ready backend. Both the API
// key and the engine ID are hard preconditions.
func NewGoogleBackend(cfg GoogleConfig) (*GoogleBackend, error) {
	apiKey := credential(cfg.APIKey, GoogleKeyEnvVar)
	if apiKey == "" {
		return nil, &ConfigError{Backend: "google", Reason: "API key must be provided or set as environment variable " + GoogleKeyEnvVar}
	}
	cseID := credential(cfg.CSEID, GoogleCSEEnvVar)
	if cseID == "" {
		return nil, &ConfigError{Backend: "google", Reason: "custom search engine ID must be provided or set as environment variable " + GoogleCSEEnvVar}
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}

	b := &GoogleBackend{
		cfg:       cfg,
		apiKey:    apiKey,
		cseID:     cseID,
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
func (b *GoogleBackend) Name() string { return "google" }

// Search queries the Custom Search API and returns normalized results. A
// response without an items envelope means the engine found nothing.
func (b *GoogleBackend) Search(ctx context.Context, query string, excludeURLs []string) ([]types.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	exclude := newExcludeSet(b.cfg.ExcludeURLs, excludeURLs)

	params := url.Values{
		"key": {b.apiKey},
		"cx":  {b.cseID},
		"q":   {query},
		"num": {strconv.Itoa(fetchCount(b.cfg.MaxResults, len(exclude), googleMaxNum))},
	}
	reqURL := googleAPIBase + "?" + params.Encode()

	var gr googleResponse
	err := b.retry.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		if b.cfg.HTTP.UserAgent != "" {
			req.Header.Set("User-Agent", b.cfg.HTTP.UserAgent)
		}

		resp, err := b.client.Do(req)
		if err != nil {
			return httputil.Transient(fmt.Errorf("Google API request: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return httputil.Transientf("Google API returned HTTP %d", resp.StatusCode)
		}

		gr = googleResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
			return httputil.Transient(fmt.Errorf("parsing Google response: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, &ProviderError{Backend: "google", Err: err}
	}

	var results []types.Result
	for _, item := range gr.Items {
		if len(results) >= b.cfg.MaxResults {
			break
		}
		if _, dropped := exclude[item.Link]; dropped {
			continue
		}

		r := types.Result{
			URL:         item.Link,
			Title:       item.Title,
			Description: item.Snippet,
			Snippets:    []string{item.Snippet},
			Source:      "google",
		}
		if b.cfg.IncludeRawContent {
			appendRawContent(ctx, b.extractor, b.warn, &r)
		}
		results = append(results, r)
	}
	return results, nil
}

// Google Custom Search API JSON structures.
type googleResponse struct {
	Items []googleItem `json:"items"`
}

type googleItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}
