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

// bingAPIBase is the Bing Web Search endpoint. Declared as a var so tests
// can substitute an httptest server.
var bingAPIBase = "https://api.bing.microsoft.com/v7.0/search"

// BingEnvVar is the environment variable consulted when no explicit Bing
// API key is configured.
const BingEnvVar = "BING_SEARCH_API_KEY"

// bingFreshnessValues are the provider's accepted freshness filters.
var bingFreshnessValues = map[string]bool{"Day": true, "Week": true, "Month": true}

// bingMaxCount is the provider's maximum count per request.
const bingMaxCount = 50

// BingConfig configures a BingBackend. Every supported option is a field
// here; there is no pass-through option bag.
type BingConfig struct {
	// APIKey authenticates against Bing Web Search. Falls back to the
	// BING_SEARCH_API_KEY environment variable.
	APIKey string

	// MaxResults caps results per call (default 10).
	MaxResults int

	// ExcludeURLs lists URLs never to return.
	ExcludeURLs []string

	// IncludeRawContent enables page content enrichment.
	IncludeRawContent bool

	// IncludeDomains restricts results to these domains. Bing has no
	// structured parameter for this; the clause is folded into the query
	// text as site: operators.
	IncludeDomains []string

	// ExcludeDomains drops results from these domains, folded into the
	// query text as -site: operators.
	ExcludeDomains []string

	// Freshness filters results by age: Day, Week, or Month.
	Freshness string

	// HTTP holds timeout and User-Agent settings.
	HTTP types.HTTPConfig

	// Client overrides the HTTP client (tests).
	Client *http.Client

	// Extractor overrides the content extractor (tests).
	Extractor ContentExtractor

	// Warnings receives best-effort failure notices (default stderr).
	Warnings io.Writer
}

// BingBackend queries the Bing Web Search API.
type BingBackend struct {
	cfg       BingConfig
	apiKey    string
	client    *http.Client
	extractor ContentExtractor
	warn      io.Writer
	retry     httputil.Policy
}

// NewBingBackend validates cfg and returns a ready backend. It fails with a
// ConfigError when no API key is available or an option value is not one
// the provider supports.
func NewBingBackend(cfg BingConfig) (*BingBackend, error) {
	apiKey := credential(cfg.APIKey, BingEnvVar)
	if apiKey == "" {
		return nil, &ConfigError{Backend: "bing", Reason: "API key must be provided or set as environment variable " + BingEnvVar}
	}
	if cfg.Freshness != "" && !bingFreshnessValues[cfg.Freshness] {
		return nil, &ConfigError{Backend: "bing", Reason: fmt.Sprintf("unsupported freshness %q (want Day, Week, or Month)", cfg.Freshness)}
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}

	b := &BingBackend{
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
func (b *BingBackend) Name() string { return "bing" }

// Search queries Bing and returns normalized results in provider order,
// filtering excluded URLs and domains until MaxResults survivors are
// collected.
func (b *BingBackend) Search(ctx context.Context, query string, excludeURLs []string) ([]types.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	exclude := newExcludeSet(b.cfg.ExcludeURLs, excludeURLs)

	params := url.Values{
		"q":          {b.buildQuery(query)},
		"count":      {strconv.Itoa(fetchCount(b.cfg.MaxResults, len(exclude), bingMaxCount))},
		"offset":     {"0"},
		"mkt":        {"en-US"},
		"safesearch": {"Moderate"},
	}
	if b.cfg.Freshness != "" {
		params.Set("freshness", b.cfg.Freshness)
	}
	reqURL := bingAPIBase + "?" + params.Encode()

	var br bingResponse
	err := b.retry.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", b.apiKey)
		if b.cfg.HTTP.UserAgent != "" {
			req.Header.Set("User-Agent", b.cfg.HTTP.UserAgent)
		}

		resp, err := b.client.Do(req)
		if err != nil {
			return httputil.Transient(fmt.Errorf("Bing API request: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return httputil.Transientf("Bing API returned HTTP %d", resp.StatusCode)
		}

		br = bingResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
			return httputil.Transient(fmt.Errorf("parsing Bing response: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, &ProviderError{Backend: "bing", Err: err}
	}

	var results []types.Result
	for _, item := range br.WebPages.Value {
		if len(results) >= b.cfg.MaxResults {
			break
		}
		if _, dropped := exclude[item.URL]; dropped {
			continue
		}
		// Bing can still return pages from -site: domains; enforce the
		// exclusion on the response too.
		if hostExcluded(item.URL, b.cfg.ExcludeDomains) {
			continue
		}

		r := types.Result{
			URL:         item.URL,
			Title:       item.Name,
			Description: item.Snippet,
			Snippets:    []string{item.Snippet},
			Source:      "bing",
		}
		if b.cfg.IncludeRawContent {
			appendRawContent(ctx, b.extractor, b.warn, &r)
		}
		results = append(results, r)
	}
	return results, nil
}

// buildQuery folds domain filters into the query text. Bing expresses both
// as query operators rather than API parameters.
func (b *BingBackend) buildQuery(query string) string {
	q := query
	if len(b.cfg.IncludeDomains) > 0 {
		clauses := make([]string, 0, len(b.cfg.IncludeDomains))
		for _, d := range b.cfg.IncludeDomains {
			clauses = append(clauses, "site:"+d)
		}
		q = fmt.Sprintf("%s (%s)", q, strings.Join(clauses, " OR "))
	}
	if len(b.cfg.ExcludeDomains) > 0 {
		clauses := make([]string, 0, len(b.cfg.ExcludeDomains))
		for _, d := range b.cfg.ExcludeDomains {
			clauses = append(clauses, "-site:"+d)
		}
		q = q + " " + strings.Join(clauses, " ")
	}
	return q
}

// Bing Web Search API JSON structures.
type bingResponse struct {
	WebPages bingWebPages `json:"webPages"`
}

type bingWebPages struct {
	Value []bingWebPage `json:"value"`
}

type bingWebPage struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}
