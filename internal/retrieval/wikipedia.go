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

	"github.com/pdiddy/retrieval-engine/internal/httputil"
	"github.com/pdiddy/retrieval-engine/pkg/types"
)

// wikipediaAPIBase is the MediaWiki action API endpoint. Declared as a var
// so tests can substitute an httptest server.
var wikipediaAPIBase = "https://en.wikipedia.org/w/api.php"

// WikipediaEnvVar is the environment variable consulted when no explicit
// contact email is configured. The Wikimedia API requires an identifying
// contact in the User-Agent, which fills the credential slot for this
// backend.
const WikipediaEnvVar = "WIKIPEDIA_CONTACT"

// wikiMaxSrlimit is the action API's maximum srlimit per request for
// non-bot clients.
const wikiMaxSrlimit = 50

// WikipediaConfig configures a WikipediaBackend.
type WikipediaConfig struct {
	// Contact is the email identifying this client to the Wikimedia API,
	// folded into the User-Agent. Falls back to the WIKIPEDIA_CONTACT
	// environment variable.
	Contact string

	// MaxResults caps results per call (default 3).
	MaxResults int

	// ExcludeURLs lists URLs never to return.
	ExcludeURLs []string

	// IncludeRawContent appends the full plain-text page extract to each
	// result's snippets. Unlike the other backends it is enabled by
	// default; point it at false to get description-only snippets.
	IncludeRawContent *bool

	// HTTP holds timeout and User-Agent settings.
	HTTP types.HTTPConfig

	// Client overrides the HTTP client (tests).
	Client *http.Client

	// Warnings receives best-effort failure notices (default stderr).
	Warnings io.Writer
}

// WikipediaBackend queries the MediaWiki action API in two phases: a title
// search followed by one page fetch per candidate title.
type WikipediaBackend struct {
	cfg        WikipediaConfig
	userAgent  string
	rawContent bool
	client     *http.Client
	warn       io.Writer
	retry      httputil.Policy
}

// NewWikipediaBackend validates cfg and returns a ready backend.
func NewWikipediaBackend(cfg WikipediaConfig) (*WikipediaBackend, error) {
	contact := credential(cfg.Contact, WikipediaEnvVar)
	if contact == "" {
		return nil, &ConfigError{Backend: "wikipedia", Reason: "contact email must be provided or set as environment variable " + WikipediaEnvVar}
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 3
	}

	ua := cfg.HTTP.UserAgent
	if ua == "" {
		ua = "retrieval-engine/0.1"
	}

	rawContent := true
	if cfg.IncludeRawContent != nil {
		rawContent = *cfg.IncludeRawContent
	}

	b := &WikipediaBackend{
		cfg:        cfg,
		userAgent:  fmt.Sprintf("%s (%s)", ua, contact),
		rawContent: rawContent,
		client:     cfg.Client,
		warn:       warnWriter(cfg.Warnings),
	}
	if b.client == nil {
		b.client = newHTTPClient(cfg.HTTP)
	}
	return b, nil
}

// Name returns the backend identifier.
func (b *WikipediaBackend) Name() string { return "wikipedia" }

// Search resolves candidate page titles for the query, then fetches each
// page. A single page fetch failure skips that title with a warning and
// never fails the call; only the title search itself carries the retry
// policy and can surface a ProviderError.
func (b *WikipediaBackend) Search(ctx context.Context, query string, excludeURLs []string) ([]types.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	exclude := newExcludeSet(b.cfg.ExcludeURLs, excludeURLs)

	titles, err := b.searchTitles(ctx, query, fetchCount(b.cfg.MaxResults, len(exclude), wikiMaxSrlimit))
	if err != nil {
		return nil, &ProviderError{Backend: "wikipedia", Err: err}
	}

	var results []types.Result
	for _, title := range titles {
		if len(results) >= b.cfg.MaxResults {
			break
		}

		page, err := b.fetchPage(ctx, title)
		if err != nil {
			fmt.Fprintf(b.warn, "warning: failed to fetch Wikipedia page %q: %v\n", title, err)
			continue
		}
		if _, dropped := exclude[page.FullURL]; dropped {
			continue
		}

		description := firstLine(page.Extract)
		r := types.Result{
			URL:         page.FullURL,
			Title:       page.Title,
			Description: description,
			Snippets:    []string{description},
			Source:      "wikipedia",
		}
		if b.rawContent && page.Extract != "" {
			r.Snippets = append(r.Snippets, page.Extract)
		}
		results = append(results, r)
	}
	return results, nil
}

// searchTitles runs the first phase: resolve the query to candidate page
// titles, retrying transient failures.
func (b *WikipediaBackend) searchTitles(ctx context.Context, query string, limit int) ([]string, error) {
	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {strconv.Itoa(limit)},
		"format":   {"json"},
	}
	reqURL := wikipediaAPIBase + "?" + params.Encode()

	var sr wikiSearchResponse
	err := b.retry.Do(ctx, func(ctx context.Context) error {
		sr = wikiSearchResponse{}
		return b.get(ctx, reqURL, &sr)
	})
	if err != nil {
		return nil, err
	}

	titles := make([]string, 0, len(sr.Query.Search))
	for _, hit := range sr.Query.Search {
		titles = append(titles, hit.Title)
	}
	return titles, nil
}

// fetchPage runs the second phase for one title: a single attempt to fetch
// the page's plain-text extract and canonical URL.
func (b *WikipediaBackend) fetchPage(ctx context.Context, title string) (wikiPage, error) {
	params := url.Values{
		"action":      {"query"},
		"prop":        {"extracts|info"},
		"inprop":      {"url"},
		"explaintext": {"1"},
		"redirects":   {"1"},
		"titles":      {title},
		"format":      {"json"},
	}
	reqURL := wikipediaAPIBase + "?" + params.Encode()

	var pr wikiPageResponse
	if err := b.get(ctx, reqURL, &pr); err != nil {
		return wikiPage{}, err
	}

	for _, page := range pr.Query.Pages {
		if page.FullURL == "" {
			return wikiPage{}, fmt.Errorf("page %q is missing", title)
		}
		return page, nil
	}
	return wikiPage{}, fmt.Errorf("no page in response for %q", title)
}

// get issues one API request and decodes the JSON response into out.
func (b *WikipediaBackend) get(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", b.userAgent)

	resp, err := b.client.Do(req)
	if err != nil {
		return httputil.Transient(fmt.Errorf("Wikipedia API request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return httputil.Transientf("Wikipedia API returned HTTP %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return httputil.Transient(fmt.Errorf("parsing Wikipedia response: %w", err))
	}
	return nil
}

// firstLine returns the text up to the first newline, trimmed.
func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// MediaWiki action API JSON structures.
type wikiSearchResponse struct {
	Query struct {
		Search []wikiSearchHit `json:"search"`
	} `json:"query"`
}

type wikiSearchHit struct {
	Title string `json:"title"`
}

type wikiPageResponse struct {
	Query struct {
		Pages map[string]wikiPage `json:"pages"`
	} `json:"query"`
}

type wikiPage struct {
	PageID  int    `json:"pageid"`
	Title   string `json:"title"`
	Extract string `json:"extract"`
	FullURL string `json:"fullurl"`
}
