// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "retrieval-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// RetrievalConfig holds settings for a retrieval run. Credential fields are
// optional here; backends fall back to their documented environment
// variables when a field is empty.
type RetrievalConfig struct {
	HTTPConfig `yaml:",inline"`

	// Backend selects the provider: bing, google, tavily, or wikipedia.
	Backend string `json:"backend" yaml:"backend"`

	// MaxResults is the maximum number of results per call
	// (default 10; 3 for wikipedia).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// IncludeRawContent enables best-effort page content enrichment. When
	// nil each backend applies its own default: off everywhere except
	// wikipedia, which enriches unless explicitly disabled.
	IncludeRawContent *bool `json:"include_raw_content,omitempty" yaml:"include_raw_content,omitempty"`

	// ExcludeURLs lists URLs never to return.
	ExcludeURLs []string `json:"exclude_urls,omitempty" yaml:"exclude_urls,omitempty"`

	// IncludeDomains restricts results to these domains (bing, tavily).
	IncludeDomains []string `json:"include_domains,omitempty" yaml:"include_domains,omitempty"`

	// ExcludeDomains drops results from these domains (bing, tavily).
	ExcludeDomains []string `json:"exclude_domains,omitempty" yaml:"exclude_domains,omitempty"`

	// Freshness filters results by age: Day, Week, or Month (bing only).
	Freshness string `json:"freshness,omitempty" yaml:"freshness,omitempty"`

	// SearchDepth selects basic or advanced search (tavily only).
	SearchDepth string `json:"search_depth,omitempty" yaml:"search_depth,omitempty"`

	// BingAPIKey is the Bing Web Search API key.
	BingAPIKey string `json:"bing_api_key,omitempty" yaml:"bing_api_key,omitempty"`

	// GoogleAPIKey is the Google Custom Search API key.
	GoogleAPIKey string `json:"google_api_key,omitempty" yaml:"google_api_key,omitempty"`

	// GoogleCSEID is the Google Custom Search Engine identifier.
	GoogleCSEID string `json:"google_cse_id,omitempty" yaml:"google_cse_id,omitempty"`

	// TavilyAPIKey is the Tavily Search API key.
	TavilyAPIKey string `json:"tavily_api_key,omitempty" yaml:"tavily_api_key,omitempty"`

	// WikipediaContact is the contact email identifying this client to the
	// Wikimedia API.
	WikipediaContact string `json:"wikipedia_contact,omitempty" yaml:"wikipedia_contact,omitempty"`
}
