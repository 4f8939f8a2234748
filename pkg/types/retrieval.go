// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the retrieval-engine.
package types

// Result is the provider-agnostic record every retrieval backend produces.
// Whatever the upstream schema looks like, callers only ever see this shape.
type Result struct {
	// URL is the absolute address of the source page. It is the unique key
	// for exclusion filtering within a single call.
	URL string `json:"url" yaml:"url"`

	// Title is the display title as returned by the provider. Empty when the
	// provider gives none.
	Title string `json:"title" yaml:"title"`

	// Description is the short snippet or summary text. Always present,
	// empty string when the provider omits it.
	Description string `json:"description" yaml:"description"`

	// Snippets holds the result text in ranked order. Snippets[0] is always
	// the description; Snippets[1], when present, is extracted raw page
	// content.
	Snippets []string `json:"snippets" yaml:"snippets"`

	// Source identifies which backend produced this result
	// (e.g. "bing", "google", "tavily", "wikipedia").
	Source string `json:"source" yaml:"source"`
}
