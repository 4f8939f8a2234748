// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract fetches a web page and converts its HTML body to plain
// text. Extraction is strictly best-effort: a single attempt, no retries,
// and every failure is reported to the caller as an error to degrade on,
// never to propagate.
package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/retrieval-engine/pkg/types"
)

// DefaultMaxBytes caps how much of a response body is read.
const DefaultMaxBytes = 2 << 20 // 2 MiB

// boilerplateSelector matches elements that carry markup or navigation
// chrome rather than article text.
const boilerplateSelector = "script, style, noscript, nav, header, footer, aside, form, iframe"

// Extractor fetches URLs and extracts readable text from HTML pages.
type Extractor struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

// New returns an Extractor using the given HTTP settings. A zero Timeout
// falls back to the client default.
func New(cfg types.HTTPConfig) *Extractor {
	return &Extractor{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		maxBytes:  DefaultMaxBytes,
	}
}

// Extract fetches url and returns the page's plain-text content. It returns
// an error on network failure, non-2xx status, non-HTML content, or parse
// failure; callers are expected to log and continue without the content.
func (e *Extractor) Extract(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetching %s: HTTP %d", url, resp.StatusCode)
	}

	contentType := normalizeContentType(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "html") {
		return "", fmt.Errorf("fetching %s: unsupported content type %q", url, contentType)
	}

	body := io.LimitReader(resp.Body, e.maxBytes)
	text, err := textFromHTML(body)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", url, err)
	}
	if text == "" {
		return "", fmt.Errorf("parsing %s: no text content", url)
	}
	return text, nil
}

// textFromHTML parses an HTML document and returns its visible text with
// boilerplate elements removed and whitespace collapsed. It prefers the
// <article> or <main> element when one exists.
func textFromHTML(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}

	doc.Find(boilerplateSelector).Remove()

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("main").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}
	if root.Length() == 0 {
		return "", nil
	}

	return collapseWhitespace(root.Text()), nil
}

// collapseWhitespace reduces runs of whitespace to single spaces, keeping
// paragraph breaks as newlines.
func collapseWhitespace(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		out = append(out, strings.Join(fields, " "))
	}
	return strings.Join(out, "\n")
}

// normalizeContentType strips parameters from a Content-Type header value.
func normalizeContentType(value string) string {
	if value == "" {
		return ""
	}
	parts := strings.Split(value, ";")
	return strings.ToLower(strings.TrimSpace(parts[0]))
}
