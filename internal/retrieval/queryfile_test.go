// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieval

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pdiddy/retrieval-engine/pkg/types"
)

func TestQueryFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")

	queries := []string{"go concurrency", "goroutine scheduling"}
	cfg := types.RetrievalConfig{
		Backend:           "bing",
		MaxResults:        10,
		IncludeRawContent: boolPtr(true),
	}
	results := []types.Result{
		{
			URL:         "https://go.example/concurrency",
			Title:       "Go Concurrency Patterns",
			Description: "Share memory by communicating.",
			Snippets:    []string{"Share memory by communicating.", "Full article body."},
			Source:      "bing",
		},
	}

	if err := WriteQueryFile(path, queries, cfg, results); err != nil {
		t.Fatalf("WriteQueryFile: %v", err)
	}

	qf, err := ReadQueryFile(path)
	if err != nil {
		t.Fatalf("ReadQueryFile: %v", err)
	}

	if len(qf.Queries) != 2 || qf.Queries[0] != "go concurrency" {
		t.Errorf("Queries = %v", qf.Queries)
	}
	if qf.Config.Backend != "bing" || qf.Config.MaxResults != 10 {
		t.Errorf("Config = %+v", qf.Config)
	}
	if qf.Config.IncludeRawContent == nil || !*qf.Config.IncludeRawContent {
		t.Errorf("IncludeRawContent = %v, want true preserved", qf.Config.IncludeRawContent)
	}
	if len(qf.Results) != 1 {
		t.Fatalf("len(Results) = %d, want 1", len(qf.Results))
	}
	r := qf.Results[0]
	if r.URL != results[0].URL || r.Title != results[0].Title {
		t.Errorf("Result = %+v", r)
	}
	if len(r.Snippets) != 2 || r.Snippets[0] != r.Description {
		t.Errorf("Snippets = %v", r.Snippets)
	}
	if qf.Summary.Total != 1 {
		t.Errorf("Summary.Total = %d, want 1", qf.Summary.Total)
	}
	if qf.Summary.Timestamp.IsZero() {
		t.Error("Summary.Timestamp should be set")
	}
}

func TestReadQueryFileMissing(t *testing.T) {
	_, err := ReadQueryFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestReadQueryFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("queries: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadQueryFile(path); err == nil {
		t.Error("expected parse error")
	}
}
