// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieval

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/retrieval-engine/pkg/types"
)

// QueryFile is the on-disk representation of a retrieval run: the queries
// issued, the configuration that produced the results, and the results
// themselves. A run can be saved and inspected later without re-querying
// the provider.
type QueryFile struct {
	Queries []string        `yaml:"queries"`
	Config  QueryFileConfig `yaml:"config"`
	Results []types.Result  `yaml:"results"`
	Summary QuerySummary    `yaml:"summary"`
}

// QueryFileConfig stores the retrieval configuration that produced the
// results.
type QueryFileConfig struct {
	Backend           string `yaml:"backend"`
	MaxResults        int    `yaml:"max_results"`
	IncludeRawContent *bool  `yaml:"include_raw_content,omitempty"`
}

// QuerySummary stores result statistics and a timestamp.
type QuerySummary struct {
	Total     int       `yaml:"total"`
	Timestamp time.Time `yaml:"timestamp"`
}

// WriteQueryFile saves queries and results to a YAML file.
func WriteQueryFile(path string, queries []string, cfg types.RetrievalConfig, results []types.Result) error {
	qf := QueryFile{
		Queries: queries,
		Config: QueryFileConfig{
			Backend:           cfg.Backend,
			MaxResults:        cfg.MaxResults,
			IncludeRawContent: cfg.IncludeRawContent,
		},
		Results: results,
		Summary: QuerySummary{
			Total:     len(results),
			Timestamp: time.Now(),
		},
	}

	data, err := yaml.Marshal(&qf)
	if err != nil {
		return fmt.Errorf("marshaling query file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadQueryFile loads a previously saved query file from disk.
func ReadQueryFile(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing query file: %w", err)
	}
	return &qf, nil
}
