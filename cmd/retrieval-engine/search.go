// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/retrieval-engine/internal/retrieval"
	"github.com/pdiddy/retrieval-engine/pkg/types"
)

const defaultUserAgent = "retrieval-engine/0.1"

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search a web provider and print normalized results",
	Long: `Search issues a query against the selected backend (bing, google, tavily,
or wikipedia) and prints normalized results.

A query comes from positional arguments, --query, or --queries-file. A
queries file is a YAML query file; its queries run one by one against the
same backend and the results are concatenated. Use --out to save the run
as a query file for later inspection.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().String("backend", "bing", "backend: bing, google, tavily, or wikipedia")
	searchCmd.Flags().String("query", "", "search query (alternative to positional arguments)")
	searchCmd.Flags().String("queries-file", "", "YAML query file whose queries run in sequence")
	searchCmd.Flags().Int("max-results", 0, "maximum results per query (0 = backend default)")
	searchCmd.Flags().Bool("raw-content", false, "enrich results with extracted page content (wikipedia enriches by default; pass --raw-content=false to disable)")
	searchCmd.Flags().StringSlice("exclude-url", nil, "URL never to return (repeatable)")
	searchCmd.Flags().StringSlice("include-domain", nil, "restrict results to this domain (bing, tavily; repeatable)")
	searchCmd.Flags().StringSlice("exclude-domain", nil, "drop results from this domain (bing, tavily; repeatable)")
	searchCmd.Flags().String("freshness", "", "result age filter: Day, Week, or Month (bing only)")
	searchCmd.Flags().String("depth", "", "search depth: basic or advanced (tavily only)")
	searchCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 15s)")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	searchCmd.Flags().String("out", "", "save the run to a YAML query file")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	queries, err := searchQueries(cmd, args)
	if err != nil {
		return err
	}
	if len(queries) == 0 {
		return fmt.Errorf("provide a query: positional arguments, --query, or --queries-file")
	}

	cfg := searchConfig(cmd)

	backend, err := retrieval.NewBackend(cfg, os.Stderr)
	if err != nil {
		return err
	}
	r := retrieval.NewRetriever(backend)

	var results []types.Result
	for _, q := range queries {
		batch, err := r.Search(context.Background(), []string{q}, nil)
		if err != nil {
			return err
		}
		results = append(results, batch...)
	}

	if out, _ := cmd.Flags().GetString("out"); out != "" {
		if err := retrieval.WriteQueryFile(out, queries, cfg, results); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved run to %s\n", out)
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatSearchOutput(results, jsonOutput)
}

// searchQueries collects the query list from positional args, --query, or
// --queries-file, in that order of precedence.
func searchQueries(cmd *cobra.Command, args []string) ([]string, error) {
	if len(args) > 0 {
		return []string{strings.Join(args, " ")}, nil
	}
	if q, _ := cmd.Flags().GetString("query"); q != "" {
		return []string{q}, nil
	}
	path, _ := cmd.Flags().GetString("queries-file")
	if path == "" {
		return nil, nil
	}
	qf, err := retrieval.ReadQueryFile(path)
	if err != nil {
		return nil, err
	}
	return qf.Queries, nil
}

// searchConfig builds the retrieval configuration from flags, config file
// values, and loaded secrets. Backend constructors fall back to provider
// environment variables for credentials left empty here.
func searchConfig(cmd *cobra.Command) types.RetrievalConfig {
	backend, _ := cmd.Flags().GetString("backend")
	maxResults, _ := cmd.Flags().GetInt("max-results")
	excludeURLs, _ := cmd.Flags().GetStringSlice("exclude-url")
	includeDomains, _ := cmd.Flags().GetStringSlice("include-domain")
	excludeDomains, _ := cmd.Flags().GetStringSlice("exclude-domain")
	freshness, _ := cmd.Flags().GetString("freshness")
	depth, _ := cmd.Flags().GetString("depth")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	if !cmd.Flags().Changed("backend") && viper.GetString("backend") != "" {
		backend = viper.GetString("backend")
	}
	if maxResults == 0 {
		maxResults = viper.GetInt("max_results")
	}

	// Leave enrichment unset unless the user chose; backends fill in their
	// own default (wikipedia is the only one that defaults on).
	var rawContent *bool
	if cmd.Flags().Changed("raw-content") {
		v, _ := cmd.Flags().GetBool("raw-content")
		rawContent = &v
	} else if viper.IsSet("include_raw_content") {
		v := viper.GetBool("include_raw_content")
		rawContent = &v
	}

	return types.RetrievalConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   timeout,
			UserAgent: defaultUserAgent,
		},
		Backend:           backend,
		MaxResults:        maxResults,
		IncludeRawContent: rawContent,
		ExcludeURLs:       excludeURLs,
		IncludeDomains:    includeDomains,
		ExcludeDomains:    excludeDomains,
		Freshness:         freshness,
		SearchDepth:       depth,
		BingAPIKey:        secretDefault("bing-search-api-key", viper.GetString("bing_api_key")),
		GoogleAPIKey:      secretDefault("google-search-api-key", viper.GetString("google_api_key")),
		GoogleCSEID:       secretDefault("google-cse-id", viper.GetString("google_cse_id")),
		TavilyAPIKey:      secretDefault("tavily-api-key", viper.GetString("tavily_api_key")),
		WikipediaContact:  secretDefault("wikipedia-contact", viper.GetString("wikipedia_contact")),
	}
}

func formatSearchOutput(results []types.Result, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-40s  %-60s  %s\n", "Rank", "Title", "URL", "Source")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 120))

	for i, r := range results {
		title := r.Title
		if len(title) > 40 {
			title = title[:37] + "..."
		}
		url := r.URL
		if len(url) > 60 {
			url = url[:57] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-4d  %-40s  %-60s  %s\n", i+1, title, url, r.Source)
		if r.Description != "" {
			desc := r.Description
			if len(desc) > 110 {
				desc = desc[:107] + "..."
			}
			fmt.Fprintf(os.Stdout, "      %s\n", desc)
		}
	}

	fmt.Fprintf(os.Stdout, "\n%d results\n", len(results))
	return nil
}
