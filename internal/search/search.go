// Package search queries a search engine through the fetcher and scrapes its result links.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/go2web/go2web/internal/fetcher"
	"github.com/go2web/go2web/internal/parser"
	"github.com/go2web/go2web/internal/urlutil"
)

// Fetcher is the part of fetcher.Fetcher a Searcher needs.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetcher.Result, error)
}

// Searcher runs search queries.
type Searcher struct {
	fetcher Fetcher
	baseURL string
}

// NewSearcher creates a searcher for the engine at baseURL, e.g. "https://www.google.com/search".
func NewSearcher(f Fetcher, baseURL string) *Searcher {
	return &Searcher{fetcher: f, baseURL: baseURL}
}

// BuildQueryURL joins terms with "+" (spaces inside a term become "+" too)
// and appends them to baseURL as the q parameter.
func BuildQueryURL(baseURL string, terms []string) string {
	parts := make([]string, 0, len(terms))
	for _, term := range terms {
		parts = append(parts, strings.ReplaceAll(term, " ", "+"))
	}
	return baseURL + "?q=" + strings.Join(parts, "+")
}

// Search fetches the result page for terms and extracts its result links.
func (s *Searcher) Search(ctx context.Context, terms []string) ([]parser.SearchResult, error) {
	if len(terms) == 0 {
		return nil, fmt.Errorf("no search terms")
	}

	queryURL := BuildQueryURL(s.baseURL, terms)
	res, err := s.fetcher.Fetch(ctx, queryURL)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", strings.Join(terms, " "), err)
	}

	results := parser.ExtractResultLinks(res.Response.Body)
	for i := range results {
		if !urlutil.IsAbsoluteURL(results[i].URL) && results[i].URL != "" {
			if abs, err := urlutil.ResolveURL(s.baseURL, results[i].URL); err == nil {
				results[i].URL = abs
			}
		}
	}

	log.Debug().Int("results", len(results)).Str("url", queryURL).Msg("Search results extracted")
	return results, nil
}
