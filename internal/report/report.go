// Package report turns search results and fetch outcomes into tabular reports.
package report

import (
	"fmt"
	"strings"

	"github.com/go2web/go2web/internal/fetcher"
	"github.com/go2web/go2web/internal/parser"
)

// Column names.
const (
	ColRank        = "Rank"
	ColDescription = "Description"
	ColURL         = "URL"
	ColHop         = "Hop"
	ColStatus      = "Status Code"
	ColLocation    = "Location"
	ColContentType = "Content Type"
	ColFromCache   = "From Cache"
)

// Definition describes a report.
type Definition struct {
	Name        string
	Description string
	Columns     []string
}

// Row is one report row, keyed by column name.
type Row struct {
	Values map[string]interface{}
}

// Report is a generated report.
type Report struct {
	Definition *Definition
	Rows       []Row
	TotalCount int
}

// FromSearch builds a report of ranked search results.
func FromSearch(terms []string, results []parser.SearchResult) *Report {
	r := &Report{
		Definition: &Definition{
			Name:        "Search Results",
			Description: fmt.Sprintf("Results for %q", strings.Join(terms, " ")),
			Columns:     []string{ColRank, ColDescription, ColURL},
		},
		Rows: make([]Row, 0, len(results)),
	}
	for _, res := range results {
		r.Rows = append(r.Rows, Row{Values: map[string]interface{}{
			ColRank:        res.Rank,
			ColDescription: res.Description,
			ColURL:         res.URL,
		}})
	}
	r.TotalCount = len(r.Rows)
	return r
}

// FromFetch builds a report of every hop of a fetch, the final response last.
func FromFetch(res *fetcher.Result) *Report {
	r := &Report{
		Definition: &Definition{
			Name:        "Fetch",
			Description: fmt.Sprintf("Fetch of %s", res.RequestURL),
			Columns:     []string{ColHop, ColURL, ColStatus, ColLocation, ColContentType, ColFromCache},
		},
		Rows: make([]Row, 0, len(res.RedirectChain)+1),
	}
	for i, hop := range res.RedirectChain {
		r.Rows = append(r.Rows, Row{Values: map[string]interface{}{
			ColHop:      i,
			ColURL:      hop.From.String(),
			ColStatus:   hop.StatusCode,
			ColLocation: hop.Location,
		}})
	}
	r.Rows = append(r.Rows, Row{Values: map[string]interface{}{
		ColHop:         len(res.RedirectChain),
		ColURL:         res.Final.String(),
		ColStatus:      res.Response.StatusCode,
		ColContentType: res.Response.ContentType(),
		ColFromCache:   res.FromCache,
	}})
	r.TotalCount = len(r.Rows)
	return r
}
