package main

import (
	"fmt"
	"io"

	"github.com/go2web/go2web/internal/fetcher"
	"github.com/go2web/go2web/internal/parser"
)

// renderResponse prints a JSON body as is and anything else as readable text.
func renderResponse(w io.Writer, resp *fetcher.RawResponse, raw bool) {
	switch {
	case raw:
		fmt.Fprint(w, resp.HeaderBlock())
		fmt.Fprint(w, "\r\n\r\n")
		fmt.Fprintln(w, resp.Body)
	case resp.IsJSON():
		fmt.Fprintln(w, resp.Body)
	default:
		fmt.Fprintln(w, parser.ExtractReadableText(resp.Body))
	}
}

func renderResults(w io.Writer, results []parser.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}
	for _, r := range results {
		fmt.Fprintf(w, "%d. %s;\nAccess link: %s\n\n", r.Rank, r.Description, r.URL)
	}
}
