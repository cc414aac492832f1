// Package main is the entry point for the go2web command.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go2web/go2web/internal/cache"
	"github.com/go2web/go2web/internal/config"
	"github.com/go2web/go2web/internal/fetcher"
	"github.com/go2web/go2web/internal/report"
	"github.com/go2web/go2web/internal/search"
)

const usageText = `Usage:
  go2web -u <URL>            make an HTTP request to the specified URL and print the response
  go2web -s <search-term>    make an HTTP request to search the term and print top 10 results
  go2web -h                  show this help

Options:
`

// newOpener builds the connection opener; tests swap it for a scripted origin.
var newOpener = func(cfg *config.Config) fetcher.Opener {
	return fetcher.NewDialer(cfg)
}

type options struct {
	url        string
	search     bool
	raw        bool
	configPath string
	cacheKind  string
	cachePath  string
	clearCache bool
	output     string
	verbose    bool
	trace      bool
	terms      []string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, fs, err := parseArgs(args, stderr)
	if err != nil {
		return 1
	}

	setupLogging(opts, stderr)

	if opts.url == "" && !opts.search && !opts.clearCache {
		fs.Usage()
		return 1
	}
	if opts.search && len(opts.terms) == 0 {
		fmt.Fprintln(stderr, "Error: -s requires at least one search term")
		return 1
	}
	if opts.url != "" && opts.search {
		fmt.Fprintln(stderr, "Error: -u and -s cannot be used together")
		return 1
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if err := execute(ctx, cfg, opts, stdout); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseArgs(args []string, stderr io.Writer) (*options, *flag.FlagSet, error) {
	opts := &options{}
	fs := flag.NewFlagSet("go2web", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usageText)
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.url, "u", "", "URL to fetch")
	fs.BoolVar(&opts.search, "s", false, "search the terms that follow")
	fs.BoolVar(&opts.raw, "raw", false, "print the response headers and body unmodified")
	fs.StringVar(&opts.configPath, "config", "", "configuration file (.yaml, .yml or .json)")
	fs.StringVar(&opts.cacheKind, "cache", "", "cache backend: json, sqlite3, sqlite, leveldb, memory or none")
	fs.StringVar(&opts.cachePath, "cache-path", "", "cache file or directory")
	fs.BoolVar(&opts.clearCache, "clear-cache", false, "remove every cached response before running")
	fs.StringVar(&opts.output, "o", "", "export results to a .csv, .xlsx or .json file")
	fs.BoolVar(&opts.verbose, "v", false, "debug logging")
	fs.BoolVar(&opts.trace, "vv", false, "trace logging")

	// -h, unknown flags and missing values all end here; flag has printed the reason.
	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	opts.terms = fs.Args()
	return opts, fs, nil
}

func setupLogging(opts *options, stderr io.Writer) {
	logLevel := zerolog.InfoLevel
	if opts.verbose {
		logLevel = zerolog.DebugLevel
	}
	if opts.trace {
		logLevel = zerolog.TraceLevel
	}
	log.Logger = log.Level(logLevel).Output(zerolog.ConsoleWriter{Out: stderr})
}

func loadConfig(opts *options) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if opts.cacheKind != "" {
		cfg.Cache.Backend = config.CacheBackend(opts.cacheKind)
	}
	if opts.cachePath != "" {
		cfg.Cache.Path = opts.cachePath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func execute(ctx context.Context, cfg *config.Config, opts *options, stdout io.Writer) error {
	var rc fetcher.ResponseCache
	if cfg.Cache.Backend != config.CacheNone {
		store, err := cache.Open(cfg.Cache)
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		defer store.Close()

		if opts.clearCache {
			if err := store.Clear(); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			log.Info().Str("backend", string(cfg.Cache.Backend)).Msg("Cache cleared")
		}
		rc = store
	}

	f := fetcher.NewFetcher(cfg, newOpener(cfg), rc)

	switch {
	case opts.url != "":
		res, err := f.Fetch(ctx, opts.url)
		if err != nil {
			return err
		}
		log.Debug().
			Int("status", res.Response.StatusCode).
			Int("redirects", res.RedirectCount()).
			Bool("from_cache", res.FromCache).
			Dur("elapsed", res.ResponseTime).
			Msg("Fetch complete")
		renderResponse(stdout, res.Response, opts.raw)
		if opts.output != "" {
			return export(report.FromFetch(res), opts.output)
		}

	case opts.search:
		results, err := search.NewSearcher(f, cfg.Search.BaseURL).Search(ctx, opts.terms)
		if err != nil {
			return err
		}
		renderResults(stdout, results)
		if opts.output != "" {
			return export(report.FromSearch(opts.terms, results), opts.output)
		}
	}
	return nil
}

func export(r *report.Report, path string) error {
	if err := report.ExportToFile(r, path); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	log.Info().Str("file", path).Int("rows", r.TotalCount).Msg("Report exported")
	return nil
}
