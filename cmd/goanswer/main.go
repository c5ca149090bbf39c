package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goanswer/internal/app"
	"github.com/hyperifyio/goanswer/internal/search"
	"github.com/hyperifyio/goanswer/internal/synth"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Dotenv must load before the flag declarations below so the env-backed
	// flag defaults see it.
	if err := app.LoadEnvFiles(".env", ".env.local"); err != nil {
		log.Warn().Err(err).Msg("env file load failed")
	}

	var (
		question    string
		configPath  string
		outputPath  string
		pdfPath     string
		tracePath   string
		archivePath string

		llmBase   string
		llmModel  string
		llmKey    string
		llmLegacy bool

		searxURL   string
		searxKey   string
		braveKey   string
		searchFile string

		maxSources    int
		perDomain     int
		minSnippet    int
		contextBudget int
		answerBudget  int

		language string
		style    string

		userAgent    string
		concurrency  int
		runTimeout   time.Duration
		allowPrivate bool

		cacheDir      string
		cacheMaxAge   time.Duration
		cacheMaxBytes int64
		cacheMaxCount int
		cacheClear    bool
		cacheStrict   bool

		noVerify    bool
		dryRun      bool
		verbose     bool
		showVersion bool
	)

	flag.StringVar(&question, "q", "", "Question to answer; positional arguments are joined when empty")
	flag.StringVar(&configPath, "config", os.Getenv("GOANSWER_CONFIG"), "Path to optional YAML or JSON config file")
	flag.StringVar(&outputPath, "output", "", "Write the answer to this file; empty keeps it on stdout")
	flag.StringVar(&pdfPath, "output.pdf", "", "Also render the answer as a PDF at this path")
	flag.StringVar(&tracePath, "trace", "", "Write the run trace JSON here; empty derives <output>.trace.json")
	flag.StringVar(&archivePath, "archive.db", os.Getenv("ARCHIVE_DB"), "SQLite file for the run history (empty disables)")
	flag.StringVar(&llmBase, "llm.base", os.Getenv("LLM_BASE_URL"), "OpenAI-compatible base URL")
	flag.StringVar(&llmModel, "llm.model", os.Getenv("LLM_MODEL"), "Model name")
	flag.StringVar(&llmKey, "llm.key", os.Getenv("LLM_API_KEY"), "API key for the completion backend")
	flag.BoolVar(&llmLegacy, "llm.legacyCompletions", false, "Use the legacy completions endpoint instead of chat")
	flag.StringVar(&searxURL, "searx.url", os.Getenv("SEARX_URL"), "SearxNG base URL")
	flag.StringVar(&searxKey, "searx.key", os.Getenv("SEARX_KEY"), "SearxNG API key (optional)")
	flag.StringVar(&braveKey, "brave.key", os.Getenv("BRAVE_KEY"), "Brave Search API key")
	flag.StringVar(&searchFile, "search.file", os.Getenv("SEARCH_FILE"), "JSON results file for the offline search provider")
	flag.IntVar(&maxSources, "max.sources", 0, "Maximum sources to fetch (0 = default 8)")
	flag.IntVar(&perDomain, "max.perDomain", 0, "Maximum sources per domain (0 = default 3)")
	flag.IntVar(&minSnippet, "min.snippetChars", 0, "Minimum snippet length to keep a search hit (0 disables)")
	flag.IntVar(&contextBudget, "budget.context", 0, "Token budget for the evidence block (0 = default 2048)")
	flag.IntVar(&answerBudget, "budget.answer", 0, "Token cap for the answer (0 = default 1024)")
	flag.StringVar(&language, "lang", "", "Answer language hint, e.g. 'en' or 'fi'")
	flag.StringVar(&style, "style", "", "Answer style: concise, detailed, or bullets")
	flag.StringVar(&userAgent, "ua", app.DefaultUserAgent, "User-Agent for search and page requests")
	flag.IntVar(&concurrency, "fetch.concurrency", app.DefaultFetchConcurrency, "Concurrent page fetches")
	flag.DurationVar(&runTimeout, "timeout", app.DefaultRunTimeout, "Deadline for the retrieval stages (plan, search, fetch)")
	flag.BoolVar(&allowPrivate, "allow.privateHosts", false, "Allow fetching loopback and private-network hosts (local testing)")
	flag.StringVar(&cacheDir, "cache.dir", app.DefaultCacheDir, "Cache directory; empty disables caching")
	flag.DurationVar(&cacheMaxAge, "cache.maxAge", 0, "Purge cache entries older than this before the run (0 disables)")
	flag.Int64Var(&cacheMaxBytes, "cache.maxBytes", 0, "Cache size limit in bytes, enforced at startup (0 disables)")
	flag.IntVar(&cacheMaxCount, "cache.maxCount", 0, "Cache entry count limit, enforced at startup (0 disables)")
	flag.BoolVar(&cacheClear, "cache.clear", false, "Clear the cache directory before the run")
	flag.BoolVar(&cacheStrict, "cache.strictPerms", false, "Restrict completion cache permissions (0700 dirs, 0600 files)")
	flag.BoolVar(&noVerify, "no-verify", false, "Skip the post-answer verification pass")
	flag.BoolVar(&dryRun, "dry-run", false, "Plan and select sources without fetching or calling the model")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("goanswer %s (commit %s, built %s)\n", app.BuildVersion, app.BuildCommit, app.BuildDate)
		return
	}

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if question == "" {
		question = strings.TrimSpace(strings.Join(flag.Args(), " "))
	}

	cfg := app.Config{
		Question:          question,
		Model:             llmModel,
		Style:             style,
		Lang:              language,
		MaxSources:        maxSources,
		TokenBudget:       contextBudget,
		MaxAnswerTokens:   answerBudget,
		SearxURL:          searxURL,
		SearxKey:          searxKey,
		BraveKey:          braveKey,
		FileSearchPath:    searchFile,
		PerDomainCap:      perDomain,
		MinSnippetChars:   minSnippet,
		LLMBaseURL:        llmBase,
		LLMAPIKey:         llmKey,
		LegacyCompletions: llmLegacy,
		UserAgent:         userAgent,
		FetchConcurrency:  concurrency,
		RunTimeout:        runTimeout,
		AllowPrivateHosts: allowPrivate,
		OutputPath:        outputPath,
		OutputPDFPath:     pdfPath,
		TracePath:         tracePath,
		ArchivePath:       archivePath,
		CacheDir:          cacheDir,
		CacheMaxAge:       cacheMaxAge,
		CacheMaxBytes:     cacheMaxBytes,
		CacheMaxCount:     cacheMaxCount,
		CacheClear:        cacheClear,
		CacheStrictPerms:  cacheStrict,
		SkipVerify:        noVerify,
		DryRun:            dryRun,
		Verbose:           verbose,
	}

	if configPath != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			log.Error().Err(err).Str("path", configPath).Msg("config file unreadable")
			os.Exit(2)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvToConfig(&cfg)

	if err := app.ValidateConfig(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, `usage: goanswer [flags] "your question"`)
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("run failed")
		// Exit code policy: 1 when search produced nothing to work with,
		// 2 when the completion backend was unreachable, 1 otherwise.
		switch {
		case errors.Is(err, synth.ErrUnavailable):
			os.Exit(2)
		case errors.Is(err, search.ErrUnavailable):
			os.Exit(1)
		}
		os.Exit(1)
	}
}

func run(cfg app.Config) error {
	ctx := context.Background()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	res, err := a.Run(ctx)
	if err != nil {
		return err
	}
	if cfg.OutputPath == "" {
		if cfg.DryRun {
			fmt.Print(app.RenderDryRun(res))
		} else {
			fmt.Print(app.RenderAnswer(res))
		}
	}
	return nil
}
