// Package app wires the answering pipeline together: plan, search, select,
// gather evidence per URL, rank, assemble, synthesize, then validate, verify,
// and persist the outcome.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/goanswer/internal/aggregate"
	"github.com/hyperifyio/goanswer/internal/analyze"
	"github.com/hyperifyio/goanswer/internal/archive"
	"github.com/hyperifyio/goanswer/internal/assemble"
	"github.com/hyperifyio/goanswer/internal/cache"
	"github.com/hyperifyio/goanswer/internal/extract"
	"github.com/hyperifyio/goanswer/internal/fetch"
	"github.com/hyperifyio/goanswer/internal/llm"
	"github.com/hyperifyio/goanswer/internal/plan"
	"github.com/hyperifyio/goanswer/internal/query"
	"github.com/hyperifyio/goanswer/internal/rank"
	"github.com/hyperifyio/goanswer/internal/robots"
	"github.com/hyperifyio/goanswer/internal/search"
	selecter "github.com/hyperifyio/goanswer/internal/select"
	"github.com/hyperifyio/goanswer/internal/synth"
	"github.com/hyperifyio/goanswer/internal/validate"
	"github.com/hyperifyio/goanswer/internal/verify"
)

// perVariantResults is how many hits each planned query variant requests.
const perVariantResults = 10

// App owns the long-lived collaborators of the pipeline: the completion
// client, the disk caches, and the optional run archive.
type App struct {
	cfg         Config
	llm         llm.Client
	pages       *cache.PageCache
	completions *cache.CompletionCache
	store       *archive.Store
}

// Result is everything one run produced. Trace is always populated; Answer
// and the reports stay zero on dry runs and fatal errors.
type Result struct {
	Answer       synth.Answer
	Report       validate.Report
	Verification *verify.Result
	Trace        Trace
}

// New builds an App from Config: completion client, caches with their
// startup maintenance (clear, age purge, size limits), and the archive.
func New(ctx context.Context, cfg Config) (*App, error) {
	a := &App{cfg: cfg}
	a.llm = llm.New(llm.Config{
		BaseURL:           cfg.LLMBaseURL,
		APIKey:            cfg.LLMAPIKey,
		LegacyCompletions: cfg.LegacyCompletions,
		HTTPClient:        newFetchHTTPClient(),
	})

	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			_ = cache.ClearDir(cfg.CacheDir)
		}
		pagesDir := filepath.Join(cfg.CacheDir, "pages")
		completionsDir := filepath.Join(cfg.CacheDir, "completions")
		if cfg.CacheMaxAge > 0 {
			_, _ = cache.PurgePagesByAge(pagesDir, cfg.CacheMaxAge)
			_, _ = cache.PurgeCompletionsByAge(completionsDir, cfg.CacheMaxAge)
		}
		if cfg.CacheMaxBytes > 0 || cfg.CacheMaxCount > 0 {
			_, _ = cache.EnforcePageCacheLimits(pagesDir, cfg.CacheMaxBytes, cfg.CacheMaxCount)
			_, _ = cache.EnforceCompletionCacheLimits(completionsDir, cfg.CacheMaxBytes, cfg.CacheMaxCount)
		}
		a.pages = &cache.PageCache{Dir: pagesDir}
		a.completions = &cache.CompletionCache{Dir: completionsDir, StrictPerms: cfg.CacheStrictPerms}
	}

	if cfg.ArchivePath != "" {
		store, err := archive.Open(cfg.ArchivePath)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		a.store = store
	}

	// Preflight: list models when the backend supports it. Best effort; the
	// synthesis stage surfaces real connectivity failures with its own error.
	if !cfg.DryRun {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if lister, ok := a.llm.(llm.ModelLister); ok {
			models, err := lister.ListModels(pctx)
			switch {
			case err != nil:
				log.Warn().Err(err).Msg("model list failed; continuing")
			case len(models.Models) == 0:
				log.Warn().Msg("backend returned zero models")
			default:
				log.Debug().Int("count", len(models.Models)).Msg("models available")
			}
		}
	}

	return a, nil
}

// Close releases held resources. Safe on a partially constructed App.
func (a *App) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// Run executes one full answering pipeline. Per-URL trouble degrades the
// evidence and the run continues; only search.ErrUnavailable and
// synth.ErrUnavailable come back as errors.
//
// RunTimeout bounds the retrieval stages (plan, search, gather). When it
// expires mid-gather the unfinished fetches surface as timeout documents and
// synthesis still runs, bounded by its own client timeout and retry budget,
// so a slow web yields a degraded answer instead of no answer.
func (a *App) Run(ctx context.Context) (Result, error) {
	started := time.Now()
	timeout := a.cfg.RunTimeout
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	retrievalCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	q := query.New(a.cfg.Question, query.Params{
		Model:       a.cfg.Model,
		MaxSources:  a.cfg.MaxSources,
		TokenBudget: a.cfg.TokenBudget,
		Style:       a.cfg.Style,
		Lang:        a.cfg.Lang,
	})
	res := Result{Trace: Trace{
		RunID:       uuid.NewString(),
		Question:    q.Text,
		Model:       q.Model,
		TokenBudget: q.TokenBudget,
		StartedAt:   started.UTC(),
	}}
	if q.IsEmpty() {
		return res, errors.New("empty question")
	}

	p := a.planQueries(retrievalCtx, q)
	res.Trace.Queries = p.Queries
	log.Info().Int("variants", len(p.Queries)).Msg("planned queries")

	sc := &search.Client{Provider: a.searchProvider()}
	hits, err := sc.SearchAll(retrievalCtx, p.Queries, perVariantResults)
	if err != nil {
		return res, err
	}

	merged := aggregate.Merge(hits)
	selected := selecter.Select(merged, selecter.Options{
		MaxTotal:        q.MaxSources,
		PerDomain:       a.cfg.PerDomainCap,
		MinSnippetChars: a.cfg.MinSnippetChars,
	})
	log.Info().Int("hits", len(hits)).Int("merged", len(merged)).Int("selected", len(selected)).Msg("sources selected")

	if a.cfg.DryRun {
		return a.finishDryRun(res, selected, started)
	}

	candidates, sources := a.gatherEvidence(retrievalCtx, selected)
	res.Trace.Sources = sources

	analyzer := analyze.Analyzer{}
	scored := rank.Rank(analyzer.Analyze(q.Text), candidates, rank.Options{})

	block, err := assemble.Build(scored, q.TokenBudget)
	if err != nil && !errors.Is(err, assemble.ErrEmptyContext) {
		return res, err
	}
	res.Trace.ContextTokens = block.TokenCount
	res.Trace.Citations = traceCitations(block)

	syn := &synth.Synthesizer{
		Client:          a.llm,
		Cache:           a.completions,
		MaxAnswerTokens: a.cfg.MaxAnswerTokens,
	}
	ans, err := syn.Synthesize(ctx, q, block)
	if err != nil {
		return res, fmt.Errorf("synthesize: %w", err)
	}
	res.Answer = ans
	res.Trace.NoEvidence = ans.NoEvidence

	res.Report = validate.CheckAnswer(ans)
	if !res.Report.Sound() {
		log.Warn().Ints("dangling", res.Report.Dangling).Msg("answer cites ids outside the offered sources")
	}
	res.Trace.Validation = res.Report.Summary()

	if !a.cfg.SkipVerify {
		verifier := &verify.Verifier{Client: a.llm, Cache: a.completions}
		if vres, verr := verifier.Verify(ctx, ans.Text, q.Model, q.Lang); verr == nil {
			res.Verification = &vres
			res.Trace.Verification = vres.Summary
		} else {
			log.Warn().Err(verr).Msg("verification failed; continuing")
		}
	}

	res.Trace.GeneratedAt = time.Now().UTC()
	res.Trace.ElapsedMS = time.Since(started).Milliseconds()

	if err := a.writeOutputs(res); err != nil {
		return res, err
	}
	if a.store != nil {
		if err := a.archiveRun(ctx, q, res, block); err != nil {
			log.Warn().Err(err).Msg("archive failed; continuing")
		}
	}
	return res, nil
}

// finishDryRun records the planned queries and selections, writes the
// summary when an output path is set, and stops before any page fetch or
// completion call.
func (a *App) finishDryRun(res Result, selected []search.Result, started time.Time) (Result, error) {
	for _, r := range selected {
		domain := archive.Domain(r.URL)
		res.Trace.Sources = append(res.Trace.Sources, TraceSource{
			URL:         r.URL,
			Title:       r.Title,
			Status:      "selected",
			Domain:      domain,
			Credibility: archive.CredibilityLabel(domain),
		})
	}
	res.Trace.GeneratedAt = time.Now().UTC()
	res.Trace.ElapsedMS = time.Since(started).Milliseconds()
	if a.cfg.OutputPath != "" {
		if err := os.WriteFile(a.cfg.OutputPath, []byte(RenderDryRun(res)), 0o644); err != nil {
			return res, fmt.Errorf("write output: %w", err)
		}
		log.Info().Str("out", a.cfg.OutputPath).Msg("wrote dry-run summary")
	}
	return res, nil
}

// planQueries tries the model planner and falls back to the deterministic
// one, so a dead backend still yields searchable variants.
func (a *App) planQueries(ctx context.Context, q query.Query) plan.Plan {
	lp := &plan.LLMPlanner{Client: a.llm, Cache: a.completions, Verbose: a.cfg.Verbose}
	if p, err := lp.Plan(ctx, q); err == nil {
		return p
	} else {
		log.Warn().Err(err).Msg("planner failed, using fallback")
	}
	p, _ := (&plan.Fallback{}).Plan(ctx, q)
	return p
}

func (a *App) searchProvider() search.Provider {
	switch {
	case a.cfg.FileSearchPath != "":
		return &search.FileProvider{Path: a.cfg.FileSearchPath}
	case a.cfg.SearxURL != "":
		return &search.SearxNG{
			BaseURL:    a.cfg.SearxURL,
			APIKey:     a.cfg.SearxKey,
			HTTPClient: newFetchHTTPClient(),
			UserAgent:  a.userAgent(),
			Language:   a.cfg.Lang,
		}
	case a.cfg.BraveKey != "":
		return &search.Brave{APIKey: a.cfg.BraveKey, HTTPClient: newFetchHTTPClient()}
	}
	return nil
}

func (a *App) userAgent() string {
	if strings.TrimSpace(a.cfg.UserAgent) != "" {
		return a.cfg.UserAgent
	}
	return DefaultUserAgent
}

// evidence is one candidate's gather outcome, written once into its slot.
type evidence struct {
	doc      fetch.Document
	content  extract.Content
	features []analyze.Features
}

// gatherEvidence runs robots, fetch, extract, and analyze for every selected
// source under a bounded fan-out. A deadline that expires mid-gather leaves
// timeout documents in the unfinished slots and the pipeline proceeds with
// whatever completed.
func (a *App) gatherEvidence(ctx context.Context, selected []search.Result) ([]rank.Candidate, []TraceSource) {
	httpc := newFetchHTTPClient()
	rm := &robots.Manager{
		HTTPClient:        httpc,
		Cache:             a.pages,
		UserAgent:         a.userAgent(),
		AllowPrivateHosts: a.cfg.AllowPrivateHosts,
	}
	fc := &fetch.Client{
		HTTPClient:        httpc,
		UserAgent:         a.userAgent(),
		MaxAttempts:       2,
		PerRequestTimeout: 15 * time.Second,
		Cache:             a.pages,
		BypassCache:       a.cfg.CacheClear && a.cfg.CacheMaxAge == 0,
		Robots:            rm,
		AllowPrivateHosts: a.cfg.AllowPrivateHosts,
		RedirectMaxHops:   5,
	}

	slots := make([]evidence, len(selected))
	analyzer := analyze.Analyzer{}

	g, gctx := errgroup.WithContext(ctx)
	limit := a.cfg.FetchConcurrency
	if limit <= 0 {
		limit = DefaultFetchConcurrency
	}
	g.SetLimit(limit)
	for i, r := range selected {
		g.Go(func() error {
			doc := fc.Fetch(gctx, r.URL)
			content := extract.FromDocument(doc, extract.Options{})
			features := make([]analyze.Features, len(content.Passages))
			for j, p := range content.Passages {
				features[j] = analyzer.Analyze(p.Text)
			}
			// Slot write: no worker touches another worker's index.
			slots[i] = evidence{doc: doc, content: content, features: features}
			return nil
		})
	}
	// Workers never return errors; failures live in Document.Status.
	_ = g.Wait()

	var candidates []rank.Candidate
	sources := make([]TraceSource, 0, len(selected))
	for i, r := range selected {
		ev := slots[i]
		domain := archive.Domain(r.URL)
		title := firstNonEmpty(ev.content.Title, r.Title)
		sources = append(sources, TraceSource{
			URL:         r.URL,
			Title:       title,
			Status:      string(ev.doc.Status),
			HTTPStatus:  ev.doc.HTTPStatus,
			Domain:      domain,
			Credibility: archive.CredibilityLabel(domain),
			Passages:    len(ev.content.Passages),
			Err:         ev.doc.Err,
		})
		if !ev.doc.OK() {
			log.Warn().Str("url", r.URL).Str("status", string(ev.doc.Status)).Str("reason", ev.doc.Err).Msg("fetch failed; skipping source")
		}
		sourceRank := r.Rank
		if sourceRank <= 0 {
			sourceRank = i + 1
		}
		for j, p := range ev.content.Passages {
			candidates = append(candidates, rank.Candidate{
				Passage:    p,
				Features:   ev.features[j],
				SourceRank: sourceRank,
				Title:      title,
				Published:  ev.content.Published,
			})
		}
	}
	return candidates, sources
}

// writeOutputs persists the rendered answer, the trace sidecar, and the PDF
// to wherever Config points. Nothing is written for empty paths.
func (a *App) writeOutputs(res Result) error {
	if a.cfg.OutputPath != "" {
		if err := os.WriteFile(a.cfg.OutputPath, []byte(RenderAnswer(res)), 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		log.Info().Str("out", a.cfg.OutputPath).Msg("wrote answer")
	}
	tracePath := a.cfg.TracePath
	if tracePath == "" && a.cfg.OutputPath != "" {
		tracePath = deriveTraceSidecarPath(a.cfg.OutputPath)
	}
	if tracePath != "" {
		data, err := marshalTraceJSON(res.Trace)
		if err != nil {
			return fmt.Errorf("encode trace: %w", err)
		}
		if err := os.WriteFile(tracePath, data, 0o644); err != nil {
			return fmt.Errorf("write trace: %w", err)
		}
	}
	if a.cfg.OutputPDFPath != "" {
		if err := writeAnswerPDF(res, a.cfg.OutputPDFPath); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
		log.Info().Str("out", a.cfg.OutputPDFPath).Msg("wrote pdf")
	}
	return nil
}

// archiveRun copies the run and its offered citations into the SQLite
// history before the in-memory entities are dropped.
func (a *App) archiveRun(ctx context.Context, q query.Query, res Result, block assemble.ContextBlock) error {
	run := archive.Run{
		ID:         res.Trace.RunID,
		Question:   q.Text,
		Model:      res.Answer.Model,
		Answer:     res.Answer.Text,
		NoEvidence: res.Answer.NoEvidence,
		CreatedAt:  res.Trace.StartedAt,
	}
	cits := make([]archive.Citation, 0, len(block.Entries))
	for _, e := range block.Entries {
		cits = append(cits, archive.Citation{
			Ref:          e.ID,
			URL:          e.Passage.DocURL,
			Title:        e.Title,
			PassageIndex: e.Passage.Index,
			Excerpt:      shortExcerpt(e.Passage.Text, 280),
		})
	}
	return a.store.Record(ctx, run, cits)
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}
