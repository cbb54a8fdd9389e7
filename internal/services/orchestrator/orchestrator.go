// Package orchestrator runs the scan pipeline: profile, queries, aliases,
// execution against every active provider, scoring, competitor tracking and
// persistence.
//
// Failure policy is asymmetric and decided by Phase.Fatal. Profile, queries,
// aliases and execute are fatal and abort the run with a *PhaseError before
// anything is persisted. Persisting queries, tracking competitors and
// persisting the scan are best effort: failures are logged and the run still
// returns its score. A context that ends before the result is persisted
// always aborts the run.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"beacon/internal/domain"
	"beacon/internal/ports"
	"beacon/internal/retry"
	"beacon/internal/services/aliases"
	"beacon/internal/services/competitors"
	"beacon/internal/services/detection"
	"beacon/internal/services/profiler"
	"beacon/internal/services/queries"
	"beacon/internal/services/scoring"
)

// EventScanCompleted is published after a successful run.
const EventScanCompleted = "scan.completed"

var errEmptyAnswer = errors.New("empty answer")

// ProgressFunc receives progress checkpoints in [0,1]. It is fire-and-forget:
// returned errors and panics are swallowed and never affect the run. Calls are
// serialized.
type ProgressFunc func(ctx context.Context, phase Phase, progress float64) error

// Dependencies are the injected collaborators. Scans, Competitors, Events and
// Observer may be nil.
type Dependencies struct {
	LLM         ports.LLM
	Providers   ports.ProviderRunner
	Fetcher     ports.PageFetcher
	Scans       ports.ScanStore
	Competitors ports.CompetitorStore
	Events      ports.EventPublisher
	Observer    Observer
	Logger      *slog.Logger
}

type Config struct {
	Detection            detection.Config
	Scoring              scoring.Config
	Retry                retry.Policy
	SemanticConfirmation bool
	EnrichAliases        bool
}

type Orchestrator struct {
	deps Dependencies
	cfg  Config
	log  *slog.Logger

	profiler  *profiler.Profiler
	generator *queries.Generator
	validator *queries.Validator
	aliases   *aliases.Builder
	scorer    *scoring.Engine
	tracker   *competitors.Tracker
}

func New(deps Dependencies, cfg Config) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultPolicy
	}
	o := &Orchestrator{
		deps:      deps,
		cfg:       cfg,
		log:       deps.Logger,
		profiler:  profiler.New(deps.LLM, deps.Fetcher, deps.Logger),
		generator: queries.NewGenerator(deps.LLM, deps.Logger),
		validator: queries.NewValidator(deps.LLM, deps.Logger),
		aliases:   aliases.NewBuilder(deps.LLM, cfg.EnrichAliases, deps.Logger),
		scorer:    scoring.New(cfg.Scoring),
	}
	if deps.Competitors != nil {
		o.tracker = competitors.NewTracker(deps.Competitors, deps.Logger)
	}
	return o
}

// Run executes one scan. There is no internal timeout; callers bound the run
// through ctx.
func (o *Orchestrator) Run(ctx context.Context, req domain.ScanRequest, progress ProgressFunc) (*domain.ScanResult, error) {
	start := time.Now()
	log := o.log.With("scan_id", req.ScanID)
	p := &reporter{fn: progress, log: log}

	p.report(ctx, PhaseProfile, 0.05)
	prof, err := o.profiler.Profile(ctx, req.URL, req.Form)
	if err != nil {
		return nil, o.failed(ctx, log, PhaseProfile, err, start)
	}

	p.report(ctx, PhaseQueries, 0.15)
	generated := o.generator.Generate(ctx, prof, req.Plan)
	validated := o.validator.Validate(ctx, generated, prof)
	log.InfoContext(ctx, "queries ready", "generated", len(generated), "validated", len(validated))
	if len(validated) == 0 {
		return nil, o.failed(ctx, log, PhaseQueries, ErrNoQueries, start)
	}

	p.report(ctx, PhasePersistQueries, 0.25)
	if o.deps.Scans != nil {
		set := domain.QuerySet{ScanID: req.ScanID, Queries: validated, GeneratedCount: len(generated), ValidatedCount: len(validated)}
		if err := o.deps.Scans.SaveQuerySet(ctx, set); err != nil {
			o.failed(ctx, log, PhasePersistQueries, err, start)
		}
	}

	p.report(ctx, PhaseAliases, 0.30)
	registry, err := o.aliases.Build(ctx, prof)
	if err != nil {
		return nil, o.failed(ctx, log, PhaseAliases, err, start)
	}
	engine := detection.New(o.cfg.Detection, registry)

	p.report(ctx, PhaseExecute, 0.35)
	analyses, err := o.execute(ctx, log, engine, prof, validated, req.Plan, p)
	if err != nil {
		return nil, o.failed(ctx, log, PhaseExecute, err, start)
	}
	if len(analyses) == 0 {
		return nil, o.failed(ctx, log, PhaseExecute, ErrNoResponses, start)
	}

	p.report(ctx, PhaseScore, 0.85)
	breakdown := o.scorer.Score(analyses, len(validated))

	p.report(ctx, PhaseCompetitors, 0.90)
	var records []domain.CompetitorRecord
	if o.tracker != nil {
		records, err = o.tracker.Track(ctx, prof.Domain, analyses)
		if err != nil {
			o.failed(ctx, log, PhaseCompetitors, err, start)
			records = nil
		}
	}

	result := &domain.ScanResult{
		ScanID:      req.ScanID,
		Profile:     prof,
		Queries:     validated,
		Analyses:    analyses,
		Breakdown:   breakdown,
		Competitors: records,
		Form:        req.Form,
		Duration:    time.Since(start),
	}

	p.report(ctx, PhasePersistScan, 0.95)
	if err := o.persist(ctx, log, result, start); err != nil {
		return nil, o.abort(ctx, log, PhasePersistScan, err, start)
	}

	p.report(ctx, PhaseDone, 1.0)
	o.deps.Observer.ScanFinished("completed", breakdown.FinalScore, result.Duration)
	log.InfoContext(ctx, "scan completed", "domain", prof.Domain, "score", breakdown.FinalScore,
		"analyses", len(analyses), "elapsed", result.Duration)
	return result, nil
}

// persist saves the result and publishes the completion event. Store and
// broker failures are logged; only a finished ctx is returned.
func (o *Orchestrator) persist(ctx context.Context, log *slog.Logger, result *domain.ScanResult, start time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.deps.Scans != nil {
		if err := o.deps.Scans.SaveScanResult(ctx, *result); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.failed(ctx, log, PhasePersistScan, err, start)
		}
	}
	if o.deps.Events == nil {
		return nil
	}
	payload, err := json.Marshal(completedEvent(result))
	if err == nil {
		err = o.deps.Events.Publish(ctx, EventScanCompleted, payload, result.Profile.Domain)
	}
	if err != nil {
		o.failed(ctx, log, PhasePersistScan, err, start)
	}
	return nil
}

// execute fans every (query, provider) pair out through one limiter sized by
// the plan. A failed pair contributes nothing. If ctx ends before every pair
// has run, the partial analyses are dropped and ctx's error is returned.
func (o *Orchestrator) execute(ctx context.Context, log *slog.Logger, engine *detection.Engine, prof domain.Profile,
	qs []domain.ValidatedQuery, plan domain.Plan, p *reporter) ([]domain.ResponseAnalysis, error) {
	sem := semaphore.NewWeighted(int64(max(1, plan.Concurrency)))
	total := len(qs) * len(plan.Providers)

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		done     atomic.Int64
		analyses = make([]domain.ResponseAnalysis, 0, total)
	)

schedule:
	for _, q := range qs {
		for _, provider := range plan.Providers {
			if err := sem.Acquire(ctx, 1); err != nil {
				log.WarnContext(ctx, "execution interrupted", "error", err)
				break schedule
			}
			wg.Add(1)
			go func(q domain.ValidatedQuery, provider string) {
				defer wg.Done()
				defer sem.Release(1)

				a, err := o.runOne(ctx, engine, prof, q, provider)
				o.deps.Observer.ProviderCall(provider, err)
				if err != nil {
					log.WarnContext(ctx, "provider call failed", "provider", provider, "query", q.Text, "error", err)
				} else {
					mu.Lock()
					analyses = append(analyses, a)
					mu.Unlock()
				}
				n := done.Add(1)
				p.report(ctx, PhaseExecute, 0.35+0.5*float64(n)/float64(total))
			}(q, provider)
		}
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return analyses, nil
}

func (o *Orchestrator) runOne(ctx context.Context, engine *detection.Engine, prof domain.Profile, q domain.ValidatedQuery, provider string) (domain.ResponseAnalysis, error) {
	var answer string
	err := o.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		answer, err = o.deps.Providers.Run(ctx, provider, q.Text)
		if err == nil && strings.TrimSpace(answer) == "" {
			return errEmptyAnswer
		}
		return err
	})
	if err != nil {
		return domain.ResponseAnalysis{}, err
	}
	return o.analyze(ctx, engine, prof, q, provider, answer), nil
}

// analyze runs detection for the brand and every competitor in one answer.
func (o *Orchestrator) analyze(ctx context.Context, engine *detection.Engine, prof domain.Profile, q domain.ValidatedQuery, provider, answer string) domain.ResponseAnalysis {
	brand := engine.Detect(answer, prof.BrandName)
	comps := engine.DetectAll(answer, prof.Competitors)
	if o.cfg.SemanticConfirmation && o.deps.LLM != nil {
		brand = engine.Confirm(ctx, o.deps.LLM, brand)
		for i := range comps {
			comps[i] = engine.Confirm(ctx, o.deps.LLM, comps[i])
		}
	}

	a := domain.ResponseAnalysis{
		Query:       q,
		Provider:    provider,
		Response:    answer,
		Brand:       brand,
		Competitors: comps,
		Citations:   detection.Citations(answer),
		AnalyzedAt:  time.Now().UTC(),
	}
	a.BrandCited = detection.CitesDomain(a.Citations, prof.Domain)
	if brand.Detected {
		a.Sentiment = detection.SnippetSentiment(brand.Snippet)
	}
	return a
}

// failed applies phase's failure policy. A fatal phase ends the run and the
// returned *PhaseError must be handed back to the caller; any other phase is
// logged and failed returns nil.
func (o *Orchestrator) failed(ctx context.Context, log *slog.Logger, phase Phase, err error, start time.Time) error {
	if !phase.Fatal() {
		log.WarnContext(ctx, "non-fatal phase failed", "phase", phase, "error", err)
		o.deps.Observer.PhaseFailed(string(phase), false)
		return nil
	}
	return o.abort(ctx, log, phase, err, start)
}

// abort ends the run in phase regardless of its failure policy.
func (o *Orchestrator) abort(ctx context.Context, log *slog.Logger, phase Phase, err error, start time.Time) error {
	log.ErrorContext(ctx, "scan failed", "phase", phase, "error", err)
	o.deps.Observer.PhaseFailed(string(phase), true)
	o.deps.Observer.ScanFinished("failed", 0, time.Since(start))
	return &PhaseError{Phase: phase, Err: err}
}

// reporter serializes progress callbacks and isolates the pipeline from them.
type reporter struct {
	mu  sync.Mutex
	fn  ProgressFunc
	log *slog.Logger
}

func (r *reporter) report(ctx context.Context, phase Phase, progress float64) {
	if r.fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	defer func() {
		if rec := recover(); rec != nil {
			r.log.DebugContext(ctx, "progress callback panicked", "phase", phase, "panic", rec)
		}
	}()
	if err := r.fn(ctx, phase, progress); err != nil {
		r.log.DebugContext(ctx, "progress callback failed", "phase", phase, "error", err)
	}
}

type scanCompleted struct {
	ScanID      string                          `json:"scan_id"`
	Domain      string                          `json:"domain"`
	Brand       string                          `json:"brand"`
	Score       int                             `json:"score"`
	Providers   map[string]domain.ProviderScore `json:"providers"`
	Competitors []string                        `json:"competitors"`
	QueryCount  int                             `json:"query_count"`
	CompletedAt time.Time                       `json:"completed_at"`
}

func completedEvent(r *domain.ScanResult) scanCompleted {
	ev := scanCompleted{
		ScanID:      r.ScanID,
		Domain:      r.Profile.Domain,
		Brand:       r.Profile.BrandName,
		Score:       r.Breakdown.FinalScore,
		Providers:   r.Breakdown.Providers,
		QueryCount:  len(r.Queries),
		CompletedAt: time.Now().UTC(),
	}
	for _, c := range r.Competitors {
		ev.Competitors = append(ev.Competitors, c.Name)
	}
	return ev
}
