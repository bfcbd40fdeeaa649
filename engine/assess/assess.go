// Package assess is the single entry point of the analysis pipeline:
// validate, retrieve, build the judgment request, call the judgment
// engine, parse, review, and render.
package assess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ListingLensAI/listinglens-mvp/engine/catalog"
	"github.com/ListingLensAI/listinglens-mvp/engine/judge"
	"github.com/ListingLensAI/listinglens-mvp/engine/retrieve"
	"github.com/ListingLensAI/listinglens-mvp/engine/semantic"
	"github.com/ListingLensAI/listinglens-mvp/engine/verdict"
	"github.com/ListingLensAI/listinglens-mvp/pkg/metrics"
	"github.com/ListingLensAI/listinglens-mvp/pkg/resilience"
)

// Disclaimer accompanies every successful analysis.
const Disclaimer = "This is a research aid for attorneys. It does not constitute legal advice."

// ErrNoMatches means retrieval found nothing relevant. Surfaced as-is;
// an empty verdict is never fabricated in its place.
var ErrNoMatches = errors.New("assess: no matching catalog entries found for the provided findings")

// JudgmentError wraps a judgment engine transport or quota failure so
// callers can distinguish it from pipeline errors.
type JudgmentError struct {
	Wrapped error
}

func (e *JudgmentError) Error() string {
	return fmt.Sprintf("assess: judgment engine: %v", e.Wrapped)
}

func (e *JudgmentError) Unwrap() error { return e.Wrapped }

// Retriever is the retrieval surface the pipeline needs. The returned
// snapshot is the one the results were ranked against; the pipeline
// resolves every entry ID through it so a concurrent reindex cannot
// mix generations within one analysis.
type Retriever interface {
	Retrieve(ctx context.Context, findings string, k int) ([]semantic.SearchResult, *retrieve.Snapshot, error)
}

// Generator is the opaque judgment engine.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// RelatedFinder resolves cross-referenced entries for extra context.
type RelatedFinder interface {
	Related(ctx context.Context, id string, limit int) ([]catalog.Ref, error)
}

// Source is one citation row for the rendered report.
type Source struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// Report is the request-scoped analysis result.
type Report struct {
	Verdict        *verdict.Verdict
	Outcomes       []verdict.EntryOutcome
	HTML           string
	Sources        []Source
	RetrievedCount int
	Disclaimer     string
}

// Opts configures a Service.
type Opts struct {
	// TopK is the retrieval depth. Zero means 5.
	TopK int
	// JudgmentTimeout bounds each judgment engine call. Zero means 3m.
	JudgmentTimeout time.Duration
	// RelatedLimit caps cross-referenced entries added per analysis.
	RelatedLimit int
	Logger       *slog.Logger
	Registry     *metrics.Registry
}

// Service runs the analysis pipeline against shared read-only state.
type Service struct {
	retriever Retriever
	generator Generator
	related   RelatedFinder
	breaker   *resilience.Breaker
	limiter   *resilience.Limiter
	topK      int
	timeout   time.Duration
	relLimit  int
	log       *slog.Logger
	reg       *metrics.Registry
}

// New wires a Service. related may be nil to disable cross-reference
// enrichment.
func New(r Retriever, g Generator, related RelatedFinder, breaker *resilience.Breaker, limiter *resilience.Limiter, opts Opts) *Service {
	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}
	timeout := opts.JudgmentTimeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	relLimit := opts.RelatedLimit
	if relLimit <= 0 {
		relLimit = 3
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = metrics.New()
	}
	return &Service{
		retriever: r,
		generator: g,
		related:   related,
		breaker:   breaker,
		limiter:   limiter,
		topK:      topK,
		timeout:   timeout,
		relLimit:  relLimit,
		log:       log,
		reg:       reg,
	}
}

// Analyze maps free-text findings onto the catalog and returns the
// parsed, reviewed, and rendered verdict. Per-query failures are
// isolated to this call; shared state is never mutated.
func (s *Service) Analyze(ctx context.Context, findings string) (*Report, error) {
	start := time.Now()
	findings = strings.TrimSpace(findings)
	if len(findings) < judge.MinFindingsLength {
		s.count("analyses_total", "status", "no_evidence")
		return nil, &judge.NoEvidenceError{Length: len(findings)}
	}

	results, snap, err := s.retriever.Retrieve(ctx, findings, s.topK)
	if err != nil {
		s.count("analyses_total", "status", "retrieval_error")
		return nil, err
	}
	if len(results) == 0 {
		s.count("analyses_total", "status", "no_matches")
		return nil, ErrNoMatches
	}
	s.reg.Histogram("retrieval_results", "Retrieved documents per analysis.", []float64{1, 2, 4, 8, 16}).
		Observe(float64(len(results)))

	results = s.enrich(ctx, snap, results)

	req, err := judge.Build(findings, results, snap.Catalog)
	if err != nil {
		s.count("analyses_total", "status", "build_error")
		return nil, err
	}

	raw, err := s.generate(ctx, req)
	if err != nil {
		s.count("analyses_total", "status", "judgment_error")
		return nil, &JudgmentError{Wrapped: err}
	}

	v := verdict.Parse(raw)
	s.ground(v, req)
	v.Warnings = append(v.Warnings, verdict.Review(raw, findings)...)

	if v.Degraded {
		s.count("degraded_parses_total")
		s.log.Warn("assess.degraded_parse", "reason", v.DegradedReason)
	}
	s.count("analyses_total", "status", "ok")
	s.reg.Histogram("analyze_seconds", "End-to-end analysis latency.", nil).Since(start)

	outcomes := make([]verdict.EntryOutcome, 0, len(req.Entries))
	for _, e := range req.Entries {
		outcomes = append(outcomes, verdict.Evaluate(e, v.Statuses))
	}

	report := &Report{
		Verdict:        v,
		Outcomes:       outcomes,
		HTML:           verdict.Render(v),
		Sources:        sourcesFrom(req),
		RetrievedCount: len(results),
		Disclaimer:     Disclaimer,
	}
	s.log.Info("assess.done",
		"retrieved", len(results),
		"matched", len(v.MatchedEntries),
		"statuses", len(v.Statuses),
		"degraded", v.Degraded,
		"duration", time.Since(start),
	)
	return report, nil
}

// generate calls the judgment engine through the rate limiter and
// circuit breaker with a per-request timeout. Failures are terminal for
// the request; a non-deterministic generation is never retried.
func (s *Service) generate(ctx context.Context, req *judge.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var raw string
	call := func(ctx context.Context) error {
		var err error
		raw, err = s.generator.Generate(ctx, req.System, req.User)
		return err
	}
	if s.limiter != nil {
		inner := call
		call = func(ctx context.Context) error {
			return s.limiter.Call(ctx, inner)
		}
	}
	if s.breaker != nil {
		if err := s.breaker.Call(ctx, call); err != nil {
			return "", err
		}
		return raw, nil
	}
	if err := call(ctx); err != nil {
		return "", err
	}
	return raw, nil
}

// enrich appends entries cross-referenced by the retrieved ones,
// best-effort: graph failures are logged and skipped.
func (s *Service) enrich(ctx context.Context, snap *retrieve.Snapshot, results []semantic.SearchResult) []semantic.SearchResult {
	if s.related == nil {
		return results
	}
	have := make(map[string]bool, len(results))
	for _, r := range results {
		have[r.EntryID] = true
	}

	added := 0
	for _, r := range results {
		if r.DocType != semantic.DocTypeEntry || added >= s.relLimit {
			continue
		}
		refs, err := s.related.Related(ctx, r.EntryID, s.relLimit)
		if err != nil {
			s.log.Warn("assess.crossref_skipped", "entry", r.EntryID, "error", err)
			continue
		}
		for _, ref := range refs {
			if have[ref.ID] || added >= s.relLimit {
				continue
			}
			if _, err := snap.Catalog.Lookup(ref.ID); err != nil {
				continue
			}
			results = append(results, semantic.SearchResult{
				EntryID:  ref.ID,
				DocType:  semantic.DocTypeEntry,
				Title:    ref.Title,
				Category: ref.Category,
			})
			have[ref.ID] = true
			added++
		}
	}
	return results
}

// ground drops parsed criterion statuses that reference labels absent
// from the rule text the engine was shown.
func (s *Service) ground(v *verdict.Verdict, req *judge.Request) {
	kept := v.Statuses[:0]
	for _, cs := range v.Statuses {
		if cs.EntryID != "" && cs.Label != "" && !req.Covers(cs.EntryID, cs.Label) {
			v.Warnings = append(v.Warnings, fmt.Sprintf(
				"Ungrounded reference removed: criterion %s of listing %s is not present in the supplied rule text.",
				cs.Label, cs.EntryID))
			continue
		}
		kept = append(kept, cs)
	}
	v.Statuses = kept
}

func sourcesFrom(req *judge.Request) []Source {
	sources := make([]Source, 0, len(req.Entries))
	for _, e := range req.Entries {
		sources = append(sources, Source{ID: e.ID, Title: e.Title, URL: e.SourceURL})
	}
	return sources
}

func (s *Service) count(name string, labels ...string) {
	s.reg.Counter(metrics.WithLabels(name, labels...), "").Inc()
}
