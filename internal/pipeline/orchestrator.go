// Package pipeline runs a complete check: it loads a document, extracts its
// claims once, verifies every claim under a bounded admission gate and
// assembles the scored report.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/claimcheck/internal/extract"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/metrics"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/score"
	"github.com/ppiankov/claimcheck/internal/usage"
	"github.com/ppiankov/claimcheck/internal/verify"
	"github.com/ppiankov/claimcheck/internal/worker"
)

// DefaultConcurrency is the number of verification loops allowed to run at once
const DefaultConcurrency = 4

// ClaimExtractor turns text into claims
type ClaimExtractor interface {
	Extract(ctx context.Context, text string) (*extract.Result, error)
}

// ClaimVerifier runs one verification loop. It must always return a verdict.
type ClaimVerifier interface {
	Verify(ctx context.Context, claim model.Claim) (model.Verdict, *usage.Ledger)
}

// Orchestrator coordinates extraction and verification for one document at a time.
//
// Thread Safety: Safe for concurrent use; every check owns its accumulator.
type Orchestrator struct {
	extractor   ClaimExtractor
	verifier    ClaimVerifier
	loader      *Loader
	scorer      *score.Scorer
	analyzer    *verify.Analyzer
	concurrency int
	pricing     usage.Pricing
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLoader sets the document loader used by CheckInput and CheckSource
func WithLoader(l *Loader) Option {
	return func(o *Orchestrator) { o.loader = l }
}

// WithScorer sets the report scorer
func WithScorer(s *score.Scorer) Option {
	return func(o *Orchestrator) { o.scorer = s }
}

// WithConcurrency caps simultaneously active verification loops
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) { o.concurrency = n }
}

// WithPricing sets the table used for cost estimates
func WithPricing(p usage.Pricing) Option {
	return func(o *Orchestrator) { o.pricing = p }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithClock sets the clock used for report timestamps
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator
func New(extractor ClaimExtractor, verifier ClaimVerifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		extractor:   extractor,
		verifier:    verifier,
		concurrency: DefaultConcurrency,
		pricing:     usage.DefaultPricing(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.concurrency <= 0 {
		o.concurrency = DefaultConcurrency
	}
	if o.loader == nil {
		o.loader = NewLoader(WithLoaderLogger(o.logger))
	}
	if o.scorer == nil {
		o.scorer = score.NewScorer(nil)
	}
	o.analyzer = verify.NewAnalyzer(o.now)
	o.logger = logging.OrDefault(o.logger)
	return o
}

// CheckSource implements worker.Checker for batch runs
func (o *Orchestrator) CheckSource(ctx context.Context, source string) (*model.Report, error) {
	return o.CheckInput(ctx, SourceInput(source))
}

// CheckInput loads the input and checks the resulting document
func (o *Orchestrator) CheckInput(ctx context.Context, in Input) (*model.Report, error) {
	doc, err := o.loader.Load(ctx, in)
	if err != nil {
		return nil, err
	}
	return o.Check(ctx, doc)
}

// Check extracts claims from doc and verifies each of them. The only error
// is a failed extraction: verification failures surface as degraded verdicts.
func (o *Orchestrator) Check(ctx context.Context, doc *Document) (*model.Report, error) {
	acc := usage.NewAccumulatorWithPricing(o.pricing)
	acc.Merge(doc.Usage)

	start := time.Now()
	res, err := o.extractor.Extract(ctx, doc.Text)
	if res != nil {
		acc.Merge(res.Ledger)
	}
	if err != nil {
		return nil, fmt.Errorf("extract claims: %w", err)
	}
	o.logger.Info("claims extracted", "source", doc.Source, "sentences", len(res.Sentences), "claims", len(res.Claims), "duration", time.Since(start))

	results := o.VerifyClaims(ctx, res.Claims, acc)
	return o.report(doc, res.Claims, results, acc), nil
}

// Extract runs extraction only
func (o *Orchestrator) Extract(ctx context.Context, in Input) (*Document, *extract.Result, error) {
	doc, err := o.loader.Load(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	res, err := o.extractor.Extract(ctx, doc.Text)
	if err != nil {
		return doc, res, fmt.Errorf("extract claims: %w", err)
	}
	return doc, res, nil
}

// VerifyText verifies a single claim given as text, skipping extraction
func (o *Orchestrator) VerifyText(ctx context.Context, text string) *model.Report {
	claim := model.Claim{
		ID:         extract.ClaimID(0, text),
		Text:       text,
		Sentence:   model.Sentence{Text: text, End: len(text)},
		Confidence: 1,
	}
	acc := usage.NewAccumulatorWithPricing(o.pricing)
	claims := []model.Claim{claim}
	results := o.VerifyClaims(ctx, claims, acc)
	return o.report(&Document{Source: "inline"}, claims, results, acc)
}

type verifyResult struct {
	claimID string
	verdict model.Verdict
}

func (r *verifyResult) GetError() error { return nil }

// VerifyClaims runs one verification loop per claim, at most concurrency at
// a time, and returns results in claim order. Usage of every loop is merged
// into acc. Claims whose loop never started because ctx ended receive a
// degraded NOT_ENOUGH_INFO verdict.
func (o *Orchestrator) VerifyClaims(ctx context.Context, claims []model.Claim, acc *usage.Accumulator) []model.ClaimResult {
	pool := worker.NewPool(ctx, o.concurrency)
	pool.Start()

	for _, c := range claims {
		claim := c
		job := worker.JobFunc(func(ctx context.Context) worker.Result {
			metrics.ActiveLoops.Inc()
			defer metrics.ActiveLoops.Dec()

			verdict, ledger := o.verifier.Verify(ctx, claim)
			acc.Merge(ledger)
			return &verifyResult{claimID: claim.ID, verdict: verdict}
		})
		if !pool.Submit(job) {
			break
		}
	}

	verdicts := make(map[string]model.Verdict, len(claims))
	for _, r := range pool.Wait() {
		vr := r.(*verifyResult)
		verdicts[vr.claimID] = vr.verdict
	}

	stats := pool.Stats()
	o.logger.Debug("verification finished", "claims", len(claims), "completed", stats.Completed, "peak_active", stats.Peak)

	out := make([]model.ClaimResult, len(claims))
	for i, c := range claims {
		v, ok := verdicts[c.ID]
		if !ok {
			v = o.notStarted(ctx, c)
		}
		v.ClaimID = c.ID
		out[i] = model.ClaimResult{Claim: c, Verdict: v}
	}
	return out
}

func (o *Orchestrator) notStarted(ctx context.Context, c model.Claim) model.Verdict {
	cause := context.Cause(ctx)
	if cause == nil {
		cause = context.Canceled
	}
	reasoning := fmt.Sprintf("Verification could not be completed: the check ended before this claim ran (%v).", cause)
	info := o.analyzer.Analyze(c.Text, 0, 0, reasoning)
	info.Suggestions = append(info.Suggestions, "Retry the claim later or with fewer claims at once")
	return model.Verdict{
		ClaimID:      c.ID,
		Kind:         model.VerdictNotEnoughInfo,
		Reasoning:    reasoning,
		Failure:      cause.Error(),
		Insufficient: info,
	}
}

func (o *Orchestrator) report(doc *Document, claims []model.Claim, results []model.ClaimResult, acc *usage.Accumulator) *model.Report {
	if claims == nil {
		claims = []model.Claim{}
	}
	r := &model.Report{
		ID:        uuid.NewString(),
		CreatedAt: o.now().UTC(),
		Source:    doc.Source,
		Language:  doc.Language,
		Claims:    claims,
		Results:   results,
		Usage:     acc.Summary(),
		Summary:   model.Summarize(results),
		Score:     o.scorer.Calculate(results),
	}
	o.logger.Info("check complete",
		"source", r.Source,
		"claims", r.Summary.Total,
		"supported", r.Summary.Supported,
		"refuted", r.Summary.Refuted,
		"not_enough_info", r.Summary.NotEnoughInfo,
		"conflicting", r.Summary.Conflicting,
		"degraded", r.Summary.Degraded,
		"cost_usd", r.Usage.EstimatedCostUSD,
	)
	return r
}
