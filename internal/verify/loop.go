// Package verify runs the per-claim verification loop: an explicit state
// machine that alternates query generation and evidence retrieval until a
// pure stopping policy hands over to a final evaluation.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/metrics"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/resilience"
	"github.com/ppiankov/claimcheck/internal/search"
	"github.com/ppiankov/claimcheck/internal/usage"
	"github.com/ppiankov/claimcheck/internal/validate"
)

// Stage names used for inference, usage records and metrics
const (
	StageQuery       = "query"
	StageSearch      = "search"
	StageSufficiency = "sufficiency"
	StageEvaluate    = "evaluate"
)

const summaryChars = 200

// Options configures a Loop
type Options struct {
	Policy
	MaxResults          int
	EvidenceTokenBudget int
}

// OptionsFromConfig converts the verification config section
func OptionsFromConfig(cfg model.VerificationConfig) Options {
	return Options{
		Policy: Policy{
			MaxIterations:            cfg.MaxIterations,
			MinEvidence:              cfg.MinEvidence,
			AuthoritativeMinEvidence: cfg.AuthoritativeMinEvidence,
		},
		MaxResults:          cfg.MaxResults,
		EvidenceTokenBudget: cfg.EvidenceTokenBudget,
	}
}

// Loop verifies single claims. One Loop serves any number of concurrent
// Verify calls; all per-claim state lives in the call.
type Loop struct {
	llm       llm.Inferencer
	searcher  search.Searcher
	exec      *resilience.Executor
	authority *validate.AuthorityClassifier
	analyzer  *Analyzer
	opts      Options
	now       func() time.Time
	logger    *slog.Logger
}

// NewLoop creates a verification loop. exec guards search calls and should
// share its breaker with the inference client.
func NewLoop(inf llm.Inferencer, searcher search.Searcher, exec *resilience.Executor, authority *validate.AuthorityClassifier, opts Options, logger *slog.Logger) *Loop {
	defaults := DefaultPolicy()
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaults.MaxIterations
	}
	if opts.MinEvidence < 0 {
		opts.MinEvidence = defaults.MinEvidence
	}
	if opts.AuthoritativeMinEvidence <= 0 {
		opts.AuthoritativeMinEvidence = defaults.AuthoritativeMinEvidence
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	if opts.EvidenceTokenBudget <= 0 {
		opts.EvidenceTokenBudget = DefaultEvidenceTokenBudget
	}
	if exec == nil {
		exec = resilience.NewExecutor(nil, resilience.DefaultPolicy(), logger)
	}
	if authority == nil {
		authority = validate.NewAuthorityClassifier(nil)
	}
	return &Loop{
		llm:       inf,
		searcher:  searcher,
		exec:      exec,
		authority: authority,
		analyzer:  NewAnalyzer(nil),
		opts:      opts,
		now:       time.Now,
		logger:    logging.OrDefault(logger),
	}
}

// WithClock sets the clock used for prompt dates and recency analysis
func (l *Loop) WithClock(now func() time.Time) *Loop {
	l.now = now
	l.analyzer = NewAnalyzer(now)
	return l
}

// Verify runs the state machine to DONE. It always returns a verdict: failed
// external calls end the loop with NOT_ENOUGH_INFO and the reason in Failure.
// The ledger holds the usage of every call the loop made.
func (l *Loop) Verify(ctx context.Context, claim model.Claim) (model.Verdict, *usage.Ledger) {
	s := NewLoopState(claim)
	ledger := &usage.Ledger{}
	logger := l.logger.With("claim", claim.ID)

	var (
		query   string
		verdict model.Verdict
	)
	state := StateGenerateQuery
	for state != StateDone {
		logger.Debug("loop state", "state", state.String(), "iteration", s.Iteration, "evidence", len(s.Evidence))

		switch state {
		case StateGenerateQuery:
			q, err := l.generateQuery(ctx, s, ledger)
			if err != nil {
				verdict, state = l.degrade(s, StageQuery, err), StateDone
				continue
			}
			query = q
			s.Queries = append(s.Queries, q)
			state = StateRetrieve

		case StateRetrieve:
			items, err := l.retrieve(ctx, query, ledger)
			s.Iteration++
			if err != nil {
				verdict, state = l.degrade(s, StageSearch, err), StateDone
				continue
			}
			added := s.AddEvidence(l.authority.Annotate(items), query)
			logger.Debug("evidence retrieved", "query", query, "results", len(items), "new", added)
			state = StateDecide

		case StateDecide:
			d := Decide(s, l.opts.Policy)
			switch d.Action {
			case ActionSearch:
				state = StateGenerateQuery
			case ActionEvaluate:
				logger.Debug("stop searching", "reason", d.Reason)
				state = StateEvaluate
			case ActionAskModel:
				enough, err := l.sufficient(ctx, s, ledger)
				if err != nil {
					verdict, state = l.degrade(s, StageSufficiency, err), StateDone
					continue
				}
				state = StateGenerateQuery
				if enough {
					state = StateEvaluate
				}
			}

		case StateEvaluate:
			v, err := l.evaluate(ctx, s, ledger)
			if err != nil {
				v = l.degrade(s, StageEvaluate, err)
			}
			verdict, state = v, StateDone
		}
	}

	verdict.ClaimID = claim.ID
	verdict.Queries = append([]string(nil), s.Queries...)
	verdict.Iterations = s.Iteration
	if verdict.Kind == model.VerdictNotEnoughInfo {
		verdict.Insufficient = l.analyzer.Analyze(claim.Text, len(s.Evidence), len(s.Queries), verdict.Reasoning)
		if verdict.Degraded() {
			verdict.Insufficient.Suggestions = append(verdict.Insufficient.Suggestions,
				"Retry the claim later or with fewer claims at once")
		}
	}

	metrics.Verdicts.WithLabelValues(string(verdict.Kind)).Inc()
	metrics.LoopIterations.Observe(float64(s.Iteration))
	logger.Info("claim verified", "verdict", verdict.Kind, "iterations", s.Iteration, "evidence", len(s.Evidence), "degraded", verdict.Degraded())
	return verdict, ledger
}

func (l *Loop) today() string {
	return l.now().Format("2006-01-02")
}

func (l *Loop) generateQuery(ctx context.Context, s *LoopState, ledger *usage.Ledger) (string, error) {
	in := queryInput{Claim: s.Claim.Text}
	if s.Iteration > 0 {
		in.Queries = s.Queries
		in.Missing = s.MissingAspects
		for _, e := range s.Evidence {
			if e.Title != "" {
				in.Titles = append(in.Titles, e.Title)
			}
		}
	}

	var resp queryResponse
	rec, err := l.llm.Infer(ctx, StageQuery, llm.Prompt{
		System: render(querySystemTmpl, systemInput{Today: l.today()}),
		User:   render(queryUserTmpl, in),
	}, &resp)
	ledger.Add(rec)
	if err != nil {
		return "", err
	}
	return resp.Query, nil
}

// retrieve runs one search through the executor. Every attempt that reaches
// the search backend is a charged call; cache hits are free.
func (l *Loop) retrieve(ctx context.Context, query string, ledger *usage.Ledger) ([]model.Evidence, error) {
	var items []model.Evidence
	err := l.exec.Do(ctx, StageSearch, func(ctx context.Context) error {
		var hit bool
		var err error
		items, err = l.searcher.Search(search.WithCacheReport(ctx, &hit), query, l.opts.MaxResults)
		if !hit {
			ledger.Add(usage.Search(StageSearch))
		}
		return err
	})
	return items, err
}

func (l *Loop) sufficient(ctx context.Context, s *LoopState, ledger *usage.Ledger) (bool, error) {
	in := sufficiencyInput{Claim: s.Claim.Text}
	for _, e := range s.Evidence {
		in.Evidence = append(in.Evidence, summaryItem{Title: e.Title, Summary: summarize(e.Text(), summaryChars)})
	}

	var resp sufficiencyResponse
	rec, err := l.llm.Infer(ctx, StageSufficiency, llm.Prompt{
		System: render(sufficiencySystemTmpl, systemInput{Today: l.today()}),
		User:   render(sufficiencyUserTmpl, in),
	}, &resp)
	ledger.Add(rec)
	if err != nil {
		return false, err
	}
	s.MissingAspects = resp.MissingAspects
	return *resp.Sufficient, nil
}

func (l *Loop) evaluate(ctx context.Context, s *LoopState, ledger *usage.Ledger) (model.Verdict, error) {
	if len(s.Evidence) == 0 {
		return model.Verdict{
			Kind:      model.VerdictNotEnoughInfo,
			Reasoning: fmt.Sprintf("No evidence was found after %d search iteration(s).", s.Iteration),
		}, nil
	}

	presented := SelectEvidence(s.Evidence, l.opts.EvidenceTokenBudget)
	in := evaluateInput{Claim: s.Claim.Text}
	for _, e := range presented {
		in.Evidence = append(in.Evidence, evidenceItem{
			URL:       e.URL,
			Title:     e.Title,
			Authority: e.Authority.String(),
			Text:      e.Text(),
		})
	}

	var resp evaluationResponse
	rec, err := l.llm.Infer(ctx, StageEvaluate, llm.Prompt{
		System: render(evaluateSystemTmpl, systemInput{Today: l.today()}),
		User:   render(evaluateUserTmpl, in),
	}, &resp)
	ledger.Add(rec)
	if err != nil {
		return model.Verdict{}, err
	}
	if len(presented) < len(s.Evidence) {
		l.logger.Debug("evidence truncated for evaluation", "claim", s.Claim.ID, "kept", len(presented), "total", len(s.Evidence))
	}
	return resp.verdict(s.Claim.ID, presented), nil
}

func (l *Loop) degrade(s *LoopState, stage string, err error) model.Verdict {
	l.logger.Warn("verification degraded", "claim", s.Claim.ID, "stage", stage, "error", err)
	return model.Verdict{
		Kind:         model.VerdictNotEnoughInfo,
		Reasoning:    fmt.Sprintf("Verification could not be completed: %s failed (%v).", stage, err),
		EvidenceURLs: s.URLs(),
		Failure:      err.Error(),
	}
}

func summarize(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
