// Package extract turns free text into atomic, checkable claims through a
// fixed sequence of typed stages: segmentation, selection, disambiguation,
// decomposition and validation. Disambiguation and validation gate their
// output by consensus over repeated independent inference calls.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/usage"
)

// StageError reports the extraction stage whose inference failed after retries
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("extraction failed at %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Options configures an Extractor
type Options struct {
	Consensus     Consensus
	ContextBefore int
	ContextAfter  int
	Concurrency   int
}

// OptionsFromConfig converts the extraction config section
func OptionsFromConfig(cfg model.ExtractionConfig) Options {
	return Options{
		Consensus: Consensus{
			Votes:     cfg.Votes,
			Agreement: cfg.Agreement,
			NearMatch: cfg.NearMatch,
		},
		ContextBefore: cfg.ContextBefore,
		ContextAfter:  cfg.ContextAfter,
		Concurrency:   cfg.Concurrency,
	}
}

// Result holds every intermediate collection of one extraction run
type Result struct {
	Sentences  []model.Sentence
	Candidates []model.Candidate
	Statements []model.Statement
	Proposals  []Proposal
	Claims     []model.Claim
	Ledger     *usage.Ledger
	Duration   time.Duration
}

// Extractor runs the extraction stages in order
type Extractor struct {
	selector      *Selector
	disambiguator *Disambiguator
	decomposer    *Decomposer
	validator     *Validator
	logger        *slog.Logger
}

// New creates an extractor whose stages share one inference client
func New(inf llm.Inferencer, opts Options, logger *slog.Logger) *Extractor {
	logger = logging.OrDefault(logger)
	if opts.Consensus.Votes <= 0 {
		opts.Consensus.Votes = 3
	}
	if opts.Consensus.Agreement <= 0 {
		opts.Consensus.Agreement = 2.0 / 3.0
	}
	if opts.Consensus.NearMatch <= 0 {
		opts.Consensus.NearMatch = DefaultNearMatch
	}
	return &Extractor{
		selector:      NewSelector(inf, opts.ContextBefore, opts.ContextAfter, logger),
		disambiguator: NewDisambiguator(inf, opts.Consensus, opts.ContextBefore, opts.Concurrency, logger),
		decomposer:    NewDecomposer(inf, opts.ContextBefore, opts.Concurrency, logger),
		validator:     NewValidator(inf, opts.Consensus, opts.Concurrency, logger),
		logger:        logger,
	}
}

// Extract runs the full pipeline on text. Empty text yields no claims and no
// inference calls. On failure the returned Result still carries the usage
// recorded up to the failing stage, and the error is a *StageError.
func (e *Extractor) Extract(ctx context.Context, text string) (*Result, error) {
	start := time.Now()
	res := &Result{Ledger: &usage.Ledger{}}
	defer func() { res.Duration = time.Since(start) }()

	res.Sentences = Segment(text)
	if len(res.Sentences) == 0 {
		return res, nil
	}

	candidates, rec, err := e.selector.Select(ctx, res.Sentences)
	res.Ledger.Add(rec)
	if err != nil {
		return res, &StageError{Stage: StageSelect, Err: err}
	}
	res.Candidates = candidates
	e.logger.Debug("selection done", "sentences", len(res.Sentences), "candidates", len(candidates))
	if len(candidates) == 0 {
		return res, nil
	}

	statements, ledger, err := e.disambiguator.Disambiguate(ctx, res.Sentences, candidates)
	res.Ledger.Append(ledger)
	if err != nil {
		return res, &StageError{Stage: StageDisambiguate, Err: err}
	}
	res.Statements = statements
	e.logger.Debug("disambiguation done", "statements", len(statements), "dropped", len(candidates)-len(statements))
	if len(statements) == 0 {
		return res, nil
	}

	proposals, ledger, err := e.decomposer.Decompose(ctx, res.Sentences, statements)
	res.Ledger.Append(ledger)
	if err != nil {
		return res, &StageError{Stage: StageDecompose, Err: err}
	}
	res.Proposals = proposals
	if len(proposals) == 0 {
		return res, nil
	}

	claims, ledger, err := e.validator.Validate(ctx, proposals)
	res.Ledger.Append(ledger)
	if err != nil {
		return res, &StageError{Stage: StageValidate, Err: err}
	}
	res.Claims = claims
	e.logger.Debug("validation done", "proposals", len(proposals), "claims", len(claims))

	return res, nil
}
