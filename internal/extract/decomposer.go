package extract

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/usage"
)

const StageDecompose = "decompose"

type decomposition struct {
	Claims   []string `json:"claims"`
	NoClaims bool     `json:"no_claims"`
}

func (d *decomposition) Validate() error {
	if d.Claims == nil && !d.NoClaims {
		return errors.New(`missing "claims"`)
	}
	return nil
}

// Proposal is an atomic statement awaiting validation
type Proposal struct {
	Statement model.Statement
	Text      string
}

// Decomposer splits each statement into atomic proposals with one call per statement
type Decomposer struct {
	llm         llm.Inferencer
	before      int
	concurrency int
	logger      *slog.Logger
}

// NewDecomposer creates a decomposer
func NewDecomposer(inf llm.Inferencer, before, concurrency int, logger *slog.Logger) *Decomposer {
	return &Decomposer{llm: inf, before: before, concurrency: max(concurrency, 1), logger: logging.OrDefault(logger)}
}

// Decompose returns proposals grouped by statement, in statement order.
// Blank proposals and repeats within one statement are dropped.
func (d *Decomposer) Decompose(ctx context.Context, sentences []model.Sentence, statements []model.Statement) ([]Proposal, *usage.Ledger, error) {
	parts := make([][]string, len(statements))
	records := make([]usage.Record, len(statements))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, st := range statements {
		g.Go(func() error {
			var resp decomposition
			rec, err := d.llm.Infer(gctx, StageDecompose, llm.Prompt{
				System: decomposeSystem,
				User: render(decomposeUserTmpl, decomposeInput{
					Context:   preceding(sentences, st.Candidate.Sentence.Index, d.before),
					Statement: st.Text,
				}),
			}, &resp)
			records[i] = rec
			if err != nil {
				return err
			}
			if !resp.NoClaims {
				parts[i] = resp.Claims
			}
			return nil
		})
	}
	err := g.Wait()

	ledger := &usage.Ledger{}
	ledger.Add(records...)
	if err != nil {
		return nil, ledger, err
	}

	var proposals []Proposal
	for i, st := range statements {
		seen := make(map[string]bool, len(parts[i]))
		for _, text := range parts[i] {
			text = strings.TrimSpace(text)
			key := Normalize(text)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			proposals = append(proposals, Proposal{Statement: st, Text: text})
		}
		if len(parts[i]) == 0 {
			d.logger.Debug("statement has no checkable content", "sentence", st.Candidate.Sentence.Index)
		}
	}
	return proposals, ledger, nil
}
