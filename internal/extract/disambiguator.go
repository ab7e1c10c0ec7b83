package extract

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/metrics"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/usage"
)

const StageDisambiguate = "disambiguate"

// voteTemperature keeps repeated votes independent samples rather than copies
const voteTemperature = 0.7

type resolution struct {
	Statement     *string `json:"statement"`
	CannotResolve bool    `json:"cannot_resolve"`
}

func (r *resolution) Validate() error {
	if !r.CannotResolve && (r.Statement == nil || strings.TrimSpace(*r.Statement) == "") {
		return errors.New("statement is empty but cannot_resolve is false")
	}
	return nil
}

func (r *resolution) vote() TextVote {
	if r.CannotResolve || r.Statement == nil {
		return TextVote{Abstain: true}
	}
	return TextVote{Text: *r.Statement}
}

// Consensus holds the voting parameters shared by the consensus stages
type Consensus struct {
	Votes     int
	Agreement float64
	NearMatch float64
}

// Required returns the number of agreeing votes needed for acceptance
func (c Consensus) Required() int {
	return Threshold(c.Votes, c.Agreement)
}

// Disambiguator resolves references in each candidate by K independent votes.
// Candidates without a qualifying majority are dropped.
type Disambiguator struct {
	llm         llm.Inferencer
	consensus   Consensus
	before      int
	concurrency int
	logger      *slog.Logger
}

// NewDisambiguator creates a disambiguator
func NewDisambiguator(inf llm.Inferencer, c Consensus, before, concurrency int, logger *slog.Logger) *Disambiguator {
	return &Disambiguator{
		llm:         inf,
		consensus:   c,
		before:      before,
		concurrency: max(concurrency, 1),
		logger:      logging.OrDefault(logger),
	}
}

// Disambiguate returns the accepted statements in candidate order.
// Any vote that fails after retries fails the whole stage.
func (d *Disambiguator) Disambiguate(ctx context.Context, sentences []model.Sentence, candidates []model.Candidate) ([]model.Statement, *usage.Ledger, error) {
	k := d.consensus.Votes
	votes := make([]TextVote, len(candidates)*k)
	records := make([]usage.Record, len(candidates)*k)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for ci, c := range candidates {
		prompt := llm.Prompt{
			System: disambiguateSystem,
			User: render(disambiguateUserTmpl, disambiguateInput{
				Context:  preceding(sentences, c.Sentence.Index, d.before),
				Sentence: c.Text,
			}),
			Temperature: voteTemperature,
		}
		for v := 0; v < k; v++ {
			slot := ci*k + v
			g.Go(func() error {
				var resp resolution
				rec, err := d.llm.Infer(gctx, StageDisambiguate, prompt, &resp)
				records[slot] = rec
				if err != nil {
					return err
				}
				votes[slot] = resp.vote()
				return nil
			})
		}
	}
	err := g.Wait()

	ledger := &usage.Ledger{}
	ledger.Add(records...)
	if err != nil {
		return nil, ledger, err
	}

	required := d.consensus.Required()
	statements := make([]model.Statement, 0, len(candidates))
	for ci, c := range candidates {
		decision := AggregateText(votes[ci*k:(ci+1)*k], required, d.consensus.NearMatch)
		st := model.Tombstone(c)
		if decision.Accepted {
			st = model.Statement{Candidate: c, Text: decision.Text}
		}
		if st.Unresolved {
			metrics.ConsensusOutcomes.WithLabelValues(StageDisambiguate, "rejected").Inc()
			d.logger.Debug("candidate dropped without consensus",
				"sentence", c.Sentence.Index, "support", decision.Support, "required", required)
			continue
		}
		metrics.ConsensusOutcomes.WithLabelValues(StageDisambiguate, "accepted").Inc()
		statements = append(statements, st)
	}
	return statements, ledger, nil
}
