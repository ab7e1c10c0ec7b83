package extract

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/metrics"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/usage"
)

const StageValidate = "validate"

// claimNamespace scopes claim IDs so identical input always yields identical IDs
var claimNamespace = uuid.MustParse("6f1c2a3e-8d4b-5e7f-9a0b-1c2d3e4f5a6b")

// ClaimID derives the stable identifier of a claim from its source sentence and text
func ClaimID(sentenceIndex int, text string) string {
	return uuid.NewSHA1(claimNamespace, []byte(strconv.Itoa(sentenceIndex)+"\x00"+text)).String()
}

type checkability struct {
	Checkable bool   `json:"checkable"`
	Reason    string `json:"reason"`
}

// Validator gates proposals by K independent yes/no votes
type Validator struct {
	llm         llm.Inferencer
	consensus   Consensus
	concurrency int
	logger      *slog.Logger
}

// NewValidator creates a validator
func NewValidator(inf llm.Inferencer, c Consensus, concurrency int, logger *slog.Logger) *Validator {
	return &Validator{llm: inf, consensus: c, concurrency: max(concurrency, 1), logger: logging.OrDefault(logger)}
}

// Validate returns the accepted claims in proposal order. Rejection is not an
// error; only a vote that fails after retries fails the stage. Proposals that
// map to an already accepted claim ID are dropped.
func (v *Validator) Validate(ctx context.Context, proposals []Proposal) ([]model.Claim, *usage.Ledger, error) {
	k := v.consensus.Votes
	votes := make([]bool, len(proposals)*k)
	records := make([]usage.Record, len(proposals)*k)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)
	for pi, p := range proposals {
		prompt := llm.Prompt{
			System:      validateSystem,
			User:        render(validateUserTmpl, p.Text),
			Temperature: voteTemperature,
		}
		for n := 0; n < k; n++ {
			slot := pi*k + n
			g.Go(func() error {
				var resp checkability
				rec, err := v.llm.Infer(gctx, StageValidate, prompt, &resp)
				records[slot] = rec
				if err != nil {
					return err
				}
				votes[slot] = resp.Checkable
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

	required := v.consensus.Required()
	seen := make(map[string]bool, len(proposals))
	var claims []model.Claim
	for pi, p := range proposals {
		decision := AggregateBool(votes[pi*k:(pi+1)*k], required)
		if !decision.Accepted {
			metrics.ConsensusOutcomes.WithLabelValues(StageValidate, "rejected").Inc()
			v.logger.Debug("claim rejected", "claim", p.Text, "yes", decision.Yes, "required", required)
			continue
		}
		metrics.ConsensusOutcomes.WithLabelValues(StageValidate, "accepted").Inc()

		sentence := p.Statement.Candidate.Sentence
		id := ClaimID(sentence.Index, p.Text)
		if seen[id] {
			continue
		}
		seen[id] = true
		claims = append(claims, model.Claim{
			ID:         id,
			Text:       p.Text,
			Sentence:   sentence,
			Statement:  p.Statement.Text,
			Confidence: decision.Confidence,
		})
	}
	return claims, ledger, nil
}
