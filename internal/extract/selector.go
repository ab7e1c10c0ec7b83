package extract

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/ppiankov/claimcheck/internal/usage"
)

const StageSelect = "select"

type selectedItem struct {
	Index int    `json:"index"` // 1-based sentence number as shown in the prompt
	Text  string `json:"text"`
}

type selection struct {
	Selected []selectedItem `json:"selected"`
}

func (s *selection) Validate() error {
	if s.Selected == nil {
		return errors.New(`missing "selected"`)
	}
	return nil
}

// Selector flags the sentences that carry verifiable content with a single
// inference call over the whole document.
type Selector struct {
	llm    llm.Inferencer
	before int
	after  int
	logger *slog.Logger
}

// NewSelector creates a selector showing the model before/after sentences of context
func NewSelector(inf llm.Inferencer, before, after int, logger *slog.Logger) *Selector {
	return &Selector{llm: inf, before: before, after: after, logger: logging.OrDefault(logger)}
}

// Select returns candidates in input order. Sentence numbers outside the
// input and repeated numbers are ignored.
func (s *Selector) Select(ctx context.Context, sentences []model.Sentence) ([]model.Candidate, usage.Record, error) {
	if len(sentences) == 0 {
		return nil, usage.Record{Stage: StageSelect}, nil
	}

	items := make([]selectItem, len(sentences))
	for i, sent := range sentences {
		items[i] = selectItem{
			Number:   i + 1,
			Sentence: sent.Text,
			Excerpt:  excerpt(sentences, i, s.before, s.after),
		}
	}

	var resp selection
	rec, err := s.llm.Infer(ctx, StageSelect, llm.Prompt{
		System: selectSystem,
		User:   render(selectUserTmpl, items),
	}, &resp)
	if err != nil {
		return nil, rec, err
	}

	chosen := make(map[int]string, len(resp.Selected))
	for _, item := range resp.Selected {
		i := item.Index - 1
		if i < 0 || i >= len(sentences) {
			s.logger.Debug("selector returned unknown sentence", "index", item.Index)
			continue
		}
		if _, dup := chosen[i]; dup {
			continue
		}
		chosen[i] = strings.TrimSpace(item.Text)
	}

	candidates := make([]model.Candidate, 0, len(chosen))
	for i, sent := range sentences {
		text, ok := chosen[i]
		if !ok {
			continue
		}
		if text == "" {
			text = sent.Text
		}
		candidates = append(candidates, model.Candidate{Sentence: sent, Text: text})
	}
	return candidates, rec, nil
}
