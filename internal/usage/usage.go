// Package usage records per-call token and search usage. Each task owns a
// Ledger; the orchestrator merges ledgers into one Accumulator.
package usage

import (
	"sort"
	"sync"

	"github.com/ppiankov/claimcheck/internal/model"
)

// Record is the usage of a single external call, tagged by stage name.
type Record struct {
	Stage            string `json:"stage"`
	Model            string `json:"model,omitempty"`
	InferenceCalls   int    `json:"inference_calls,omitempty"`
	SearchCalls      int    `json:"search_calls,omitempty"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
}

// Inference builds the record for one inference call.
func Inference(stage, modelName string, promptTokens, completionTokens int) Record {
	return Record{
		Stage:            stage,
		Model:            modelName,
		InferenceCalls:   1,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
	}
}

// Search builds the record for one search call.
func Search(stage string) Record {
	return Record{Stage: stage, SearchCalls: 1}
}

// Ledger collects the records of a single task. It is not safe for concurrent
// use: a task that fans out gives each branch its own ledger and appends them
// after the branches finish.
type Ledger struct {
	records []Record
}

// Add appends records.
func (l *Ledger) Add(records ...Record) {
	l.records = append(l.records, records...)
}

// Append copies every record of other into l.
func (l *Ledger) Append(other *Ledger) {
	if other == nil {
		return
	}
	l.records = append(l.records, other.records...)
}

// Records returns a copy of the recorded entries.
func (l *Ledger) Records() []Record {
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	return len(l.records)
}

// Accumulator aggregates ledgers from many tasks.
//
// Thread Safety: Safe for concurrent use; Merge and Summary serialize on a mutex.
type Accumulator struct {
	mu      sync.Mutex
	stages  map[string]*model.StageUsage
	pricing Pricing
}

// NewAccumulator creates an accumulator using the default pricing table.
func NewAccumulator() *Accumulator {
	return NewAccumulatorWithPricing(DefaultPricing())
}

// NewAccumulatorWithPricing creates an accumulator with a custom pricing table.
func NewAccumulatorWithPricing(p Pricing) *Accumulator {
	return &Accumulator{
		stages:  make(map[string]*model.StageUsage),
		pricing: p,
	}
}

// Merge folds every record of l into the accumulator.
func (a *Accumulator) Merge(l *Ledger) {
	if l == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range l.records {
		s, ok := a.stages[r.Stage]
		if !ok {
			s = &model.StageUsage{Stage: r.Stage}
			a.stages[r.Stage] = s
		}
		s.InferenceCalls += r.InferenceCalls
		s.SearchCalls += r.SearchCalls
		s.PromptTokens += r.PromptTokens
		s.CompletionTokens += r.CompletionTokens
		s.EstimatedCostUSD += a.pricing.Cost(r.Model, r.PromptTokens, r.CompletionTokens)
	}
}

// Summary returns totals plus per-stage figures sorted by stage name.
func (a *Accumulator) Summary() model.UsageSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := model.UsageSummary{Stages: make([]model.StageUsage, 0, len(a.stages))}
	for _, s := range a.stages {
		out.Stages = append(out.Stages, *s)
		out.InferenceCalls += s.InferenceCalls
		out.SearchCalls += s.SearchCalls
		out.PromptTokens += s.PromptTokens
		out.CompletionTokens += s.CompletionTokens
		out.EstimatedCostUSD += s.EstimatedCostUSD
	}
	out.TotalTokens = out.PromptTokens + out.CompletionTokens
	sort.Slice(out.Stages, func(i, j int) bool { return out.Stages[i].Stage < out.Stages[j].Stage })
	return out
}
