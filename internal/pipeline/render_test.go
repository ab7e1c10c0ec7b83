package pipeline

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/claimcheck/internal/model"
)

func sampleReport() *model.Report {
	claim := model.Claim{ID: "c1", Text: "Paris is the capital of France.", Sentence: model.Sentence{Text: "Paris is the capital of France and it is big."}}
	nei := model.Claim{ID: "c2", Text: "Acme sold 4,211 widgets in March."}
	results := []model.ClaimResult{
		{Claim: claim, Verdict: model.Verdict{
			ClaimID: "c1", Kind: model.VerdictSupported, Confidence: 0.95, Reasoning: "Encyclopedias agree.",
			EvidenceURLs:    []string{"https://en.wikipedia.org/wiki/Paris", "https://example.com/paris"},
			InfluentialURLs: []string{"https://en.wikipedia.org/wiki/Paris"},
			Queries:         []string{"capital of France"}, Iterations: 1,
		}},
		{Claim: nei, Verdict: model.Verdict{
			ClaimID: "c2", Kind: model.VerdictNotEnoughInfo, Reasoning: "No sources found.", Iterations: 3,
			Insufficient: &model.InsufficientInfo{Category: "PROPRIETARY_DATA", Label: "Proprietary data", Explanation: "Sales figures are internal.", Suggestions: []string{"Ask the company"}},
		}},
	}
	return &model.Report{
		ID:        "r1",
		CreatedAt: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		Source:    "inline",
		Claims:    []model.Claim{claim, nei},
		Results:   results,
		Summary:   model.Summarize(results),
		Score:     model.Score{Index: 100, Confidence: "low"},
		Usage: model.UsageSummary{
			Stages:         []model.StageUsage{{Stage: "evaluate", InferenceCalls: 1}},
			InferenceCalls: 1,
		},
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleReport())

	for _, want := range []string{
		"# Claim check report",
		"| Supported | 1 |",
		"| Not enough info | 1 |",
		"### 1. Paris is the capital of France.",
		"> Paris is the capital of France and it is big.",
		"https://en.wikipedia.org/wiki/Paris (decisive)",
		"_Proprietary data:_ Sales figures are internal.",
		"- Ask the company",
		"| evaluate | 1 |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown missing %q", want)
		}
	}
	if strings.Contains(md, "https://example.com/paris (decisive)") {
		t.Error("Only influential sources are marked decisive")
	}
}

func TestRenderJSON_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.json")
	if err := NewRenderer(nil).RenderJSON(sampleReport(), path); err != nil {
		t.Fatalf("RenderJSON failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got model.Report
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if got.ID != "r1" || len(got.Results) != 2 {
		t.Errorf("Unexpected report: %+v", got)
	}
}

func TestRenderer_Stdout(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf)

	if err := r.RenderMarkdown(sampleReport(), "-"); err != nil {
		t.Fatalf("RenderMarkdown failed: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "# Claim check report") {
		t.Error("Expected markdown on the writer")
	}

	buf.Reset()
	r.RenderSummary(sampleReport())
	out := buf.String()
	if !strings.Contains(out, "1 supported, 0 refuted, 1 not enough info, 0 conflicting") {
		t.Errorf("Unexpected summary:\n%s", out)
	}
	if !strings.Contains(out, "[NOT_ENOUGH_INFO] Acme sold") {
		t.Errorf("Expected claim lines:\n%s", out)
	}
}
