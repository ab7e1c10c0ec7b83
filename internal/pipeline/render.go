package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/claimcheck/internal/model"
)

// Renderer writes reports as JSON, Markdown and a console summary
type Renderer struct {
	out io.Writer
}

// NewRenderer creates a renderer. Output paths of "-" and the console summary go to out.
func NewRenderer(out io.Writer) *Renderer {
	if out == nil {
		out = os.Stdout
	}
	return &Renderer{out: out}
}

// RenderJSON writes the indented report to path
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return r.write(path, append(data, '\n'))
}

// RenderMarkdown writes the Markdown report to path
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return r.write(path, []byte(Markdown(report)))
}

func (r *Renderer) write(path string, data []byte) error {
	if path == "-" {
		_, err := r.out.Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// RenderSummary prints a short verdict table
func (r *Renderer) RenderSummary(report *model.Report) {
	w := r.out
	s := report.Summary

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Source:     %s\n", report.Source)
	if report.Language != "" {
		fmt.Fprintf(w, "Language:   %s\n", report.Language)
	}
	fmt.Fprintf(w, "Claims:     %d\n", s.Total)
	fmt.Fprintf(w, "Verdicts:   %d supported, %d refuted, %d not enough info, %d conflicting\n",
		s.Supported, s.Refuted, s.NotEnoughInfo, s.Conflicting)
	if s.Degraded > 0 {
		fmt.Fprintf(w, "Degraded:   %d (external calls failed)\n", s.Degraded)
	}
	fmt.Fprintf(w, "Support:    %d/100 (%s confidence)\n", report.Score.Index, report.Score.Confidence)
	fmt.Fprintf(w, "Usage:      %d inference calls, %d searches, %d tokens, ~$%.4f\n",
		report.Usage.InferenceCalls, report.Usage.SearchCalls, report.Usage.TotalTokens, report.Usage.EstimatedCostUSD)
	fmt.Fprintln(w)

	for i, res := range report.Results {
		fmt.Fprintf(w, "%3d. [%s] %s\n", i+1, res.Verdict.Kind, res.Claim.Text)
	}
	if len(report.Results) > 0 {
		fmt.Fprintln(w)
	}
}

// Markdown renders the full report
func Markdown(report *model.Report) string {
	var b strings.Builder
	s := report.Summary

	b.WriteString("# Claim check report\n\n")
	fmt.Fprintf(&b, "- **Source:** %s\n", report.Source)
	fmt.Fprintf(&b, "- **Checked:** %s\n", report.CreatedAt.Format("2006-01-02 15:04 MST"))
	if report.Language != "" {
		fmt.Fprintf(&b, "- **Original language:** %s\n", report.Language)
	}
	fmt.Fprintf(&b, "- **Report ID:** `%s`\n\n", report.ID)

	b.WriteString("## Summary\n\n")
	b.WriteString("| Verdict | Claims |\n|---|---|\n")
	fmt.Fprintf(&b, "| Supported | %d |\n", s.Supported)
	fmt.Fprintf(&b, "| Refuted | %d |\n", s.Refuted)
	fmt.Fprintf(&b, "| Not enough info | %d |\n", s.NotEnoughInfo)
	fmt.Fprintf(&b, "| Conflicting | %d |\n", s.Conflicting)
	fmt.Fprintf(&b, "| **Total** | **%d** |\n\n", s.Total)
	fmt.Fprintf(&b, "Support index: **%d/100** (%s confidence)\n\n", report.Score.Index, report.Score.Confidence)

	if len(report.Score.Signals) > 0 {
		b.WriteString("### Signals\n\n")
		for _, sig := range report.Score.Signals {
			fmt.Fprintf(&b, "- `%s` (%s): %s\n", sig.Type, sig.Severity, sig.Description)
		}
		b.WriteString("\n")
	}

	if len(report.Results) > 0 {
		b.WriteString("## Claims\n\n")
	}
	for i, res := range report.Results {
		v := res.Verdict
		fmt.Fprintf(&b, "### %d. %s\n\n", i+1, res.Claim.Text)
		fmt.Fprintf(&b, "**%s** (confidence %.2f)\n\n", label(v.Kind), v.Confidence)
		if res.Claim.Sentence.Text != "" && res.Claim.Sentence.Text != res.Claim.Text {
			fmt.Fprintf(&b, "> %s\n\n", res.Claim.Sentence.Text)
		}
		if v.Reasoning != "" {
			b.WriteString(v.Reasoning + "\n\n")
		}
		if v.CorrectedClaim != "" {
			fmt.Fprintf(&b, "Correction: %s\n\n", v.CorrectedClaim)
		}
		if v.Insufficient != nil {
			fmt.Fprintf(&b, "_%s:_ %s\n\n", v.Insufficient.Label, v.Insufficient.Explanation)
			for _, sug := range v.Insufficient.Suggestions {
				fmt.Fprintf(&b, "- %s\n", sug)
			}
			if len(v.Insufficient.Suggestions) > 0 {
				b.WriteString("\n")
			}
		}
		if len(v.EvidenceURLs) > 0 {
			influential := make(map[string]bool, len(v.InfluentialURLs))
			for _, u := range v.InfluentialURLs {
				influential[u] = true
			}
			b.WriteString("Sources:\n\n")
			for _, u := range v.EvidenceURLs {
				mark := ""
				if influential[u] {
					mark = " (decisive)"
				}
				fmt.Fprintf(&b, "- %s%s\n", u, mark)
			}
			b.WriteString("\n")
		}
		if len(v.Queries) > 0 {
			fmt.Fprintf(&b, "Searched %d time(s): %s\n\n", v.Iterations, strings.Join(quote(v.Queries), ", "))
		}
	}

	u := report.Usage
	b.WriteString("## Usage\n\n")
	b.WriteString("| Stage | Inference calls | Searches | Prompt tokens | Completion tokens | Cost (USD) |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, st := range u.Stages {
		fmt.Fprintf(&b, "| %s | %d | %d | %d | %d | %.4f |\n",
			st.Stage, st.InferenceCalls, st.SearchCalls, st.PromptTokens, st.CompletionTokens, st.EstimatedCostUSD)
	}
	fmt.Fprintf(&b, "| **Total** | %d | %d | %d | %d | %.4f |\n",
		u.InferenceCalls, u.SearchCalls, u.PromptTokens, u.CompletionTokens, u.EstimatedCostUSD)
	return b.String()
}

func label(k model.VerdictKind) string {
	switch k {
	case model.VerdictSupported:
		return "Supported"
	case model.VerdictRefuted:
		return "Refuted"
	case model.VerdictConflicting:
		return "Conflicting evidence"
	default:
		return "Not enough information"
	}
}

func quote(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}
