package verify

import (
	"strings"
	"text/template"
)

const querySystem = `You write web search queries for a fact-checker. Given a claim, return one query that is likely to surface sources able to confirm or contradict it.

- Keep the key entities, numbers, dates and places of the claim.
- Prefer neutral wording over repeating the claim's framing.
- When previous queries are listed, write a query that differs from them and targets the missing aspects.

Today is {{.Today}}.

Respond with JSON: {"query": "<search query>"}.`

const sufficiencySystem = `You judge whether the evidence gathered so far is enough to reach a confident fact-checking verdict on the claim. Be conservative: answer sufficient only when the evidence is specific, consistent and comes from reliable sources. One or two thin snippets, unclear or contradictory evidence, or evidence without any credible source are not sufficient.

Today is {{.Today}}.

Respond with JSON: {"sufficient": true|false, "missing_aspects": ["<what further evidence would help>", ...]}.`

const evaluateSystem = `You are a fact-checker. Judge the claim using only the numbered sources provided.

Verdicts:
- SUPPORTED: reliable sources clearly and consistently confirm the claim.
- REFUTED: reliable sources clearly contradict the claim.
- NOT_ENOUGH_INFO: the sources are too thin, vague or off-topic to decide.
- CONFLICTING: reliable sources disagree with each other about the claim.

Today is {{.Today}}.

Respond with JSON:
{"verdict": "SUPPORTED|REFUTED|NOT_ENOUGH_INFO|CONFLICTING",
 "reasoning": "<one or two sentences>",
 "confidence": <number between 0 and 1>,
 "influential_sources": [<source numbers that decided the verdict>],
 "corrected_claim": "<accurate version of a refuted claim, otherwise empty>",
 "explanation": "<three to five sentences citing figures, dates and the credibility of sources>"}`

var (
	querySystemTmpl       = template.Must(template.New("query-system").Parse(querySystem))
	sufficiencySystemTmpl = template.Must(template.New("sufficiency-system").Parse(sufficiencySystem))
	evaluateSystemTmpl    = template.Must(template.New("evaluate-system").Parse(evaluateSystem))

	queryUserTmpl = template.Must(template.New("query").Parse(`Claim: {{.Claim}}
{{- if .Queries}}

Previous queries:
{{range .Queries}}- {{.}}
{{end}}
{{- end}}
{{- if .Titles}}

Sources already found:
{{range .Titles}}- {{.}}
{{end}}
{{- end}}
{{- if .Missing}}

Missing aspects:
{{range .Missing}}- {{.}}
{{end}}
{{- end}}`))

	sufficiencyUserTmpl = template.Must(template.New("sufficiency").Parse(`Claim: {{.Claim}}

Evidence ({{len .Evidence}} items):
{{range .Evidence}}- {{if .Title}}{{.Title}}: {{end}}{{.Summary}}
{{end}}`))

	evaluateUserTmpl = template.Must(template.New("evaluate").Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}).Parse(`Claim: {{.Claim}}

{{range $i, $e := .Evidence}}Source {{inc $i}}: {{$e.URL}}
{{if $e.Title}}Title: {{$e.Title}}
{{end}}Authority: {{$e.Authority}}
Content: {{$e.Text}}
---
{{end}}`))
)

type systemInput struct {
	Today string
}

type queryInput struct {
	Claim   string
	Queries []string
	Titles  []string
	Missing []string
}

type summaryItem struct {
	Title   string
	Summary string
}

type sufficiencyInput struct {
	Claim    string
	Evidence []summaryItem
}

type evidenceItem struct {
	URL       string
	Title     string
	Authority string
	Text      string
}

type evaluateInput struct {
	Claim    string
	Evidence []evidenceItem
}

func render(t *template.Template, data any) string {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		panic(err)
	}
	return b.String()
}
