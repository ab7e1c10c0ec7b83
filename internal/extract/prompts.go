package extract

import (
	"strings"
	"text/template"
)

const selectSystem = `You assist a fact-checker. You receive a numbered list of sentences from one document, each followed by an excerpt of its surroundings ("[...]" marks text you cannot see).

Select every sentence that contains at least one specific, verifiable proposition about the world. It does not matter whether the proposition is true, or whether it contains pronouns whose antecedent is elsewhere in the document.

Do not select:
- opinions, recommendations, speculation or predictions ("AI could transform healthcare")
- introductions that only announce what follows, and conclusions that only summarize what precedes
- statements about a lack of information

When a selected sentence mixes verifiable content with opinion, rewrite it so that it keeps only the verifiable part ("The partnership between X and Y shows the power of innovation" becomes "There is a partnership between X and Y"). Leave "text" empty when the sentence needs no rewrite.

Respond with JSON: {"selected": [{"index": <sentence number>, "text": "<rewrite or empty>"}]}. Return {"selected": []} when nothing qualifies.`

const disambiguateSystem = `Rewrite the sentence so that a reader who sees only this sentence understands exactly what is claimed and about whom or what.

- Replace pronouns and vague references ("it", "they", "the company", "this") with the specific names found in the context.
- Give numbers and statistics an explicit subject.
- Add dates or places from the context when they define the scope of the claim.
- Expand acronyms that the context defines.
- Do not add information that is not in the sentence or its context.

If a reference cannot be resolved from the context, or more than one reading remains plausible, do not guess.

Respond with JSON: {"statement": "<self-contained sentence>", "cannot_resolve": false}, or {"statement": null, "cannot_resolve": true}.`

const decomposeSystem = `Split the statement into atomic claims. Each claim states exactly one verifiable fact and must be checkable on its own, without the other claims or the source document.

- Repeat the full subject, place, time and scope qualifiers in every claim.
- Split lists, compound subjects and compound predicates into separate claims.
- Drop opinions and evaluative wording that cannot be verified.
- Keep a statement that is already atomic as a single claim.

Respond with JSON: {"claims": ["<claim>", ...], "no_claims": false}, or {"claims": [], "no_claims": true} when nothing verifiable remains.`

const validateSystem = `Decide whether the claim is ready for fact-checking. It qualifies only when it is:
- a complete declarative sentence with a subject and a predicate
- self-contained: no unresolved pronouns or references to missing context
- atomic: it asserts one fact
- checkable: evidence could in principle support or refute it

Questions, commands, fragments, opinions and predictions do not qualify.

Respond with JSON: {"checkable": true|false, "reason": "<one short sentence>"}.`

var (
	selectUserTmpl = template.Must(template.New("select").Parse(`{{range .}}[{{.Number}}] {{.Sentence}}
    Excerpt: {{.Excerpt}}
{{end}}`))

	disambiguateUserTmpl = template.Must(template.New("disambiguate").Parse(`{{if .Context}}Context:
{{.Context}}

{{end}}Sentence:
{{.Sentence}}`))

	decomposeUserTmpl = template.Must(template.New("decompose").Parse(`{{if .Context}}Context:
{{.Context}}

{{end}}Statement:
{{.Statement}}`))

	validateUserTmpl = template.Must(template.New("validate").Parse(`Claim:
{{.}}`))
)

type selectItem struct {
	Number   int
	Sentence string
	Excerpt  string
}

type disambiguateInput struct {
	Context  string
	Sentence string
}

type decomposeInput struct {
	Context   string
	Statement string
}

func render(t *template.Template, data any) string {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		// Templates are static and data is plain structs
		panic(err)
	}
	return b.String()
}
