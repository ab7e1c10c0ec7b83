package preprocess

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/usage"
)

// Stage names for usage records
const (
	StageDetect    = "detect_language"
	StageTranslate = "translate"
)

const (
	detectSample = 1000
	chunkChars   = 6000
)

// Translator detects the language of a text and translates it
type Translator interface {
	DetectLanguage(ctx context.Context, text string) (string, usage.Record, error)
	Translate(ctx context.Context, text, target string) (string, usage.Record, error)
}

type detection struct {
	Language string `json:"language"`
}

func (d *detection) Validate() error {
	tag, err := language.Parse(strings.TrimSpace(d.Language))
	if err != nil {
		return errors.New("language is not a BCP 47 tag")
	}
	base, _ := tag.Base()
	d.Language = base.String()
	return nil
}

// LLMTranslator uses the inference capability for both operations
type LLMTranslator struct {
	llm llm.Inferencer
}

// NewLLMTranslator creates a translator backed by inf
func NewLLMTranslator(inf llm.Inferencer) *LLMTranslator {
	return &LLMTranslator{llm: inf}
}

// DetectLanguage returns the ISO 639 base language of text, e.g. "en"
func (t *LLMTranslator) DetectLanguage(ctx context.Context, text string) (string, usage.Record, error) {
	var resp detection
	rec, err := t.llm.Infer(ctx, StageDetect, llm.Prompt{
		System: `Identify the language of the text. Respond with JSON: {"language": "<ISO 639-1 code>"}.`,
		User:   sample(text, detectSample),
	}, &resp)
	if err != nil {
		return "", rec, err
	}
	return resp.Language, rec, nil
}

// Translate translates text to target chunk by chunk, keeping paragraph breaks
func (t *LLMTranslator) Translate(ctx context.Context, text, target string) (string, usage.Record, error) {
	name := target
	if tag, err := language.Parse(target); err == nil {
		name = displayName(tag)
	}
	system := "Translate the text into " + name + ". Preserve every fact, number, name and date exactly. Return only the translation."

	total := usage.Record{Stage: StageTranslate}
	var out []string
	for _, chunk := range chunks(text, chunkChars) {
		var translated string
		rec, err := t.llm.Infer(ctx, StageTranslate, llm.Prompt{System: system, User: chunk}, &translated)
		total.Model = rec.Model
		total.InferenceCalls += rec.InferenceCalls
		total.PromptTokens += rec.PromptTokens
		total.CompletionTokens += rec.CompletionTokens
		if err != nil {
			return "", total, err
		}
		out = append(out, strings.TrimSpace(translated))
	}
	return strings.Join(out, "\n\n"), total, nil
}

// ToTarget translates text when its detected language differs from target.
// It returns the text to use, the detected language and the usage of both calls.
func ToTarget(ctx context.Context, t Translator, text, target string) (string, string, *usage.Ledger, error) {
	ledger := &usage.Ledger{}
	if target == "" {
		target = "en"
	}

	detected, rec, err := t.DetectLanguage(ctx, text)
	ledger.Add(rec)
	if err != nil {
		return "", "", ledger, err
	}
	if sameLanguage(detected, target) {
		return text, detected, ledger, nil
	}

	translated, rec, err := t.Translate(ctx, text, target)
	ledger.Add(rec)
	if err != nil {
		return "", detected, ledger, err
	}
	return translated, detected, ledger, nil
}

func sameLanguage(a, b string) bool {
	ta, errA := language.Parse(a)
	tb, errB := language.Parse(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(a, b)
	}
	ba, _ := ta.Base()
	bb, _ := tb.Base()
	return ba == bb
}

func displayName(tag language.Tag) string {
	base, _ := tag.Base()
	if name := display.English.Languages().Name(base); name != "" {
		return name
	}
	return base.String()
}

func sample(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n])
}

// chunks splits text at paragraph breaks into pieces of at most n characters.
// A single paragraph longer than n becomes its own chunk.
func chunks(text string, n int) []string {
	var out []string
	var cur strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if cur.Len() > 0 && cur.Len()+len(para)+2 > n {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
