package verify

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/claimcheck/internal/model"
)

// Insufficient-information categories, in tie-break order
const (
	CategoryProprietaryData      = "PROPRIETARY_DATA"
	CategoryTooSpecific          = "TOO_SPECIFIC"
	CategoryRegionalData         = "REGIONAL_DATA"
	CategoryRecentData           = "RECENT_DATA"
	CategoryInternalData         = "INTERNAL_DATA"
	CategoryContradictorySources = "CONTRADICTORY_SOURCES"
	CategorySourceNotAccessible  = "SOURCE_NOT_ACCESSIBLE"
	CategoryGeneralUnavailable   = "GENERAL_UNAVAILABLE"
)

type category struct {
	name        string
	label       string
	explanation string
	patterns    []*regexp.Regexp
	keywords    []string
	suggestions []string
}

func patterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

var categories = []category{
	{
		name:        CategoryProprietaryData,
		label:       "Proprietary or paywalled data",
		explanation: "The claim depends on figures that only paid or proprietary tools publish, such as keyword search volumes or subscription analytics.",
		patterns: patterns(
			`\b\d[\d,]*\s*(searches|search volume|monthly searches)\b`,
			`\b(google\s*ads|keyword\s*planner|semrush|ahrefs|similarweb)\b`,
			`\bkeyword\s*(data|research|difficulty)\b`,
			`\b(cpc|cost\s*per\s*click)\b`,
			`\bpaid\s*(tool|analytics|subscription)\b`,
		),
		keywords:    []string{"search volume", "monthly searches", "keyword data", "analytics platform", "subscription data"},
		suggestions: []string{"Check whether your organization has access to the paid tool that publishes this figure", "Verify the general trend with public data instead of the exact number", "Ask the author of the claim for their data source"},
	},
	{
		name:        CategoryTooSpecific,
		label:       "Overly specific figures",
		explanation: "The claim states precise figures that public sources rarely report at this level of detail, even when the general trend is documented.",
		patterns: patterns(
			`\b\d+\.\d+\s*%`,
			`\bexactly\s+\d`,
			`\b(increased|decreased|grew|fell)\s+by\s+\d+\.\d+`,
			`\b\d[\d,]*\s*(dollars|usd|euros|eur)\s+per\b`,
		),
		keywords:    []string{"exact figure", "precise number", "exact amount", "detailed breakdown"},
		suggestions: []string{"Look for the original study or report behind the figure", "Verify the order of magnitude rather than the exact value", "Search for press releases that summarize the underlying data"},
	},
	{
		name:        CategoryRegionalData,
		label:       "Regional data",
		explanation: "The claim concerns regional or local data that international sources cover poorly and that is often published only by local agencies.",
		patterns: patterns(
			`\b(india|indian|china|chinese|brazil|mexico|indonesia|nigeria)\b`,
			`\b(asian|european|african|latin\s*american)\s+(market|region|countries)\b`,
			`\blocal\s+(market|data|statistics)\b`,
			`\b(province|county|municipality|district)\b`,
		),
		keywords:    []string{"regional", "local data", "country-specific", "nationwide", "statewide"},
		suggestions: []string{"Consult the national statistics office of the country concerned", "Search in the local language", "Check regional reports of international bodies such as the World Bank or UN agencies"},
	},
	{
		name:        CategoryRecentData,
		label:       "Very recent data",
		explanation: "The claim refers to recent events or figures that may not be published or indexed yet.",
		patterns: patterns(
			`\b(this|current)\s+year\b`,
			`\b(recently|latest|so far this)\b`,
			`\b(last\s+few\s+months|past\s+quarter|last\s+quarter)\b`,
		),
		keywords:    []string{"this year", "current year", "recently", "latest", "as of"},
		suggestions: []string{"Retry once official reports for the period are published", "Check press releases of the organizations involved", "Look for preliminary figures and label them as such"},
	},
	{
		name:        CategoryInternalData,
		label:       "Internal or unpublished research",
		explanation: "The claim appears to rest on internal, confidential or unpublished research that is not publicly available.",
		patterns: patterns(
			`\binternal\s+(data|research|study|report|analysis)\b`,
			`\b(proprietary|confidential|private)\s+(data|research)\b`,
			`\b(unpublished|not\s+yet\s+published)\b`,
			`\bour\s+(research|data|findings|survey)\b`,
		),
		keywords:    []string{"internal data", "unpublished", "confidential", "company internal"},
		suggestions: []string{"Ask the organization for a public summary of the research", "Look for case studies or white papers based on the same data", "Search for independent research on the same question"},
	},
	{
		name:        CategoryContradictorySources,
		label:       "Contradictory sources",
		explanation: "The sources found disagree on the facts, so the claim cannot be settled without a primary source.",
		keywords:    []string{"contradictory", "conflicting", "disputed", "varies by source"},
		suggestions: []string{"Identify the primary source behind each figure", "Compare publication dates and measurement methods", "Report the range of values instead of a single one"},
	},
	{
		name:        CategorySourceNotAccessible,
		label:       "Cited source not accessible",
		explanation: "The claim relies on a cited publication that is paywalled, restricted or no longer online.",
		patterns: patterns(
			`\b(according\s+to|cited\s+in|published\s+in)\b.*\b(journal|study|report|paper|survey)\b`,
			`\b(paywall|subscription\s+required|access\s+restricted)\b`,
			`\b(doi:|arxiv:)`,
		),
		keywords:    []string{"according to", "published in", "journal", "research paper"},
		suggestions: []string{"Look for a preprint or author copy of the publication", "Search for news coverage summarizing the findings", "Use institutional access to an academic database"},
	},
	{
		name:        CategoryGeneralUnavailable,
		label:       "Not publicly available",
		explanation: "No public web source with this information was found. It may be too niche or simply not documented online.",
		suggestions: []string{"Consult specialized databases or libraries for the topic", "Ask subject matter experts", "Verify a more general form of the claim"},
	},
}

var (
	largeNumber   = regexp.MustCompile(`\b\d{3,}(,\d{3})*\b`)
	anyNumber     = regexp.MustCompile(`\b\d[\d,.]*\b`)
	gapPhrases    = []string{"does not contain specific", "does not provide", "lack specific", "no specific", "not mention"}
	proprietaryHi = []string{"search volume", "monthly searches", "keyword"}
	regionalHi    = []string{"india", "asia", "africa", "regional", "local"}
	conflictHi    = []string{"conflict", "contradict", "disagree"}
)

// Analyzer explains NOT_ENOUGH_INFO verdicts. The clock decides which years count as recent.
type Analyzer struct {
	now func() time.Time
}

// NewAnalyzer creates an analyzer; a nil clock uses time.Now
func NewAnalyzer(now func() time.Time) *Analyzer {
	if now == nil {
		now = time.Now
	}
	return &Analyzer{now: now}
}

// Analyze picks the most likely reason the claim could not be judged.
// Patterns score 2 and keywords 1 per match, plus context bonuses from the
// evidence count, large numbers, recent years and the verdict reasoning.
// Ties go to the category listed first; no score at all means GENERAL_UNAVAILABLE.
func (a *Analyzer) Analyze(claim string, evidenceCount, queryCount int, reasoning string) *model.InsufficientInfo {
	lower := strings.ToLower(claim)
	reasonLower := strings.ToLower(reasoning)
	scores := make([]int, len(categories))

	for i, c := range categories {
		for _, p := range c.patterns {
			if p.MatchString(claim) {
				scores[i] += 2
			}
		}
		for _, k := range c.keywords {
			if strings.Contains(lower, k) {
				scores[i]++
			}
		}
	}

	idx := indexOf
	if containsAny(lower, proprietaryHi) {
		scores[idx(CategoryProprietaryData)] += 3
	}
	if largeNumber.MatchString(claim) {
		scores[idx(CategoryTooSpecific)]++
	}
	if containsAny(lower, regionalHi) {
		scores[idx(CategoryRegionalData)] += 2
	}
	year := a.now().Year()
	recent := []string{strconv.Itoa(year), strconv.Itoa(year - 1)}
	if containsAny(claim, recent) {
		scores[idx(CategoryRecentData)] += 2
	}
	if evidenceCount == 0 {
		scores[idx(CategoryTooSpecific)]++
		scores[idx(CategoryGeneralUnavailable)]++
	} else {
		if containsAny(reasonLower, gapPhrases) {
			scores[idx(CategoryTooSpecific)] += 2
		}
		if containsAny(reasonLower, conflictHi) {
			scores[idx(CategoryContradictorySources)] += 2
		}
	}

	best := idx(CategoryGeneralUnavailable)
	top := 0
	for i, s := range scores {
		if s > top {
			best, top = i, s
		}
	}
	c := categories[best]

	explanation := c.explanation
	switch c.name {
	case CategoryTooSpecific:
		if nums := anyNumber.FindAllString(claim, 3); len(nums) > 0 {
			explanation += fmt.Sprintf(" Figures in question: %s.", strings.Join(nums, ", "))
		}
	case CategoryRecentData:
		for _, y := range recent {
			if strings.Contains(claim, y) {
				explanation += fmt.Sprintf(" The claim refers to %s.", y)
				break
			}
		}
	}
	switch {
	case queryCount == 1:
		explanation += " One search query was attempted without finding a public source for this information."
	case queryCount > 1:
		explanation += fmt.Sprintf(" %d search queries were attempted without finding a public source for this information.", queryCount)
	}

	return &model.InsufficientInfo{
		Category:    c.name,
		Label:       c.label,
		Explanation: explanation,
		Suggestions: append([]string(nil), c.suggestions...),
	}
}

func indexOf(name string) int {
	for i, c := range categories {
		if c.name == name {
			return i
		}
	}
	return len(categories) - 1
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
