// Package validate classifies evidence sources by authority. The verification
// loop's early-stopping rule depends on it.
package validate

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ppiankov/claimcheck/internal/model"
	"golang.org/x/net/publicsuffix"
)

// AuthorityClassifier classifies source URLs into authority tiers.
//
// Precedence: explicit host mapping, primary allow-list, secondary allow-list,
// path patterns, primary suffixes, then tertiary. Allow-list entries match the
// host itself and every subdomain of it.
type AuthorityClassifier struct {
	domainMap    map[string]model.AuthorityTier
	primary      map[string]bool
	secondary    map[string]bool
	suffixes     []string
	pathPatterns []compiledPattern
}

type compiledPattern struct {
	pattern *regexp.Regexp
	tier    model.AuthorityTier
}

// NewAuthorityClassifier creates a classifier. A nil config uses the built-in allow-list.
// Invalid path patterns are skipped.
func NewAuthorityClassifier(config *model.AuthorityConfig) *AuthorityClassifier {
	if config == nil {
		def := model.DefaultAuthorityConfig()
		config = &def
	}

	c := &AuthorityClassifier{
		domainMap: make(map[string]model.AuthorityTier, len(config.DomainMap)),
		primary:   toSet(config.PrimaryDomains),
		secondary: toSet(config.SecondaryDomains),
	}

	for host, tier := range config.DomainMap {
		c.domainMap[normalizeHost(host)] = ParseTier(tier)
	}

	for _, s := range config.PrimarySuffixes {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if !strings.HasPrefix(s, ".") {
			s = "." + s
		}
		c.suffixes = append(c.suffixes, s)
	}

	for _, pp := range config.PathPatterns {
		re, err := regexp.Compile(pp.Pattern)
		if err != nil {
			continue
		}
		c.pathPatterns = append(c.pathPatterns, compiledPattern{pattern: re, tier: ParseTier(pp.Tier)})
	}

	return c
}

// Classify returns the authority tier of rawURL. Unparseable URLs are tertiary.
func (c *AuthorityClassifier) Classify(rawURL string) model.AuthorityTier {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return model.TierTertiary
	}

	host := normalizeHost(parsed.Hostname())
	candidates := hostCandidates(host)

	for _, h := range candidates {
		if tier, ok := c.domainMap[h]; ok {
			return tier
		}
	}
	for _, h := range candidates {
		if c.primary[h] {
			return model.TierPrimary
		}
	}
	for _, h := range candidates {
		if c.secondary[h] {
			return model.TierSecondary
		}
	}

	for _, cp := range c.pathPatterns {
		if cp.pattern.MatchString(parsed.Path) {
			return cp.tier
		}
	}

	for _, s := range c.suffixes {
		if strings.HasSuffix("."+host, s) {
			return model.TierPrimary
		}
	}

	return model.TierTertiary
}

// Authoritative reports whether rawURL belongs to the authoritative allow-list
func (c *AuthorityClassifier) Authoritative(rawURL string) bool {
	return c.Classify(rawURL).Authoritative()
}

// Annotate returns a copy of items with Authority filled in
func (c *AuthorityClassifier) Annotate(items []model.Evidence) []model.Evidence {
	out := make([]model.Evidence, len(items))
	for i, e := range items {
		e.Authority = c.Classify(e.URL)
		out[i] = e
	}
	return out
}

// hostCandidates lists host and its parent domains down to the registrable
// domain: "en.m.wikipedia.org" yields itself, "m.wikipedia.org" and "wikipedia.org".
// Public suffixes such as "co.uk" are never candidates.
func hostCandidates(host string) []string {
	candidates := []string{host}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil || registrable == host {
		return candidates
	}
	for h := host; h != registrable; {
		i := strings.IndexByte(h, '.')
		if i < 0 {
			break
		}
		h = h[i+1:]
		candidates = append(candidates, h)
	}
	return candidates
}

func normalizeHost(host string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
}

func toSet(domains []string) map[string]bool {
	set := make(map[string]bool, len(domains))
	for _, d := range domains {
		if d = normalizeHost(d); d != "" {
			set[d] = true
		}
	}
	return set
}

// ParseTier converts a tier name or number to an AuthorityTier. Unknown values are tertiary.
func ParseTier(tier string) model.AuthorityTier {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case "primary", "1":
		return model.TierPrimary
	case "secondary", "2":
		return model.TierSecondary
	default:
		return model.TierTertiary
	}
}
