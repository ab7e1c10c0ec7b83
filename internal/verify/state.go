package verify

import (
	"net/url"
	"strings"

	"github.com/ppiankov/claimcheck/internal/model"
)

// State is a verification loop state
type State int

const (
	StateGenerateQuery State = iota
	StateRetrieve
	StateDecide
	StateEvaluate
	StateDone
)

func (s State) String() string {
	switch s {
	case StateGenerateQuery:
		return "GENERATE_QUERY"
	case StateRetrieve:
		return "RETRIEVE_EVIDENCE"
	case StateDecide:
		return "DECIDE"
	case StateEvaluate:
		return "EVALUATE"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// LoopState is owned by a single loop and needs no synchronization
type LoopState struct {
	Claim          model.Claim
	Evidence       []model.Evidence // Accumulation order, unique by URL
	Queries        []string
	Iteration      int      // Completed retrieval rounds
	MissingAspects []string // Gaps reported by the last sufficiency check

	seen map[string]bool
}

// NewLoopState creates the initial state for claim
func NewLoopState(claim model.Claim) *LoopState {
	return &LoopState{Claim: claim, seen: make(map[string]bool)}
}

// AddEvidence appends items whose URL has not been seen, tagging each with
// the query and the current iteration. It returns the number added.
func (s *LoopState) AddEvidence(items []model.Evidence, query string) int {
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	added := 0
	for _, e := range items {
		key := urlKey(e.URL)
		if key == "" || s.seen[key] {
			continue
		}
		s.seen[key] = true
		e.Query = query
		e.Iteration = s.Iteration
		s.Evidence = append(s.Evidence, e)
		added++
	}
	return added
}

// AuthoritativeCount returns how many evidence items come from authoritative sources
func (s *LoopState) AuthoritativeCount() int {
	n := 0
	for _, e := range s.Evidence {
		if e.Authority.Authoritative() {
			n++
		}
	}
	return n
}

// URLs returns evidence URLs in accumulation order
func (s *LoopState) URLs() []string {
	return evidenceURLs(s.Evidence)
}

func evidenceURLs(items []model.Evidence) []string {
	out := make([]string, len(items))
	for i, e := range items {
		out[i] = e.URL
	}
	return out
}

// urlKey folds trivial URL variations: fragments, trailing slashes, scheme and host case.
// The query string is kept verbatim.
func urlKey(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		if i := strings.IndexByte(raw, '#'); i >= 0 {
			raw = raw[:i]
		}
		return strings.TrimRight(raw, "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment, u.RawFragment = "", ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = strings.TrimRight(u.RawPath, "/")
	return u.String()
}
