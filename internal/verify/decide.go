package verify

// Action is the outcome of the DECIDE state
type Action int

const (
	// ActionSearch continues with another query
	ActionSearch Action = iota
	// ActionEvaluate stops searching
	ActionEvaluate
	// ActionAskModel defers to the model's sufficiency judgment
	ActionAskModel
)

func (a Action) String() string {
	switch a {
	case ActionSearch:
		return "search"
	case ActionEvaluate:
		return "evaluate"
	case ActionAskModel:
		return "ask_model"
	default:
		return "unknown"
	}
}

// Policy holds the stopping thresholds
type Policy struct {
	MaxIterations            int
	MinEvidence              int
	AuthoritativeMinEvidence int
}

// DefaultPolicy returns the default stopping thresholds
func DefaultPolicy() Policy {
	return Policy{MaxIterations: 3, MinEvidence: 2, AuthoritativeMinEvidence: 3}
}

// Decision is an Action plus the rule that produced it
type Decision struct {
	Action Action
	Reason string
}

// Decide applies the stopping rules in fixed precedence: iteration cap,
// authoritative shortcut, minimum evidence, then model judgment.
// It has no side effects.
func Decide(s *LoopState, p Policy) Decision {
	switch {
	case s.Iteration >= p.MaxIterations:
		return Decision{ActionEvaluate, "iteration cap reached"}
	case s.AuthoritativeCount() > 0 && len(s.Evidence) >= p.AuthoritativeMinEvidence:
		return Decision{ActionEvaluate, "authoritative source found"}
	case len(s.Evidence) < p.MinEvidence:
		return Decision{ActionSearch, "below minimum evidence"}
	default:
		return Decision{ActionAskModel, "sufficiency judged by model"}
	}
}
