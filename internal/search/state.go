package search

// State is the lifecycle of an orchestrator's most recent search.
type State int

const (
	StateIdle State = iota
	StateInFlight
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInFlight:
		return "in_flight"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is how a single search call ended.
type Outcome int

const (
	// OutcomeCompleted means the result is a real answer.
	OutcomeCompleted Outcome = iota
	// OutcomeFailed means the result is the fallback and Err holds the message.
	OutcomeFailed
	// OutcomeSuperseded means a newer search cancelled this one before it answered.
	OutcomeSuperseded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}
