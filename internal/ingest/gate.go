package ingest

import "github.com/pwhittaker/playpulse/pkg/models"

// Decision is the outcome of the ingest gate for one candidate event.
type Decision int

const (
	// DecisionEmit stores the candidate event.
	DecisionEmit Decision = iota
	// DecisionSuppress drops the candidate as a repeat observation.
	DecisionSuppress
)

func (d Decision) String() string {
	if d == DecisionSuppress {
		return "suppress"
	}
	return "emit"
}

// Decide determines whether a candidate observation is materially new given
// the most recent stored event for the same source identity. The only
// suppressed case is a repeated "still paused on the same thing" reading:
// the first pause is stored, repeats of it are not, and any state or media
// change is stored again.
//
// The gate is a pure function; prev comes from a point lookup into the
// store and no cross-call state is held here.
func Decide(prev *models.NormalizedEvent, candidate models.NormalizedEvent) Decision {
	if candidate.State != models.StatePaused {
		return DecisionEmit
	}
	if prev == nil || prev.State != models.StatePaused {
		return DecisionEmit
	}
	if !candidate.SameMedia(*prev) {
		return DecisionEmit
	}
	return DecisionSuppress
}
