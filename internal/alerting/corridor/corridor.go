// Package corridor implements the threshold classifier and the per-ticker
// direction state machine that debounces breakout alerts.
package corridor

// Direction is the classified position of a price relative to the corridor
// around the opening price.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionNone Direction = "none"
)

// ParseDirection maps a stored state value to a Direction. Unknown or empty
// values collapse to DirectionNone, so a ticker absent from the state file
// behaves like one that never alerted.
func ParseDirection(s string) Direction {
	switch Direction(s) {
	case DirectionUp, DirectionDown:
		return Direction(s)
	default:
		return DirectionNone
	}
}

// Classify converts a percentage change and a positive threshold magnitude
// into a Direction. Boundaries are inclusive: deltaPct == thresholdPct is up.
func Classify(deltaPct, thresholdPct float64) Direction {
	switch {
	case deltaPct >= thresholdPct:
		return DirectionUp
	case deltaPct <= -thresholdPct:
		return DirectionDown
	default:
		return DirectionNone
	}
}

// Action is the decision of the state machine for one observation.
type Action int

const (
	// ActionHold means nothing changed: either the ticker is inside the
	// corridor and was already neutral, or it is still in the direction
	// that was last alerted.
	ActionHold Action = iota
	// ActionReset means the price re-entered the corridor after an alert;
	// the stored direction must be reset to none without notifying.
	ActionReset
	// ActionNotify means the ticker crossed into a breakout direction it
	// has not alerted for; an alert should be dispatched and, on success,
	// the stored direction updated.
	ActionNotify
)

// Transition applies the corridor rule to the last alerted direction and the
// freshly classified one. An alert fires only on crossing into a breakout
// direction; the same direction never re-fires until the price returns to
// the corridor, while a direct up/down flip always re-fires.
func Transition(prev, curr Direction) Action {
	if curr == DirectionNone {
		if prev != DirectionNone {
			return ActionReset
		}
		return ActionHold
	}
	if curr == prev {
		return ActionHold
	}
	return ActionNotify
}
