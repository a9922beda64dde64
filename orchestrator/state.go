package orchestrator

// State is a step of the per-combination extraction state machine
type State int

const (
	Idle State = iota
	SeasonSelected
	ConferenceSelected
	Applied
	Rendered
	Parsed
	Accumulated
	// Failed ends one combination; the session moves on to the next
	Failed
	// Aborted ends the whole session
	Aborted
)

var stateNames = [...]string{
	Idle:               "Idle",
	SeasonSelected:     "SeasonSelected",
	ConferenceSelected: "ConferenceSelected",
	Applied:            "Applied",
	Rendered:           "Rendered",
	Parsed:             "Parsed",
	Accumulated:        "Accumulated",
	Failed:             "Failed",
	Aborted:            "Aborted",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition can leave s within a combination
func (s State) Terminal() bool {
	return s == Accumulated || s == Failed || s == Aborted
}

// next lists the forward transitions of the happy path
var next = map[State]State{
	Idle:               SeasonSelected,
	SeasonSelected:     ConferenceSelected,
	ConferenceSelected: Applied,
	Applied:            Rendered,
	Rendered:           Parsed,
	Parsed:             Accumulated,
}

// validTransition reports whether the machine may move from one state to another
func validTransition(from, to State) bool {
	switch {
	case to == Aborted:
		return from != Aborted
	case to == Failed:
		return !from.Terminal()
	case to == Idle:
		// A new combination starts from any finished one, or from the very start
		return from == Idle || from == Accumulated || from == Failed
	}
	return next[from] == to
}
