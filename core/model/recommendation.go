package model

// Action is the load-shifting advice for one appliance.
type Action int

const (
	ActionRunNow Action = iota
	ActionDefer
	ActionReduce
)

// String returns the wire name of the action.
func (a Action) String() string {
	switch a {
	case ActionRunNow:
		return "run_now"
	case ActionDefer:
		return "defer"
	case ActionReduce:
		return "reduce"
	default:
		return "unknown"
	}
}

// MarshalText renders the action for JSON output surfaces.
func (a Action) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// ConfidenceTag qualifies the energy balance a recommendation was made under.
type ConfidenceTag int

const (
	TagSurplus ConfidenceTag = iota
	TagDeficit
	TagMarginal
)

// String returns the wire name of the tag.
func (t ConfidenceTag) String() string {
	switch t {
	case TagSurplus:
		return "surplus"
	case TagDeficit:
		return "deficit"
	case TagMarginal:
		return "marginal"
	default:
		return "unknown"
	}
}

// MarshalText renders the tag for JSON output surfaces.
func (t ConfidenceTag) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// Recommendation is one immutable advisory decision. A batch is produced per
// engine invocation, ordered by scheduling priority.
type Recommendation struct {
	Appliance  string        `json:"appliance"`
	Action     Action        `json:"action"`
	Reason     string        `json:"reason"`
	Confidence ConfidenceTag `json:"confidence"`

	// DeficitWh is non-zero when the battery could not fully cover a
	// critical load during the evaluated bucket. It is a warning, not an
	// error: the recommendation is still best effort.
	DeficitWh float64 `json:"deficit_wh,omitempty"`
}

// DeficitUnserved reports whether the recommendation carries an unserved
// energy warning.
func (r Recommendation) DeficitUnserved() bool { return r.DeficitWh > 0 }
