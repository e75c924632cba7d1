package model

import (
	"fmt"
	"time"
)

// Priority classifies how negotiable an appliance's operation is.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityNormal
	PriorityDeferrable
)

// String returns the configuration name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityNormal:
		return "normal"
	case PriorityDeferrable:
		return "deferrable"
	default:
		return "unknown"
	}
}

// ParsePriority converts a configuration string to a Priority.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "critical":
		return PriorityCritical, nil
	case "normal", "":
		return PriorityNormal, nil
	case "deferrable":
		return PriorityDeferrable, nil
	default:
		return 0, fmt.Errorf("unknown priority %q: %w", s, ErrInvalidProfile)
	}
}

// FlexWindow bounds the period inside which a flexible appliance may run.
type FlexWindow struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w FlexWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Overlaps reports whether the window intersects [start, end).
func (w FlexWindow) Overlaps(start, end time.Time) bool {
	return w.Start.Before(end) && start.Before(w.End)
}

// ApplianceProfile describes one configured household load. The profile set
// is replaced wholesale per session, never diffed.
type ApplianceProfile struct {
	Name       string
	PowerWatts float64 // >= 0
	Priority   Priority
	Window     *FlexWindow // nil means always-on for the horizon
}

// Validate rejects malformed profiles before any pipeline stage runs.
func (a ApplianceProfile) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("appliance name missing: %w", ErrInvalidProfile)
	}
	if a.PowerWatts < 0 {
		return fmt.Errorf("appliance %s: negative power draw: %w", a.Name, ErrInvalidProfile)
	}
	if a.Window != nil && !a.Window.End.After(a.Window.Start) {
		return fmt.Errorf("appliance %s: window end not after start: %w", a.Name, ErrInvalidProfile)
	}
	return nil
}
