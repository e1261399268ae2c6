package model

import "fmt"

// Toggled is the outcome of an atomic toggle operation. It has exactly two
// values; callers switch on it instead of comparing backend literals.
type Toggled int

const (
	ToggledOff Toggled = iota
	ToggledOn
)

// On reports whether the relationship now exists.
func (t Toggled) On() bool { return t == ToggledOn }

// Delta is the counter adjustment implied by the outcome.
func (t Toggled) Delta() int64 {
	if t == ToggledOn {
		return 1
	}
	return -1
}

func (t Toggled) String() string {
	if t == ToggledOn {
		return "on"
	}
	return "off"
}

// MarshalText renders the toggle as "on"/"off".
func (t Toggled) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// ParseLikeToggle maps the like procedure's result onto Toggled.
func ParseLikeToggle(s string) (Toggled, error) {
	return parseToggle(s, "liked", "unliked")
}

// ParseSubscriptionToggle maps the subscription procedure's result onto Toggled.
func ParseSubscriptionToggle(s string) (Toggled, error) {
	return parseToggle(s, "subscribed", "unsubscribed")
}

func parseToggle(s, on, off string) (Toggled, error) {
	switch s {
	case on:
		return ToggledOn, nil
	case off:
		return ToggledOff, nil
	default:
		return ToggledOff, fmt.Errorf("unexpected toggle result %q (want %q or %q)", s, on, off)
	}
}
