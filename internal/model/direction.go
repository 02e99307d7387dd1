package model

import (
	"fmt"
	"strings"
)

// Side is one end of an edge as seen from a vertex.
// It has exactly two values; per-direction code takes a Side so BOTH cannot reach it.
type Side int

const (
	SideIn Side = iota + 1
	SideOut
)

// String returns "IN" or "OUT".
func (s Side) String() string {
	switch s {
	case SideIn:
		return "IN"
	case SideOut:
		return "OUT"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

// Suffix returns the foreign-key column suffix for this side.
func (s Side) Suffix() string {
	if s == SideIn {
		return InSuffix
	}
	return OutSuffix
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideIn {
		return SideOut
	}
	return SideIn
}

// ParseSide parses "IN" or "OUT" (case-insensitive).
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(s) {
	case "IN":
		return SideIn, nil
	case "OUT":
		return SideOut, nil
	default:
		return 0, fmt.Errorf("invalid side %q", s)
	}
}

// Direction selects incident edges of a vertex.
type Direction int

const (
	DirectionIn Direction = iota + 1
	DirectionOut
	DirectionBoth
)

// Sides expands a direction into the sides to query, IN before OUT.
func (d Direction) Sides() []Side {
	switch d {
	case DirectionIn:
		return []Side{SideIn}
	case DirectionOut:
		return []Side{SideOut}
	case DirectionBoth:
		return []Side{SideIn, SideOut}
	default:
		return nil
	}
}

// String returns "IN", "OUT" or "BOTH".
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionBoth:
		return "BOTH"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection parses "in", "out" or "both" (case-insensitive).
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(s) {
	case "IN":
		return DirectionIn, nil
	case "OUT":
		return DirectionOut, nil
	case "BOTH":
		return DirectionBoth, nil
	default:
		return 0, fmt.Errorf("invalid direction %q: must be in, out or both", s)
	}
}
