// Package uictl defines read-only controls that bridge live data sources
// into UI components without coupling them to the producer.
package uictl

import "golang.org/x/exp/constraints"

// Number constrains control values to ordinary numeric types.
type Number interface {
	constraints.Integer | constraints.Float
}

// Levels is a control that reads a window of recent sample levels.
type Levels[N Number] interface {
	Read() []N
}
