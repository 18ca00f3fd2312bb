// Package synth holds the correlated multi-entity generators: tutor profiles,
// session streams, per-tutor aggregates with churn scoring, experiments and
// assignments, interventions, and behavioral events. Every generator draws
// from its own seeded randx.Source so a stage can be toggled without
// disturbing the streams of later stages, and Pipeline runs them in the one
// fixed order that a seed reproduces end to end.
package synth

import (
	"fmt"
	"math"
)

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func roundTo(v float64, places int) float64 {
	f := math.Pow(10, float64(places))
	return math.Round(v*f) / f
}

func tutorID(n int) string   { return fmt.Sprintf("T%04d", n) }
func sessionID(n int) string { return fmt.Sprintf("S%06d", n) }
func eventID(n int) string   { return fmt.Sprintf("EV%06d", n) }
func intvID(n int) string    { return fmt.Sprintf("INT%04d", n) }

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
