package model

import (
	"time"

	"github.com/brightpath/tutorsim/internal/segment"
)

// ExperimentStatus is the lifecycle state of an A/B test.
type ExperimentStatus string

const (
	ExperimentActive    ExperimentStatus = "active"
	ExperimentCompleted ExperimentStatus = "completed"
)

// Experiment is an A/B test catalog entry. Significance and Winner are set
// only for completed experiments that reached a conclusion.
type Experiment struct {
	ExperimentID     string           `json:"experiment_id"`
	Name             string           `json:"name"`
	Hypothesis       string           `json:"hypothesis"`
	Description      string           `json:"description"`
	Variants         []string         `json:"variants"`
	TargetSegment    segment.Segment  `json:"target_segment"`
	PrimaryMetric    string           `json:"primary_metric"`
	SecondaryMetrics []string         `json:"secondary_metrics"`
	StartDate        time.Time        `json:"start_date"`
	EndDate          *time.Time       `json:"end_date,omitempty"`
	Status           ExperimentStatus `json:"status"`
	SampleSize       int              `json:"sample_size"`
	Significance     *float64         `json:"significance,omitempty"`
	Winner           *string          `json:"winner,omitempty"`
	Notes            string           `json:"notes"`
}

// ExperimentAssignment links a tutor to an experiment variant. The funnel
// timestamps are strictly ordered: ExposedAt requires AssignedAt, ConvertedAt
// requires ExposedAt, and ConversionValue requires ConvertedAt.
type ExperimentAssignment struct {
	ExperimentID    string     `json:"experiment_id"`
	TutorID         string     `json:"tutor_id"`
	Variant         string     `json:"variant"`
	AssignedAt      time.Time  `json:"assigned_at"`
	ExposedAt       *time.Time `json:"exposed_at,omitempty"`
	ConvertedAt     *time.Time `json:"converted_at,omitempty"`
	ConversionValue *float64   `json:"conversion_value,omitempty"`
}
