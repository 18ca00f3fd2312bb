package model

import (
	"time"

	"github.com/brightpath/tutorsim/internal/segment"
)

// Dataset bundles one generation run's tables. Optional tables are nil when
// their stage was disabled or skipped.
type Dataset struct {
	Tutors        []Tutor                `json:"tutors"`
	Sessions      []Session              `json:"sessions"`
	Aggregates    []TutorAggregate       `json:"aggregates"`
	Experiments   []Experiment           `json:"experiments,omitempty"`
	Assignments   []ExperimentAssignment `json:"assignments,omitempty"`
	Interventions []Intervention         `json:"interventions,omitempty"`
	Events        []EngagementEvent      `json:"events,omitempty"`
}

// TutorIndex maps tutor_id to its row, built once per run so downstream
// generators join by key instead of rescanning the table.
func (d *Dataset) TutorIndex() map[string]*Tutor {
	idx := make(map[string]*Tutor, len(d.Tutors))
	for i := range d.Tutors {
		idx[d.Tutors[i].TutorID] = &d.Tutors[i]
	}
	return idx
}

// AggregateIndex maps tutor_id to the tutor's aggregate row.
func (d *Dataset) AggregateIndex() map[string]*TutorAggregate {
	idx := make(map[string]*TutorAggregate, len(d.Aggregates))
	for i := range d.Aggregates {
		idx[d.Aggregates[i].TutorID] = &d.Aggregates[i]
	}
	return idx
}

// SessionsByTutor groups sessions by tutor_id preserving stream order.
func (d *Dataset) SessionsByTutor() map[string][]*Session {
	byTutor := make(map[string][]*Session)
	for i := range d.Sessions {
		s := &d.Sessions[i]
		byTutor[s.TutorID] = append(byTutor[s.TutorID], s)
	}
	return byTutor
}

// FeatureRow flattens a tutor and its (possibly nil) aggregate into the
// uniform lookup that targeting segments evaluate against.
func FeatureRow(t *Tutor, a *TutorAggregate) segment.Features {
	f := segment.Features{
		"tutor_id":                 t.TutorID,
		"months_experience":        t.MonthsExperience,
		"total_sessions_completed": t.TotalSessionsCompleted,
		"avg_historical_rating":    t.AvgHistoricalRating,
		"reschedule_rate":          t.RescheduleRate,
		"no_show_count":            t.NoShowCount,
		"reliability_score":        t.ReliabilityScore,
		"certification_level":      string(t.CertificationLevel),
		"active_status":            t.ActiveStatus,
		"primary_subject":          t.PrimarySubject,
	}
	if a == nil {
		return f
	}
	f["total_sessions_30d"] = a.TotalSessions30d
	f["total_sessions_7d"] = a.TotalSessions7d
	f["avg_rating_30d"] = a.AvgRating30d
	f["avg_rating_7d"] = a.AvgRating7d
	f["avg_engagement_score"] = a.AvgEngagementScore
	f["avg_empathy_score"] = a.AvgEmpathyScore
	f["avg_clarity_score"] = a.AvgClarityScore
	f["avg_student_satisfaction"] = a.AvgStudentSatisfaction
	f["first_session_avg_rating"] = a.FirstSessionAvgRating
	f["first_session_count"] = a.FirstSessionCount
	f["poor_first_session_flag"] = a.PoorFirstSessionFlag
	f["recommendation_rate"] = a.RecommendationRate
	f["technical_issue_rate"] = a.TechnicalIssueRate
	f["churn_probability"] = a.ChurnProbability
	f["churn_risk_level"] = string(a.ChurnRiskLevel)
	f["churn_signals_detected"] = a.ChurnSignalsDetected
	return f
}

// Stats summarizes a dataset for end-of-run reporting.
type Stats struct {
	Tutors               int            `json:"tutors" yaml:"tutors"`
	Sessions             int            `json:"sessions" yaml:"sessions"`
	CompletedSessions    int            `json:"completed_sessions" yaml:"completed_sessions"`
	CompletionRate       float64        `json:"completion_rate" yaml:"completion_rate"`
	AvgStudentRating     float64        `json:"avg_student_rating" yaml:"avg_student_rating"`
	HighRiskTutors       int            `json:"high_risk_tutors" yaml:"high_risk_tutors"`
	PoorFirstSession     int            `json:"poor_first_session_tutors" yaml:"poor_first_session_tutors"`
	Experiments          int            `json:"experiments" yaml:"experiments"`
	Assignments          int            `json:"assignments" yaml:"assignments"`
	Interventions        int            `json:"interventions" yaml:"interventions"`
	InterventionsByState map[string]int `json:"interventions_by_status,omitempty" yaml:"interventions_by_status,omitempty"`
	Events               int            `json:"events" yaml:"events"`
	RiskLevels           map[string]int `json:"risk_levels" yaml:"risk_levels"`
}

// Stats computes the run summary.
func (d *Dataset) Stats() Stats {
	st := Stats{
		Tutors:               len(d.Tutors),
		Sessions:             len(d.Sessions),
		Experiments:          len(d.Experiments),
		Assignments:          len(d.Assignments),
		Interventions:        len(d.Interventions),
		Events:               len(d.Events),
		RiskLevels:           map[string]int{},
		InterventionsByState: map[string]int{},
	}
	var ratingSum float64
	var rated int
	for i := range d.Sessions {
		s := &d.Sessions[i]
		if s.SessionCompleted {
			st.CompletedSessions++
		}
		if s.Metrics != nil {
			ratingSum += s.Metrics.StudentRating
			rated++
		}
	}
	if st.Sessions > 0 {
		st.CompletionRate = float64(st.CompletedSessions) / float64(st.Sessions)
	}
	if rated > 0 {
		st.AvgStudentRating = ratingSum / float64(rated)
	}
	for i := range d.Aggregates {
		a := &d.Aggregates[i]
		st.RiskLevels[string(a.ChurnRiskLevel)]++
		if a.ChurnRiskLevel == RiskHigh {
			st.HighRiskTutors++
		}
		if a.PoorFirstSessionFlag {
			st.PoorFirstSession++
		}
	}
	for i := range d.Interventions {
		st.InterventionsByState[string(d.Interventions[i].Status)]++
	}
	return st
}

// MaxSessionTime returns the latest session_datetime in the dataset, the
// single global "now" that aggregate windows hang off.
func (d *Dataset) MaxSessionTime() (time.Time, bool) {
	var max time.Time
	for i := range d.Sessions {
		if d.Sessions[i].SessionDatetime.After(max) {
			max = d.Sessions[i].SessionDatetime
		}
	}
	return max, !max.IsZero()
}
