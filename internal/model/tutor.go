package model

import "time"

// CertificationLevel is a tutor's platform certification tier.
type CertificationLevel string

const (
	CertificationBasic    CertificationLevel = "Basic"
	CertificationAdvanced CertificationLevel = "Advanced"
	CertificationExpert   CertificationLevel = "Expert"
)

// Subjects is the fixed subject catalog tutors teach from.
var Subjects = []string{"Math", "Science", "English", "History", "Test Prep", "Programming"}

// GradeLevels is the fixed grade-level catalog for sessions.
var GradeLevels = []string{"Elementary", "Middle School", "High School", "College", "Adult"}

// Tutor is a tutor profile. The latent traits (reliability, experience) drive
// the correlated downstream fields; everything here is static for a run except
// LastLogin, which is backfilled once engagement events are known.
type Tutor struct {
	TutorID                string             `json:"tutor_id"`
	MonthsExperience       int                `json:"months_experience"`
	TotalSessionsCompleted int                `json:"total_sessions_completed"`
	AvgHistoricalRating    float64            `json:"avg_historical_rating"`
	SubjectsTaught         []string           `json:"subjects_taught"`
	PrimarySubject         string             `json:"primary_subject"`
	RescheduleRate         float64            `json:"reschedule_rate"`
	NoShowCount            int                `json:"no_show_count"`
	ReliabilityScore       float64            `json:"reliability_score"`
	CertificationLevel     CertificationLevel `json:"certification_level"`
	ActiveStatus           bool               `json:"active_status"`
	LastLogin              *time.Time         `json:"last_login,omitempty"`
}

// ExperienceTier buckets months of experience the way the churn model
// one-hot encodes it.
func (t *Tutor) ExperienceTier() string {
	switch {
	case t.MonthsExperience <= 12:
		return "Junior"
	case t.MonthsExperience <= 36:
		return "Mid"
	default:
		return "Senior"
	}
}
