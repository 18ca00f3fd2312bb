package model

// RiskLevel categorizes a tutor's churn probability.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Churn policy constants. These are fixed calibration choices carried over
// from the original risk policy, not fitted model parameters; scenario tests
// depend on the exact values.
const (
	ChurnSignalWeight = 0.12
	ChurnProbCap      = 0.85
	ChurnNoiseCeiling = 0.1
	RiskMediumMinProb = 0.3
	RiskHighMinProb   = 0.5
)

// RiskLevelFor maps a churn probability onto the fixed threshold table.
func RiskLevelFor(p float64) RiskLevel {
	switch {
	case p >= RiskHighMinProb:
		return RiskHigh
	case p >= RiskMediumMinProb:
		return RiskMedium
	default:
		return RiskLow
	}
}

// TutorAggregate is one tutor's rolled-up session metrics and churn signals.
// Rows exist only for tutors with at least one completed session. Nil fields
// mean the underlying window had no qualifying sessions.
type TutorAggregate struct {
	TutorID                string    `json:"tutor_id"`
	TotalSessions30d       int       `json:"total_sessions_30d"`
	TotalSessions7d        int       `json:"total_sessions_7d"`
	AvgRating30d           *float64  `json:"avg_rating_30d,omitempty"`
	AvgRating7d            *float64  `json:"avg_rating_7d,omitempty"`
	AvgEngagementScore     float64   `json:"avg_engagement_score"`
	AvgEmpathyScore        float64   `json:"avg_empathy_score"`
	AvgClarityScore        float64   `json:"avg_clarity_score"`
	AvgStudentSatisfaction float64   `json:"avg_student_satisfaction"`
	FirstSessionAvgRating  *float64  `json:"first_session_avg_rating,omitempty"`
	FirstSessionCount      int       `json:"first_session_count"`
	PoorFirstSessionFlag   bool      `json:"poor_first_session_flag"`
	RecommendationRate     float64   `json:"recommendation_rate"`
	TechnicalIssueRate     float64   `json:"technical_issue_rate"`
	SentimentTrend7d       *float64  `json:"sentiment_trend_7d,omitempty"`
	ChurnProbability       float64   `json:"churn_probability"`
	ChurnRiskLevel         RiskLevel `json:"churn_risk_level"`
	ChurnSignalsDetected   int       `json:"churn_signals_detected"`
}
