package model

import "time"

// ConnectionQuality is the 4-level connection quality bucket for a session.
type ConnectionQuality string

const (
	ConnectionExcellent ConnectionQuality = "Excellent"
	ConnectionGood      ConnectionQuality = "Good"
	ConnectionFair      ConnectionQuality = "Fair"
	ConnectionPoor      ConnectionQuality = "Poor"
)

// SessionMetrics is the bundle of engagement and quality measurements that
// exists only for completed sessions.
type SessionMetrics struct {
	StudentAttentionPct float64 `json:"student_attention_pct"`
	TutorCameraOnPct    float64 `json:"tutor_camera_on_pct"`
	TutorSpeakRatio     float64 `json:"tutor_speak_ratio"`
	ScreenSharePct      float64 `json:"screen_share_pct"`
	OverallSentiment    float64 `json:"overall_sentiment"`
	StudentSentiment    float64 `json:"student_sentiment"`
	TutorSentiment      float64 `json:"tutor_sentiment"`
	EmpathyScore        float64 `json:"empathy_score"`
	ClarityScore        float64 `json:"clarity_score"`
	EngagementScore     float64 `json:"engagement_score"`
	StudentRating       float64 `json:"student_rating"`
	StudentSatisfaction float64 `json:"student_satisfaction"`
	WouldRecommend      bool    `json:"would_recommend"`
	HadTechnicalIssues  bool    `json:"had_technical_issues"`
}

// Session is one scheduled tutoring session. Metrics is non-nil exactly when
// SessionCompleted is true; IsFirstSession is only known for completed sessions.
type Session struct {
	SessionID            string            `json:"session_id"`
	TutorID              string            `json:"tutor_id"`
	SessionDatetime      time.Time         `json:"session_datetime"`
	ScheduledDurationMin int               `json:"scheduled_duration_min"`
	ActualDurationMin    int               `json:"actual_duration_min"`
	Subject              string            `json:"subject"`
	GradeLevel           string            `json:"grade_level"`
	IsFirstSession       *bool             `json:"is_first_session,omitempty"`
	SessionCompleted     bool              `json:"session_completed"`
	StudentShowed        bool              `json:"student_showed"`
	TutorShowed          bool              `json:"tutor_showed"`
	ConnectionQuality    ConnectionQuality `json:"connection_quality"`
	Metrics              *SessionMetrics   `json:"metrics,omitempty"`
}

// FirstSession reports whether the session is a flagged first session.
func (s *Session) FirstSession() bool {
	return s.IsFirstSession != nil && *s.IsFirstSession
}
