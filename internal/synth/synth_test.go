package synth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/brightpath/tutorsim/internal/model"
)

// Shared fixture helpers for the generator tests.

func fptr(v float64) *float64 { return &v }
func bptr(v bool) *bool       { return &v }

var testNow = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC) // a Monday

func testTutor(id string, totalSessions int) model.Tutor {
	return model.Tutor{
		TutorID:                id,
		MonthsExperience:       24,
		TotalSessionsCompleted: totalSessions,
		AvgHistoricalRating:    4.2,
		SubjectsTaught:         []string{"Math", "Science"},
		PrimarySubject:         "Math",
		RescheduleRate:         0.05,
		ReliabilityScore:       0.8,
		CertificationLevel:     model.CertificationAdvanced,
		ActiveStatus:           true,
	}
}

func goodMetrics() *model.SessionMetrics {
	return &model.SessionMetrics{
		StudentAttentionPct: 85,
		TutorCameraOnPct:    95,
		TutorSpeakRatio:     0.5,
		ScreenSharePct:      40,
		OverallSentiment:    0.6,
		StudentSentiment:    0.65,
		TutorSentiment:      0.55,
		EmpathyScore:        8,
		ClarityScore:        8,
		EngagementScore:     8,
		StudentRating:       4.8,
		StudentSatisfaction: 9,
		WouldRecommend:      true,
	}
}

func poorMetrics() *model.SessionMetrics {
	return &model.SessionMetrics{
		StudentAttentionPct: 40,
		TutorCameraOnPct:    75,
		TutorSpeakRatio:     0.7,
		ScreenSharePct:      15,
		OverallSentiment:    -0.1,
		StudentSentiment:    -0.1,
		TutorSentiment:      0.2,
		EmpathyScore:        4,
		ClarityScore:        4,
		EngagementScore:     4,
		StudentRating:       2.5,
		StudentSatisfaction: 4,
		HadTechnicalIssues:  true,
	}
}

func completedSession(id, tutorID string, at time.Time, m *model.SessionMetrics) model.Session {
	return model.Session{
		SessionID:            id,
		TutorID:              tutorID,
		SessionDatetime:      at,
		ScheduledDurationMin: 60,
		ActualDurationMin:    58,
		Subject:              "Math",
		GradeLevel:           "High School",
		IsFirstSession:       bptr(false),
		SessionCompleted:     true,
		StudentShowed:        true,
		TutorShowed:          true,
		ConnectionQuality:    model.ConnectionGood,
		Metrics:              m,
	}
}

func TestClip(t *testing.T) {
	assert.Equal(t, 1.0, clip(0.5, 1, 5))
	assert.Equal(t, 5.0, clip(7, 1, 5))
	assert.Equal(t, 3.0, clip(3, 1, 5))
}

func TestRoundTo(t *testing.T) {
	assert.Equal(t, 3.14, roundTo(3.14159, 2))
	assert.Equal(t, 3.142, roundTo(3.14159, 3))
	assert.Equal(t, 0.1, roundTo(0.05, 1))
}

func TestMean(t *testing.T) {
	assert.Zero(t, mean(nil))
	assert.Equal(t, 2.5, mean([]float64{1, 2, 3, 4}))
}

func TestIDFormats(t *testing.T) {
	assert.Equal(t, "T0007", tutorID(7))
	assert.Equal(t, "T0150", tutorID(150))
	assert.Equal(t, "S000042", sessionID(42))
	assert.Equal(t, "EV000001", eventID(1))
	assert.Equal(t, "INT0011", intvID(11))
}
