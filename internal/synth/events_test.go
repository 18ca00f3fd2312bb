package synth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath/tutorsim/internal/model"
)

func eventTestParams() EventParams {
	return EventParams{Days: 14, Now: testNow, Seed: 42}
}

func eventFixture() ([]model.Tutor, []model.Session) {
	tutors := []model.Tutor{
		testTutor("T0001", 300),
		testTutor("T0002", 150),
		testTutor("T0003", 50),
	}
	sessions := []model.Session{
		completedSession("S000001", "T0001", testNow.AddDate(0, 0, -10).Add(15*time.Hour), goodMetrics()),
		completedSession("S000002", "T0001", testNow.AddDate(0, 0, -3).Add(17*time.Hour), goodMetrics()),
		{
			SessionID:         "S000003",
			TutorID:           "T0001",
			SessionDatetime:   testNow.AddDate(0, 0, -2).Add(18 * time.Hour),
			SessionCompleted:  false,
			StudentShowed:     false,
			TutorShowed:       true,
			ConnectionQuality: model.ConnectionGood,
		},
		completedSession("S000004", "T0002", testNow.AddDate(0, 0, -6).Add(10*time.Hour), poorMetrics()),
	}
	return tutors, sessions
}

func TestEventGenerator_CompletionEventsAreDerived(t *testing.T) {
	tutors, sessions := eventFixture()
	events, err := NewEventGenerator(eventTestParams()).Generate(tutors, sessions, nil)
	require.NoError(t, err)

	completions := map[string]model.EngagementEvent{}
	for _, ev := range events {
		if ev.EventType == model.EventSessionCompleted {
			completions[ev.EventData["session_id"].(string)] = ev
		}
	}
	require.Len(t, completions, 3, "one completion event per completed session")
	_, hasIncomplete := completions["S000003"]
	assert.False(t, hasIncomplete)

	ev := completions["S000001"]
	assert.Equal(t, "T0001", ev.TutorID)
	// Fires exactly at session end.
	wantTS := testNow.AddDate(0, 0, -10).Add(15*time.Hour + 58*time.Minute)
	assert.True(t, ev.Timestamp.Equal(wantTS))
	assert.Equal(t, 58, ev.EventData["duration_minutes"])
	assert.Equal(t, 4.8, ev.EventData["rating"])
}

func TestEventGenerator_SortedWithSequentialIDs(t *testing.T) {
	tutors, sessions := eventFixture()
	events, err := NewEventGenerator(eventTestParams()).Generate(tutors, sessions, nil)
	require.NoError(t, err)
	require.NotEmpty(t, events)

	for i, ev := range events {
		assert.Equal(t, eventID(i+1), ev.EventID)
		if i > 0 {
			assert.False(t, ev.Timestamp.Before(events[i-1].Timestamp),
				"events are sorted by timestamp")
		}
	}
}

func TestEventGenerator_LoginEvents(t *testing.T) {
	tutors, sessions := eventFixture()
	events, err := NewEventGenerator(eventTestParams()).Generate(tutors, sessions, nil)
	require.NoError(t, err)

	logins := 0
	for _, ev := range events {
		if ev.EventType != model.EventLogin {
			continue
		}
		logins++
		assert.Contains(t, []string{"desktop", "mobile", "tablet"}, ev.EventData["device"])
		assert.NotEmpty(t, ev.EventData["ip_address"])
	}
	assert.Greater(t, logins, 0)
}

func TestEventGenerator_ScheduledEventsReferenceRealSessions(t *testing.T) {
	tutors, sessions := eventFixture()
	events, err := NewEventGenerator(eventTestParams()).Generate(tutors, sessions, nil)
	require.NoError(t, err)

	known := map[string]bool{}
	for _, s := range sessions {
		known[s.SessionID] = true
	}
	for _, ev := range events {
		if ev.EventType != model.EventSessionScheduled {
			continue
		}
		assert.True(t, known[ev.EventData["session_id"].(string)])
		assert.NotEmpty(t, ev.EventData["scheduled_for"])
	}
}

func TestEventGenerator_EmailEventsRequireInterventions(t *testing.T) {
	tutors, sessions := eventFixture()

	events, err := NewEventGenerator(eventTestParams()).Generate(tutors, sessions, nil)
	require.NoError(t, err)
	for _, ev := range events {
		assert.NotEqual(t, model.EventEmailOpened, ev.EventType)
		assert.NotEqual(t, model.EventEmailClicked, ev.EventType)
	}

	var interventions []model.Intervention
	for i := 0; i < 20; i++ {
		interventions = append(interventions, model.Intervention{
			InterventionID:   intvID(i + 1),
			TutorID:          "T0001",
			InterventionType: model.InterventionChurn,
			SentAt:           testNow.AddDate(0, 0, -7).Add(time.Duration(i) * time.Hour),
		})
	}
	events, err = NewEventGenerator(eventTestParams()).Generate(tutors, sessions, interventions)
	require.NoError(t, err)

	opened := map[string]bool{}
	var clicks []model.EngagementEvent
	for _, ev := range events {
		switch ev.EventType {
		case model.EventEmailOpened:
			assert.Equal(t, "T0001", ev.TutorID)
			assert.Equal(t, "churn", ev.EventData["intervention_type"])
			opened[ev.EventData["intervention_id"].(string)] = true
		case model.EventEmailClicked:
			clicks = append(clicks, ev)
		}
	}
	assert.NotEmpty(t, opened, "70%% open rate over 20 sends yields opens")
	for _, click := range clicks {
		assert.True(t, opened[click.EventData["intervention_id"].(string)],
			"clicks only follow opens")
	}
}

func TestEventGenerator_Deterministic(t *testing.T) {
	tutors, sessions := eventFixture()
	a, err := NewEventGenerator(eventTestParams()).Generate(tutors, sessions, nil)
	require.NoError(t, err)
	b, err := NewEventGenerator(eventTestParams()).Generate(tutors, sessions, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
