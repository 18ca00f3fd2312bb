package synth

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/brightpath/tutorsim/internal/model"
	"github.com/brightpath/tutorsim/internal/randx"
)

// EventParams configures the behavioral event generator.
type EventParams struct {
	Days int
	Now  time.Time
	Seed int64
}

// EventGenerator synthesizes per-tutor behavioral event streams. Logins are
// biased toward the tutor's morning/evening preference and, 60% of the time
// when an upcoming session exists, shifted to land 1-4 hours before it.
// session_completed events are derived, not sampled: one per completed
// session at session end. When interventions are supplied, email_opened and
// email_clicked events are appended off each sent_at.
type EventGenerator struct {
	params EventParams
	rng    *randx.Source
}

// NewEventGenerator returns a generator with its own seeded source.
func NewEventGenerator(params EventParams) *EventGenerator {
	return &EventGenerator{params: params, rng: randx.New(params.Seed)}
}

// tutorActivity is a tutor's stable event-timing pattern for the run.
type tutorActivity struct {
	morning       bool
	activityLevel float64
	coachingCount int
}

// Generate produces the event table sorted by timestamp with sequential ids.
// interventions may be nil; sessions drive the correlated timings.
func (g *EventGenerator) Generate(tutors []model.Tutor, sessions []model.Session, interventions []model.Intervention) ([]model.EngagementEvent, error) {
	rng := g.rng
	days := g.params.Days
	start := g.params.Now.AddDate(0, 0, -days)

	sessionsByTutor := make(map[string][]*model.Session)
	for i := range sessions {
		s := &sessions[i]
		sessionsByTutor[s.TutorID] = append(sessionsByTutor[s.TutorID], s)
	}
	for _, list := range sessionsByTutor {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].SessionDatetime.Before(list[j].SessionDatetime)
		})
	}

	var events []model.EngagementEvent
	add := func(tutorID string, et model.EventType, ts time.Time, data map[string]any) {
		events = append(events, model.EngagementEvent{
			TutorID:   tutorID,
			EventType: et,
			EventData: data,
			Timestamp: ts,
		})
	}

	for i := range tutors {
		t := &tutors[i]
		pattern := tutorActivity{
			morning:       rng.Bernoulli(0.35),
			activityLevel: t.ReliabilityScore * rng.Uniform(0.8, 1.2),
			coachingCount: rng.Poisson(0.5),
		}
		tutorSessions := sessionsByTutor[t.TutorID]

		logins := g.loginEvents(t, pattern, tutorSessions, start)

		// 70% of logins lead to scheduling the next upcoming session.
		schedulable := int(float64(len(logins)) * 0.7)
		for _, login := range logins[:schedulable] {
			schedAt := login.Timestamp.Add(time.Duration(rng.IntBetween(30, 60)) * time.Minute)
			next := firstSessionAfter(tutorSessions, schedAt)
			if next == nil {
				continue
			}
			add(t.TutorID, model.EventSessionScheduled, schedAt, map[string]any{
				"session_id":    next.SessionID,
				"scheduled_for": next.SessionDatetime.Format(time.RFC3339),
			})
		}

		// Completion events are exact derivations, one per completed session.
		for _, s := range tutorSessions {
			if !s.SessionCompleted {
				continue
			}
			data := map[string]any{
				"session_id":       s.SessionID,
				"duration_minutes": s.ActualDurationMin,
			}
			if s.Metrics != nil {
				data["rating"] = s.Metrics.StudentRating
			}
			add(t.TutorID, model.EventSessionCompleted,
				s.SessionDatetime.Add(time.Duration(s.ActualDurationMin)*time.Minute), data)
		}

		events = append(events, logins...)

		// Profile updates, 1-2 per month.
		updates := int(rng.Uniform(1, 2) * float64(days) / 30)
		for u := 0; u < updates; u++ {
			ts := start.AddDate(0, 0, rng.IntBetween(0, days-1)).
				Add(time.Duration(rng.IntBetween(10, 18)) * time.Hour)
			add(t.TutorID, model.EventProfileUpdated, ts, map[string]any{
				"field": randx.Choice(rng, []string{"bio", "availability", "subjects", "certification"}),
			})
		}

		// Occasional messaging, 2-5 per month.
		messages := int(rng.Uniform(2, 5) * float64(days) / 30)
		for m := 0; m < messages; m++ {
			ts := start.AddDate(0, 0, rng.IntBetween(0, days-1)).
				Add(time.Duration(rng.IntBetween(9, 20)) * time.Hour)
			add(t.TutorID, model.EventMessageSent, ts, map[string]any{
				"recipient_type": randx.Choice(rng, []string{"student", "admin", "support"}),
				"message_length": rng.IntBetween(50, 500),
			})
		}

		// Coaching pairs, at most weekly.
		coaching := pattern.coachingCount
		if max := days / 7; coaching > max {
			coaching = max
		}
		for c := 0; c < coaching; c++ {
			scheduled := start.AddDate(0, 0, rng.IntBetween(0, days-2)).
				Add(time.Duration(rng.IntBetween(10, 16)) * time.Hour)
			attended := scheduled.AddDate(0, 0, rng.IntBetween(1, 2)).
				Add(time.Duration(rng.IntBetween(10, 16)) * time.Hour)
			add(t.TutorID, model.EventCoachingScheduled, scheduled, map[string]any{
				"scheduled_for": attended.Format(time.RFC3339),
			})
			add(t.TutorID, model.EventCoachingAttended, attended, map[string]any{
				"duration_minutes": rng.IntBetween(30, 60),
				"topic":            randx.Choice(rng, []string{"engagement", "quality", "technical", "support"}),
			})
		}
	}

	// Email events hang off each intervention's send.
	for i := range interventions {
		intv := &interventions[i]
		if !rng.Bernoulli(0.7) {
			continue
		}
		opened := intv.SentAt.Add(time.Duration(rng.IntBetween(1, 48)) * time.Hour)
		add(intv.TutorID, model.EventEmailOpened, opened, map[string]any{
			"intervention_id":   intv.InterventionID,
			"intervention_type": string(intv.InterventionType),
			"email_provider":    randx.Choice(rng, []string{"gmail", "outlook", "yahoo", "other"}),
		})
		if rng.Bernoulli(0.35) {
			clicked := opened.Add(time.Duration(rng.IntBetween(1, 30)) * time.Minute)
			add(intv.TutorID, model.EventEmailClicked, clicked, map[string]any{
				"intervention_id": intv.InterventionID,
				"link_clicked":    randx.Choice(rng, []string{"dashboard", "support", "resources"}),
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	for i := range events {
		events[i].EventID = eventID(i + 1)
	}

	zap.L().Debug("events: generated stream", zap.Int("events", len(events)))
	return events, nil
}

// loginEvents draws 2-5 logins per week in the tutor's preferred hours; 60%
// of logins with a session the same or next day shift to 1-4 hours before it.
func (g *EventGenerator) loginEvents(t *model.Tutor, pattern tutorActivity, tutorSessions []*model.Session, start time.Time) []model.EngagementEvent {
	rng := g.rng
	days := g.params.Days

	perWeek := int(rng.Uniform(2, 5))
	total := perWeek * days / 7

	logins := make([]model.EngagementEvent, 0, total)
	for i := 0; i < total; i++ {
		day := rng.IntBetween(0, days-1)
		hour := randx.Choice(rng, []int{17, 18, 19, 20, 21})
		if pattern.morning {
			hour = randx.Choice(rng, []int{7, 8, 9, 10, 11})
		}
		ts := start.AddDate(0, 0, day).
			Add(time.Duration(hour)*time.Hour + time.Duration(rng.IntBetween(0, 59))*time.Minute)

		var correlated any
		if len(tutorSessions) > 0 && rng.Bernoulli(0.6) {
			if s := nearbySession(tutorSessions, ts); s != nil && s.SessionDatetime.After(ts) {
				hoursBefore := rng.Uniform(1, 4)
				ts = s.SessionDatetime.Add(-time.Duration(hoursBefore * float64(time.Hour)))
				correlated = s.SessionID
			}
		}

		logins = append(logins, model.EngagementEvent{
			TutorID:   t.TutorID,
			EventType: model.EventLogin,
			Timestamp: ts,
			EventData: map[string]any{
				"ip_address":         fmt.Sprintf("192.168.%d.%d", rng.IntBetween(1, 255), rng.IntBetween(1, 255)),
				"device":             randx.Choice(rng, []string{"desktop", "mobile", "tablet"}),
				"correlated_session": correlated,
			},
		})
	}
	return logins
}

// nearbySession returns the tutor's earliest session on the same or next day.
func nearbySession(sessions []*model.Session, ts time.Time) *model.Session {
	dayStart := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
	dayEnd := dayStart.AddDate(0, 0, 2)
	for _, s := range sessions {
		if !s.SessionDatetime.Before(dayStart) && s.SessionDatetime.Before(dayEnd) {
			return s
		}
	}
	return nil
}

func firstSessionAfter(sessions []*model.Session, ts time.Time) *model.Session {
	for _, s := range sessions {
		if s.SessionDatetime.After(ts) {
			return s
		}
	}
	return nil
}
