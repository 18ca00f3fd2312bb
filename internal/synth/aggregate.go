package synth

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/brightpath/tutorsim/internal/model"
	"github.com/brightpath/tutorsim/internal/randx"
)

// Aggregator rolls sessions up per tutor and scores churn risk. Windowing is
// relative to the latest session_datetime across the whole stream, not wall
// clock, so a dataset aggregates identically no matter when it is processed.
type Aggregator struct {
	rng *randx.Source
}

// NewAggregator returns an aggregator with its own seeded source (the churn
// probability carries a bounded noise term).
func NewAggregator(seed int64) *Aggregator {
	return &Aggregator{rng: randx.New(seed)}
}

// tutorRollup accumulates one tutor's completed-session statistics.
type tutorRollup struct {
	ratings        []float64
	engagement     []float64
	empathy        []float64
	clarity        []float64
	satisfaction   []float64
	recommends     int
	techIssues     int
	completed      int
	firstRatings   []float64
	ratings7d      []float64
	sentiments7d   []float64
	ratings30d     []float64
	sessions7d     int
	sessions30d    int
}

// Aggregate produces one row per tutor that has at least one completed
// session; tutors with none are excluded, not zero-filled.
func (a *Aggregator) Aggregate(tutors []model.Tutor, sessions []model.Session) ([]model.TutorAggregate, error) {
	if len(sessions) == 0 {
		return nil, eris.New("aggregate: empty session stream")
	}

	var now time.Time
	for i := range sessions {
		if sessions[i].SessionDatetime.After(now) {
			now = sessions[i].SessionDatetime
		}
	}
	cut7 := now.AddDate(0, 0, -7)
	cut30 := now.AddDate(0, 0, -30)

	rollups := make(map[string]*tutorRollup, len(tutors))
	for i := range sessions {
		s := &sessions[i]
		if !s.SessionCompleted {
			continue
		}
		r := rollups[s.TutorID]
		if r == nil {
			r = &tutorRollup{}
			rollups[s.TutorID] = r
		}
		r.observe(s, cut7, cut30)
	}

	aggregates := make([]model.TutorAggregate, 0, len(rollups))
	for i := range tutors {
		t := &tutors[i]
		r := rollups[t.TutorID]
		if r == nil {
			continue
		}
		aggregates = append(aggregates, a.score(t, r))
	}

	zap.L().Debug("aggregate: rolled up tutors",
		zap.Int("tutors_with_sessions", len(aggregates)),
		zap.Time("window_end", now),
	)
	return aggregates, nil
}

func (r *tutorRollup) observe(s *model.Session, cut7, cut30 time.Time) {
	m := s.Metrics
	r.completed++
	r.ratings = append(r.ratings, m.StudentRating)
	r.engagement = append(r.engagement, m.EngagementScore)
	r.empathy = append(r.empathy, m.EmpathyScore)
	r.clarity = append(r.clarity, m.ClarityScore)
	r.satisfaction = append(r.satisfaction, m.StudentSatisfaction)
	if m.WouldRecommend {
		r.recommends++
	}
	if m.HadTechnicalIssues {
		r.techIssues++
	}
	if s.FirstSession() {
		r.firstRatings = append(r.firstRatings, m.StudentRating)
	}
	if !s.SessionDatetime.Before(cut30) {
		r.sessions30d++
		r.ratings30d = append(r.ratings30d, m.StudentRating)
	}
	if !s.SessionDatetime.Before(cut7) {
		r.sessions7d++
		r.ratings7d = append(r.ratings7d, m.StudentRating)
		r.sentiments7d = append(r.sentiments7d, m.OverallSentiment)
	}
}

// score applies the fixed churn-signal rule set and policy constants.
func (a *Aggregator) score(t *model.Tutor, r *tutorRollup) model.TutorAggregate {
	signals := 0

	// 1. Recent ratings drop at least 0.3 below the all-time mean.
	if len(r.ratings7d) >= 3 && mean(r.ratings7d) < mean(r.ratings)-0.3 {
		signals++
	}
	// 2. Low all-time engagement.
	if mean(r.engagement) < 5.5 {
		signals++
	}
	// 3. High static reschedule rate.
	if t.RescheduleRate > 0.15 {
		signals++
	}
	// 4. Poor first sessions, double weight.
	poorFirst := len(r.firstRatings) > 0 && mean(r.firstRatings) < 3.5
	if poorFirst {
		signals += 2
	}
	// 5. Historical no-shows.
	if t.NoShowCount > 2 {
		signals++
	}
	// 6. Activity collapsing: 7-day volume under a quarter of the 30-day volume.
	if float64(r.sessions7d) < float64(r.sessions30d)/4 {
		signals++
	}

	prob := float64(signals) * model.ChurnSignalWeight
	if prob > model.ChurnProbCap {
		prob = model.ChurnProbCap
	}
	prob += a.rng.Uniform(0, model.ChurnNoiseCeiling)
	// Round before categorizing so the emitted probability and level agree.
	prob = roundTo(prob, 3)

	agg := model.TutorAggregate{
		TutorID:                t.TutorID,
		TotalSessions30d:       r.sessions30d,
		TotalSessions7d:        r.sessions7d,
		AvgEngagementScore:     roundTo(mean(r.engagement), 2),
		AvgEmpathyScore:        roundTo(mean(r.empathy), 2),
		AvgClarityScore:        roundTo(mean(r.clarity), 2),
		AvgStudentSatisfaction: roundTo(mean(r.satisfaction), 2),
		FirstSessionCount:      len(r.firstRatings),
		PoorFirstSessionFlag:   poorFirst,
		RecommendationRate:     roundTo(float64(r.recommends)/float64(r.completed), 3),
		TechnicalIssueRate:     roundTo(float64(r.techIssues)/float64(r.completed), 3),
		ChurnProbability:       prob,
		ChurnRiskLevel:         model.RiskLevelFor(prob),
		ChurnSignalsDetected:   signals,
	}
	if len(r.ratings30d) > 0 {
		v := roundTo(mean(r.ratings30d), 2)
		agg.AvgRating30d = &v
	}
	if len(r.ratings7d) > 0 {
		v := roundTo(mean(r.ratings7d), 2)
		agg.AvgRating7d = &v
	}
	if len(r.firstRatings) > 0 {
		v := roundTo(mean(r.firstRatings), 2)
		agg.FirstSessionAvgRating = &v
	}
	if len(r.sentiments7d) > 0 {
		v := roundTo(mean(r.sentiments7d), 3)
		agg.SentimentTrend7d = &v
	}
	return agg
}
