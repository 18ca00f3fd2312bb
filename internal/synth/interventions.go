package synth

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/brightpath/tutorsim/internal/model"
	"github.com/brightpath/tutorsim/internal/randx"
)

// interventionTemplate is the email copy for one playbook.
type interventionTemplate struct {
	subject string
	content string
}

var interventionTemplates = map[model.InterventionType]interventionTemplate{
	model.InterventionEngagement: {
		subject: "Your engagement can improve!",
		content: "Hi %s, we noticed your engagement score has been declining. Here are some tips to improve...",
	},
	model.InterventionFirstSession: {
		subject: "First Session Coaching Available",
		content: "Hi %s, we see you have first sessions coming up. Would you like coaching support?",
	},
	model.InterventionQuality: {
		subject: "Coaching: Improving Your Ratings",
		content: "Hi %s, your recent ratings have declined. Let's work together to improve...",
	},
	model.InterventionTechnical: {
		subject: "Technical Support Available",
		content: "Hi %s, we noticed you've had technical issues. Our support team can help...",
	},
	model.InterventionChurn: {
		subject: "We'd love to keep you!",
		content: "Hi %s, we noticed some concerns. Let's talk about how we can support you...",
	},
}

// ChooseInterventionType applies the fixed priority cascade over a tutor's
// aggregate row: poor first sessions, then high churn risk, then weak recent
// ratings, then technical issues, then low engagement, defaulting to an
// engagement nudge.
func ChooseInterventionType(a *model.TutorAggregate) model.InterventionType {
	switch {
	case a.PoorFirstSessionFlag:
		return model.InterventionFirstSession
	case a.ChurnRiskLevel == model.RiskHigh:
		return model.InterventionChurn
	case a.AvgRating7d != nil && *a.AvgRating7d < 3.8:
		return model.InterventionQuality
	case a.TechnicalIssueRate > 0.15:
		return model.InterventionTechnical
	case a.AvgEngagementScore < 5.5:
		return model.InterventionEngagement
	default:
		return model.InterventionEngagement
	}
}

// InterventionParams configures the intervention generator.
type InterventionParams struct {
	Days int
	Now  time.Time
	Seed int64
}

// InterventionGenerator synthesizes historical outreach for at-risk tutors.
type InterventionGenerator struct {
	params InterventionParams
	rng    *randx.Source
}

// NewInterventionGenerator returns a generator with its own seeded source.
func NewInterventionGenerator(params InterventionParams) *InterventionGenerator {
	return &InterventionGenerator{params: params, rng: randx.New(params.Seed)}
}

// Generate draws 50-100 outreach attempts against the High/Medium risk pool.
// A tutor at the per-tutor cap is skipped, never an error. Post-intervention
// sessions inside a 14-day lookahead override the synthetic after-metrics.
func (g *InterventionGenerator) Generate(
	tutors []model.Tutor,
	aggregates []model.TutorAggregate,
	sessions []model.Session,
	assignments []model.ExperimentAssignment,
	experiments []model.Experiment,
) []model.Intervention {
	rng := g.rng

	tutorIdx := make(map[string]*model.Tutor, len(tutors))
	for i := range tutors {
		tutorIdx[tutors[i].TutorID] = &tutors[i]
	}
	var atRisk []*model.TutorAggregate
	for i := range aggregates {
		a := &aggregates[i]
		if a.ChurnRiskLevel == model.RiskHigh || a.ChurnRiskLevel == model.RiskMedium {
			atRisk = append(atRisk, a)
		}
	}
	if len(atRisk) == 0 {
		zap.L().Warn("interventions: no at-risk tutors, nothing to send")
		return nil
	}

	sessionsByTutor := make(map[string][]*model.Session)
	for i := range sessions {
		s := &sessions[i]
		sessionsByTutor[s.TutorID] = append(sessionsByTutor[s.TutorID], s)
	}
	expStart := make(map[string]time.Time, len(experiments))
	for i := range experiments {
		expStart[experiments[i].ExperimentID] = experiments[i].StartDate
	}
	assignmentsByTutor := make(map[string][]*model.ExperimentAssignment)
	for i := range assignments {
		a := &assignments[i]
		assignmentsByTutor[a.TutorID] = append(assignmentsByTutor[a.TutorID], a)
	}

	start := g.params.Now.AddDate(0, 0, -g.params.Days)
	attempts := int(rng.Uniform(50, 100))
	perTutor := make(map[string]int)

	var out []model.Intervention
	for i := 0; i < attempts; i++ {
		agg := atRisk[rng.IntBetween(0, len(atRisk)-1)]
		if perTutor[agg.TutorID] >= model.MaxInterventionsPerTutor {
			continue
		}
		perTutor[agg.TutorID]++

		// Send day is weighted toward the back of the window.
		dayOffset := int(rng.Beta(2, 1) * float64(g.params.Days))
		sentAt := start.AddDate(0, 0, dayOffset)

		intv := g.one(len(out)+1, agg, sentAt, sessionsByTutor[agg.TutorID], assignmentsByTutor[agg.TutorID], expStart)
		out = append(out, intv)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].SentAt.Before(out[j].SentAt) })

	zap.L().Debug("interventions: generated outreach",
		zap.Int("interventions", len(out)),
		zap.Int("at_risk_pool", len(atRisk)),
	)
	return out
}

func (g *InterventionGenerator) one(
	seq int,
	agg *model.TutorAggregate,
	sentAt time.Time,
	tutorSessions []*model.Session,
	tutorAssignments []*model.ExperimentAssignment,
	expStart map[string]time.Time,
) model.Intervention {
	rng := g.rng
	itype := ChooseInterventionType(agg)
	tmpl := interventionTemplates[itype]

	intv := model.Intervention{
		InterventionID:   intvID(seq),
		TutorID:          agg.TutorID,
		InterventionType: itype,
		Channel:          "email",
		Subject:          tmpl.subject,
		Content:          fmt.Sprintf(tmpl.content, "Tutor "+agg.TutorID[len(agg.TutorID)-3:]),
		TemplateID:       fmt.Sprintf("template_%s_001", itype),
		SentAt:           sentAt,
	}

	// Link the first assignment whose experiment started before the send.
	for _, a := range tutorAssignments {
		if start, ok := expStart[a.ExperimentID]; ok && !start.After(sentAt) {
			intv.ExperimentID = ptr(a.ExperimentID)
			intv.ExperimentVariant = ptr(a.Variant)
			break
		}
	}

	// Before metrics from sessions up to the send time.
	var engagementsBefore []float64
	before7dCount := 0
	for _, s := range tutorSessions {
		if s.SessionDatetime.After(sentAt) {
			continue
		}
		if s.Metrics != nil {
			engagementsBefore = append(engagementsBefore, s.Metrics.EngagementScore)
		}
		if !s.SessionDatetime.Before(sentAt.AddDate(0, 0, -7)) {
			before7dCount++
		}
	}
	engagementBefore := agg.AvgEngagementScore
	if len(engagementsBefore) > 0 {
		engagementBefore = mean(engagementsBefore)
	}

	var engagementAfter float64
	var afterCount int
	switch roll := rng.Float64(); {
	case roll < 0.6:
		// Tutor responded.
		intv.Status = model.InterventionResponded
		opened := sentAt.Add(time.Duration(rng.IntBetween(1, 48)) * time.Hour)
		delivered := opened.Add(-time.Duration(rng.IntBetween(1, 60)) * time.Minute)
		intv.OpenedAt = &opened
		intv.DeliveredAt = &delivered
		if rng.Bernoulli(0.7) {
			clicked := opened.Add(time.Duration(rng.IntBetween(1, 30)) * time.Minute)
			intv.ClickedAt = &clicked
			intv.RespondedAt = &clicked
		}
		intv.ResponseType = ptr("positive")
		engagementAfter = engagementBefore * (1 + rng.Uniform(0.05, 0.25))
		afterCount = before7dCount + rng.IntBetween(1, 4)
	case roll < 0.85:
		// Delivered but ignored.
		intv.Status = model.InterventionDelivered
		delivered := sentAt.Add(time.Duration(rng.IntBetween(1, 60)) * time.Minute)
		intv.DeliveredAt = &delivered
		engagementAfter = engagementBefore * rng.Uniform(0.98, 1.02)
		afterCount = before7dCount + rng.IntBetween(-1, 1)
	default:
		// Opened but no response.
		intv.Status = model.InterventionOpened
		delivered := sentAt.Add(time.Duration(rng.IntBetween(1, 60)) * time.Minute)
		opened := delivered.Add(time.Duration(rng.IntBetween(2, 72)) * time.Hour)
		intv.DeliveredAt = &delivered
		intv.OpenedAt = &opened
		intv.ResponseType = ptr("neutral")
		engagementAfter = engagementBefore * (1 + rng.Uniform(0.01, 0.08))
		afterCount = before7dCount + rng.IntBetween(0, 2)
	}
	if afterCount < 0 {
		afterCount = 0
	}

	// Actual post-send sessions within 14 days override the synthetic deltas.
	lookaheadEnd := sentAt.AddDate(0, 0, 14)
	var actualAfter []float64
	actualCount := 0
	sawLookahead := false
	for _, s := range tutorSessions {
		if !s.SessionDatetime.After(sentAt) || s.SessionDatetime.After(lookaheadEnd) {
			continue
		}
		sawLookahead = true
		if s.Metrics != nil {
			actualAfter = append(actualAfter, s.Metrics.EngagementScore)
		}
		if !s.SessionDatetime.Before(sentAt.AddDate(0, 0, 7)) {
			actualCount++
		}
	}
	if len(actualAfter) > 0 {
		engagementAfter = mean(actualAfter)
	}
	if sawLookahead {
		afterCount = actualCount
	}

	intv.EngagementBefore = roundTo(engagementBefore, 2)
	intv.EngagementAfter = roundTo(engagementAfter, 2)
	intv.SessionsBeforeCount = before7dCount
	intv.SessionsAfterCount = afterCount
	return intv
}
