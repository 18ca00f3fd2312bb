package synth

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath/tutorsim/internal/model"
)

func TestChooseInterventionType_PriorityCascade(t *testing.T) {
	cases := []struct {
		name string
		agg  model.TutorAggregate
		want model.InterventionType
	}{
		{
			name: "poor first sessions win over everything",
			agg: model.TutorAggregate{
				PoorFirstSessionFlag: true,
				ChurnRiskLevel:       model.RiskHigh,
				AvgRating7d:          fptr(2.0),
				TechnicalIssueRate:   0.5,
			},
			want: model.InterventionFirstSession,
		},
		{
			name: "high churn risk next",
			agg: model.TutorAggregate{
				ChurnRiskLevel:     model.RiskHigh,
				AvgRating7d:        fptr(2.0),
				TechnicalIssueRate: 0.5,
			},
			want: model.InterventionChurn,
		},
		{
			name: "weak recent ratings",
			agg: model.TutorAggregate{
				ChurnRiskLevel:     model.RiskMedium,
				AvgRating7d:        fptr(3.7),
				TechnicalIssueRate: 0.5,
			},
			want: model.InterventionQuality,
		},
		{
			name: "technical issues",
			agg: model.TutorAggregate{
				ChurnRiskLevel:     model.RiskMedium,
				AvgRating7d:        fptr(4.5),
				TechnicalIssueRate: 0.2,
			},
			want: model.InterventionTechnical,
		},
		{
			name: "low engagement",
			agg: model.TutorAggregate{
				ChurnRiskLevel:     model.RiskMedium,
				AvgEngagementScore: 5.0,
			},
			want: model.InterventionEngagement,
		},
		{
			name: "nil recent rating is not a quality trigger",
			agg: model.TutorAggregate{
				ChurnRiskLevel:     model.RiskMedium,
				AvgEngagementScore: 8.0,
			},
			want: model.InterventionEngagement,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ChooseInterventionType(&tc.agg))
		})
	}
}

func interventionFixture(atRisk int) ([]model.Tutor, []model.TutorAggregate) {
	var tutors []model.Tutor
	var aggregates []model.TutorAggregate
	for i := 0; i < atRisk; i++ {
		id := tutorID(i + 1)
		tutors = append(tutors, testTutor(id, 100))
		aggregates = append(aggregates, model.TutorAggregate{
			TutorID:            id,
			AvgEngagementScore: 5.0,
			ChurnProbability:   0.6,
			ChurnRiskLevel:     model.RiskHigh,
		})
	}
	return tutors, aggregates
}

func interventionTestParams() InterventionParams {
	return InterventionParams{Days: 30, Now: testNow, Seed: 42}
}

func TestInterventionGenerator_EmptyPool(t *testing.T) {
	tutors, aggregates := interventionFixture(3)
	for i := range aggregates {
		aggregates[i].ChurnRiskLevel = model.RiskLow
	}
	out := NewInterventionGenerator(interventionTestParams()).
		Generate(tutors, aggregates, nil, nil, nil)
	assert.Empty(t, out)
}

func TestInterventionGenerator_PerTutorCap(t *testing.T) {
	tutors, aggregates := interventionFixture(5)
	out := NewInterventionGenerator(interventionTestParams()).
		Generate(tutors, aggregates, nil, nil, nil)

	require.NotEmpty(t, out)
	assert.LessOrEqual(t, len(out), 5*model.MaxInterventionsPerTutor)

	perTutor := map[string]int{}
	for _, intv := range out {
		perTutor[intv.TutorID]++
	}
	for id, n := range perTutor {
		assert.LessOrEqual(t, n, model.MaxInterventionsPerTutor, "tutor %s over cap", id)
	}
}

func TestInterventionGenerator_RecordInvariants(t *testing.T) {
	tutors, aggregates := interventionFixture(40)
	p := interventionTestParams()
	out := NewInterventionGenerator(p).Generate(tutors, aggregates, nil, nil, nil)
	require.NotEmpty(t, out)

	start := p.Now.AddDate(0, 0, -p.Days)
	ids := map[string]bool{}
	for i, intv := range out {
		require.False(t, ids[intv.InterventionID], "intervention ids are unique")
		ids[intv.InterventionID] = true

		if i > 0 {
			assert.False(t, intv.SentAt.Before(out[i-1].SentAt), "sorted by send time")
		}
		assert.False(t, intv.SentAt.Before(start))
		assert.False(t, intv.SentAt.After(p.Now))

		assert.Equal(t, "email", intv.Channel)
		assert.NotEmpty(t, intv.Subject)
		assert.NotEmpty(t, intv.Content)
		assert.Equal(t, fmt.Sprintf("template_%s_001", intv.InterventionType), intv.TemplateID)

		// High churn risk without a poor-first-session flag is always the
		// churn playbook in this fixture.
		assert.Equal(t, model.InterventionChurn, intv.InterventionType)

		switch intv.Status {
		case model.InterventionResponded:
			require.NotNil(t, intv.DeliveredAt)
			require.NotNil(t, intv.OpenedAt)
			require.NotNil(t, intv.ResponseType)
			assert.Equal(t, "positive", *intv.ResponseType)
			assert.True(t, intv.OpenedAt.After(intv.SentAt))
			if intv.ClickedAt != nil {
				require.NotNil(t, intv.RespondedAt)
				assert.True(t, intv.ClickedAt.After(*intv.OpenedAt))
			}
		case model.InterventionDelivered:
			require.NotNil(t, intv.DeliveredAt)
			assert.Nil(t, intv.OpenedAt)
			assert.Nil(t, intv.RespondedAt)
			assert.Nil(t, intv.ResponseType)
		case model.InterventionOpened:
			require.NotNil(t, intv.DeliveredAt)
			require.NotNil(t, intv.OpenedAt)
			assert.True(t, intv.OpenedAt.After(*intv.DeliveredAt))
			assert.Nil(t, intv.RespondedAt)
			require.NotNil(t, intv.ResponseType)
			assert.Equal(t, "neutral", *intv.ResponseType)
		default:
			t.Fatalf("unexpected status %q", intv.Status)
		}

		assert.GreaterOrEqual(t, intv.SessionsAfterCount, 0)
	}
}

func TestInterventionGenerator_ExperimentLink(t *testing.T) {
	tutors, aggregates := interventionFixture(40)
	exps := []model.Experiment{highRiskExperiment(model.ExperimentCompleted)}
	assignments := NewAssignmentGenerator(42).Generate(exps, tutors, aggregates)
	require.NotEmpty(t, assignments)

	out := NewInterventionGenerator(interventionTestParams()).
		Generate(tutors, aggregates, nil, assignments, exps)
	require.NotEmpty(t, out)

	linked := 0
	for _, intv := range out {
		if intv.ExperimentID == nil {
			assert.Nil(t, intv.ExperimentVariant)
			continue
		}
		linked++
		assert.Equal(t, "EXP901", *intv.ExperimentID)
		require.NotNil(t, intv.ExperimentVariant)
		assert.False(t, exps[0].StartDate.After(intv.SentAt),
			"linked experiment must have started before the send")
	}
	assert.Greater(t, linked, 0)
}

func TestInterventionGenerator_ActualSessionsOverrideAfterMetrics(t *testing.T) {
	tutors, aggregates := interventionFixture(1)
	// A dense post-send session history pins the after-engagement to actuals.
	var sessions []model.Session
	for d := 0; d < 30; d++ {
		at := testNow.AddDate(0, 0, -30+d).Add(12 * time.Hour)
		sessions = append(sessions,
			completedSession(sessionID(d+1), "T0001", at, goodMetrics()))
	}

	out := NewInterventionGenerator(interventionTestParams()).
		Generate(tutors, aggregates, sessions, nil, nil)
	require.NotEmpty(t, out)

	for _, intv := range out {
		// goodMetrics engagement is 8; any send with lookahead sessions
		// reports that actual level regardless of the funnel outcome.
		if intv.SentAt.Before(testNow.AddDate(0, 0, -1)) {
			assert.Equal(t, 8.0, intv.EngagementAfter)
		}
	}
}

func TestInterventionGenerator_Deterministic(t *testing.T) {
	tutors, aggregates := interventionFixture(20)
	a := NewInterventionGenerator(interventionTestParams()).
		Generate(tutors, aggregates, nil, nil, nil)
	b := NewInterventionGenerator(interventionTestParams()).
		Generate(tutors, aggregates, nil, nil, nil)
	assert.Equal(t, a, b)
}
