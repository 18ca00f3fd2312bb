package synth

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath/tutorsim/internal/model"
	"github.com/brightpath/tutorsim/internal/segment"
)

func TestBuildExperiments_Catalog(t *testing.T) {
	exps := BuildExperiments(testNow, 30)
	require.Len(t, exps, 5)

	for i, exp := range exps {
		assert.Equal(t, fmt.Sprintf("EXP%03d", i+1), exp.ExperimentID)
		assert.NotEmpty(t, exp.Name)
		assert.NotEmpty(t, exp.Hypothesis)
		assert.GreaterOrEqual(t, len(exp.Variants), 3)
		assert.NotEmpty(t, exp.TargetSegment)
		assert.NotEmpty(t, exp.PrimaryMetric)
		assert.Greater(t, exp.SampleSize, 0)

		switch exp.Status {
		case model.ExperimentCompleted:
			require.NotNil(t, exp.EndDate, "%s: completed experiments have an end date", exp.ExperimentID)
			assert.True(t, exp.EndDate.After(exp.StartDate))
			require.NotNil(t, exp.Significance)
		case model.ExperimentActive:
			assert.Nil(t, exp.EndDate)
			assert.Nil(t, exp.Significance)
			assert.Nil(t, exp.Winner)
		default:
			t.Fatalf("unexpected status %q", exp.Status)
		}
	}

	// EXP005 completed without reaching significance, so no winner.
	assert.Equal(t, model.ExperimentCompleted, exps[4].Status)
	assert.Nil(t, exps[4].Winner)
	require.NotNil(t, exps[0].Winner)
	assert.Equal(t, "treatment_a", *exps[0].Winner)
}

// assignmentFixture builds n tutors where even indices are High risk and odd
// indices are Low risk, all with aggregate rows.
func assignmentFixture(n int) ([]model.Tutor, []model.TutorAggregate, []string) {
	var tutors []model.Tutor
	var aggregates []model.TutorAggregate
	var highIDs []string
	for i := 0; i < n; i++ {
		id := tutorID(i + 1)
		tutors = append(tutors, testTutor(id, 100))
		agg := model.TutorAggregate{
			TutorID:            id,
			AvgEngagementScore: 7,
			ChurnProbability:   0.1,
			ChurnRiskLevel:     model.RiskLow,
		}
		if i%2 == 0 {
			agg.ChurnProbability = 0.7
			agg.ChurnRiskLevel = model.RiskHigh
			highIDs = append(highIDs, id)
		}
		aggregates = append(aggregates, agg)
	}
	return tutors, aggregates, highIDs
}

func highRiskExperiment(status model.ExperimentStatus) model.Experiment {
	exp := model.Experiment{
		ExperimentID:  "EXP901",
		Name:          "High Risk Outreach",
		Variants:      []string{"control", "treatment"},
		TargetSegment: segment.Segment{"churn_risk_level": segment.In("High")},
		PrimaryMetric: "engagement_lift",
		StartDate:     testNow.AddDate(0, 0, -20),
		Status:        status,
	}
	if status == model.ExperimentCompleted {
		end := testNow.AddDate(0, 0, -5)
		exp.EndDate = &end
	}
	return exp
}

func TestAssignmentGenerator_CompletedEnrollsFullEligiblePool(t *testing.T) {
	tutors, aggregates, highIDs := assignmentFixture(40)
	exps := []model.Experiment{highRiskExperiment(model.ExperimentCompleted)}

	assignments := NewAssignmentGenerator(42).Generate(exps, tutors, aggregates)
	require.Len(t, assignments, len(highIDs))

	assigned := map[string]bool{}
	for _, a := range assignments {
		assert.Equal(t, "EXP901", a.ExperimentID)
		assert.Contains(t, exps[0].Variants, a.Variant)
		assigned[a.TutorID] = true
	}
	for _, id := range highIDs {
		assert.True(t, assigned[id], "every eligible tutor is enrolled")
	}
}

func TestAssignmentGenerator_ActiveEnrollsSubset(t *testing.T) {
	tutors, aggregates, highIDs := assignmentFixture(200) // 100 eligible
	exps := []model.Experiment{highRiskExperiment(model.ExperimentActive)}

	assignments := NewAssignmentGenerator(42).Generate(exps, tutors, aggregates)
	assert.GreaterOrEqual(t, len(assignments), 60)
	assert.Less(t, len(assignments), 80)
	assert.Less(t, len(assignments), len(highIDs))
}

func TestAssignmentGenerator_FunnelOrdering(t *testing.T) {
	tutors, aggregates, _ := assignmentFixture(200)
	exps := []model.Experiment{highRiskExperiment(model.ExperimentCompleted)}

	assignments := NewAssignmentGenerator(42).Generate(exps, tutors, aggregates)
	require.NotEmpty(t, assignments)

	var converted int
	for i, a := range assignments {
		if i > 0 {
			assert.False(t, a.AssignedAt.Before(assignments[i-1].AssignedAt),
				"assignments are sorted by assignment time")
		}
		assert.False(t, a.AssignedAt.Before(exps[0].StartDate))

		if a.ConvertedAt != nil {
			require.NotNil(t, a.ExposedAt, "conversion requires exposure")
			assert.True(t, a.ConvertedAt.After(*a.ExposedAt))
			require.NotNil(t, a.ConversionValue)
			assert.Greater(t, *a.ConversionValue, 0.0)
			converted++
		} else {
			assert.Nil(t, a.ConversionValue, "conversion value requires conversion")
		}
		if a.ExposedAt != nil {
			assert.True(t, a.ExposedAt.After(a.AssignedAt))
		}
	}
	assert.Greater(t, converted, 0, "a completed experiment converts some tutors")
}

func TestAssignmentGenerator_NoEligibleTutors(t *testing.T) {
	tutors, aggregates, _ := assignmentFixture(10)
	for i := range aggregates {
		aggregates[i].ChurnRiskLevel = model.RiskLow
	}
	exps := []model.Experiment{highRiskExperiment(model.ExperimentCompleted)}
	assignments := NewAssignmentGenerator(42).Generate(exps, tutors, aggregates)
	assert.Empty(t, assignments)
}

func TestAssignmentGenerator_Deterministic(t *testing.T) {
	tutors, aggregates, _ := assignmentFixture(60)
	exps := BuildExperiments(testNow, 30)

	a := NewAssignmentGenerator(42).Generate(exps, tutors, aggregates)
	b := NewAssignmentGenerator(42).Generate(BuildExperiments(testNow, 30), tutors, aggregates)
	assert.Equal(t, a, b)
}
