package churn

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath/tutorsim/internal/model"
)

func fp(v float64) *float64 { return &v }

// separableFixture builds a join where churned tutors are cleanly separated
// from retained ones on engagement, rating, and volume.
func separableFixture(n int) ([]model.Tutor, []model.TutorAggregate) {
	tutors := make([]model.Tutor, 0, n)
	aggregates := make([]model.TutorAggregate, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("T%04d", i+1)
		churned := i%2 == 0

		tu := model.Tutor{
			TutorID:            id,
			MonthsExperience:   30,
			CertificationLevel: model.CertificationBasic,
		}
		agg := model.TutorAggregate{TutorID: id}
		if churned {
			agg.ChurnProbability = 0.9
			agg.ChurnRiskLevel = model.RiskHigh
			agg.AvgEngagementScore = 2.0 + float64(i%5)*0.1
			agg.AvgRating30d = fp(2.5)
			agg.TotalSessions30d = 2
			agg.PoorFirstSessionFlag = true
		} else {
			agg.ChurnProbability = 0.1
			agg.ChurnRiskLevel = model.RiskLow
			agg.AvgEngagementScore = 9.0 - float64(i%5)*0.1
			agg.AvgRating30d = fp(4.8)
			agg.TotalSessions30d = 25
		}
		tutors = append(tutors, tu)
		aggregates = append(aggregates, agg)
	}
	return tutors, aggregates
}

func TestTrain_NoRows(t *testing.T) {
	_, err := Train(nil, nil, 42)
	require.Error(t, err)
}

func TestTrain_OrphanAggregate(t *testing.T) {
	aggs := []model.TutorAggregate{{TutorID: "T9999", ChurnProbability: 0.9}}
	_, err := Train(nil, aggs, 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "T9999")
}

func TestTrain_DegenerateLabelsSkips(t *testing.T) {
	tutors, aggregates := separableFixture(20)
	for i := range aggregates {
		aggregates[i].ChurnProbability = 0.1 // nobody churns
	}
	res, err := Train(tutors, aggregates, 42)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, res.Weights)
}

func TestTrain_LearnsSeparableData(t *testing.T) {
	tutors, aggregates := separableFixture(80)
	res, err := Train(tutors, aggregates, 42)
	require.NoError(t, err)
	require.False(t, res.Skipped)

	assert.Equal(t, 20, res.TestSize)
	assert.Equal(t, 60, res.TrainSize)
	assert.Greater(t, res.Accuracy, 0.8, "cleanly separable classes should be learnable")

	require.Len(t, res.Weights, len(featureNames))
	for i := 1; i < len(res.Weights); i++ {
		assert.GreaterOrEqual(t, res.Weights[i-1].Weight, res.Weights[i].Weight,
			"weights are sorted highest first")
	}

	// Low engagement drives the churn label, so its coefficient is negative.
	byName := map[string]float64{}
	for _, w := range res.Weights {
		byName[w.Feature] = w.Weight
	}
	assert.Less(t, byName["avg_engagement_score"], 0.0)
}

func TestTrain_Deterministic(t *testing.T) {
	tutors, aggregates := separableFixture(80)
	a, err := Train(tutors, aggregates, 7)
	require.NoError(t, err)
	b, err := Train(tutors, aggregates, 7)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFeatureVector_NilFills(t *testing.T) {
	tu := &model.Tutor{
		TutorID:            "T0001",
		MonthsExperience:   40, // Senior
		CertificationLevel: model.CertificationExpert,
	}
	agg := &model.TutorAggregate{TutorID: "T0001", PoorFirstSessionFlag: true}

	v := featureVector(tu, agg)
	require.Len(t, v, len(featureNames))

	assert.Equal(t, 40.0, v[0])
	assert.Zero(t, v[3], "nil avg_rating_30d is zero-filled")
	assert.Zero(t, v[4], "nil avg_rating_7d is zero-filled")
	assert.Zero(t, v[9], "nil first_session_avg_rating is zero-filled")
	assert.Equal(t, 1.0, v[11], "poor_first_session_flag one-hot")
	assert.Zero(t, v[15], "not Mid tier")
	assert.Equal(t, 1.0, v[16], "Senior tier")
	assert.Zero(t, v[17])
	assert.Equal(t, 1.0, v[18], "Expert certification")
}

func TestStandardize(t *testing.T) {
	rows := [][]float64{
		make([]float64, len(featureNames)),
		make([]float64, len(featureNames)),
	}
	rows[0][0] = 2
	rows[1][0] = 4

	means, stds := standardize(rows)
	assert.Equal(t, 3.0, means[0])
	assert.Equal(t, 1.0, stds[0])
	assert.Equal(t, 1.0, stds[1], "zero-variance columns fall back to unit scale")

	apply(rows, means, stds)
	assert.Equal(t, -1.0, rows[0][0])
	assert.Equal(t, 1.0, rows[1][0])
}
