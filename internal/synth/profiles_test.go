package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath/tutorsim/internal/model"
)

func TestProfileGenerator_RejectsNonPositiveCount(t *testing.T) {
	_, err := NewProfileGenerator(42).Generate(0)
	require.Error(t, err)
	_, err = NewProfileGenerator(42).Generate(-5)
	require.Error(t, err)
}

func TestProfileGenerator_IDsAndRanges(t *testing.T) {
	tutors, err := NewProfileGenerator(42).Generate(150)
	require.NoError(t, err)
	require.Len(t, tutors, 150)

	subjectSet := map[string]bool{}
	for _, s := range model.Subjects {
		subjectSet[s] = true
	}

	seen := map[string]bool{}
	for i, tu := range tutors {
		assert.Equal(t, tutorID(i+1), tu.TutorID, "ids are sequential")
		require.False(t, seen[tu.TutorID])
		seen[tu.TutorID] = true

		assert.GreaterOrEqual(t, tu.MonthsExperience, 1)
		assert.LessOrEqual(t, tu.MonthsExperience, 120)
		assert.GreaterOrEqual(t, tu.AvgHistoricalRating, 2.0)
		assert.LessOrEqual(t, tu.AvgHistoricalRating, 5.0)
		assert.GreaterOrEqual(t, tu.RescheduleRate, 0.0)
		assert.LessOrEqual(t, tu.RescheduleRate, 0.35)
		assert.GreaterOrEqual(t, tu.ReliabilityScore, 0.0)
		assert.LessOrEqual(t, tu.ReliabilityScore, 1.0)
		assert.GreaterOrEqual(t, tu.NoShowCount, 0)

		require.NotEmpty(t, tu.SubjectsTaught)
		assert.LessOrEqual(t, len(tu.SubjectsTaught), 3)
		assert.Equal(t, tu.PrimarySubject, tu.SubjectsTaught[0], "primary subject leads the list")
		taught := map[string]bool{}
		for _, s := range tu.SubjectsTaught {
			require.True(t, subjectSet[s], "unknown subject %q", s)
			require.False(t, taught[s], "subjects must be distinct")
			taught[s] = true
		}

		assert.Contains(t, []model.CertificationLevel{
			model.CertificationBasic, model.CertificationAdvanced, model.CertificationExpert,
		}, tu.CertificationLevel)
		assert.Nil(t, tu.LastLogin, "last_login is backfilled later, not sampled here")
	}
}

func TestProfileGenerator_Deterministic(t *testing.T) {
	a, err := NewProfileGenerator(42).Generate(50)
	require.NoError(t, err)
	b, err := NewProfileGenerator(42).Generate(50)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := NewProfileGenerator(43).Generate(50)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestProfileGenerator_ExperienceVolumeCorrelation(t *testing.T) {
	tutors, err := NewProfileGenerator(42).Generate(200)
	require.NoError(t, err)

	// Tenured tutors should have completed more lifetime sessions on average.
	var juniorSum, juniorN, seniorSum, seniorN float64
	for _, tu := range tutors {
		if tu.MonthsExperience <= 12 {
			juniorSum += float64(tu.TotalSessionsCompleted)
			juniorN++
		} else if tu.MonthsExperience > 36 {
			seniorSum += float64(tu.TotalSessionsCompleted)
			seniorN++
		}
	}
	require.Greater(t, juniorN, 10.0)
	require.Greater(t, seniorN, 10.0)
	assert.Greater(t, seniorSum/seniorN, juniorSum/juniorN)
}

func TestProfileGenerator_ReliabilityRatingCorrelation(t *testing.T) {
	tutors, err := NewProfileGenerator(42).Generate(200)
	require.NoError(t, err)

	var loSum, loN, hiSum, hiN float64
	for _, tu := range tutors {
		if tu.ReliabilityScore < 0.7 {
			loSum += tu.AvgHistoricalRating
			loN++
		} else if tu.ReliabilityScore > 0.9 {
			hiSum += tu.AvgHistoricalRating
			hiN++
		}
	}
	require.Greater(t, loN, 10.0)
	require.Greater(t, hiN, 10.0)
	assert.Greater(t, hiSum/hiN, loSum/loN)
}
