package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath/tutorsim/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testRun() model.GenerationRun {
	return model.GenerationRun{
		Seed:           42,
		Tutors:         2,
		Days:           7,
		SessionsPerDay: 10,
		ReferenceTime:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func fp(v float64) *float64 { return &v }

func testDataset() *model.Dataset {
	ref := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	lastLogin := ref.AddDate(0, 0, -2)
	first := true

	return &model.Dataset{
		Tutors: []model.Tutor{
			{
				TutorID:                "T0001",
				MonthsExperience:       24,
				TotalSessionsCompleted: 300,
				AvgHistoricalRating:    4.4,
				SubjectsTaught:         []string{"Math", "Science"},
				PrimarySubject:         "Math",
				RescheduleRate:         0.08,
				NoShowCount:            1,
				ReliabilityScore:       0.82,
				CertificationLevel:     model.CertificationAdvanced,
				ActiveStatus:           true,
				LastLogin:              &lastLogin,
			},
			{
				TutorID:                "T0002",
				MonthsExperience:       6,
				TotalSessionsCompleted: 40,
				AvgHistoricalRating:    3.6,
				SubjectsTaught:         []string{"English"},
				PrimarySubject:         "English",
				RescheduleRate:         0.2,
				NoShowCount:            4,
				ReliabilityScore:       0.41,
				CertificationLevel:     model.CertificationBasic,
				ActiveStatus:           true,
			},
		},
		Sessions: []model.Session{
			{
				SessionID:            "S000001",
				TutorID:              "T0001",
				SessionDatetime:      ref.AddDate(0, 0, -3),
				ScheduledDurationMin: 60,
				ActualDurationMin:    58,
				Subject:              "Math",
				GradeLevel:           "High School",
				IsFirstSession:       &first,
				SessionCompleted:     true,
				StudentShowed:        true,
				TutorShowed:          true,
				ConnectionQuality:    model.ConnectionGood,
				Metrics: &model.SessionMetrics{
					EngagementScore: 7.2,
					StudentRating:   4.5,
					WouldRecommend:  true,
				},
			},
			{
				SessionID:            "S000002",
				TutorID:              "T0002",
				SessionDatetime:      ref.AddDate(0, 0, -1),
				ScheduledDurationMin: 60,
				ActualDurationMin:    0,
				Subject:              "English",
				GradeLevel:           "College",
				SessionCompleted:     false,
				StudentShowed:        false,
				TutorShowed:          true,
				ConnectionQuality:    model.ConnectionFair,
			},
		},
		Aggregates: []model.TutorAggregate{
			{
				TutorID:                "T0001",
				TotalSessions30d:       20,
				TotalSessions7d:        5,
				AvgRating30d:           fp(4.4),
				AvgRating7d:            fp(4.5),
				AvgEngagementScore:     7.2,
				AvgEmpathyScore:        7.5,
				AvgClarityScore:        7.1,
				AvgStudentSatisfaction: 7.8,
				FirstSessionAvgRating:  fp(4.5),
				FirstSessionCount:      1,
				RecommendationRate:     0.9,
				TechnicalIssueRate:     0.05,
				SentimentTrend7d:       fp(0.1),
				ChurnProbability:       0.12,
				ChurnRiskLevel:         model.RiskLow,
			},
			{
				TutorID:                "T0002",
				TotalSessions30d:       4,
				TotalSessions7d:        0,
				AvgEngagementScore:     4.9,
				AvgEmpathyScore:        5.2,
				AvgClarityScore:        5.0,
				AvgStudentSatisfaction: 5.1,
				PoorFirstSessionFlag:   true,
				RecommendationRate:     0.4,
				TechnicalIssueRate:     0.2,
				ChurnProbability:       0.61,
				ChurnRiskLevel:         model.RiskHigh,
				ChurnSignalsDetected:   5,
			},
		},
		Interventions: []model.Intervention{
			{
				InterventionID:   "INT0001",
				TutorID:          "T0002",
				InterventionType: model.InterventionChurn,
				Channel:          "email",
				Subject:          "We'd love to keep you!",
				Content:          "Hi Tutor 002, ...",
				TemplateID:       "template_churn_001",
				SentAt:           ref.AddDate(0, 0, -4),
				EngagementBefore: 4.9,
				EngagementAfter:  5.3,
				Status:           model.InterventionResponded,
			},
		},
		Events: []model.EngagementEvent{
			{
				EventID:   "EV000001",
				TutorID:   "T0001",
				EventType: model.EventLogin,
				EventData: map[string]any{"device": "desktop"},
				Timestamp: ref.AddDate(0, 0, -2),
			},
		},
	}
}

func TestSQLite_CreateAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := st.CreateRun(ctx, testRun())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := st.GetRun(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.Seed)
	assert.Equal(t, 2, got.Tutors)
	assert.Equal(t, 7, got.Days)
	assert.Equal(t, 10, got.SessionsPerDay)
	assert.True(t, got.ReferenceTime.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)))
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "missing-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_ListRuns_SeedFilter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run1 := testRun()
	_, err := st.CreateRun(ctx, run1)
	require.NoError(t, err)

	run2 := testRun()
	run2.Seed = 7
	_, err = st.CreateRun(ctx, run2)
	require.NoError(t, err)

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	seed := int64(7)
	filtered, err := st.ListRuns(ctx, RunFilter{Seed: &seed})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, int64(7), filtered[0].Seed)
}

func TestSQLite_SaveDataset_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testRun())
	require.NoError(t, err)

	ds := testDataset()
	require.NoError(t, st.SaveDataset(ctx, run.ID, ds))

	tutors, err := st.LoadTutors(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, tutors, 2)
	assert.Equal(t, "T0001", tutors[0].TutorID)
	assert.Equal(t, []string{"Math", "Science"}, tutors[0].SubjectsTaught)
	assert.Equal(t, model.CertificationAdvanced, tutors[0].CertificationLevel)
	require.NotNil(t, tutors[0].LastLogin)
	assert.Nil(t, tutors[1].LastLogin)

	aggregates, err := st.LoadAggregates(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, aggregates, 2)
	require.NotNil(t, aggregates[0].AvgRating30d)
	assert.InDelta(t, 4.4, *aggregates[0].AvgRating30d, 1e-9)
	assert.Nil(t, aggregates[1].AvgRating30d)
	assert.Nil(t, aggregates[1].SentimentTrend7d)
	assert.Equal(t, model.RiskHigh, aggregates[1].ChurnRiskLevel)
	assert.True(t, aggregates[1].PoorFirstSessionFlag)
}

func TestSQLite_SaveDataset_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testRun())
	require.NoError(t, err)

	ds := testDataset()
	require.NoError(t, st.SaveDataset(ctx, run.ID, ds))
	require.NoError(t, st.SaveDataset(ctx, run.ID, ds))

	tutors, err := st.LoadTutors(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, tutors, 2)
}

func TestSQLite_GetRunSummary(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testRun())
	require.NoError(t, err)
	require.NoError(t, st.SaveDataset(ctx, run.ID, testDataset()))

	summary, err := st.GetRunSummary(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, summary.Run.ID)
	assert.Equal(t, 2, summary.TableRows["tutors"])
	assert.Equal(t, 2, summary.TableRows["sessions"])
	assert.Equal(t, 2, summary.TableRows["tutor_aggregates"])
	assert.Equal(t, 0, summary.TableRows["experiments"])
	assert.Equal(t, 1, summary.TableRows["interventions"])
	assert.Equal(t, 1, summary.TableRows["engagement_events"])
	assert.Equal(t, 1, summary.RiskLevels["High"])
	assert.Equal(t, 1, summary.RiskLevels["Low"])
}
