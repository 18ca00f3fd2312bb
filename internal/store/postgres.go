package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/brightpath/tutorsim/internal/db"
	"github.com/brightpath/tutorsim/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run": `INSERT INTO runs (id, seed, tutors, days, sessions_per_day, reference_time, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"get_run":    `SELECT id, seed, tutors, days, sessions_per_day, reference_time, created_at FROM runs WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	seed             BIGINT NOT NULL,
	tutors           INTEGER NOT NULL,
	days             INTEGER NOT NULL,
	sessions_per_day INTEGER NOT NULL,
	reference_time   TIMESTAMPTZ NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tutors (
	run_id                   TEXT NOT NULL REFERENCES runs(id),
	tutor_id                 TEXT NOT NULL,
	months_experience        INTEGER NOT NULL,
	total_sessions_completed INTEGER NOT NULL,
	avg_historical_rating    DOUBLE PRECISION NOT NULL,
	subjects_taught          JSONB NOT NULL,
	primary_subject          TEXT NOT NULL,
	reschedule_rate          DOUBLE PRECISION NOT NULL,
	no_show_count            INTEGER NOT NULL,
	reliability_score        DOUBLE PRECISION NOT NULL,
	certification_level      TEXT NOT NULL,
	active_status            BOOLEAN NOT NULL,
	last_login               TIMESTAMPTZ,
	PRIMARY KEY (run_id, tutor_id)
);

CREATE TABLE IF NOT EXISTS sessions (
	run_id                 TEXT NOT NULL REFERENCES runs(id),
	session_id             TEXT NOT NULL,
	tutor_id               TEXT NOT NULL,
	session_datetime       TIMESTAMPTZ NOT NULL,
	scheduled_duration_min INTEGER NOT NULL,
	actual_duration_min    INTEGER NOT NULL,
	subject                TEXT NOT NULL,
	grade_level            TEXT NOT NULL,
	is_first_session       BOOLEAN,
	session_completed      BOOLEAN NOT NULL,
	student_showed         BOOLEAN NOT NULL,
	tutor_showed           BOOLEAN NOT NULL,
	connection_quality     TEXT NOT NULL,
	metrics                JSONB,
	PRIMARY KEY (run_id, session_id)
);

CREATE TABLE IF NOT EXISTS tutor_aggregates (
	run_id                   TEXT NOT NULL REFERENCES runs(id),
	tutor_id                 TEXT NOT NULL,
	total_sessions_30d       INTEGER NOT NULL,
	total_sessions_7d        INTEGER NOT NULL,
	avg_rating_30d           DOUBLE PRECISION,
	avg_rating_7d            DOUBLE PRECISION,
	avg_engagement_score     DOUBLE PRECISION NOT NULL,
	avg_empathy_score        DOUBLE PRECISION NOT NULL,
	avg_clarity_score        DOUBLE PRECISION NOT NULL,
	avg_student_satisfaction DOUBLE PRECISION NOT NULL,
	first_session_avg_rating DOUBLE PRECISION,
	first_session_count      INTEGER NOT NULL,
	poor_first_session_flag  BOOLEAN NOT NULL,
	recommendation_rate      DOUBLE PRECISION NOT NULL,
	technical_issue_rate     DOUBLE PRECISION NOT NULL,
	sentiment_trend_7d       DOUBLE PRECISION,
	churn_probability        DOUBLE PRECISION NOT NULL,
	churn_risk_level         TEXT NOT NULL,
	churn_signals_detected   INTEGER NOT NULL,
	PRIMARY KEY (run_id, tutor_id)
);

CREATE TABLE IF NOT EXISTS experiments (
	run_id            TEXT NOT NULL REFERENCES runs(id),
	experiment_id     TEXT NOT NULL,
	name              TEXT NOT NULL,
	hypothesis        TEXT NOT NULL,
	description       TEXT NOT NULL,
	variants          JSONB NOT NULL,
	target_segment    JSONB NOT NULL,
	primary_metric    TEXT NOT NULL,
	secondary_metrics JSONB NOT NULL,
	start_date        TIMESTAMPTZ NOT NULL,
	end_date          TIMESTAMPTZ,
	status            TEXT NOT NULL,
	sample_size       INTEGER NOT NULL,
	significance      DOUBLE PRECISION,
	winner            TEXT,
	notes             TEXT NOT NULL,
	PRIMARY KEY (run_id, experiment_id)
);

CREATE TABLE IF NOT EXISTS experiment_assignments (
	run_id           TEXT NOT NULL REFERENCES runs(id),
	experiment_id    TEXT NOT NULL,
	tutor_id         TEXT NOT NULL,
	variant          TEXT NOT NULL,
	assigned_at      TIMESTAMPTZ NOT NULL,
	exposed_at       TIMESTAMPTZ,
	converted_at     TIMESTAMPTZ,
	conversion_value DOUBLE PRECISION,
	PRIMARY KEY (run_id, experiment_id, tutor_id)
);

CREATE TABLE IF NOT EXISTS interventions (
	run_id                TEXT NOT NULL REFERENCES runs(id),
	intervention_id       TEXT NOT NULL,
	tutor_id              TEXT NOT NULL,
	intervention_type     TEXT NOT NULL,
	channel               TEXT NOT NULL,
	subject               TEXT NOT NULL,
	content               TEXT NOT NULL,
	template_id           TEXT NOT NULL,
	experiment_id         TEXT,
	experiment_variant    TEXT,
	sent_at               TIMESTAMPTZ NOT NULL,
	delivered_at          TIMESTAMPTZ,
	opened_at             TIMESTAMPTZ,
	clicked_at            TIMESTAMPTZ,
	responded_at          TIMESTAMPTZ,
	response_type         TEXT,
	engagement_before     DOUBLE PRECISION NOT NULL,
	engagement_after      DOUBLE PRECISION NOT NULL,
	sessions_before_count INTEGER NOT NULL,
	sessions_after_count  INTEGER NOT NULL,
	status                TEXT NOT NULL,
	PRIMARY KEY (run_id, intervention_id)
);

CREATE TABLE IF NOT EXISTS engagement_events (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	event_id   TEXT NOT NULL,
	tutor_id   TEXT NOT NULL,
	event_type TEXT NOT NULL,
	event_data JSONB NOT NULL,
	timestamp  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, event_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_seed ON runs(seed);
CREATE INDEX IF NOT EXISTS idx_sessions_tutor ON sessions(run_id, tutor_id);
CREATE INDEX IF NOT EXISTS idx_events_tutor ON engagement_events(run_id, tutor_id);
CREATE INDEX IF NOT EXISTS idx_interventions_tutor ON interventions(run_id, tutor_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, run model.GenerationRun) (*model.GenerationRun, error) {
	run.ID = uuid.New().String()
	run.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, seed, tutors, days, sessions_per_day, reference_time, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.Seed, run.Tutors, run.Days, run.SessionsPerDay, run.ReferenceTime.UTC(), run.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &run, nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.GenerationRun, error) {
	var r model.GenerationRun
	err := s.pool.QueryRow(ctx,
		`SELECT id, seed, tutors, days, sessions_per_day, reference_time, created_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.Seed, &r.Tutors, &r.Days, &r.SessionsPerDay, &r.ReferenceTime, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("run not found: %s", runID)
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.GenerationRun, error) {
	query := `SELECT id, seed, tutors, days, sessions_per_day, reference_time, created_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Seed != nil {
		query += fmt.Sprintf(` AND seed = $%d`, argIdx)
		args = append(args, *filter.Seed)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.GenerationRun
	for rows.Next() {
		var r model.GenerationRun
		if err := rows.Scan(&r.ID, &r.Seed, &r.Tutors, &r.Days, &r.SessionsPerDay, &r.ReferenceTime, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) GetRunSummary(ctx context.Context, runID string) (*model.RunSummary, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	summary := &model.RunSummary{
		Run:        *run,
		TableRows:  make(map[string]int, len(datasetTables)),
		RiskLevels: map[string]int{},
	}
	for _, table := range datasetTables {
		var n int
		if err := s.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM `+table+` WHERE run_id = $1`, runID,
		).Scan(&n); err != nil {
			return nil, eris.Wrapf(err, "postgres: count %s", table)
		}
		summary.TableRows[table] = n
	}

	rows, err := s.pool.Query(ctx,
		`SELECT churn_risk_level, COUNT(*) FROM tutor_aggregates WHERE run_id = $1 GROUP BY churn_risk_level`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: risk level counts")
	}
	defer rows.Close()
	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan risk level")
		}
		summary.RiskLevels[level] = n
	}
	return summary, eris.Wrap(rows.Err(), "postgres: risk level iterate")
}

// SaveDataset persists all dataset tables. Dimension tables go through
// BulkUpsert so a re-save under the same run id overwrites; the high-volume
// tables are deleted for the run and re-inserted via COPY.
func (s *PostgresStore) SaveDataset(ctx context.Context, runID string, ds *model.Dataset) error {
	tutorRows, err := tutorRows(runID, ds.Tutors)
	if err != nil {
		return err
	}
	if _, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "tutors",
		Columns: []string{"run_id", "tutor_id", "months_experience", "total_sessions_completed",
			"avg_historical_rating", "subjects_taught", "primary_subject", "reschedule_rate",
			"no_show_count", "reliability_score", "certification_level", "active_status", "last_login"},
		ConflictKeys: []string{"run_id", "tutor_id"},
	}, tutorRows); err != nil {
		return eris.Wrap(err, "postgres: save tutors")
	}

	aggRows := aggregateRows(runID, ds.Aggregates)
	if _, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "tutor_aggregates",
		Columns: []string{"run_id", "tutor_id", "total_sessions_30d", "total_sessions_7d",
			"avg_rating_30d", "avg_rating_7d", "avg_engagement_score", "avg_empathy_score",
			"avg_clarity_score", "avg_student_satisfaction", "first_session_avg_rating",
			"first_session_count", "poor_first_session_flag", "recommendation_rate",
			"technical_issue_rate", "sentiment_trend_7d", "churn_probability", "churn_risk_level",
			"churn_signals_detected"},
		ConflictKeys: []string{"run_id", "tutor_id"},
	}, aggRows); err != nil {
		return eris.Wrap(err, "postgres: save aggregates")
	}

	expRows, err := experimentRows(runID, ds.Experiments)
	if err != nil {
		return err
	}
	if _, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "experiments",
		Columns: []string{"run_id", "experiment_id", "name", "hypothesis", "description", "variants",
			"target_segment", "primary_metric", "secondary_metrics", "start_date", "end_date",
			"status", "sample_size", "significance", "winner", "notes"},
		ConflictKeys: []string{"run_id", "experiment_id"},
	}, expRows); err != nil {
		return eris.Wrap(err, "postgres: save experiments")
	}

	intvRows := interventionRows(runID, ds.Interventions)
	if _, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "interventions",
		Columns: []string{"run_id", "intervention_id", "tutor_id", "intervention_type", "channel",
			"subject", "content", "template_id", "experiment_id", "experiment_variant", "sent_at",
			"delivered_at", "opened_at", "clicked_at", "responded_at", "response_type",
			"engagement_before", "engagement_after", "sessions_before_count", "sessions_after_count",
			"status"},
		ConflictKeys: []string{"run_id", "intervention_id"},
	}, intvRows); err != nil {
		return eris.Wrap(err, "postgres: save interventions")
	}

	for _, volume := range []struct {
		table   string
		columns []string
		rows    [][]any
	}{
		{
			table: "sessions",
			columns: []string{"run_id", "session_id", "tutor_id", "session_datetime",
				"scheduled_duration_min", "actual_duration_min", "subject", "grade_level",
				"is_first_session", "session_completed", "student_showed", "tutor_showed",
				"connection_quality", "metrics"},
		},
		{
			table: "experiment_assignments",
			columns: []string{"run_id", "experiment_id", "tutor_id", "variant", "assigned_at",
				"exposed_at", "converted_at", "conversion_value"},
		},
		{
			table:   "engagement_events",
			columns: []string{"run_id", "event_id", "tutor_id", "event_type", "event_data", "timestamp"},
		},
	} {
		switch volume.table {
		case "sessions":
			volume.rows, err = sessionRows(runID, ds.Sessions)
		case "experiment_assignments":
			volume.rows = assignmentRows(runID, ds.Assignments)
		case "engagement_events":
			volume.rows, err = eventRows(runID, ds.Events)
		}
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx,
			`DELETE FROM `+volume.table+` WHERE run_id = $1`, runID,
		); err != nil {
			return eris.Wrapf(err, "postgres: clear %s", volume.table)
		}
		if _, err := db.CopyFrom(ctx, s.pool, volume.table, volume.columns, volume.rows); err != nil {
			return eris.Wrapf(err, "postgres: save %s", volume.table)
		}
	}
	return nil
}

func tutorRows(runID string, tutors []model.Tutor) ([][]any, error) {
	rows := make([][]any, 0, len(tutors))
	for i := range tutors {
		t := &tutors[i]
		subjects, err := json.Marshal(t.SubjectsTaught)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: marshal subjects")
		}
		rows = append(rows, []any{
			runID, t.TutorID, t.MonthsExperience, t.TotalSessionsCompleted, t.AvgHistoricalRating,
			subjects, t.PrimarySubject, t.RescheduleRate, t.NoShowCount, t.ReliabilityScore,
			string(t.CertificationLevel), t.ActiveStatus, t.LastLogin,
		})
	}
	return rows, nil
}

func sessionRows(runID string, sessions []model.Session) ([][]any, error) {
	rows := make([][]any, 0, len(sessions))
	for i := range sessions {
		s := &sessions[i]
		var metrics []byte
		if s.Metrics != nil {
			data, err := json.Marshal(s.Metrics)
			if err != nil {
				return nil, eris.Wrap(err, "postgres: marshal session metrics")
			}
			metrics = data
		}
		rows = append(rows, []any{
			runID, s.SessionID, s.TutorID, s.SessionDatetime, s.ScheduledDurationMin,
			s.ActualDurationMin, s.Subject, s.GradeLevel, s.IsFirstSession, s.SessionCompleted,
			s.StudentShowed, s.TutorShowed, string(s.ConnectionQuality), metrics,
		})
	}
	return rows, nil
}

func aggregateRows(runID string, aggregates []model.TutorAggregate) [][]any {
	rows := make([][]any, 0, len(aggregates))
	for i := range aggregates {
		a := &aggregates[i]
		rows = append(rows, []any{
			runID, a.TutorID, a.TotalSessions30d, a.TotalSessions7d, a.AvgRating30d, a.AvgRating7d,
			a.AvgEngagementScore, a.AvgEmpathyScore, a.AvgClarityScore, a.AvgStudentSatisfaction,
			a.FirstSessionAvgRating, a.FirstSessionCount, a.PoorFirstSessionFlag, a.RecommendationRate,
			a.TechnicalIssueRate, a.SentimentTrend7d, a.ChurnProbability, string(a.ChurnRiskLevel),
			a.ChurnSignalsDetected,
		})
	}
	return rows
}

func experimentRows(runID string, experiments []model.Experiment) ([][]any, error) {
	rows := make([][]any, 0, len(experiments))
	for i := range experiments {
		e := &experiments[i]
		variants, err := json.Marshal(e.Variants)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: marshal variants")
		}
		segmentJSON, err := json.Marshal(e.TargetSegment)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: marshal target segment")
		}
		secondary, err := json.Marshal(e.SecondaryMetrics)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: marshal secondary metrics")
		}
		rows = append(rows, []any{
			runID, e.ExperimentID, e.Name, e.Hypothesis, e.Description, variants, segmentJSON,
			e.PrimaryMetric, secondary, e.StartDate, e.EndDate, string(e.Status), e.SampleSize,
			e.Significance, e.Winner, e.Notes,
		})
	}
	return rows, nil
}

func assignmentRows(runID string, assignments []model.ExperimentAssignment) [][]any {
	rows := make([][]any, 0, len(assignments))
	for i := range assignments {
		a := &assignments[i]
		rows = append(rows, []any{
			runID, a.ExperimentID, a.TutorID, a.Variant, a.AssignedAt, a.ExposedAt, a.ConvertedAt,
			a.ConversionValue,
		})
	}
	return rows
}

func interventionRows(runID string, interventions []model.Intervention) [][]any {
	rows := make([][]any, 0, len(interventions))
	for i := range interventions {
		iv := &interventions[i]
		rows = append(rows, []any{
			runID, iv.InterventionID, iv.TutorID, string(iv.InterventionType), iv.Channel,
			iv.Subject, iv.Content, iv.TemplateID, iv.ExperimentID, iv.ExperimentVariant, iv.SentAt,
			iv.DeliveredAt, iv.OpenedAt, iv.ClickedAt, iv.RespondedAt, iv.ResponseType,
			iv.EngagementBefore, iv.EngagementAfter, iv.SessionsBeforeCount, iv.SessionsAfterCount,
			string(iv.Status),
		})
	}
	return rows
}

func eventRows(runID string, events []model.EngagementEvent) ([][]any, error) {
	rows := make([][]any, 0, len(events))
	for i := range events {
		ev := &events[i]
		data, err := json.Marshal(ev.EventData)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: marshal event data %s", ev.EventID)
		}
		rows = append(rows, []any{
			runID, ev.EventID, ev.TutorID, string(ev.EventType), data, ev.Timestamp,
		})
	}
	return rows, nil
}

func (s *PostgresStore) LoadTutors(ctx context.Context, runID string) ([]model.Tutor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tutor_id, months_experience, total_sessions_completed, avg_historical_rating,
		        subjects_taught, primary_subject, reschedule_rate, no_show_count, reliability_score,
		        certification_level, active_status, last_login
		 FROM tutors WHERE run_id = $1 ORDER BY tutor_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load tutors")
	}
	defer rows.Close()

	var tutors []model.Tutor
	for rows.Next() {
		var t model.Tutor
		var subjects []byte
		var cert string
		if err := rows.Scan(&t.TutorID, &t.MonthsExperience, &t.TotalSessionsCompleted,
			&t.AvgHistoricalRating, &subjects, &t.PrimarySubject, &t.RescheduleRate, &t.NoShowCount,
			&t.ReliabilityScore, &cert, &t.ActiveStatus, &t.LastLogin,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan tutor")
		}
		if err := json.Unmarshal(subjects, &t.SubjectsTaught); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal subjects")
		}
		t.CertificationLevel = model.CertificationLevel(cert)
		tutors = append(tutors, t)
	}
	return tutors, eris.Wrap(rows.Err(), "postgres: load tutors iterate")
}

func (s *PostgresStore) LoadAggregates(ctx context.Context, runID string) ([]model.TutorAggregate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tutor_id, total_sessions_30d, total_sessions_7d, avg_rating_30d, avg_rating_7d,
		        avg_engagement_score, avg_empathy_score, avg_clarity_score, avg_student_satisfaction,
		        first_session_avg_rating, first_session_count, poor_first_session_flag,
		        recommendation_rate, technical_issue_rate, sentiment_trend_7d, churn_probability,
		        churn_risk_level, churn_signals_detected
		 FROM tutor_aggregates WHERE run_id = $1 ORDER BY tutor_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load aggregates")
	}
	defer rows.Close()

	var aggregates []model.TutorAggregate
	for rows.Next() {
		var a model.TutorAggregate
		var level string
		if err := rows.Scan(&a.TutorID, &a.TotalSessions30d, &a.TotalSessions7d, &a.AvgRating30d,
			&a.AvgRating7d, &a.AvgEngagementScore, &a.AvgEmpathyScore, &a.AvgClarityScore,
			&a.AvgStudentSatisfaction, &a.FirstSessionAvgRating, &a.FirstSessionCount,
			&a.PoorFirstSessionFlag, &a.RecommendationRate, &a.TechnicalIssueRate,
			&a.SentimentTrend7d, &a.ChurnProbability, &level, &a.ChurnSignalsDetected,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan aggregate")
		}
		a.ChurnRiskLevel = model.RiskLevel(level)
		aggregates = append(aggregates, a)
	}
	return aggregates, eris.Wrap(rows.Err(), "postgres: load aggregates iterate")
}
