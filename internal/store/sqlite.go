package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/brightpath/tutorsim/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	seed             INTEGER NOT NULL,
	tutors           INTEGER NOT NULL,
	days             INTEGER NOT NULL,
	sessions_per_day INTEGER NOT NULL,
	reference_time   DATETIME NOT NULL,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS tutors (
	run_id                   TEXT NOT NULL REFERENCES runs(id),
	tutor_id                 TEXT NOT NULL,
	months_experience        INTEGER NOT NULL,
	total_sessions_completed INTEGER NOT NULL,
	avg_historical_rating    REAL NOT NULL,
	subjects_taught          TEXT NOT NULL,
	primary_subject          TEXT NOT NULL,
	reschedule_rate          REAL NOT NULL,
	no_show_count            INTEGER NOT NULL,
	reliability_score        REAL NOT NULL,
	certification_level      TEXT NOT NULL,
	active_status            INTEGER NOT NULL,
	last_login               DATETIME,
	PRIMARY KEY (run_id, tutor_id)
);

CREATE TABLE IF NOT EXISTS sessions (
	run_id                 TEXT NOT NULL REFERENCES runs(id),
	session_id             TEXT NOT NULL,
	tutor_id               TEXT NOT NULL,
	session_datetime       DATETIME NOT NULL,
	scheduled_duration_min INTEGER NOT NULL,
	actual_duration_min    INTEGER NOT NULL,
	subject                TEXT NOT NULL,
	grade_level            TEXT NOT NULL,
	is_first_session       INTEGER,
	session_completed      INTEGER NOT NULL,
	student_showed         INTEGER NOT NULL,
	tutor_showed           INTEGER NOT NULL,
	connection_quality     TEXT NOT NULL,
	metrics                TEXT,
	PRIMARY KEY (run_id, session_id)
);

CREATE TABLE IF NOT EXISTS tutor_aggregates (
	run_id                   TEXT NOT NULL REFERENCES runs(id),
	tutor_id                 TEXT NOT NULL,
	total_sessions_30d       INTEGER NOT NULL,
	total_sessions_7d        INTEGER NOT NULL,
	avg_rating_30d           REAL,
	avg_rating_7d            REAL,
	avg_engagement_score     REAL NOT NULL,
	avg_empathy_score        REAL NOT NULL,
	avg_clarity_score        REAL NOT NULL,
	avg_student_satisfaction REAL NOT NULL,
	first_session_avg_rating REAL,
	first_session_count      INTEGER NOT NULL,
	poor_first_session_flag  INTEGER NOT NULL,
	recommendation_rate      REAL NOT NULL,
	technical_issue_rate     REAL NOT NULL,
	sentiment_trend_7d       REAL,
	churn_probability        REAL NOT NULL,
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
	variants          TEXT NOT NULL,
	target_segment    TEXT NOT NULL,
	primary_metric    TEXT NOT NULL,
	secondary_metrics TEXT NOT NULL,
	start_date        DATETIME NOT NULL,
	end_date          DATETIME,
	status            TEXT NOT NULL,
	sample_size       INTEGER NOT NULL,
	significance      REAL,
	winner            TEXT,
	notes             TEXT NOT NULL,
	PRIMARY KEY (run_id, experiment_id)
);

CREATE TABLE IF NOT EXISTS experiment_assignments (
	run_id           TEXT NOT NULL REFERENCES runs(id),
	experiment_id    TEXT NOT NULL,
	tutor_id         TEXT NOT NULL,
	variant          TEXT NOT NULL,
	assigned_at      DATETIME NOT NULL,
	exposed_at       DATETIME,
	converted_at     DATETIME,
	conversion_value REAL,
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
	sent_at               DATETIME NOT NULL,
	delivered_at          DATETIME,
	opened_at             DATETIME,
	clicked_at            DATETIME,
	responded_at          DATETIME,
	response_type         TEXT,
	engagement_before     REAL NOT NULL,
	engagement_after      REAL NOT NULL,
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
	event_data TEXT NOT NULL,
	timestamp  DATETIME NOT NULL,
	PRIMARY KEY (run_id, event_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_seed ON runs(seed);
CREATE INDEX IF NOT EXISTS idx_sessions_tutor ON sessions(run_id, tutor_id);
CREATE INDEX IF NOT EXISTS idx_events_tutor ON engagement_events(run_id, tutor_id);
CREATE INDEX IF NOT EXISTS idx_interventions_tutor ON interventions(run_id, tutor_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run model.GenerationRun) (*model.GenerationRun, error) {
	run.ID = uuid.New().String()
	run.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, seed, tutors, days, sessions_per_day, reference_time, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Seed, run.Tutors, run.Days, run.SessionsPerDay, run.ReferenceTime.UTC(), run.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &run, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.GenerationRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, seed, tutors, days, sessions_per_day, reference_time, created_at FROM runs WHERE id = ?`,
		runID,
	)
	var r model.GenerationRun
	err := row.Scan(&r.ID, &r.Seed, &r.Tutors, &r.Days, &r.SessionsPerDay, &r.ReferenceTime, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return &r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.GenerationRun, error) {
	query := `SELECT id, seed, tutors, days, sessions_per_day, reference_time, created_at FROM runs WHERE 1=1`
	var args []any

	if filter.Seed != nil {
		query += ` AND seed = ?`
		args = append(args, *filter.Seed)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.GenerationRun
	for rows.Next() {
		var r model.GenerationRun
		if err := rows.Scan(&r.ID, &r.Seed, &r.Tutors, &r.Days, &r.SessionsPerDay, &r.ReferenceTime, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) GetRunSummary(ctx context.Context, runID string) (*model.RunSummary, error) {
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
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM `+table+` WHERE run_id = ?`, runID,
		).Scan(&n); err != nil {
			return nil, eris.Wrapf(err, "sqlite: count %s", table)
		}
		summary.TableRows[table] = n
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT churn_risk_level, COUNT(*) FROM tutor_aggregates WHERE run_id = ? GROUP BY churn_risk_level`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: risk level counts")
	}
	defer rows.Close()
	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan risk level")
		}
		summary.RiskLevels[level] = n
	}
	return summary, eris.Wrap(rows.Err(), "sqlite: risk level iterate")
}

// SaveDataset writes all dataset tables in a single transaction. Re-saving
// under the same run id replaces the previous rows.
func (s *SQLiteStore) SaveDataset(ctx context.Context, runID string, ds *model.Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	if err := s.insertTutors(ctx, tx, runID, ds.Tutors); err != nil {
		return err
	}
	if err := s.insertSessions(ctx, tx, runID, ds.Sessions); err != nil {
		return err
	}
	if err := s.insertAggregates(ctx, tx, runID, ds.Aggregates); err != nil {
		return err
	}
	if err := s.insertExperiments(ctx, tx, runID, ds.Experiments); err != nil {
		return err
	}
	if err := s.insertAssignments(ctx, tx, runID, ds.Assignments); err != nil {
		return err
	}
	if err := s.insertInterventions(ctx, tx, runID, ds.Interventions); err != nil {
		return err
	}
	if err := s.insertEvents(ctx, tx, runID, ds.Events); err != nil {
		return err
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit dataset")
}

func (s *SQLiteStore) insertTutors(ctx context.Context, tx *sql.Tx, runID string, tutors []model.Tutor) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO tutors
		 (run_id, tutor_id, months_experience, total_sessions_completed, avg_historical_rating,
		  subjects_taught, primary_subject, reschedule_rate, no_show_count, reliability_score,
		  certification_level, active_status, last_login)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare tutors insert")
	}
	defer stmt.Close()

	for i := range tutors {
		t := &tutors[i]
		subjects, err := json.Marshal(t.SubjectsTaught)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal subjects")
		}
		if _, err := stmt.ExecContext(ctx,
			runID, t.TutorID, t.MonthsExperience, t.TotalSessionsCompleted, t.AvgHistoricalRating,
			string(subjects), t.PrimarySubject, t.RescheduleRate, t.NoShowCount, t.ReliabilityScore,
			string(t.CertificationLevel), t.ActiveStatus, t.LastLogin,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert tutor %s", t.TutorID)
		}
	}
	return nil
}

func (s *SQLiteStore) insertSessions(ctx context.Context, tx *sql.Tx, runID string, sessions []model.Session) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO sessions
		 (run_id, session_id, tutor_id, session_datetime, scheduled_duration_min, actual_duration_min,
		  subject, grade_level, is_first_session, session_completed, student_showed, tutor_showed,
		  connection_quality, metrics)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare sessions insert")
	}
	defer stmt.Close()

	for i := range sessions {
		sess := &sessions[i]
		var metrics any
		if sess.Metrics != nil {
			data, err := json.Marshal(sess.Metrics)
			if err != nil {
				return eris.Wrap(err, "sqlite: marshal session metrics")
			}
			metrics = string(data)
		}
		if _, err := stmt.ExecContext(ctx,
			runID, sess.SessionID, sess.TutorID, sess.SessionDatetime, sess.ScheduledDurationMin,
			sess.ActualDurationMin, sess.Subject, sess.GradeLevel, sess.IsFirstSession,
			sess.SessionCompleted, sess.StudentShowed, sess.TutorShowed,
			string(sess.ConnectionQuality), metrics,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert session %s", sess.SessionID)
		}
	}
	return nil
}

func (s *SQLiteStore) insertAggregates(ctx context.Context, tx *sql.Tx, runID string, aggregates []model.TutorAggregate) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO tutor_aggregates
		 (run_id, tutor_id, total_sessions_30d, total_sessions_7d, avg_rating_30d, avg_rating_7d,
		  avg_engagement_score, avg_empathy_score, avg_clarity_score, avg_student_satisfaction,
		  first_session_avg_rating, first_session_count, poor_first_session_flag, recommendation_rate,
		  technical_issue_rate, sentiment_trend_7d, churn_probability, churn_risk_level, churn_signals_detected)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare aggregates insert")
	}
	defer stmt.Close()

	for i := range aggregates {
		a := &aggregates[i]
		if _, err := stmt.ExecContext(ctx,
			runID, a.TutorID, a.TotalSessions30d, a.TotalSessions7d, a.AvgRating30d, a.AvgRating7d,
			a.AvgEngagementScore, a.AvgEmpathyScore, a.AvgClarityScore, a.AvgStudentSatisfaction,
			a.FirstSessionAvgRating, a.FirstSessionCount, a.PoorFirstSessionFlag, a.RecommendationRate,
			a.TechnicalIssueRate, a.SentimentTrend7d, a.ChurnProbability, string(a.ChurnRiskLevel),
			a.ChurnSignalsDetected,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert aggregate %s", a.TutorID)
		}
	}
	return nil
}

func (s *SQLiteStore) insertExperiments(ctx context.Context, tx *sql.Tx, runID string, experiments []model.Experiment) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO experiments
		 (run_id, experiment_id, name, hypothesis, description, variants, target_segment,
		  primary_metric, secondary_metrics, start_date, end_date, status, sample_size,
		  significance, winner, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare experiments insert")
	}
	defer stmt.Close()

	for i := range experiments {
		e := &experiments[i]
		variants, err := json.Marshal(e.Variants)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal variants")
		}
		segmentJSON, err := json.Marshal(e.TargetSegment)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal target segment")
		}
		secondary, err := json.Marshal(e.SecondaryMetrics)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal secondary metrics")
		}
		if _, err := stmt.ExecContext(ctx,
			runID, e.ExperimentID, e.Name, e.Hypothesis, e.Description, string(variants),
			string(segmentJSON), e.PrimaryMetric, string(secondary), e.StartDate, e.EndDate,
			string(e.Status), e.SampleSize, e.Significance, e.Winner, e.Notes,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert experiment %s", e.ExperimentID)
		}
	}
	return nil
}

func (s *SQLiteStore) insertAssignments(ctx context.Context, tx *sql.Tx, runID string, assignments []model.ExperimentAssignment) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO experiment_assignments
		 (run_id, experiment_id, tutor_id, variant, assigned_at, exposed_at, converted_at, conversion_value)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare assignments insert")
	}
	defer stmt.Close()

	for i := range assignments {
		a := &assignments[i]
		if _, err := stmt.ExecContext(ctx,
			runID, a.ExperimentID, a.TutorID, a.Variant, a.AssignedAt, a.ExposedAt, a.ConvertedAt, a.ConversionValue,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert assignment %s/%s", a.ExperimentID, a.TutorID)
		}
	}
	return nil
}

func (s *SQLiteStore) insertInterventions(ctx context.Context, tx *sql.Tx, runID string, interventions []model.Intervention) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO interventions
		 (run_id, intervention_id, tutor_id, intervention_type, channel, subject, content, template_id,
		  experiment_id, experiment_variant, sent_at, delivered_at, opened_at, clicked_at, responded_at,
		  response_type, engagement_before, engagement_after, sessions_before_count, sessions_after_count, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare interventions insert")
	}
	defer stmt.Close()

	for i := range interventions {
		iv := &interventions[i]
		if _, err := stmt.ExecContext(ctx,
			runID, iv.InterventionID, iv.TutorID, string(iv.InterventionType), iv.Channel, iv.Subject,
			iv.Content, iv.TemplateID, iv.ExperimentID, iv.ExperimentVariant, iv.SentAt, iv.DeliveredAt,
			iv.OpenedAt, iv.ClickedAt, iv.RespondedAt, iv.ResponseType, iv.EngagementBefore,
			iv.EngagementAfter, iv.SessionsBeforeCount, iv.SessionsAfterCount, string(iv.Status),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert intervention %s", iv.InterventionID)
		}
	}
	return nil
}

func (s *SQLiteStore) insertEvents(ctx context.Context, tx *sql.Tx, runID string, events []model.EngagementEvent) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO engagement_events
		 (run_id, event_id, tutor_id, event_type, event_data, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare events insert")
	}
	defer stmt.Close()

	for i := range events {
		ev := &events[i]
		data, err := json.Marshal(ev.EventData)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal event data %s", ev.EventID)
		}
		if _, err := stmt.ExecContext(ctx,
			runID, ev.EventID, ev.TutorID, string(ev.EventType), string(data), ev.Timestamp,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert event %s", ev.EventID)
		}
	}
	return nil
}

func (s *SQLiteStore) LoadTutors(ctx context.Context, runID string) ([]model.Tutor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tutor_id, months_experience, total_sessions_completed, avg_historical_rating,
		        subjects_taught, primary_subject, reschedule_rate, no_show_count, reliability_score,
		        certification_level, active_status, last_login
		 FROM tutors WHERE run_id = ? ORDER BY tutor_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load tutors")
	}
	defer rows.Close()

	var tutors []model.Tutor
	for rows.Next() {
		var t model.Tutor
		var subjects, cert string
		var lastLogin sql.NullTime
		if err := rows.Scan(&t.TutorID, &t.MonthsExperience, &t.TotalSessionsCompleted, &t.AvgHistoricalRating,
			&subjects, &t.PrimarySubject, &t.RescheduleRate, &t.NoShowCount, &t.ReliabilityScore,
			&cert, &t.ActiveStatus, &lastLogin,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tutor")
		}
		if err := json.Unmarshal([]byte(subjects), &t.SubjectsTaught); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal subjects")
		}
		t.CertificationLevel = model.CertificationLevel(cert)
		if lastLogin.Valid {
			ts := lastLogin.Time
			t.LastLogin = &ts
		}
		tutors = append(tutors, t)
	}
	return tutors, eris.Wrap(rows.Err(), "sqlite: load tutors iterate")
}

func (s *SQLiteStore) LoadAggregates(ctx context.Context, runID string) ([]model.TutorAggregate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tutor_id, total_sessions_30d, total_sessions_7d, avg_rating_30d, avg_rating_7d,
		        avg_engagement_score, avg_empathy_score, avg_clarity_score, avg_student_satisfaction,
		        first_session_avg_rating, first_session_count, poor_first_session_flag, recommendation_rate,
		        technical_issue_rate, sentiment_trend_7d, churn_probability, churn_risk_level, churn_signals_detected
		 FROM tutor_aggregates WHERE run_id = ? ORDER BY tutor_id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load aggregates")
	}
	defer rows.Close()

	var aggregates []model.TutorAggregate
	for rows.Next() {
		var a model.TutorAggregate
		var rating30d, rating7d, firstRating, sentiment sql.NullFloat64
		var level string
		if err := rows.Scan(&a.TutorID, &a.TotalSessions30d, &a.TotalSessions7d, &rating30d, &rating7d,
			&a.AvgEngagementScore, &a.AvgEmpathyScore, &a.AvgClarityScore, &a.AvgStudentSatisfaction,
			&firstRating, &a.FirstSessionCount, &a.PoorFirstSessionFlag, &a.RecommendationRate,
			&a.TechnicalIssueRate, &sentiment, &a.ChurnProbability, &level, &a.ChurnSignalsDetected,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan aggregate")
		}
		a.AvgRating30d = nullableFloat(rating30d)
		a.AvgRating7d = nullableFloat(rating7d)
		a.FirstSessionAvgRating = nullableFloat(firstRating)
		a.SentimentTrend7d = nullableFloat(sentiment)
		a.ChurnRiskLevel = model.RiskLevel(level)
		aggregates = append(aggregates, a)
	}
	return aggregates, eris.Wrap(rows.Err(), "sqlite: load aggregates iterate")
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
