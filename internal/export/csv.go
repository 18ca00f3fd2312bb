// Package export writes generated datasets to CSV files plus a YAML run
// manifest, one file per table, matching the column contracts downstream
// analytics notebooks consume.
package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/brightpath/tutorsim/internal/model"
)

// timestampLayout is the wall-clock format used in every CSV column.
const timestampLayout = "2006-01-02 15:04:05"

var tutorColumns = []string{
	"tutor_id",
	"months_experience",
	"total_sessions_completed",
	"avg_historical_rating",
	"subjects_taught",
	"primary_subject",
	"reschedule_rate",
	"no_show_count",
	"reliability_score",
	"certification_level",
	"active_status",
	"last_login",
}

var sessionColumns = []string{
	"session_id",
	"tutor_id",
	"session_datetime",
	"scheduled_duration_min",
	"actual_duration_min",
	"subject",
	"grade_level",
	"is_first_session",
	"session_completed",
	"student_showed",
	"tutor_showed",
	"connection_quality",
	"had_technical_issues",
	"student_attention_pct",
	"tutor_camera_on_pct",
	"tutor_speak_ratio",
	"screen_share_pct",
	"overall_sentiment",
	"student_sentiment",
	"tutor_sentiment",
	"empathy_score",
	"clarity_score",
	"engagement_score",
	"student_rating",
	"student_satisfaction",
	"would_recommend",
}

var aggregateColumns = []string{
	"tutor_id",
	"total_sessions_30d",
	"total_sessions_7d",
	"avg_rating_30d",
	"avg_rating_7d",
	"avg_engagement_score",
	"avg_empathy_score",
	"avg_clarity_score",
	"avg_student_satisfaction",
	"first_session_avg_rating",
	"first_session_count",
	"poor_first_session_flag",
	"recommendation_rate",
	"technical_issue_rate",
	"sentiment_trend_7d",
	"churn_probability",
	"churn_risk_level",
	"churn_signals_detected",
}

var experimentColumns = []string{
	"experiment_id",
	"name",
	"hypothesis",
	"description",
	"variants",
	"target_segment",
	"primary_metric",
	"secondary_metrics",
	"start_date",
	"end_date",
	"status",
	"sample_size",
	"significance",
	"winner",
	"notes",
}

var assignmentColumns = []string{
	"experiment_id",
	"tutor_id",
	"variant",
	"assigned_at",
	"exposed_at",
	"converted_at",
	"conversion_value",
}

var interventionColumns = []string{
	"intervention_id",
	"tutor_id",
	"intervention_type",
	"channel",
	"subject",
	"content",
	"template_id",
	"experiment_id",
	"experiment_variant",
	"sent_at",
	"delivered_at",
	"opened_at",
	"clicked_at",
	"responded_at",
	"response_type",
	"engagement_before",
	"engagement_after",
	"sessions_before_count",
	"sessions_after_count",
	"status",
}

var eventColumns = []string{
	"event_id",
	"tutor_id",
	"event_type",
	"event_data",
	"timestamp",
}

// WriteDataset writes every present table under dir and returns the file
// names written. Optional tables that are nil produce no file, matching the
// generator's skip semantics.
func WriteDataset(dir string, ds *model.Dataset) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "export: create output dir %s", dir)
	}

	var written []string
	write := func(name string, columns []string, rows [][]string) error {
		path := filepath.Join(dir, name)
		if err := writeCSV(path, columns, rows); err != nil {
			return err
		}
		written = append(written, name)
		zap.L().Info("export: wrote table", zap.String("file", name), zap.Int("rows", len(rows)))
		return nil
	}

	if err := write("tutor_profiles.csv", tutorColumns, tutorRows(ds.Tutors)); err != nil {
		return nil, err
	}
	if err := write("sessions.csv", sessionColumns, sessionRows(ds.Sessions)); err != nil {
		return nil, err
	}
	if err := write("tutor_aggregates.csv", aggregateColumns, aggregateRows(ds.Aggregates)); err != nil {
		return nil, err
	}
	if ds.Experiments != nil {
		rows, err := experimentRows(ds.Experiments)
		if err != nil {
			return nil, err
		}
		if err := write("experiments.csv", experimentColumns, rows); err != nil {
			return nil, err
		}
	}
	if ds.Assignments != nil {
		if err := write("experiment_assignments.csv", assignmentColumns, assignmentRows(ds.Assignments)); err != nil {
			return nil, err
		}
	}
	if ds.Interventions != nil {
		if err := write("interventions.csv", interventionColumns, interventionRows(ds.Interventions)); err != nil {
			return nil, err
		}
	}
	if ds.Events != nil {
		rows, err := eventRows(ds.Events)
		if err != nil {
			return nil, err
		}
		if err := write("engagement_events.csv", eventColumns, rows); err != nil {
			return nil, err
		}
	}
	return written, nil
}

func writeCSV(path string, columns []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(columns); err != nil {
		return eris.Wrapf(err, "export: write header %s", path)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return eris.Wrapf(err, "export: write row %s", path)
		}
	}
	w.Flush()
	return eris.Wrapf(w.Error(), "export: flush %s", path)
}

func tutorRows(tutors []model.Tutor) [][]string {
	rows := make([][]string, 0, len(tutors))
	for i := range tutors {
		t := &tutors[i]
		rows = append(rows, []string{
			t.TutorID,
			strconv.Itoa(t.MonthsExperience),
			strconv.Itoa(t.TotalSessionsCompleted),
			fmtFloat(t.AvgHistoricalRating),
			strings.Join(t.SubjectsTaught, ","),
			t.PrimarySubject,
			fmtFloat(t.RescheduleRate),
			strconv.Itoa(t.NoShowCount),
			fmtFloat(t.ReliabilityScore),
			string(t.CertificationLevel),
			strconv.FormatBool(t.ActiveStatus),
			fmtTimePtr(t.LastLogin),
		})
	}
	return rows
}

func sessionRows(sessions []model.Session) [][]string {
	rows := make([][]string, 0, len(sessions))
	for i := range sessions {
		s := &sessions[i]
		row := []string{
			s.SessionID,
			s.TutorID,
			s.SessionDatetime.Format(timestampLayout),
			strconv.Itoa(s.ScheduledDurationMin),
			strconv.Itoa(s.ActualDurationMin),
			s.Subject,
			s.GradeLevel,
			fmtBoolPtr(s.IsFirstSession),
			strconv.FormatBool(s.SessionCompleted),
			strconv.FormatBool(s.StudentShowed),
			strconv.FormatBool(s.TutorShowed),
			string(s.ConnectionQuality),
		}
		if m := s.Metrics; m != nil {
			row = append(row,
				strconv.FormatBool(m.HadTechnicalIssues),
				fmtFloat(m.StudentAttentionPct),
				fmtFloat(m.TutorCameraOnPct),
				fmtFloat(m.TutorSpeakRatio),
				fmtFloat(m.ScreenSharePct),
				fmtFloat(m.OverallSentiment),
				fmtFloat(m.StudentSentiment),
				fmtFloat(m.TutorSentiment),
				fmtFloat(m.EmpathyScore),
				fmtFloat(m.ClarityScore),
				fmtFloat(m.EngagementScore),
				fmtFloat(m.StudentRating),
				fmtFloat(m.StudentSatisfaction),
				strconv.FormatBool(m.WouldRecommend),
			)
		} else {
			// Incomplete sessions have no metrics; emit empty cells.
			row = append(row, make([]string, 14)...)
		}
		rows = append(rows, row)
	}
	return rows
}

func aggregateRows(aggregates []model.TutorAggregate) [][]string {
	rows := make([][]string, 0, len(aggregates))
	for i := range aggregates {
		a := &aggregates[i]
		rows = append(rows, []string{
			a.TutorID,
			strconv.Itoa(a.TotalSessions30d),
			strconv.Itoa(a.TotalSessions7d),
			fmtFloatPtr(a.AvgRating30d),
			fmtFloatPtr(a.AvgRating7d),
			fmtFloat(a.AvgEngagementScore),
			fmtFloat(a.AvgEmpathyScore),
			fmtFloat(a.AvgClarityScore),
			fmtFloat(a.AvgStudentSatisfaction),
			fmtFloatPtr(a.FirstSessionAvgRating),
			strconv.Itoa(a.FirstSessionCount),
			strconv.FormatBool(a.PoorFirstSessionFlag),
			fmtFloat(a.RecommendationRate),
			fmtFloat(a.TechnicalIssueRate),
			fmtFloatPtr(a.SentimentTrend7d),
			fmtFloat(a.ChurnProbability),
			string(a.ChurnRiskLevel),
			strconv.Itoa(a.ChurnSignalsDetected),
		})
	}
	return rows
}

func experimentRows(experiments []model.Experiment) ([][]string, error) {
	rows := make([][]string, 0, len(experiments))
	for i := range experiments {
		e := &experiments[i]
		variants, err := json.Marshal(e.Variants)
		if err != nil {
			return nil, eris.Wrap(err, "export: marshal variants")
		}
		segmentJSON, err := json.Marshal(e.TargetSegment)
		if err != nil {
			return nil, eris.Wrap(err, "export: marshal target segment")
		}
		secondary, err := json.Marshal(e.SecondaryMetrics)
		if err != nil {
			return nil, eris.Wrap(err, "export: marshal secondary metrics")
		}
		rows = append(rows, []string{
			e.ExperimentID,
			e.Name,
			e.Hypothesis,
			e.Description,
			string(variants),
			string(segmentJSON),
			e.PrimaryMetric,
			string(secondary),
			e.StartDate.Format(timestampLayout),
			fmtTimePtr(e.EndDate),
			string(e.Status),
			strconv.Itoa(e.SampleSize),
			fmtFloatPtr(e.Significance),
			fmtStringPtr(e.Winner),
			e.Notes,
		})
	}
	return rows, nil
}

func assignmentRows(assignments []model.ExperimentAssignment) [][]string {
	rows := make([][]string, 0, len(assignments))
	for i := range assignments {
		a := &assignments[i]
		rows = append(rows, []string{
			a.ExperimentID,
			a.TutorID,
			a.Variant,
			a.AssignedAt.Format(timestampLayout),
			fmtTimePtr(a.ExposedAt),
			fmtTimePtr(a.ConvertedAt),
			fmtFloatPtr(a.ConversionValue),
		})
	}
	return rows
}

func interventionRows(interventions []model.Intervention) [][]string {
	rows := make([][]string, 0, len(interventions))
	for i := range interventions {
		iv := &interventions[i]
		rows = append(rows, []string{
			iv.InterventionID,
			iv.TutorID,
			string(iv.InterventionType),
			iv.Channel,
			iv.Subject,
			iv.Content,
			iv.TemplateID,
			fmtStringPtr(iv.ExperimentID),
			fmtStringPtr(iv.ExperimentVariant),
			iv.SentAt.Format(timestampLayout),
			fmtTimePtr(iv.DeliveredAt),
			fmtTimePtr(iv.OpenedAt),
			fmtTimePtr(iv.ClickedAt),
			fmtTimePtr(iv.RespondedAt),
			fmtStringPtr(iv.ResponseType),
			fmtFloat(iv.EngagementBefore),
			fmtFloat(iv.EngagementAfter),
			strconv.Itoa(iv.SessionsBeforeCount),
			strconv.Itoa(iv.SessionsAfterCount),
			string(iv.Status),
		})
	}
	return rows
}

func eventRows(events []model.EngagementEvent) ([][]string, error) {
	rows := make([][]string, 0, len(events))
	for i := range events {
		ev := &events[i]
		data, err := json.Marshal(ev.EventData)
		if err != nil {
			return nil, eris.Wrapf(err, "export: marshal event data %s", ev.EventID)
		}
		rows = append(rows, []string{
			ev.EventID,
			ev.TutorID,
			string(ev.EventType),
			string(data),
			ev.Timestamp.Format(timestampLayout),
		})
	}
	return rows, nil
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func fmtFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return fmtFloat(*v)
}

func fmtBoolPtr(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}

func fmtStringPtr(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func fmtTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timestampLayout)
}
