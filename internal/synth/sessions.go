package synth

import (
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/brightpath/tutorsim/internal/model"
	"github.com/brightpath/tutorsim/internal/randx"
)

// Weekend volume relative to weekday volume.
const weekendVolumeFactor = 0.7

// connectionPenalty maps connection quality to a student-rating offset.
var connectionPenalty = map[model.ConnectionQuality]float64{
	model.ConnectionExcellent: 0,
	model.ConnectionGood:      -0.1,
	model.ConnectionFair:      -0.3,
	model.ConnectionPoor:      -0.6,
}

// peakHours is a tutor's stable preferred teaching window for the run.
type peakHours struct {
	start   int
	end     int
	morning bool
}

// metricTrends holds the per-tutor drift coefficients applied multiplicatively
// over the generation window: value * (1 + trend * dayFraction).
type metricTrends struct {
	engagement   float64
	empathy      float64
	clarity      float64
	satisfaction float64
}

// dailyVariance holds the run-wide shared per-day noise multipliers.
type dailyVariance struct {
	engagement   []float64
	empathy      []float64
	clarity      []float64
	satisfaction []float64
}

// SessionParams configures the session stream.
type SessionParams struct {
	Days           int
	SessionsPerDay int
	Now            time.Time // reference "now"; the window is the Days before it
	Seed           int64
}

// SessionGenerator produces the ordered session stream for a tutor table.
type SessionGenerator struct {
	params SessionParams
	rng    *randx.Source
}

// NewSessionGenerator returns a generator with its own seeded source.
func NewSessionGenerator(params SessionParams) *SessionGenerator {
	return &SessionGenerator{params: params, rng: randx.New(params.Seed)}
}

// sampleTrends draws drift coefficients keyed off the tutor's reliability
// tier: low-reliability tutors decline, high-reliability tutors hold or
// improve, the middle is mixed.
func sampleTrends(rng *randx.Source, reliability float64) metricTrends {
	switch {
	case reliability < 0.6:
		return metricTrends{
			engagement:   rng.Uniform(-0.15, -0.05),
			empathy:      rng.Uniform(-0.12, -0.03),
			clarity:      rng.Uniform(-0.13, -0.04),
			satisfaction: rng.Uniform(-0.14, -0.05),
		}
	case reliability > 0.8:
		return metricTrends{
			engagement:   rng.Uniform(-0.02, 0.10),
			empathy:      rng.Uniform(-0.02, 0.08),
			clarity:      rng.Uniform(-0.01, 0.09),
			satisfaction: rng.Uniform(-0.02, 0.10),
		}
	default:
		return metricTrends{
			engagement:   rng.Uniform(-0.08, 0.05),
			empathy:      rng.Uniform(-0.06, 0.04),
			clarity:      rng.Uniform(-0.07, 0.05),
			satisfaction: rng.Uniform(-0.08, 0.06),
		}
	}
}

func samplePeakHours(rng *randx.Source) peakHours {
	if rng.Bernoulli(0.35) {
		start := randx.Choice(rng, []int{8, 9, 10})
		return peakHours{start: start, end: start + 4, morning: true}
	}
	start := randx.Choice(rng, []int{15, 16, 17, 18})
	end := start + 4
	if end > 21 {
		end = 21
	}
	return peakHours{start: start, end: end}
}

func sampleDailyVariance(rng *randx.Source, days int) dailyVariance {
	dv := dailyVariance{
		engagement:   make([]float64, days),
		empathy:      make([]float64, days),
		clarity:      make([]float64, days),
		satisfaction: make([]float64, days),
	}
	for d := 0; d < days; d++ {
		dv.engagement[d] = rng.Uniform(0.85, 1.15)
	}
	for d := 0; d < days; d++ {
		dv.empathy[d] = rng.Uniform(0.92, 1.08)
	}
	for d := 0; d < days; d++ {
		dv.clarity[d] = rng.Uniform(0.90, 1.10)
	}
	for d := 0; d < days; d++ {
		dv.satisfaction[d] = rng.Uniform(0.88, 1.12)
	}
	return dv
}

// DailySchedule returns the per-day session counts for the window, with
// weekend days reduced to 70% of the weekday target. It is deterministic in
// the parameters alone.
func DailySchedule(start time.Time, days, sessionsPerDay int) []int {
	counts := make([]int, days)
	for d := 0; d < days; d++ {
		date := start.AddDate(0, 0, d)
		if isWeekend(date) {
			counts[d] = int(float64(sessionsPerDay) * weekendVolumeFactor)
		} else {
			counts[d] = sessionsPerDay
		}
	}
	return counts
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Generate produces the full ordered session stream.
func (g *SessionGenerator) Generate(tutors []model.Tutor) ([]model.Session, error) {
	p := g.params
	if p.Days < 1 || p.SessionsPerDay < 1 {
		return nil, eris.Errorf("sessions: invalid window days=%d sessions_per_day=%d", p.Days, p.SessionsPerDay)
	}

	active := make([]*model.Tutor, 0, len(tutors))
	for i := range tutors {
		if tutors[i].ActiveStatus {
			active = append(active, &tutors[i])
		}
	}
	if len(active) == 0 {
		return nil, eris.New("sessions: no active tutors to schedule")
	}

	// Busier tutors get proportionally more sessions.
	weights := make([]float64, len(active))
	for i, t := range active {
		weights[i] = float64(t.TotalSessionsCompleted)
	}

	// Per-tutor stable patterns for the run.
	peaks := make(map[string]peakHours, len(active))
	trends := make(map[string]metricTrends, len(active))
	for _, t := range active {
		peaks[t.TutorID] = samplePeakHours(g.rng)
	}
	for _, t := range active {
		trends[t.TutorID] = sampleTrends(g.rng, t.ReliabilityScore)
	}
	variance := sampleDailyVariance(g.rng, p.Days)

	start := p.Now.AddDate(0, 0, -p.Days)
	schedule := DailySchedule(start, p.Days, p.SessionsPerDay)

	var sessions []model.Session
	seq := 0
	for day, count := range schedule {
		date := start.AddDate(0, 0, day)
		for i := 0; i < count; i++ {
			seq++
			t := active[g.rng.WeightedIndex(weights)]
			sessions = append(sessions, g.one(seq, t, date, day, peaks[t.TutorID], trends[t.TutorID], variance))
		}
	}

	zap.L().Debug("sessions: generated stream",
		zap.Int("sessions", len(sessions)),
		zap.Int("days", p.Days),
		zap.Int("active_tutors", len(active)),
	)
	return sessions, nil
}

func (g *SessionGenerator) one(seq int, t *model.Tutor, date time.Time, day int, peak peakHours, trend metricTrends, variance dailyVariance) model.Session {
	rng := g.rng
	weekend := isWeekend(date)

	hour := g.sampleHour(t, peak)
	if weekend {
		// Weekend hours spread out a little.
		hour = hour + rng.IntBetween(-1, 1)
		if hour < 8 {
			hour = 8
		}
		if hour > 21 {
			hour = 21
		}
	}
	minute := rng.IntBetween(0, 59)
	dt := time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location())

	scheduled := 60
	switch roll := rng.Float64(); {
	case roll < 0.15:
		scheduled = 30
	case roll < 0.90:
		scheduled = 60
	default:
		scheduled = 90
	}
	actual := int(float64(scheduled) * rng.Uniform(0.85, 1.15))

	quality := g.sampleConnectionQuality(hour, weekend)

	studentShowed := rng.Float64() > 0.03
	noShowProb := clip(float64(t.NoShowCount)*0.01, 0, 0.15)
	tutorShowed := rng.Float64() > noShowProb
	completed := studentShowed && tutorShowed

	s := model.Session{
		SessionID:            sessionID(seq),
		TutorID:              t.TutorID,
		SessionDatetime:      dt,
		ScheduledDurationMin: scheduled,
		ActualDurationMin:    actual,
		Subject:              randx.Choice(rng, t.SubjectsTaught),
		GradeLevel:           randx.Choice(rng, model.GradeLevels),
		SessionCompleted:     completed,
		StudentShowed:        studentShowed,
		TutorShowed:          tutorShowed,
		ConnectionQuality:    quality,
	}
	if !completed {
		// Metric fields stay absent, not zeroed.
		return s
	}

	isFirst := rng.Bernoulli(0.15)
	s.IsFirstSession = &isFirst
	s.Metrics = g.sampleMetrics(t, day, isFirst, connectionPenalty[quality], trend, variance)
	return s
}

// sampleHour places 70% of a tutor's sessions in their preferred window;
// struggling tutors take odd hours more often for the rest.
func (g *SessionGenerator) sampleHour(t *model.Tutor, peak peakHours) int {
	rng := g.rng
	if rng.Bernoulli(0.7) {
		return rng.IntBetween(peak.start, peak.end)
	}
	if t.ReliabilityScore < 0.6 {
		odd := []int{6, 7, 22, 23, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21}
		return randx.Choice(rng, odd)
	}
	return rng.IntBetween(9, 21)
}

// sampleConnectionQuality draws the 4-level quality bucket; evening peak
// hours are worse, weekends slightly better.
func (g *SessionGenerator) sampleConnectionQuality(hour int, weekend bool) model.ConnectionQuality {
	var pExcellent, pGood, pFair float64
	switch {
	case hour >= 18 && hour <= 21:
		pExcellent, pGood, pFair = 0.50, 0.30, 0.15
	case weekend:
		pExcellent, pGood, pFair = 0.65, 0.28, 0.06
	default:
		pExcellent, pGood, pFair = 0.60, 0.30, 0.08
	}
	switch roll := g.rng.Float64(); {
	case roll < pExcellent:
		return model.ConnectionExcellent
	case roll < pExcellent+pGood:
		return model.ConnectionGood
	case roll < pExcellent+pGood+pFair:
		return model.ConnectionFair
	default:
		return model.ConnectionPoor
	}
}

// sampleMetrics fills the completed-session metric bundle. Each trended
// metric applies base * (1 + trend*dayFraction) * dailyVariance[day].
func (g *SessionGenerator) sampleMetrics(t *model.Tutor, day int, isFirst bool, connPenalty float64, trend metricTrends, variance dailyVariance) *model.SessionMetrics {
	rng := g.rng
	rel := t.ReliabilityScore
	dayFraction := float64(day) / float64(g.params.Days)

	attention := clip(rng.Beta(5, 2)*100*(0.8+rel*0.2), 10, 100)
	camera := clip(rng.Beta(9, 1)*100, 70, 100)
	speak := clip(rng.Normal(0.50, 0.12), 0.20, 0.80)
	screen := clip(rng.Beta(3, 2)*100, 10, 95)

	overallSent := clip(rng.Normal(0.3+rel*0.4, 0.15), -0.5, 0.95)
	studentSent := clip(overallSent+rng.Normal(0.05, 0.1), -0.5, 0.95)
	tutorSent := clip(rng.Normal(0.5, 0.15), -0.2, 0.95)

	drift := func(base, coeff float64, dayVar []float64) float64 {
		return base * (1 + coeff*dayFraction) * dayVar[day]
	}

	baseEmpathy := 5 + rel*3 + (float64(t.MonthsExperience)/60)*1.5 + rng.Normal(0, 0.8)
	empathy := clip(drift(baseEmpathy, trend.empathy, variance.empathy), 1, 10)

	baseClarity := 5 + rel*3 + rng.Normal(0, 1)
	clarity := clip(drift(baseClarity, trend.clarity, variance.clarity), 1, 10)

	baseEngagement := (attention*0.4 + (1-math.Abs(speak-0.5)*2)*30 + (overallSent+1)*15) / 10
	engagement := clip(drift(baseEngagement, trend.engagement, variance.engagement), 1, 10)

	qualityFactor := (empathy + clarity + engagement) / 30
	firstPenalty := 0.0
	if isFirst {
		firstPenalty = -0.3
	}
	rating := clip(2.0+qualityFactor*2.8+firstPenalty+connPenalty+rng.Normal(0, 0.4), 1, 5)

	baseSatisfaction := rating*2 + rng.Normal(0, 0.5)
	satisfaction := clip(drift(baseSatisfaction, trend.satisfaction, variance.satisfaction), 1, 10)

	return &model.SessionMetrics{
		StudentAttentionPct: roundTo(attention, 1),
		TutorCameraOnPct:    roundTo(camera, 1),
		TutorSpeakRatio:     roundTo(speak, 3),
		ScreenSharePct:      roundTo(screen, 1),
		OverallSentiment:    roundTo(overallSent, 3),
		StudentSentiment:    roundTo(studentSent, 3),
		TutorSentiment:      roundTo(tutorSent, 3),
		EmpathyScore:        roundTo(empathy, 2),
		ClarityScore:        roundTo(clarity, 2),
		EngagementScore:     roundTo(engagement, 2),
		StudentRating:       roundTo(rating, 1),
		StudentSatisfaction: roundTo(satisfaction, 1),
		WouldRecommend:      satisfaction >= 7.0,
		HadTechnicalIssues:  rng.Bernoulli(0.08),
	}
}
