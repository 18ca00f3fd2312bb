package synth

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/brightpath/tutorsim/internal/model"
	"github.com/brightpath/tutorsim/internal/randx"
)

// Params configures a full generation run. Two runs with equal Params
// (including Now) produce identical datasets.
type Params struct {
	Tutors         int
	Days           int
	SessionsPerDay int
	Seed           int64
	Now            time.Time

	IncludeEvents        bool
	IncludeExperiments   bool
	IncludeInterventions bool
}

// Validate rejects configuration errors before any generation starts.
func (p Params) Validate() error {
	if p.Tutors < 1 {
		return eris.Errorf("pipeline: tutor count must be >= 1, got %d", p.Tutors)
	}
	if p.Days < 1 {
		return eris.Errorf("pipeline: day count must be >= 1, got %d", p.Days)
	}
	if p.SessionsPerDay < 1 {
		return eris.Errorf("pipeline: sessions per day must be >= 1, got %d", p.SessionsPerDay)
	}
	if p.Now.IsZero() {
		return eris.New("pipeline: reference time is required")
	}
	return nil
}

// Pipeline runs the generators in their one fixed order:
// profiles → sessions → aggregates → experiments → assignments →
// interventions → events → last-login backfill. Profiles and sessions are
// required; every later stage is optional and skips with a warning when
// disabled or when a dependency is missing.
type Pipeline struct {
	params Params
}

// New returns a pipeline for the given parameters.
func New(params Params) *Pipeline {
	return &Pipeline{params: params}
}

// Run executes the whole pipeline and returns the dataset.
func (p *Pipeline) Run() (*model.Dataset, error) {
	if err := p.params.Validate(); err != nil {
		return nil, err
	}
	seed := p.params.Seed
	ds := &model.Dataset{}

	tutors, err := NewProfileGenerator(seed).Generate(p.params.Tutors)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: tutor profiles")
	}
	ds.Tutors = tutors
	zap.L().Info("pipeline: tutor profiles generated", zap.Int("tutors", len(tutors)))

	sessions, err := NewSessionGenerator(SessionParams{
		Days:           p.params.Days,
		SessionsPerDay: p.params.SessionsPerDay,
		Now:            p.params.Now,
		Seed:           seed,
	}).Generate(tutors)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: session stream")
	}
	ds.Sessions = sessions
	zap.L().Info("pipeline: sessions generated", zap.Int("sessions", len(sessions)))

	aggregates, err := NewAggregator(seed).Aggregate(tutors, sessions)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: tutor aggregates")
	}
	ds.Aggregates = aggregates
	zap.L().Info("pipeline: aggregates computed", zap.Int("tutors_with_sessions", len(aggregates)))

	if p.params.IncludeExperiments {
		ds.Experiments = BuildExperiments(p.params.Now, p.params.Days)
		ds.Assignments = NewAssignmentGenerator(seed).Generate(ds.Experiments, tutors, aggregates)
		zap.L().Info("pipeline: experiments assigned",
			zap.Int("experiments", len(ds.Experiments)),
			zap.Int("assignments", len(ds.Assignments)),
		)
	} else {
		zap.L().Warn("pipeline: experiments stage disabled, skipping")
	}

	if p.params.IncludeInterventions {
		if len(ds.Experiments) == 0 || len(ds.Assignments) == 0 {
			// Missing dependency is a skip, not an abort.
			zap.L().Warn("pipeline: interventions need experiments and assignments, skipping")
		} else {
			ds.Interventions = NewInterventionGenerator(InterventionParams{
				Days: p.params.Days,
				Now:  p.params.Now,
				Seed: seed,
			}).Generate(tutors, aggregates, sessions, ds.Assignments, ds.Experiments)
			zap.L().Info("pipeline: interventions generated", zap.Int("interventions", len(ds.Interventions)))
		}
	} else {
		zap.L().Warn("pipeline: interventions stage disabled, skipping")
	}

	if p.params.IncludeEvents {
		events, err := NewEventGenerator(EventParams{
			Days: p.params.Days,
			Now:  p.params.Now,
			Seed: seed,
		}).Generate(tutors, sessions, ds.Interventions)
		if err != nil {
			// Events are optional: warn and keep the partial dataset usable.
			zap.L().Warn("pipeline: event generation failed, continuing without events", zap.Error(err))
		} else {
			ds.Events = events
			zap.L().Info("pipeline: engagement events generated", zap.Int("events", len(events)))
		}
	} else {
		zap.L().Warn("pipeline: events stage disabled, skipping")
	}

	p.backfillLastLogin(ds)

	return ds, nil
}

// backfillLastLogin is the one documented mutation of an earlier table: each
// tutor's last_login becomes their latest login event; tutors with no logins
// get a timestamp 7-30 days before the reference time.
func (p *Pipeline) backfillLastLogin(ds *model.Dataset) {
	lastLogin := make(map[string]time.Time)
	for i := range ds.Events {
		ev := &ds.Events[i]
		if ev.EventType != model.EventLogin {
			continue
		}
		if ev.Timestamp.After(lastLogin[ev.TutorID]) {
			lastLogin[ev.TutorID] = ev.Timestamp
		}
	}

	rng := randx.New(p.params.Seed)
	filled := 0
	for i := range ds.Tutors {
		t := &ds.Tutors[i]
		if ts, ok := lastLogin[t.TutorID]; ok {
			t.LastLogin = &ts
			filled++
			continue
		}
		ts := p.params.Now.AddDate(0, 0, -rng.IntBetween(7, 30))
		t.LastLogin = &ts
	}
	zap.L().Debug("pipeline: backfilled last_login",
		zap.Int("from_events", filled),
		zap.Int("tutors", len(ds.Tutors)),
	)
}
