package synth

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/brightpath/tutorsim/internal/model"
	"github.com/brightpath/tutorsim/internal/randx"
)

// ProfileGenerator samples tutor profiles. Traits are independent across
// tutors; within a tutor, rating and reschedule rate are deterministic
// functions of the reliability draw plus bounded noise so the correlation
// structure survives any seed.
type ProfileGenerator struct {
	rng *randx.Source
}

// NewProfileGenerator returns a generator with its own seeded source.
func NewProfileGenerator(seed int64) *ProfileGenerator {
	return &ProfileGenerator{rng: randx.New(seed)}
}

// Generate produces exactly n tutors with unique sequential ids.
func (g *ProfileGenerator) Generate(n int) ([]model.Tutor, error) {
	if n < 1 {
		return nil, eris.Errorf("profiles: tutor count must be >= 1, got %d", n)
	}

	tutors := make([]model.Tutor, 0, n)
	for i := 1; i <= n; i++ {
		tutors = append(tutors, g.one(i))
	}

	zap.L().Debug("profiles: generated tutors", zap.Int("count", len(tutors)))
	return tutors, nil
}

func (g *ProfileGenerator) one(seq int) model.Tutor {
	rng := g.rng

	// Experience is power-law-ish: many new tutors, few veterans.
	months := int(rng.Gamma(2, 12))
	if months < 1 {
		months = 1
	}
	if months > 120 {
		months = 120
	}

	// Lifetime volume correlates with tenure.
	baseSessions := float64(months) * rng.Uniform(8, 25)
	totalSessions := int(baseSessions * rng.Uniform(0.7, 1.3))

	// Most tutors are reliable; beta(8,2) skews high.
	reliability := rng.Beta(8, 2)

	experienceBonus := math.Min(float64(months)/60, 0.15)
	rating := clip(3.5+reliability*1.2+experienceBonus+rng.Normal(0, 0.15), 2.0, 5.0)

	reschedule := clip((1-reliability)*0.25+rng.Uniform(0, 0.05), 0, 0.35)

	noShows := 0
	if rng.Bernoulli(0.16) {
		noShows = rng.Poisson(3)
	}

	primary := randx.Choice(rng, model.Subjects)
	numSubjects := 1
	switch roll := rng.Float64(); {
	case roll < 0.4:
		numSubjects = 1
	case roll < 0.8:
		numSubjects = 2
	default:
		numSubjects = 3
	}
	subjects := g.sampleSubjects(numSubjects, primary)

	cert := model.CertificationBasic
	switch roll := rng.Float64(); {
	case roll < 0.5:
		cert = model.CertificationBasic
	case roll < 0.85:
		cert = model.CertificationAdvanced
	default:
		cert = model.CertificationExpert
	}

	return model.Tutor{
		TutorID:                tutorID(seq),
		MonthsExperience:       months,
		TotalSessionsCompleted: totalSessions,
		AvgHistoricalRating:    roundTo(rating, 2),
		SubjectsTaught:         subjects,
		PrimarySubject:         primary,
		RescheduleRate:         roundTo(reschedule, 3),
		NoShowCount:            noShows,
		ReliabilityScore:       roundTo(reliability, 3),
		CertificationLevel:     cert,
		ActiveStatus:           rng.Bernoulli(0.92),
		LastLogin:              nil, // backfilled from engagement events
	}
}

// sampleSubjects picks count distinct subjects with the primary always present.
func (g *ProfileGenerator) sampleSubjects(count int, primary string) []string {
	picked := []string{primary}
	pool := make([]string, 0, len(model.Subjects)-1)
	for _, s := range model.Subjects {
		if s != primary {
			pool = append(pool, s)
		}
	}
	for len(picked) < count {
		i := g.rng.IntBetween(0, len(pool)-1)
		picked = append(picked, pool[i])
		pool = append(pool[:i], pool[i+1:]...)
	}
	return picked
}
