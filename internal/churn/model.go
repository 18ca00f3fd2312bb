// Package churn is the one-shot logistic-regression consumer of the
// synthesized aggregates. It is fully decoupled from the generators: it takes
// the tutor and aggregate tables, derives a binary churn label from the
// churn probability, and fits a small model whose coefficients feed the
// feature-importance report.
package churn

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/brightpath/tutorsim/internal/model"
	"github.com/brightpath/tutorsim/internal/randx"
)

// churnedThreshold converts churn probability into the binary training label.
const churnedThreshold = 0.5

// Training hyperparameters. The model is a reporting aid, not a production
// fit, so these stay fixed.
const (
	learningRate = 0.1
	iterations   = 500
	testFraction = 0.25
)

// FeatureWeight is one fitted coefficient.
type FeatureWeight struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"importance"`
}

// Result reports a training run. Skipped is true when the labels are
// degenerate (all tutors share one churn class) and no model was fit.
type Result struct {
	Skipped   bool
	Accuracy  float64
	Precision float64
	Recall    float64
	TrainSize int
	TestSize  int
	Weights   []FeatureWeight
}

// featureNames is the fixed model input order.
var featureNames = []string{
	"months_experience",
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
	"experience_level_Mid",
	"experience_level_Senior",
	"certification_Advanced",
	"certification_Expert",
}

// Train fits the churn model over the tutor ⋈ aggregate join. Missing
// windowed means are zero-filled, matching the report's feature contract.
func Train(tutors []model.Tutor, aggregates []model.TutorAggregate, seed int64) (*Result, error) {
	if len(aggregates) == 0 {
		return nil, eris.New("churn: no aggregate rows to train on")
	}
	tutorIdx := make(map[string]*model.Tutor, len(tutors))
	for i := range tutors {
		tutorIdx[tutors[i].TutorID] = &tutors[i]
	}

	var rows [][]float64
	var labels []int
	positives := 0
	for i := range aggregates {
		a := &aggregates[i]
		t := tutorIdx[a.TutorID]
		if t == nil {
			return nil, eris.Errorf("churn: aggregate row %s has no tutor", a.TutorID)
		}
		rows = append(rows, featureVector(t, a))
		label := 0
		if a.ChurnProbability > churnedThreshold {
			label = 1
			positives++
		}
		labels = append(labels, label)
	}

	if positives == 0 || positives == len(labels) {
		// Stratified splitting is impossible with one class; skip, don't fail.
		zap.L().Warn("churn: all tutors share one churn label, skipping training",
			zap.Int("rows", len(labels)),
			zap.Int("churned", positives),
		)
		return &Result{Skipped: true}, nil
	}

	trainX, trainY, testX, testY := split(rows, labels, seed)
	means, stds := standardize(trainX)
	apply(trainX, means, stds)
	apply(testX, means, stds)

	weights, bias := fit(trainX, trainY)

	correct, truePos, predPos, actualPos := 0, 0, 0, 0
	for i, x := range testX {
		pred := 0
		if sigmoid(dot(weights, x)+bias) >= 0.5 {
			pred = 1
		}
		if pred == testY[i] {
			correct++
		}
		if pred == 1 {
			predPos++
			if testY[i] == 1 {
				truePos++
			}
		}
		if testY[i] == 1 {
			actualPos++
		}
	}

	res := &Result{
		TrainSize: len(trainX),
		TestSize:  len(testX),
		Accuracy:  float64(correct) / float64(len(testX)),
	}
	if predPos > 0 {
		res.Precision = float64(truePos) / float64(predPos)
	}
	if actualPos > 0 {
		res.Recall = float64(truePos) / float64(actualPos)
	}
	for i, name := range featureNames {
		res.Weights = append(res.Weights, FeatureWeight{Feature: name, Weight: weights[i]})
	}
	sort.SliceStable(res.Weights, func(i, j int) bool { return res.Weights[i].Weight > res.Weights[j].Weight })

	zap.L().Info("churn: model trained",
		zap.Int("train_rows", res.TrainSize),
		zap.Int("test_rows", res.TestSize),
		zap.Float64("accuracy", res.Accuracy),
		zap.Float64("precision", res.Precision),
		zap.Float64("recall", res.Recall),
	)
	return res, nil
}

func featureVector(t *model.Tutor, a *model.TutorAggregate) []float64 {
	f := func(p *float64) float64 {
		if p == nil {
			return 0
		}
		return *p
	}
	b := func(v bool) float64 {
		if v {
			return 1
		}
		return 0
	}
	tier := t.ExperienceTier()
	return []float64{
		float64(t.MonthsExperience),
		float64(a.TotalSessions30d),
		float64(a.TotalSessions7d),
		f(a.AvgRating30d),
		f(a.AvgRating7d),
		a.AvgEngagementScore,
		a.AvgEmpathyScore,
		a.AvgClarityScore,
		a.AvgStudentSatisfaction,
		f(a.FirstSessionAvgRating),
		float64(a.FirstSessionCount),
		b(a.PoorFirstSessionFlag),
		a.RecommendationRate,
		a.TechnicalIssueRate,
		f(a.SentimentTrend7d),
		b(tier == "Mid"),
		b(tier == "Senior"),
		b(t.CertificationLevel == model.CertificationAdvanced),
		b(t.CertificationLevel == model.CertificationExpert),
	}
}

// split shuffles rows deterministically and carves off the test fraction.
func split(rows [][]float64, labels []int, seed int64) (trainX [][]float64, trainY []int, testX [][]float64, testY []int) {
	rng := randx.New(seed)
	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	for i := len(order) - 1; i > 0; i-- {
		j := rng.IntBetween(0, i)
		order[i], order[j] = order[j], order[i]
	}

	testN := int(float64(len(rows)) * testFraction)
	if testN < 1 {
		testN = 1
	}
	for n, i := range order {
		if n < testN {
			testX = append(testX, rows[i])
			testY = append(testY, labels[i])
		} else {
			trainX = append(trainX, rows[i])
			trainY = append(trainY, labels[i])
		}
	}
	return trainX, trainY, testX, testY
}

func standardize(rows [][]float64) (means, stds []float64) {
	n := len(featureNames)
	means = make([]float64, n)
	stds = make([]float64, n)
	for _, row := range rows {
		for j, v := range row {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= float64(len(rows))
	}
	for _, row := range rows {
		for j, v := range row {
			d := v - means[j]
			stds[j] += d * d
		}
	}
	for j := range stds {
		stds[j] = math.Sqrt(stds[j] / float64(len(rows)))
		if stds[j] == 0 {
			stds[j] = 1
		}
	}
	return means, stds
}

func apply(rows [][]float64, means, stds []float64) {
	for _, row := range rows {
		for j := range row {
			row[j] = (row[j] - means[j]) / stds[j]
		}
	}
}

// fit runs batch gradient descent on the logistic loss.
func fit(rows [][]float64, labels []int) (weights []float64, bias float64) {
	n := len(featureNames)
	weights = make([]float64, n)
	grad := make([]float64, n)
	m := float64(len(rows))

	for iter := 0; iter < iterations; iter++ {
		for j := range grad {
			grad[j] = 0
		}
		var biasGrad float64
		for i, x := range rows {
			err := sigmoid(dot(weights, x)+bias) - float64(labels[i])
			for j, v := range x {
				grad[j] += err * v
			}
			biasGrad += err
		}
		for j := range weights {
			weights[j] -= learningRate * grad[j] / m
		}
		bias -= learningRate * biasGrad / m
	}
	return weights, bias
}

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
