package ml

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learning_intel_backend/internal/model"
)

func TestLoadLogisticModel(t *testing.T) {
	weights := `{
		"name": "test-completion",
		"intercept": -1.0,
		"weights": {"completion_rate": 2.0, "avg_score_percent": 0.01}
	}`

	m, err := LoadLogisticModel(strings.NewReader(weights))
	require.NoError(t, err)
	assert.Equal(t, "test-completion", m.Name())

	p, err := m.PredictProbability(model.FeatureVector{CompletionRate: 1.0, AvgScorePercent: 50})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p, 0.0)
	assert.LessOrEqual(t, p, 1.0)
}

// 完成率权重为正：完成率越高，概率越高
func TestPredictProbabilityMonotonic(t *testing.T) {
	m, err := LoadLogisticModel(strings.NewReader(
		`{"name": "m", "intercept": 0, "weights": {"completion_rate": 3.0}}`,
	))
	require.NoError(t, err)

	low, err := m.PredictProbability(model.FeatureVector{CompletionRate: 0.1})
	require.NoError(t, err)
	high, err := m.PredictProbability(model.FeatureVector{CompletionRate: 0.9})
	require.NoError(t, err)
	assert.Greater(t, high, low)
}

// 未知特征名在加载期报错，而不是悄悄丢弃
func TestLoadRejectsUnknownFeature(t *testing.T) {
	_, err := LoadLogisticModel(strings.NewReader(
		`{"name": "m", "intercept": 0, "weights": {"shoe_size": 1.0}}`,
	))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shoe_size")
}

func TestLoadRejectsEmptyWeights(t *testing.T) {
	_, err := LoadLogisticModel(strings.NewReader(`{"name": "m", "intercept": 0, "weights": {}}`))
	assert.Error(t, err)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	_, err := LoadLogisticModel(strings.NewReader(`{"name": `))
	assert.Error(t, err)
}

// 内置示例模型必须给出合法概率且方向合理
func TestSampleModels(t *testing.T) {
	completion := SampleCompletionModel()
	dropout := SampleDropoutModel()

	strong := model.FeatureVector{
		AvgTimePerChapter: 50,
		AvgScorePercent:   90,
		CompletionRate:    1.0,
		EngagementScore:   0.9,
		ScoreTrend:        2,
		LastScorePercent:  92,
		ChapterCount:      5,
	}
	weak := model.FeatureVector{
		AvgTimePerChapter: 5,
		AvgScorePercent:   30,
		CompletionRate:    0.2,
		EngagementScore:   0.2,
		ScoreTrend:        -3,
		LastScorePercent:  25,
		ChapterCount:      1,
	}

	strongCompletion, err := completion.PredictProbability(strong)
	require.NoError(t, err)
	weakCompletion, err := completion.PredictProbability(weak)
	require.NoError(t, err)
	assert.Greater(t, strongCompletion, weakCompletion)

	strongDropout, err := dropout.PredictProbability(strong)
	require.NoError(t, err)
	weakDropout, err := dropout.PredictProbability(weak)
	require.NoError(t, err)
	assert.Less(t, strongDropout, weakDropout)

	for _, p := range []float64{strongCompletion, weakCompletion, strongDropout, weakDropout} {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}
