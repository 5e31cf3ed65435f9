package ml

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/floats"

	"learning_intel_backend/internal/model"
)

// Estimator 外部注入的二分类概率估计器能力
// 实现必须可并发调用且推理期间只读
type Estimator interface {
	// PredictProbability 返回 [0,1] 内的概率
	PredictProbability(v model.FeatureVector) (float64, error)
	Name() string
}

// LogisticModel 从 JSON 权重文件加载的逻辑回归估计器
// 权重按特征名给出，加载时对齐到 model.FeatureOrder
type LogisticModel struct {
	ModelName string             `json:"name"`
	Intercept float64            `json:"intercept"`
	Weights   map[string]float64 `json:"weights"`

	ordered []float64 // Weights 对齐到 FeatureOrder 后的向量
}

// LoadLogisticModel 读取并校验一个 JSON 权重文件
// 未知特征名直接报错，而不是悄悄丢弃
func LoadLogisticModel(r io.Reader) (*LogisticModel, error) {
	var m LogisticModel
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode model weights: %w", err)
	}
	if err := m.compile(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *LogisticModel) compile() error {
	if len(m.Weights) == 0 {
		return fmt.Errorf("model %q has no weights", m.ModelName)
	}

	known := make(map[string]int, len(model.FeatureOrder))
	for i, name := range model.FeatureOrder {
		known[name] = i
	}

	m.ordered = make([]float64, len(model.FeatureOrder))
	for name, w := range m.Weights {
		idx, ok := known[name]
		if !ok {
			return fmt.Errorf("model %q references unknown feature %q", m.ModelName, name)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("model %q has non-finite weight for %q", m.ModelName, name)
		}
		m.ordered[idx] = w
	}

	return nil
}

func (m *LogisticModel) Name() string {
	return m.ModelName
}

func (m *LogisticModel) PredictProbability(v model.FeatureVector) (float64, error) {
	z := m.Intercept + floats.Dot(m.ordered, v.Values())
	p := 1 / (1 + math.Exp(-z))
	if math.IsNaN(p) {
		return 0, fmt.Errorf("model %q produced non-finite probability", m.ModelName)
	}
	return p, nil
}

// SampleCompletionModel 演示用的完成概率模型，对应随仓库分发的示例权重
// 仅保证输出合法概率，不保证统计效力
func SampleCompletionModel() *LogisticModel {
	m := &LogisticModel{
		ModelName: "sample-completion",
		Intercept: -3.0,
		Weights: map[string]float64{
			model.FeatureAvgScorePercent:   0.035,
			model.FeatureCompletionRate:    1.6,
			model.FeatureEngagementScore:   1.2,
			model.FeatureScoreTrend:        0.08,
			model.FeatureAvgTimePerChapter: 0.004,
		},
	}
	// 内置权重由本包自己给出，compile 不会失败
	_ = m.compile()
	return m
}

// SampleDropoutModel 演示用的辍学风险模型
func SampleDropoutModel() *LogisticModel {
	m := &LogisticModel{
		ModelName: "sample-dropout",
		Intercept: 2.2,
		Weights: map[string]float64{
			model.FeatureAvgScorePercent: -0.03,
			model.FeatureCompletionRate:  -1.4,
			model.FeatureEngagementScore: -1.1,
			model.FeatureScoreTrend:      -0.06,
			model.FeatureScoreVariance:   0.002,
		},
	}
	_ = m.compile()
	return m
}
