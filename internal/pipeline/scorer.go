package pipeline

import (
	"fmt"
	"math"
	"sort"

	"learning_intel_backend/internal/config"
	"learning_intel_backend/internal/ml"
	"learning_intel_backend/internal/model"
	"learning_intel_backend/internal/util"
)

// RiskScorer 把特征向量交给两个外部概率估计器，并按配置的策略定风险等级
//
// percentile 策略需要看到整个课程批次(先算完所有概率再排名)，
// 这是固有的两遍结构而不是实现巧合；因此打分只提供批量接口，
// 单学生请求走 threshold 策略。
type RiskScorer struct {
	completion ml.Estimator
	dropout    ml.Estimator
	cfg        config.PipelineConfig
}

func NewRiskScorer(completion, dropout ml.Estimator, cfg config.PipelineConfig) *RiskScorer {
	return &RiskScorer{completion: completion, dropout: dropout, cfg: cfg}
}

// ScoreBatch 对一批学生评分，结果顺序与输入档案顺序一致
func (s *RiskScorer) ScoreBatch(profiles []model.StudentProfile, vectors []model.FeatureVector) ([]model.PredictionResult, error) {
	if s.completion == nil || s.dropout == nil {
		return nil, util.ErrModelUnavailable
	}
	if len(profiles) != len(vectors) {
		return nil, fmt.Errorf("profiles/vectors length mismatch: %d != %d", len(profiles), len(vectors))
	}
	if len(profiles) == 0 {
		return []model.PredictionResult{}, nil
	}

	// 第一遍：算出所有学生的两个概率
	results := make([]model.PredictionResult, len(profiles))
	for i, p := range profiles {
		completionProb, err := s.completion.PredictProbability(vectors[i])
		if err != nil {
			return nil, fmt.Errorf("completion model %q: %w", s.completion.Name(), err)
		}
		dropoutRisk, err := s.dropout.PredictProbability(vectors[i])
		if err != nil {
			return nil, fmt.Errorf("dropout model %q: %w", s.dropout.Name(), err)
		}

		completionProb = clamp01(finite(completionProb))
		dropoutRisk = clamp01(finite(dropoutRisk))

		predicted := 0
		if completionProb >= 0.5 {
			predicted = 1
		}

		results[i] = model.PredictionResult{
			StudentID:             p.StudentID,
			CourseID:              p.CourseID,
			CompletionProbability: completionProb,
			DropoutRisk:           dropoutRisk,
			PredictedCompletion:   predicted,
		}
	}

	// 第二遍：定等级
	switch s.cfg.RiskPolicy {
	case config.RiskPolicyPercentile:
		s.rankByPercentile(results)
	default:
		for i := range results {
			results[i].RiskLevel = s.levelByThreshold(results[i].CompletionProbability)
		}
	}

	return results, nil
}

// ScoreOne 单学生评分，始终按固定阈值定级(百分位需要整批数据)
func (s *RiskScorer) ScoreOne(profile model.StudentProfile, vector model.FeatureVector) (model.PredictionResult, error) {
	thresholdCfg := s.cfg
	thresholdCfg.RiskPolicy = config.RiskPolicyThreshold
	one := &RiskScorer{completion: s.completion, dropout: s.dropout, cfg: thresholdCfg}

	results, err := one.ScoreBatch([]model.StudentProfile{profile}, []model.FeatureVector{vector})
	if err != nil {
		return model.PredictionResult{}, err
	}
	return results[0], nil
}

func (s *RiskScorer) levelByThreshold(completionProb float64) model.RiskLevel {
	switch {
	case completionProb < s.cfg.HighRiskBelow:
		return model.RiskHigh
	case completionProb < s.cfg.MediumRiskBelow:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// rankByPercentile 按辍学风险降序排名：最差的 ceil(highFraction*N) 个
// 学生标 HIGH，接下来 ceil(mediumFraction*N) 个标 MEDIUM，其余 LOW。
// 排名用稳定排序，风险相同时按输入顺序定先后。
func (s *RiskScorer) rankByPercentile(results []model.PredictionResult) {
	n := len(results)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return results[idx[a]].DropoutRisk > results[idx[b]].DropoutRisk
	})

	highCount := int(math.Ceil(s.cfg.HighRiskFraction * float64(n)))
	mediumCount := int(math.Ceil(s.cfg.MediumRiskFraction * float64(n)))

	for rank, i := range idx {
		switch {
		case rank < highCount:
			results[i].RiskLevel = model.RiskHigh
		case rank < highCount+mediumCount:
			results[i].RiskLevel = model.RiskMedium
		default:
			results[i].RiskLevel = model.RiskLow
		}
	}
}
