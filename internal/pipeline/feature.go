package pipeline

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"learning_intel_backend/internal/config"
	"learning_intel_backend/internal/model"
)

// FeatureEngineer 把一个学生档案压成定形特征向量
//
// 约定：
//   - 单章节档案的方差和趋势为 0，而不是未定义
//   - 任何非有限的中间值替换为 0，下游评分绝不会收到 NaN/Inf
//   - completion_rate 训练模式 = 已完成章节数/n；推理模式(无
//     completed 标志)统一退化为 已观测章节数/课程长度，课程长度取
//     该课程在本批内观测到的最大章节号。两种口径绝不在同一批内混用
type FeatureEngineer struct {
	cfg config.PipelineConfig
}

func NewFeatureEngineer(cfg config.PipelineConfig) *FeatureEngineer {
	return &FeatureEngineer{cfg: cfg}
}

// EngineerBatch 对一批档案逐个提特征。课程长度在批内各课程上预先算好，
// 保证同一批内 completion_rate 的口径一致。
func (e *FeatureEngineer) EngineerBatch(profiles []model.StudentProfile) ([]model.FeatureVector, error) {
	lengths := make(map[string]int)
	for _, p := range profiles {
		if _, ok := lengths[p.CourseID]; !ok {
			lengths[p.CourseID] = CourseLength(profiles, p.CourseID)
		}
	}

	vectors := make([]model.FeatureVector, 0, len(profiles))
	for _, p := range profiles {
		v, err := e.Features(p, lengths[p.CourseID])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, v)
	}
	return vectors, nil
}

// Features 提取单个档案的特征向量，档案必须至少有一个章节
func (e *FeatureEngineer) Features(p model.StudentProfile, courseLength int) (model.FeatureVector, error) {
	n := len(p.Chapters)
	if n == 0 {
		return model.FeatureVector{}, fmt.Errorf("student %s: empty profile", p.StudentID)
	}

	times := make([]float64, n)
	scores := make([]float64, n)
	for i, c := range p.Chapters {
		times[i] = c.TimeSpentMin
		scores[i] = c.ScorePercent
	}

	avgTime := stat.Mean(times, nil)
	avgScore := stat.Mean(scores, nil)

	variance := 0.0
	trend := 0.0
	if n >= 2 {
		variance = stat.PopVariance(scores, nil)
		// 最小二乘斜率，x 取章节序列下标 0..n-1
		xs := make([]float64, n)
		for i := range xs {
			xs[i] = float64(i)
		}
		_, trend = stat.LinearRegression(xs, scores, nil, false)
	}

	last := p.LastChapter()

	v := model.FeatureVector{
		AvgTimePerChapter: finite(avgTime),
		AvgScorePercent:   finite(avgScore),
		ScoreVariance:     finite(variance),
		ScoreTrend:        finite(trend),
		CompletionRate:    finite(e.completionRate(p, courseLength)),
		LastTimeSpentMin:  finite(last.TimeSpentMin),
		LastScorePercent:  finite(last.ScorePercent),
		ChapterCount:      float64(n),
	}
	v.EngagementScore = finite(e.engagement(v.AvgTimePerChapter, v.AvgScorePercent))

	return v, nil
}

func (e *FeatureEngineer) completionRate(p model.StudentProfile, courseLength int) float64 {
	n := len(p.Chapters)

	if p.HasCompletionFlags() {
		completed := 0
		for _, c := range p.Chapters {
			if c.IsCompleted() {
				completed++
			}
		}
		return float64(completed) / float64(n)
	}

	if courseLength < n {
		courseLength = n
	}
	return float64(n) / float64(courseLength)
}

// engagement 固定权重的参与度合成分，权重和参考时长来自配置
func (e *FeatureEngineer) engagement(avgTime, avgScore float64) float64 {
	normTime := clamp01(avgTime / e.cfg.EngagementRefTimeMin)
	normScore := clamp01(avgScore / 100)
	wSum := e.cfg.EngagementTimeWeight + e.cfg.EngagementScoreWeight
	return (e.cfg.EngagementTimeWeight*normTime + e.cfg.EngagementScoreWeight*normScore) / wSum
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// finite 非有限值一律替换为 0，保证下游评分安全
func finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}
