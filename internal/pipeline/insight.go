package pipeline

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"learning_intel_backend/internal/config"
	"learning_intel_backend/internal/model"
)

// InsightAggregator 在已算好的档案和预测之上做纯统计聚合，自身不做模型推理
//
// 辍学判定规则(全库统一)：
//   - 学生"到达"章节 k：存在 chapter_order >= k 的记录
//   - 学生"在章节 k 辍学"：k 是其最后观测章节，且该记录 completed==0
//     (训练口径)；推理口径(无 completed 标志)改为 k 小于课程最后章节。
//     两种口径由批次 schema 决定，绝不混用。
//   - 章节辍学率 = 在 k 辍学人数 / 到达 k 人数，辍学者必属到达者，
//     比率恒在 [0,1]；无人到达的章节不进映射(不输出 NaN)
type InsightAggregator struct {
	cfg config.PipelineConfig
}

func NewInsightAggregator(cfg config.PipelineConfig) *InsightAggregator {
	return &InsightAggregator{cfg: cfg}
}

// Aggregate 计算一门课程的洞察。profiles 和 predictions 可包含多门课程，
// 非本课程的条目会被忽略；零学生课程返回空但结构完整的结果。
func (a *InsightAggregator) Aggregate(
	courseID string,
	profiles []model.StudentProfile,
	predictions []model.PredictionResult,
) model.CourseInsights {
	insights := model.NewCourseInsights(courseID)

	var courseProfiles []model.StudentProfile
	for _, p := range profiles {
		if p.CourseID == courseID && len(p.Chapters) > 0 {
			courseProfiles = append(courseProfiles, p)
		}
	}
	insights.TotalStudents = len(courseProfiles)
	if len(courseProfiles) == 0 {
		return insights
	}

	courseLength := CourseLength(courseProfiles, courseID)
	rates := a.dropoutRates(courseProfiles, courseLength)
	insights.DropoutRateByChapter = rates
	insights.DifficultChapters = a.difficultChapters(rates)
	insights.KeyCompletionFactors = a.keyFactors(courseProfiles, predictions, courseLength)

	var probSum float64
	var probCount int
	for _, p := range predictions {
		if p.CourseID != courseID {
			continue
		}
		probSum += p.CompletionProbability
		probCount++
		if p.RiskLevel == model.RiskHigh {
			insights.HighRiskStudents = append(insights.HighRiskStudents, p.StudentID)
		}
	}
	sort.Strings(insights.HighRiskStudents)
	insights.HighRiskCount = len(insights.HighRiskStudents)
	if probCount > 0 {
		insights.AverageCompletionProbability = probSum / float64(probCount)
	}
	insights.Recommendations = recommendations(insights)

	return insights
}

// recommendations 按课程状态给一条行动建议
func recommendations(insights model.CourseInsights) string {
	switch {
	case insights.HighRiskCount > 0:
		return "Focus on high-risk students with personalized intervention"
	case len(insights.DifficultChapters) > 0:
		return "Review content and pacing of the difficult chapters"
	default:
		return "Course is on track; keep monitoring engagement"
	}
}

func (a *InsightAggregator) dropoutRates(profiles []model.StudentProfile, courseLength int) map[int]float64 {
	reached := make(map[int]int)
	dropped := make(map[int]int)

	for _, p := range profiles {
		last := p.LastChapter()
		for k := 1; k <= last.ChapterOrder; k++ {
			reached[k]++
		}
		if a.droppedOut(p, courseLength) {
			dropped[last.ChapterOrder]++
		}
	}

	rates := make(map[int]float64, len(reached))
	for k, n := range reached {
		if n == 0 {
			continue // 无人到达，省略而不是输出 NaN
		}
		rates[k] = float64(dropped[k]) / float64(n)
	}
	return rates
}

func (a *InsightAggregator) droppedOut(p model.StudentProfile, courseLength int) bool {
	last := p.LastChapter()
	if p.HasCompletionFlags() {
		return !last.IsCompleted()
	}
	return last.ChapterOrder < courseLength
}

// difficultChapters 辍学率超过阈值的章节，按率降序、并列按章节号升序
func (a *InsightAggregator) difficultChapters(rates map[int]float64) []int {
	if len(rates) == 0 {
		return []int{}
	}

	threshold := a.cfg.DifficultyThreshold
	if a.cfg.DifficultyRule == config.DifficultyRuleMeanStdDev {
		values := make([]float64, 0, len(rates))
		for _, r := range rates {
			values = append(values, r)
		}
		threshold = stat.Mean(values, nil) + stat.PopStdDev(values, nil)
	}

	var chapters []int
	for k, r := range rates {
		if r > threshold {
			chapters = append(chapters, k)
		}
	}
	sort.Slice(chapters, func(i, j int) bool {
		ri, rj := rates[chapters[i]], rates[chapters[j]]
		if ri != rj {
			return ri > rj
		}
		return chapters[i] < chapters[j]
	})
	if chapters == nil {
		chapters = []int{}
	}
	return chapters
}

// keyFactors 特征按 |皮尔逊相关| 降序。完成结果训练口径取"最后章节
// 已到达且完成"；推理口径没有结果标签，退而用模型给出的完成概率作
// 相关目标。零方差导致的未定义相关按 0 处理；并列按特征声明顺序。
func (a *InsightAggregator) keyFactors(
	profiles []model.StudentProfile,
	predictions []model.PredictionResult,
	courseLength int,
) []string {
	if len(profiles) < 2 {
		return []string{}
	}

	probByStudent := make(map[string]float64, len(predictions))
	for _, p := range predictions {
		probByStudent[p.StudentID] = p.CompletionProbability
	}

	engineer := NewFeatureEngineer(a.cfg)
	var vectors []model.FeatureVector
	var outcomes []float64
	for _, p := range profiles {
		v, err := engineer.Features(p, courseLength)
		if err != nil {
			continue
		}
		vectors = append(vectors, v)

		if p.HasCompletionFlags() {
			outcome := 0.0
			last := p.LastChapter()
			if last.ChapterOrder == courseLength && last.IsCompleted() {
				outcome = 1.0
			}
			outcomes = append(outcomes, outcome)
		} else {
			outcomes = append(outcomes, probByStudent[p.StudentID])
		}
	}
	if len(vectors) < 2 {
		return []string{}
	}

	scores := make(map[string]float64, len(model.FeatureOrder))
	for _, name := range model.FeatureOrder {
		values := make([]float64, len(vectors))
		for i, v := range vectors {
			values[i] = v.Value(name)
		}
		corr := stat.Correlation(values, outcomes, nil)
		if math.IsNaN(corr) || math.IsInf(corr, 0) {
			corr = 0
		}
		scores[name] = math.Abs(corr)
	}

	factors := make([]string, len(model.FeatureOrder))
	copy(factors, model.FeatureOrder)
	// 稳定排序，相关性并列时保持声明顺序
	sort.SliceStable(factors, func(i, j int) bool {
		return scores[factors[i]] > scores[factors[j]]
	})
	return factors
}
