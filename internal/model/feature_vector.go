package model

// 特征名常量，声明顺序即特征向量的固定顺序，
// 相关性排名出现并列时也按该顺序打破平局
const (
	FeatureAvgTimePerChapter = "avg_time_per_chapter"
	FeatureAvgScorePercent   = "avg_score_percent"
	FeatureScoreVariance     = "score_variance"
	FeatureScoreTrend        = "score_trend"
	FeatureCompletionRate    = "completion_rate"
	FeatureEngagementScore   = "engagement_score"
	FeatureLastTimeSpentMin  = "last_time_spent_min"
	FeatureLastScorePercent  = "last_score_percent"
	FeatureChapterCount      = "chapter_count"
)

// FeatureOrder 特征声明顺序
var FeatureOrder = []string{
	FeatureAvgTimePerChapter,
	FeatureAvgScorePercent,
	FeatureScoreVariance,
	FeatureScoreTrend,
	FeatureCompletionRate,
	FeatureEngagementScore,
	FeatureLastTimeSpentMin,
	FeatureLastScorePercent,
	FeatureChapterCount,
}

// FeatureVector 一个学生章节历史的定形数值摘要
// 对任意非空档案，每个特征都有定义且有限(绝不输出 NaN/Inf)
type FeatureVector struct {
	AvgTimePerChapter float64 `json:"avg_time_per_chapter"`
	AvgScorePercent   float64 `json:"avg_score_percent"`
	ScoreVariance     float64 `json:"score_variance"`
	ScoreTrend        float64 `json:"score_trend"`
	CompletionRate    float64 `json:"completion_rate"`
	EngagementScore   float64 `json:"engagement_score"`
	LastTimeSpentMin  float64 `json:"last_time_spent_min"`
	LastScorePercent  float64 `json:"last_score_percent"`
	ChapterCount      float64 `json:"chapter_count"`
}

// Values 按 FeatureOrder 展开为数值切片，供估计器做点积
func (v FeatureVector) Values() []float64 {
	return []float64{
		v.AvgTimePerChapter,
		v.AvgScorePercent,
		v.ScoreVariance,
		v.ScoreTrend,
		v.CompletionRate,
		v.EngagementScore,
		v.LastTimeSpentMin,
		v.LastScorePercent,
		v.ChapterCount,
	}
}

// Value 按特征名取值，未知名返回 0
func (v FeatureVector) Value(name string) float64 {
	for i, n := range FeatureOrder {
		if n == name {
			return v.Values()[i]
		}
	}
	return 0
}
