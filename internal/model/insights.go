package model

// CourseInsights 课程级洞察，基于已算好的预测和章节记录的纯聚合视图
// 每次请求重算(或走缓存)，不做原地修改
type CourseInsights struct {
	CourseID      string `json:"course_id"`
	TotalStudents int    `json:"total_students"`

	// 章节 -> 辍学率，取值 [0,1]；无人到达的章节不出现在映射中
	DropoutRateByChapter map[int]float64 `json:"dropout_rate_by_chapter"`

	// 辍学率超过难度阈值的章节，按最差在前排列
	DifficultChapters []int `json:"difficult_chapters"`

	// 与完成结果相关性最强的特征，按重要性降序
	KeyCompletionFactors []string `json:"key_completion_factors"`

	// 风险等级为 HIGH 的学生，按 student_id 升序(保证输出确定性)
	HighRiskStudents []string `json:"high_risk_students"`
	HighRiskCount    int      `json:"high_risk_count"`

	AverageCompletionProbability float64 `json:"average_completion_probability"`

	// 给课程负责人的一条行动建议
	Recommendations string `json:"recommendations"`
}

// NewCourseInsights 返回空但结构完整的洞察，空课程是合法边界而非错误
func NewCourseInsights(courseID string) CourseInsights {
	return CourseInsights{
		CourseID:             courseID,
		DropoutRateByChapter: map[int]float64{},
		DifficultChapters:    []int{},
		KeyCompletionFactors: []string{},
		HighRiskStudents:     []string{},
	}
}
