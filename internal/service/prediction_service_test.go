package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"learning_intel_backend/internal/config"
	"learning_intel_backend/internal/ml"
	"learning_intel_backend/internal/model"
	"learning_intel_backend/internal/pipeline"
	"learning_intel_backend/internal/repository"
)

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		ValidationMode:        config.ValidationModeInference,
		RiskPolicy:            config.RiskPolicyThreshold,
		HighRiskBelow:         0.3,
		MediumRiskBelow:       0.6,
		HighRiskFraction:      0.2,
		MediumRiskFraction:    0.3,
		DifficultyRule:        config.DifficultyRuleMeanStdDev,
		DifficultyThreshold:   0.4,
		EngagementTimeWeight:  0.5,
		EngagementScoreWeight: 0.5,
		EngagementRefTimeMin:  60,
		InsightCacheTTLMin:    10,
	}
}

func setupService(t *testing.T) (*PredictionService, *InsightService) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.ChapterRecord{}, &model.PredictionResult{}))

	recordRepo := repository.NewChapterRecordRepository(db)
	predictionRepo := repository.NewPredictionRepository(db)

	prediction := NewPredictionService(
		recordRepo, predictionRepo,
		ml.SampleCompletionModel(), ml.SampleDropoutModel(),
		testPipelineConfig(),
	)
	// rdb 为 nil：无缓存，走纯计算路径
	insight := NewInsightService(recordRepo, predictionRepo, prediction, nil)
	return prediction, insight
}

func trainingRow(studentID string, chapterOrder int, timeMin, score float64, completed int) pipeline.RawRow {
	return pipeline.RawRow{
		"student_id":     studentID,
		"course_id":      "C1",
		"chapter_order":  chapterOrder,
		"time_spent_min": timeMin,
		"score_percent":  score,
		"completed":      completed,
	}
}

func TestPredictBatchEndToEnd(t *testing.T) {
	svc, _ := setupService(t)

	rows := []pipeline.RawRow{
		trainingRow("S1", 1, 50, 85, 1),
		trainingRow("S1", 2, 55, 90, 1),
		trainingRow("S2", 1, 5, 30, 0),
	}

	result, err := svc.PredictBatch(rows)
	require.NoError(t, err)
	assert.NotEmpty(t, result.BatchID)
	assert.Equal(t, 3, result.TotalRows)
	assert.Equal(t, 3, result.ValidRows)
	require.Len(t, result.Predictions, 2)
	assert.Empty(t, result.RowErrors)

	// 预测顺序 = 学生首次出现顺序
	assert.Equal(t, "S1", result.Predictions[0].StudentID)
	assert.Equal(t, "S2", result.Predictions[1].StudentID)
	for _, p := range result.Predictions {
		assert.GreaterOrEqual(t, p.CompletionProbability, 0.0)
		assert.LessOrEqual(t, p.CompletionProbability, 1.0)
		assert.GreaterOrEqual(t, p.DropoutRisk, 0.0)
		assert.LessOrEqual(t, p.DropoutRisk, 1.0)
		assert.Contains(t, []model.RiskLevel{model.RiskLow, model.RiskMedium, model.RiskHigh}, p.RiskLevel)
	}

	require.Len(t, result.Insights, 1)
	assert.Equal(t, "C1", result.Insights[0].CourseID)
	assert.Equal(t, 2, result.Insights[0].TotalStudents)
}

// 推理模式：无效行跳过并进入边报告，其余行照常出预测
func TestPredictBatchSkipsInvalidRows(t *testing.T) {
	svc, _ := setupService(t)

	bad := trainingRow("S2", 1, 5, 30, 0)
	bad["score_percent"] = 150.0
	rows := []pipeline.RawRow{trainingRow("S1", 1, 50, 85, 1), bad}

	result, err := svc.PredictBatch(rows)
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalRows)
	assert.Equal(t, 1, result.ValidRows)
	require.Len(t, result.RowErrors, 1)
	assert.Equal(t, "score_percent", result.RowErrors[0].Field)
	assert.Len(t, result.Predictions, 1)
}

// 空批次是合法边界：返回空但结构完整的结果
func TestPredictBatchEmptyInput(t *testing.T) {
	svc, _ := setupService(t)

	result, err := svc.PredictBatch(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalRows)
	assert.NotNil(t, result.Predictions)
	assert.Empty(t, result.Predictions)
	assert.NotNil(t, result.Insights)
	assert.Empty(t, result.Insights)
}

// 同一批输入两次预测，除批次号外产出必须一致
func TestPredictBatchIdempotent(t *testing.T) {
	svc, _ := setupService(t)

	rows := []pipeline.RawRow{
		trainingRow("S1", 1, 50, 85, 1),
		trainingRow("S2", 1, 5, 30, 0),
		trainingRow("S3", 1, 25, 60, 1),
	}

	r1, err := svc.PredictBatch(rows)
	require.NoError(t, err)
	r2, err := svc.PredictBatch(rows)
	require.NoError(t, err)

	assert.Equal(t, r1.Predictions, r2.Predictions)
	assert.Equal(t, r1.Insights, r2.Insights)
}

func TestPredictStudent(t *testing.T) {
	svc, _ := setupService(t)

	result, err := svc.PredictStudent([]pipeline.RawRow{
		trainingRow("S1", 1, 50, 85, 1),
		trainingRow("S1", 2, 55, 90, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, "S1", result.StudentID)
	assert.GreaterOrEqual(t, result.CompletionProbability, 0.0)
	assert.LessOrEqual(t, result.CompletionProbability, 1.0)
}

// 混入第二个学生的行是调用方错误
func TestPredictStudentRejectsMultipleStudents(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.PredictStudent([]pipeline.RawRow{
		trainingRow("S1", 1, 50, 85, 1),
		trainingRow("S2", 1, 10, 40, 0),
	})
	assert.Error(t, err)
}

// 入库 → 评分 → 洞察 的全链路
func TestIngestScoreInsights(t *testing.T) {
	svc, insightSvc := setupService(t)

	n, err := svc.IngestRecords([]pipeline.RawRow{
		trainingRow("S1", 1, 50, 85, 1),
		trainingRow("S1", 2, 55, 90, 1),
		trainingRow("S2", 1, 5, 30, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	batchID, predictions, profiles, err := svc.ScoreCourse("C1")
	require.NoError(t, err)
	assert.NotEmpty(t, batchID)
	assert.Len(t, predictions, 2)
	assert.Len(t, profiles, 2)
	for _, p := range predictions {
		assert.Equal(t, batchID, p.BatchID)
	}

	insights, err := insightSvc.CourseInsights(context.Background(), "C1")
	require.NoError(t, err)
	assert.Equal(t, "C1", insights.CourseID)
	assert.Equal(t, 2, insights.TotalStudents)
	assert.InDelta(t, 0.5, insights.DropoutRateByChapter[1], 1e-9)
	for _, r := range insights.DropoutRateByChapter {
		assert.GreaterOrEqual(t, r, 0.0)
		assert.LessOrEqual(t, r, 1.0)
	}
}

// 重复入库同一 (student, course, chapter)，后写覆盖
func TestIngestRecordsLastWriteWins(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.IngestRecords([]pipeline.RawRow{trainingRow("S1", 1, 20, 40, 0)})
	require.NoError(t, err)
	_, err = svc.IngestRecords([]pipeline.RawRow{trainingRow("S1", 1, 60, 95, 1)})
	require.NoError(t, err)

	_, _, profiles, err := svc.ScoreCourse("C1")
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	require.Len(t, profiles[0].Chapters, 1)
	assert.Equal(t, 95.0, profiles[0].Chapters[0].ScorePercent)
}

// 入库是训练 schema，缺 completed 的行中止整批
func TestIngestRecordsRequiresCompletedFlag(t *testing.T) {
	svc, _ := setupService(t)

	row := trainingRow("S1", 1, 20, 40, 0)
	delete(row, "completed")

	_, err := svc.IngestRecords([]pipeline.RawRow{row})
	assert.Error(t, err)
}

// 已评分课程再入库新记录后，洞察必须反映新学生，不能停留在旧批次
func TestCourseInsightsRefreshAfterIngest(t *testing.T) {
	svc, insightSvc := setupService(t)

	_, err := svc.IngestRecords([]pipeline.RawRow{
		trainingRow("S1", 1, 50, 85, 1),
		trainingRow("S1", 2, 55, 90, 1),
	})
	require.NoError(t, err)

	first, err := insightSvc.CourseInsights(context.Background(), "C1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.TotalStudents)
	assert.Empty(t, first.HighRiskStudents)

	// 明显高风险的新学生：1 分钟、1 分、未完成
	_, err = svc.IngestRecords([]pipeline.RawRow{trainingRow("S9", 1, 1, 1, 0)})
	require.NoError(t, err)
	insightSvc.InvalidateCourse(context.Background(), "C1")

	second, err := insightSvc.CourseInsights(context.Background(), "C1")
	require.NoError(t, err)
	assert.Equal(t, 2, second.TotalStudents)
	assert.Contains(t, second.HighRiskStudents, "S9")
	assert.Equal(t, len(second.HighRiskStudents), second.HighRiskCount)
	assert.Less(t, second.AverageCompletionProbability, first.AverageCompletionProbability)

	students, err := insightSvc.HighRiskStudents(context.Background(), "C1")
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "S9", students[0].StudentID)
}

// 没有记录的课程：洞察为空但结构完整
func TestCourseInsightsUnknownCourse(t *testing.T) {
	_, insightSvc := setupService(t)

	insights, err := insightSvc.CourseInsights(context.Background(), "C404")
	require.NoError(t, err)
	assert.Equal(t, "C404", insights.CourseID)
	assert.Equal(t, 0, insights.TotalStudents)
	assert.NotNil(t, insights.DropoutRateByChapter)
	assert.NotNil(t, insights.HighRiskStudents)
}

// CourseInsights 对未评分课程自动触发一次评分
func TestCourseInsightsTriggersScoring(t *testing.T) {
	svc, insightSvc := setupService(t)

	for i := 1; i <= 5; i++ {
		_, err := svc.IngestRecords([]pipeline.RawRow{
			trainingRow(fmt.Sprintf("S%d", i), 1, float64(10*i), float64(15*i), i%2),
		})
		require.NoError(t, err)
	}

	insights, err := insightSvc.CourseInsights(context.Background(), "C1")
	require.NoError(t, err)
	assert.Equal(t, 5, insights.TotalStudents)
	assert.GreaterOrEqual(t, insights.AverageCompletionProbability, 0.0)
	assert.LessOrEqual(t, insights.AverageCompletionProbability, 1.0)
}

// 管线配置热更新：非法配置拒绝，合法配置立即生效
func TestApplyPipelineConfig(t *testing.T) {
	svc, _ := setupService(t)

	bad := testPipelineConfig()
	bad.HighRiskBelow = 0.9
	bad.MediumRiskBelow = 0.3
	assert.Error(t, svc.ApplyPipelineConfig(bad))

	good := testPipelineConfig()
	good.RiskPolicy = config.RiskPolicyPercentile
	require.NoError(t, svc.ApplyPipelineConfig(good))
	assert.Equal(t, config.RiskPolicyPercentile, svc.PipelineConfig().RiskPolicy)
}
