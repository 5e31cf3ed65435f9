package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learning_intel_backend/internal/config"
	"learning_intel_backend/internal/model"
)

func boolPtr(b bool) *bool { return &b }

// chapter 构造一条已校验的章节记录，completed 传 nil 表示推理口径
func chapter(studentID, courseID string, order int, timeMin, score float64, completed *bool) model.ChapterRecord {
	return model.ChapterRecord{
		StudentID:    studentID,
		CourseID:     courseID,
		ChapterOrder: order,
		TimeSpentMin: timeMin,
		ScorePercent: score,
		Completed:    completed,
	}
}

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

// 交错输入也要按 (student, course) 正确分组，组内章节升序
func TestBuildProfilesGroupsAndSorts(t *testing.T) {
	records := []model.ChapterRecord{
		chapter("S1", "C1", 2, 30, 80, boolPtr(true)),
		chapter("S2", "C1", 1, 20, 60, boolPtr(true)),
		chapter("S1", "C1", 1, 25, 70, boolPtr(true)),
		chapter("S1", "C2", 1, 10, 90, boolPtr(true)),
	}

	profiles := BuildProfiles(records)
	require.Len(t, profiles, 3)

	// 输出顺序 = 学生首次出现顺序
	assert.Equal(t, "S1", profiles[0].StudentID)
	assert.Equal(t, "C1", profiles[0].CourseID)
	assert.Equal(t, "S2", profiles[1].StudentID)
	assert.Equal(t, "C2", profiles[2].CourseID)

	require.Len(t, profiles[0].Chapters, 2)
	assert.Equal(t, 1, profiles[0].Chapters[0].ChapterOrder)
	assert.Equal(t, 2, profiles[0].Chapters[1].ChapterOrder)
}

// 同一学生同一章节出现两次，后写覆盖
func TestBuildProfilesDuplicateChapterLastWriteWins(t *testing.T) {
	records := []model.ChapterRecord{
		chapter("S1", "C1", 1, 30, 50, boolPtr(false)),
		chapter("S1", "C1", 1, 40, 85, boolPtr(true)),
	}

	profiles := BuildProfiles(records)
	require.Len(t, profiles, 1)
	require.Len(t, profiles[0].Chapters, 1)
	assert.Equal(t, 85.0, profiles[0].Chapters[0].ScorePercent)
	assert.True(t, profiles[0].Chapters[0].IsCompleted())
}

func TestBuildProfilesEmptyInput(t *testing.T) {
	profiles := BuildProfiles(nil)
	assert.NotNil(t, profiles)
	assert.Empty(t, profiles)
}

// 课程长度 = 批内观测到的最大章节号，且只看本课程
func TestCourseLength(t *testing.T) {
	profiles := BuildProfiles([]model.ChapterRecord{
		chapter("S1", "C1", 3, 10, 70, nil),
		chapter("S2", "C1", 5, 10, 70, nil),
		chapter("S3", "C2", 9, 10, 70, nil),
	})

	assert.Equal(t, 5, CourseLength(profiles, "C1"))
	assert.Equal(t, 9, CourseLength(profiles, "C2"))
	assert.Equal(t, 0, CourseLength(profiles, "C404"))
}
