package pipeline

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learning_intel_backend/internal/config"
	"learning_intel_backend/internal/util"
)

func validRow() RawRow {
	return RawRow{
		"student_id":     "S1",
		"course_id":      "C1",
		"chapter_order":  1,
		"time_spent_min": 45.0,
		"score_percent":  75.0,
		"completed":      1,
	}
}

func TestValidateAcceptsWellFormedRow(t *testing.T) {
	v := NewRowValidator(config.ValidationModeTraining)

	rec, verr := v.Validate(validRow(), 0)
	require.Nil(t, verr)
	assert.Equal(t, "S1", rec.StudentID)
	assert.Equal(t, "C1", rec.CourseID)
	assert.Equal(t, 1, rec.ChapterOrder)
	assert.Equal(t, 45.0, rec.TimeSpentMin)
	assert.Equal(t, 75.0, rec.ScorePercent)
	require.NotNil(t, rec.Completed)
	assert.True(t, *rec.Completed)
}

// CSV 来源的行所有值都是字符串，校验器负责定型
func TestValidateCoercesStringValues(t *testing.T) {
	v := NewRowValidator(config.ValidationModeTraining)

	rec, verr := v.Validate(RawRow{
		"student_id":     "S2",
		"course_id":      "C1",
		"chapter_order":  "3",
		"time_spent_min": "15.5",
		"score_percent":  "42",
		"completed":      "0",
	}, 0)
	require.Nil(t, verr)
	assert.Equal(t, 3, rec.ChapterOrder)
	assert.Equal(t, 15.5, rec.TimeSpentMin)
	require.NotNil(t, rec.Completed)
	assert.False(t, *rec.Completed)
}

func TestValidateMissingField(t *testing.T) {
	v := NewRowValidator(config.ValidationModeInference)

	row := validRow()
	delete(row, "student_id")

	_, verr := v.Validate(row, 4)
	require.NotNil(t, verr)
	assert.Equal(t, "student_id", verr.Field)
	assert.Equal(t, ReasonMissing, verr.Reason)
	assert.Equal(t, 4, verr.Row)
}

func TestValidateScoreOutOfRange(t *testing.T) {
	v := NewRowValidator(config.ValidationModeInference)

	row := validRow()
	row["score_percent"] = 150.0

	_, verr := v.Validate(row, 0)
	require.NotNil(t, verr)
	assert.Equal(t, "score_percent", verr.Field)
	assert.Equal(t, ReasonOutOfRange, verr.Reason)
}

func TestValidateRangeChecks(t *testing.T) {
	v := NewRowValidator(config.ValidationModeInference)

	cases := []struct {
		field string
		value interface{}
	}{
		{"chapter_order", 0},
		{"time_spent_min", -1.0},
		{"score_percent", -0.5},
		{"score_percent", math.NaN()},
		{"time_spent_min", math.Inf(1)},
	}
	for _, tc := range cases {
		row := validRow()
		row[tc.field] = tc.value
		_, verr := v.Validate(row, 0)
		require.NotNil(t, verr, "field %s value %v", tc.field, tc.value)
		assert.Equal(t, tc.field, verr.Field)
		assert.Equal(t, ReasonOutOfRange, verr.Reason)
	}
}

func TestValidateTypeMismatch(t *testing.T) {
	v := NewRowValidator(config.ValidationModeInference)

	row := validRow()
	row["time_spent_min"] = "plenty"

	_, verr := v.Validate(row, 0)
	require.NotNil(t, verr)
	assert.Equal(t, "time_spent_min", verr.Field)
	assert.Equal(t, ReasonTypeMismatch, verr.Reason)
}

// 训练模式 completed 必填
func TestValidateCompletedRequiredForTraining(t *testing.T) {
	row := validRow()
	delete(row, "completed")

	_, verr := NewRowValidator(config.ValidationModeTraining).Validate(row, 0)
	require.NotNil(t, verr)
	assert.Equal(t, "completed", verr.Field)

	rec, verr := NewRowValidator(config.ValidationModeInference).Validate(row, 0)
	require.Nil(t, verr)
	assert.Nil(t, rec.Completed)
}

// 训练模式遇到无效行中止整批
func TestValidateBatchTrainingAborts(t *testing.T) {
	v := NewRowValidator(config.ValidationModeTraining)

	bad := validRow()
	bad["score_percent"] = 101.0
	rows := []RawRow{validRow(), bad}

	_, _, err := v.ValidateBatch(rows)
	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 1, verr.Row)
}

// 推理模式跳过无效行并收集进边报告
func TestValidateBatchInferenceSkips(t *testing.T) {
	v := NewRowValidator(config.ValidationModeInference)

	bad := validRow()
	bad["chapter_order"] = -2
	rows := []RawRow{validRow(), bad, validRow()}

	records, rowErrors, err := v.ValidateBatch(rows)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	require.Len(t, rowErrors, 1)
	assert.Equal(t, 1, rowErrors[0].Row)
}

// 同批混用训练/推理 schema 对该批致命
func TestValidateBatchRejectsMixedSchemas(t *testing.T) {
	v := NewRowValidator(config.ValidationModeInference)

	noFlag := validRow()
	delete(noFlag, "completed")
	rows := []RawRow{validRow(), noFlag}

	_, _, err := v.ValidateBatch(rows)
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrSchemaInconsistent))
}

func TestValidateBatchEmptyInput(t *testing.T) {
	v := NewRowValidator(config.ValidationModeTraining)

	records, rowErrors, err := v.ValidateBatch(nil)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, rowErrors)
}
