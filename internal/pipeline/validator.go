package pipeline

import (
	"fmt"
	"math"

	"github.com/spf13/cast"

	"learning_intel_backend/internal/config"
	"learning_intel_backend/internal/model"
	"learning_intel_backend/internal/util"
)

// RawRow 一条未定型的原始观测行，键为列名
type RawRow map[string]interface{}

// 校验失败原因
const (
	ReasonMissing      = "missing"
	ReasonTypeMismatch = "type_mismatch"
	ReasonOutOfRange   = "out_of_range"
)

// ValidationError 行级校验错误，标明出错的行号和字段
// 行本地且无副作用，跳过还是中止由调用方的校验策略决定
type ValidationError struct {
	Row    int    `json:"row"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("row %d: field %s: %s (%s)", e.Row, e.Field, e.Reason, e.Detail)
	}
	return fmt.Sprintf("row %d: field %s: %s", e.Row, e.Field, e.Reason)
}

// RowValidator 把原始行变成合法的 ChapterRecord
type RowValidator struct {
	mode string
}

// NewRowValidator mode 取 config.ValidationModeTraining / ValidationModeInference
func NewRowValidator(mode string) *RowValidator {
	return &RowValidator{mode: mode}
}

func (v *RowValidator) Mode() string {
	return v.mode
}

// Validate 校验单行。必填字段缺失、类型不符、越界都会返回 *ValidationError
func (v *RowValidator) Validate(row RawRow, idx int) (model.ChapterRecord, *ValidationError) {
	var rec model.ChapterRecord

	studentID, verr := stringField(row, "student_id", idx)
	if verr != nil {
		return rec, verr
	}
	courseID, verr := stringField(row, "course_id", idx)
	if verr != nil {
		return rec, verr
	}

	chapterOrder, verr := intField(row, "chapter_order", idx)
	if verr != nil {
		return rec, verr
	}
	if chapterOrder < 1 {
		return rec, &ValidationError{Row: idx, Field: "chapter_order", Reason: ReasonOutOfRange, Detail: fmt.Sprintf("%d < 1", chapterOrder)}
	}

	timeSpent, verr := floatField(row, "time_spent_min", idx)
	if verr != nil {
		return rec, verr
	}
	if timeSpent < 0 {
		return rec, &ValidationError{Row: idx, Field: "time_spent_min", Reason: ReasonOutOfRange, Detail: fmt.Sprintf("%v < 0", timeSpent)}
	}

	score, verr := floatField(row, "score_percent", idx)
	if verr != nil {
		return rec, verr
	}
	if score < 0 || score > 100 {
		return rec, &ValidationError{Row: idx, Field: "score_percent", Reason: ReasonOutOfRange, Detail: fmt.Sprintf("%v not in [0,100]", score)}
	}

	rec = model.ChapterRecord{
		StudentID:    studentID,
		CourseID:     courseID,
		ChapterOrder: chapterOrder,
		TimeSpentMin: timeSpent,
		ScorePercent: score,
	}

	// completed 训练模式必填，推理模式可选
	if raw, ok := row["completed"]; ok && raw != nil && raw != "" {
		completed, err := cast.ToBoolE(raw)
		if err != nil {
			// 0/1 也合法
			n, nerr := cast.ToIntE(raw)
			if nerr != nil || (n != 0 && n != 1) {
				return rec, &ValidationError{Row: idx, Field: "completed", Reason: ReasonTypeMismatch, Detail: fmt.Sprintf("%v", raw)}
			}
			completed = n == 1
		}
		rec.Completed = &completed
	} else if v.mode == config.ValidationModeTraining {
		return rec, &ValidationError{Row: idx, Field: "completed", Reason: ReasonMissing}
	}

	return rec, nil
}

// ValidateBatch 按模式批量校验。
// 训练模式：首个无效行即中止整批；带 completed 标志是硬性要求。
// 推理模式：无效行跳过并收集进边报告，其余行继续。
// 两种模式下，同批内 completed 标志必须要么全有要么全无，
// 混用即 util.ErrSchemaInconsistent(对该批致命)。
func (v *RowValidator) ValidateBatch(rows []RawRow) ([]model.ChapterRecord, []*ValidationError, error) {
	records := make([]model.ChapterRecord, 0, len(rows))
	var rowErrors []*ValidationError

	seenWith, seenWithout := false, false
	for i, row := range rows {
		rec, verr := v.Validate(row, i)
		if verr != nil {
			if v.mode == config.ValidationModeTraining {
				return nil, nil, verr
			}
			rowErrors = append(rowErrors, verr)
			continue
		}

		if rec.Completed != nil {
			seenWith = true
		} else {
			seenWithout = true
		}
		if seenWith && seenWithout {
			return nil, nil, fmt.Errorf("row %d: %w", i, util.ErrSchemaInconsistent)
		}

		records = append(records, rec)
	}

	return records, rowErrors, nil
}

func stringField(row RawRow, field string, idx int) (string, *ValidationError) {
	raw, ok := row[field]
	if !ok || raw == nil {
		return "", &ValidationError{Row: idx, Field: field, Reason: ReasonMissing}
	}
	s, err := cast.ToStringE(raw)
	if err != nil || s == "" {
		return "", &ValidationError{Row: idx, Field: field, Reason: ReasonMissing}
	}
	return s, nil
}

func intField(row RawRow, field string, idx int) (int, *ValidationError) {
	raw, ok := row[field]
	if !ok || raw == nil || raw == "" {
		return 0, &ValidationError{Row: idx, Field: field, Reason: ReasonMissing}
	}
	n, err := cast.ToIntE(raw)
	if err != nil {
		return 0, &ValidationError{Row: idx, Field: field, Reason: ReasonTypeMismatch, Detail: fmt.Sprintf("%v", raw)}
	}
	return n, nil
}

func floatField(row RawRow, field string, idx int) (float64, *ValidationError) {
	raw, ok := row[field]
	if !ok || raw == nil || raw == "" {
		return 0, &ValidationError{Row: idx, Field: field, Reason: ReasonMissing}
	}
	f, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, &ValidationError{Row: idx, Field: field, Reason: ReasonTypeMismatch, Detail: fmt.Sprintf("%v", raw)}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &ValidationError{Row: idx, Field: field, Reason: ReasonOutOfRange, Detail: "non-finite"}
	}
	return f, nil
}
