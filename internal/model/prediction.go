package model

import "time"

// RiskLevel 辍学风险等级
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// PredictionResult 单个学生的预测结果，按批次落库供课程洞察复用
type PredictionResult struct {
	ID                    uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	BatchID               string    `gorm:"size:36;index" json:"batch_id,omitempty"`
	StudentID             string    `gorm:"size:64;not null;index" json:"student_id"`
	CourseID              string    `gorm:"size:64;not null;index" json:"course_id"`
	CompletionProbability float64   `gorm:"not null" json:"completion_probability"`
	DropoutRisk           float64   `gorm:"not null" json:"dropout_risk"`
	RiskLevel             RiskLevel `gorm:"size:8;not null" json:"risk_level"`
	PredictedCompletion   int       `gorm:"not null" json:"predicted_completion"`
	CreatedAt             time.Time `json:"-"`
}

func (PredictionResult) TableName() string {
	return "prediction_results"
}
