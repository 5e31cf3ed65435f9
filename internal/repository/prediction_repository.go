package repository

import (
	"gorm.io/gorm"

	"learning_intel_backend/internal/model"
)

type PredictionRepository struct {
	DB *gorm.DB
}

func NewPredictionRepository(db *gorm.DB) *PredictionRepository {
	return &PredictionRepository{DB: db}
}

// SaveBatch 持久化一个批次的预测结果
func (r *PredictionRepository) SaveBatch(results []model.PredictionResult) error {
	if len(results) == 0 {
		return nil
	}
	return r.DB.Create(&results).Error
}

// LatestBatchID 课程最近一次评分批次，无记录时返回空串
func (r *PredictionRepository) LatestBatchID(courseID string) (string, error) {
	var batchID string
	err := r.DB.Model(&model.PredictionResult{}).
		Where("course_id = ?", courseID).
		Order("created_at DESC, id DESC").
		Limit(1).
		Pluck("batch_id", &batchID).Error
	if err == gorm.ErrRecordNotFound {
		return "", nil
	}
	return batchID, err
}

// DeleteByCourse 删除课程的全部历史预测批次
// 入库新记录后旧批次已失真，删掉让下一次洞察请求重新评分
func (r *PredictionRepository) DeleteByCourse(courseID string) error {
	return r.DB.Where("course_id = ?", courseID).Delete(&model.PredictionResult{}).Error
}

// ListByBatch 某一批次的全部预测，按入库顺序
func (r *PredictionRepository) ListByBatch(batchID string) ([]model.PredictionResult, error) {
	var results []model.PredictionResult
	err := r.DB.
		Where("batch_id = ?", batchID).
		Order("id ASC").
		Find(&results).Error
	return results, err
}

// HighRiskByBatch 某一批次内风险等级为 HIGH 的学生
func (r *PredictionRepository) HighRiskByBatch(batchID string) ([]model.PredictionResult, error) {
	var results []model.PredictionResult
	err := r.DB.
		Where("batch_id = ? AND risk_level = ?", batchID, model.RiskHigh).
		Order("student_id ASC").
		Find(&results).Error
	return results, err
}
