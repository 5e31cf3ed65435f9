package service

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"learning_intel_backend/internal/config"
	"learning_intel_backend/internal/ml"
	"learning_intel_backend/internal/model"
	"learning_intel_backend/internal/pipeline"
	"learning_intel_backend/internal/repository"
	"learning_intel_backend/pkg/monitoring"
)

// BatchResult 一次批量预测的完整产物
// 预测顺序与输入中学生首次出现的顺序一致；行级错误只在推理
// 校验模式下出现(训练模式遇错直接中止)
type BatchResult struct {
	BatchID     string                      `json:"batch_id"`
	TotalRows   int                         `json:"total_rows"`
	ValidRows   int                         `json:"valid_rows"`
	Predictions []model.PredictionResult    `json:"predictions"`
	Insights    []model.CourseInsights      `json:"insights"`
	RowErrors   []*pipeline.ValidationError `json:"row_errors,omitempty"`
}

// PredictionService 串起 校验 → 聚合 → 提特征 → 评分 → 洞察 的整条管线
// 两个估计器在启动时注入且推理期间只读，服务本身无请求间共享的可变状态，
// 管线配置可热更新(读写锁保护的快照)
type PredictionService struct {
	recordRepo     *repository.ChapterRecordRepository
	predictionRepo *repository.PredictionRepository
	completion     ml.Estimator
	dropout        ml.Estimator

	mu  sync.RWMutex
	cfg config.PipelineConfig
}

func NewPredictionService(
	recordRepo *repository.ChapterRecordRepository,
	predictionRepo *repository.PredictionRepository,
	completion, dropout ml.Estimator,
	cfg config.PipelineConfig,
) *PredictionService {
	return &PredictionService{
		recordRepo:     recordRepo,
		predictionRepo: predictionRepo,
		completion:     completion,
		dropout:        dropout,
		cfg:            cfg,
	}
}

// PipelineConfig 当前管线策略快照
func (s *PredictionService) PipelineConfig() config.PipelineConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// ApplyPipelineConfig 热更新管线策略，非法配置拒绝生效
func (s *PredictionService) ApplyPipelineConfig(cfg config.PipelineConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}

// PredictBatch 对一批原始行跑完整管线，不落库
// 空批次返回空但结构完整的结果，这是合法边界而非错误
func (s *PredictionService) PredictBatch(rows []pipeline.RawRow) (*BatchResult, error) {
	cfg := s.PipelineConfig()
	return s.run(rows, cfg, cfg.ValidationMode)
}

// PredictStudent 单学生预测：若干章节行必须属于同一个学生
// 百分位策略对单学生无意义，始终按固定阈值定级
func (s *PredictionService) PredictStudent(rows []pipeline.RawRow) (*model.PredictionResult, error) {
	cfg := s.PipelineConfig()

	validator := pipeline.NewRowValidator(config.ValidationModeInference)
	records, rowErrors, err := validator.ValidateBatch(rows)
	if err != nil {
		return nil, err
	}
	if len(rowErrors) > 0 {
		return nil, rowErrors[0]
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no valid rows for student prediction")
	}

	profiles := pipeline.BuildProfiles(records)
	if len(profiles) != 1 {
		return nil, fmt.Errorf("expected rows for exactly one student, got %d", len(profiles))
	}

	engineer := pipeline.NewFeatureEngineer(cfg)
	vectors, err := engineer.EngineerBatch(profiles)
	if err != nil {
		return nil, err
	}

	scorer := pipeline.NewRiskScorer(s.completion, s.dropout, cfg)
	result, err := scorer.ScoreOne(profiles[0], vectors[0])
	if err != nil {
		return nil, err
	}

	monitoring.PredictionsTotal.WithLabelValues(string(result.RiskLevel)).Inc()
	return &result, nil
}

// IngestRecords 入库一批训练 schema 的章节记录(completed 必填)，
// 重复 (student, course, chapter) 后写覆盖。涉及课程的历史预测批次
// 一并删除，下一次洞察请求会基于全量记录重新评分
func (s *PredictionService) IngestRecords(rows []pipeline.RawRow) (int, error) {
	validator := pipeline.NewRowValidator(config.ValidationModeTraining)
	records, _, err := validator.ValidateBatch(rows)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	if err := s.recordRepo.UpsertBatch(records); err != nil {
		return 0, fmt.Errorf("persist chapter records: %w", err)
	}

	seen := make(map[string]bool)
	for _, rec := range records {
		if seen[rec.CourseID] {
			continue
		}
		seen[rec.CourseID] = true
		if err := s.predictionRepo.DeleteByCourse(rec.CourseID); err != nil {
			return 0, fmt.Errorf("supersede predictions: %w", err)
		}
	}
	return len(records), nil
}

// ScoreCourse 对一门已入库课程的全部记录评分并持久化为一个新批次
// 返回批次号、预测和重建的档案
func (s *PredictionService) ScoreCourse(courseID string) (string, []model.PredictionResult, []model.StudentProfile, error) {
	records, err := s.recordRepo.ListByCourse(courseID)
	if err != nil {
		return "", nil, nil, err
	}
	if len(records) == 0 {
		return "", []model.PredictionResult{}, nil, nil
	}

	cfg := s.PipelineConfig()
	profiles := pipeline.BuildProfiles(records)

	engineer := pipeline.NewFeatureEngineer(cfg)
	vectors, err := engineer.EngineerBatch(profiles)
	if err != nil {
		return "", nil, nil, err
	}

	scorer := pipeline.NewRiskScorer(s.completion, s.dropout, cfg)
	predictions, err := scorer.ScoreBatch(profiles, vectors)
	if err != nil {
		return "", nil, nil, err
	}

	batchID := uuid.New().String()
	for i := range predictions {
		predictions[i].BatchID = batchID
		monitoring.PredictionsTotal.WithLabelValues(string(predictions[i].RiskLevel)).Inc()
	}
	if err := s.predictionRepo.SaveBatch(predictions); err != nil {
		return "", nil, nil, fmt.Errorf("persist predictions: %w", err)
	}

	return batchID, predictions, profiles, nil
}

// run 执行一遍完整管线：校验策略由 validationMode 给定，
// 评分策略和特征权重来自 cfg
func (s *PredictionService) run(rows []pipeline.RawRow, cfg config.PipelineConfig, validationMode string) (*BatchResult, error) {
	result := &BatchResult{
		BatchID:     uuid.New().String(),
		TotalRows:   len(rows),
		Predictions: []model.PredictionResult{},
		Insights:    []model.CourseInsights{},
	}

	validator := pipeline.NewRowValidator(validationMode)
	records, rowErrors, err := validator.ValidateBatch(rows)
	if err != nil {
		return nil, err
	}
	result.ValidRows = len(records)
	result.RowErrors = rowErrors
	if n := len(rowErrors); n > 0 {
		monitoring.RowsRejectedTotal.Add(float64(n))
	}
	if len(records) == 0 {
		return result, nil
	}

	profiles := pipeline.BuildProfiles(records)

	engineer := pipeline.NewFeatureEngineer(cfg)
	vectors, err := engineer.EngineerBatch(profiles)
	if err != nil {
		return nil, err
	}

	scorer := pipeline.NewRiskScorer(s.completion, s.dropout, cfg)
	predictions, err := scorer.ScoreBatch(profiles, vectors)
	if err != nil {
		return nil, err
	}
	result.Predictions = predictions
	for _, p := range predictions {
		monitoring.PredictionsTotal.WithLabelValues(string(p.RiskLevel)).Inc()
	}

	// 批内每门课程一份洞察，按课程首次出现顺序
	aggregator := pipeline.NewInsightAggregator(cfg)
	seen := make(map[string]bool)
	for _, p := range profiles {
		if seen[p.CourseID] {
			continue
		}
		seen[p.CourseID] = true
		result.Insights = append(result.Insights, aggregator.Aggregate(p.CourseID, profiles, predictions))
	}

	return result, nil
}
