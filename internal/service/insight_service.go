package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"learning_intel_backend/internal/model"
	"learning_intel_backend/internal/pipeline"
	"learning_intel_backend/internal/repository"
	"learning_intel_backend/pkg/logger"
	"learning_intel_backend/pkg/monitoring"
)

const insightCachePrefix = "insight:course:"

// InsightService 课程级洞察：基于已入库的章节记录和最近一次评分批次
// 做纯聚合，结果在 Redis 里缓存一个 TTL，入库新数据时失效
type InsightService struct {
	recordRepo     *repository.ChapterRecordRepository
	predictionRepo *repository.PredictionRepository
	prediction     *PredictionService
	rdb            *redis.Client // 可为 nil(无缓存，纯计算)
}

func NewInsightService(
	recordRepo *repository.ChapterRecordRepository,
	predictionRepo *repository.PredictionRepository,
	prediction *PredictionService,
	rdb *redis.Client,
) *InsightService {
	return &InsightService{
		recordRepo:     recordRepo,
		predictionRepo: predictionRepo,
		prediction:     prediction,
		rdb:            rdb,
	}
}

// CourseInsights 计算(或从缓存取)一门课程的洞察
// 无记录课程返回空但结构完整的结果，不是错误
func (s *InsightService) CourseInsights(ctx context.Context, courseID string) (model.CourseInsights, error) {
	if cached, ok := s.fromCache(ctx, courseID); ok {
		return cached, nil
	}

	records, err := s.recordRepo.ListByCourse(courseID)
	if err != nil {
		return model.CourseInsights{}, err
	}
	if len(records) == 0 {
		return model.NewCourseInsights(courseID), nil
	}

	profiles := pipeline.BuildProfiles(records)
	predictions, err := s.coursePredictions(courseID)
	if err != nil {
		return model.CourseInsights{}, err
	}

	aggregator := pipeline.NewInsightAggregator(s.prediction.PipelineConfig())
	insights := aggregator.Aggregate(courseID, profiles, predictions)

	s.toCache(ctx, courseID, insights)
	return insights, nil
}

// HighRiskStudents 课程最近一次评分批次里的 HIGH 风险学生
func (s *InsightService) HighRiskStudents(ctx context.Context, courseID string) ([]model.PredictionResult, error) {
	batchID, err := s.ensureScored(courseID)
	if err != nil {
		return nil, err
	}
	if batchID == "" {
		return []model.PredictionResult{}, nil
	}
	return s.predictionRepo.HighRiskByBatch(batchID)
}

// InvalidateCourse 入库新记录后清掉该课程的缓存洞察
func (s *InsightService) InvalidateCourse(ctx context.Context, courseID string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, insightCachePrefix+courseID).Err(); err != nil && err != redis.Nil {
		logger.Log.Warn("invalidate insight cache", zap.String("course", courseID), zap.Error(err))
	}
}

// coursePredictions 取最近批次的预测，课程还没评过分就先评一遍并落库
func (s *InsightService) coursePredictions(courseID string) ([]model.PredictionResult, error) {
	batchID, err := s.ensureScored(courseID)
	if err != nil {
		return nil, err
	}
	if batchID == "" {
		return []model.PredictionResult{}, nil
	}
	return s.predictionRepo.ListByBatch(batchID)
}

func (s *InsightService) ensureScored(courseID string) (string, error) {
	batchID, err := s.predictionRepo.LatestBatchID(courseID)
	if err != nil {
		return "", err
	}
	if batchID != "" {
		return batchID, nil
	}
	batchID, _, _, err = s.prediction.ScoreCourse(courseID)
	return batchID, err
}

func (s *InsightService) fromCache(ctx context.Context, courseID string) (model.CourseInsights, bool) {
	if s.rdb == nil {
		return model.CourseInsights{}, false
	}
	raw, err := s.rdb.Get(ctx, insightCachePrefix+courseID).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Log.Warn("insight cache get", zap.String("course", courseID), zap.Error(err))
		}
		monitoring.InsightCacheHits.WithLabelValues("miss").Inc()
		return model.CourseInsights{}, false
	}

	var insights model.CourseInsights
	if err := json.Unmarshal(raw, &insights); err != nil {
		monitoring.InsightCacheHits.WithLabelValues("miss").Inc()
		return model.CourseInsights{}, false
	}
	monitoring.InsightCacheHits.WithLabelValues("hit").Inc()
	return insights, true
}

func (s *InsightService) toCache(ctx context.Context, courseID string, insights model.CourseInsights) {
	if s.rdb == nil {
		return
	}
	raw, err := json.Marshal(insights)
	if err != nil {
		return
	}
	ttl := time.Duration(s.prediction.PipelineConfig().InsightCacheTTLMin) * time.Minute
	if err := s.rdb.Set(ctx, insightCachePrefix+courseID, raw, ttl).Err(); err != nil {
		logger.Log.Warn("insight cache set", zap.String("course", courseID), zap.Error(err))
	}
}
