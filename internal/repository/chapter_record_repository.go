package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"learning_intel_backend/internal/model"
)

type ChapterRecordRepository struct {
	DB *gorm.DB
}

func NewChapterRecordRepository(db *gorm.DB) *ChapterRecordRepository {
	return &ChapterRecordRepository{DB: db}
}

// UpsertBatch 批量写入章节记录
// (student_id, course_id, chapter_order) 冲突时后写覆盖，与管线内存端的
// 重复行策略保持同一条规则
func (r *ChapterRecordRepository) UpsertBatch(records []model.ChapterRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "student_id"},
			{Name: "course_id"},
			{Name: "chapter_order"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"time_spent_min", "score_percent", "completed", "updated_at"}),
	}).Create(&records).Error
}

// ListByCourse 一门课程的全部记录，先按学生首次入库顺序、组内按章节升序
func (r *ChapterRecordRepository) ListByCourse(courseID string) ([]model.ChapterRecord, error) {
	var records []model.ChapterRecord
	err := r.DB.
		Where("course_id = ?", courseID).
		Order("id ASC").
		Find(&records).Error
	return records, err
}

func (r *ChapterRecordRepository) CountByCourse(courseID string) (int64, error) {
	var count int64
	err := r.DB.Model(&model.ChapterRecord{}).
		Where("course_id = ?", courseID).
		Count(&count).Error
	return count, err
}

func (r *ChapterRecordRepository) ListCourses() ([]string, error) {
	var courses []string
	err := r.DB.Model(&model.ChapterRecord{}).
		Distinct("course_id").
		Order("course_id ASC").
		Pluck("course_id", &courses).Error
	return courses, err
}
