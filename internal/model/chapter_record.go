package model

import "time"

// ChapterRecord 学生在某一章节的一条原始行为记录
// (student_id, course_id, chapter_order) 唯一，重复导入时后写覆盖
type ChapterRecord struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	StudentID    string    `gorm:"size:64;not null;index;uniqueIndex:idx_student_course_chapter,priority:1" json:"student_id"`
	CourseID     string    `gorm:"size:64;not null;index;uniqueIndex:idx_student_course_chapter,priority:2" json:"course_id"`
	ChapterOrder int       `gorm:"not null;uniqueIndex:idx_student_course_chapter,priority:3" json:"chapter_order"`
	TimeSpentMin float64   `gorm:"not null" json:"time_spent_min"`
	ScorePercent float64   `gorm:"not null" json:"score_percent"`
	Completed    *bool     `json:"completed,omitempty"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

func (ChapterRecord) TableName() string {
	return "chapter_records"
}

// IsCompleted 仅在训练数据(带 completed 标志)上为真
func (r *ChapterRecord) IsCompleted() bool {
	return r.Completed != nil && *r.Completed
}

// StudentProfile 一个学生在一门课程内的完整章节序列，按 chapter_order 升序
// 每次预测请求时重建，不落库
type StudentProfile struct {
	StudentID string          `json:"student_id"`
	CourseID  string          `json:"course_id"`
	Chapters  []ChapterRecord `json:"chapters"`
}

// HasCompletionFlags 该学生的记录是否携带 completed 标志(训练模式)
func (p *StudentProfile) HasCompletionFlags() bool {
	return len(p.Chapters) > 0 && p.Chapters[0].Completed != nil
}

// LastChapter 学生最后观测到的章节，档案非空时有效
func (p *StudentProfile) LastChapter() ChapterRecord {
	return p.Chapters[len(p.Chapters)-1]
}
