package pipeline

import (
	"sort"

	"learning_intel_backend/internal/model"
)

type groupKey struct {
	studentID string
	courseID  string
}

// BuildProfiles 把已校验的章节记录按 (student_id, course_id) 分组，
// 组内按 chapter_order 升序排好。档案的输出顺序保持学生在输入中
// 首次出现的顺序。重复的 chapter_order 后写覆盖(与持久层的
// upsert 行为一致)。空输入返回空切片而不是错误。
func BuildProfiles(records []model.ChapterRecord) []model.StudentProfile {
	byKey := make(map[groupKey]map[int]model.ChapterRecord)
	var order []groupKey

	for _, rec := range records {
		key := groupKey{studentID: rec.StudentID, courseID: rec.CourseID}
		chapters, ok := byKey[key]
		if !ok {
			chapters = make(map[int]model.ChapterRecord)
			byKey[key] = chapters
			order = append(order, key)
		}
		chapters[rec.ChapterOrder] = rec // last-write-wins
	}

	profiles := make([]model.StudentProfile, 0, len(order))
	for _, key := range order {
		chapters := byKey[key]
		seq := make([]model.ChapterRecord, 0, len(chapters))
		for _, rec := range chapters {
			seq = append(seq, rec)
		}
		sort.SliceStable(seq, func(i, j int) bool {
			return seq[i].ChapterOrder < seq[j].ChapterOrder
		})
		profiles = append(profiles, model.StudentProfile{
			StudentID: key.studentID,
			CourseID:  key.courseID,
			Chapters:  seq,
		})
	}

	return profiles
}

// CourseLength 课程在本批数据里观测到的最大章节号，无记录时为 0
func CourseLength(profiles []model.StudentProfile, courseID string) int {
	maxChapter := 0
	for _, p := range profiles {
		if p.CourseID != courseID {
			continue
		}
		for _, c := range p.Chapters {
			if c.ChapterOrder > maxChapter {
				maxChapter = c.ChapterOrder
			}
		}
	}
	return maxChapter
}
