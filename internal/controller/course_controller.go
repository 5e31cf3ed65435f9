package controller

import (
	"github.com/gin-gonic/gin"

	"learning_intel_backend/internal/pipeline"
	"learning_intel_backend/internal/service"
	"learning_intel_backend/internal/util"
)

type CourseController struct {
	PredictionService *service.PredictionService
	InsightService    *service.InsightService
}

func NewCourseController(predictionService *service.PredictionService, insightService *service.InsightService) *CourseController {
	return &CourseController{
		PredictionService: predictionService,
		InsightService:    insightService,
	}
}

// IngestRequest 课程章节记录入库请求，训练 schema(completed 必填)
type IngestRequest struct {
	Records []pipeline.RawRow `json:"records" binding:"required"`
}

// @Summary 入库章节记录
// @Description 批量入库训练 schema 的章节记录，重复 (student, course, chapter) 后写覆盖；任何无效行中止整批
// @Tags 课程
// @Accept json
// @Produce json
// @Param request body controller.IngestRequest true "章节记录"
// @Success 201 {object} util.Response
// @Failure 422 {object} util.Response
// @Router /courses/records [post]
func (c *CourseController) IngestRecords(ctx *gin.Context) {
	var req IngestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	count, err := c.PredictionService.IngestRecords(req.Records)
	if err != nil {
		writePipelineError(ctx, err)
		return
	}

	// 入库的课程缓存全部失效
	seen := make(map[string]bool)
	for _, row := range req.Records {
		if courseID, ok := row["course_id"].(string); ok && !seen[courseID] {
			seen[courseID] = true
			c.InsightService.InvalidateCourse(ctx.Request.Context(), courseID)
		}
	}

	util.Created(ctx, gin.H{"ingested": count})
}

// @Summary 课程洞察
// @Description 课程的章节辍学率、难点章节、关键完成因素与高风险学生；无记录课程返回空结果
// @Tags 课程
// @Produce json
// @Param courseId path string true "课程ID"
// @Success 200 {object} util.Response
// @Router /courses/{courseId}/insights [get]
func (c *CourseController) GetCourseInsights(ctx *gin.Context) {
	courseID := ctx.Param("courseId")

	insights, err := c.InsightService.CourseInsights(ctx.Request.Context(), courseID)
	if err != nil {
		writePipelineError(ctx, err)
		return
	}

	util.Success(ctx, insights)
}

// @Summary 高风险学生
// @Description 课程最近一次评分批次中风险等级为 HIGH 的学生
// @Tags 课程
// @Produce json
// @Param courseId path string true "课程ID"
// @Success 200 {object} util.Response
// @Router /courses/{courseId}/high-risk [get]
func (c *CourseController) GetHighRiskStudents(ctx *gin.Context) {
	courseID := ctx.Param("courseId")

	students, err := c.InsightService.HighRiskStudents(ctx.Request.Context(), courseID)
	if err != nil {
		writePipelineError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"course_id": courseID,
		"students":  students,
		"count":     len(students),
	})
}
