package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"learning_intel_backend/internal/pipeline"
	"learning_intel_backend/internal/service"
	"learning_intel_backend/internal/util"
)

type PredictionController struct {
	PredictionService *service.PredictionService
}

func NewPredictionController(predictionService *service.PredictionService) *PredictionController {
	return &PredictionController{PredictionService: predictionService}
}

// SingleStudentRequest 单学生预测请求，一行或多行章节观测
type SingleStudentRequest struct {
	StudentID    string  `json:"student_id" binding:"required"`
	CourseID     string  `json:"course_id" binding:"required"`
	ChapterOrder int     `json:"chapter_order"`
	TimeSpentMin float64 `json:"time_spent_min"`
	ScorePercent float64 `json:"score_percent"`
}

// @Summary 批量预测
// @Description 上传 CSV(列: student_id, course_id, chapter_order, time_spent_min, score_percent[, completed])，返回每个学生的完成概率、风险等级及批内课程洞察
// @Tags 预测
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "章节观测 CSV"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response
// @Router /predict [post]
func (c *PredictionController) PredictBatch(ctx *gin.Context) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "missing upload file")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	rows, err := service.ParseCSVRows(file)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.PredictionService.PredictBatch(rows)
	if err != nil {
		writePipelineError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// @Summary 单学生预测
// @Description 对单个学生的章节观测做即时预测，风险等级按固定阈值判定
// @Tags 预测
// @Accept json
// @Produce json
// @Param request body controller.SingleStudentRequest true "学生章节观测"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response
// @Router /predict-single [post]
func (c *PredictionController) PredictSingle(ctx *gin.Context) {
	var req SingleStudentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if req.ChapterOrder == 0 {
		req.ChapterOrder = 1
	}

	row := pipeline.RawRow{
		"student_id":     req.StudentID,
		"course_id":      req.CourseID,
		"chapter_order":  req.ChapterOrder,
		"time_spent_min": req.TimeSpentMin,
		"score_percent":  req.ScorePercent,
	}

	result, err := c.PredictionService.PredictStudent([]pipeline.RawRow{row})
	if err != nil {
		writePipelineError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// writePipelineError 把管线错误翻译成 HTTP 语义：
// 行校验错误和 schema 混用是客户端数据问题，模型不可用是服务端问题
func writePipelineError(ctx *gin.Context, err error) {
	var verr *pipeline.ValidationError
	switch {
	case errors.As(err, &verr):
		util.UnprocessableEntity(ctx, verr.Error())
	case errors.Is(err, util.ErrSchemaInconsistent):
		util.UnprocessableEntity(ctx, err.Error())
	case errors.Is(err, util.ErrModelUnavailable):
		util.Error(ctx, http.StatusServiceUnavailable, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
