package app

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"learning_intel_backend/docs"
	"learning_intel_backend/pkg/monitoring"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	api := router.Group("/api")
	{
		api.GET("/health", c.health.HealthCheck)

		// 即时预测(不落库)
		api.POST("/predict", c.prediction.PredictBatch)
		api.POST("/predict-single", c.prediction.PredictSingle)

		// 课程数据与洞察
		courses := api.Group("/courses")
		{
			courses.POST("/records", c.course.IngestRecords)
			courses.GET("/:courseId/insights", c.course.GetCourseInsights)
			courses.GET("/:courseId/high-risk", c.course.GetHighRiskStudents)
		}
	}
}
