package app

import (
	"paperflow_backend/docs"
	"paperflow_backend/internal/config"
	"paperflow_backend/internal/middleware"
	"paperflow_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	{
		a.registerJobRoutes(authGroup, c)
		a.registerPaperRoutes(authGroup, c)
	}
}

func (a *App) registerJobRoutes(group *gin.RouterGroup, c *controllers) {
	jobs := group.Group("/jobs")
	{
		jobs.POST("", c.testPaper.Upload)
		jobs.GET("", c.testPaper.List)
		jobs.GET("/:id", c.testPaper.Get)
		jobs.DELETE("/:id", c.testPaper.Delete)
		jobs.POST("/:id/process", c.testPaper.Process)
		jobs.GET("/:id/progress", c.testPaper.Progress)
		jobs.GET("/:id/parsing-errors", c.testPaper.ListParsingErrors)

		// 审核
		jobs.GET("/:id/questions", c.testPaper.ListQuestions)
		jobs.PATCH("/:id/questions/:qid", c.review.UpdateQuestion)
		jobs.POST("/:id/questions/:qid/confirm", c.review.ConfirmQuestion)
		jobs.POST("/:id/publish", c.review.Publish)
	}
}

func (a *App) registerPaperRoutes(group *gin.RouterGroup, c *controllers) {
	papers := group.Group("/papers")
	{
		papers.GET("", c.review.ListPapers)
		papers.GET("/:id", c.review.GetPaper)
	}
}
