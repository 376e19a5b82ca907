package app

import (
	"formquiz_backend/docs"
	"formquiz_backend/internal/config"
	"formquiz_backend/internal/controller"
	"formquiz_backend/internal/middleware"
	"formquiz_backend/internal/model"
	"formquiz_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	api := router.Group("/api")

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(api, c, cfg)

	// 2. 需要授权的路由
	authGroup := api.Group("")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		authGroup.GET("/auth/me", c.auth.Me)

		a.registerFormRoutes(authGroup.Group("/forms"), c, "")
		a.registerFormRoutes(authGroup.Group("/quizzes", controller.FixFormType(model.FormTypeQuiz)), c, model.FormTypeQuiz)
		a.registerFormRoutes(authGroup.Group("/surveys", controller.FixFormType(model.FormTypeSurvey)), c, model.FormTypeSurvey)

		authGroup.POST("/quizzes/code/:code/submit", c.submission.SubmitQuiz)
		authGroup.DELETE("/submissions/:id", c.submission.Delete)

		me := authGroup.Group("/me")
		{
			me.GET("/recent-activity", c.submission.RecentActivity)
			me.GET("/submissions", c.submission.MySubmissions)
		}
	}
}

func (a *App) registerPublicRoutes(api *gin.RouterGroup, c *controllers, cfg *config.Config) {
	api.GET("/health", c.health.HealthCheck)

	auth := api.Group("/auth")
	{
		auth.POST("/register", c.auth.Register)
		auth.POST("/login", c.auth.Login)
	}

	api.GET("/public/forms/:code", c.form.Public)

	// 问卷允许匿名提交，登录时记录提交人
	api.POST("/surveys/code/:code/submit", middleware.TryAuthMiddleware(cfg), c.submission.SubmitSurvey)
}

// registerFormRoutes /forms 为通用入口，/quizzes 与 /surveys 固定类型
func (a *App) registerFormRoutes(rg *gin.RouterGroup, c *controllers, formType model.FormType) {
	rg.GET("", c.form.List)
	rg.POST("", c.form.Create)
	rg.GET("/:id", c.form.Get)
	rg.PUT("/:id", c.form.Update)
	rg.GET("/:id/results", c.form.Results)

	if formType == "" {
		rg.GET("/summary", c.form.Summary)
		rg.DELETE("/:id", c.form.Delete)
		rg.GET("/code/:code/permission", c.form.Permission)
	}
}
