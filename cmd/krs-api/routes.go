package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/siakad-krs/internal/middleware"
	"github.com/noah-isme/siakad-krs/pkg/config"
	"github.com/noah-isme/siakad-krs/pkg/logger"
	corsmiddleware "github.com/noah-isme/siakad-krs/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/siakad-krs/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, logr *zap.Logger, h *handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(h.metrics))

	r.GET("/health", h.health.Health)
	r.GET("/ready", h.health.Ready)
	if h.metrics != nil {
		r.GET("/metrics", h.health.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	calendar := api.Group("/calendar")
	calendar.GET("/current", h.calendar.Current)
	calendar.POST("/refresh", h.calendar.Refresh)

	curricula := api.Group("/curricula")
	curricula.GET("/:program/:year/courses", h.curriculum.Courses)
	curricula.POST("/cache/invalidate", h.curriculum.Invalidate)

	students := api.Group("/students/:id")
	students.GET("/performance", h.students.Performance)
	students.GET("/curriculum", h.students.Curriculum)
	students.GET("/risk", h.students.Risk)
	students.GET("/registration", h.registration.Current)
	students.GET("/registration/status", h.registration.Status)
	students.GET("/registration/suggestions", h.registration.Suggestions)
	students.POST("/registration/lines", h.registration.AddSection)
	students.DELETE("/registration/lines/:sectionId", h.registration.RemoveSection)
	students.POST("/registration/submit", h.registration.Submit)

	registrations := api.Group("/registrations/:id")
	registrations.GET("", h.registration.Detail)
	registrations.POST("/approve", h.registration.Approve)
	registrations.POST("/reject", h.registration.Reject)
	registrations.POST("/reset", h.registration.Reset)

	advisors := api.Group("/advisors/:id")
	advisors.GET("/risk", h.advisors.RiskOverview)
	advisors.GET("/students/:studentId/risk", h.advisors.AdviseeRisk)

	if h.exports != nil {
		students.GET("/registration/export", h.exports.RegistrationCard)
		advisors.GET("/risk/export", h.exports.AdviseeRiskReport)
	}

	return r
}
