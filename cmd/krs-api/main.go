package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/siakad-krs/api/swagger"
	"github.com/noah-isme/siakad-krs/internal/handler"
	"github.com/noah-isme/siakad-krs/internal/models"
	"github.com/noah-isme/siakad-krs/internal/repository"
	"github.com/noah-isme/siakad-krs/internal/service"
	"github.com/noah-isme/siakad-krs/pkg/cache"
	"github.com/noah-isme/siakad-krs/pkg/config"
	"github.com/noah-isme/siakad-krs/pkg/database"
	"github.com/noah-isme/siakad-krs/pkg/logger"
)

// @title SIAKAD KRS API
// @version 1.0.0
// @description Course registration (KRS) decisions: calendar gate, credit ceilings, enrollment policy, risk scoring and suggestions.
// @BasePath /api/v1
// @schemes http

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Curriculum.CacheDriver == config.CacheDriverRedis {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
	}

	handlers, err := buildHandlers(cfg, db, redisClient, logr)
	if err != nil {
		return err
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, logr, handlers),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type handlers struct {
	metrics      *service.MetricsService
	health       *handler.MetricsHandler
	calendar     *handler.CalendarHandler
	curriculum   *handler.CurriculumHandler
	students     *handler.StudentHandler
	registration *handler.RegistrationHandler
	advisors     *handler.AdvisorHandler
	exports      *handler.ExportHandler
}

func buildHandlers(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) (*handlers, error) {
	catalog, err := repository.LoadCurriculumCatalog(cfg.Academic.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("load academic rules: %w", err)
	}
	ceiling, err := service.NewCreditCeiling(catalog.CreditCeiling())
	if err != nil {
		return nil, fmt.Errorf("credit ceiling rules: %w", err)
	}

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}

	students := repository.NewStudentRepository(db)
	periods := repository.NewPeriodRepository(db)
	grades := repository.NewGradeRepository(db)
	sections := repository.NewSectionRepository(db)
	registrations := repository.NewRegistrationRepository(db)
	attendance := repository.NewAttendanceRepository(db)

	var curriculumDriver service.TTLCache[models.CurriculumVersion]
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, "siakad-krs", logr)
		curriculumDriver = service.NewRedisCache[models.CurriculumVersion](cacheRepo, "curriculum", cfg.Curriculum.CacheTTL)
	} else {
		curriculumDriver = cache.NewMemory[models.CurriculumVersion](cfg.Curriculum.CacheSize, cfg.Curriculum.CacheTTL)
	}
	curriculumCache := service.NewCacheService[models.CurriculumVersion]("curriculum", curriculumDriver, metrics, logr)
	calendarCache := service.NewPeriodCache(cfg.Calendar.CacheTTL, metrics, logr)

	calendarSvc := service.NewCalendarService(periods, calendarCache, cfg.Calendar.LateEnrollmentGrace, logr)
	curriculumSvc := service.NewCurriculumService(catalog, curriculumCache, grades, logr)
	performanceSvc := service.NewPerformanceService(grades, periods, ceiling, logr)
	studentSvc := service.NewStudentService(students, performanceSvc, curriculumSvc, logr)
	riskSvc := service.NewRiskService(students, registrations, attendance, performanceSvc, curriculumSvc, calendarSvc, metrics, logr)
	recommendationSvc := service.NewRecommendationService(students, registrations, sections, performanceSvc, calendarSvc, service.SuggestionLimits{
		Priority: cfg.Recommendation.PriorityLimit,
		Optional: cfg.Recommendation.OptionalLimit,
	}, logr)
	registrationSvc := service.NewRegistrationService(students, registrations, sections, performanceSvc, calendarSvc, validator.New(), metrics, logr)
	advisorSvc := service.NewAdvisorService(students, registrations, riskSvc, calendarSvc, cfg.Advisor.RiskConcurrency, logr)

	h := &handlers{
		metrics:      metrics,
		health:       handler.NewMetricsHandler(metrics, db),
		calendar:     handler.NewCalendarHandler(calendarSvc),
		curriculum:   handler.NewCurriculumHandler(curriculumSvc),
		students:     handler.NewStudentHandler(studentSvc, riskSvc),
		registration: handler.NewRegistrationHandler(registrationSvc, recommendationSvc),
		advisors:     handler.NewAdvisorHandler(advisorSvc),
	}
	if cfg.Exports.Enabled {
		exportSvc := service.NewExportService(students, registrations, calendarSvc, advisorSvc, logr, nil, nil)
		h.exports = handler.NewExportHandler(exportSvc)
	}
	return h, nil
}
