package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/openlms/assessment-engine/config"
	"github.com/openlms/assessment-engine/database"
	instructorctrl "github.com/openlms/assessment-engine/internal/controller/instructor"
	studentctrl "github.com/openlms/assessment-engine/internal/controller/student"
	"github.com/openlms/assessment-engine/internal/logger"
	"github.com/openlms/assessment-engine/internal/model"
	"github.com/openlms/assessment-engine/internal/repository"
	"github.com/openlms/assessment-engine/internal/service"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// @title Assessment Engine API
// @version 1.0
// @description Test-taking engine: attempts, autosave drafts, timed submissions, automatic and manual grading.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
func main() {
	logger.Init()

	app := fx.New(
		// Core Application Components
		fx.Provide(
			config.NewConfig,
			database.NewDatabase, // Provides *gorm.DB
			NewGinEngine,         // Provides *gin.Engine
		),

		// Repositories Layer
		fx.Provide(
			repository.NewTestRepository,
			repository.NewQuestionRepository,
			repository.NewSubmissionRepository,
			repository.NewAnswerRepository,
		),

		// Services Layer
		fx.Provide(
			service.NewScoringService,
			service.NewCertificateNotifier,
			service.NewAIReviewService,
			service.NewExpiryScheduler,
			service.NewSessionManager,
			service.NewCatalogService,
			service.NewTestImportService,
			service.NewGradingService,
			service.NewAttemptService,
		),

		// API Controllers Layer
		fx.Provide(
			studentctrl.NewAttemptController,
			instructorctrl.NewGradingController,
		),

		fx.Invoke(RegisterRoutesAndStartServer),
		fx.Invoke(AutoMigrateDB),
		fx.Invoke(RearmDraftTimers),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()
	log.Info().Msg("Application shutting down gracefully...")
}

func NewGinEngine() *gin.Engine {
	gin.SetMode(gin.DebugMode)

	r := gin.New()

	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("user_agent", param.Request.UserAgent()).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// URL: http://localhost:PORT/swagger/index.html
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// RegisterRoutesAndStartServer configures API routes and manages server lifecycle.
func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	attemptCtrl *studentctrl.AttemptController,
	gradingCtrl *instructorctrl.GradingController,
	scheduler *service.ExpiryScheduler,
	sessions *service.SessionManager,
) {
	// Instructor routes (prefixed with /api/v1)
	instructorGroup := router.Group("/api/v1")
	{
		instructorGroup.POST("/admin/tests", gradingCtrl.ImportTest)

		gradingGroup := instructorGroup.Group("/grading")
		gradingGroup.GET("/pending", gradingCtrl.ListPending)
		gradingGroup.GET("/submissions/:submission_id", gradingCtrl.GetPending)
		gradingGroup.POST("/submissions/:submission_id/grade", gradingCtrl.GradeSubmission)
	}

	// Student routes (prefixed with /api/v1)
	studentGroup := router.Group("/api/v1")
	{
		studentGroup.GET("/tests", attemptCtrl.GetAllTests)
		studentGroup.GET("/tests/:test_id", attemptCtrl.GetTestForAttempt)
		studentGroup.GET("/tests/:test_id/my-attempts", attemptCtrl.ListAttempts)

		studentGroup.POST("/tests/:test_id/attempts", attemptCtrl.StartAttempt)
		studentGroup.PUT("/attempts/:attempt_id/answers", attemptCtrl.RecordAnswer)
		studentGroup.POST("/attempts/:attempt_id/submit", attemptCtrl.SubmitAttempt)
		studentGroup.GET("/attempts/:attempt_id", attemptCtrl.GetAttempt)
		studentGroup.GET("/attempts/:attempt_id/time", attemptCtrl.GetTimeRemaining)
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Assessment engine server starting on port %s", cfg.Server.Port)
			log.Info().Msgf("Swagger UI available at http://localhost:%s/swagger/index.html", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Server shutting down...")
			// Stop the expiry timers and flush buffered draft answers before
			// the database connection goes away.
			scheduler.Stop()
			sessions.CloseAll()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}

func AutoMigrateDB(db *gorm.DB) error {
	log.Info().Msg("Running database migrations...")
	err := db.AutoMigrate(
		&model.Test{},
		&model.Question{},
		&model.QuestionOption{},
		&model.Submission{},
		&model.Answer{},
	)
	if err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}
	log.Info().Msg("Database migration completed successfully.")
	return nil
}

// RearmDraftTimers restores expiry timers for drafts that were open when the
// process last stopped. Drafts whose deadline already passed are force
// submitted immediately.
func RearmDraftTimers(lc fx.Lifecycle, attempts service.AttemptService) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := attempts.RearmDrafts(); err != nil {
				// Timers will still arm lazily when a student touches the
				// draft again; startup should not fail over this.
				log.Error().Err(err).Msg("Rearming draft expiry timers failed")
			}
			return nil
		},
	})
}
