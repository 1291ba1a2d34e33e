package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-mock/internal/config"
	"github.com/stemsi/exstem-mock/internal/handler"
	"github.com/stemsi/exstem-mock/internal/metrics"
	"github.com/stemsi/exstem-mock/internal/middleware"
	"github.com/stemsi/exstem-mock/internal/response"
	"github.com/stemsi/exstem-mock/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Exam      *handler.ExamHandler
	Result    *handler.ResultHandler
	History   *handler.HistoryHandler
	Dashboard *handler.DashboardHandler
	WS        *handler.WSHandler
	System    *handler.SystemHandler
}

// Deps carries what the route middlewares need besides the handlers.
type Deps struct {
	Tokens         *service.TokenService
	Sessions       middleware.SessionAuthorizer
	ExplainLimiter *middleware.RateLimiter
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, deps Deps, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// Restrict to AllowedOrigins when configured, otherwise allow all.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Metrics())
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)
	router.GET("/metrics", metrics.Handler())

	// ─── 0. Public Group ───────────────────────────────────────────────
	api := router.Group("/api/v1")
	{
		api.GET("/dashboard", middleware.CacheControl(60), handlers.Dashboard.GetDashboardData)
		api.POST("/exam/start", handlers.Exam.StartExam)
	}

	requireToken := middleware.RequireSessionToken(deps.Tokens, deps.Sessions)

	// ─── 1. Exam Group (Session Token) ─────────────────────────────────
	examAPI := api.Group("/exam")
	examAPI.Use(requireToken, middleware.CacheControl(0))
	{
		examAPI.GET("/state", handlers.Exam.GetState)
		examAPI.POST("/navigate", handlers.Exam.Navigate)
		examAPI.POST("/next", handlers.Exam.Next)
		examAPI.POST("/answer", handlers.Exam.MarkAnswer)
		examAPI.POST("/clear", handlers.Exam.ClearResponse)
		examAPI.POST("/review", handlers.Exam.ToggleReview)
		examAPI.POST("/subject", handlers.Exam.ChangeSubject)
		examAPI.POST("/end", handlers.Exam.EndExam)

		examAPI.POST("/proctor/camera", handlers.Exam.CameraCheck)
		examAPI.POST("/proctor/signal", handlers.Exam.ReportSignal)
		examAPI.GET("/proctor/warnings", handlers.Exam.GetWarnings)

		examAPI.GET("/results", handlers.Result.GetResults)
		examAPI.POST("/results/questions/:question_id/explain",
			deps.ExplainLimiter.Middleware(),
			handlers.Result.ExplainQuestion,
		)
	}

	// ─── 2. History Group (Postgres) ───────────────────────────────────
	historyAPI := api.Group("/history")
	{
		historyAPI.GET("", handlers.History.ListAttempts)
		historyAPI.GET("/export", handlers.History.ExportAttempts)
		historyAPI.GET("/:session_id/answers", handlers.History.GetAttemptAnswers)
	}

	// ─── 3. WebSocket Group (Token in query) ───────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(requireToken)
	{
		ws.GET("/exam/stream", handlers.WS.ExamWebSocketStream)
	}

	return router
}
