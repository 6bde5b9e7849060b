package routes

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/meetsweeper/internal/container"
	"github.com/joshua-takyi/meetsweeper/internal/handlers"
	"github.com/joshua-takyi/meetsweeper/internal/middleware"
)

// SetupRoutes configures all routes with the dependency container
func SetupRoutes(container *container.Container) *gin.Engine {
	if container.Config.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	origins := container.Config.CorsAllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	r := gin.New()
	r.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
	}))

	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(container.Logger))
	r.Use(middleware.ErrorHandler(container.Logger))
	r.Use(middleware.Recovery(container.Logger))

	v1 := r.Group("/api/v1")
	v1.GET("/health", handlers.Health("meetsweeper"))

	authCfg := middleware.SchedulerAuthConfig{
		CronSecret:           container.Config.CronSecret,
		AllowUnauthenticated: !container.Config.IsProduction(),
	}
	// A typed nil pointer in the interface would look configured.
	if container.TokenVerifier != nil {
		authCfg.Verifier = container.TokenVerifier
	}

	cron := v1.Group("/cron")
	cron.Use(middleware.SchedulerAuth(authCfg, container.Logger))
	{
		cron.POST("/meeting-lifecycle", handlers.RunSweep(container.LifecycleService))
		cron.GET("/meeting-lifecycle", handlers.RunSweep(container.LifecycleService))
	}

	return r
}
