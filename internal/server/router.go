package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/chatlens/chatlens-backend/internal/handlers"
	"github.com/chatlens/chatlens-backend/internal/middleware"
	"github.com/chatlens/chatlens-backend/internal/observability"
)

type RouterConfig struct {
	SearchHandler  *handlers.SearchHandler
	AdminHandler   *handlers.AdminHandler
	MessageHandler *handlers.MessageHandler

	AllowOrigins []string
	ServiceName  string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "chatlens-backend"
	}
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.Metrics())

	router.GET("/healthcheck", handlers.HealthCheck)
	if m := observability.Current(); m != nil {
		router.GET("/metrics", gin.WrapF(m.WriteHTTP))
	}

	v1 := router.Group("/v1")
	{
		v1.POST("/search", cfg.SearchHandler.Search)
		v1.POST("/context", cfg.SearchHandler.RelevantContext)
		v1.GET("/stats", cfg.SearchHandler.Stats)
		v1.POST("/messages", cfg.MessageHandler.Ingest)
		v1.POST("/admin/rebuild", cfg.AdminHandler.Rebuild)
	}

	return router
}
