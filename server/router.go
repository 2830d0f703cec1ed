package server

import (
	"time"

	httpHandler "crosspost/interfaces/http"
	"crosspost/interfaces/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options carries what the router needs beyond the handlers.
type Options struct {
	SecretKey    string
	AllowOrigins []string
	// Instrument is installed ahead of every route when set.
	Instrument gin.HandlerFunc
	// Metrics serves GET /metrics; defaults to the global Prometheus registry.
	Metrics gin.HandlerFunc
	// Stream serves GET /api/posts/stream.
	Stream gin.HandlerFunc
}

func InitiateRouter(
	postHandler httpHandler.IPostHandler,
	offlineHandler httpHandler.IOfflineHandler,
	accountHandler httpHandler.IAccountHandler,
	analyticsHandler httpHandler.IAnalyticsHandler,
	platformHandler httpHandler.IPlatformHandler,
	opts Options,
) *gin.Engine {
	origins := opts.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:4200"}
	}
	router := gin.New()
	router.Use(gin.Recovery())
	if opts.Instrument != nil {
		router.Use(opts.Instrument)
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "Idempotency-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", platformHandler.Health)
	metricsHandler := opts.Metrics
	if metricsHandler == nil {
		metricsHandler = gin.WrapH(promhttp.Handler())
	}
	router.GET("/metrics", metricsHandler)

	api := router.Group("api")
	api.Use(middleware.Auth(opts.SecretKey))

	api.GET("/platforms", platformHandler.List)

	posts := api.Group("/posts")
	{
		posts.POST("/validate", postHandler.Validate)
		posts.POST("", postHandler.Create)
		posts.GET("", postHandler.List)
		if opts.Stream != nil {
			posts.GET("/stream", opts.Stream)
		}
		posts.GET("/:id", postHandler.Get)
		posts.PATCH("/:id", postHandler.Update)
		posts.DELETE("/:id", postHandler.Delete)
		posts.POST("/:id/dispatch", postHandler.Dispatch)
		posts.POST("/:id/redispatch", postHandler.Redispatch)
		posts.GET("/:id/outcomes", postHandler.Outcomes)
		posts.POST("/:id/engagement/refresh", postHandler.RefreshEngagement)
	}

	api.POST("/offline/reconcile", offlineHandler.Reconcile)

	accounts := api.Group("/accounts")
	{
		accounts.POST("", accountHandler.Connect)
		accounts.GET("", accountHandler.List)
		accounts.PATCH("/:platform", accountHandler.UpdateProfile)
	}

	analytics := api.Group("/analytics")
	{
		analytics.GET("/user", analyticsHandler.User)
		analytics.GET("/system", analyticsHandler.System)
	}

	return router
}
