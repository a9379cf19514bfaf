package routes

import (
	"net/http"
	"time"

	"devconnector/handlers"
	"devconnector/metrics"
	"devconnector/middleware"
	"devconnector/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Options struct {
	Handler *handlers.Handler
	Gate    *middleware.AuthGate

	// Limiter applies to every request, AuthLimiter only to register and login.
	Limiter     *middleware.IPRateLimiter
	AuthLimiter *middleware.IPRateLimiter

	Logger         zerolog.Logger
	Metrics        metrics.Recorder
	MetricsHandler http.Handler
	WebSocket      http.Handler

	AllowedOrigins []string
}

func SetupRouter(o Options) *gin.Engine {
	router := gin.New()
	// The access log wraps recovery so panics are logged and counted as 500s.
	router.Use(middleware.RequestLogger(o.Logger, o.Metrics))
	router.Use(middleware.Recovery())

	origins := o.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With", "x-auth-token"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if o.Limiter != nil {
		router.Use(o.Limiter.Middleware())
	}

	h := o.Handler
	router.GET("/health", h.Health)
	if o.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(o.MetricsHandler))
	}
	if o.WebSocket != nil {
		router.GET("/ws", gin.WrapH(o.WebSocket))
	}

	api := router.Group("/api")
	api.GET("/health", h.Ready)

	credentials := api.Group("")
	if o.AuthLimiter != nil {
		credentials.Use(o.AuthLimiter.Middleware())
	}
	credentials.POST("/users", h.Register)
	credentials.POST("/auth", h.Login)

	// Public reads
	api.GET("/profile", h.ListProfiles)
	api.GET("/profile/user/:user_id", h.ProfileByUser)
	api.GET("/profile/github/:username", h.GitHubRepos)
	api.GET("/posts", h.ListPosts)
	api.GET("/posts/:id", h.GetPost)
	api.GET("/notifications/vapid-public-key", h.VAPIDPublicKey)

	protected := api.Group("")
	protected.Use(o.Gate.Middleware())

	protected.GET("/auth", h.CurrentUser)

	// Profile
	protected.GET("/profile/me", h.MyProfile)
	protected.POST("/profile", h.UpsertProfile)
	protected.DELETE("/profile", h.DeleteAccount)
	protected.PUT("/profile/experience", h.AddExperience)
	protected.DELETE("/profile/experience/:exp_id", h.DeleteExperience)
	protected.PUT("/profile/education", h.AddEducation)
	protected.DELETE("/profile/education/:edu_id", h.DeleteEducation)

	// Posts
	protected.GET("/posts/me", h.MyPosts)
	protected.POST("/posts/me", h.CreatePost)
	protected.DELETE("/posts/:id", h.DeletePost)
	protected.PUT("/posts/like/:id", h.LikePost)
	protected.PUT("/posts/unlike/:id", h.UnlikePost)
	protected.POST("/posts/comment/:id", h.AddComment)
	protected.DELETE("/posts/comment/:post_id/:comment_id", h.DeleteComment)

	// Push subscriptions
	protected.POST("/notifications/subscribe", h.SubscribePush)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.NewNotFoundError("Endpoint"))
	})

	return router
}
