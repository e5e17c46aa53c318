package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chaisthra/vibetrack/internal/api/http/handler"
	"github.com/chaisthra/vibetrack/internal/api/http/middleware"
	"github.com/chaisthra/vibetrack/internal/logger"
	"github.com/chaisthra/vibetrack/internal/metrics"
)

// TokenService is everything the router needs from the token layer.
type TokenService interface {
	handler.TokenService
	middleware.TokenVerifier
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping() error
}

// Services are the application services behind the HTTP routes.
type Services struct {
	Credentials handler.CredentialService
	Tokens      TokenService
	Logbook     handler.ActivityLogger
	Partitions  handler.PartitionService
	Storage     Pinger
}

// Guards are the admission controls applied to routes.
type Guards struct {
	// Public limits unauthenticated routes per client IP.
	Public middleware.Limiter
	// User limits authenticated routes per user.
	User        middleware.Limiter
	Concurrency middleware.Concurrency
}

// Router builds the gin engine for the vibetrack API.
type Router struct {
	services      Services
	guards        Guards
	maxAudioBytes int64
	logger        *logger.Logger
}

// New creates new Router instance.
func New(services Services, guards Guards, maxAudioBytes int64, logger *logger.Logger) *Router {
	return &Router{
		services:      services,
		guards:        guards,
		maxAudioBytes: maxAudioBytes,
		logger:        logger,
	}
}

// Register wires middleware and routes into a new engine.
func (r *Router) Register() *gin.Engine {
	logging := middleware.NewLogging(r.logger)
	authenticate := middleware.NewAuthenticate(r.services.Tokens, r.logger)

	engine := gin.New()
	engine.MaxMultipartMemory = 8 << 20
	engine.Use(gin.Recovery(), logging.Handle)
	engine.NoRoute(func(c *gin.Context) {
		middleware.Abort(c, http.StatusNotFound, "NotFound", "route not found")
	})

	engine.GET("/health", r.health)
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.registerAuthRoutes(engine)

	authed := engine.Group("/",
		authenticate.Handle,
		middleware.RateLimitByUser(r.guards.User),
	)
	mutating := authed.Group("/", middleware.LimitConcurrency(r.guards.Concurrency))

	r.registerAccountRoutes(authed, mutating)
	r.registerActivityRoutes(authed, mutating)
	r.registerInsightRoutes(authed, mutating)

	return engine
}

func (r *Router) registerAuthRoutes(engine *gin.Engine) {
	auth := handler.NewAuth(r.services.Credentials, r.services.Tokens, r.logger)

	public := engine.Group("/", middleware.RateLimitByClientIP(r.guards.Public))
	public.POST("/register", auth.Register)
	public.POST("/login", auth.Login)
	public.POST("/logout", auth.Logout)
}

func (r *Router) registerAccountRoutes(read, write *gin.RouterGroup) {
	account := handler.NewAccount(r.services.Credentials, r.logger)

	read.GET("/users/me", account.Get)
	write.PATCH("/users/me", account.Update)
	write.PUT("/users/me/password", account.ChangePassword)
}

func (r *Router) registerActivityRoutes(read, write *gin.RouterGroup) {
	activity := handler.NewActivity(r.services.Logbook, r.services.Partitions, r.maxAudioBytes, r.logger)

	read.GET("/activities", activity.List)
	write.POST("/activities", activity.Create)
	write.POST("/activities/voice", activity.CreateVoice)
	write.POST("/activities/query", activity.Query)
	write.DELETE("/activities/:id", activity.Delete)
}

func (r *Router) registerInsightRoutes(read, write *gin.RouterGroup) {
	insights := handler.NewInsights(r.services.Partitions, r.logger)

	read.GET("/categories", insights.Categories)
	read.GET("/categories/summary", insights.Summary)
	read.GET("/conversations", insights.Conversations)
	write.POST("/conversations", insights.RecordConversation)
}

func (r *Router) health(c *gin.Context) {
	if r.services.Storage != nil {
		if err := r.services.Storage.Ping(); err != nil {
			r.logger.Error("Health: storage unavailable", "error", err.Error())
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
