package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/stackit/backend/internal/auth"
	"github.com/emilythestrangee/stackit/backend/internal/config"
	"github.com/emilythestrangee/stackit/backend/internal/handlers"
	"github.com/emilythestrangee/stackit/backend/internal/middleware"
	"github.com/emilythestrangee/stackit/backend/internal/notify"
	"github.com/emilythestrangee/stackit/backend/internal/qa"
	"github.com/emilythestrangee/stackit/backend/internal/store"
)

// HealthChecker reports the state of a dependency, as database.Service does.
type HealthChecker interface {
	Health() map[string]string
}

// Deps are the collaborators the server is built on.
type Deps struct {
	Store      store.Store
	Health     HealthChecker     // optional
	Dispatcher notify.Dispatcher // optional; defaults to notify.Nop
	Logger     *slog.Logger
}

type Server struct {
	cfg     config.Config
	health  HealthChecker
	tokens  *auth.Tokens
	outbox  *qa.Outbox
	handler *handlers.Handler
	logger  *slog.Logger
}

// New wires the services over deps. Call Start before serving so queued
// notifications get written, and Close after.
func New(cfg config.Config, deps Deps) *Server {
	logger := qa.ResolveLogger(deps.Logger)
	retry := qa.DefaultRetry(cfg.QA.ReadRetries)

	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	accounts := auth.NewAccounts(deps.Store, tokens, cfg.Auth.AdminEmails, logger)

	votes := qa.NewVoteLedger(deps.Store, retry, logger)
	emitter := qa.NewNotificationEmitter(deps.Store, deps.Dispatcher, retry, logger)
	outbox := qa.NewOutbox(emitter, cfg.QA.NotifyQueueSize, logger)
	board := qa.NewBoard(deps.Store, votes, outbox, retry, logger)
	accept := qa.NewAcceptanceController(deps.Store, logger)

	return &Server{
		cfg:    cfg,
		health: deps.Health,
		tokens: tokens,
		outbox: outbox,
		handler: handlers.NewHandler(handlers.Services{
			Accounts:      accounts,
			Board:         board,
			Votes:         votes,
			Acceptance:    accept,
			Notifications: emitter,
		}),
		logger: logger,
	}
}

// Start launches the background notification worker.
func (s *Server) Start(ctx context.Context) {
	s.outbox.Start(ctx)
}

// Close waits for queued notifications to be written.
func (s *Server) Close() {
	s.outbox.Close()
}

// HTTPServer returns the configured http.Server for the router.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         "0.0.0.0:" + s.cfg.Port,
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(s.logger))

	// CORS configuration
	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: !containsWildcard(origins),
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", s.healthHandler)

	h := s.handler
	api := r.Group("/api")
	api.Use(middleware.Authenticate(s.tokens))
	{
		// Auth routes (public)
		api.POST("/register", h.Auth.Register)
		api.POST("/login", h.Auth.Login)

		// Public reads; a signed-in caller also sees their own votes
		api.GET("/questions", h.Question.GetQuestions)
		api.GET("/questions/:id", h.Question.GetQuestion)
		api.GET("/answers/:id/comments", h.Comment.GetComments)
		api.GET("/users/:id", h.User.GetUserProfile)

		// Protected routes (authentication required)
		protected := api.Group("")
		protected.Use(middleware.RequireAuth())
		{
			protected.GET("/me", h.Auth.GetMe)

			protected.POST("/questions", h.Question.CreateQuestion)
			protected.DELETE("/questions/:id", h.Question.DeleteQuestion)
			protected.POST("/questions/:id/accept", h.Question.AcceptAnswer)

			protected.POST("/questions/:id/answers", h.Answer.CreateAnswer)
			protected.DELETE("/answers/:id", h.Answer.DeleteAnswer)
			protected.POST("/answers/:id/vote", h.Answer.VoteAnswer)

			protected.POST("/answers/:id/comments", h.Comment.CreateComment)
			protected.DELETE("/comments/:id", h.Comment.DeleteComment)

			protected.GET("/notifications", h.Notification.GetNotifications)
			protected.POST("/notifications/:id/read", h.Notification.MarkRead)
		}
	}

	return r
}

func (s *Server) healthHandler(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	stats := s.health.Health()
	if stats["status"] != "up" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "database": stats})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": stats})
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
