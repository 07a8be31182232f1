package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
	"go.uber.org/zap"

	"judge_zone/internal/api/handler"
	"judge_zone/internal/api/middleware"
	"judge_zone/internal/app/service"
	"judge_zone/internal/platform/logger"
	"judge_zone/internal/platform/metrics"
	"judge_zone/internal/platform/notify"
)

// Deps is everything the HTTP layer needs, built once in main.
type Deps struct {
	JWTAuth        *jwtauth.JWTAuth
	Auth           *service.AuthService
	Users          *service.UserService
	Problems       *service.ProblemService
	Contests       *service.ContestService
	Submissions    *service.SubmissionService
	Judge          *service.JudgeService
	Subscriber     notify.Subscriber
	Metrics        *metrics.Metrics
	Log            *zap.Logger
	AllowedOrigins []string
	DataDir        string
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(logger.RequestLogger(d.Log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	// Token from "Authorization: Bearer T", else ?jwt= for EventSource clients.
	r.Use(jwtauth.Verify(d.JWTAuth, jwtauth.TokenFromHeader, jwtauth.TokenFromQuery))
	r.Use(middleware.Identify)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	r.Route("/api/v1", func(v1 chi.Router) {
		// Event streams stay open longer than any request timeout.
		handler.NewEventsHandler(d.Submissions, d.Subscriber, d.Log).RegisterRoutes(v1)

		v1.Group(func(api chi.Router) {
			api.Use(chiMiddleware.Timeout(60 * time.Second))

			handler.NewAuthHandler(d.Auth).RegisterRoutes(api)
			handler.NewUserHandler(d.Users).RegisterRoutes(api)
			handler.NewProblemHandler(d.Problems, d.Submissions).RegisterRoutes(api)
			handler.NewContestHandler(d.Contests, d.Submissions).RegisterRoutes(api)
			handler.NewSubmissionHandler(d.Submissions, d.Judge).RegisterRoutes(api)
			handler.NewAdminHandler(d.Users, d.Submissions, d.DataDir).RegisterRoutes(api)
		})
	})

	return r
}
