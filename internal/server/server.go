package server

import (
	"time"

	"backend-fieldtrack/internal/attendance"
	"backend-fieldtrack/internal/auth"
	"backend-fieldtrack/internal/config"
	"backend-fieldtrack/internal/location"
	"backend-fieldtrack/internal/ratelimit"
	"backend-fieldtrack/internal/route"
	"backend-fieldtrack/internal/stream"
	"backend-fieldtrack/internal/tracking"
	"backend-fieldtrack/internal/visit"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Stream   *stream.Hub
	Tracking *tracking.Service
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(throttle(rate.NewLimiter(rate.Limit(200), 400)))

	tz, err := time.LoadLocation(cfg.TrackingTimezone)
	if err != nil {
		log.Warn().Str("timezone", cfg.TrackingTimezone).Msg("unknown timezone, using local")
		tz = time.Local
	}

	s := &Server{
		App:      app,
		Cfg:      cfg,
		DB:       db,
		Redis:    redisClient,
		Stream:   stream.NewHub(redisClient),
		Tracking: tracking.NewService(db, tz),
	}

	registerRoutes(s, tz)
	return s
}

// throttle sheds load across all callers before any handler runs; per-user
// tracking limits are enforced separately by the admission guard.
func throttle(l *rate.Limiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !l.Allow() {
			return fiber.NewError(fiber.StatusTooManyRequests, "server busy")
		}
		return c.Next()
	}
}

func registerRoutes(s *Server, tz *time.Location) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwt := auth.JWTMiddleware(s.Cfg.JWTSecret)
	fieldOnly := auth.RequireRole(auth.FieldRoles...)
	adminOnly := auth.RequireRole(auth.AdminRoles...)

	limiter := ratelimit.New(s.Redis)
	locationSvc := location.NewService(s.DB, s.Stream)
	visitSvc := visit.NewService(s.DB, tz)
	routeSvc := route.NewService(s.DB, tz)
	attendanceSvc := attendance.NewService(s.DB, tz, s.Tracking)

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.DB))

	tracking.RegisterRoutes(s.App.Group("/tracking/session"), s.Tracking, visitSvc, jwt, fieldOnly)
	location.RegisterRoutes(s.App.Group("/tracking/gps"), locationSvc, s.Tracking, limiter, jwt, fieldOnly)
	visit.RegisterRoutes(s.App.Group("/tracking/visits"), visitSvc, s.Tracking, limiter, jwt, fieldOnly)

	admin := s.App.Group("/admin")
	location.RegisterAdminRoutes(admin, locationSvc, jwt, adminOnly)
	route.RegisterAdminRoutes(admin, routeSvc, jwt, adminOnly)

	attendance.RegisterRoutes(s.App.Group("/attendance"), attendanceSvc, jwt)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, jwt, adminOnly)
}
