package location

import (
	"context"

	"backend-fieldtrack/internal/auth"
	"backend-fieldtrack/internal/ratelimit"
	"backend-fieldtrack/internal/shared/apperrors"

	"github.com/gofiber/fiber/v2"
)

// SessionSource resolves the caller's current ACTIVE session.
type SessionSource interface {
	ActiveSessionID(ctx context.Context, userID string) (string, error)
}

func RegisterRoutes(r fiber.Router, svc *Service, sessions SessionSource, limiter *ratelimit.Limiter, middleware ...fiber.Handler) {
	chain := func(h fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, middleware...), h)
	}

	r.Post("/update", chain(func(c *fiber.Ctx) error {
		var req UpdateRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		userID := auth.UserID(c)

		if err := limiter.AllowGPS(c.Context(), userID); err != nil {
			return fiber.NewError(apperrors.HTTPStatus(err), err.Error())
		}

		err := apperrors.RetryOnce(func() error {
			sessionID, err := sessions.ActiveSessionID(c.Context(), userID)
			if err != nil {
				return err
			}
			_, err = svc.Update(c.Context(), userID, sessionID, req)
			return err
		})
		if err != nil {
			return fiber.NewError(apperrors.HTTPStatus(err), err.Error())
		}
		return c.JSON(fiber.Map{"status": "location_updated"})
	})...)

	r.Post("/stop", chain(func(c *fiber.Ctx) error {
		err := apperrors.RetryOnce(func() error {
			return svc.Stop(c.Context(), auth.UserID(c))
		})
		if err != nil {
			return fiber.NewError(apperrors.HTTPStatus(err), err.Error())
		}
		return c.JSON(fiber.Map{"status": "tracking_stopped"})
	})...)
}

// RegisterAdminRoutes exposes the live map listing to admin callers.
func RegisterAdminRoutes(r fiber.Router, svc *Service, middleware ...fiber.Handler) {
	chain := func(h fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, middleware...), h)
	}

	r.Get("/live-locations", chain(func(c *fiber.Ctx) error {
		markers, err := svc.ListActive(c.Context(), c.Query("role"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(fiber.Map{
			"active_count": len(markers),
			"locations":    markers,
		})
	})...)
}
