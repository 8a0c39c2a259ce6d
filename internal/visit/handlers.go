package visit

import (
	"context"
	"errors"
	"strconv"

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

	r.Post("/check-in", chain(func(c *fiber.Ctx) error {
		var req CheckInRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.CustomerName == "" {
			return fiber.NewError(fiber.StatusBadRequest, "customer_name required")
		}
		userID := auth.UserID(c)

		if err := limiter.AllowVisit(c.Context(), userID); err != nil {
			return fiber.NewError(apperrors.HTTPStatus(err), err.Error())
		}

		var v VisitLog
		err := apperrors.RetryOnce(func() error {
			sessionID, err := sessions.ActiveSessionID(c.Context(), userID)
			if err != nil {
				return err
			}
			v, err = svc.CheckIn(c.Context(), sessionID, userID, req)
			return err
		})
		if err != nil {
			return fiber.NewError(apperrors.HTTPStatus(err), err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(v)
	})...)

	r.Post("/check-out", chain(func(c *fiber.Ctx) error {
		var req CheckOutRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.VisitID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "visit_id required")
		}

		var v VisitLog
		err := apperrors.RetryOnce(func() error {
			var err error
			v, err = svc.CheckOut(c.Context(), auth.UserID(c), req)
			return err
		})
		if err != nil {
			return fiber.NewError(apperrors.HTTPStatus(err), err.Error())
		}
		return c.JSON(v)
	})...)

	r.Get("/active", chain(func(c *fiber.Ctx) error {
		sessionID, err := sessions.ActiveSessionID(c.Context(), auth.UserID(c))
		if errors.Is(err, apperrors.ErrNoActiveSession) {
			return c.JSON(fiber.Map{"visit": nil})
		}
		if err != nil {
			return fiber.NewError(apperrors.HTTPStatus(err), err.Error())
		}
		open, err := svc.OpenVisit(c.Context(), sessionID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"visit": open})
	})...)

	r.Get("/today", chain(func(c *fiber.Ctx) error {
		day, err := svc.TodayVisits(c.Context(), auth.UserID(c))
		if err != nil {
			return fiber.NewError(apperrors.HTTPStatus(err), err.Error())
		}
		return c.JSON(day)
	})...)

	r.Get("/history", chain(func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit"))
		visits, err := svc.History(c.Context(), auth.UserID(c), limit)
		if err != nil {
			return fiber.NewError(apperrors.HTTPStatus(err), err.Error())
		}
		return c.JSON(fiber.Map{
			"count":  len(visits),
			"visits": visits,
		})
	})...)
}
