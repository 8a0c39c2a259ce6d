package tracking

import (
	"backend-fieldtrack/internal/auth"
	"backend-fieldtrack/internal/route"
	"backend-fieldtrack/internal/shared/apperrors"

	"github.com/gofiber/fiber/v2"
)

type startRequest struct {
	AttendanceID *string `json:"attendance_id"`
}

type stopRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func RegisterRoutes(r fiber.Router, svc *Service, visits VisitLookup, middleware ...fiber.Handler) {
	chain := func(h fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, middleware...), h)
	}

	r.Post("/start", chain(func(c *fiber.Ctx) error {
		var req startRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}

		var sess Session
		err := apperrors.RetryOnce(func() error {
			var err error
			sess, err = svc.Start(c.Context(), auth.UserID(c), string(auth.RoleOf(c)), req.AttendanceID)
			return err
		})
		if err != nil {
			return fiber.NewError(apperrors.HTTPStatus(err), err.Error())
		}
		return c.JSON(sess)
	})...)

	r.Post("/stop", chain(func(c *fiber.Ctx) error {
		// Final coordinates are optional; the service drops invalid ones.
		var req stopRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}

		var summary route.Summary
		err := apperrors.RetryOnce(func() error {
			var err error
			summary, err = svc.Stop(c.Context(), auth.UserID(c), req.Latitude, req.Longitude)
			return err
		})
		if err != nil {
			return fiber.NewError(apperrors.HTTPStatus(err), err.Error())
		}
		return c.JSON(summary)
	})...)

	r.Get("/status", chain(func(c *fiber.Ctx) error {
		sess, err := svc.ActiveSession(c.Context(), auth.UserID(c))
		if err != nil {
			if apperrors.IsDomain(err) {
				return c.JSON(fiber.Map{"status": "INACTIVE"})
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		var open *OpenVisit
		if visits != nil {
			open, err = visits.OpenVisit(c.Context(), sess.ID)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, err.Error())
			}
		}
		return c.JSON(fiber.Map{
			"status":     "ACTIVE",
			"session":    sess,
			"open_visit": open,
		})
	})...)
}
