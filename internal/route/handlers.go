package route

import (
	"time"

	"backend-fieldtrack/internal/shared/apperrors"

	"github.com/gofiber/fiber/v2"
)

// RegisterAdminRoutes mounts the admin route reads. Role gating is supplied
// by the caller as middleware.
func RegisterAdminRoutes(r fiber.Router, svc *Service, middleware ...fiber.Handler) {
	chain := func(h fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, middleware...), h)
	}

	r.Get("/salesmen/:id/route", chain(func(c *fiber.Ctx) error {
		date := c.Query("date")
		if date != "" {
			if _, err := time.Parse("2006-01-02", date); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
			}
		}
		detail, err := svc.ForUserDate(c.Context(), c.Params("id"), date)
		if err != nil {
			return fiber.NewError(apperrors.HTTPStatus(err), err.Error())
		}
		return c.JSON(detail)
	})...)

	r.Get("/routes/today", chain(func(c *fiber.Ctx) error {
		routes, err := svc.AllToday(c.Context())
		if err != nil {
			return fiber.NewError(apperrors.HTTPStatus(err), err.Error())
		}
		return c.JSON(fiber.Map{
			"date":   svc.today(),
			"count":  len(routes),
			"routes": routes,
		})
	})...)
}
