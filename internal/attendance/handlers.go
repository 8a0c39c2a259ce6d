package attendance

import (
	"backend-fieldtrack/internal/auth"
	"backend-fieldtrack/internal/shared/apperrors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, middleware ...fiber.Handler) {
	chain := func(h fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, middleware...), h)
	}

	r.Post("/check-in", chain(func(c *fiber.Ctx) error {
		att, sess, err := svc.CheckIn(c.Context(), auth.UserID(c), auth.RoleOf(c))
		if err != nil {
			return fiber.NewError(apperrors.HTTPStatus(err), err.Error())
		}
		return c.JSON(fiber.Map{
			"attendance": att,
			"session":    sess,
		})
	})...)

	r.Post("/check-out", chain(func(c *fiber.Ctx) error {
		att, err := svc.CheckOut(c.Context(), auth.UserID(c))
		if err != nil {
			return fiber.NewError(apperrors.HTTPStatus(err), err.Error())
		}
		return c.JSON(att)
	})...)

	r.Get("/today", chain(func(c *fiber.Ctx) error {
		att, err := svc.Today(c.Context(), auth.UserID(c))
		if err != nil {
			return fiber.NewError(apperrors.HTTPStatus(err), err.Error())
		}
		return c.JSON(att)
	})...)
}
