package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PowerLink/internal/app/model"
)

func statusFor(err error) int {
	switch model.KindOf(err) {
	case model.KindValidation:
		return fiber.StatusUnprocessableEntity
	case model.KindNotFound:
		return fiber.StatusNotFound
	case model.KindNetwork:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}
