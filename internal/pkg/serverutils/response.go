package serverutils

import "github.com/gofiber/fiber/v2"

// SuccessResponse is the uniform REST success envelope.
func SuccessResponse(message string, data interface{}) fiber.Map {
	return fiber.Map{
		"success": true,
		"message": message,
		"data":    data,
	}
}

// ErrorResponse is the uniform REST error envelope.
func ErrorResponse(message string) fiber.Map {
	return fiber.Map{
		"success": false,
		"message": message,
	}
}

// ErrorHandler maps unhandled route errors onto the envelope. Wired into the
// fiber app config.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return ctx.Status(code).JSON(ErrorResponse(err.Error()))
}
