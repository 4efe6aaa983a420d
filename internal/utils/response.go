package utils

import "github.com/gofiber/fiber/v2"

// APIResponse is the envelope every report API endpoint answers with. Kind is
// set on failures that map to a domain error kind so clients can branch on it.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Kind    string      `json:"kind,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// SendSuccess answers 200 with data.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus answers with a success envelope and the given status.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if status == 0 {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(APIResponse{
		Success: true,
		Message: orDefault(message, "success"),
		Data:    data,
	})
}

// SendError answers with a failure envelope.
func SendError(c *fiber.Ctx, status int, message string) error {
	return SendFailure(c, status, "", message, nil)
}

// SendErrorWithData answers with a failure envelope carrying details the client can act on.
func SendErrorWithData(c *fiber.Ctx, status int, message string, data interface{}) error {
	return SendFailure(c, status, "", message, data)
}

// SendFailure answers with a failure envelope tagged with an error kind.
func SendFailure(c *fiber.Ctx, status int, kind, message string, data interface{}) error {
	return c.Status(status).JSON(APIResponse{
		Success: false,
		Message: orDefault(message, "error"),
		Kind:    kind,
		Data:    data,
	})
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
