package api

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

const requestIDKey = "requestid"

// requestID returns the ID assigned by the requestid middleware.
func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals(requestIDKey).(string)
	return id
}

// accessLog logs request method, path, status, and duration. Errors are
// rendered here so the logged status matches the response.
func (s *Server) accessLog(c *fiber.Ctx) error {
	start := time.Now()

	if err := c.Next(); err != nil {
		if herr := c.App().ErrorHandler(c, err); herr != nil {
			return herr
		}
	}

	s.logger.Info("request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", requestID(c),
	)
	return nil
}

func (s *Server) logPanic(c *fiber.Ctx, e any) {
	s.logger.Error("panic recovered",
		"error", fmt.Sprint(e),
		"path", c.Path(),
		"request_id", requestID(c),
	)
}
