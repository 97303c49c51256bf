package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/memories-sh/memories-go/pkg/memories"
)

// ErrorResponse is the failure envelope. Error is either an ErrorBody or an
// upstream error object forwarded verbatim.
type ErrorResponse struct {
	OK    bool `json:"ok"`
	Error any  `json:"error"`
}

// writeError renders any error returned by the memories package.
func writeError(c *fiber.Ctx, err error) error {
	e := memories.AsError(err)
	return c.Status(e.Status).JSON(ErrorResponse{OK: false, Error: e.Payload()})
}

// handleError is the fiber ErrorHandler: routing errors such as 404 and 405
// become HTTP_<status> errors, anything else is a 500.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		return c.Status(ferr.Code).JSON(ErrorResponse{
			OK: false,
			Error: memories.ErrorBody{
				Type:    memories.TypeHTTP,
				Code:    "HTTP_" + strconv.Itoa(ferr.Code),
				Message: ferr.Message,
			},
		})
	}

	s.logger.Error("unhandled error",
		"path", c.Path(),
		"request_id", requestID(c),
		"error", err,
	)

	return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
		OK: false,
		Error: memories.ErrorBody{
			Type:    memories.TypeHTTP,
			Code:    memories.CodeInternal,
			Message: "Internal server error",
		},
	})
}
