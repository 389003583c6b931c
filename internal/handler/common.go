// Package handler contains the HTTP handlers of the API.  Handlers bind
// and validate request bodies, call into the service layer and map the
// sentinel errors of the lower layers onto HTTP status codes.
package handler

import (
	"errors"

	"github.com/labstack/echo/v4"
)

// getUserID pulls the authenticated user id the JWT middleware stored in
// the context.
func getUserID(c echo.Context) (uint64, error) {
	if v, ok := c.Get("user_id").(uint64); ok && v > 0 {
		return v, nil
	}
	return 0, errors.New("missing user_id in context")
}
