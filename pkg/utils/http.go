package utils

import (
	"github.com/edgeorchestra/orchestrator/pkg/log"
	"github.com/labstack/echo/v4"
)

// HttpLogger is an echo middleware tracing every request at trace
// level, kept off the info level so it never fires in production
// without -vv.
func HttpLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		log.Tracef("%4s %s %v", c.Request().Method, c.Request().URL, c.Response().Status)
		return err
	}
}
