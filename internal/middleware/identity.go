package middleware

import "github.com/labstack/echo/v4"

// Actor returns the authenticated subject, or "" for anonymous callers.
// Handlers record it as a reservation's created_by.
func Actor(c echo.Context) string {
	if s, ok := c.Get(ctxUserID).(string); ok {
		return s
	}
	return ""
}

// actorOr returns Actor(c) or def when the caller is anonymous.
func actorOr(c echo.Context, def string) string {
	if s := Actor(c); s != "" {
		return s
	}
	return def
}
