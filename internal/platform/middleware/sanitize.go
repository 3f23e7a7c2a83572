package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const maxHeaderValueSize = 8192

// Sanitize rejects requests whose path, query or headers could not be passed
// on safely. Patient IDs from the path become path segments of prediction API
// calls, and url.PathEscape leaves ".." intact, so traversal is refused here.
func Sanitize(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			rawPath := req.URL.EscapedPath()

			reject := func(reason string) error {
				logger.Warn().
					Str("path", path).
					Str("remote_ip", c.RealIP()).
					Str("reason", reason).
					Msg("request rejected")
				return c.JSON(http.StatusBadRequest, map[string]string{"error": reason})
			}

			if containsPathTraversal(path) || containsPathTraversal(rawPath) {
				return reject("path traversal detected")
			}
			if containsNullByte(path) || containsNullByte(rawPath) {
				return reject("null byte in path")
			}

			for name, values := range req.Header {
				for _, v := range values {
					if len(v) > maxHeaderValueSize {
						return reject("header value too large: " + name)
					}
					if strings.ContainsAny(v, "\r\n") {
						return reject("header injection detected: " + name)
					}
				}
			}

			for key, values := range req.URL.Query() {
				if containsNullByte(key) {
					return reject("null byte in query parameter")
				}
				for _, v := range values {
					if containsNullByte(v) {
						return reject("null byte in query parameter")
					}
				}
			}

			return next(c)
		}
	}
}

// containsPathTraversal checks raw and percent-encoded dot segments.
func containsPathTraversal(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(s, "..") ||
		strings.Contains(lower, "%2e%2e") ||
		strings.Contains(lower, "%252e")
}

func containsNullByte(s string) bool {
	return strings.ContainsRune(s, '\x00') || strings.Contains(strings.ToLower(s), "%00")
}
