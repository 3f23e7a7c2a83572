package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// publicRoutes bypass tab authentication: infrastructure endpoints and the
// call that opens a new tab session.
var publicRoutes = map[string]bool{
	http.MethodGet + " /health":          true,
	http.MethodGet + " /health/db":       true,
	http.MethodGet + " /metrics":         true,
	http.MethodPost + " /api/v1/session": true,
}

// Skipper reports whether the matched route is public.
func Skipper(c echo.Context) bool {
	return IsPublicRoute(c.Request().Method, c.Path())
}

func IsPublicRoute(method, path string) bool {
	return publicRoutes[method+" "+path]
}
