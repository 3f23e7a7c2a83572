package session

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/readmit/dashboard/internal/domain/identity"
	"github.com/readmit/dashboard/internal/platform/auth"
)

const tabKey = "tab"

// loadingWait bounds how long a request waits for a fresh tab's first
// session callback.
const loadingWait = 2 * time.Second

// Middleware resolves the tab named by the authenticated token.
func (r *Registry) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := auth.SessionIDFromContext(c.Request().Context())
			tab, ok := r.Get(id)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "tab session expired")
			}
			c.Set(tabKey, tab)
			return next(c)
		}
	}
}

// TabFromContext returns the tab resolved by Registry.Middleware, or nil.
func TabFromContext(c echo.Context) *Tab {
	tab, _ := c.Get(tabKey).(*Tab)
	return tab
}

// CurrentUser returns the signed-in user of the request's tab, or nil.
func CurrentUser(c echo.Context) *identity.Session {
	if tab := TabFromContext(c); tab != nil {
		return tab.Context.User()
	}
	return nil
}

// ActorID names the signed-in user of the request's tab for audit entries.
func ActorID(c echo.Context) string {
	if u := CurrentUser(c); u != nil {
		return u.UserID
	}
	return ""
}

// Guard protects routes that need a signed-in user. An unauthenticated tab
// gets its sign-in dialog raised and a 401 telling the client to show it.
func Guard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tab := TabFromContext(c)
			if tab == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "tab session required")
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), loadingWait)
			err := tab.Context.Wait(ctx)
			cancel()
			if err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
					"error": "session is still loading",
					"state": StateLoading,
				})
			}

			if tab.Context.State() != StateAuthenticated {
				tab.Context.Show()
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{
					"error":            "sign-in required",
					"show_auth_dialog": true,
				})
			}
			return next(c)
		}
	}
}
