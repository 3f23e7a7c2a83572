package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/readmit/dashboard/internal/domain/identity"
	"github.com/readmit/dashboard/internal/platform/auth"
	"github.com/readmit/dashboard/internal/platform/websocket"
)

type Handler struct {
	registry *Registry
	tokens   *auth.TokenIssuer
	events   *websocket.Handler
	logger   zerolog.Logger
}

// NewHandler serves the tab endpoints. events may be nil, which leaves out
// the event stream.
func NewHandler(registry *Registry, tokens *auth.TokenIssuer, events *websocket.Handler, logger zerolog.Logger) *Handler {
	return &Handler{registry: registry, tokens: tokens, events: events, logger: logger}
}

// RegisterRoutes mounts the tab and sign-in endpoints. api must already run
// the tab token middleware with POST /session exempted.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/session", h.OpenTab)

	tab := api.Group("", h.registry.Middleware())
	tab.GET("/session", h.GetSession)
	tab.DELETE("/session", h.CloseTab)
	tab.PUT("/session/auth-dialog", h.SetAuthDialog)
	tab.POST("/auth/signin", h.SignIn)
	tab.POST("/auth/signup", h.SignUp)
	tab.GET("/auth/provider", h.ProviderURL)
	tab.POST("/auth/provider/callback", h.ProviderCallback)
	tab.POST("/auth/signout", h.SignOut)
	if h.events != nil {
		tab.GET("/session/events", h.Events)
	}
}

// Events upgrades to a websocket carrying this tab's session changes.
func (h *Handler) Events(c echo.Context) error {
	tab := TabFromContext(c)
	return h.events.Serve(c, websocket.TabTopic(tab.ID))
}

type openTabResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	TabID     string    `json:"tab_id"`
	Session   Snapshot  `json:"session"`
}

func (h *Handler) OpenTab(c echo.Context) error {
	tab := h.registry.Open()
	token, exp, err := h.tokens.Issue(tab.ID)
	if err != nil {
		h.registry.Close(tab.ID)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not open session")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), loadingWait)
	_ = tab.Context.Wait(ctx)
	cancel()

	return c.JSON(http.StatusCreated, openTabResponse{
		Token:     token,
		ExpiresAt: exp,
		TabID:     tab.ID,
		Session:   tab.Context.Snapshot(),
	})
}

func (h *Handler) GetSession(c echo.Context) error {
	return c.JSON(http.StatusOK, TabFromContext(c).Context.Snapshot())
}

func (h *Handler) CloseTab(c echo.Context) error {
	h.registry.Close(TabFromContext(c).ID)
	return c.NoContent(http.StatusNoContent)
}

type dialogRequest struct {
	Visible bool `json:"visible"`
}

func (h *Handler) SetAuthDialog(c echo.Context) error {
	var req dialogRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	var dialog AuthDialog = TabFromContext(c).Context
	if req.Visible {
		dialog.Show()
	} else {
		dialog.Hide()
	}
	return c.JSON(http.StatusOK, map[string]bool{"show_auth_dialog": dialog.Visible()})
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type authResponse struct {
	User        *identity.Session `json:"user"`
	DisplayName string            `json:"display_name"`
}

// signedIn answers once the tab's Context shows s, so the guard lets the
// next request through.
func (h *Handler) signedIn(c echo.Context, s *identity.Session) error {
	h.settle(c, func(st State, u *identity.Session) bool {
		return st == StateAuthenticated && u != nil && u.UserID == s.UserID
	})
	return c.JSON(http.StatusOK, authResponse{User: s, DisplayName: identity.ShortName(s)})
}

// settle waits for the adapter's change to reach the tab's Context.
func (h *Handler) settle(c echo.Context, cond func(State, *identity.Session) bool) {
	tab := TabFromContext(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), loadingWait)
	defer cancel()
	if err := tab.Context.WaitUntil(ctx, cond); err != nil {
		h.logger.Warn().Err(err).Str("tab_id", tab.ID).Msg("session change not observed in time")
	}
}

func (h *Handler) SignIn(c echo.Context) error {
	var req signInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	s, err := TabFromContext(c).Adapter.SignInWithPassword(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return h.authFailure(c, err)
	}
	return h.signedIn(c, s)
}

func (h *Handler) SignUp(c echo.Context) error {
	var req signUpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	s, err := TabFromContext(c).Adapter.SignUp(c.Request().Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		return h.authFailure(c, err)
	}
	return h.signedIn(c, s)
}

func (h *Handler) ProviderURL(c echo.Context) error {
	url, state, err := TabFromContext(c).Adapter.ProviderURL()
	if err != nil {
		return h.authFailure(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"url": url, "state": state})
}

func (h *Handler) ProviderCallback(c echo.Context) error {
	var res identity.ProviderResult
	if err := c.Bind(&res); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	s, err := TabFromContext(c).Adapter.SignInWithProvider(c.Request().Context(), res)
	if err != nil {
		return h.authFailure(c, err)
	}
	return h.signedIn(c, s)
}

func (h *Handler) SignOut(c echo.Context) error {
	TabFromContext(c).Adapter.SignOut()
	h.settle(c, func(st State, _ *identity.Session) bool {
		return st == StateUnauthenticated
	})
	return c.NoContent(http.StatusNoContent)
}

var authStatus = map[string]int{
	identity.CodeInvalidCredential: http.StatusUnauthorized,
	identity.CodeEmailInUse:        http.StatusConflict,
	identity.CodeWeakPassword:      http.StatusBadRequest,
	identity.CodeInvalidEmail:      http.StatusBadRequest,
	identity.CodeMissingName:       http.StatusBadRequest,
	identity.CodePopupClosed:       http.StatusBadRequest,
	identity.CodePopupBlocked:      http.StatusServiceUnavailable,
	identity.CodeInternal:          http.StatusBadGateway,
}

// authFailure reports the provider's message verbatim.
func (h *Handler) authFailure(c echo.Context, err error) error {
	var ae *identity.AuthError
	if !errors.As(err, &ae) {
		if errors.Is(err, identity.ErrClosed) {
			return echo.NewHTTPError(http.StatusUnauthorized, "tab session closed")
		}
		h.logger.Error().Err(err).Msg("authentication failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "authentication failed")
	}
	if ae.Err != nil {
		h.logger.Warn().Err(ae.Err).Str("code", ae.Code).Msg("identity provider error")
	}
	status, ok := authStatus[ae.Code]
	if !ok {
		status = http.StatusBadRequest
	}
	return c.JSON(status, map[string]string{"error": ae.Message, "code": ae.Code})
}
