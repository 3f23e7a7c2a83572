package discharge

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/readmit/dashboard/internal/platform/middleware"
	"github.com/readmit/dashboard/internal/platform/predictionapi"
)

type Handler struct {
	remote Remote
	logger zerolog.Logger
}

func NewHandler(remote Remote, logger zerolog.Logger) *Handler {
	return &Handler{remote: remote, logger: logger}
}

// RegisterRoutes expects api to require a signed-in tab.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients/:id", h.GetPatient)
	api.POST("/patients/:id/discharge", h.Discharge)
}

// loadFailed renders the full-view error state.
func loadFailed(c echo.Context, v View, err error) error {
	status := http.StatusBadGateway
	if predictionapi.IsNotFound(err) {
		status = http.StatusNotFound
	}
	return c.JSON(status, v)
}

func (h *Handler) GetPatient(c echo.Context) error {
	wf := NewWorkflow(h.remote, c.Param("id"), h.logger)
	if err := wf.Load(c.Request().Context()); err != nil {
		return loadFailed(c, wf.View(), err)
	}
	if tab := c.QueryParam("tab"); tab != "" {
		if err := wf.SelectTab(Tab(tab)); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusOK, wf.View())
}

type dischargeRequest struct {
	Confirmed bool `json:"confirmed"`
}

// Discharge marks the patient discharged. Without confirmation it answers
// 428 and the view in its confirming state.
func (h *Handler) Discharge(c echo.Context) error {
	var req dischargeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	wf := NewWorkflow(h.remote, c.Param("id"), h.logger)
	if err := wf.LoadDetail(ctx); err != nil {
		return loadFailed(c, wf.View(), err)
	}

	if err := wf.RequestDischarge(); err != nil {
		if errors.Is(err, ErrAlreadyDischarged) {
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !req.Confirmed {
		return c.JSON(http.StatusPreconditionRequired, wf.View())
	}

	middleware.MarkMutation(c, middleware.ActionPatientDischarge, c.Param("id"))
	if err := wf.ConfirmDischarge(ctx); err != nil {
		return c.JSON(http.StatusBadGateway, wf.View())
	}
	return c.JSON(http.StatusOK, wf.View())
}
