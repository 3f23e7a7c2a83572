package directory

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/readmit/dashboard/internal/platform/predictionapi"
	"github.com/readmit/dashboard/pkg/pagination"
)

// BackLink is where the directory's error view sends the user.
const BackLink = "/"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes expects api to require a signed-in tab.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.ListPatients)
}

type listResponse struct {
	*pagination.Response
	Filter       Filter  `json:"filter"`
	Summary      Summary `json:"summary"`
	RiskFailures int     `json:"risk_failures"`
}

func (h *Handler) ListPatients(c echo.Context) error {
	filter, err := ParseFilter(c.QueryParam("status"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	pg := pagination.FromContext(c)

	listing, err := h.svc.Load(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error": "Failed to load patients.",
			"kind":  predictionapi.Kind(err),
			"back":  BackLink,
		})
	}

	rows := filter.Apply(listing.Rows)
	resp := pagination.NewResponse(pagination.Slice(rows, pg), len(rows), pg.Limit, pg.Offset)
	resp.Links = pg.Links(c.Path(), c.QueryParams(), len(rows))
	return c.JSON(http.StatusOK, listResponse{
		Response:     resp,
		Filter:       filter,
		Summary:      Summarize(listing.Rows),
		RiskFailures: listing.RiskFailures,
	})
}
