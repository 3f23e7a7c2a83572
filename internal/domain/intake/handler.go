package intake

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/readmit/dashboard/internal/domain/clinical"
	"github.com/readmit/dashboard/internal/platform/middleware"
	"github.com/readmit/dashboard/internal/platform/predictionapi"
)

type Handler struct {
	creator Creator
	logger  zerolog.Logger
}

func NewHandler(creator Creator, logger zerolog.Logger) *Handler {
	return &Handler{creator: creator, logger: logger}
}

// RegisterRoutes expects api to require a signed-in tab.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/intake/form", h.DescribeForm)
	api.POST("/intake/validate", h.ValidateDraft)
	api.POST("/intake", h.Submit)
}

type sectionView struct {
	ID     clinical.Section `json:"id"`
	Title  string           `json:"title"`
	Fields []clinical.Field `json:"fields"`
}

// DescribeForm returns the form layout and an empty draft.
func (h *Handler) DescribeForm(c echo.Context) error {
	sections := make([]sectionView, 0, len(clinical.Sections))
	for _, s := range clinical.Sections {
		sections = append(sections, sectionView{ID: s, Title: s.Title(), Fields: clinical.InSection(s)})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sections": sections,
		"draft":    NewDraft(),
	})
}

type draftRequest struct {
	Draft     map[string]string `json:"draft"`
	Confirmed bool              `json:"confirmed"`
}

func (h *Handler) ValidateDraft(c echo.Context) error {
	var req draftRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := Validate(Merge(req.Draft)); err != nil {
		return validationFailed(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"valid":  true,
		"fields": map[string]string{},
	})
}

type submitResponse struct {
	State   Phase                     `json:"state"`
	Patient *predictionapi.Patient    `json:"patient,omitempty"`
	Payload *predictionapi.NewPatient `json:"payload,omitempty"`
	Error   string                    `json:"error,omitempty"`
	Kind    string                    `json:"kind,omitempty"`
	Draft   Draft                     `json:"draft,omitempty"`
}

// Submit runs one pass of the form: validation, the confirmation gate and,
// once confirmed, creation.
func (h *Handler) Submit(c echo.Context) error {
	var req draftRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	form := NewForm(h.creator, h.logger)
	if err := form.Fill(req.Draft); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := form.RequestSubmit(); err != nil {
		return validationFailed(c, err)
	}

	if !req.Confirmed {
		return c.JSON(http.StatusAccepted, submitResponse{
			State:   form.Phase(),
			Payload: BuildPayload(form.Draft()),
		})
	}

	draft := form.Draft()
	middleware.MarkMutation(c, middleware.ActionPatientCreate, draft["id"])
	created, err := form.Confirm(c.Request().Context())
	if err != nil {
		status := http.StatusBadGateway
		if predictionapi.IsConflict(err) {
			status = http.StatusConflict
		}
		return c.JSON(status, submitResponse{
			State: form.Phase(),
			Error: form.SubmissionError(),
			Kind:  predictionapi.Kind(err),
			Draft: draft,
		})
	}
	return c.JSON(http.StatusCreated, submitResponse{
		State:   PhaseSucceeded,
		Patient: created,
	})
}

// validationFailed answers 422 with every field error. Anything other than a
// ValidationError is a malformed request.
func validationFailed(c echo.Context, err error) error {
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
		"valid":  false,
		"error":  "required fields are missing",
		"fields": verr.Fields,
	})
}
