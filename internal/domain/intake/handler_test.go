package intake

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/readmit/dashboard/internal/platform/predictionapi"
)

func post(t *testing.T, creator Creator, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	NewHandler(creator, zerolog.Nop()).RegisterRoutes(e.Group("/api/v1"))
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

const validDraft = `{"id":"P9","name":"Ann","age":"70","gender":"Female","race":"Asian","insulin":"Yes"}`

func TestHandler_ValidateDraft(t *testing.T) {
	rec := post(t, &fakeCreator{}, "/api/v1/intake/validate", `{"draft":{"id":"P9"}}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if len(body.Fields) != 4 || body.Fields["name"] != "Name is required" {
		t.Errorf("unexpected fields %v", body.Fields)
	}

	rec = post(t, &fakeCreator{}, "/api/v1/intake/validate", `{"draft":`+validDraft+`}`)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_SubmitNeedsConfirmation(t *testing.T) {
	creator := &fakeCreator{}
	rec := post(t, creator, "/api/v1/intake", `{"draft":`+validDraft+`}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var body submitResponse
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.State != PhaseConfirming || body.Payload == nil || body.Payload.Details.Insulin != "Yes" {
		t.Errorf("unexpected preview %+v", body)
	}
	if len(creator.calls) != 0 {
		t.Error("expected no create call before confirmation")
	}
}

func TestHandler_SubmitConfirmed(t *testing.T) {
	creator := &fakeCreator{}
	rec := post(t, creator, "/api/v1/intake", `{"confirmed":true,"draft":`+validDraft+`}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(creator.calls) != 1 || creator.calls[0].ID != "P9" {
		t.Errorf("unexpected create calls %+v", creator.calls)
	}
}

func TestHandler_SubmitFailureKeepsDraft(t *testing.T) {
	creator := &fakeCreator{err: &predictionapi.FetchError{Op: "create_patient", StatusCode: 500}}
	rec := post(t, creator, "/api/v1/intake", `{"confirmed":true,"draft":`+validDraft+`}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	var body submitResponse
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.State != PhaseFailed || body.Error != SubmitFailedMessage {
		t.Errorf("unexpected failure body %+v", body)
	}
	if body.Draft["id"] != "P9" || body.Draft["insulin"] != "Yes" {
		t.Errorf("expected the draft back, got %v", body.Draft)
	}
}

func TestHandler_SubmitConflict(t *testing.T) {
	creator := &fakeCreator{err: &predictionapi.FetchError{Op: "create_patient", StatusCode: 409}}
	rec := post(t, creator, "/api/v1/intake", `{"confirmed":true,"draft":`+validDraft+`}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}

func TestHandler_SubmitInvalid(t *testing.T) {
	creator := &fakeCreator{}
	rec := post(t, creator, "/api/v1/intake", `{"confirmed":true,"draft":{"name":"Ann"}}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var body struct {
		Valid  bool              `json:"valid"`
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Valid || body.Fields["id"] != "ID is required" || body.Fields["name"] != "" {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if len(creator.calls) != 0 {
		t.Error("expected no create call for an invalid draft")
	}
}

func TestValidationFailed_OtherErrorIsBadRequest(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)

	err := validationFailed(c, ErrWrongPhase)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 HTTP error, got %v", err)
	}

	if err := validationFailed(c, &ValidationError{Fields: map[string]string{"age": "Age is required"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}
