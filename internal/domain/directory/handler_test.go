package directory

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/readmit/dashboard/internal/platform/predictionapi"
)

func serveList(t *testing.T, remote Remote, query string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	NewHandler(NewService(remote, 2, zerolog.Nop())).RegisterRoutes(e.Group("/api/v1"))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients"+query, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_ListPatients(t *testing.T) {
	remote := &fakeRemote{
		patients: []predictionapi.Patient{
			{ID: "P1", Status: predictionapi.StatusNotDischarged, Details: predictionapi.Details{"gender": "Male"}},
			{ID: "P2", Status: predictionapi.StatusDischarged},
			{ID: "P3", Status: predictionapi.StatusNotDischarged},
		},
		history: map[string][]predictionapi.RiskEntry{
			"P1": {entry("2025-01-01T00:00:00", "high")},
		},
		failing: map[string]error{"P3": errors.New("connection reset")},
	}

	rec := serveList(t, remote, "?status=not_discharged&limit=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Data         []Row   `json:"data"`
		Total        int     `json:"total"`
		HasMore      bool    `json:"has_more"`
		Summary      Summary `json:"summary"`
		RiskFailures int     `json:"risk_failures"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 2 || !body.HasMore || len(body.Data) != 1 {
		t.Errorf("unexpected page: total=%d has_more=%v rows=%d", body.Total, body.HasMore, len(body.Data))
	}
	if body.Data[0].ID != "P1" || body.Data[0].Risk == nil || body.Data[0].Risk.Band != "high" {
		t.Errorf("unexpected first row %+v", body.Data[0])
	}
	if body.Summary.Total != 3 || body.Summary.Male != 1 {
		t.Errorf("unexpected summary %+v", body.Summary)
	}
	if body.RiskFailures != 1 {
		t.Errorf("expected 1 risk failure, got %d", body.RiskFailures)
	}
}

func TestHandler_ListPatients_BadFilter(t *testing.T) {
	rec := serveList(t, &fakeRemote{}, "?status=archived")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_ListPatients_RemoteFailure(t *testing.T) {
	rec := serveList(t, &fakeRemote{listErr: &predictionapi.FetchError{Op: "list_patients", StatusCode: 503}}, "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["kind"] != predictionapi.KindFetch || body["back"] != BackLink {
		t.Errorf("unexpected error body %v", body)
	}
}
