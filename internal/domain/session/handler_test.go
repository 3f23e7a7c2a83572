package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/readmit/dashboard/internal/platform/auth"
)

type testServer struct {
	e        *echo.Echo
	registry *Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	issuer, err := auth.NewTokenIssuer([]byte("test-secret-key-for-unit-tests-only"), "readmission-dashboard", time.Hour)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	registry := newTestRegistry(t, time.Minute)

	e := echo.New()
	api := e.Group("/api/v1", auth.Middleware(issuer, auth.Skipper))
	NewHandler(registry, issuer, nil, zerolog.Nop()).RegisterRoutes(api)

	protected := api.Group("", registry.Middleware(), Guard())
	protected.GET("/patients", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"user": CurrentUser(c).Email})
	})
	return &testServer{e: e, registry: registry}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) openTab(t *testing.T) openTabResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/session", "", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var out openTabResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode open tab: %v", err)
	}
	return out
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) Snapshot {
	t.Helper()
	var snap Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return snap
}

// eventually polls the tab session until cond holds; adapter callbacks are
// delivered asynchronously.
func (s *testServer) eventually(t *testing.T, token string, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap := decodeSnapshot(t, s.do(t, http.MethodGet, "/api/v1/session", token, ""))
		if cond(snap) {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met, last snapshot %+v", snap)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestOpenTab(t *testing.T) {
	s := newTestServer(t)
	tab := s.openTab(t)
	if tab.Token == "" || tab.TabID == "" {
		t.Fatalf("expected token and tab id, got %+v", tab)
	}
	if tab.Session.State != StateUnauthenticated {
		t.Errorf("expected unauthenticated session, got %s", tab.Session.State)
	}
	if s.registry.Len() != 1 {
		t.Errorf("expected 1 live tab, got %d", s.registry.Len())
	}
}

func TestSession_RequiresToken(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/v1/session", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestGuard_RaisesAuthDialog(t *testing.T) {
	s := newTestServer(t)
	tab := s.openTab(t)

	rec := s.do(t, http.MethodGet, "/api/v1/patients", tab.Token, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["show_auth_dialog"] != true {
		t.Errorf("expected show_auth_dialog true, got %v", body)
	}

	snap := decodeSnapshot(t, s.do(t, http.MethodGet, "/api/v1/session", tab.Token, ""))
	if !snap.ShowAuthDialog {
		t.Error("expected the tab's dialog to be raised")
	}
}

func TestSignUpSignInSignOut(t *testing.T) {
	s := newTestServer(t)
	tab := s.openTab(t)

	rec := s.do(t, http.MethodPost, "/api/v1/auth/signup", tab.Token,
		`{"email":"jane.doe@example.com","password":"secret1","first_name":"Jane","last_name":"Doe"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("signup: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var ar authResponse
	json.Unmarshal(rec.Body.Bytes(), &ar)
	if ar.DisplayName != "Jane D" {
		t.Errorf("expected display name Jane D, got %q", ar.DisplayName)
	}

	s.eventually(t, tab.Token, func(snap Snapshot) bool { return snap.State == StateAuthenticated })

	rec = s.do(t, http.MethodGet, "/api/v1/patients", tab.Token, "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected guarded route to pass, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/v1/auth/signout", tab.Token, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("signout: expected 204, got %d", rec.Code)
	}
	s.eventually(t, tab.Token, func(snap Snapshot) bool { return snap.State == StateUnauthenticated })

	rec = s.do(t, http.MethodPost, "/api/v1/auth/signin", tab.Token,
		`{"email":"jane.doe@example.com","password":"wrong-pass"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad signin: expected 401, got %d", rec.Code)
	}
	var failure map[string]string
	json.Unmarshal(rec.Body.Bytes(), &failure)
	if failure["code"] != "auth/invalid-credential" || failure["error"] == "" {
		t.Errorf("unexpected failure body %v", failure)
	}
}

func TestGuard_FollowsSignInWithoutDelay(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 50; i++ {
		tab := s.openTab(t)
		body := fmt.Sprintf(`{"email":"nurse%d@example.com","password":"secret1","first_name":"Kim","last_name":"Park"}`, i)
		if rec := s.do(t, http.MethodPost, "/api/v1/auth/signup", tab.Token, body); rec.Code != http.StatusOK {
			t.Fatalf("signup %d: expected 200, got %d", i, rec.Code)
		}
		if rec := s.do(t, http.MethodGet, "/api/v1/patients", tab.Token, ""); rec.Code != http.StatusOK {
			t.Fatalf("cycle %d: guarded route right after signup returned %d", i, rec.Code)
		}

		if rec := s.do(t, http.MethodPost, "/api/v1/auth/signout", tab.Token, ""); rec.Code != http.StatusNoContent {
			t.Fatalf("signout %d: expected 204, got %d", i, rec.Code)
		}
		if rec := s.do(t, http.MethodGet, "/api/v1/patients", tab.Token, ""); rec.Code != http.StatusUnauthorized {
			t.Fatalf("cycle %d: guarded route right after signout returned %d", i, rec.Code)
		}

		body = fmt.Sprintf(`{"email":"nurse%d@example.com","password":"secret1"}`, i)
		if rec := s.do(t, http.MethodPost, "/api/v1/auth/signin", tab.Token, body); rec.Code != http.StatusOK {
			t.Fatalf("signin %d: expected 200, got %d", i, rec.Code)
		}
		if rec := s.do(t, http.MethodGet, "/api/v1/patients", tab.Token, ""); rec.Code != http.StatusOK {
			t.Fatalf("cycle %d: guarded route right after signin returned %d", i, rec.Code)
		}
	}
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	s := newTestServer(t)
	a := s.openTab(t)
	b := s.openTab(t)

	body := `{"email":"dup@example.com","password":"secret1","first_name":"A","last_name":"B"}`
	if rec := s.do(t, http.MethodPost, "/api/v1/auth/signup", a.Token, body); rec.Code != http.StatusOK {
		t.Fatalf("first signup: expected 200, got %d", rec.Code)
	}
	rec := s.do(t, http.MethodPost, "/api/v1/auth/signup", b.Token, body)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSetAuthDialog(t *testing.T) {
	s := newTestServer(t)
	tab := s.openTab(t)

	rec := s.do(t, http.MethodPut, "/api/v1/session/auth-dialog", tab.Token, `{"visible":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !decodeSnapshot(t, s.do(t, http.MethodGet, "/api/v1/session", tab.Token, "")).ShowAuthDialog {
		t.Error("expected dialog visible")
	}
	s.do(t, http.MethodPut, "/api/v1/session/auth-dialog", tab.Token, `{"visible":false}`)
	if decodeSnapshot(t, s.do(t, http.MethodGet, "/api/v1/session", tab.Token, "")).ShowAuthDialog {
		t.Error("expected dialog hidden")
	}
}

func TestProviderNotConfigured(t *testing.T) {
	s := newTestServer(t)
	tab := s.openTab(t)
	rec := s.do(t, http.MethodGet, "/api/v1/auth/provider", tab.Token, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCloseTab(t *testing.T) {
	s := newTestServer(t)
	tab := s.openTab(t)
	if rec := s.do(t, http.MethodDelete, "/api/v1/session", tab.Token, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/v1/session", tab.Token, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 after close, got %d", rec.Code)
	}
}
