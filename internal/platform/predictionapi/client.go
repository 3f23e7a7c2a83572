// Package predictionapi is the HTTP client for the remote readmission
// prediction service: patient records, status updates, predictions and risk
// history for a single customer.
package predictionapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/readmit/dashboard/internal/platform/telemetry"
)

const (
	// ProxyWarningHeader suppresses the tunnelling proxy's HTML interstitial.
	ProxyWarningHeader = "ngrok-skip-browser-warning"

	maxBodyBytes  = 8 << 20
	maxErrorBytes = 512
)

type Config struct {
	BaseURL          string
	CustomerID       string
	Timeout          time.Duration
	SkipProxyWarning bool
	HTTPClient       *http.Client
}

// Client is safe for concurrent use.
type Client struct {
	base        string
	customer    string
	timeout     time.Duration
	skipWarning bool
	http        *http.Client
}

func NewClient(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		base:        strings.TrimRight(cfg.BaseURL, "/"),
		customer:    cfg.CustomerID,
		timeout:     cfg.Timeout,
		skipWarning: cfg.SkipProxyWarning,
		http:        hc,
	}
}

func (c *Client) CustomerID() string { return c.customer }

func (c *Client) patientsPath() string {
	return "/customers/" + url.PathEscape(c.customer) + "/patients"
}

func (c *Client) patientPath(id string) string {
	return c.patientsPath() + "/" + url.PathEscape(id)
}

// ListPatients returns every patient for the configured customer in server order.
func (c *Client) ListPatients(ctx context.Context) ([]Patient, error) {
	var out []Patient
	if err := c.do(ctx, "list_patients", http.MethodGet, c.patientsPath(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetPatient(ctx context.Context, id string) (*Patient, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("get patient: empty id: %w", ErrInvalidArgument)
	}
	var out Patient
	if err := c.do(ctx, "get_patient", http.MethodGet, c.patientPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePatient posts a new record. The API answers 409 when the id is taken.
func (c *Client) CreatePatient(ctx context.Context, p *NewPatient) (*Patient, error) {
	if p == nil || strings.TrimSpace(p.ID) == "" {
		return nil, fmt.Errorf("create patient: empty id: %w", ErrInvalidArgument)
	}
	var out Patient
	if err := c.do(ctx, "create_patient", http.MethodPost, c.patientsPath(), p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStatus sets the discharge status. Only the two known statuses are sent.
func (c *Client) UpdateStatus(ctx context.Context, id string, status Status) (*StatusUpdate, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("update status: empty id: %w", ErrInvalidArgument)
	}
	if !status.Valid() {
		return nil, fmt.Errorf("update status: unknown status %q: %w", status, ErrInvalidArgument)
	}
	body := map[string]Status{"status": status}
	var out StatusUpdate
	if err := c.do(ctx, "update_status", http.MethodPatch, c.patientPath(id)+"/status", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Predict asks the service to score the patient from its stored details.
func (c *Client) Predict(ctx context.Context, id string) (*PredictResponse, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("predict: empty id: %w", ErrInvalidArgument)
	}
	body := map[string]any{"input": map[string]string{"id": id}}
	var out PredictResponse
	if err := c.do(ctx, "predict", http.MethodPost, c.patientPath(id)+"/predict", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RiskHistory returns the patient's stored predictions, oldest first as sent.
func (c *Client) RiskHistory(ctx context.Context, id string) ([]RiskEntry, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("risk history: empty id: %w", ErrInvalidArgument)
	}
	path := "/analytics/patients/" + url.PathEscape(c.customer) + "/" + url.PathEscape(id)
	var out []RiskEntry
	if err := c.do(ctx, "risk_history", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	start := time.Now()
	outcome := telemetry.OutcomeOK
	defer func() {
		telemetry.RecordRemoteCall(op, outcome, time.Since(start))
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			outcome = telemetry.OutcomeTransport
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		outcome = telemetry.OutcomeTransport
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.skipWarning {
		req.Header.Set(ProxyWarningHeader, "true")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		outcome = telemetry.OutcomeTransport
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		outcome = telemetry.OutcomeTransport
		return fmt.Errorf("%s: read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = telemetry.OutcomeHTTPError
		return &FetchError{Op: op, StatusCode: resp.StatusCode, Body: truncate(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		outcome = telemetry.OutcomeBadBody
		return &ParseError{Op: op, Body: truncate(raw), Err: err}
	}
	return nil
}

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBytes {
		return s[:maxErrorBytes] + "..."
	}
	return s
}

// IsTransport reports whether err came from the network rather than from a
// response the service sent.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	var fe *FetchError
	var pe *ParseError
	return !errors.As(err, &fe) && !errors.As(err, &pe) && !errors.Is(err, ErrInvalidArgument)
}
