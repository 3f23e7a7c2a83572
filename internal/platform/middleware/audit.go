package middleware

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/readmit/dashboard/internal/platform/auth"
)

const (
	auditActionKey  = "audit_action"
	auditPatientKey = "audit_patient_id"
)

// Patient mutations sent to the prediction API.
const (
	ActionPatientCreate    = "patient.create"
	ActionPatientDischarge = "patient.discharge"
)

// AuditEntry records one attempted patient mutation: who asked for it, from
// which tab, and how it ended.
type AuditEntry struct {
	Action       string
	PatientID    string
	UserID       string
	TabSessionID string
	RequestID    string
	Method       string
	Path         string
	RemoteIP     string
	StatusCode   int
	Timestamp    time.Time
}

// AuditRecorder persists audit entries beyond the log.
type AuditRecorder interface {
	RecordMutation(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordMutation(entry AuditEntry) error {
	return f(entry)
}

// ActorFunc names the signed-in user behind a request.
type ActorFunc func(c echo.Context) string

// MarkMutation tags the request as a patient mutation. Handlers call it once
// they commit to calling the prediction API, so confirmation round trips and
// rejected drafts are not audited.
func MarkMutation(c echo.Context, action, patientID string) {
	c.Set(auditActionKey, action)
	c.Set(auditPatientKey, patientID)
}

// Audit logs every request a handler marked with MarkMutation, after the
// handler has answered. Requests it did not mark pass through untouched.
func Audit(logger zerolog.Logger, actor ActorFunc, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			action, _ := c.Get(auditActionKey).(string)
			if action == "" {
				return err
			}

			req := c.Request()
			entry := AuditEntry{
				Action:       action,
				TabSessionID: auth.SessionIDFromContext(req.Context()),
				Method:       req.Method,
				Path:         req.URL.Path,
				RemoteIP:     c.RealIP(),
				StatusCode:   c.Response().Status,
				Timestamp:    time.Now().UTC(),
			}
			entry.PatientID, _ = c.Get(auditPatientKey).(string)
			entry.RequestID, _ = c.Get("request_id").(string)
			if actor != nil {
				entry.UserID = actor(c)
			}
			var he *echo.HTTPError
			if errors.As(err, &he) {
				entry.StatusCode = he.Code
			}

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordMutation(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			evt := logger.Info()
			if entry.StatusCode >= 400 {
				evt = logger.Warn()
			}
			evt.
				Str("type", "patient_audit").
				Str("action", entry.Action).
				Str("patient_id", entry.PatientID).
				Str("user_id", entry.UserID).
				Str("tab_session_id", entry.TabSessionID).
				Str("request_id", entry.RequestID).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.RemoteIP).
				Int("status", entry.StatusCode).
				Msg("patient_mutation")

			return err
		}
	}
}
