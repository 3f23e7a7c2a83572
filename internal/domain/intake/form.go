package intake

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/readmit/dashboard/internal/platform/predictionapi"
)

type Phase string

const (
	PhaseEditing    Phase = "editing"
	PhaseConfirming Phase = "confirming"
	PhaseSubmitting Phase = "submitting"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

type FieldState string

const (
	FieldEmpty   FieldState = "empty"
	FieldEdited  FieldState = "edited"
	FieldValid   FieldState = "valid"
	FieldInvalid FieldState = "invalid"
)

// SubmitFailedMessage is the single banner shown when creation fails.
const SubmitFailedMessage = "Failed to create patient. Please try again."

var (
	ErrUnknownField = errors.New("unknown form field")
	ErrWrongPhase   = errors.New("action not allowed in the current phase")
)

// Creator stores a new patient remotely.
type Creator interface {
	CreatePatient(ctx context.Context, p *predictionapi.NewPatient) (*predictionapi.Patient, error)
}

// Form is one open intake dialog. It is safe for concurrent use.
type Form struct {
	mu        sync.Mutex
	draft     Draft
	edited    map[string]bool
	errors    map[string]string
	checked   map[string]bool
	phase     Phase
	submitErr string

	creator Creator
	logger  zerolog.Logger
}

func NewForm(creator Creator, logger zerolog.Logger) *Form {
	f := &Form{creator: creator, logger: logger}
	f.reset()
	return f
}

func (f *Form) reset() {
	f.draft = NewDraft()
	f.edited = map[string]bool{}
	f.errors = map[string]string{}
	f.checked = map[string]bool{}
	f.phase = PhaseEditing
	f.submitErr = ""
}

func (f *Form) editable() bool {
	return f.phase == PhaseEditing || f.phase == PhaseFailed
}

// Set records a value and clears that field's error.
func (f *Form) Set(key, value string) error {
	if !Known(key) {
		return fmt.Errorf("%w: %s", ErrUnknownField, key)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.editable() {
		return ErrWrongPhase
	}
	f.draft[key] = value
	f.edited[key] = true
	delete(f.errors, key)
	delete(f.checked, key)
	return nil
}

// Fill sets every known key in values.
func (f *Form) Fill(values map[string]string) error {
	for k, v := range values {
		if !Known(k) {
			continue
		}
		if err := f.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}

func (f *Form) Draft() Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft.clone()
}

func (f *Form) Phase() Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase
}

// SubmissionError is the banner message after a failed submit, or "".
func (f *Form) SubmissionError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitErr
}

// FieldState reports empty until a field is touched, edited until it is next
// validated, and valid or invalid after that.
func (f *Form) FieldState(key string) FieldState {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case f.errors[key] != "":
		return FieldInvalid
	case f.checked[key]:
		return FieldValid
	case f.edited[key]:
		return FieldEdited
	}
	return FieldEmpty
}

// FieldErrors returns the current field messages.
func (f *Form) FieldErrors() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.errors))
	for k, v := range f.errors {
		out[k] = v
	}
	return out
}

// RequestSubmit validates the draft and opens the confirmation step. While any
// required field is invalid it returns the *ValidationError and stays editing.
func (f *Form) RequestSubmit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.editable() {
		return ErrWrongPhase
	}
	err := Validate(f.draft)
	f.submitErr = ""
	f.errors = map[string]string{}
	var verr *ValidationError
	if errors.As(err, &verr) {
		for k, v := range verr.Fields {
			f.errors[k] = v
		}
	}
	for key := range requiredMessages {
		f.checked[key] = f.errors[key] == ""
	}
	if err != nil {
		f.phase = PhaseEditing
		return err
	}
	f.phase = PhaseConfirming
	return nil
}

// Cancel leaves the confirmation step with the draft intact.
func (f *Form) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.phase != PhaseConfirming {
		return ErrWrongPhase
	}
	f.phase = PhaseEditing
	return nil
}

// Confirm sends the payload. On success the form resets to an empty draft; on
// failure the draft is kept and the phase is failed so the user can retry.
func (f *Form) Confirm(ctx context.Context) (*predictionapi.Patient, error) {
	f.mu.Lock()
	if f.phase != PhaseConfirming {
		f.mu.Unlock()
		return nil, ErrWrongPhase
	}
	f.phase = PhaseSubmitting
	payload := BuildPayload(f.draft)
	f.mu.Unlock()

	created, err := f.creator.CreatePatient(ctx, payload)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.phase = PhaseFailed
		f.submitErr = SubmitFailedMessage
		f.logger.Warn().Err(err).Str("patient_id", payload.ID).Msg("create patient failed")
		return nil, err
	}
	f.phase = PhaseSucceeded
	f.logger.Info().Str("patient_id", payload.ID).Msg("patient created")
	f.reset()
	return created, nil
}
