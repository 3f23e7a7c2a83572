// Package discharge drives the patient detail view: loading the record and a
// fresh risk prediction side by side, the status-dependent tabs and the
// confirm-then-discharge action.
package discharge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/readmit/dashboard/internal/platform/predictionapi"
)

// Remote is the subset of the prediction API the workflow needs.
type Remote interface {
	GetPatient(ctx context.Context, id string) (*predictionapi.Patient, error)
	Predict(ctx context.Context, id string) (*predictionapi.PredictResponse, error)
	UpdateStatus(ctx context.Context, id string, status predictionapi.Status) (*predictionapi.StatusUpdate, error)
}

type State string

const (
	StateLoading State = "loading"
	StateError   State = "error"
	StateReady   State = "ready"
)

type AnalysisState string

const (
	AnalysisIdle        AnalysisState = "idle"
	AnalysisLoading     AnalysisState = "loading"
	AnalysisReady       AnalysisState = "ready"
	AnalysisUnavailable AnalysisState = "unavailable"
)

type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is the non-blocking result banner of a discharge attempt.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Title   string      `json:"title"`
	Message string      `json:"message"`
}

var (
	ErrNotReady          = errors.New("patient is not loaded")
	ErrAlreadyDischarged = errors.New("patient is already discharged")
	ErrNotConfirming     = errors.New("discharge was not requested")
	ErrUnknownTab        = errors.New("tab not available for this patient")
)

// BackLink is where the error view sends the user.
const BackLink = "/dashboard"

type Workflow struct {
	remote    Remote
	patientID string
	logger    zerolog.Logger

	mu         sync.Mutex
	state      State
	loadErr    error
	patient    *predictionapi.Patient
	analysis   AnalysisState
	prediction *predictionapi.PredictResponse
	tab        Tab
	confirming bool
	submitting bool
	notice     *Notice
}

func NewWorkflow(remote Remote, patientID string, logger zerolog.Logger) *Workflow {
	return &Workflow{
		remote:    remote,
		patientID: patientID,
		logger:    logger.With().Str("patient_id", patientID).Logger(),
		state:     StateLoading,
		analysis:  AnalysisIdle,
	}
}

// Load fetches the patient and a prediction concurrently. A failed patient
// fetch puts the view in the error state and is returned; a failed
// prediction only marks the analysis unavailable.
func (w *Workflow) Load(ctx context.Context) error {
	return w.load(ctx, true)
}

// LoadDetail fetches the patient without requesting a prediction.
func (w *Workflow) LoadDetail(ctx context.Context) error {
	return w.load(ctx, false)
}

func (w *Workflow) load(ctx context.Context, predict bool) error {
	w.mu.Lock()
	w.state = StateLoading
	if predict {
		w.analysis = AnalysisLoading
	}
	w.mu.Unlock()

	var (
		patient    *predictionapi.Patient
		patientErr error
		prediction *predictionapi.PredictResponse
		predictErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		patient, patientErr = w.remote.GetPatient(ctx, w.patientID)
		return nil
	})
	if predict {
		g.Go(func() error {
			prediction, predictErr = w.remote.Predict(ctx, w.patientID)
			return nil
		})
	}
	_ = g.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()

	if predict {
		if predictErr != nil {
			w.analysis = AnalysisUnavailable
			w.prediction = nil
			w.logger.Warn().Err(predictErr).Str("kind", predictionapi.Kind(predictErr)).Msg("prediction unavailable")
		} else {
			w.analysis = AnalysisReady
			w.prediction = prediction
		}
	}

	if patientErr != nil {
		w.state = StateError
		w.loadErr = patientErr
		w.patient = nil
		return fmt.Errorf("load patient %s: %w", w.patientID, patientErr)
	}
	w.state = StateReady
	w.loadErr = nil
	w.patient = patient
	w.tab = DefaultTab(patient.Status)
	return nil
}

// SelectTab switches tabs. The discharge tab exists only for admitted
// patients and the monitoring tab only for discharged ones.
func (w *Workflow) SelectTab(tab Tab) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateReady {
		return ErrNotReady
	}
	for _, t := range Tabs(w.patient.Status) {
		if t.ID == tab {
			w.tab = tab
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownTab, tab)
}

// RequestDischarge opens the confirmation step. It is only reachable for a
// loaded patient who is not yet discharged.
func (w *Workflow) RequestDischarge() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateReady || w.submitting {
		return ErrNotReady
	}
	if w.patient.Status.Discharged() {
		return ErrAlreadyDischarged
	}
	w.confirming = true
	w.notice = nil
	return nil
}

func (w *Workflow) CancelDischarge() {
	w.mu.Lock()
	w.confirming = false
	w.mu.Unlock()
}

// ConfirmDischarge sends the status change. Local status changes only after
// the service acknowledges it; on failure status is left as it was and an
// error notice is set.
func (w *Workflow) ConfirmDischarge(ctx context.Context) error {
	w.mu.Lock()
	if !w.confirming {
		w.mu.Unlock()
		return ErrNotConfirming
	}
	w.confirming = false
	w.submitting = true
	w.mu.Unlock()

	ack, err := w.remote.UpdateStatus(ctx, w.patientID, predictionapi.StatusDischarged)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	if err != nil {
		w.notice = &Notice{
			Level:   NoticeError,
			Title:   "Discharge Failed",
			Message: "Failed to discharge patient. Please try again.",
		}
		w.logger.Error().Err(err).Str("kind", predictionapi.Kind(err)).Msg("discharge failed")
		return err
	}

	status := predictionapi.StatusDischarged
	if ack != nil && ack.Status.Valid() {
		status = ack.Status
	}
	w.patient.Status = status
	w.tab = DefaultTab(status)
	w.notice = &Notice{
		Level:   NoticeSuccess,
		Title:   "Discharge Complete!",
		Message: "Patient has been successfully discharged.",
	}
	w.logger.Info().Msg("patient discharged")
	return nil
}

// DismissNotice clears the current notice.
func (w *Workflow) DismissNotice() {
	w.mu.Lock()
	w.notice = nil
	w.mu.Unlock()
}

type ErrorView struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
	Back    string `json:"back"`
}

type Analysis struct {
	State           AnalysisState            `json:"state"`
	RiskScore       float64                  `json:"risk_score,omitempty"`
	Band            string                   `json:"band,omitempty"`
	Tone            Tone                     `json:"tone,omitempty"`
	Explanation     string                   `json:"explanation,omitempty"`
	Timestamp       *predictionapi.Timestamp `json:"timestamp,omitempty"`
	TopFeatures     []predictionapi.Feature  `json:"top_features,omitempty"`
	SummaryFeatures []predictionapi.Feature  `json:"summary_features,omitempty"`
	Nudges          []predictionapi.Nudge    `json:"nudges,omitempty"`
}

// View is a consistent snapshot of the workflow for rendering.
type View struct {
	State               State                  `json:"state"`
	Error               *ErrorView             `json:"error,omitempty"`
	Patient             *predictionapi.Patient `json:"patient,omitempty"`
	Tabs                []TabInfo              `json:"tabs,omitempty"`
	ActiveTab           Tab                    `json:"active_tab,omitempty"`
	Analysis            Analysis               `json:"analysis"`
	Sections            []Section              `json:"sections,omitempty"`
	Monitoring          *Monitoring            `json:"monitoring,omitempty"`
	CanDischarge        bool                   `json:"can_discharge"`
	ConfirmingDischarge bool                   `json:"confirming_discharge"`
	Submitting          bool                   `json:"submitting"`
	Notice              *Notice                `json:"notice,omitempty"`
}

func (w *Workflow) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()

	v := View{
		State:               w.state,
		Analysis:            Analysis{State: w.analysis},
		ConfirmingDischarge: w.confirming,
		Submitting:          w.submitting,
		Notice:              w.notice,
	}
	if w.prediction != nil {
		p := w.prediction.Prediction
		ts := p.Timestamp
		v.Analysis.RiskScore = p.RiskScore
		v.Analysis.Band = p.Band
		v.Analysis.Tone = ScoreTone(p.RiskScore)
		v.Analysis.Explanation = p.Explanation
		v.Analysis.Timestamp = &ts
		v.Analysis.TopFeatures = RankFeatures(p.TopFeatures, DetailFeatureCount)
		v.Analysis.SummaryFeatures = RankFeatures(p.TopFeatures, SummaryFeatureCount)
		v.Analysis.Nudges = w.prediction.Nudges
	}

	switch w.state {
	case StateError:
		v.Error = &ErrorView{
			Message: "Failed to load patient details.",
			Kind:    predictionapi.Kind(w.loadErr),
			Back:    BackLink,
		}
		if predictionapi.IsNotFound(w.loadErr) {
			v.Error.Message = "Patient not found."
		}
	case StateReady:
		patient := *w.patient
		v.Patient = &patient
		v.Tabs = Tabs(patient.Status)
		v.ActiveTab = w.tab
		v.Sections = Sections(patient.Details)
		v.CanDischarge = !patient.Status.Discharged() && !w.submitting
		if patient.Status.Discharged() {
			var nudges []predictionapi.Nudge
			if w.prediction != nil {
				nudges = w.prediction.Nudges
			}
			v.Monitoring = monitoringView(nudges)
		}
	}
	return v
}
