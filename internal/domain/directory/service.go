// Package directory loads the patient list together with each patient's
// latest readmission risk.
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/readmit/dashboard/internal/platform/predictionapi"
	"github.com/readmit/dashboard/internal/platform/telemetry"
)

// Remote is the subset of the prediction API the directory reads.
type Remote interface {
	ListPatients(ctx context.Context) ([]predictionapi.Patient, error)
	RiskHistory(ctx context.Context, id string) ([]predictionapi.RiskEntry, error)
}

// Row is one patient in the directory. Risk is nil when the patient has no
// history or the history could not be fetched.
type Row struct {
	predictionapi.Patient
	Risk *predictionapi.RiskEntry `json:"risk"`
}

type Listing struct {
	Rows         []Row `json:"rows"`
	RiskFailures int   `json:"risk_failures"`
}

type Service struct {
	remote      Remote
	concurrency int
	logger      zerolog.Logger
}

// NewService caps concurrent risk requests at concurrency (minimum 1).
func NewService(remote Remote, concurrency int, logger zerolog.Logger) *Service {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{remote: remote, concurrency: concurrency, logger: logger}
}

func (s *Service) ListPatients(ctx context.Context) ([]predictionapi.Patient, error) {
	return s.remote.ListPatients(ctx)
}

// FetchRisk returns the latest risk entry for a patient, or nil for an empty
// history.
func (s *Service) FetchRisk(ctx context.Context, patientID string) (*predictionapi.RiskEntry, error) {
	entries, err := s.remote.RiskHistory(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return LatestRisk(entries), nil
}

// LatestRisk picks the newest entry. When every entry carries a timestamp the
// greatest one wins, ties going to the later position; otherwise the last
// element is taken as sent.
func LatestRisk(entries []predictionapi.RiskEntry) *predictionapi.RiskEntry {
	if len(entries) == 0 {
		return nil
	}
	best := len(entries) - 1
	for i := range entries {
		if !entries[i].Timestamp.Valid() {
			e := entries[best]
			return &e
		}
	}
	best = 0
	for i := 1; i < len(entries); i++ {
		if !entries[i].Timestamp.Before(entries[best].Timestamp.Time) {
			best = i
		}
	}
	e := entries[best]
	return &e
}

// Load lists patients and fetches each patient's risk with bounded
// concurrency. A failed list is returned as an error; a failed risk fetch
// leaves that row without risk and is only logged and counted. Cancelling ctx
// stops outstanding risk requests.
func (s *Service) Load(ctx context.Context) (*Listing, error) {
	patients, err := s.remote.ListPatients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}

	rows := make([]Row, len(patients))
	failed := make([]bool, len(patients))
	for i := range patients {
		rows[i].Patient = patients[i]
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := range rows {
		if ctx.Err() != nil {
			failed[i] = true
			continue
		}
		i := i
		g.Go(func() error {
			risk, err := s.FetchRisk(ctx, rows[i].ID)
			if err != nil {
				failed[i] = true
				s.logRiskFailure(rows[i].ID, err)
				return nil
			}
			rows[i].Risk = risk
			return nil
		})
	}
	_ = g.Wait()

	listing := &Listing{Rows: rows}
	for _, f := range failed {
		if f {
			listing.RiskFailures++
		}
	}
	if ctx.Err() != nil && listing.RiskFailures > 0 {
		s.logger.Debug().Int("skipped", listing.RiskFailures).Msg("risk fetch cancelled")
	}
	return listing, nil
}

func (s *Service) logRiskFailure(patientID string, err error) {
	telemetry.RecordRiskFetchFailure()
	if errors.Is(err, context.Canceled) {
		return
	}
	s.logger.Warn().Err(err).
		Str("patient_id", patientID).
		Str("kind", predictionapi.Kind(err)).
		Msg("risk fetch failed")
}
