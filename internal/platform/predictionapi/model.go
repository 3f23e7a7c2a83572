package predictionapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type Status string

const (
	StatusNotDischarged Status = "not_discharged"
	StatusDischarged    Status = "discharged"
)

// Valid reports whether s is one of the two statuses the API accepts.
func (s Status) Valid() bool {
	return s == StatusNotDischarged || s == StatusDischarged
}

// Discharged treats anything other than "discharged" as still admitted.
func (s Status) Discharged() bool {
	return s == StatusDischarged
}

// Details is the loosely typed clinical attribute bag the API stores per patient.
type Details map[string]any

// String returns the value under key rendered as text. Missing, null and empty
// values report false.
func (d Details) String(key string) (string, bool) {
	v, ok := d[key]
	if !ok || v == nil {
		return "", false
	}
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(x)
	case json.Number:
		s = x.String()
	default:
		s = fmt.Sprint(x)
	}
	if s == "" {
		return "", false
	}
	return s, true
}

// Float returns a numeric value under key, accepting numeric strings.
func (d Details) Float(key string) (float64, bool) {
	switch x := d[key].(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

// Int returns an integral value under key.
func (d Details) Int(key string) (int, bool) {
	f, ok := d.Float(key)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

type Patient struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	CustomerID string  `json:"customer_id,omitempty"`
	Status     Status  `json:"status"`
	Details    Details `json:"details"`
	LatestBand string  `json:"latest_band,omitempty"`
}

// ClinicalDetails is the typed creation payload. Pointer fields encode as
// null when the form value was empty or did not parse.
type ClinicalDetails struct {
	Age              *int    `json:"age"`
	Race             *string `json:"race"`
	Gender           *string `json:"gender"`
	Weight           *string `json:"weight"`
	PayerCode        *string `json:"payer_code"`
	MedicalSpecialty *string `json:"medical_specialty"`

	Diag1           *string `json:"diag_1"`
	Diag2           *string `json:"diag_2"`
	Diag3           *string `json:"diag_3"`
	NumberDiagnoses *int    `json:"number_diagnoses"`

	MaxGluSerum *string `json:"max_glu_serum"`
	A1CResult   *string `json:"A1Cresult"`

	Metformin               string `json:"metformin"`
	Repaglinide             string `json:"repaglinide"`
	Nateglinide             string `json:"nateglinide"`
	Chlorpropamide          string `json:"chlorpropamide"`
	Glimepiride             string `json:"glimepiride"`
	Acetohexamide           string `json:"acetohexamide"`
	Glipizide               string `json:"glipizide"`
	Glyburide               string `json:"glyburide"`
	Tolbutamide             string `json:"tolbutamide"`
	Pioglitazone            string `json:"pioglitazone"`
	Rosiglitazone           string `json:"rosiglitazone"`
	Acarbose                string `json:"acarbose"`
	Miglitol                string `json:"miglitol"`
	Troglitazone            string `json:"troglitazone"`
	Tolazamide              string `json:"tolazamide"`
	Examide                 string `json:"examide"`
	Citoglipton             string `json:"citoglipton"`
	Insulin                 string `json:"insulin"`
	GlyburideMetformin      string `json:"glyburide_metformin"`
	GlipizideMetformin      string `json:"glipizide_metformin"`
	GlimepiridePioglitazone string `json:"glimepiride_pioglitazone"`
	MetforminRosiglitazone  string `json:"metformin_rosiglitazone"`
	MetforminPioglitazone   string `json:"metformin_pioglitazone"`
	Change                  string `json:"change"`
	DiabetesMed             string `json:"diabetesMed"`

	AdmissionTypeID   *int     `json:"admission_type_id"`
	AdmissionSourceID *int     `json:"admission_source_id"`
	TimeInHospital    *int     `json:"time_in_hospital"`
	NumLabProcedures  *int     `json:"num_lab_procedures"`
	NumProcedures     *int     `json:"num_procedures"`
	NumMedications    *int     `json:"num_medications"`
	NumberOutpatient  *int     `json:"number_outpatient"`
	NumberEmergency   *int     `json:"number_emergency"`
	NumberInpatient   *int     `json:"number_inpatient"`
	PrevAdmissions    *int     `json:"prev_admissions"`
	LabScore          *float64 `json:"lab_score"`
}

// NewPatient is the body of a create-patient request.
type NewPatient struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Status  Status          `json:"status"`
	Details ClinicalDetails `json:"details"`
}

// Timestamp accepts RFC 3339 and zone-less ISO 8601 values. Unrecognised
// text decodes to the zero time with Raw preserved.
type Timestamp struct {
	time.Time
	Raw string
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func ParseTimestamp(s string) Timestamp {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t, Raw: s}
		}
	}
	return Timestamp{Raw: s}
}

// Valid reports whether the timestamp carried a recognised value.
func (t Timestamp) Valid() bool {
	return !t.Time.IsZero()
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	*t = ParseTimestamp(s)
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		if t.Raw == "" {
			return []byte("null"), nil
		}
		return json.Marshal(t.Raw)
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// RiskEntry is one element of a patient's risk history.
type RiskEntry struct {
	Timestamp Timestamp `json:"timestamp"`
	RiskScore float64   `json:"risk_score"`
	Band      string    `json:"band"`
}

// Feature is one model input with its signed contribution.
type Feature struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Features keeps the key order of the JSON object it was decoded from.
type Features []Feature

func (f *Features) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*f = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("top_features: expected object, got %v", tok)
	}
	out := Features{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var w float64
		if err := dec.Decode(&w); err != nil {
			return fmt.Errorf("top_features[%s]: %w", key, err)
		}
		out = append(out, Feature{Name: key, Weight: w})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*f = out
	return nil
}

type Prediction struct {
	ID          string    `json:"id"`
	RiskScore   float64   `json:"risk_score"`
	Band        string    `json:"band"`
	TopFeatures Features  `json:"top_features"`
	Explanation string    `json:"explanation"`
	Timestamp   Timestamp `json:"timestamp"`
}

// Nudge is a care suggestion. The API sends either bare strings or objects in
// one of two shapes; all decode into Suggestion and Category.
type Nudge struct {
	Suggestion string `json:"suggestion"`
	Category   string `json:"category,omitempty"`
}

func (n *Nudge) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*n = Nudge{Suggestion: s}
		return nil
	}
	var raw struct {
		ID         string   `json:"id"`
		Suggestion string   `json:"suggestion"`
		Category   string   `json:"category"`
		Title      string   `json:"title"`
		Body       string   `json:"body"`
		Tags       []string `json:"tags"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("nudge: %w", err)
	}
	out := Nudge{Suggestion: raw.Suggestion, Category: raw.Category}
	if out.Suggestion == "" {
		out.Suggestion = raw.Body
	}
	if out.Suggestion == "" {
		out.Suggestion = raw.Title
	}
	if out.Category == "" && len(raw.Tags) > 0 {
		out.Category = strings.Join(raw.Tags, ",")
	}
	*n = out
	return nil
}

// PredictResponse is returned by the predict endpoint.
type PredictResponse struct {
	PatientID     string     `json:"patient_id"`
	Prediction    Prediction `json:"prediction"`
	Nudges        []Nudge    `json:"nudges"`
	MergedDetails Details    `json:"merged_details"`
}

type StatusUpdate struct {
	PatientID string `json:"patient_id"`
	Status    Status `json:"status"`
}
