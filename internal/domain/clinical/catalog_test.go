package clinical

import (
	"testing"

	"github.com/readmit/dashboard/internal/platform/predictionapi"
)

func TestLabel(t *testing.T) {
	tests := map[string]string{
		"medical_specialty":   "Patient Major Condition",
		"diag_2":              "Secondary Diagnosis",
		"number_diagnoses":    "Count of Diagnoses",
		"glyburide_metformin": "Glyburide + Metformin",
		"metformin":           "Metformin",
		"time_in_hospital":    "Length of Stay (Days)",
		"A1Cresult":           "HbA1c Result",
		"num_procedures":      "Procedures (Non-Lab) Count",
		"discharge_note":      "Discharge Note",
		"weird__key":          "Weird Key",
	}
	for key, want := range tests {
		if got := Label(key); got != want {
			t.Errorf("Label(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestCatalog_Medications(t *testing.T) {
	meds := 0
	for _, f := range InSection(SectionMedications) {
		if f.Kind != KindYesNo {
			t.Errorf("medication field %s has kind %s", f.Key, f.Kind)
		}
		if f.Key != "change" && f.Key != "diabetesMed" {
			meds++
		}
	}
	if meds != 23 {
		t.Errorf("expected 23 medications, got %d", meds)
	}
}

func TestCatalog_EverySectionPopulated(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range Sections {
		if s.Title() == "" {
			t.Errorf("section %s has no title", s)
		}
		if len(InSection(s)) == 0 {
			t.Errorf("section %s has no fields", s)
		}
	}
	for _, f := range Fields() {
		if seen[f.Key] {
			t.Errorf("duplicate field %s", f.Key)
		}
		seen[f.Key] = true
	}
}

func TestValue(t *testing.T) {
	d := predictionapi.Details{"age": 70.0, "race": "", "gender": "Female"}
	if got := Value(d, "age"); got != "70" {
		t.Errorf("expected 70, got %q", got)
	}
	if got := Value(d, "race"); got != Missing {
		t.Errorf("expected N/A for empty value, got %q", got)
	}
	if got := Value(d, "weight"); got != Missing {
		t.Errorf("expected N/A for missing value, got %q", got)
	}
}
