// Package clinical is the catalogue of patient detail fields shared by the
// intake form and the detail views: keys, labels, sections and value kinds.
package clinical

import (
	"strings"

	"github.com/readmit/dashboard/internal/platform/predictionapi"
)

type Section string

const (
	SectionDemographics Section = "demographics"
	SectionClinical     Section = "clinical"
	SectionMedications  Section = "medications"
	SectionAdmission    Section = "admission"
	SectionLab          Section = "lab"
)

// Sections in display order.
var Sections = []Section{SectionDemographics, SectionClinical, SectionMedications, SectionAdmission, SectionLab}

var sectionTitles = map[Section]string{
	SectionDemographics: "Demographics",
	SectionClinical:     "Clinical Diagnosis",
	SectionMedications:  "Medications",
	SectionAdmission:    "Admission",
	SectionLab:          "Lab Results",
}

func (s Section) Title() string { return sectionTitles[s] }

type Kind string

const (
	KindText   Kind = "text"
	KindSelect Kind = "select"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	// KindYesNo fields default to "No" and are never sent empty.
	KindYesNo Kind = "yes_no"
)

const (
	Yes = "Yes"
	No  = "No"
)

type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type Field struct {
	Key string `json:"key"`
	// InputLabel is shown on the intake form, Label on the detail views.
	InputLabel  string   `json:"input_label"`
	Label       string   `json:"label"`
	Section     Section  `json:"section"`
	Kind        Kind     `json:"kind"`
	Options     []Option `json:"options,omitempty"`
	Combination bool     `json:"combination,omitempty"`
}

var (
	raceOptions = []Option{
		{"Caucasian", "Caucasian"},
		{"AfricanAmerican", "African American"},
		{"Hispanic", "Hispanic"},
		{"Asian", "Asian"},
		{"Other", "Other"},
	}
	genderOptions = []Option{
		{"Male", "Male"},
		{"Female", "Female"},
		{"Other", "Other"},
	}
	weightOptions = []Option{
		{"0-25", "0-25 lbs"},
		{"25-50", "25-50 lbs"},
		{"50-75", "50-75 lbs"},
		{"75-100", "75-100 lbs"},
		{"100-125", "100-125 lbs"},
		{"125-150", "125-150 lbs"},
		{"150-175", "150-175 lbs"},
		{"175-199", "175-199 lbs"},
		{"200+", "200+ lbs"},
	}
)

// IndividualMedications and CombinationMedications list the medication keys
// in form order.
var IndividualMedications = []string{
	"metformin", "repaglinide", "nateglinide", "chlorpropamide", "glimepiride",
	"acetohexamide", "glipizide", "glyburide", "tolbutamide", "pioglitazone",
	"rosiglitazone", "acarbose", "miglitol", "troglitazone", "tolazamide",
	"examide", "citoglipton", "insulin",
}

var CombinationMedications = []string{
	"glyburide_metformin", "glipizide_metformin", "glimepiride_pioglitazone",
	"metformin_rosiglitazone", "metformin_pioglitazone",
}

var catalog = buildCatalog()

var byKey = func() map[string]Field {
	m := make(map[string]Field, len(catalog))
	for _, f := range catalog {
		m[f.Key] = f
	}
	return m
}()

func buildCatalog() []Field {
	fields := []Field{
		{Key: "age", InputLabel: "Age", Label: "Age", Section: SectionDemographics, Kind: KindInt},
		{Key: "race", InputLabel: "Race", Label: "Race", Section: SectionDemographics, Kind: KindSelect, Options: raceOptions},
		{Key: "gender", InputLabel: "Gender", Label: "Gender", Section: SectionDemographics, Kind: KindSelect, Options: genderOptions},
		{Key: "weight", InputLabel: "Weight", Label: "Weight", Section: SectionDemographics, Kind: KindSelect, Options: weightOptions},
		{Key: "payer_code", InputLabel: "Payer Code", Label: "Payer Code", Section: SectionDemographics, Kind: KindText},
		{Key: "medical_specialty", InputLabel: "Medical Specialty", Label: "Patient Major Condition", Section: SectionDemographics, Kind: KindText},

		{Key: "diag_1", InputLabel: "Primary Diagnosis", Label: "Primary Diagnosis", Section: SectionClinical, Kind: KindText},
		{Key: "diag_2", InputLabel: "Secondary Diagnosis", Label: "Secondary Diagnosis", Section: SectionClinical, Kind: KindText},
		{Key: "diag_3", InputLabel: "Tertiary Diagnosis", Label: "Tertiary Diagnosis", Section: SectionClinical, Kind: KindText},
		{Key: "number_diagnoses", InputLabel: "Number of Diagnoses", Label: "Count of Diagnoses", Section: SectionClinical, Kind: KindInt},
	}

	for _, med := range IndividualMedications {
		label := titleWords(strings.Split(med, "_"), " ")
		fields = append(fields, Field{Key: med, InputLabel: label, Label: label, Section: SectionMedications, Kind: KindYesNo})
	}
	for _, med := range CombinationMedications {
		label := titleWords(strings.Split(med, "_"), " + ")
		fields = append(fields, Field{Key: med, InputLabel: label, Label: label, Section: SectionMedications, Kind: KindYesNo, Combination: true})
	}
	fields = append(fields,
		Field{Key: "change", InputLabel: "Change", Label: "Medication Change", Section: SectionMedications, Kind: KindYesNo},
		Field{Key: "diabetesMed", InputLabel: "Diabetes Medication", Label: "Diabetes Medication", Section: SectionMedications, Kind: KindYesNo},

		Field{Key: "admission_type_id", InputLabel: "Admission Type ID", Label: "Admission Type", Section: SectionAdmission, Kind: KindInt},
		Field{Key: "admission_source_id", InputLabel: "Admission Source ID", Label: "Admission Source", Section: SectionAdmission, Kind: KindInt},
		Field{Key: "time_in_hospital", InputLabel: "Time in Hospital (Days)", Label: "Length of Stay (Days)", Section: SectionAdmission, Kind: KindInt},
		Field{Key: "number_outpatient", InputLabel: "Number of Outpatient Visits", Label: "Prior Outpatient Visits", Section: SectionAdmission, Kind: KindInt},
		Field{Key: "number_emergency", InputLabel: "Number of Emergency Visits", Label: "Prior ER Visits", Section: SectionAdmission, Kind: KindInt},
		Field{Key: "number_inpatient", InputLabel: "Number of Inpatient Visits", Label: "Prior Inpatient Visits", Section: SectionAdmission, Kind: KindInt},
		Field{Key: "prev_admissions", InputLabel: "Previous Admissions", Label: "Total Previous Admissions", Section: SectionAdmission, Kind: KindInt},

		Field{Key: "max_glu_serum", InputLabel: "Max Glucose Serum", Label: "Glucose Serum Test", Section: SectionLab, Kind: KindText},
		Field{Key: "A1Cresult", InputLabel: "A1C Result", Label: "HbA1c Result", Section: SectionLab, Kind: KindText},
		Field{Key: "num_lab_procedures", InputLabel: "Number of Lab Procedures", Label: "Count of Labs Ordered", Section: SectionLab, Kind: KindInt},
		Field{Key: "num_procedures", InputLabel: "Number of Procedures", Label: "Procedures (Non-Lab) Count", Section: SectionLab, Kind: KindInt},
		Field{Key: "num_medications", InputLabel: "Number of Medications", Label: "Count of Prescribed Medications", Section: SectionLab, Kind: KindInt},
		Field{Key: "lab_score", InputLabel: "Lab Score", Label: "Lab Score", Section: SectionLab, Kind: KindFloat},
	)
	return fields
}

// Fields returns the catalogue in form order. The slice is a copy.
func Fields() []Field {
	out := make([]Field, len(catalog))
	copy(out, catalog)
	return out
}

// InSection returns the fields of one section in form order.
func InSection(s Section) []Field {
	var out []Field
	for _, f := range catalog {
		if f.Section == s {
			out = append(out, f)
		}
	}
	return out
}

func Lookup(key string) (Field, bool) {
	f, ok := byKey[key]
	return f, ok
}

// Label returns the display label for key. Unknown keys are humanised:
// underscores become spaces and each word is capitalised.
func Label(key string) string {
	if f, ok := byKey[key]; ok {
		return f.Label
	}
	return titleWords(strings.Split(key, "_"), " ")
}

// Missing is rendered for absent values.
const Missing = "N/A"

// Value renders a detail value for display.
func Value(d predictionapi.Details, key string) string {
	if s, ok := d.String(key); ok {
		return s
	}
	return Missing
}

func titleWords(words []string, sep string) string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		out = append(out, strings.ToUpper(w[:1])+w[1:])
	}
	return strings.Join(out, sep)
}
