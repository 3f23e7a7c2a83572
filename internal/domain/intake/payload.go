package intake

import (
	"math"
	"strconv"
	"strings"

	"github.com/readmit/dashboard/internal/domain/clinical"
	"github.com/readmit/dashboard/internal/platform/predictionapi"
)

// BuildPayload turns a draft into a create request. It never fails: numbers
// that do not parse become null, blank text becomes null and Yes/No fields
// default to "No". New patients are always not discharged.
func BuildPayload(d Draft) *predictionapi.NewPatient {
	p := &predictionapi.NewPatient{
		ID:     d["id"],
		Name:   d["name"],
		Status: predictionapi.StatusNotDischarged,
	}
	c := &p.Details

	c.Age = intOrNil(d["age"])
	c.Race = textOrNil(d["race"])
	c.Gender = textOrNil(d["gender"])
	c.Weight = textOrNil(d["weight"])
	c.PayerCode = textOrNil(d["payer_code"])
	c.MedicalSpecialty = textOrNil(d["medical_specialty"])

	c.Diag1 = textOrNil(d["diag_1"])
	c.Diag2 = textOrNil(d["diag_2"])
	c.Diag3 = textOrNil(d["diag_3"])
	c.NumberDiagnoses = intOrNil(d["number_diagnoses"])

	c.MaxGluSerum = textOrNil(d["max_glu_serum"])
	c.A1CResult = textOrNil(d["A1Cresult"])

	c.Metformin = yesNo(d["metformin"])
	c.Repaglinide = yesNo(d["repaglinide"])
	c.Nateglinide = yesNo(d["nateglinide"])
	c.Chlorpropamide = yesNo(d["chlorpropamide"])
	c.Glimepiride = yesNo(d["glimepiride"])
	c.Acetohexamide = yesNo(d["acetohexamide"])
	c.Glipizide = yesNo(d["glipizide"])
	c.Glyburide = yesNo(d["glyburide"])
	c.Tolbutamide = yesNo(d["tolbutamide"])
	c.Pioglitazone = yesNo(d["pioglitazone"])
	c.Rosiglitazone = yesNo(d["rosiglitazone"])
	c.Acarbose = yesNo(d["acarbose"])
	c.Miglitol = yesNo(d["miglitol"])
	c.Troglitazone = yesNo(d["troglitazone"])
	c.Tolazamide = yesNo(d["tolazamide"])
	c.Examide = yesNo(d["examide"])
	c.Citoglipton = yesNo(d["citoglipton"])
	c.Insulin = yesNo(d["insulin"])
	c.GlyburideMetformin = yesNo(d["glyburide_metformin"])
	c.GlipizideMetformin = yesNo(d["glipizide_metformin"])
	c.GlimepiridePioglitazone = yesNo(d["glimepiride_pioglitazone"])
	c.MetforminRosiglitazone = yesNo(d["metformin_rosiglitazone"])
	c.MetforminPioglitazone = yesNo(d["metformin_pioglitazone"])
	c.Change = yesNo(d["change"])
	c.DiabetesMed = yesNo(d["diabetesMed"])

	c.AdmissionTypeID = intOrNil(d["admission_type_id"])
	c.AdmissionSourceID = intOrNil(d["admission_source_id"])
	c.TimeInHospital = intOrNil(d["time_in_hospital"])
	c.NumLabProcedures = intOrNil(d["num_lab_procedures"])
	c.NumProcedures = intOrNil(d["num_procedures"])
	c.NumMedications = intOrNil(d["num_medications"])
	c.NumberOutpatient = intOrNil(d["number_outpatient"])
	c.NumberEmergency = intOrNil(d["number_emergency"])
	c.NumberInpatient = intOrNil(d["number_inpatient"])
	c.PrevAdmissions = intOrNil(d["prev_admissions"])
	c.LabScore = floatOrNil(d["lab_score"])

	return p
}

func intOrNil(s string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &n
}

func floatOrNil(s string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func textOrNil(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func yesNo(s string) string {
	if strings.TrimSpace(s) == "" {
		return clinical.No
	}
	return s
}
