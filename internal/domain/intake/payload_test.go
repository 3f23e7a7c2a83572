package intake

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/readmit/dashboard/internal/domain/clinical"
	"github.com/readmit/dashboard/internal/platform/predictionapi"
)

func TestBuildPayload_AgeNotANumber(t *testing.T) {
	d := NewDraft()
	d["id"], d["name"], d["age"], d["gender"], d["race"] = "P1", "Ann", "abc", "Female", "Asian"

	if err := Validate(d); err != nil {
		t.Fatalf("age format must not be validated, got %v", err)
	}
	p := BuildPayload(d)
	if p.Details.Age != nil {
		t.Errorf("expected null age, got %d", *p.Details.Age)
	}
}

func TestBuildPayload_Values(t *testing.T) {
	d := NewDraft()
	d["id"] = "P1"
	d["name"] = "Ann"
	d["age"] = " 70 "
	d["number_diagnoses"] = "0"
	d["lab_score"] = "0.45"
	d["race"] = "Asian"
	d["weight"] = ""
	d["insulin"] = "Yes"
	d["metformin"] = ""

	p := BuildPayload(d)
	if p.Status != predictionapi.StatusNotDischarged {
		t.Errorf("expected not_discharged, got %s", p.Status)
	}
	if p.Details.Age == nil || *p.Details.Age != 70 {
		t.Errorf("expected age 70, got %v", p.Details.Age)
	}
	if p.Details.NumberDiagnoses == nil || *p.Details.NumberDiagnoses != 0 {
		t.Errorf("expected zero to be kept, got %v", p.Details.NumberDiagnoses)
	}
	if p.Details.LabScore == nil || *p.Details.LabScore != 0.45 {
		t.Errorf("expected lab score 0.45, got %v", p.Details.LabScore)
	}
	if p.Details.Weight != nil {
		t.Errorf("expected null weight, got %q", *p.Details.Weight)
	}
	if p.Details.Insulin != "Yes" || p.Details.Metformin != "No" || p.Details.Change != "No" {
		t.Errorf("unexpected medication values %q %q %q", p.Details.Insulin, p.Details.Metformin, p.Details.Change)
	}
}

func TestBuildPayload_Total(t *testing.T) {
	junk := []string{"", " ", "abc", "12", "-4", "1e3", "NaN", "Inf", "0x10", "3.5", "9999999999999999999999", "\x00", "Yes"}
	rng := rand.New(rand.NewSource(1))
	keys := []string{"id", "name"}
	for _, f := range clinical.Fields() {
		keys = append(keys, f.Key)
	}

	for i := 0; i < 500; i++ {
		d := Draft{}
		if i > 0 {
			for _, k := range keys {
				if rng.Intn(3) > 0 {
					d[k] = junk[rng.Intn(len(junk))]
				}
			}
		}
		p := BuildPayload(d)
		if p == nil {
			t.Fatal("expected a payload")
		}
		if p.Status != predictionapi.StatusNotDischarged {
			t.Fatalf("draft %v: status %s", d, p.Status)
		}
		b, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("draft %v: payload does not encode: %v", d, err)
		}
		var back struct {
			Status  string                 `json:"status"`
			Details map[string]interface{} `json:"details"`
		}
		if err := json.Unmarshal(b, &back); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if back.Status != string(predictionapi.StatusNotDischarged) {
			t.Fatalf("draft %v: encoded status %q", d, back.Status)
		}
		for _, f := range clinical.Fields() {
			v, present := back.Details[f.Key]
			if !present {
				t.Fatalf("missing detail %s", f.Key)
			}
			switch f.Kind {
			case clinical.KindInt, clinical.KindFloat:
				if _, ok := v.(float64); v != nil && !ok {
					t.Fatalf("%s: expected number or null, got %T", f.Key, v)
				}
			case clinical.KindYesNo:
				if s, ok := v.(string); !ok || s == "" {
					t.Fatalf("%s: expected non-empty string, got %v", f.Key, v)
				}
			}
		}
	}
}
