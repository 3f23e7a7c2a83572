package directory

import (
	"fmt"
	"testing"

	"github.com/readmit/dashboard/internal/platform/predictionapi"
)

func rowsOf(statuses ...predictionapi.Status) []Row {
	rows := make([]Row, len(statuses))
	for i, s := range statuses {
		rows[i] = Row{Patient: predictionapi.Patient{ID: fmt.Sprintf("P%d", i+1), Status: s}}
	}
	return rows
}

func ids(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func TestParseFilter(t *testing.T) {
	for _, in := range []string{"", "all", "discharged", "not_discharged"} {
		if _, err := ParseFilter(in); err != nil {
			t.Errorf("ParseFilter(%q): unexpected error %v", in, err)
		}
	}
	if _, err := ParseFilter("archived"); err == nil {
		t.Error("expected error for unknown filter")
	}
}

func TestFilter_Scenario(t *testing.T) {
	rows := rowsOf(predictionapi.StatusNotDischarged, predictionapi.StatusDischarged)

	if got := ids(FilterNotDischarged.Apply(rows)); len(got) != 1 || got[0] != "P1" {
		t.Errorf("not_discharged: expected [P1], got %v", got)
	}
	if got := ids(FilterDischarged.Apply(rows)); len(got) != 1 || got[0] != "P2" {
		t.Errorf("discharged: expected [P2], got %v", got)
	}
	if got := ids(FilterAll.Apply(rows)); len(got) != 2 || got[0] != "P1" || got[1] != "P2" {
		t.Errorf("all: expected [P1 P2], got %v", got)
	}
}

func TestFilter_Partitions(t *testing.T) {
	statuses := []predictionapi.Status{
		predictionapi.StatusDischarged,
		predictionapi.StatusNotDischarged,
		"",
		"pending",
	}
	// Exhaust every sequence of length 4 over the status alphabet.
	for mask := 0; mask < 256; mask++ {
		seq := make([]predictionapi.Status, 4)
		for i := range seq {
			seq[i] = statuses[(mask>>(2*i))&3]
		}
		rows := rowsOf(seq...)

		all := FilterAll.Apply(rows)
		dis := FilterDischarged.Apply(rows)
		not := FilterNotDischarged.Apply(rows)
		if len(all) != len(rows) {
			t.Fatalf("%v: all dropped rows", seq)
		}
		if len(dis)+len(not) != len(all) {
			t.Fatalf("%v: partition sizes %d+%d != %d", seq, len(dis), len(not), len(all))
		}
		seen := map[string]int{}
		for _, r := range dis {
			seen[r.ID]++
		}
		for _, r := range not {
			seen[r.ID]++
		}
		for _, r := range all {
			if seen[r.ID] != 1 {
				t.Fatalf("%v: %s appears %d times across partitions", seq, r.ID, seen[r.ID])
			}
		}
	}
}

func TestSummarize(t *testing.T) {
	rows := rowsOf(predictionapi.StatusNotDischarged, predictionapi.StatusDischarged, "unknown")
	rows[0].Details = predictionapi.Details{"gender": "Male"}
	rows[1].Details = predictionapi.Details{"gender": "Female"}

	got := Summarize(rows)
	want := Summary{Total: 3, Discharged: 1, Active: 2, Male: 1}
	if got != want {
		t.Errorf("Summarize() = %+v, want %+v", got, want)
	}
}
