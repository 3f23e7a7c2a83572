package directory

import (
	"fmt"

	"github.com/readmit/dashboard/internal/platform/predictionapi"
)

type Filter string

const (
	FilterAll           Filter = "all"
	FilterDischarged    Filter = "discharged"
	FilterNotDischarged Filter = "not_discharged"
)

// ParseFilter accepts the three filter names; empty means all.
func ParseFilter(s string) (Filter, error) {
	switch Filter(s) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterDischarged, FilterNotDischarged:
		return Filter(s), nil
	}
	return "", fmt.Errorf("unknown status filter %q", s)
}

// Match treats every status other than discharged as not discharged.
func (f Filter) Match(status predictionapi.Status) bool {
	switch f {
	case FilterDischarged:
		return status.Discharged()
	case FilterNotDischarged:
		return !status.Discharged()
	}
	return true
}

// Apply keeps matching rows in their original order.
func (f Filter) Apply(rows []Row) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if f.Match(r.Status) {
			out = append(out, r)
		}
	}
	return out
}

// Summary holds the dashboard counters.
type Summary struct {
	Total      int `json:"total"`
	Discharged int `json:"discharged"`
	Active     int `json:"active"`
	Male       int `json:"male"`
}

func Summarize(rows []Row) Summary {
	var s Summary
	for _, r := range rows {
		s.Total++
		if r.Status.Discharged() {
			s.Discharged++
		} else {
			s.Active++
		}
		if g, _ := r.Details.String("gender"); g == "Male" {
			s.Male++
		}
	}
	return s
}
