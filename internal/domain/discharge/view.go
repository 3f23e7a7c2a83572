package discharge

import (
	"github.com/readmit/dashboard/internal/domain/clinical"
	"github.com/readmit/dashboard/internal/platform/predictionapi"
)

type Tab string

const (
	TabDischarge   Tab = "discharge"
	TabMonitoring  Tab = "monitoring"
	TabOverview    Tab = "overview"
	TabClinical    Tab = "clinical"
	TabMedications Tab = "medications"
	TabAdmission   Tab = "admission"
	TabLab         Tab = "lab"
)

type TabInfo struct {
	ID    Tab    `json:"id"`
	Label string `json:"label"`
}

// dataTabs maps the detail tabs onto catalogue sections.
var dataTabs = []struct {
	tab     Tab
	section clinical.Section
}{
	{TabOverview, clinical.SectionDemographics},
	{TabClinical, clinical.SectionClinical},
	{TabMedications, clinical.SectionMedications},
	{TabAdmission, clinical.SectionAdmission},
	{TabLab, clinical.SectionLab},
}

// Tabs lists the tabs for a patient. The first tab depends on status.
func Tabs(status predictionapi.Status) []TabInfo {
	first := TabInfo{ID: TabDischarge, Label: "Discharge Analysis"}
	if status.Discharged() {
		first = TabInfo{ID: TabMonitoring, Label: "Patient Monitoring"}
	}
	tabs := []TabInfo{first}
	for _, dt := range dataTabs {
		tabs = append(tabs, TabInfo{ID: dt.tab, Label: dt.section.Title()})
	}
	return tabs
}

// DefaultTab is the tab a patient view opens on.
func DefaultTab(status predictionapi.Status) Tab {
	if status.Discharged() {
		return TabMonitoring
	}
	return TabDischarge
}

type Item struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Value       string `json:"value"`
	Combination bool   `json:"combination,omitempty"`
}

type Section struct {
	Tab   Tab    `json:"tab"`
	Title string `json:"title"`
	Items []Item `json:"items"`
}

// Sections renders the patient's details for the data tabs. Medications
// list only those marked Yes.
func Sections(d predictionapi.Details) []Section {
	out := make([]Section, 0, len(dataTabs))
	for _, dt := range dataTabs {
		sec := Section{Tab: dt.tab, Title: dt.section.Title(), Items: []Item{}}
		for _, f := range clinical.InSection(dt.section) {
			value := clinical.Value(d, f.Key)
			if isMedication(f) && value != clinical.Yes {
				continue
			}
			sec.Items = append(sec.Items, Item{
				Key:         f.Key,
				Label:       f.Label,
				Value:       value,
				Combination: f.Combination,
			})
		}
		out = append(out, sec)
	}
	return out
}

func isMedication(f clinical.Field) bool {
	return f.Section == clinical.SectionMedications && f.Key != "change" && f.Key != "diabetesMed"
}

type Metric struct {
	Value   string `json:"value"`
	Label   string `json:"label"`
	Caption string `json:"caption"`
}

// Monitoring is the post-discharge tab. Its metrics are fixed sample values
// and carry no patient data.
type Monitoring struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Placeholder bool                  `json:"placeholder"`
	Metrics     []Metric              `json:"metrics"`
	Nudges      []predictionapi.Nudge `json:"nudges"`
}

func monitoringView(nudges []predictionapi.Nudge) *Monitoring {
	if nudges == nil {
		nudges = []predictionapi.Nudge{}
	}
	return &Monitoring{
		Title:       "Patient Monitoring Dashboard",
		Description: "Post-discharge monitoring and follow-up care",
		Placeholder: true,
		Metrics: []Metric{
			{Value: "7", Label: "Days Since Discharge", Caption: "Last updated today"},
			{Value: "3", Label: "Follow-up Calls", Caption: "Completed successfully"},
			{Value: "2", Label: "Email Reminders", Caption: "Sent this week"},
			{Value: "95%", Label: "Compliance Rate", Caption: "Medication adherence"},
		},
		Nudges: nudges,
	}
}
