// Package intake implements the new-patient form: a flat string draft,
// required-field validation, the payload transform and the confirm-then-submit
// state machine.
package intake

import (
	"github.com/readmit/dashboard/internal/domain/clinical"
)

// Draft holds every form value as entered, keyed by field name.
type Draft map[string]string

// NewDraft returns an empty draft with Yes/No fields set to "No".
func NewDraft() Draft {
	d := Draft{"id": "", "name": ""}
	for _, f := range clinical.Fields() {
		if f.Kind == clinical.KindYesNo {
			d[f.Key] = clinical.No
		} else {
			d[f.Key] = ""
		}
	}
	return d
}

// Known reports whether key is a form field.
func Known(key string) bool {
	if key == "id" || key == "name" {
		return true
	}
	_, ok := clinical.Lookup(key)
	return ok
}

// Merge overlays values onto a fresh draft. Unknown keys are ignored.
func Merge(values map[string]string) Draft {
	d := NewDraft()
	for k, v := range values {
		if Known(k) {
			d[k] = v
		}
	}
	return d
}

func (d Draft) clone() Draft {
	out := make(Draft, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
