package intake

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError maps each invalid field to its message.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// requiredFields carries the values that must be present before submission.
// Only presence is checked; age is not parsed here.
type requiredFields struct {
	ID     string `form:"id" validate:"required"`
	Name   string `form:"name" validate:"required"`
	Age    string `form:"age" validate:"required"`
	Gender string `form:"gender" validate:"required"`
	Race   string `form:"race" validate:"required"`
}

var requiredMessages = map[string]string{
	"id":     "ID is required",
	"name":   "Name is required",
	"age":    "Age is required",
	"gender": "Gender is required",
	"race":   "Race is required",
}

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("form")
	})
	return v
}()

// Validate checks the required fields. Blank values count as missing. The
// result is nil or a *ValidationError listing every violation.
func Validate(d Draft) error {
	in := requiredFields{
		ID:     strings.TrimSpace(d["id"]),
		Name:   strings.TrimSpace(d["name"]),
		Age:    strings.TrimSpace(d["age"]),
		Gender: strings.TrimSpace(d["gender"]),
		Race:   strings.TrimSpace(d["race"]),
	}
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fe.Field()] = requiredMessages[fe.Field()]
	}
	return out
}
