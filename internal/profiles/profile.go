package profiles

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shwndea/automated-padc-processor/internal/attendance"
)

// invalidNameChars may not appear in a profile name; the name becomes a file name.
const invalidNameChars = `<>:"/\|?*`

// Profile is a saved set of boundaries.
type Profile struct {
	Name        string                `json:"name" validate:"required,max=100,profilename"`
	Description string                `json:"description" validate:"max=500"`
	CreatedDate string                `json:"created_date"`
	Boundaries  attendance.Boundaries `json:"program_boundaries" validate:"required,hasends"`
	Mappings    map[string]string     `json:"program_mappings,omitempty"`
}

// New builds a profile stamped with the current time.
func New(name, description string, b attendance.Boundaries, mappings []attendance.ProgramMapping) Profile {
	return Profile{
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		CreatedDate: time.Now().UTC().Format(time.RFC3339),
		Boundaries:  b.Clone(),
		Mappings:    attendance.NamesFromMappings(mappings),
	}
}

// ProgramMappings returns the stored mappings in extraction order, or nil when
// the profile carries none.
func (p Profile) ProgramMappings() []attendance.ProgramMapping {
	if len(p.Mappings) == 0 {
		return nil
	}
	return attendance.MappingsFromNames(p.Mappings)
}

// Created parses CreatedDate. Both RFC 3339 and the zone-less ISO form written
// by older tools are accepted.
func (p Profile) Created() (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, p.CreatedDate); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("profilename", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		return strings.TrimSpace(name) != "" && !strings.ContainsAny(name, invalidNameChars)
	})
	_ = v.RegisterValidation("hasends", func(fl validator.FieldLevel) bool {
		b, ok := fl.Field().Interface().(attendance.Boundaries)
		return ok && b.Any()
	})
	return v
}
