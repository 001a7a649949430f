// Package record defines the activity record data model, the markdown parser
// that produces raw field maps, and the validator that turns a raw map into a
// typed ActivityRecord or an ordered list of field errors.
package record

import (
	"fmt"
	"strings"
	"time"
)

// DateFormat is the strict calendar date layout accepted by the validator.
const DateFormat = "2006-01-02"

// MaxAdditionalAreas is the form's limit on additional technology areas.
// Values past the limit are truncated to the first two during validation.
const MaxAdditionalAreas = 2

// ActivityRecord is one submission unit. It is created by the validator,
// mutated in place by the normalizer and shaper, and consumed exactly once
// by the submission driver.
type ActivityRecord struct {
	ActivityType              string     `name:"activity_type" validate:"required"`
	PrimaryTechnologyArea     string     `name:"primary_technology_area" validate:"required"`
	AdditionalTechnologyAreas []string   `name:"additional_technology_areas" validate:"max=2"`
	Title                     string     `name:"title" validate:"required"`
	Description               string     `name:"description" validate:"required"`
	PrivateDescription        string     `name:"private_description"`
	ViewCount                 *int       `name:"view_count" validate:"omitempty,min=0"`
	ActivityURL               string     `name:"activity_url" validate:"required,url"`
	TargetAudience            []string   `name:"target_audience" validate:"required,min=1"`
	PublishedDate             time.Time  `name:"published_date" validate:"required"`
	StartDate                 *time.Time `name:"start_date"`
	EndDate                   *time.Time `name:"end_date"`
	Quantity                  int        `name:"quantity" validate:"min=1"`
	UsePreviewImage           bool       `name:"use_preview_image"`
}

// IsEventType reports whether the activity type carries a start/end date
// range on the form (speaking engagements, workshops, and similar).
func (r *ActivityRecord) IsEventType() bool {
	return isEventType(r.ActivityType)
}

var eventTypes = map[string]bool{
	"speaking (conference)": true,
	"speaking (user group)": true,
	"conference":            true,
	"workshop":              true,
	"webinar":               true,
	"hackathon":             true,
	"meetup":                true,
}

func isEventType(activityType string) bool {
	return eventTypes[strings.ToLower(strings.TrimSpace(activityType))]
}

// FieldError describes one validation failure on one field.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ValidationError rejects a record from the batch. It carries the ordered
// list of field-level failures; the batch itself continues.
type ValidationError struct {
	Title  string // record title when known, for reporting
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.String())
	}
	return fmt.Sprintf("record invalid: %s", strings.Join(parts, "; "))
}

// Cites reports whether the error includes a failure on the named field.
func (e *ValidationError) Cites(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}
