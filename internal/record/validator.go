package record

import (
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var strictDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// fieldOrder fixes the reporting order of field errors.
var fieldOrder = []string{
	KeyActivityType, KeyPrimaryTech, KeyAdditionalTech, KeyTitle,
	KeyDescription, KeyPrivateDesc, KeyViewCount, KeyActivityURL,
	KeyTargetAudience, KeyPublishedDate, KeyStartDate, KeyEndDate,
	KeyQuantity, KeyUsePreviewImage,
}

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("name"); name != "" {
			return name
		}
		return fld.Name
	})
	return v
}

// Validate converts a raw field map into a typed ActivityRecord, or returns a
// ValidationError listing every field-level failure. There is no partial
// recovery: a record with any required-field error is rejected from the
// batch. Only quantity, use_preview_image, and private_description have
// documented defaults (1, true, generated later by the shaper).
//
// Additional technology areas beyond the form limit are truncated to the
// first two; the batch report carries this as a non-fatal note, not an error.
func Validate(raw map[string]string) (*ActivityRecord, *ValidationError) {
	rec := &ActivityRecord{
		Quantity:        1,
		UsePreviewImage: true,
	}
	errs := make(map[string]string)

	rec.ActivityType = strings.TrimSpace(raw[KeyActivityType])
	rec.PrimaryTechnologyArea = strings.TrimSpace(raw[KeyPrimaryTech])
	rec.Title = strings.TrimSpace(raw[KeyTitle])
	rec.Description = strings.TrimSpace(raw[KeyDescription])
	rec.PrivateDescription = strings.TrimSpace(raw[KeyPrivateDesc])

	rec.AdditionalTechnologyAreas = splitList(raw[KeyAdditionalTech])
	if len(rec.AdditionalTechnologyAreas) > MaxAdditionalAreas {
		rec.AdditionalTechnologyAreas = rec.AdditionalTechnologyAreas[:MaxAdditionalAreas]
	}

	rec.TargetAudience = splitList(raw[KeyTargetAudience])

	if v, ok := nonEmpty(raw, KeyViewCount); ok {
		n, err := strconv.Atoi(v)
		switch {
		case err != nil:
			errs[KeyViewCount] = fmt.Sprintf("must be an integer, got %q", v)
		case n < 0:
			errs[KeyViewCount] = "must be a non-negative integer"
		default:
			rec.ViewCount = &n
		}
	}

	if v, ok := nonEmpty(raw, KeyQuantity); ok {
		n, err := strconv.Atoi(v)
		switch {
		case err != nil:
			errs[KeyQuantity] = fmt.Sprintf("must be an integer, got %q", v)
		case n < 1:
			errs[KeyQuantity] = "must be a positive integer"
		default:
			rec.Quantity = n
		}
	}

	if v, ok := nonEmpty(raw, KeyUsePreviewImage); ok {
		b, err := parseBool(v)
		if err != nil {
			errs[KeyUsePreviewImage] = fmt.Sprintf("must be yes/no, got %q", v)
		} else {
			rec.UsePreviewImage = b
		}
	}

	if v, ok := nonEmpty(raw, KeyActivityURL); ok {
		if u, err := url.Parse(v); err != nil || !u.IsAbs() || u.Host == "" {
			errs[KeyActivityURL] = fmt.Sprintf("must be an absolute URL, got %q", v)
		} else {
			rec.ActivityURL = v
		}
	}

	rec.PublishedDate = parseDate(raw, KeyPublishedDate, errs)
	if t := parseDate(raw, KeyStartDate, errs); !t.IsZero() {
		rec.StartDate = &t
	}
	if t := parseDate(raw, KeyEndDate, errs); !t.IsZero() {
		rec.EndDate = &t
	}

	// Struct-level presence and format invariants.
	if err := structValidator.Struct(rec); err != nil {
		var vErrs validator.ValidationErrors
		if ok := asValidationErrors(err, &vErrs); ok {
			for _, fe := range vErrs {
				field := fe.Field()
				if _, seen := errs[field]; seen {
					continue
				}
				errs[field] = tagReason(fe)
			}
		}
	}

	// Date range rules: start and end come together, ordered, and event-type
	// activities must carry both.
	if rec.StartDate != nil && rec.EndDate == nil {
		addUnlessSet(errs, KeyEndDate, "end_date is required when start_date is set")
	}
	if rec.EndDate != nil && rec.StartDate == nil {
		addUnlessSet(errs, KeyStartDate, "start_date is required when end_date is set")
	}
	if rec.StartDate != nil && rec.EndDate != nil && rec.EndDate.Before(*rec.StartDate) {
		addUnlessSet(errs, KeyStartDate, "start_date must not be after end_date")
	}
	if rec.ActivityType != "" && isEventType(rec.ActivityType) && (rec.StartDate == nil || rec.EndDate == nil) {
		addUnlessSet(errs, KeyStartDate, fmt.Sprintf("start_date and end_date are required for %s activities", rec.ActivityType))
	}

	if len(errs) > 0 {
		ve := &ValidationError{Title: rec.Title}
		for _, field := range fieldOrder {
			if reason, ok := errs[field]; ok {
				ve.Fields = append(ve.Fields, FieldError{Field: field, Reason: reason})
			}
		}
		return nil, ve
	}
	return rec, nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	if v, ok := err.(validator.ValidationErrors); ok {
		*target = v
		return true
	}
	return false
}

func tagReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return "must be an absolute URL"
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "max":
		return fmt.Sprintf("must have at most %s entries", fe.Param())
	default:
		return fmt.Sprintf("failed %s constraint", fe.Tag())
	}
}

func addUnlessSet(errs map[string]string, field, reason string) {
	if _, ok := errs[field]; !ok {
		errs[field] = reason
	}
}

func parseDate(raw map[string]string, key string, errs map[string]string) time.Time {
	v, ok := nonEmpty(raw, key)
	if !ok {
		return time.Time{}
	}
	if !strictDate.MatchString(v) {
		errs[key] = fmt.Sprintf("must match YYYY-MM-DD, got %q", v)
		return time.Time{}
	}
	t, err := time.Parse(DateFormat, v)
	if err != nil {
		errs[key] = fmt.Sprintf("is not a valid calendar date: %q", v)
		return time.Time{}
	}
	return t
}

func nonEmpty(raw map[string]string, key string) (string, bool) {
	v := strings.TrimSpace(raw[key])
	return v, v != ""
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", v)
}

// splitList splits a comma- or semicolon-separated value, trimming entries
// and dropping duplicates while preserving order.
func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ';' })
	seen := make(map[string]bool, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		lower := strings.ToLower(p)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, p)
	}
	return out
}
