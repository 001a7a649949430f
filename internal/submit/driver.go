// Package submit drives one validated record into the live form. The driver
// fills fields in a fixed order, retries transient browser errors per field,
// refreshes its snapshot when element references go stale, and verifies
// constrained selections by reading them back.
package submit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/anilreddyavula/FormPilot/internal/browser"
	"github.com/anilreddyavula/FormPilot/internal/cache"
	"github.com/anilreddyavula/FormPilot/internal/normalize"
	"github.com/anilreddyavula/FormPilot/internal/record"
	"github.com/anilreddyavula/FormPilot/internal/resilience/retry"
)

// ErrDeclined is returned when a confirmation hook rejects saving a record.
var ErrDeclined = errors.New("submission declined")

// Session is the browser surface the driver needs. browser.FormSession
// satisfies it; tests substitute fakes.
type Session interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	Snapshot(ctx context.Context) (*browser.FormSnapshot, error)
	Fill(ctx context.Context, selector, text string) error
	SelectOption(ctx context.Context, selector, option string) error
	SetChecked(ctx context.Context, selector string, checked bool) error
	Click(ctx context.Context, selector string) error
	ReadValue(ctx context.Context, selector string) (string, error)
}

// FieldError reports which form field a submission failed on.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Config tunes the driver.
type Config struct {
	// FormURL is the submission page. Navigation is idempotent: a page
	// already showing the form is not reloaded.
	FormURL string
	// Retry is the per-field retry policy.
	Retry retry.Config
	// ConfirmBeforeSave pauses between fill-complete and the save click.
	ConfirmBeforeSave bool
}

// Driver fills and saves activity records.
type Driver struct {
	session Session
	cache   *cache.RunCache
	cfg     Config
	logger  *zap.Logger

	snap *browser.FormSnapshot
}

// NewDriver creates a Driver.
func NewDriver(session Session, runCache *cache.RunCache, cfg Config, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if runCache == nil {
		runCache = cache.New("")
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.FormFillConfig()
	}
	return &Driver{session: session, cache: runCache, cfg: cfg, logger: logger}
}

const submitSelector = `button[type="submit"], input[type="submit"]`

// RefreshOptions navigates to the form, snapshots it, stores every select
// field's options in the run cache, and returns the option set for the
// normalizer. Fields missing from the live form fall back to the built-in
// lists.
func (d *Driver) RefreshOptions(ctx context.Context) (normalize.OptionSet, error) {
	if err := d.ensureOnForm(ctx); err != nil {
		return normalize.FallbackOptions(), err
	}
	if err := d.refreshSnapshot(ctx); err != nil {
		return normalize.FallbackOptions(), err
	}

	opts := normalize.FallbackOptions()
	for _, spec := range fieldPlan {
		if !spec.constrained {
			continue
		}
		field, ok := findField(d.snap, spec)
		if !ok || len(field.Options) == 0 {
			continue
		}
		d.cache.SetOptions(d.cfg.FormURL, spec.key, field.Options)
		switch spec.key {
		case record.KeyActivityType:
			opts.ActivityTypes = field.Options
		case record.KeyPrimaryTech:
			opts.PrimaryTech = field.Options
		case record.KeyAdditionalTech:
			opts.AdditionalTech = field.Options
		case record.KeyTargetAudience:
			opts.Audience = field.Options
		}
	}
	return opts, nil
}

// CachedOptions builds an option set from the run cache without touching the
// browser. Missing fields use the built-in fallbacks.
func (d *Driver) CachedOptions() normalize.OptionSet {
	opts := normalize.FallbackOptions()
	if v, ok := d.cache.Options(d.cfg.FormURL, record.KeyActivityType); ok {
		opts.ActivityTypes = v
	}
	if v, ok := d.cache.Options(d.cfg.FormURL, record.KeyPrimaryTech); ok {
		opts.PrimaryTech = v
	}
	if v, ok := d.cache.Options(d.cfg.FormURL, record.KeyAdditionalTech); ok {
		opts.AdditionalTech = v
	}
	if v, ok := d.cache.Options(d.cfg.FormURL, record.KeyTargetAudience); ok {
		opts.Audience = v
	}
	return opts
}

// Submit fills the form from rec and saves it. confirm, when non-nil and
// ConfirmBeforeSave is set, runs after the last field is written; returning
// false abandons the record with ErrDeclined. Failed fields leave earlier
// fills in place: there is no rollback.
func (d *Driver) Submit(ctx context.Context, rec *record.ActivityRecord, confirm func(ctx context.Context) (bool, error)) error {
	if err := d.ensureOnForm(ctx); err != nil {
		return fmt.Errorf("open form: %w", err)
	}
	if err := d.refreshSnapshot(ctx); err != nil {
		return fmt.Errorf("snapshot form: %w", err)
	}

	for _, entry := range planEntries(rec) {
		if err := d.applyEntry(ctx, entry); err != nil {
			return &FieldError{Field: entry.spec.key, Err: err}
		}
	}

	if d.cfg.ConfirmBeforeSave && confirm != nil {
		ok, err := confirm(ctx)
		if err != nil {
			return fmt.Errorf("confirmation: %w", err)
		}
		if !ok {
			return ErrDeclined
		}
	}

	if err := d.clickWithRetry(ctx, submitSelector); err != nil {
		return &FieldError{Field: "submit", Err: err}
	}
	d.logger.Info("record submitted", zap.String("title", rec.Title))
	return nil
}

// ensureOnForm navigates only when the page is somewhere else.
func (d *Driver) ensureOnForm(ctx context.Context) error {
	current, err := d.session.CurrentURL(ctx)
	if err == nil && sameForm(current, d.cfg.FormURL) {
		return nil
	}
	return d.session.Navigate(ctx, d.cfg.FormURL)
}

func sameForm(current, target string) bool {
	trim := func(s string) string {
		s = strings.TrimPrefix(s, "https://")
		s = strings.TrimPrefix(s, "http://")
		return strings.TrimSuffix(s, "/")
	}
	c, t := trim(current), trim(target)
	return c != "" && t != "" && strings.HasPrefix(c, t)
}

func (d *Driver) refreshSnapshot(ctx context.Context) error {
	snap, err := d.session.Snapshot(ctx)
	if err != nil {
		return err
	}
	d.snap = snap
	return nil
}

// applyEntry writes one planned field with per-field retry. A stale reference
// forces a fresh snapshot before the next attempt.
func (d *Driver) applyEntry(ctx context.Context, entry fieldEntry) error {
	return retry.WithBackoffFunc(ctx, d.cfg.Retry, d.logger, browser.IsTransient, func() error {
		field, ok := findField(d.snap, entry.spec)
		if !ok {
			if entry.optional() {
				return nil
			}
			// The control may live in a part of the page that re-rendered.
			if err := d.refreshSnapshot(ctx); err != nil {
				return err
			}
			if field, ok = findField(d.snap, entry.spec); !ok {
				return fmt.Errorf("element not found: no control labeled for %s", entry.spec.key)
			}
		}

		err := d.writeField(ctx, field, entry)
		if err != nil && browser.IsStale(err) {
			if snapErr := d.refreshSnapshot(ctx); snapErr != nil {
				return snapErr
			}
		}
		return err
	})
}

func (d *Driver) writeField(ctx context.Context, field browser.FormField, entry fieldEntry) error {
	switch {
	case entry.check != nil:
		return d.session.SetChecked(ctx, field.Selector, *entry.check)

	case field.Kind == browser.KindSelect:
		for _, value := range entry.values {
			if err := d.session.SelectOption(ctx, field.Selector, value); err != nil {
				return err
			}
		}
		if entry.spec.constrained && len(entry.values) == 1 {
			return d.verifySelection(ctx, field.Selector, entry.values[0])
		}
		return nil

	default:
		return d.session.Fill(ctx, field.Selector, strings.Join(entry.values, "; "))
	}
}

// verifySelection reads the control back and checks the selection stuck.
// Select controls may report the option value attribute rather than its text,
// so comparison is case-insensitive on both.
func (d *Driver) verifySelection(ctx context.Context, selector, want string) error {
	got, err := d.session.ReadValue(ctx, selector)
	if err != nil {
		return err
	}
	if got == "" {
		return fmt.Errorf("element not found: selection for %s did not stick", selector)
	}
	if !strings.EqualFold(got, want) && !strings.EqualFold(strings.ReplaceAll(got, "-", " "), want) {
		d.logger.Warn("read-back value differs from selected option",
			zap.String("selector", selector),
			zap.String("want", want),
			zap.String("got", got))
	}
	return nil
}

func (d *Driver) clickWithRetry(ctx context.Context, selector string) error {
	return retry.WithBackoffFunc(ctx, d.cfg.Retry, d.logger, browser.IsTransient, func() error {
		return d.session.Click(ctx, selector)
	})
}

// fieldSpec locates one logical field in the snapshot by label needles.
type fieldSpec struct {
	key         string
	needles     []string
	exclude     []string
	constrained bool
	required    bool
}

// fieldPlan is the fixed fill order.
var fieldPlan = []fieldSpec{
	{key: record.KeyActivityType, needles: []string{"activity type", "category"}, constrained: true, required: true},
	{key: record.KeyPrimaryTech, needles: []string{"primary technology", "main technology"}, constrained: true, required: true},
	{key: record.KeyAdditionalTech, needles: []string{"additional technolog"}, constrained: true},
	{key: record.KeyTitle, needles: []string{"title"}, required: true},
	{key: record.KeyDescription, needles: []string{"description"}, exclude: []string{"private", "internal"}, required: true},
	{key: record.KeyPrivateDesc, needles: []string{"private description", "internal notes"}},
	{key: record.KeyViewCount, needles: []string{"views", "view count"}},
	{key: record.KeyActivityURL, needles: []string{"url"}, required: true},
	{key: record.KeyTargetAudience, needles: []string{"audience"}, constrained: true, required: true},
	{key: record.KeyPublishedDate, needles: []string{"published date", "date"}, exclude: []string{"start", "end"}, required: true},
	{key: record.KeyStartDate, needles: []string{"start date"}},
	{key: record.KeyEndDate, needles: []string{"end date"}},
	{key: record.KeyQuantity, needles: []string{"quantity"}},
	{key: record.KeyUsePreviewImage, needles: []string{"preview"}},
}

type fieldEntry struct {
	spec   fieldSpec
	values []string
	check  *bool
}

// optional reports whether the entry may be silently skipped when the form
// has no matching control.
func (e fieldEntry) optional() bool {
	return !e.spec.required
}

// planEntries maps a record onto the fill order, dropping empty optionals.
func planEntries(rec *record.ActivityRecord) []fieldEntry {
	byKey := map[string]fieldEntry{}
	set := func(key string, values ...string) {
		byKey[key] = fieldEntry{values: values}
	}

	set(record.KeyActivityType, rec.ActivityType)
	set(record.KeyPrimaryTech, rec.PrimaryTechnologyArea)
	if len(rec.AdditionalTechnologyAreas) > 0 {
		byKey[record.KeyAdditionalTech] = fieldEntry{values: rec.AdditionalTechnologyAreas}
	}
	set(record.KeyTitle, rec.Title)
	set(record.KeyDescription, rec.Description)
	if rec.PrivateDescription != "" {
		set(record.KeyPrivateDesc, rec.PrivateDescription)
	}
	if rec.ViewCount != nil {
		set(record.KeyViewCount, strconv.Itoa(*rec.ViewCount))
	}
	set(record.KeyActivityURL, rec.ActivityURL)
	byKey[record.KeyTargetAudience] = fieldEntry{values: rec.TargetAudience}
	set(record.KeyPublishedDate, rec.PublishedDate.Format(record.DateFormat))
	if rec.StartDate != nil {
		set(record.KeyStartDate, rec.StartDate.Format(record.DateFormat))
	}
	if rec.EndDate != nil {
		set(record.KeyEndDate, rec.EndDate.Format(record.DateFormat))
	}
	if rec.Quantity > 0 {
		set(record.KeyQuantity, strconv.Itoa(rec.Quantity))
	}
	preview := rec.UsePreviewImage
	byKey[record.KeyUsePreviewImage] = fieldEntry{check: &preview}

	entries := make([]fieldEntry, 0, len(fieldPlan))
	for _, spec := range fieldPlan {
		entry, ok := byKey[spec.key]
		if !ok {
			continue
		}
		entry.spec = spec
		entries = append(entries, entry)
	}
	return entries
}

func findField(snap *browser.FormSnapshot, spec fieldSpec) (browser.FormField, bool) {
	if snap == nil {
		return browser.FormField{}, false
	}
outer:
	for _, f := range snap.Fields {
		label := strings.ToLower(f.Label)
		for _, ex := range spec.exclude {
			if strings.Contains(label, ex) {
				continue outer
			}
		}
		for _, needle := range spec.needles {
			if strings.Contains(label, needle) {
				return f, true
			}
		}
	}
	return browser.FormField{}, false
}
