package submit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/anilreddyavula/FormPilot/internal/browser"
	"github.com/anilreddyavula/FormPilot/internal/cache"
	"github.com/anilreddyavula/FormPilot/internal/record"
	"github.com/anilreddyavula/FormPilot/internal/resilience/retry"
)

const fakeFormHTML = `
<html><body><form>
  <label for="f-type">Activity Type</label>
  <select id="f-type"><option value="blog">Blog</option><option value="workshop">Workshop</option></select>

  <label for="f-primary">Primary Technology Area</label>
  <select id="f-primary"><option value="cloud">Cloud Computing</option><option value="ml">Machine Learning</option></select>

  <label for="f-additional">Additional Technology Areas</label>
  <select id="f-additional" multiple><option value="py">Python</option><option value="az">Azure Functions</option></select>

  <label for="f-title">Title</label>
  <input id="f-title" type="text">

  <label for="f-desc">Description</label>
  <textarea id="f-desc"></textarea>

  <label for="f-private">Private Description</label>
  <textarea id="f-private"></textarea>

  <label for="f-views">Number of Views</label>
  <input id="f-views" type="number">

  <label for="f-url">Activity URL</label>
  <input id="f-url" type="text">

  <label for="f-audience">Target Audience</label>
  <select id="f-audience" multiple><option value="dev">Developer</option><option value="student">Student</option></select>

  <label for="f-published">Published Date</label>
  <input id="f-published" type="date">

  <label for="f-quantity">Quantity</label>
  <input id="f-quantity" type="number">

  <label><input type="checkbox" name="preview"> Use preview image</label>
</form></body></html>`

type opFailure struct {
	remaining int
	err       error
}

type fakeSession struct {
	html       string
	currentURL string

	navigates []string
	snapshots int
	fills     map[string]string
	selects   map[string][]string
	checks    map[string]bool
	clicks    []string

	failures map[string]*opFailure // keyed "op selector"
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		html:     fakeFormHTML,
		fills:    map[string]string{},
		selects:  map[string][]string{},
		checks:   map[string]bool{},
		failures: map[string]*opFailure{},
	}
}

func (f *fakeSession) failNext(opKey string, n int, err error) {
	f.failures[opKey] = &opFailure{remaining: n, err: err}
}

func (f *fakeSession) maybeFail(opKey string) error {
	if fail, ok := f.failures[opKey]; ok && fail.remaining > 0 {
		fail.remaining--
		return fail.err
	}
	return nil
}

func (f *fakeSession) Navigate(ctx context.Context, url string) error {
	f.navigates = append(f.navigates, url)
	f.currentURL = url
	return nil
}

func (f *fakeSession) CurrentURL(ctx context.Context) (string, error) {
	return f.currentURL, nil
}

func (f *fakeSession) Snapshot(ctx context.Context) (*browser.FormSnapshot, error) {
	f.snapshots++
	return browser.ParseSnapshot(f.html)
}

func (f *fakeSession) Fill(ctx context.Context, selector, text string) error {
	if err := f.maybeFail("fill " + selector); err != nil {
		return err
	}
	f.fills[selector] = text
	return nil
}

func (f *fakeSession) SelectOption(ctx context.Context, selector, option string) error {
	if err := f.maybeFail("select " + selector); err != nil {
		return err
	}
	f.selects[selector] = append(f.selects[selector], option)
	return nil
}

func (f *fakeSession) SetChecked(ctx context.Context, selector string, checked bool) error {
	f.checks[selector] = checked
	return nil
}

func (f *fakeSession) Click(ctx context.Context, selector string) error {
	if err := f.maybeFail("click"); err != nil {
		return err
	}
	f.clicks = append(f.clicks, selector)
	return nil
}

func (f *fakeSession) ReadValue(ctx context.Context, selector string) (string, error) {
	if sel := f.selects[selector]; len(sel) > 0 {
		return sel[len(sel)-1], nil
	}
	return f.fills[selector], nil
}

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   1.0,
	}
}

func testDriver(session Session) *Driver {
	return NewDriver(session, cache.New(""), Config{
		FormURL: "https://forms.example.com/activities",
		Retry:   fastRetry(),
	}, nil)
}

func submittableRecord() *record.ActivityRecord {
	published, _ := time.Parse(record.DateFormat, "2024-01-15")
	views := 1200
	return &record.ActivityRecord{
		ActivityType:              "Blog",
		PrimaryTechnologyArea:     "Cloud Computing",
		AdditionalTechnologyAreas: []string{"Python"},
		Title:                     "Scaling Go services",
		Description:               "A deep dive into scaling.",
		PrivateDescription:        "Reached 1200 readers.",
		ViewCount:                 &views,
		ActivityURL:               "https://example.com/post",
		TargetAudience:            []string{"Developer", "Student"},
		PublishedDate:             published,
		Quantity:                  1,
		UsePreviewImage:           true,
	}
}

func TestSubmit_HappyPath(t *testing.T) {
	session := newFakeSession()
	d := testDriver(session)

	if err := d.Submit(context.Background(), submittableRecord(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(session.navigates) != 1 {
		t.Errorf("navigates = %v", session.navigates)
	}
	if session.fills["#f-title"] != "Scaling Go services" {
		t.Errorf("title fill = %q", session.fills["#f-title"])
	}
	if session.fills["#f-desc"] != "A deep dive into scaling." {
		t.Errorf("description fill = %q", session.fills["#f-desc"])
	}
	if session.fills["#f-views"] != "1200" {
		t.Errorf("views fill = %q", session.fills["#f-views"])
	}
	if session.fills["#f-published"] != "2024-01-15" {
		t.Errorf("published fill = %q", session.fills["#f-published"])
	}
	if got := session.selects["#f-type"]; len(got) != 1 || got[0] != "Blog" {
		t.Errorf("type selects = %v", got)
	}
	if got := session.selects["#f-audience"]; len(got) != 2 {
		t.Errorf("audience selects = %v", got)
	}
	if !session.checks[`input[name="preview"]`] {
		t.Error("preview checkbox not checked")
	}
	if len(session.clicks) != 1 {
		t.Errorf("clicks = %v, want one submit click", session.clicks)
	}
}

func TestSubmit_NavigationIsIdempotent(t *testing.T) {
	session := newFakeSession()
	session.currentURL = "https://forms.example.com/activities?tab=new"
	d := testDriver(session)

	if err := d.Submit(context.Background(), submittableRecord(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(session.navigates) != 0 {
		t.Errorf("navigates = %v, want none when already on the form", session.navigates)
	}
}

func TestSubmit_TransientErrorsExhaustRetries(t *testing.T) {
	session := newFakeSession()
	session.failNext("fill #f-title", 10, errors.New("element not found: #f-title"))
	d := testDriver(session)

	err := d.Submit(context.Background(), submittableRecord(), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var fieldErr *FieldError
	if !errors.As(err, &fieldErr) {
		t.Fatalf("err = %v, want *FieldError", err)
	}
	if fieldErr.Field != record.KeyTitle {
		t.Errorf("failed field = %q, want %q", fieldErr.Field, record.KeyTitle)
	}
	if len(session.clicks) != 0 {
		t.Error("submit must not be clicked after a failed field")
	}
}

func TestSubmit_TransientErrorThenRecovers(t *testing.T) {
	session := newFakeSession()
	session.failNext("fill #f-title", 2, errors.New("timeout waiting for element"))
	d := testDriver(session)

	if err := d.Submit(context.Background(), submittableRecord(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.fills["#f-title"] == "" {
		t.Error("title must be filled after retries")
	}
}

func TestSubmit_StaleErrorRefreshesSnapshot(t *testing.T) {
	session := newFakeSession()
	session.failNext("select #f-type", 1, errors.New("element is detached from the document"))
	d := testDriver(session)

	before := session.snapshots
	if err := d.Submit(context.Background(), submittableRecord(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// One snapshot opens the submit, one more is forced by the stale error.
	if session.snapshots < before+2 {
		t.Errorf("snapshots = %d, want at least %d", session.snapshots, before+2)
	}
}

func TestSubmit_FatalErrorFailsWithoutRetry(t *testing.T) {
	session := newFakeSession()
	session.failNext("fill #f-desc", 10, errors.New("invalid selector syntax"))
	d := testDriver(session)

	err := d.Submit(context.Background(), submittableRecord(), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if fail := session.failures["fill #f-desc"]; fail.remaining != 9 {
		t.Errorf("attempts consumed = %d, want 1 (no retry)", 10-fail.remaining)
	}
}

func TestSubmit_ConfirmDeclined(t *testing.T) {
	session := newFakeSession()
	d := NewDriver(session, cache.New(""), Config{
		FormURL:           "https://forms.example.com/activities",
		Retry:             fastRetry(),
		ConfirmBeforeSave: true,
	}, nil)

	err := d.Submit(context.Background(), submittableRecord(), func(ctx context.Context) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, ErrDeclined) {
		t.Errorf("err = %v, want ErrDeclined", err)
	}
	if len(session.clicks) != 0 {
		t.Error("declined record must not be saved")
	}
}

func TestSubmit_MissingOptionalControlSkipped(t *testing.T) {
	session := newFakeSession()
	// Form without the start/end date and quantity controls still accepts a
	// record carrying none of those values.
	d := testDriver(session)

	rec := submittableRecord()
	rec.PrivateDescription = ""
	rec.ViewCount = nil
	if err := d.Submit(context.Background(), rec, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := session.fills["#f-private"]; ok {
		t.Error("empty private description must not be written")
	}
}

func TestRefreshOptions_PopulatesCacheAndOptionSet(t *testing.T) {
	session := newFakeSession()
	runCache := cache.New("")
	d := NewDriver(session, runCache, Config{
		FormURL: "https://forms.example.com/activities",
		Retry:   fastRetry(),
	}, nil)

	opts, err := d.RefreshOptions(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(opts.ActivityTypes) != 2 || opts.ActivityTypes[0] != "Blog" {
		t.Errorf("ActivityTypes = %v", opts.ActivityTypes)
	}
	if len(opts.Audience) != 2 {
		t.Errorf("Audience = %v", opts.Audience)
	}

	cached, ok := runCache.Options("https://forms.example.com/activities", record.KeyActivityType)
	if !ok || len(cached) != 2 {
		t.Errorf("cached options = (%v, %v)", cached, ok)
	}

	fromCache := d.CachedOptions()
	if len(fromCache.ActivityTypes) != 2 {
		t.Errorf("CachedOptions.ActivityTypes = %v", fromCache.ActivityTypes)
	}
}

func TestPlanEntries_FixedOrder(t *testing.T) {
	entries := planEntries(submittableRecord())

	var keys []string
	for _, e := range entries {
		keys = append(keys, e.spec.key)
	}
	joined := strings.Join(keys, ",")

	wantOrder := []string{
		record.KeyActivityType,
		record.KeyPrimaryTech,
		record.KeyAdditionalTech,
		record.KeyTitle,
		record.KeyDescription,
		record.KeyPrivateDesc,
		record.KeyViewCount,
		record.KeyActivityURL,
		record.KeyTargetAudience,
		record.KeyPublishedDate,
		record.KeyQuantity,
		record.KeyUsePreviewImage,
	}
	if joined != strings.Join(wantOrder, ",") {
		t.Errorf("plan order = %v, want %v", keys, wantOrder)
	}
}
