// Package shape prepares record text for the form's character limits. It
// synthesizes a missing private description, rewrites oversized fields
// through the text-generation collaborator, and falls back to boundary-aware
// truncation when generation fails or overruns. Generated text is cached by
// content fingerprint so identical inputs never trigger a second call.
package shape

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/anilreddyavula/FormPilot/internal/cache"
	"github.com/anilreddyavula/FormPilot/internal/config"
	"github.com/anilreddyavula/FormPilot/internal/llm"
	"github.com/anilreddyavula/FormPilot/internal/record"
)

// Shaper applies the platform character limits to a validated record.
type Shaper struct {
	client llm.Client
	cache  *cache.RunCache
	cfg    config.ShapeConfig
	rules  string
	logger *zap.Logger
}

// New creates a Shaper. client may be nil, in which case every shaping step
// uses the deterministic truncation fallback.
func New(client llm.Client, runCache *cache.RunCache, cfg config.ShapeConfig, customRules string, logger *zap.Logger) *Shaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if runCache == nil {
		runCache = cache.New("")
	}
	if cfg.FieldLimit <= 0 {
		cfg.FieldLimit = 1000
	}
	if cfg.RewriteTarget <= 0 || cfg.RewriteTarget > cfg.FieldLimit {
		cfg.RewriteTarget = cfg.FieldLimit
	}
	if cfg.PrivateMaxLen <= 0 {
		cfg.PrivateMaxLen = 400
	}
	return &Shaper{
		client: client,
		cache:  runCache,
		cfg:    cfg,
		rules:  strings.TrimSpace(customRules),
		logger: logger,
	}
}

// Apply shapes rec in place. Shaping never fails a record: when generation
// is unavailable the truncation fallback guarantees the limits hold.
func (s *Shaper) Apply(ctx context.Context, rec *record.ActivityRecord) {
	if strings.TrimSpace(rec.PrivateDescription) == "" {
		rec.PrivateDescription = s.privateDescription(ctx, rec)
	}

	rec.Description = s.fitField(ctx, record.KeyDescription, rec.Description)
	rec.PrivateDescription = s.fitField(ctx, record.KeyPrivateDesc, rec.PrivateDescription)
}

// privateDescription synthesizes the internal-notes text from the public
// description and title.
func (s *Shaper) privateDescription(ctx context.Context, rec *record.ActivityRecord) string {
	source := rec.Title + "\n" + rec.Description
	if text, ok := s.cache.Content(record.KeyPrivateDesc, source); ok {
		return text
	}

	limit := s.cfg.PrivateMaxLen
	text := ""
	if s.client != nil {
		prompt := s.privatePrompt(rec, limit)
		out, err := s.client.CompleteWithSystem(ctx, privateSystemPrompt, prompt)
		if err != nil {
			s.logger.Warn("private description generation failed, using fallback",
				zap.String("title", rec.Title),
				zap.Error(err))
		} else {
			text = Sanitize(out)
			if len([]rune(text)) > limit {
				s.logger.Warn("generated private description over limit, truncating",
					zap.Int("length", len([]rune(text))),
					zap.Int("limit", limit))
				text = Truncate(text, limit)
			}
		}
	}
	if text == "" {
		text = Truncate(Sanitize(rec.Description), limit)
	}

	s.cache.SetContent(record.KeyPrivateDesc, source, text)
	return text
}

// fitField returns value unchanged when it fits, otherwise a rewrite (or
// truncation) within the field limit.
func (s *Shaper) fitField(ctx context.Context, field, value string) string {
	if len([]rune(value)) <= s.cfg.FieldLimit {
		return value
	}
	if text, ok := s.cache.Content(field, value); ok {
		return text
	}

	target := s.cfg.RewriteTarget
	text := ""
	if s.client != nil {
		out, err := s.client.CompleteWithSystem(ctx, rewriteSystemPrompt, s.rewritePrompt(value, target))
		if err != nil {
			s.logger.Warn("field rewrite failed, using fallback",
				zap.String("field", field),
				zap.Error(err))
		} else {
			text = Sanitize(out)
			if len([]rune(text)) > s.cfg.FieldLimit {
				s.logger.Warn("rewritten text still over limit, truncating",
					zap.String("field", field),
					zap.Int("length", len([]rune(text))))
				text = Truncate(text, target)
			}
		}
	}
	if text == "" {
		text = Truncate(Sanitize(value), target)
	}

	s.cache.SetContent(field, value, text)
	return text
}

const privateSystemPrompt = "You write short internal activity notes for a " +
	"community program reviewer. Plain prose, no markdown, no links."

const rewriteSystemPrompt = "You condense activity descriptions without " +
	"losing the key facts. Plain prose, no markdown, no links."

func (s *Shaper) privatePrompt(rec *record.ActivityRecord, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write an internal note (max %d characters) summarizing the reach and impact of this activity.\n", limit)
	fmt.Fprintf(&b, "Title: %s\n", rec.Title)
	if rec.ViewCount != nil {
		fmt.Fprintf(&b, "Views: %d\n", *rec.ViewCount)
	}
	fmt.Fprintf(&b, "Description: %s\n", rec.Description)
	if s.rules != "" {
		fmt.Fprintf(&b, "Additional instructions: %s\n", s.rules)
	}
	return b.String()
}

func (s *Shaper) rewritePrompt(value string, target int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rewrite the following text in at most %d characters, keeping all concrete facts:\n\n%s\n", target, value)
	if s.rules != "" {
		fmt.Fprintf(&b, "\nAdditional instructions: %s\n", s.rules)
	}
	return b.String()
}
