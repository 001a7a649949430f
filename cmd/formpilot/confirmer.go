package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/anilreddyavula/FormPilot/internal/normalize"
	"github.com/anilreddyavula/FormPilot/internal/record"
)

// consoleConfirmer prompts on the terminal for interactive review and
// confirm-before-save pauses.
type consoleConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func newConsoleConfirmer(in io.Reader, out io.Writer) *consoleConfirmer {
	return &consoleConfirmer{in: bufio.NewReader(in), out: out}
}

// Review shows the planned field entries and asks whether to proceed.
func (c *consoleConfirmer) Review(ctx context.Context, rec *record.ActivityRecord, warnings []normalize.Warning) (bool, error) {
	fmt.Fprintf(c.out, "\n--- %s ---\n", rec.Title)
	fmt.Fprintf(c.out, "  Type:        %s\n", rec.ActivityType)
	fmt.Fprintf(c.out, "  Primary:     %s\n", rec.PrimaryTechnologyArea)
	if len(rec.AdditionalTechnologyAreas) > 0 {
		fmt.Fprintf(c.out, "  Additional:  %s\n", strings.Join(rec.AdditionalTechnologyAreas, ", "))
	}
	fmt.Fprintf(c.out, "  Audience:    %s\n", strings.Join(rec.TargetAudience, ", "))
	fmt.Fprintf(c.out, "  URL:         %s\n", rec.ActivityURL)
	fmt.Fprintf(c.out, "  Published:   %s\n", rec.PublishedDate.Format(record.DateFormat))
	fmt.Fprintf(c.out, "  Description: %s\n", preview(rec.Description, 120))
	for _, w := range warnings {
		fmt.Fprintf(c.out, "  ! %s: %q %s\n", w.Field, w.Original, w.Message)
	}
	return c.ask(ctx, "Submit this record? [y/N] ")
}

// ConfirmSave runs after the form is filled, before the save click.
func (c *consoleConfirmer) ConfirmSave(ctx context.Context, rec *record.ActivityRecord) (bool, error) {
	return c.ask(ctx, fmt.Sprintf("Form filled for %q. Save? [y/N] ", rec.Title))
}

func (c *consoleConfirmer) ask(ctx context.Context, prompt string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprint(c.out, prompt)
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
