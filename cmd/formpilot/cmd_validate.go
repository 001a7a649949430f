package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anilreddyavula/FormPilot/internal/record"
)

var validateFile string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Parse and validate an activities file without submitting",
	Long: `Dry run: parses every section of the markdown file, validates each
record, and reports the problems. No browser or API credentials needed.`,
	RunE: validateActivities,
}

func init() {
	validateCmd.Flags().StringVarP(&validateFile, "file", "f", "", "markdown activities file (required)")
	_ = validateCmd.MarkFlagRequired("file")
}

func validateActivities(cmd *cobra.Command, args []string) error {
	input, err := os.Open(validateFile)
	if err != nil {
		return fmt.Errorf("open activities file: %w", err)
	}
	defer input.Close()

	valid, invalid := reportValidation(input, os.Stdout)
	fmt.Printf("\n%d valid, %d invalid\n", valid, invalid)
	return nil
}

// reportValidation prints one line per section and returns the counts.
func reportValidation(input io.Reader, out io.Writer) (valid, invalid int) {
	sections := record.ParseAll(input)
	for i, raw := range sections {
		rec, verr := record.Validate(raw)
		if verr == nil {
			fmt.Fprintf(out, "  [%d] ok       %s\n", i+1, rec.Title)
			valid++
			continue
		}
		invalid++
		title := verr.Title
		if title == "" {
			title = "(untitled)"
		}
		reasons := make([]string, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			reasons = append(reasons, fmt.Sprintf("%s: %s", f.Field, f.Reason))
		}
		fmt.Fprintf(out, "  [%d] invalid  %s\n        %s\n", i+1, title, strings.Join(reasons, "\n        "))
	}
	return valid, invalid
}
