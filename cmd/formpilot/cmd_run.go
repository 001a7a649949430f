package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/anilreddyavula/FormPilot/internal/browser"
	"github.com/anilreddyavula/FormPilot/internal/cache"
	"github.com/anilreddyavula/FormPilot/internal/config"
	"github.com/anilreddyavula/FormPilot/internal/llm"
	"github.com/anilreddyavula/FormPilot/internal/orchestrator"
	"github.com/anilreddyavula/FormPilot/internal/resilience/retry"
	"github.com/anilreddyavula/FormPilot/internal/shape"
	"github.com/anilreddyavula/FormPilot/internal/submit"
)

func fieldRetryConfig(fast bool) retry.Config {
	if fast {
		return retry.FastFormFillConfig()
	}
	return retry.FormFillConfig()
}

var (
	runFile      string
	runURL       string
	runFast      bool
	runBatchSize int
	runMode      string
	runInteract  bool
	runConfirm   bool
	runRulesFile string
	runSchedule  string
	runCacheFile string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Submit activity records from a markdown file",
	Long: `Parses the activities file and submits each record into the target
form. Records that fail validation or submission are reported in the summary;
they never abort the batch.

With --schedule the batch re-runs on a cron expression until interrupted:

  formpilot run --file activities.md --schedule "0 9 * * MON"`,
	RunE: runActivities,
}

func init() {
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "markdown activities file (required)")
	runCmd.Flags().StringVar(&runURL, "url", "", "target form URL (overrides config)")
	runCmd.Flags().BoolVar(&runFast, "fast", false, "fast mode: shorter delays, fewer retries")
	runCmd.Flags().IntVar(&runBatchSize, "batch-size", 0, "records per batch window (batched mode)")
	runCmd.Flags().StringVar(&runMode, "mode", "", "sequential or batched")
	runCmd.Flags().BoolVar(&runInteract, "interactive", false, "review each record before submitting")
	runCmd.Flags().BoolVar(&runConfirm, "confirm", false, "pause for confirmation before each save")
	runCmd.Flags().StringVar(&runRulesFile, "rules-file", "", "file with custom rules appended to generation prompts")
	runCmd.Flags().StringVar(&runSchedule, "schedule", "", "cron expression for repeated runs")
	runCmd.Flags().StringVar(&runCacheFile, "cache", "", "cache file path (overrides config)")
	_ = runCmd.MarkFlagRequired("file")
}

func runActivities(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runSchedule == "" {
		return executeBatch(ctx, cfg)
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(runSchedule, func() {
		if err := executeBatch(ctx, cfg); err != nil {
			logger.Error("scheduled run failed", zap.Error(err))
		}
	}); err != nil {
		return &config.ConfigurationError{Field: "schedule", Reason: err.Error()}
	}

	logger.Info("scheduler started", zap.String("schedule", runSchedule))
	scheduler.Start()
	<-ctx.Done()
	<-scheduler.Stop().Done()
	return nil
}

// loadRunConfig layers run flags over the file+env configuration and
// validates the result.
func loadRunConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if runURL != "" {
		cfg.Target.URL = runURL
	}
	if runCacheFile != "" {
		cfg.Target.CacheFile = runCacheFile
	}
	if runFast {
		cfg.Run.FastMode = true
	}
	if runBatchSize > 0 {
		cfg.Run.BatchSize = runBatchSize
	}
	if runMode != "" {
		cfg.Run.Mode = runMode
	}
	if runInteract {
		cfg.Run.Interactive = true
	}
	if runConfirm {
		cfg.Run.ConfirmBeforeSave = true
	}
	if runRulesFile != "" {
		rules, err := os.ReadFile(runRulesFile)
		if err != nil {
			return nil, &config.ConfigurationError{Field: "rules-file", Reason: err.Error()}
		}
		cfg.Run.CustomRules = strings.TrimSpace(string(rules))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// executeBatch runs one full pass over the activities file.
func executeBatch(ctx context.Context, cfg *config.Config) error {
	input, err := os.Open(runFile)
	if err != nil {
		return fmt.Errorf("open activities file: %w", err)
	}
	defer input.Close()

	client, err := llm.New(cfg, logger)
	if err != nil {
		return &config.ConfigurationError{Field: "llm", Reason: err.Error()}
	}

	runCache := cache.New(cfg.Target.CacheFile)
	shaper := shape.New(client, runCache, cfg.Shape, cfg.Run.CustomRules, logger)

	session := browser.NewFormSession(browser.Config{
		Headless:            cfg.Browser.Headless,
		DebuggerURL:         cfg.Browser.DebuggerURL,
		NavigationTimeoutMs: cfg.Browser.NavigationTimeoutMs,
		ActionTimeoutMs:     cfg.Browser.ActionTimeoutMs,
	}, logger)
	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer func() {
		if err := session.Shutdown(context.Background()); err != nil {
			logger.Warn("browser shutdown", zap.Error(err))
		}
	}()

	driver := submit.NewDriver(session, runCache, submit.Config{
		FormURL:           cfg.Target.URL,
		Retry:             fieldRetryConfig(cfg.Run.FastMode),
		ConfirmBeforeSave: cfg.Run.ConfirmBeforeSave,
	}, logger)

	var confirmer orchestrator.Confirmer
	if cfg.Run.Interactive || cfg.Run.ConfirmBeforeSave {
		confirmer = newConsoleConfirmer(os.Stdin, os.Stdout)
	}

	o := orchestrator.New(cfg, driver, shaper, confirmer, logger)
	summary, err := o.Run(ctx, input)
	if summary != nil {
		printSummary(summary)
	}
	return err
}

func printSummary(s *orchestrator.Summary) {
	fmt.Printf("\nRun %s: %d record(s)\n", s.RunID, s.Total)
	for _, out := range s.Outcomes {
		line := fmt.Sprintf("  [%d] %-20s %s", out.Index, out.Status, out.Title)
		if len(out.Reasons) > 0 {
			line += " (" + strings.Join(out.Reasons, "; ") + ")"
		}
		fmt.Println(line)
	}
	fmt.Printf("Submitted %d, failed validation %d, failed submission %d\n",
		s.Submitted, s.FailedValidation, s.FailedSubmission)
}
