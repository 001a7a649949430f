package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchFile string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-validate an activities file whenever it changes",
	Long: `Watches the markdown file and re-runs validation on every save, so
records can be fixed up before a real run. Stop with Ctrl-C.`,
	RunE: watchActivities,
}

func init() {
	watchCmd.Flags().StringVarP(&watchFile, "file", "f", "", "markdown activities file (required)")
	_ = watchCmd.MarkFlagRequired("file")
}

func watchActivities(cmd *cobra.Command, args []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors often replace the file on save, which
	// drops a watch registered on the file itself.
	dir := filepath.Dir(watchFile)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runValidation := func() {
		input, err := os.Open(watchFile)
		if err != nil {
			logger.Warn("open activities file", zap.Error(err))
			return
		}
		defer input.Close()
		valid, invalid := reportValidation(input, os.Stdout)
		fmt.Printf("%d valid, %d invalid\n\n", valid, invalid)
	}

	fmt.Printf("Watching %s\n\n", watchFile)
	runValidation()

	target := filepath.Clean(watchFile)
	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// Editors emit bursts of events per save.
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, runValidation)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", zap.Error(err))
		}
	}
}
