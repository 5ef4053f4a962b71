package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/earthastronaut/hangouts-sms-export/internal/config"
	"github.com/earthastronaut/hangouts-sms-export/internal/convert"
	"github.com/earthastronaut/hangouts-sms-export/internal/media"
)

func main() {
	flags := pflag.NewFlagSet("hangouts-sms-export", pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: hangouts-sms-export [flags] <takeout-zip>\n\n")
		fmt.Fprintf(os.Stderr, "Converts a Google Takeout Hangouts export into an SMS Backup & Restore XML file.\n\n")
		flags.PrintDefaults()
	}

	flags.StringP("output", "o", "", "output XML file for SMS Backup & Restore (required)")
	flags.StringP("existing", "x", "", "existing SMS Backup & Restore XML file to merge into")
	flags.Int("message-count", 0, "maximum number of messages to convert (useful for testing)")
	flags.StringP("loglevel", "l", "", "log level: debug, info, warn, error")
	configFile := flags.String("config", "", "config file (default: ~/.config/hangouts-sms-export/config.yaml)")
	noFetch := flags.Bool("no-fetch-media", false, "skip downloading photo attachments")

	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if flags.NArg() != 1 {
		flags.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(flags, *configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel)

	if cfg.Output == "" {
		slog.Error("--output is required")
		os.Exit(2)
	}
	if *noFetch {
		cfg.FetchMedia = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var fetcher convert.MediaFetcher
	if cfg.FetchMedia {
		fetcher = media.New(cfg.MediaTimeout, cfg.MediaMaxBackoff, slog.Default())
	}

	runner := convert.NewRunner(convert.Config{
		ArchivePath:   flags.Arg(0),
		OutputPath:    cfg.Output,
		ExistingPath:  cfg.Existing,
		MessageLimit:  cfg.MessageLimit,
		ServiceCenter: cfg.ServiceCenter,
		Contacts:      cfg.Contacts,
	}, fetcher, slog.Default())

	summary, err := runner.Run(ctx)
	if err != nil {
		slog.Error("conversion failed", "error", err)
		os.Exit(1)
	}

	// Warnings are accumulated across the run and surfaced here so a long
	// conversion cannot scroll them away.
	for _, w := range summary.Warnings {
		slog.Warn(w)
	}
	slog.Info("conversion complete",
		"conversations", summary.Conversations,
		"messages", summary.Messages,
		"records_written", summary.MergedRecords,
		"duplicates_dropped", summary.Duplicates,
		"sms", summary.Counts.SMS,
		"mms", summary.Counts.MMS,
		"sent", summary.Counts.Sent,
		"received", summary.Counts.Received,
		"contacts", summary.Counts.Contacts,
		"images_missing", summary.Counts.ImagesMissing,
		"warnings", len(summary.Warnings),
	)
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
