// Package convert orchestrates the conversion pipeline: Takeout archive →
// parser → mapper → merger → backup writer.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/earthastronaut/hangouts-sms-export/internal/hangouts"
	"github.com/earthastronaut/hangouts-sms-export/internal/mapper"
	"github.com/earthastronaut/hangouts-sms-export/internal/media"
	"github.com/earthastronaut/hangouts-sms-export/internal/merge"
	"github.com/earthastronaut/hangouts-sms-export/internal/smsbackup"
)

// Config holds one conversion run's parameters.
type Config struct {
	ArchivePath   string
	OutputPath    string
	ExistingPath  string // optional backup to merge into
	MessageLimit  int    // 0 = unlimited, useful for test runs
	ServiceCenter string
	Contacts      map[string]string
}

// MediaFetcher downloads attachment payloads. Nil disables fetching and
// substitutes error texts for photo attachments.
type MediaFetcher interface {
	FetchImage(ctx context.Context, url, eventID string) (media.Content, error)
}

// Summary reports what one run did; warnings are accumulated across all
// stages and surfaced at the end, never dropped.
type Summary struct {
	Conversations   int
	Messages        int
	MappedRecords   int
	ExistingRecords int
	MergedRecords   int
	Duplicates      int
	Counts          smsbackup.Counts
	Warnings        []string
}

// Runner executes the pipeline. Each stage consumes immutable input and
// returns fresh output; failures abort the run before anything is written.
type Runner struct {
	cfg     Config
	fetcher MediaFetcher
	logger  *slog.Logger
}

func NewRunner(cfg Config, fetcher MediaFetcher, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  logger,
	}
}

// Run converts the archive and writes the merged backup file.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{}

	conversations, warnings, err := hangouts.ReadArchive(r.cfg.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	summary.Warnings = append(summary.Warnings, warnings...)
	summary.Conversations = len(conversations)
	r.logger.Info("archive parsed",
		"archive", r.cfg.ArchivePath,
		"conversations", len(conversations),
	)

	m := mapper.New(mapper.Config{
		ServiceCenter: r.cfg.ServiceCenter,
		Contacts:      r.cfg.Contacts,
	})

	var fresh []smsbackup.Record
	limitReached := false
	for _, conv := range conversations {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if limitReached {
			break
		}

		r.logger.Info("converting conversation",
			"conversation", conv.ID,
			"participants", len(conv.Participants)+1,
			"messages", len(conv.Messages),
		)

		for _, msg := range conv.Messages {
			if r.cfg.MessageLimit > 0 && summary.Messages >= r.cfg.MessageLimit {
				r.logger.Debug("message limit reached", "limit", r.cfg.MessageLimit)
				limitReached = true
				break
			}
			summary.Messages++

			resolved, ws, err := r.resolveAttachments(ctx, msg)
			if err != nil {
				return nil, err
			}
			summary.Warnings = append(summary.Warnings, ws...)

			rec, ws := m.MapMessage(conv, msg, resolved)
			summary.Warnings = append(summary.Warnings, ws...)
			if rec != nil {
				fresh = append(fresh, rec)
			}
		}
	}
	summary.MappedRecords = len(fresh)

	var existing []smsbackup.Record
	if r.cfg.ExistingPath != "" {
		var ws []string
		existing, ws, err = smsbackup.Read(r.cfg.ExistingPath)
		if err != nil {
			return nil, fmt.Errorf("read existing backup: %w", err)
		}
		summary.Warnings = append(summary.Warnings, ws...)
		summary.ExistingRecords = len(existing)
		r.logger.Info("existing backup parsed",
			"path", r.cfg.ExistingPath,
			"records", len(existing),
		)
	}

	merged := merge.Records(existing, fresh)
	summary.MergedRecords = len(merged.Records)
	summary.Duplicates = merged.Duplicates

	if err := smsbackup.Write(r.cfg.OutputPath, merged.Records); err != nil {
		return nil, err
	}
	summary.Counts = smsbackup.Stats(merged.Records)

	r.logger.Info("backup written",
		"path", r.cfg.OutputPath,
		"records", summary.MergedRecords,
		"duplicates_dropped", summary.Duplicates,
		"sms", summary.Counts.SMS,
		"mms", summary.Counts.MMS,
		"contacts", summary.Counts.Contacts,
	)

	return summary, nil
}

// resolveAttachments fetches photo payloads for one message, aligned with
// msg.Attachments. Expired URLs degrade to an error-text part; anything
// else failing the fetch aborts the run.
func (r *Runner) resolveAttachments(ctx context.Context, msg hangouts.Message) ([]media.Content, []string, error) {
	if len(msg.Attachments) == 0 {
		return nil, nil, nil
	}

	var warnings []string
	resolved := make([]media.Content, len(msg.Attachments))
	for i, att := range msg.Attachments {
		if att.Kind != hangouts.AttachmentPhoto {
			continue
		}

		if r.fetcher == nil {
			resolved[i] = media.TextContent(smsbackup.ErrorText(smsbackup.ErrorImageNotFound, att.URL))
			warnings = append(warnings, fmt.Sprintf(
				"event %s: media fetching disabled, substituting error text", msg.EventID))
			continue
		}

		r.logger.Info("downloading attachment", "event_id", msg.EventID)
		content, err := r.fetcher.FetchImage(ctx, att.URL, msg.EventID)
		if err != nil {
			if errors.Is(err, media.ErrImageNotFound) {
				resolved[i] = media.TextContent(smsbackup.ErrorText(smsbackup.ErrorImageNotFound, att.URL))
				warnings = append(warnings, fmt.Sprintf(
					"event %s: attachment no longer available: %s", msg.EventID, att.URL))
				continue
			}
			return nil, nil, fmt.Errorf("fetch attachment for event %s: %w", msg.EventID, err)
		}
		resolved[i] = content
	}
	return resolved, warnings, nil
}
