package resourcehub

import (
	"context"
	"errors"
	"log/slog"
)

// LoggingEventSink writes one structured log line per event
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates an event sink that logs to logger, or to the
// default logger when nil
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

func (l *LoggingEventSink) ResourceUploaded(ctx context.Context, resource *Resource) error {
	l.logger.InfoContext(ctx, "Resource uploaded",
		"resource_id", resource.ID,
		"subject", resource.Subject,
		"semester", resource.Semester,
		"file_name", resource.FileName,
		"file_size", resource.FileSize,
		"uploader", resource.UploaderName)
	return nil
}

func (l *LoggingEventSink) ResourceDownloaded(ctx context.Context, resource *Resource) error {
	l.logger.InfoContext(ctx, "Resource downloaded",
		"resource_id", resource.ID,
		"download_count", resource.DownloadCount)
	return nil
}

// MultiEventSink fans every event out to each sink in order
type MultiEventSink []EventSink

func (m MultiEventSink) ResourceUploaded(ctx context.Context, resource *Resource) error {
	var errs []error
	for _, sink := range m {
		if err := sink.ResourceUploaded(ctx, resource); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiEventSink) ResourceDownloaded(ctx context.Context, resource *Resource) error {
	var errs []error
	for _, sink := range m {
		if err := sink.ResourceDownloaded(ctx, resource); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
