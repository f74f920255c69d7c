package storage

import (
	"io"
	"log/slog"
)

type options struct {
	logger        *slog.Logger
	compressNew   bool
	commitWorkers int
}

// Option configures driver construction.
type Option func(*options)

// WithLogger configures structured logging for driver operations. Passing
// nil keeps the default discarding logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCompression makes tables created through CreateTable persist as
// gzip-compressed ".csv.gz" files. Tables loaded from disk keep the
// compression of the file they came from regardless of this option.
func WithCompression() Option {
	return func(o *options) {
		o.compressNew = true
	}
}

// WithCommitWorkers bounds the number of table files written concurrently
// during Commit. Values below 1 are ignored.
func WithCommitWorkers(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.commitWorkers = n
		}
	}
}

func defaultOptions() options {
	return options{
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		commitWorkers: 4,
	}
}
