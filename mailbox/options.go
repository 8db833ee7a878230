package mailbox

import (
	"log/slog"

	imap "github.com/meszmate/imap-mailbox"
)

// Option is a functional option for configuring a Mailbox.
type Option func(*Options)

// Options holds Mailbox configuration.
type Options struct {
	// Logger is the structured logger.
	Logger *slog.Logger

	// Charset is the default charset for search criteria, used when
	// SearchOptions does not name one. Empty means US-ASCII, upgraded to
	// UTF-8 for non-ASCII criteria.
	Charset string

	// ThreadAlgorithm is the algorithm Thread asks the server for.
	ThreadAlgorithm imap.ThreadAlgorithm
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() *Options {
	return &Options{
		Logger:          slog.Default(),
		ThreadAlgorithm: imap.ThreadAlgorithmReferences,
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithCharset sets the default search charset.
func WithCharset(charset string) Option {
	return func(o *Options) {
		o.Charset = charset
	}
}

// WithThreadAlgorithm sets the threading algorithm.
func WithThreadAlgorithm(alg imap.ThreadAlgorithm) Option {
	return func(o *Options) {
		o.ThreadAlgorithm = alg
	}
}
