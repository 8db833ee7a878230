package client

import (
	"crypto/tls"
	"log/slog"
	"time"
)

// Option configures a Client.
type Option func(*Options)

// Options holds client configuration.
type Options struct {
	// TLSConfig is used by DialTLS when it is given no config.
	TLSConfig *tls.Config

	// Logger receives wire traffic at debug level. LOGIN arguments are
	// never logged.
	Logger *slog.Logger

	// ReadTimeout bounds the wait for the greeting and for each command's
	// completion. Zero disables it.
	ReadTimeout time.Duration

	// WriteTimeout bounds writing a command. Zero disables it.
	WriteTimeout time.Duration

	// MaxLiteral caps the size of a literal in a server response. Zero
	// means wire.DefaultMaxLiteral.
	MaxLiteral int64

	// TagPrefix starts every command tag.
	TagPrefix string

	// Updates, when set, is told about mailbox size changes the server
	// reports while commands run.
	Updates *MailboxUpdates
}

// MailboxUpdates receives untagged EXISTS and EXPUNGE responses for the
// selected mailbox. Callbacks run on the reader goroutine and must not
// issue commands.
type MailboxUpdates struct {
	Exists  func(count uint32)
	Expunge func(seqNum uint32)
}

// DefaultOptions returns the options New starts from.
func DefaultOptions() *Options {
	return &Options{
		Logger:       slog.Default(),
		ReadTimeout:  30 * time.Minute,
		WriteTimeout: time.Minute,
		TagPrefix:    "A",
	}
}

func WithTLSConfig(config *tls.Config) Option {
	return func(o *Options) { o.TLSConfig = config }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *Options) { o.ReadTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *Options) { o.WriteTimeout = d }
}

// WithMaxLiteral sets the largest literal accepted from the server.
func WithMaxLiteral(n int64) Option {
	return func(o *Options) { o.MaxLiteral = n }
}

// WithTagPrefix sets the prefix of command tags. An empty prefix keeps the
// default.
func WithTagPrefix(prefix string) Option {
	return func(o *Options) {
		if prefix != "" {
			o.TagPrefix = prefix
		}
	}
}

// WithMailboxUpdates registers callbacks for EXISTS and EXPUNGE.
func WithMailboxUpdates(u *MailboxUpdates) Option {
	return func(o *Options) { o.Updates = u }
}
