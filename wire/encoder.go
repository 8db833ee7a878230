package wire

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap/utf7"
)

// Encoder writes tagged command lines to an io.Writer.
type Encoder struct {
	w *bufio.Writer
}

// NewEncoder creates a new Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriterSize(w, 4096)
	}
	return &Encoder{w: bw}
}

// CommandLine joins a tag, a command name and preformatted arguments into
// one line, without the trailing CRLF.
func CommandLine(tag, name string, args ...string) string {
	var b strings.Builder
	b.WriteString(tag)
	b.WriteByte(' ')
	b.WriteString(name)
	for _, arg := range args {
		b.WriteByte(' ')
		b.WriteString(arg)
	}
	return b.String()
}

// WriteCommand writes one command line terminated by CRLF and flushes it.
// Arguments are written as given; use Quote and MailboxName to format them.
func (e *Encoder) WriteCommand(tag, name string, args ...string) error {
	_, _ = e.w.WriteString(CommandLine(tag, name, args...))
	_, _ = e.w.WriteString("\r\n")
	return e.w.Flush()
}

// Quote returns s as an IMAP quoted string. Double quotes and backslashes
// are escaped with a backslash. CR, LF and NUL cannot appear in a quoted
// string; callers must reject them first.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('"')
	return b.String()
}

// MailboxName returns the wire form of a mailbox name: INBOX is normalized,
// other names are encoded in modified UTF-7 (RFC 3501 section 5.1.3) and
// quoted when needed. A name that is not valid UTF-8 is sent as is.
func MailboxName(name string) string {
	if strings.EqualFold(name, "INBOX") {
		return "INBOX"
	}
	enc, err := utf7.Encoding.NewEncoder().String(name)
	if err != nil {
		enc = name
	}
	if NeedsQuoting(enc) {
		return Quote(enc)
	}
	return enc
}

// DecodeMailboxName decodes a modified UTF-7 mailbox name read off the wire.
func DecodeMailboxName(raw string) (string, error) {
	name, err := utf7.Encoding.NewDecoder().String(raw)
	if err != nil {
		return "", fmt.Errorf("imap: invalid mailbox name %q: %w", raw, err)
	}
	return name, nil
}
