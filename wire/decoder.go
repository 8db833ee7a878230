// Package wire reads and writes the IMAP wire syntax used by the client:
// command lines on the way out, response lines with embedded literals on the
// way back, as defined in RFC 3501 (IMAP4rev1).
package wire

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Decoder reads IMAP protocol data from an io.Reader.
type Decoder struct {
	r *bufio.Reader

	// MaxLiteral caps the size of a literal accepted by ReadResponse and
	// ReadString. Zero means DefaultMaxLiteral.
	MaxLiteral int64
}

// DefaultMaxLiteral is the literal size limit used when Decoder.MaxLiteral
// is zero.
const DefaultMaxLiteral = 64 << 20

// NewDecoder creates a new Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, 4096)
	}
	return &Decoder{r: br}
}

func (d *Decoder) maxLiteral() int64 {
	if d.MaxLiteral == 0 {
		return DefaultMaxLiteral
	}
	return d.MaxLiteral
}

// ReadLine reads one line and strips its CRLF. A bare LF is accepted.
func (d *Decoder) ReadLine() (string, error) {
	line, err := d.r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			err = io.ErrUnexpectedEOF
		}
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

// ReadResponse reads one complete server response. A response may span
// several lines when it carries literals; every literal is kept inline as
// "{n}\r\n" followed by its n bytes, so the result can be parsed again with
// a Decoder over the returned string.
func (d *Decoder) ReadResponse() (string, error) {
	var b strings.Builder
	for {
		line, err := d.ReadLine()
		if err != nil {
			return "", err
		}
		b.WriteString(line)
		size, ok := trailingLiteral(line)
		if !ok {
			return b.String(), nil
		}
		if size > d.maxLiteral() {
			return "", fmt.Errorf("imap: literal of %d bytes exceeds limit %d", size, d.maxLiteral())
		}
		b.WriteString("\r\n")
		if _, err := io.CopyN(&b, d.r, size); err != nil {
			return "", err
		}
	}
}

// trailingLiteral reports whether line ends with a literal header such as
// {12} or {12+}, and returns the announced size.
func trailingLiteral(line string) (int64, bool) {
	if !strings.HasSuffix(line, "}") {
		return 0, false
	}
	open := strings.LastIndexByte(line, '{')
	if open < 0 {
		return 0, false
	}
	size, err := strconv.ParseInt(strings.TrimSuffix(line[open+1:len(line)-1], "+"), 10, 64)
	if err != nil || size < 0 {
		return 0, false
	}
	return size, true
}

// ReadAtom reads a run of atom characters. End of input terminates a
// non-empty atom.
func (d *Decoder) ReadAtom() (string, error) {
	var b strings.Builder
	for {
		c, err := d.PeekByte()
		if err == io.EOF && b.Len() > 0 {
			break
		}
		if err != nil {
			return "", err
		}
		if !isAtomChar(c) {
			break
		}
		b.WriteByte(c)
		_, _ = d.r.ReadByte()
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("imap: expected atom")
	}
	return b.String(), nil
}

// ReadQuotedString reads a quoted string and undoes its backslash escapes.
func (d *Decoder) ReadQuotedString() (string, error) {
	if err := d.ExpectByte('"'); err != nil {
		return "", err
	}
	var b strings.Builder
	for {
		c, err := d.r.ReadByte()
		if err != nil {
			return "", err
		}
		switch c {
		case '"':
			return b.String(), nil
		case '\\':
			if c, err = d.r.ReadByte(); err != nil {
				return "", err
			}
		case '\r', '\n':
			return "", fmt.Errorf("imap: line break inside quoted string")
		}
		b.WriteByte(c)
	}
}

// readLiteral reads "{n}" or "{n+}", the CRLF after it, and the n bytes
// that follow.
func (d *Decoder) readLiteral() (string, error) {
	if err := d.ExpectByte('{'); err != nil {
		return "", err
	}
	header, err := d.r.ReadString('}')
	if err != nil {
		return "", err
	}
	size, err := strconv.ParseInt(strings.TrimSuffix(header[:len(header)-1], "+"), 10, 64)
	if err != nil || size < 0 {
		return "", fmt.Errorf("imap: bad literal header {%s", header)
	}
	if size > d.maxLiteral() {
		return "", fmt.Errorf("imap: literal of %d bytes exceeds limit %d", size, d.maxLiteral())
	}
	if err := d.ExpectByte('\r'); err != nil {
		return "", err
	}
	if err := d.ExpectByte('\n'); err != nil {
		return "", err
	}
	var b strings.Builder
	if _, err := io.CopyN(&b, d.r, size); err != nil {
		return "", err
	}
	return b.String(), nil
}

// ReadString reads an astring: a quoted string, a literal or an atom.
func (d *Decoder) ReadString() (string, error) {
	c, err := d.PeekByte()
	if err != nil {
		return "", err
	}
	switch c {
	case '"':
		return d.ReadQuotedString()
	case '{':
		return d.readLiteral()
	default:
		return d.ReadAtom()
	}
}

// ReadNString reads a string or NIL; ok is false for NIL.
func (d *Decoder) ReadNString() (s string, ok bool, err error) {
	c, err := d.PeekByte()
	if err != nil {
		return "", false, err
	}
	if c == '"' || c == '{' {
		s, err = d.ReadString()
		return s, err == nil, err
	}
	atom, err := d.ReadAtom()
	if err != nil {
		return "", false, err
	}
	if strings.EqualFold(atom, "NIL") {
		return "", false, nil
	}
	return atom, true, nil
}

// ReadNumber reads a 32-bit unsigned number.
func (d *Decoder) ReadNumber() (uint32, error) {
	atom, err := d.ReadAtom()
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(atom, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("imap: invalid number %q", atom)
	}
	return uint32(n), nil
}

// ReadNumber64 reads a 64-bit unsigned number, as used by RFC822.SIZE.
func (d *Decoder) ReadNumber64() (int64, error) {
	atom, err := d.ReadAtom()
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(atom, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("imap: invalid number %q", atom)
	}
	return n, nil
}

// ReadSP reads a single space.
func (d *Decoder) ReadSP() error {
	return d.ExpectByte(' ')
}

// ExpectByte consumes one byte and fails unless it is want.
func (d *Decoder) ExpectByte(want byte) error {
	c, err := d.r.ReadByte()
	if err != nil {
		return err
	}
	if c != want {
		return fmt.Errorf("imap: expected %q, got %q", want, c)
	}
	return nil
}

// PeekByte returns the next byte without consuming it.
func (d *Decoder) PeekByte() (byte, error) {
	b, err := d.r.Peek(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// DiscardN discards n bytes.
func (d *Decoder) DiscardN(n int64) error {
	_, err := io.CopyN(io.Discard, d.r, n)
	return err
}

// ReadList reads a parenthesized, space-separated list, calling fn once per
// element with the decoder positioned at its first byte.
func (d *Decoder) ReadList(fn func() error) error {
	if err := d.ExpectByte('('); err != nil {
		return err
	}
	for first := true; ; first = false {
		c, err := d.PeekByte()
		if err != nil {
			return err
		}
		if c == ')' {
			_, _ = d.r.ReadByte()
			return nil
		}
		if !first {
			if err := d.ReadSP(); err != nil {
				return err
			}
		}
		if err := fn(); err != nil {
			return err
		}
	}
}

// ReadFlags reads a parenthesized flag list. System flags keep their
// backslash and \* is returned as is.
func (d *Decoder) ReadFlags() ([]string, error) {
	var flags []string
	err := d.ReadList(func() error {
		prefix := ""
		if c, err := d.PeekByte(); err == nil && c == '\\' {
			_, _ = d.r.ReadByte()
			prefix = `\`
			if c, err := d.PeekByte(); err == nil && c == '*' {
				_, _ = d.r.ReadByte()
				flags = append(flags, `\*`)
				return nil
			}
		}
		atom, err := d.ReadAtom()
		if err != nil {
			return err
		}
		flags = append(flags, prefix+atom)
		return nil
	})
	return flags, err
}

// Skip discards one value of any kind: an atom, a string, NIL or a
// parenthesized list, including nested lists.
func (d *Decoder) Skip() error {
	c, err := d.PeekByte()
	if err != nil {
		return err
	}
	switch c {
	case '(':
		return d.ReadList(d.Skip)
	case '"', '{':
		_, err := d.ReadString()
		return err
	}
	if _, err := d.ReadAtom(); err != nil {
		return err
	}
	// Section specifiers such as BODY[TEXT]<0> continue past the ']'.
	for {
		if c, err := d.PeekByte(); err != nil || c != ']' {
			return nil
		}
		_, _ = d.r.ReadByte()
		if c, err := d.PeekByte(); err != nil || !isAtomChar(c) {
			return nil
		}
		if _, err := d.ReadAtom(); err != nil {
			return err
		}
	}
}

// isAtomChar reports whether b may appear in an atom. ']' is excluded so
// that section specifiers split at it.
func isAtomChar(b byte) bool {
	if b <= 0x20 || b >= 0x7f {
		return false
	}
	return !strings.ContainsRune(`(){%*"\]`, rune(b))
}

// NeedsQuoting reports whether s cannot be sent as a bare atom.
func NeedsQuoting(s string) bool {
	if s == "" {
		return true
	}
	for i := 0; i < len(s); i++ {
		if !isAtomChar(s[i]) {
			return true
		}
	}
	return false
}

// NeedsLiteral reports whether s cannot be sent as a quoted string: it
// holds CR, LF, NUL or 8-bit bytes.
func NeedsLiteral(s string) bool {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c == '\r' || c == '\n' || c == 0 || c > 0x7e {
			return true
		}
	}
	return false
}
