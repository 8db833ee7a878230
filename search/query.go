package search

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"

	imap "github.com/meszmate/imap-mailbox"
)

// Query is a complete search request.
type Query struct {
	// Criteria selects messages. Nil or an empty expression selects all.
	Criteria Criterion

	// Sort orders the result on the server with SORT (RFC 5256). When
	// empty a plain SEARCH is issued and ids come back in server order.
	Sort imap.SortKey

	// Reverse sorts descending. It has no effect without Sort.
	Reverse bool

	// Charset names the character set of the quoted strings in Criteria.
	// The criteria are transcoded from UTF-8 into it before sending. When
	// empty, UTF-8 is announced only if the criteria are not plain ASCII.
	Charset string
}

// Command is a search command ready to hand to a transport.
type Command struct {
	// Name is "UID SEARCH" or "UID SORT".
	Name string
	// Args is everything after the command name.
	Args string
}

func (c *Command) String() string {
	return c.Name + " " + c.Args
}

// Sorted reports whether the command is a SORT.
func (c *Command) Sorted() bool {
	return c.Name == "UID SORT"
}

// Command validates q and builds its wire arguments.
func (q *Query) Command() (*Command, error) {
	criteria, charset, err := prepare(q.Criteria, q.Charset)
	if err != nil {
		return nil, err
	}

	if q.Sort == "" {
		args := criteria
		if charset != "" {
			args = "CHARSET " + charset + " " + criteria
		}
		return &Command{Name: "UID SEARCH", Args: args}, nil
	}

	if !q.Sort.Valid() {
		return nil, fmt.Errorf("%w: unknown sort key %q", imap.ErrInvalidSearchCriteria, q.Sort)
	}
	if charset == "" {
		charset = "UTF-8"
	}
	key := imap.SortCriterion{Key: q.Sort, Reverse: q.Reverse}
	return &Command{
		Name: "UID SORT",
		Args: "(" + key.String() + ") " + charset + " " + criteria,
	}, nil
}

// ThreadArgs builds the arguments of a UID THREAD command. Charset follows
// the same rules as Query.Charset except that THREAD always names one.
func ThreadArgs(alg imap.ThreadAlgorithm, c Criterion, charset string) (string, error) {
	if alg == "" {
		alg = imap.ThreadAlgorithmReferences
	}
	if !alg.Valid() {
		return "", fmt.Errorf("%w: unknown thread algorithm %q", imap.ErrInvalidSearchCriteria, alg)
	}
	criteria, cs, err := prepare(c, charset)
	if err != nil {
		return "", err
	}
	if cs == "" {
		cs = "UTF-8"
	}
	return string(alg) + " " + cs + " " + criteria, nil
}

// prepare formats c, defaults it to ALL and applies the charset.
func prepare(c Criterion, charset string) (criteria, cs string, err error) {
	criteria = "ALL"
	if c != nil {
		text, err := Format(c)
		if err != nil {
			return "", "", err
		}
		if text != "" {
			criteria = text
		}
	}

	if charset == "" {
		if !isASCII(criteria) {
			if !utf8.ValidString(criteria) {
				return "", "", fmt.Errorf("%w: criteria are not valid UTF-8", imap.ErrInvalidSearchCriteria)
			}
			cs = "UTF-8"
		}
		return criteria, cs, nil
	}

	if strings.ContainsAny(charset, " \t\"()\\{\r\n") {
		return "", "", fmt.Errorf("%w: malformed charset name %q", imap.ErrInvalidSearchCriteria, charset)
	}
	encoded, err := Transcode(criteria, charset)
	if err != nil {
		return "", "", err
	}
	return encoded, strings.ToUpper(charset), nil
}

// Transcode converts UTF-8 text into the named charset. Names are looked up
// in the MIME registry first and then in the full IANA registry. Text that
// has no representation in the target charset is an error, as is a charset
// that does not encode ASCII as itself (UTF-16, UTF-32).
func Transcode(s, charset string) (string, error) {
	switch strings.ToUpper(charset) {
	case "UTF-8", "UTF8":
		if !utf8.ValidString(s) {
			return "", fmt.Errorf("%w: criteria are not valid UTF-8", imap.ErrInvalidSearchCriteria)
		}
		return s, nil
	case "US-ASCII", "ASCII":
		if !isASCII(s) {
			return "", fmt.Errorf("%w: criteria cannot be represented in %s", imap.ErrInvalidSearchCriteria, charset)
		}
		return s, nil
	}

	enc, err := lookupCharset(charset)
	if err != nil {
		return "", err
	}
	if !asciiCompatible(enc) {
		return "", fmt.Errorf("%w: charset %s does not encode ASCII as itself", imap.ErrInvalidSearchCriteria, charset)
	}
	out, err := enc.NewEncoder().String(s)
	if err != nil {
		return "", fmt.Errorf("%w: criteria cannot be represented in %s: %v", imap.ErrInvalidSearchCriteria, charset, err)
	}
	return out, nil
}

func lookupCharset(name string) (encoding.Encoding, error) {
	enc, _ := ianaindex.MIME.Encoding(name)
	if enc == nil {
		enc, _ = ianaindex.IANA.Encoding(name)
	}
	if enc == nil {
		return nil, fmt.Errorf("%w: unknown charset %q", imap.ErrInvalidSearchCriteria, name)
	}
	return enc, nil
}

// asciiSample holds every printable ASCII byte. Keywords, quotes and
// numbers in the criteria must survive transcoding unchanged.
var asciiSample = func() string {
	b := make([]byte, 0, 0x7f-0x20)
	for c := byte(0x20); c < 0x7f; c++ {
		b = append(b, c)
	}
	return string(b)
}()

func asciiCompatible(enc encoding.Encoding) bool {
	out, err := enc.NewEncoder().String(asciiSample)
	return err == nil && out == asciiSample
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
