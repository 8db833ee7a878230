package imaptest

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/ianaindex"

	imap "github.com/meszmate/imap-mailbox"
	"github.com/meszmate/imap-mailbox/wire"
)

// position locates a message within the selected mailbox.
type position struct {
	seq    uint32
	count  uint32
	maxUID imap.UID
}

// matcher reports whether a message at pos matches a search key.
type matcher func(m *Message, pos position) bool

func errSyntax(format string, args ...any) error {
	return imap.ErrBad("Invalid search: " + fmt.Sprintf(format, args...))
}

// criteriaParser reads search keys from SEARCH, SORT and THREAD arguments.
type criteriaParser struct {
	dec    *wire.Decoder
	decode func(string) (string, error)
}

func newCriteriaParser(args string) *criteriaParser {
	return &criteriaParser{
		dec:    wire.NewDecoder(strings.NewReader(args)),
		decode: func(s string) (string, error) { return s, nil },
	}
}

func parseSearchArgs(args string) (matcher, error) {
	args = strings.TrimLeft(args, " ")
	if len(args) > 8 && strings.EqualFold(args[:8], "CHARSET ") {
		p := newCriteriaParser(args[8:])
		if err := p.charset(); err != nil {
			return nil, err
		}
		return p.parseKeys(false)
	}
	return newCriteriaParser(args).parseKeys(false)
}

func parseSortArgs(args string) (sortProgram, matcher, error) {
	p := newCriteriaParser(args)
	var program sortProgram
	reverse := false
	err := p.dec.ReadList(func() error {
		atom, err := p.dec.ReadAtom()
		if err != nil {
			return err
		}
		key := imap.SortKey(strings.ToUpper(atom))
		if key == "REVERSE" {
			reverse = true
			return nil
		}
		if !key.Valid() {
			return errSyntax("unknown sort key %q", atom)
		}
		program = append(program, imap.SortCriterion{Key: key, Reverse: reverse})
		reverse = false
		return nil
	})
	if err != nil {
		return nil, nil, imap.ErrBad("Invalid sort program")
	}
	if len(program) == 0 || reverse {
		return nil, nil, imap.ErrBad("Invalid sort program")
	}
	if err := p.charset(); err != nil {
		return nil, nil, err
	}
	match, err := p.parseKeys(false)
	return program, match, err
}

func parseThreadArgs(args string) (matcher, error) {
	p := newCriteriaParser(args)
	atom, err := p.dec.ReadAtom()
	if err != nil {
		return nil, imap.ErrBad("Missing thread algorithm")
	}
	if !imap.ThreadAlgorithm(strings.ToUpper(atom)).Valid() {
		return nil, imap.ErrNo("Unsupported thread algorithm")
	}
	if err := p.charset(); err != nil {
		return nil, err
	}
	return p.parseKeys(false)
}

// charset reads a charset name and installs a decoder for the quoted
// strings that follow.
func (p *criteriaParser) charset() error {
	p.skipSpace()
	name, err := p.dec.ReadAtom()
	if err != nil {
		return imap.ErrBad("Missing charset")
	}
	switch strings.ToUpper(name) {
	case "UTF-8", "US-ASCII":
		return nil
	}
	enc, _ := ianaindex.MIME.Encoding(name)
	if enc == nil {
		enc, _ = ianaindex.IANA.Encoding(name)
	}
	if enc == nil {
		return imap.ErrNoWithCode(imap.ResponseCodeBadCharset, "Unknown charset")
	}
	p.decode = func(s string) (string, error) {
		return enc.NewDecoder().String(s)
	}
	return nil
}

func (p *criteriaParser) skipSpace() {
	for {
		b, err := p.dec.PeekByte()
		if err != nil || b != ' ' {
			return
		}
		_ = p.dec.DiscardN(1)
	}
}

// parseKeys reads keys until end of input, or until ')' when nested.
func (p *criteriaParser) parseKeys(nested bool) (matcher, error) {
	var keys []matcher
	for {
		p.skipSpace()
		b, err := p.dec.PeekByte()
		if errors.Is(err, io.EOF) {
			if nested {
				return nil, errSyntax("unbalanced parenthesis")
			}
			break
		}
		if err != nil {
			return nil, err
		}
		if b == ')' {
			if !nested {
				return nil, errSyntax("unbalanced parenthesis")
			}
			_ = p.dec.DiscardN(1)
			break
		}
		key, err := p.parseKey()
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil, errSyntax("empty criteria")
	}
	return func(m *Message, pos position) bool {
		for _, k := range keys {
			if !k(m, pos) {
				return false
			}
		}
		return true
	}, nil
}

func (p *criteriaParser) parseKey() (matcher, error) {
	p.skipSpace()
	b, err := p.dec.PeekByte()
	if err != nil {
		return nil, errSyntax("missing search key")
	}
	if b == '(' {
		_ = p.dec.DiscardN(1)
		return p.parseKeys(true)
	}
	if (b >= '0' && b <= '9') || b == '*' {
		set, err := p.readSet()
		if err != nil {
			return nil, err
		}
		return func(_ *Message, pos position) bool {
			return set.Contains(pos.seq, pos.count)
		}, nil
	}

	atom, err := p.dec.ReadAtom()
	if err != nil {
		return nil, errSyntax("expected search key")
	}
	key := strings.ToUpper(atom)

	if f, ok := flagKeys[key]; ok {
		return func(m *Message, pos position) bool { return m.hasFlag(f.flag) == f.want }, nil
	}

	switch key {
	case "ALL":
		return func(*Message, position) bool { return true }, nil
	case "NEW":
		return func(m *Message, pos position) bool {
			return m.hasFlag(imap.FlagRecent) && !m.hasFlag(imap.FlagSeen)
		}, nil
	case "OLD":
		return func(m *Message, pos position) bool { return !m.hasFlag(imap.FlagRecent) }, nil
	case "SUBJECT", "FROM", "TO", "CC", "BCC":
		value, err := p.stringArg()
		if err != nil {
			return nil, err
		}
		return func(m *Message, pos position) bool {
			h, _ := m.header(key)
			return containsFold(h, value)
		}, nil
	case "BODY":
		value, err := p.stringArg()
		if err != nil {
			return nil, err
		}
		return func(m *Message, pos position) bool { return containsFold(m.Body, value) }, nil
	case "TEXT":
		value, err := p.stringArg()
		if err != nil {
			return nil, err
		}
		return func(m *Message, pos position) bool { return containsFold(m.RFC822(), value) }, nil
	case "KEYWORD", "UNKEYWORD":
		value, err := p.stringArg()
		if err != nil {
			return nil, err
		}
		want := key == "KEYWORD"
		return func(m *Message, pos position) bool { return m.hasFlag(imap.Flag(value)) == want }, nil
	case "HEADER":
		name, err := p.stringArg()
		if err != nil {
			return nil, err
		}
		value, err := p.stringArg()
		if err != nil {
			return nil, err
		}
		return func(m *Message, pos position) bool {
			h, ok := m.header(name)
			return ok && containsFold(h, value)
		}, nil
	case "SINCE", "BEFORE", "ON":
		value, err := p.stringArg()
		if err != nil {
			return nil, err
		}
		day, err := time.Parse(imap.SearchDateLayout, value)
		if err != nil {
			return nil, errSyntax("bad date %q", value)
		}
		return func(m *Message, pos position) bool {
			y, mo, d := m.InternalDate.Date()
			got := time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
			switch key {
			case "SINCE":
				return !got.Before(day)
			case "BEFORE":
				return got.Before(day)
			default:
				return got.Equal(day)
			}
		}, nil
	case "LARGER", "SMALLER":
		p.skipSpace()
		n, err := p.dec.ReadNumber()
		if err != nil {
			return nil, errSyntax("bad size")
		}
		larger := key == "LARGER"
		return func(m *Message, pos position) bool {
			size := int64(len(m.RFC822()))
			if larger {
				return size > int64(n)
			}
			return size < int64(n)
		}, nil
	case "UID":
		p.skipSpace()
		set, err := p.readSet()
		if err != nil {
			return nil, err
		}
		return func(m *Message, pos position) bool { return set.Contains(uint32(m.UID), uint32(pos.maxUID)) }, nil
	case "NOT":
		inner, err := p.parseKey()
		if err != nil {
			return nil, err
		}
		return func(m *Message, pos position) bool { return !inner(m, pos) }, nil
	case "OR":
		left, err := p.parseKey()
		if err != nil {
			return nil, err
		}
		right, err := p.parseKey()
		if err != nil {
			return nil, err
		}
		return func(m *Message, pos position) bool {
			return left(m, pos) || right(m, pos)
		}, nil
	}
	return nil, errSyntax("unknown search key %q", atom)
}

var flagKeys = map[string]struct {
	flag imap.Flag
	want bool
}{
	"ANSWERED":   {imap.FlagAnswered, true},
	"DELETED":    {imap.FlagDeleted, true},
	"DRAFT":      {imap.FlagDraft, true},
	"FLAGGED":    {imap.FlagFlagged, true},
	"RECENT":     {imap.FlagRecent, true},
	"SEEN":       {imap.FlagSeen, true},
	"UNANSWERED": {imap.FlagAnswered, false},
	"UNDELETED":  {imap.FlagDeleted, false},
	"UNDRAFT":    {imap.FlagDraft, false},
	"UNFLAGGED":  {imap.FlagFlagged, false},
	"UNSEEN":     {imap.FlagSeen, false},
}

func (p *criteriaParser) stringArg() (string, error) {
	p.skipSpace()
	s, err := p.dec.ReadString()
	if err != nil {
		return "", errSyntax("missing string argument")
	}
	decoded, err := p.decode(s)
	if err != nil {
		return "", errSyntax("string not in declared charset")
	}
	return decoded, nil
}

// readSet reads a sequence set; '*' is not an atom character, so the set
// is collected byte by byte.
func (p *criteriaParser) readSet() (*imap.UIDSet, error) {
	var b strings.Builder
	for {
		c, err := p.dec.PeekByte()
		if err != nil || !(c >= '0' && c <= '9' || c == ':' || c == ',' || c == '*') {
			break
		}
		b.WriteByte(c)
		_ = p.dec.DiscardN(1)
	}
	set, err := imap.ParseUIDSet(b.String())
	if err != nil {
		return nil, errSyntax("bad message set %q", b.String())
	}
	return set, nil
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// sortProgram is an ordered list of sort criteria; ties fall back to UID.
type sortProgram []imap.SortCriterion

func (sp sortProgram) less(a, b *Message) bool {
	for _, c := range sp {
		cmp := compareBy(c.Key, a, b)
		if c.Reverse {
			cmp = -cmp
		}
		if cmp != 0 {
			return cmp < 0
		}
	}
	return a.UID < b.UID
}

func compareBy(key imap.SortKey, a, b *Message) int {
	switch key {
	case imap.SortKeyArrival, imap.SortKeyDate:
		return a.InternalDate.Compare(b.InternalDate)
	case imap.SortKeySize:
		return compareInt(len(a.RFC822()), len(b.RFC822()))
	case imap.SortKeySubject:
		return strings.Compare(baseSubject(a.Subject), baseSubject(b.Subject))
	case imap.SortKeyFrom:
		return strings.Compare(strings.ToLower(a.From), strings.ToLower(b.From))
	case imap.SortKeyTo:
		return strings.Compare(strings.ToLower(a.To), strings.ToLower(b.To))
	case imap.SortKeyCc:
		return strings.Compare(strings.ToLower(a.Cc), strings.ToLower(b.Cc))
	}
	return 0
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// baseSubject lowercases s and strips reply and forward prefixes, a
// simplified form of the RFC 5256 base subject.
func baseSubject(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for {
		trimmed := s
		for _, prefix := range []string{"re:", "fwd:", "fw:"} {
			trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
		}
		if trimmed == s {
			return s
		}
		s = trimmed
	}
}

// threadBySubject groups matching messages by base subject. The earliest
// message of each group is its root and the rest are replies to it.
func threadBySubject(mb *mailboxData, match matcher) string {
	groups := make(map[string][]*Message)
	var order []string
	for i, m := range mb.messages {
		if !match(m, mb.position(i)) {
			continue
		}
		key := baseSubject(m.Subject)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], m)
	}
	for _, key := range order {
		msgs := groups[key]
		sort.SliceStable(msgs, func(i, j int) bool {
			return sortProgram{{Key: imap.SortKeyDate}}.less(msgs[i], msgs[j])
		})
	}
	sort.SliceStable(order, func(i, j int) bool {
		return sortProgram{{Key: imap.SortKeyDate}}.less(groups[order[i]][0], groups[order[j]][0])
	})

	var b strings.Builder
	for _, key := range order {
		msgs := groups[key]
		b.WriteByte('(')
		b.WriteString(strconv.FormatUint(uint64(msgs[0].UID), 10))
		switch len(msgs) {
		case 1:
		case 2:
			b.WriteByte(' ')
			b.WriteString(strconv.FormatUint(uint64(msgs[1].UID), 10))
		default:
			b.WriteByte(' ')
			for _, reply := range msgs[1:] {
				b.WriteByte('(')
				b.WriteString(strconv.FormatUint(uint64(reply.UID), 10))
				b.WriteByte(')')
			}
		}
		b.WriteByte(')')
	}
	return b.String()
}

func parseStoreItem(item string) (imap.StoreAction, error) {
	item = strings.TrimSuffix(strings.ToUpper(item), ".SILENT")
	switch item {
	case "FLAGS":
		return imap.StoreFlagsSet, nil
	case "+FLAGS":
		return imap.StoreFlagsAdd, nil
	case "-FLAGS":
		return imap.StoreFlagsDel, nil
	}
	return 0, imap.ErrBad("Invalid STORE item")
}

func parseFlagList(s string) ([]imap.Flag, error) {
	dec := wire.NewDecoder(strings.NewReader(s))
	var raw []string
	var err error
	if b, perr := dec.PeekByte(); perr == nil && b == '(' {
		raw, err = dec.ReadFlags()
	} else {
		raw = strings.Fields(s)
	}
	if err != nil {
		return nil, imap.ErrBad("Invalid flag list")
	}
	flags := make([]imap.Flag, len(raw))
	for i, f := range raw {
		flags[i] = imap.Flag(f)
	}
	return flags, nil
}
