// Package search builds the criteria argument of IMAP SEARCH, SORT and
// THREAD commands from typed search keys.
//
// Every key type in this package knows its own wire form through String.
// Format is the checked entry point: it walks a criterion tree, rejects key
// types it does not know and values that cannot be sent as quoted strings,
// and only then serializes.
package search

import (
	"strconv"
	"time"

	imap "github.com/meszmate/imap-mailbox"
	"github.com/meszmate/imap-mailbox/wire"
)

// Criterion is a search key, or a combination of search keys.
type Criterion interface {
	// String returns the key as it appears on the wire.
	String() string
}

// TextField is a search key that matches a string against message text.
type TextField string

const (
	FieldBody      TextField = "BODY"
	FieldSubject   TextField = "SUBJECT"
	FieldText      TextField = "TEXT"
	FieldKeyword   TextField = "KEYWORD"
	FieldUnkeyword TextField = "UNKEYWORD"
)

func (f TextField) valid() bool {
	switch f {
	case FieldBody, FieldSubject, FieldText, FieldKeyword, FieldUnkeyword:
		return true
	}
	return false
}

// TextKey matches Value against a text field.
type TextKey struct {
	Field TextField
	Value string
}

func (k TextKey) String() string {
	return string(k.Field) + " " + wire.Quote(k.Value)
}

// Body matches messages whose body contains s.
func Body(s string) TextKey { return TextKey{Field: FieldBody, Value: s} }

// Subject matches messages whose Subject header contains s.
func Subject(s string) TextKey { return TextKey{Field: FieldSubject, Value: s} }

// Text matches messages whose header or body contains s.
func Text(s string) TextKey { return TextKey{Field: FieldText, Value: s} }

// Keyword matches messages with the keyword flag s set.
func Keyword(s string) TextKey { return TextKey{Field: FieldKeyword, Value: s} }

// Unkeyword matches messages without the keyword flag s.
func Unkeyword(s string) TextKey { return TextKey{Field: FieldUnkeyword, Value: s} }

// AddressField is a search key that matches an address header.
type AddressField string

const (
	FieldFrom AddressField = "FROM"
	FieldTo   AddressField = "TO"
	FieldCc   AddressField = "CC"
	FieldBcc  AddressField = "BCC"
)

func (f AddressField) valid() bool {
	switch f {
	case FieldFrom, FieldTo, FieldCc, FieldBcc:
		return true
	}
	return false
}

// AddressKey matches Value against an address header. The value is not
// checked for address syntax.
type AddressKey struct {
	Field AddressField
	Value string
}

func (k AddressKey) String() string {
	return string(k.Field) + " " + wire.Quote(k.Value)
}

func From(s string) AddressKey { return AddressKey{Field: FieldFrom, Value: s} }
func To(s string) AddressKey   { return AddressKey{Field: FieldTo, Value: s} }
func Cc(s string) AddressKey   { return AddressKey{Field: FieldCc, Value: s} }
func Bcc(s string) AddressKey  { return AddressKey{Field: FieldBcc, Value: s} }

// DateField is a search key comparing the internal date of a message.
type DateField string

const (
	FieldSince  DateField = "SINCE"
	FieldBefore DateField = "BEFORE"
	FieldOn     DateField = "ON"
)

func (f DateField) valid() bool {
	switch f {
	case FieldSince, FieldBefore, FieldOn:
		return true
	}
	return false
}

// DateKey compares against the calendar date of Value, in Value's own
// location. The time of day is never sent.
type DateKey struct {
	Field DateField
	Value time.Time
}

func (k DateKey) String() string {
	return string(k.Field) + " " + wire.Quote(k.Value.Format(imap.SearchDateLayout))
}

func Since(t time.Time) DateKey  { return DateKey{Field: FieldSince, Value: t} }
func Before(t time.Time) DateKey { return DateKey{Field: FieldBefore, Value: t} }
func On(t time.Time) DateKey     { return DateKey{Field: FieldOn, Value: t} }

// FlagKey is a search key without an argument.
type FlagKey string

const (
	Answered   FlagKey = "ANSWERED"
	Flagged    FlagKey = "FLAGGED"
	Recent     FlagKey = "RECENT"
	Seen       FlagKey = "SEEN"
	Unanswered FlagKey = "UNANSWERED"
	Unflagged  FlagKey = "UNFLAGGED"
	Unseen     FlagKey = "UNSEEN"
	Deleted    FlagKey = "DELETED"
	Undeleted  FlagKey = "UNDELETED"
	New        FlagKey = "NEW"
	Old        FlagKey = "OLD"
)

func (k FlagKey) String() string { return string(k) }

func (k FlagKey) valid() bool {
	switch k {
	case Answered, Flagged, Recent, Seen, Unanswered, Unflagged, Unseen, Deleted, Undeleted, New, Old:
		return true
	}
	return false
}

// Raw is sent exactly as written. It is the escape hatch for grammar this
// package does not model; the caller is responsible for its syntax.
type Raw string

func (r Raw) String() string { return string(r) }

// All matches every message.
type All struct{}

func (All) String() string { return "ALL" }

// OrKey matches messages matching either side.
type OrKey struct {
	Left, Right Criterion
}

// Or returns a criterion matching a or b.
func Or(a, b Criterion) OrKey { return OrKey{Left: a, Right: b} }

func (k OrKey) String() string {
	return "OR " + wrap(k.Left) + " " + wrap(k.Right)
}

// NotKey matches messages that do not match Criterion.
type NotKey struct {
	Criterion Criterion
}

// Not returns a criterion matching messages that do not match c.
func Not(c Criterion) NotKey { return NotKey{Criterion: c} }

func (k NotKey) String() string { return "NOT " + wrap(k.Criterion) }

// HeaderKey matches messages with header Name containing Value.
type HeaderKey struct {
	Name, Value string
}

// Header returns a criterion on an arbitrary header field.
func Header(name, value string) HeaderKey { return HeaderKey{Name: name, Value: value} }

func (k HeaderKey) String() string {
	return "HEADER " + wire.Quote(k.Name) + " " + wire.Quote(k.Value)
}

// SizeKey compares the RFC 822 size of a message.
type SizeKey struct {
	// Larger selects LARGER; otherwise SMALLER.
	Larger bool
	Size   uint32
}

// Larger matches messages bigger than n octets.
func Larger(n uint32) SizeKey { return SizeKey{Larger: true, Size: n} }

// Smaller matches messages smaller than n octets.
func Smaller(n uint32) SizeKey { return SizeKey{Size: n} }

func (k SizeKey) String() string {
	if k.Larger {
		return "LARGER " + strconv.FormatUint(uint64(k.Size), 10)
	}
	return "SMALLER " + strconv.FormatUint(uint64(k.Size), 10)
}

// UIDKey matches messages whose UID is in Set.
type UIDKey struct {
	Set *imap.UIDSet
}

// UIDs returns a criterion restricting the search to set.
func UIDs(set *imap.UIDSet) UIDKey { return UIDKey{Set: set} }

func (k UIDKey) String() string {
	if k.Set == nil {
		return "UID"
	}
	return "UID " + k.Set.String()
}

// wrap parenthesizes a criterion whose text is more than one token.
func wrap(c Criterion) string {
	if c == nil {
		return "()"
	}
	s := c.String()
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			return "(" + s + ")"
		}
	}
	return s
}
