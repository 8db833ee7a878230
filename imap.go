// Package imap holds the protocol types shared by the mailbox layer.
//
// It covers the pieces of IMAP4rev1 (RFC 3501) that a mailbox client needs
// to build commands and interpret responses: flags, UID sets and their
// normalization, sort keys, thread responses and fetched message data. The
// package performs no I/O.
package imap

import (
	"fmt"
	"strings"
	"time"
)

// ConnState represents the state of an IMAP connection.
type ConnState int

const (
	// ConnStateNotAuthenticated is the state before authentication.
	ConnStateNotAuthenticated ConnState = iota
	// ConnStateAuthenticated is the state after successful authentication.
	ConnStateAuthenticated
	// ConnStateSelected is the state after a mailbox has been selected.
	ConnStateSelected
	// ConnStateLogout is the state after the LOGOUT command.
	ConnStateLogout
)

// String returns the string representation of the connection state.
func (s ConnState) String() string {
	switch s {
	case ConnStateNotAuthenticated:
		return "not authenticated"
	case ConnStateAuthenticated:
		return "authenticated"
	case ConnStateSelected:
		return "selected"
	case ConnStateLogout:
		return "logout"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Flag represents an IMAP message flag.
type Flag string

// Standard message flags.
const (
	FlagSeen     Flag = "\\Seen"
	FlagAnswered Flag = "\\Answered"
	FlagFlagged  Flag = "\\Flagged"
	FlagDeleted  Flag = "\\Deleted"
	FlagDraft    Flag = "\\Draft"
	FlagRecent   Flag = "\\Recent"
)

// InternalDateLayout is the date-time of INTERNALDATE. The day is space
// padded; parsing also accepts two digits.
const InternalDateLayout = "_2-Jan-2006 15:04:05 -0700"

// SearchDateLayout is the format used for dates in SEARCH keys.
const SearchDateLayout = "2-Jan-2006"

// MessageData is the subset of FETCH data a message handle exposes.
type MessageData struct {
	UID          UID
	Flags        []Flag
	Subject      string
	InternalDate time.Time
	Size         int64
}

// HasFlag reports whether the message carries flag f. Comparison is
// case-insensitive, as flags are atoms.
func (d *MessageData) HasFlag(f Flag) bool {
	for _, have := range d.Flags {
		if strings.EqualFold(string(have), string(f)) {
			return true
		}
	}
	return false
}

