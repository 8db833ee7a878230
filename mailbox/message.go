package mailbox

import (
	"fmt"
	"strings"
	"time"

	imap "github.com/meszmate/imap-mailbox"
)

// Message is a handle on one message. Its data is fetched on first access
// and cached; a handle obtained from Messages is already loaded.
type Message struct {
	uid     imap.UID
	mailbox *Mailbox
	data    *imap.MessageData
}

// UID returns the message UID. It never causes a fetch.
func (msg *Message) UID() imap.UID {
	return msg.uid
}

// Mailbox returns the mailbox the handle belongs to.
func (msg *Message) Mailbox() *Mailbox {
	return msg.mailbox
}

func (msg *Message) load() (*imap.MessageData, error) {
	if msg.data != nil {
		return msg.data, nil
	}
	if err := msg.mailbox.init(); err != nil {
		return nil, err
	}
	data, err := msg.mailbox.transport.FetchMessage(msg.uid)
	if err != nil {
		return nil, fmt.Errorf("uid fetch %d: %w", msg.uid, err)
	}
	if data == nil {
		return nil, notFound(msg.uid)
	}
	msg.data = data
	return data, nil
}

// Subject returns the decoded Subject header.
func (msg *Message) Subject() (string, error) {
	data, err := msg.load()
	if err != nil {
		return "", err
	}
	return data.Subject, nil
}

// Flags returns the flags as last fetched.
func (msg *Message) Flags() ([]imap.Flag, error) {
	data, err := msg.load()
	if err != nil {
		return nil, err
	}
	out := make([]imap.Flag, len(data.Flags))
	copy(out, data.Flags)
	return out, nil
}

// HasFlag reports whether flag is set.
func (msg *Message) HasFlag(flag imap.Flag) (bool, error) {
	data, err := msg.load()
	if err != nil {
		return false, err
	}
	return data.HasFlag(flag), nil
}

func (msg *Message) IsSeen() (bool, error)     { return msg.HasFlag(imap.FlagSeen) }
func (msg *Message) IsFlagged() (bool, error)  { return msg.HasFlag(imap.FlagFlagged) }
func (msg *Message) IsAnswered() (bool, error) { return msg.HasFlag(imap.FlagAnswered) }
func (msg *Message) IsDeleted() (bool, error)  { return msg.HasFlag(imap.FlagDeleted) }
func (msg *Message) IsDraft() (bool, error)    { return msg.HasFlag(imap.FlagDraft) }
func (msg *Message) IsRecent() (bool, error)   { return msg.HasFlag(imap.FlagRecent) }

// Size returns the RFC 822 size in octets.
func (msg *Message) Size() (int64, error) {
	data, err := msg.load()
	if err != nil {
		return 0, err
	}
	return data.Size, nil
}

// InternalDate returns the date the server received the message.
func (msg *Message) InternalDate() (time.Time, error) {
	data, err := msg.load()
	if err != nil {
		return time.Time{}, err
	}
	return data.InternalDate, nil
}

// SetFlag adds flag to this message. A cached copy of the flags is updated
// to match.
func (msg *Message) SetFlag(flag imap.Flag) error {
	if err := msg.mailbox.SetFlag(flag, msg.uid); err != nil {
		return err
	}
	if msg.data != nil && !msg.data.HasFlag(flag) {
		msg.data.Flags = append(msg.data.Flags, flag)
	}
	return nil
}

// ClearFlag removes flag from this message.
func (msg *Message) ClearFlag(flag imap.Flag) error {
	if err := msg.mailbox.ClearFlag(flag, msg.uid); err != nil {
		return err
	}
	if msg.data != nil {
		kept := msg.data.Flags[:0]
		for _, f := range msg.data.Flags {
			if !strings.EqualFold(string(f), string(flag)) {
				kept = append(kept, f)
			}
		}
		msg.data.Flags = kept
	}
	return nil
}

// MarkAsSeen sets \Seen.
func (msg *Message) MarkAsSeen() error {
	return msg.SetFlag(imap.FlagSeen)
}

// Delete marks the message \Deleted. It is removed at the next expunge.
func (msg *Message) Delete() error {
	return msg.SetFlag(imap.FlagDeleted)
}

// Copy copies the message to dest, a mailbox name or *Mailbox.
func (msg *Message) Copy(dest any) error {
	return msg.mailbox.Copy(msg.uid, dest)
}

// Move moves the message to dest, a mailbox name or *Mailbox.
func (msg *Message) Move(dest any) error {
	return msg.mailbox.Move(msg.uid, dest)
}
