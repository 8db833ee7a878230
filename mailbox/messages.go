package mailbox

import (
	"fmt"
	"strconv"

	imap "github.com/meszmate/imap-mailbox"
)

// Messages is the lazy result of a search. Ids are fixed when the search
// returns; message data is fetched one message per Next call. A Messages
// value is consumed once and cannot be rewound.
//
//	msgs, err := mbox.Messages(search.Unseen, nil)
//	if err != nil {
//		return err
//	}
//	for msgs.Next() {
//		subject, _ := msgs.Message().Subject()
//		fmt.Println(subject)
//	}
//	if err := msgs.Err(); err != nil {
//		return err
//	}
type Messages struct {
	mailbox *Mailbox
	uids    []imap.UID
	pos     int
	current *Message
	err     error
}

func newMessages(m *Mailbox, uids []imap.UID) *Messages {
	return &Messages{mailbox: m, uids: uids}
}

// Len returns the number of ids in the result.
func (ms *Messages) Len() int {
	return len(ms.uids)
}

// UIDs returns a copy of the ids in result order.
func (ms *Messages) UIDs() []imap.UID {
	out := make([]imap.UID, len(ms.uids))
	copy(out, ms.uids)
	return out
}

// Next fetches the next message. It returns false at the end of the
// result or on error; check Err afterwards.
func (ms *Messages) Next() bool {
	if ms.err != nil || ms.pos >= len(ms.uids) {
		ms.current = nil
		return false
	}
	uid := ms.uids[ms.pos]
	ms.pos++

	if err := ms.mailbox.init(); err != nil {
		ms.err = err
		ms.current = nil
		return false
	}
	data, err := ms.mailbox.transport.FetchMessage(uid)
	if err != nil {
		ms.err = fmt.Errorf("uid fetch %d: %w", uid, err)
		ms.current = nil
		return false
	}
	if data == nil {
		ms.err = notFound(uid)
		ms.current = nil
		return false
	}
	ms.current = &Message{uid: uid, mailbox: ms.mailbox, data: data}
	return true
}

// Message returns the message fetched by the last successful Next.
func (ms *Messages) Message() *Message {
	return ms.current
}

// Err returns the error that stopped iteration, if any.
func (ms *Messages) Err() error {
	return ms.err
}

func notFound(uid imap.UID) error {
	return fmt.Errorf("%w: message %q does not exist", imap.ErrMessageNotFound, strconv.FormatUint(uint64(uid), 10))
}
