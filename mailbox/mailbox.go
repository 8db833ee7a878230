// Package mailbox is the application-facing view of one IMAP mailbox:
// searching and sorting messages, bulk flag changes, copy and move, and
// conversation threads.
//
// A Mailbox performs no I/O of its own. Every server round trip goes
// through a Transport, which the client package implements over a real
// connection and the imaptest package implements in memory.
package mailbox

import (
	"errors"
	"fmt"
	"strings"

	imap "github.com/meszmate/imap-mailbox"
	"github.com/meszmate/imap-mailbox/search"
	"github.com/meszmate/imap-mailbox/wire"
)

// Transport is the command surface a Mailbox needs. All ids are UIDs and
// all arguments arrive fully formatted.
type Transport interface {
	UIDSearch(args string) ([]imap.UID, error)
	UIDSort(args string) ([]imap.UID, error)
	UIDStore(set, item, flags string) error
	UIDCopy(set, dest string) error
	UIDMove(set, dest string) error
	UIDThread(args string) (string, error)
	// FetchMessage returns nil, nil when uid does not exist.
	FetchMessage(uid imap.UID) (*imap.MessageData, error)
}

// Selector is implemented by transports that serve several mailboxes over
// one session. A Mailbox calls SelectMailbox before each command; the
// transport should make it cheap when name is already selected.
type Selector interface {
	SelectMailbox(name string) error
}

// Mailbox is a handle on one mailbox reachable through a Transport.
type Mailbox struct {
	name      string
	transport Transport
	options   *Options
}

// New returns a handle on the mailbox called name.
func New(t Transport, name string, opts ...Option) *Mailbox {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return &Mailbox{name: name, transport: t, options: options}
}

// Name returns the mailbox name.
func (m *Mailbox) Name() string {
	return m.name
}

// SearchOptions controls ordering and charset of Messages.
type SearchOptions struct {
	// Sort orders the result on the server. Empty means server order.
	Sort imap.SortKey
	// Reverse sorts descending.
	Reverse bool
	// Charset overrides the mailbox default search charset.
	Charset string
}

// Messages returns the messages matching c, which may be nil to select
// all. The criteria are validated and serialized before anything is sent;
// exactly one SEARCH or SORT is issued and message data is fetched lazily
// as the result is iterated.
func (m *Mailbox) Messages(c search.Criterion, opts *SearchOptions) (*Messages, error) {
	q := search.Query{Criteria: c, Charset: m.options.Charset}
	if opts != nil {
		q.Sort = opts.Sort
		q.Reverse = opts.Reverse
		if opts.Charset != "" {
			q.Charset = opts.Charset
		}
	}
	cmd, err := q.Command()
	if err != nil {
		return nil, err
	}
	if err := m.init(); err != nil {
		return nil, err
	}

	m.options.Logger.Debug("search", "mailbox", m.name, "command", cmd.Name, "args", cmd.Args)

	var uids []imap.UID
	if cmd.Sorted() {
		uids, err = m.transport.UIDSort(cmd.Args)
	} else {
		uids, err = m.transport.UIDSearch(cmd.Args)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", strings.ToLower(cmd.Name), err)
	}
	return newMessages(m, uids), nil
}

// All returns every message in server order.
func (m *Mailbox) All() (*Messages, error) {
	return m.Messages(nil, nil)
}

// Count returns the number of messages in the mailbox.
func (m *Mailbox) Count() (int, error) {
	if err := m.init(); err != nil {
		return 0, err
	}
	uids, err := m.transport.UIDSearch("ALL")
	if err != nil {
		return 0, fmt.Errorf("uid search: %w", err)
	}
	return len(uids), nil
}

// MessageSequence returns the messages whose UIDs are in set, such as
// "1:*" or "3,7:9". The set is validated before anything is sent; UIDs
// that do not exist are simply absent from the result.
func (m *Mailbox) MessageSequence(set string) (*Messages, error) {
	uids, err := imap.NormalizeUIDs(set)
	if err != nil {
		return nil, err
	}
	if err := m.init(); err != nil {
		return nil, err
	}
	found, err := m.transport.UIDSearch("UID " + uids.String())
	if err != nil {
		return nil, fmt.Errorf("uid search: %w", err)
	}
	return newMessages(m, found), nil
}

// Message returns a lazy handle on uid. Nothing is fetched until a
// property is read.
func (m *Mailbox) Message(uid imap.UID) *Message {
	return &Message{uid: uid, mailbox: m}
}

// SetFlag adds flag to every message in ids with a single STORE.
// ids is anything NormalizeIDs accepts.
func (m *Mailbox) SetFlag(flag imap.Flag, ids any) error {
	return m.store(imap.StoreFlagsAdd, flag, ids)
}

// ClearFlag removes flag from every message in ids with a single STORE.
func (m *Mailbox) ClearFlag(flag imap.Flag, ids any) error {
	return m.store(imap.StoreFlagsDel, flag, ids)
}

func (m *Mailbox) store(action imap.StoreAction, flag imap.Flag, ids any) error {
	if err := checkFlag(flag); err != nil {
		return err
	}
	set, err := NormalizeIDs(ids)
	if err != nil {
		return err
	}
	if err := m.init(); err != nil {
		return err
	}
	if err := m.transport.UIDStore(set.String(), action.Item(true), imap.FlagList(flag)); err != nil {
		return fmt.Errorf("uid store: %w", err)
	}
	return nil
}

// Copy copies ids to dest, which is a mailbox name or a *Mailbox.
func (m *Mailbox) Copy(ids any, dest any) error {
	set, name, err := m.transfer(ids, dest)
	if err != nil {
		return err
	}
	if err := m.transport.UIDCopy(set, name); err != nil {
		return fmt.Errorf("%w: to %q: %w", imap.ErrMessageCopyFailed, name, err)
	}
	return nil
}

// Move moves ids to dest, which is a mailbox name or a *Mailbox.
func (m *Mailbox) Move(ids any, dest any) error {
	set, name, err := m.transfer(ids, dest)
	if err != nil {
		return err
	}
	if err := m.transport.UIDMove(set, name); err != nil {
		return fmt.Errorf("%w: to %q: %w", imap.ErrMessageMoveFailed, name, err)
	}
	return nil
}

func (m *Mailbox) transfer(ids any, dest any) (set, name string, err error) {
	uids, err := NormalizeIDs(ids)
	if err != nil {
		return "", "", err
	}
	switch d := dest.(type) {
	case string:
		name = d
	case *Mailbox:
		if d == nil {
			return "", "", errors.New("mailbox: nil destination")
		}
		name = d.name
	default:
		return "", "", fmt.Errorf("mailbox: unsupported destination %T", dest)
	}
	if name == "" {
		return "", "", errors.New("mailbox: empty destination name")
	}
	if err := m.init(); err != nil {
		return "", "", err
	}
	return uids.String(), name, nil
}

// Thread returns the conversation threads of the mailbox, flattened into
// linked nodes by imap.DecodeThread.
func (m *Mailbox) Thread() ([]imap.ThreadNode, error) {
	args, err := search.ThreadArgs(m.options.ThreadAlgorithm, nil, m.options.Charset)
	if err != nil {
		return nil, err
	}
	if err := m.init(); err != nil {
		return nil, err
	}
	raw, err := m.transport.UIDThread(args)
	if err != nil {
		return nil, fmt.Errorf("uid thread: %w", err)
	}
	return imap.DecodeThread(raw)
}

// init makes this mailbox the current one on transports that multiplex.
func (m *Mailbox) init() error {
	sel, ok := m.transport.(Selector)
	if !ok {
		return nil
	}
	if err := sel.SelectMailbox(m.name); err != nil {
		return fmt.Errorf("select %q: %w", m.name, err)
	}
	return nil
}

// NormalizeIDs extends imap.NormalizeUIDs with the handles of this package:
// a *Messages result, a *Message, or a []*Message.
func NormalizeIDs(ids any) (*imap.UIDSet, error) {
	switch v := ids.(type) {
	case *Messages:
		if v == nil {
			return nil, fmt.Errorf("%w: nil message list", imap.ErrInvalidSearchCriteria)
		}
		return imap.NormalizeUIDs(v.UIDs())
	case *Message:
		if v == nil {
			return nil, fmt.Errorf("%w: nil message", imap.ErrInvalidSearchCriteria)
		}
		return imap.NormalizeUIDs(v.uid)
	case []*Message:
		uids := make([]imap.UID, 0, len(v))
		for _, msg := range v {
			if msg == nil {
				return nil, fmt.Errorf("%w: nil message", imap.ErrInvalidSearchCriteria)
			}
			uids = append(uids, msg.uid)
		}
		return imap.NormalizeUIDs(uids)
	default:
		return imap.NormalizeUIDs(ids)
	}
}

func checkFlag(flag imap.Flag) error {
	name := strings.TrimPrefix(string(flag), `\`)
	if name == "" || wire.NeedsQuoting(name) {
		return fmt.Errorf("%w: malformed flag %q", imap.ErrInvalidSearchCriteria, flag)
	}
	return nil
}
