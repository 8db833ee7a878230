// Package imaptest provides test infrastructure for the mailbox layer: an
// in-memory multi-mailbox Backend whose sessions implement
// mailbox.Transport, and a Server that exposes a Backend over the IMAP
// wire protocol so the client package can be tested end to end.
package imaptest

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	imap "github.com/meszmate/imap-mailbox"
	"github.com/meszmate/imap-mailbox/mailbox"
)

// Message is a message stored in a Backend.
type Message struct {
	UID          imap.UID
	Subject      string
	From         string
	To           string
	Cc           string
	Bcc          string
	Header       map[string]string
	Body         string
	Flags        []imap.Flag
	InternalDate time.Time
}

// RFC822 renders the message as it would be stored on disk.
func (m *Message) RFC822() string {
	var b strings.Builder
	writeHeader := func(name, value string) {
		if value != "" {
			b.WriteString(name + ": " + value + "\r\n")
		}
	}
	writeHeader("From", m.From)
	writeHeader("To", m.To)
	writeHeader("Cc", m.Cc)
	writeHeader("Subject", m.Subject)
	names := make([]string, 0, len(m.Header))
	for name := range m.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		writeHeader(name, m.Header[name])
	}
	b.WriteString("\r\n")
	b.WriteString(m.Body)
	return b.String()
}

func (m *Message) hasFlag(f imap.Flag) bool {
	return hasFlag(m.Flags, f)
}

func hasFlag(flags []imap.Flag, f imap.Flag) bool {
	for _, have := range flags {
		if strings.EqualFold(string(have), string(f)) {
			return true
		}
	}
	return false
}

func (m *Message) header(name string) (string, bool) {
	switch strings.ToLower(name) {
	case "subject":
		return m.Subject, true
	case "from":
		return m.From, true
	case "to":
		return m.To, true
	case "cc":
		return m.Cc, true
	case "bcc":
		return m.Bcc, true
	}
	for k, v := range m.Header {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

func (m *Message) clone() *Message {
	c := *m
	c.Flags = append([]imap.Flag(nil), m.Flags...)
	if m.Header != nil {
		c.Header = make(map[string]string, len(m.Header))
		for k, v := range m.Header {
			c.Header[k] = v
		}
	}
	return &c
}

type mailboxData struct {
	name        string
	uidValidity uint32
	uidNext     imap.UID
	messages    []*Message
}

func (mb *mailboxData) maxUID() imap.UID {
	if len(mb.messages) == 0 {
		return 0
	}
	return mb.messages[len(mb.messages)-1].UID
}

func (mb *mailboxData) position(i int) position {
	return position{seq: uint32(i + 1), count: uint32(len(mb.messages)), maxUID: mb.maxUID()}
}

func (mb *mailboxData) find(uid imap.UID) (int, *Message) {
	i := sort.Search(len(mb.messages), func(i int) bool { return mb.messages[i].UID >= uid })
	if i < len(mb.messages) && mb.messages[i].UID == uid {
		return i, mb.messages[i]
	}
	return -1, nil
}

func (mb *mailboxData) add(msg *Message) imap.UID {
	msg.UID = mb.uidNext
	mb.uidNext++
	mb.messages = append(mb.messages, msg)
	return msg.UID
}

// Backend is an in-memory message store holding any number of mailboxes.
// It is safe for concurrent use by several sessions.
type Backend struct {
	mu        sync.Mutex
	mailboxes map[string]*mailboxData
	users     map[string]string
	validity  uint32
}

// NewBackend returns a Backend holding an empty INBOX.
func NewBackend() *Backend {
	b := &Backend{
		mailboxes: make(map[string]*mailboxData),
		users:     make(map[string]string),
	}
	_ = b.CreateMailbox("INBOX")
	return b
}

func canonicalName(name string) string {
	if strings.EqualFold(name, "INBOX") {
		return "INBOX"
	}
	return name
}

// AddUser registers a login. A Backend without users accepts any login.
func (b *Backend) AddUser(username, password string) {
	b.mu.Lock()
	b.users[username] = password
	b.mu.Unlock()
}

func (b *Backend) checkLogin(username, password string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.users) == 0 {
		return nil
	}
	if pass, ok := b.users[username]; ok && pass == password {
		return nil
	}
	return imap.ErrNoWithCode("AUTHENTICATIONFAILED", "Invalid credentials")
}

// CreateMailbox creates an empty mailbox.
func (b *Backend) CreateMailbox(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	name = canonicalName(name)
	if name == "" {
		return imap.ErrBad("Empty mailbox name")
	}
	if _, ok := b.mailboxes[name]; ok {
		return imap.ErrNoWithCode("ALREADYEXISTS", "Mailbox already exists")
	}
	b.validity++
	b.mailboxes[name] = &mailboxData{name: name, uidValidity: b.validity, uidNext: 1}
	return nil
}

// DeleteMailbox removes a mailbox and its messages.
func (b *Backend) DeleteMailbox(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	name = canonicalName(name)
	if name == "INBOX" {
		return imap.ErrNo("Cannot delete INBOX")
	}
	if _, ok := b.mailboxes[name]; !ok {
		return imap.ErrNoWithCode(imap.ResponseCodeNonExistent, "Mailbox does not exist")
	}
	delete(b.mailboxes, name)
	return nil
}

// Append stores a copy of msg in the named mailbox and returns its UID.
// A zero InternalDate is replaced by the current time.
func (b *Backend) Append(name string, msg Message) (imap.UID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	mb, err := b.lookup(name)
	if err != nil {
		return 0, err
	}
	stored := msg.clone()
	if stored.InternalDate.IsZero() {
		stored.InternalDate = time.Now()
	}
	return mb.add(stored), nil
}

// Messages returns copies of the messages in the named mailbox, in UID
// order. It returns nil for a mailbox that does not exist.
func (b *Backend) Messages(name string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	mb, err := b.lookup(name)
	if err != nil {
		return nil
	}
	out := make([]Message, len(mb.messages))
	for i, m := range mb.messages {
		out[i] = *m.clone()
	}
	return out
}

// Mailboxes returns the mailbox names in sorted order.
func (b *Backend) Mailboxes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.mailboxes))
	for name := range b.mailboxes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// lookup requires b.mu.
func (b *Backend) lookup(name string) (*mailboxData, error) {
	mb, ok := b.mailboxes[canonicalName(name)]
	if !ok {
		return nil, imap.ErrNoWithCode(imap.ResponseCodeNonExistent, fmt.Sprintf("Mailbox %q does not exist", name))
	}
	return mb, nil
}

// Session returns a new session on b with no mailbox selected.
func (b *Backend) Session() *Session {
	return &Session{backend: b}
}

// Session is one client's view of a Backend: it tracks the selected
// mailbox and implements mailbox.Transport against it.
type Session struct {
	backend  *Backend
	selected string
}

var (
	_ mailbox.Transport = (*Session)(nil)
	_ mailbox.Selector  = (*Session)(nil)
)

// SelectMailbox makes name the mailbox later commands act on.
func (s *Session) SelectMailbox(name string) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	mb, err := s.backend.lookup(name)
	if err != nil {
		return err
	}
	s.selected = mb.name
	return nil
}

// Selected returns the selected mailbox name, or "" if none.
func (s *Session) Selected() string {
	return s.selected
}

// current requires backend.mu.
func (s *Session) current() (*mailboxData, error) {
	if s.selected == "" {
		return nil, imap.ErrBad("No mailbox selected")
	}
	mb, ok := s.backend.mailboxes[s.selected]
	if !ok {
		return nil, imap.ErrNoWithCode(imap.ResponseCodeNonExistent, "Selected mailbox was deleted")
	}
	return mb, nil
}

// Status reports the message count, UIDVALIDITY and UIDNEXT of the
// selected mailbox.
func (s *Session) Status() (messages int, uidValidity uint32, uidNext imap.UID, err error) {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	mb, err := s.current()
	if err != nil {
		return 0, 0, 0, err
	}
	return len(mb.messages), mb.uidValidity, mb.uidNext, nil
}

// UIDSearch evaluates SEARCH arguments, including an optional CHARSET
// prefix, and returns matching UIDs in ascending order.
func (s *Session) UIDSearch(args string) ([]imap.UID, error) {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	mb, err := s.current()
	if err != nil {
		return nil, err
	}
	match, err := parseSearchArgs(args)
	if err != nil {
		return nil, err
	}
	return filter(mb, match), nil
}

// UIDSort evaluates SORT arguments: a parenthesized sort program, a
// charset and search criteria.
func (s *Session) UIDSort(args string) ([]imap.UID, error) {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	mb, err := s.current()
	if err != nil {
		return nil, err
	}
	program, match, err := parseSortArgs(args)
	if err != nil {
		return nil, err
	}
	var msgs []*Message
	for i, m := range mb.messages {
		if match(m, mb.position(i)) {
			msgs = append(msgs, m)
		}
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return program.less(msgs[i], msgs[j])
	})
	uids := make([]imap.UID, len(msgs))
	for i, m := range msgs {
		uids[i] = m.UID
	}
	return uids, nil
}

// UIDStore changes flags on the messages in set. item is FLAGS, +FLAGS or
// -FLAGS, optionally with .SILENT.
func (s *Session) UIDStore(set, item, flags string) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	mb, err := s.current()
	if err != nil {
		return err
	}
	uids, err := imap.ParseUIDSet(set)
	if err != nil {
		return imap.ErrBad("Invalid UID set")
	}
	action, err := parseStoreItem(item)
	if err != nil {
		return err
	}
	list, err := parseFlagList(flags)
	if err != nil {
		return err
	}
	for _, m := range mb.messages {
		if !uids.Contains(uint32(m.UID), uint32(mb.maxUID())) {
			continue
		}
		m.Flags = applyFlags(m.Flags, action, list)
	}
	return nil
}

// UIDCopy copies the messages in set to dest.
func (s *Session) UIDCopy(set, dest string) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	_, err := s.transfer(set, dest, false)
	return err
}

// UIDMove moves the messages in set to dest.
func (s *Session) UIDMove(set, dest string) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	_, err := s.transfer(set, dest, true)
	return err
}

// transfer requires backend.mu.
func (s *Session) transfer(set, dest string, move bool) ([]imap.UID, error) {
	mb, err := s.current()
	if err != nil {
		return nil, err
	}
	target, ok := s.backend.mailboxes[canonicalName(dest)]
	if !ok {
		return nil, imap.ErrNoWithCode(imap.ResponseCodeTryCreate, "Mailbox does not exist")
	}
	uids, err := imap.ParseUIDSet(set)
	if err != nil {
		return nil, imap.ErrBad("Invalid UID set")
	}
	var copied []imap.UID
	kept := mb.messages[:0:0]
	for _, m := range mb.messages {
		if !uids.Contains(uint32(m.UID), uint32(mb.maxUID())) {
			kept = append(kept, m)
			continue
		}
		copied = append(copied, target.add(m.clone()))
		if !move {
			kept = append(kept, m)
		}
	}
	mb.messages = kept
	return copied, nil
}

// UIDThread evaluates THREAD arguments and returns the untagged THREAD
// response text. Both algorithms group messages by base subject, ordered
// by internal date.
func (s *Session) UIDThread(args string) (string, error) {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	mb, err := s.current()
	if err != nil {
		return "", err
	}
	match, err := parseThreadArgs(args)
	if err != nil {
		return "", err
	}
	return threadBySubject(mb, match), nil
}

// FetchMessage returns the data of uid, or nil if there is no such message.
func (s *Session) FetchMessage(uid imap.UID) (*imap.MessageData, error) {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	mb, err := s.current()
	if err != nil {
		return nil, err
	}
	_, m := mb.find(uid)
	if m == nil {
		return nil, nil
	}
	return &imap.MessageData{
		UID:          m.UID,
		Flags:        append([]imap.Flag(nil), m.Flags...),
		Subject:      m.Subject,
		InternalDate: m.InternalDate,
		Size:         int64(len(m.RFC822())),
	}, nil
}

// seqNum returns the sequence number of uid in the selected mailbox.
func (s *Session) seqNum(uid imap.UID) uint32 {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	mb, err := s.current()
	if err != nil {
		return 0
	}
	i, _ := mb.find(uid)
	return uint32(i + 1)
}

// Expunge removes messages flagged \Deleted from the selected mailbox.
// A non-nil set limits removal to those UIDs, as UID EXPUNGE does. The
// result holds one sequence number per removed message, each relative to
// the mailbox after the removals before it.
func (s *Session) Expunge(set *imap.UIDSet) ([]uint32, error) {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	mb, err := s.current()
	if err != nil {
		return nil, err
	}
	var gone []uint32
	last := uint32(mb.maxUID())
	kept := mb.messages[:0:0]
	for i, m := range mb.messages {
		if m.hasFlag(imap.FlagDeleted) && (set == nil || set.Contains(uint32(m.UID), last)) {
			gone = append(gone, uint32(i+1-len(gone)))
			continue
		}
		kept = append(kept, m)
	}
	mb.messages = kept
	return gone, nil
}

func filter(mb *mailboxData, match matcher) []imap.UID {
	var uids []imap.UID
	for i, m := range mb.messages {
		if match(m, mb.position(i)) {
			uids = append(uids, m.UID)
		}
	}
	return uids
}

func applyFlags(have []imap.Flag, action imap.StoreAction, list []imap.Flag) []imap.Flag {
	switch action {
	case imap.StoreFlagsSet:
		return append([]imap.Flag(nil), list...)
	case imap.StoreFlagsAdd:
		for _, f := range list {
			if !hasFlag(have, f) {
				have = append(have, f)
			}
		}
		return have
	default:
		kept := have[:0]
		for _, f := range have {
			if !hasFlag(list, f) {
				kept = append(kept, f)
			}
		}
		return kept
	}
}
