// Package mock provides mock implementations for testing.
package mock

import (
	"sync"

	imap "github.com/meszmate/imap-mailbox"
	"github.com/meszmate/imap-mailbox/mailbox"
)

// Transport is a mock implementation of mailbox.Transport.
// Each method has a corresponding Func field that can be set for testing.
// Every call is recorded by method name in Calls, whether or not a Func is
// set.
type Transport struct {
	UIDSearchFunc     func(args string) ([]imap.UID, error)
	UIDSortFunc       func(args string) ([]imap.UID, error)
	UIDStoreFunc      func(set, item, flags string) error
	UIDCopyFunc       func(set, dest string) error
	UIDMoveFunc       func(set, dest string) error
	UIDThreadFunc     func(args string) (string, error)
	FetchMessageFunc  func(uid imap.UID) (*imap.MessageData, error)
	SelectMailboxFunc func(name string) error

	mu    sync.Mutex
	calls []string
}

// Ensure Transport implements mailbox.Transport and mailbox.Selector.
var (
	_ mailbox.Transport = (*Transport)(nil)
	_ mailbox.Selector  = (*Transport)(nil)
)

func (t *Transport) record(name string) {
	t.mu.Lock()
	t.calls = append(t.calls, name)
	t.mu.Unlock()
}

// Calls returns the recorded method names in call order.
func (t *Transport) Calls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.calls))
	copy(out, t.calls)
	return out
}

// CallCount returns how many times the named method was called.
func (t *Transport) CallCount(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (t *Transport) UIDSearch(args string) ([]imap.UID, error) {
	t.record("UIDSearch")
	if t.UIDSearchFunc != nil {
		return t.UIDSearchFunc(args)
	}
	return nil, nil
}

func (t *Transport) UIDSort(args string) ([]imap.UID, error) {
	t.record("UIDSort")
	if t.UIDSortFunc != nil {
		return t.UIDSortFunc(args)
	}
	return nil, imap.ErrNo("SORT not implemented")
}

func (t *Transport) UIDStore(set, item, flags string) error {
	t.record("UIDStore")
	if t.UIDStoreFunc != nil {
		return t.UIDStoreFunc(set, item, flags)
	}
	return nil
}

func (t *Transport) UIDCopy(set, dest string) error {
	t.record("UIDCopy")
	if t.UIDCopyFunc != nil {
		return t.UIDCopyFunc(set, dest)
	}
	return imap.ErrNo("COPY not implemented")
}

func (t *Transport) UIDMove(set, dest string) error {
	t.record("UIDMove")
	if t.UIDMoveFunc != nil {
		return t.UIDMoveFunc(set, dest)
	}
	return imap.ErrNo("MOVE not implemented")
}

func (t *Transport) UIDThread(args string) (string, error) {
	t.record("UIDThread")
	if t.UIDThreadFunc != nil {
		return t.UIDThreadFunc(args)
	}
	return "", imap.ErrNo("THREAD not implemented")
}

func (t *Transport) FetchMessage(uid imap.UID) (*imap.MessageData, error) {
	t.record("FetchMessage")
	if t.FetchMessageFunc != nil {
		return t.FetchMessageFunc(uid)
	}
	return nil, nil
}

func (t *Transport) SelectMailbox(name string) error {
	t.record("SelectMailbox")
	if t.SelectMailboxFunc != nil {
		return t.SelectMailboxFunc(name)
	}
	return nil
}
