// Package middleware decorates a mailbox.Transport with cross-cutting
// concerns like logging, metrics, rate limiting and panic recovery.
//
// Every transport method becomes a Call that flows through the handler
// chain; the innermost handler performs the real round trip.
package middleware

import (
	"strconv"

	imap "github.com/meszmate/imap-mailbox"
	"github.com/meszmate/imap-mailbox/mailbox"
)

// Call describes one transport command as it passes through the chain.
type Call struct {
	// Name is the IMAP command, such as "UID SEARCH" or "SELECT".
	Name string
	// Args are the formatted command arguments.
	Args string

	run func() error
}

// Handler handles a Call.
type Handler interface {
	Handle(call *Call) error
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(call *Call) error

// Handle calls f(call).
func (f HandlerFunc) Handle(call *Call) error {
	return f(call)
}

// Middleware wraps a Handler to add behavior before/after handling.
type Middleware func(next Handler) Handler

// Chain composes multiple middlewares into a single middleware.
// Middlewares are applied in order: the first middleware in the list
// is the outermost (executed first on request, last on response).
func Chain(middlewares ...Middleware) Middleware {
	return func(next Handler) Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

var terminal = HandlerFunc(func(call *Call) error { return call.run() })

// Wrap returns a Transport that sends every command of t through the
// middlewares. SelectMailbox is forwarded only when t implements
// mailbox.Selector; otherwise it is a no-op.
func Wrap(t mailbox.Transport, middlewares ...Middleware) mailbox.Transport {
	return &transport{next: t, handler: Chain(middlewares...)(terminal)}
}

type transport struct {
	next    mailbox.Transport
	handler Handler
}

var (
	_ mailbox.Transport = (*transport)(nil)
	_ mailbox.Selector  = (*transport)(nil)
)

func (t *transport) do(name, args string, run func() error) error {
	return t.handler.Handle(&Call{Name: name, Args: args, run: run})
}

func (t *transport) UIDSearch(args string) (uids []imap.UID, err error) {
	err = t.do("UID SEARCH", args, func() (err error) {
		uids, err = t.next.UIDSearch(args)
		return err
	})
	return uids, err
}

func (t *transport) UIDSort(args string) (uids []imap.UID, err error) {
	err = t.do("UID SORT", args, func() (err error) {
		uids, err = t.next.UIDSort(args)
		return err
	})
	return uids, err
}

func (t *transport) UIDStore(set, item, flags string) error {
	return t.do("UID STORE", set+" "+item+" "+flags, func() error {
		return t.next.UIDStore(set, item, flags)
	})
}

func (t *transport) UIDCopy(set, dest string) error {
	return t.do("UID COPY", set+" "+dest, func() error {
		return t.next.UIDCopy(set, dest)
	})
}

func (t *transport) UIDMove(set, dest string) error {
	return t.do("UID MOVE", set+" "+dest, func() error {
		return t.next.UIDMove(set, dest)
	})
}

func (t *transport) UIDThread(args string) (raw string, err error) {
	err = t.do("UID THREAD", args, func() (err error) {
		raw, err = t.next.UIDThread(args)
		return err
	})
	return raw, err
}

func (t *transport) FetchMessage(uid imap.UID) (data *imap.MessageData, err error) {
	err = t.do("UID FETCH", strconv.FormatUint(uint64(uid), 10), func() (err error) {
		data, err = t.next.FetchMessage(uid)
		return err
	})
	return data, err
}

func (t *transport) SelectMailbox(name string) error {
	sel, ok := t.next.(mailbox.Selector)
	if !ok {
		return nil
	}
	return t.do("SELECT", name, func() error {
		return sel.SelectMailbox(name)
	})
}
