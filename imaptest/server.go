package imaptest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	imap "github.com/meszmate/imap-mailbox"
	"github.com/meszmate/imap-mailbox/wire"
)

// Capabilities advertised by Server.
var Capabilities = []imap.Cap{
	imap.CapIMAP4rev1, imap.CapLiteralPlus, imap.CapUIDPlus, imap.CapMove,
	imap.CapSort, imap.CapThreadReferences, imap.CapThreadOrderedSubject,
}

// Server exposes a Backend over the IMAP protocol on a loopback listener.
// Every connection gets its own Session. Only non-synchronizing literals
// are accepted from clients.
type Server struct {
	backend  *Backend
	listener net.Listener
	logger   *slog.Logger
	caps     *imap.CapSet

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the server logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithCapabilities replaces the advertised capability list, which lets
// tests exercise client fallbacks such as COPY instead of MOVE.
func WithCapabilities(caps ...imap.Cap) ServerOption {
	return func(s *Server) {
		s.caps = imap.NewCapSet(caps...)
	}
}

// NewServer starts a server for b and stops it when the test ends.
func NewServer(t testing.TB, b *Backend, opts ...ServerOption) *Server {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &Server{
		backend:  b,
		listener: l,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		caps:     imap.NewCapSet(Capabilities...),
		conns:    make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Close stops accepting, drops open connections and waits for them.
func (s *Server) Close() {
	_ = s.listener.Close()
	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		c, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, c)
				s.mu.Unlock()
				_ = c.Close()
			}()
			newConn(s, c).serve()
		}()
	}
}

// conn is one client connection.
type conn struct {
	server  *Server
	session *Session
	dec     *wire.Decoder
	w       *bufio.Writer
	logger  *slog.Logger
	authed  bool
}

func newConn(s *Server, c net.Conn) *conn {
	return &conn{
		server:  s,
		session: s.backend.Session(),
		dec:     wire.NewDecoder(c),
		w:       bufio.NewWriter(c),
		logger:  s.logger.With("remote", c.RemoteAddr().String()),
	}
}

func (c *conn) serve() {
	c.writef("* OK [CAPABILITY %s] imaptest ready", c.server.caps)
	if err := c.w.Flush(); err != nil {
		return
	}
	for {
		line, err := c.dec.ReadResponse()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				c.logger.Debug("read failed", "error", err)
			}
			return
		}
		c.logger.Debug("recv", "line", line)

		tag, rest, ok := strings.Cut(line, " ")
		if !ok || tag == "" {
			c.writef("* BAD Missing command")
		} else if done := c.dispatch(tag, rest); done {
			_ = c.w.Flush()
			return
		}
		if err := c.w.Flush(); err != nil {
			return
		}
	}
}

func (c *conn) writef(format string, args ...any) {
	fmt.Fprintf(c.w, format, args...)
	c.w.WriteString("\r\n")
}

// finish writes the tagged completion for err, OK when err is nil.
func (c *conn) finish(tag, name string, err error) {
	if err == nil {
		c.writef("%s OK %s completed", tag, name)
		return
	}
	var imapErr *imap.IMAPError
	if errors.As(err, &imapErr) {
		c.writef("%s %s", tag, imapErr.Error())
		return
	}
	c.writef("%s NO %s", tag, err.Error())
}

// dispatch runs one command and reports whether the connection should end.
func (c *conn) dispatch(tag, line string) bool {
	name, args, _ := strings.Cut(line, " ")
	name = strings.ToUpper(name)

	switch name {
	case "CAPABILITY":
		c.writef("* CAPABILITY %s", c.server.caps)
		c.finish(tag, name, nil)
		return false
	case "NOOP":
		c.finish(tag, name, nil)
		return false
	case "LOGOUT":
		c.writef("* BYE imaptest logging out")
		c.finish(tag, name, nil)
		return true
	case "LOGIN":
		c.finish(tag, name, c.login(args))
		return false
	}

	if !c.authed {
		c.finish(tag, name, imap.ErrBad("Not authenticated"))
		return false
	}

	switch name {
	case "SELECT", "EXAMINE":
		c.finish(tag, name, c.selectMailbox(name, args))
	case "CREATE":
		c.finish(tag, name, c.withMailboxArg(args, c.server.backend.CreateMailbox))
	case "DELETE":
		c.finish(tag, name, c.withMailboxArg(args, c.server.backend.DeleteMailbox))
	case "EXPUNGE":
		c.finish(tag, name, c.expunge(nil))
	case "UID":
		sub, subArgs, _ := strings.Cut(args, " ")
		sub = strings.ToUpper(sub)
		c.finish(tag, "UID "+sub, c.uidCommand(sub, subArgs))
	default:
		c.finish(tag, name, imap.ErrBad("Unknown command"))
	}
	return false
}

func (c *conn) login(args string) error {
	dec := wire.NewDecoder(strings.NewReader(args))
	user, err := dec.ReadString()
	if err != nil {
		return imap.ErrBad("Missing username")
	}
	if err := dec.ReadSP(); err != nil {
		return imap.ErrBad("Missing password")
	}
	pass, err := dec.ReadString()
	if err != nil {
		return imap.ErrBad("Missing password")
	}
	if err := c.server.backend.checkLogin(user, pass); err != nil {
		return err
	}
	c.authed = true
	return nil
}

func readMailboxName(dec *wire.Decoder) (string, error) {
	raw, err := dec.ReadString()
	if err != nil {
		return "", imap.ErrBad("Missing mailbox name")
	}
	name, err := wire.DecodeMailboxName(raw)
	if err != nil {
		return "", imap.ErrBad("Invalid mailbox name")
	}
	return name, nil
}

func (c *conn) withMailboxArg(args string, fn func(string) error) error {
	name, err := readMailboxName(wire.NewDecoder(strings.NewReader(args)))
	if err != nil {
		return err
	}
	return fn(name)
}

func (c *conn) selectMailbox(cmd, args string) error {
	name, err := readMailboxName(wire.NewDecoder(strings.NewReader(args)))
	if err != nil {
		return err
	}
	if err := c.session.SelectMailbox(name); err != nil {
		return err
	}
	n, validity, next, err := c.session.Status()
	if err != nil {
		return err
	}
	c.writef(`* FLAGS (\Answered \Flagged \Deleted \Seen \Draft)`)
	c.writef("* %d EXISTS", n)
	c.writef("* OK [UIDVALIDITY %d] UIDs valid", validity)
	c.writef("* OK [UIDNEXT %d] Predicted next UID", next)
	if cmd == "EXAMINE" {
		c.writef("* OK [%s] Examined", imap.ResponseCodeReadOnly)
	}
	return nil
}

func (c *conn) expunge(set *imap.UIDSet) error {
	seqs, err := c.session.Expunge(set)
	if err != nil {
		return err
	}
	for _, seq := range seqs {
		c.writef("* %d EXPUNGE", seq)
	}
	return nil
}

func (c *conn) uidCommand(sub, args string) error {
	switch sub {
	case "SEARCH":
		uids, err := c.session.UIDSearch(args)
		if err != nil {
			return err
		}
		c.writef("* SEARCH%s", formatUIDs(uids))
	case "SORT":
		uids, err := c.session.UIDSort(args)
		if err != nil {
			return err
		}
		c.writef("* SORT%s", formatUIDs(uids))
	case "THREAD":
		threads, err := c.session.UIDThread(args)
		if err != nil {
			return err
		}
		if threads == "" {
			c.writef("* THREAD")
		} else {
			c.writef("* THREAD %s", threads)
		}
	case "STORE":
		fields := strings.SplitN(args, " ", 3)
		if len(fields) != 3 {
			return imap.ErrBad("Invalid STORE arguments")
		}
		if err := c.session.UIDStore(fields[0], fields[1], fields[2]); err != nil {
			return err
		}
		if !strings.HasSuffix(strings.ToUpper(fields[1]), ".SILENT") {
			return c.fetch(fields[0], false)
		}
	case "COPY", "MOVE":
		set, rest, ok := strings.Cut(args, " ")
		if !ok {
			return imap.ErrBad("Missing mailbox name")
		}
		dest, err := readMailboxName(wire.NewDecoder(strings.NewReader(rest)))
		if err != nil {
			return err
		}
		if sub == "COPY" {
			return c.session.UIDCopy(set, dest)
		}
		return c.session.UIDMove(set, dest)
	case "FETCH":
		set, _, _ := strings.Cut(args, " ")
		return c.fetch(set, true)
	case "EXPUNGE":
		set, err := imap.ParseUIDSet(args)
		if err != nil {
			return imap.ErrBad("Invalid UID set")
		}
		return c.expunge(set)
	default:
		return imap.ErrBad("Unknown UID command")
	}
	return nil
}

// fetch writes FETCH responses for the messages in set. Full responses
// carry the items the client package asks for; short ones carry flags.
func (c *conn) fetch(set string, full bool) error {
	if _, err := imap.ParseUIDSet(set); err != nil {
		return imap.ErrBad("Invalid UID set")
	}
	uids, err := c.session.UIDSearch("UID " + set)
	if err != nil {
		return err
	}
	for _, uid := range uids {
		data, err := c.session.FetchMessage(uid)
		if err != nil {
			return err
		}
		if data == nil {
			continue
		}
		flags := make([]string, len(data.Flags))
		for i, f := range data.Flags {
			flags[i] = string(f)
		}
		seq := c.session.seqNum(uid)
		if !full {
			c.writef("* %d FETCH (UID %d FLAGS (%s))", seq, uid, strings.Join(flags, " "))
			continue
		}
		date := data.InternalDate.Format(imap.InternalDateLayout)
		c.writef("* %d FETCH (UID %d FLAGS (%s) RFC822.SIZE %d INTERNALDATE %s ENVELOPE (%s %s NIL NIL NIL NIL NIL NIL NIL NIL))",
			seq, uid, strings.Join(flags, " "), data.Size, wire.Quote(date),
			wire.Quote(date), envelopeString(data.Subject))
	}
	return nil
}

// envelopeString renders a header value as an envelope string: MIME
// encoded when it is not ASCII and a literal when it cannot be quoted.
func envelopeString(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			s = mime.QEncoding.Encode("utf-8", s)
			break
		}
	}
	if s == "" {
		return "NIL"
	}
	if wire.NeedsLiteral(s) {
		return "{" + strconv.Itoa(len(s)) + "}\r\n" + s
	}
	return wire.Quote(s)
}

func formatUIDs(uids []imap.UID) string {
	var b strings.Builder
	for _, uid := range uids {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatUint(uint64(uid), 10))
	}
	return b.String()
}
