// Package client implements an IMAP client that serves as the
// mailbox.Transport for a real server.
//
// A background reader dispatches server responses while commands wait for
// their tagged completion. Commands are serialized per connection, and
// the untagged data a command produces is handed back to it.
package client

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	imap "github.com/meszmate/imap-mailbox"
	"github.com/meszmate/imap-mailbox/mailbox"
	"github.com/meszmate/imap-mailbox/wire"
)

// ErrClosed is reported by commands issued after Close.
var ErrClosed = errors.New("imap: connection closed")

// Client is an IMAP client.
type Client struct {
	conn    net.Conn
	encoder *wire.Encoder
	decoder *wire.Decoder
	options *Options
	cmds    *inflight
	reader  *reader

	// cmdMu serializes commands so untagged data can be attributed.
	cmdMu sync.Mutex

	mu       sync.Mutex
	state    imap.ConnState
	caps     *imap.CapSet
	selected string
	closed   bool

	untaggedMu   sync.Mutex
	untaggedData []string

	done          chan struct{}
	disconnectMu  sync.Mutex
	disconnectErr error
}

var (
	_ mailbox.Transport = (*Client)(nil)
	_ mailbox.Selector  = (*Client)(nil)
)

// New creates a new Client from an existing connection and reads the
// server greeting.
func New(conn net.Conn, opts ...Option) (*Client, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	c := &Client{
		conn:    conn,
		encoder: wire.NewEncoder(conn),
		decoder: wire.NewDecoder(conn),
		options: options,
		cmds:    newInflight(options.TagPrefix),
		state:   imap.ConnStateNotAuthenticated,
		caps:    imap.NewCapSet(),
		done:    make(chan struct{}),
	}
	c.decoder.MaxLiteral = options.MaxLiteral

	if options.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(options.ReadTimeout))
	}
	line, err := c.decoder.ReadLine()
	_ = conn.SetReadDeadline(time.Time{})
	if err != nil {
		return nil, fmt.Errorf("reading greeting: %w", err)
	}

	c.options.Logger.Debug("greeting", "line", line)

	switch {
	case strings.HasPrefix(line, "* OK"):
		c.state = imap.ConnStateNotAuthenticated
	case strings.HasPrefix(line, "* PREAUTH"):
		c.state = imap.ConnStateAuthenticated
	case strings.HasPrefix(line, "* BYE"):
		return nil, fmt.Errorf("server rejected connection: %s", line)
	default:
		return nil, fmt.Errorf("unexpected greeting: %s", line)
	}

	if i := strings.Index(strings.ToUpper(line), "[CAPABILITY "); i >= 0 {
		if end := strings.IndexByte(line[i:], ']'); end > 0 {
			c.caps = imap.ParseCapSet(line[i+len("[CAPABILITY ") : i+end])
		}
	}

	c.reader = newReader(c.decoder, c)
	go c.reader.run()

	return c, nil
}

// Dial connects to an IMAP server at the given address.
func Dial(addr string, opts ...Option) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return New(conn, opts...)
}

// DialTLS connects to an IMAP server using TLS. A nil config falls back to
// the TLSConfig option.
func DialTLS(addr string, config *tls.Config, opts ...Option) (*Client, error) {
	if config == nil {
		options := DefaultOptions()
		for _, opt := range opts {
			opt(options)
		}
		config = options.TLSConfig
	}
	conn, err := tls.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("dial TLS: %w", err)
	}
	return New(conn, opts...)
}

// State returns the current connection state.
func (c *Client) State() imap.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Caps returns the server's capabilities.
func (c *Client) Caps() *imap.CapSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.caps
}

// HasCap returns true if the server advertises the given capability.
func (c *Client) HasCap(cap imap.Cap) bool {
	return c.Caps().Has(cap)
}

// Mailbox returns a mailbox.Mailbox bound to this connection. The client
// logger is used unless opts name another.
func (c *Client) Mailbox(name string, opts ...mailbox.Option) *mailbox.Mailbox {
	opts = append([]mailbox.Option{mailbox.WithLogger(c.options.Logger)}, opts...)
	return mailbox.New(c, name, opts...)
}

// Close closes the client connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.handleDisconnect(ErrClosed)
	return c.conn.Close()
}

// Done is closed when the connection ends, by Close or by the server.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// DisconnectErr returns why the connection ended, or nil while it is up.
func (c *Client) DisconnectErr() error {
	c.disconnectMu.Lock()
	defer c.disconnectMu.Unlock()
	return c.disconnectErr
}

func (c *Client) handleDisconnect(err error) {
	c.disconnectMu.Lock()
	if c.disconnectErr != nil {
		c.disconnectMu.Unlock()
		return
	}
	c.disconnectErr = err
	close(c.done)
	c.disconnectMu.Unlock()

	c.mu.Lock()
	c.state = imap.ConnStateLogout
	c.selected = ""
	c.mu.Unlock()

	c.cmds.abort(err)
}

// execute sends a command and waits for the tagged response.
func (c *Client) execute(name string, args ...string) (*commandResult, error) {
	tag, done := c.cmds.begin()

	select {
	case <-c.done:
		c.cmds.finish(tag, nil)
		return nil, c.DisconnectErr()
	default:
	}

	if name == "LOGIN" {
		c.options.Logger.Debug("send", "tag", tag, "command", name)
	} else {
		c.options.Logger.Debug("send", "line", wire.CommandLine(tag, name, args...))
	}

	if c.options.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout))
	}
	if c.options.ReadTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.options.ReadTimeout))
		defer c.conn.SetReadDeadline(time.Time{})
	}

	if err := c.encoder.WriteCommand(tag, name, args...); err != nil {
		c.cmds.finish(tag, &commandResult{err: err})
	}

	select {
	case result := <-done:
		if result.err != nil {
			return nil, result.err
		}
		return result, nil
	case <-c.done:
		return nil, c.DisconnectErr()
	}
}

// run executes a command and returns the untagged responses it produced.
// A tagged NO or BAD becomes an *imap.IMAPError.
func (c *Client) run(name string, args ...string) ([]string, error) {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.collectUntagged()
	result, err := c.execute(name, args...)
	if err != nil {
		return nil, err
	}
	untagged := c.collectUntagged()
	if !strings.EqualFold(result.status, "OK") {
		return untagged, imap.NewStatusError(result.status, result.code, result.text)
	}
	return untagged, nil
}

// collectUntagged returns and clears collected untagged data.
func (c *Client) collectUntagged() []string {
	c.untaggedMu.Lock()
	defer c.untaggedMu.Unlock()
	data := c.untaggedData
	c.untaggedData = nil
	return data
}

// storeUntagged adds an untagged response to the collection.
func (c *Client) storeUntagged(line string) {
	c.untaggedMu.Lock()
	c.untaggedData = append(c.untaggedData, line)
	c.untaggedMu.Unlock()
}
