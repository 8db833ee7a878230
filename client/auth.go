package client

import (
	"strconv"

	imap "github.com/meszmate/imap-mailbox"
	"github.com/meszmate/imap-mailbox/wire"
)

// Login authenticates the user with a username and password.
func (c *Client) Login(username, password string) error {
	if _, err := c.run("LOGIN", c.astring(username), c.astring(password)); err != nil {
		return err
	}

	c.mu.Lock()
	c.state = imap.ConnStateAuthenticated
	c.mu.Unlock()

	return nil
}

// Logout ends the session and closes the connection.
func (c *Client) Logout() error {
	_, err := c.run("LOGOUT")
	if closeErr := c.Close(); err == nil {
		err = closeErr
	}
	return err
}

// astring formats s as a string argument. Text that cannot be quoted goes
// as a non-synchronizing literal when the server allows it.
func (c *Client) astring(s string) string {
	if wire.NeedsLiteral(s) && c.SupportsLiteralPlus() {
		return "{" + strconv.Itoa(len(s)) + "+}\r\n" + s
	}
	return wire.Quote(s)
}
