package client

import (
	imap "github.com/meszmate/imap-mailbox"
)

// SupportsMove returns true if the server supports MOVE.
func (c *Client) SupportsMove() bool {
	return c.HasCap(imap.CapMove)
}

// SupportsLiteralPlus returns true if the server supports LITERAL+.
func (c *Client) SupportsLiteralPlus() bool {
	return c.HasCap(imap.CapLiteralPlus)
}

// SupportsUIDPlus returns true if the server supports UIDPLUS.
func (c *Client) SupportsUIDPlus() bool {
	return c.HasCap(imap.CapUIDPlus)
}

// SupportsSort returns true if the server supports SORT.
func (c *Client) SupportsSort() bool {
	return c.HasCap(imap.CapSort)
}

// SupportsThread returns true if the server supports the given THREAD
// algorithm.
func (c *Client) SupportsThread(alg imap.ThreadAlgorithm) bool {
	return c.HasCap(imap.ThreadCap(alg))
}

// Capability requests the server's capabilities.
func (c *Client) Capability() (*imap.CapSet, error) {
	if _, err := c.run("CAPABILITY"); err != nil {
		return nil, err
	}
	return c.Caps(), nil
}
