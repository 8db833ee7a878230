package client

import (
	"strconv"
	"strings"

	imap "github.com/meszmate/imap-mailbox"
	"github.com/meszmate/imap-mailbox/wire"
)

// SelectData is the state of a mailbox reported by SELECT or EXAMINE.
type SelectData struct {
	Mailbox     string
	NumMessages uint32
	UIDValidity uint32
	UIDNext     imap.UID
	ReadOnly    bool
}

// Select opens a mailbox. A failed SELECT leaves no mailbox selected.
func (c *Client) Select(name string, readOnly bool) (*SelectData, error) {
	cmd := "SELECT"
	if readOnly {
		cmd = "EXAMINE"
	}

	untagged, err := c.run(cmd, wire.MailboxName(name))
	if err != nil {
		c.mu.Lock()
		c.selected = ""
		if c.state == imap.ConnStateSelected {
			c.state = imap.ConnStateAuthenticated
		}
		c.mu.Unlock()
		return nil, err
	}

	data := &SelectData{Mailbox: name, ReadOnly: readOnly}
	for _, line := range untagged {
		parseSelectLine(line, data)
	}

	c.mu.Lock()
	c.state = imap.ConnStateSelected
	c.selected = name
	c.mu.Unlock()

	return data, nil
}

func parseSelectLine(line string, data *SelectData) {
	if n, rest, ok := strings.Cut(line, " "); ok && strings.EqualFold(rest, "EXISTS") {
		if v, err := strconv.ParseUint(n, 10, 32); err == nil {
			data.NumMessages = uint32(v)
		}
		return
	}
	_, text, _ := strings.Cut(line, " ")
	if !strings.HasPrefix(text, "[") {
		return
	}
	end := strings.IndexByte(text, ']')
	if end < 0 {
		return
	}
	name, arg, _ := strings.Cut(text[1:end], " ")
	switch imap.ResponseCode(strings.ToUpper(name)) {
	case imap.ResponseCodeUIDValidity:
		if v, err := strconv.ParseUint(arg, 10, 32); err == nil {
			data.UIDValidity = uint32(v)
		}
	case imap.ResponseCodeUIDNext:
		if v, err := strconv.ParseUint(arg, 10, 32); err == nil {
			data.UIDNext = imap.UID(v)
		}
	case imap.ResponseCodeReadOnly:
		data.ReadOnly = true
	}
}

// SelectMailbox selects name unless it is already selected. It lets the
// mailbox package share one connection between several mailboxes.
func (c *Client) SelectMailbox(name string) error {
	c.mu.Lock()
	current := c.selected
	c.mu.Unlock()
	if current == name {
		return nil
	}
	_, err := c.Select(name, false)
	return err
}

// Selected returns the selected mailbox name, or "" if none.
func (c *Client) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Create creates a new mailbox.
func (c *Client) Create(name string) error {
	_, err := c.run("CREATE", wire.MailboxName(name))
	return err
}

// Delete deletes a mailbox.
func (c *Client) Delete(name string) error {
	_, err := c.run("DELETE", wire.MailboxName(name))
	if err == nil {
		c.mu.Lock()
		if c.selected == name {
			c.selected = ""
			c.state = imap.ConnStateAuthenticated
		}
		c.mu.Unlock()
	}
	return err
}

// Expunge permanently removes deleted messages and returns the sequence
// numbers the server reported.
func (c *Client) Expunge() ([]uint32, error) {
	untagged, err := c.run("EXPUNGE")
	return expunged(untagged), err
}

// UIDExpunge permanently removes the deleted messages in set (UIDPLUS).
func (c *Client) UIDExpunge(set string) ([]uint32, error) {
	untagged, err := c.run("UID EXPUNGE", set)
	return expunged(untagged), err
}

func expunged(untagged []string) []uint32 {
	var seqs []uint32
	for _, line := range untagged {
		n, rest, ok := strings.Cut(line, " ")
		if !ok || !strings.EqualFold(rest, "EXPUNGE") {
			continue
		}
		if v, err := strconv.ParseUint(n, 10, 32); err == nil {
			seqs = append(seqs, uint32(v))
		}
	}
	return seqs
}

// Noop sends a NOOP command.
func (c *Client) Noop() error {
	_, err := c.run("NOOP")
	return err
}
