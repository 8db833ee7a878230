package client

import (
	"fmt"
	"mime"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/charset"

	imap "github.com/meszmate/imap-mailbox"
	"github.com/meszmate/imap-mailbox/wire"
)

// fetchItems are the message attributes FetchMessage asks for.
const fetchItems = "(UID FLAGS RFC822.SIZE INTERNALDATE ENVELOPE)"

// UIDSearch runs UID SEARCH with preformatted arguments.
func (c *Client) UIDSearch(args string) ([]imap.UID, error) {
	untagged, err := c.run("UID SEARCH", args)
	if err != nil {
		return nil, err
	}
	return parseUIDList(untagged, "SEARCH"), nil
}

// UIDSort runs UID SORT (RFC 5256) with preformatted arguments.
func (c *Client) UIDSort(args string) ([]imap.UID, error) {
	untagged, err := c.run("UID SORT", args)
	if err != nil {
		return nil, err
	}
	return parseUIDList(untagged, "SORT"), nil
}

func parseUIDList(lines []string, name string) []imap.UID {
	var uids []imap.UID
	for _, line := range lines {
		head, rest, _ := strings.Cut(line, " ")
		if !strings.EqualFold(head, name) {
			continue
		}
		for _, f := range strings.Fields(rest) {
			if n, err := strconv.ParseUint(f, 10, 32); err == nil {
				uids = append(uids, imap.UID(n))
			}
		}
	}
	return uids
}

// UIDThread runs UID THREAD and returns the thread lists of the response.
func (c *Client) UIDThread(args string) (string, error) {
	untagged, err := c.run("UID THREAD", args)
	if err != nil {
		return "", err
	}
	for _, line := range untagged {
		head, rest, _ := strings.Cut(line, " ")
		if strings.EqualFold(head, "THREAD") {
			return rest, nil
		}
	}
	return "", nil
}

// UIDStore runs UID STORE. Flag updates echoed by the server are dropped.
func (c *Client) UIDStore(set, item, flags string) error {
	_, err := c.run("UID STORE", set, item, flags)
	return err
}

// UIDCopy copies the messages in set to dest.
func (c *Client) UIDCopy(set, dest string) error {
	_, err := c.run("UID COPY", set, wire.MailboxName(dest))
	return err
}

// UIDMove moves the messages in set to dest. Without the MOVE extension it
// copies, flags the originals \Deleted and expunges exactly those with
// UID EXPUNGE, which needs UIDPLUS; a server with neither is refused
// before anything changes.
func (c *Client) UIDMove(set, dest string) error {
	if c.SupportsMove() {
		_, err := c.run("UID MOVE", set, wire.MailboxName(dest))
		return err
	}
	if !c.SupportsUIDPlus() {
		return imap.ErrNoWithCode(imap.ResponseCodeCannot, "server supports neither MOVE nor UIDPLUS")
	}
	if err := c.UIDCopy(set, dest); err != nil {
		return err
	}
	if err := c.UIDStore(set, imap.StoreFlagsAdd.Item(true), imap.FlagList(imap.FlagDeleted)); err != nil {
		return fmt.Errorf("flag moved messages: %w", err)
	}
	if _, err := c.UIDExpunge(set); err != nil {
		return fmt.Errorf("expunge moved messages: %w", err)
	}
	return nil
}

// FetchMessage fetches the attributes of uid. It returns nil, nil when the
// server sends no data for it.
func (c *Client) FetchMessage(uid imap.UID) (*imap.MessageData, error) {
	untagged, err := c.run("UID FETCH", strconv.FormatUint(uint64(uid), 10), fetchItems)
	if err != nil {
		return nil, err
	}
	for _, line := range untagged {
		_, rest, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		name, att, ok := strings.Cut(rest, " ")
		if !ok || !strings.EqualFold(name, "FETCH") {
			continue
		}
		data, err := parseFetch(att)
		if err != nil {
			return nil, fmt.Errorf("parse FETCH response: %w", err)
		}
		if data.UID == uid {
			return data, nil
		}
	}
	return nil, nil
}

// parseFetch parses the parenthesized attribute list of a FETCH response.
func parseFetch(att string) (*imap.MessageData, error) {
	dec := wire.NewDecoder(strings.NewReader(att))
	data := &imap.MessageData{}
	err := dec.ReadList(func() error {
		name, err := dec.ReadAtom()
		if err != nil {
			return err
		}
		if err := dec.ReadSP(); err != nil {
			return err
		}
		switch strings.ToUpper(name) {
		case "UID":
			n, err := dec.ReadNumber()
			if err != nil {
				return err
			}
			data.UID = imap.UID(n)
		case "FLAGS":
			flags, err := dec.ReadFlags()
			if err != nil {
				return err
			}
			data.Flags = make([]imap.Flag, len(flags))
			for i, f := range flags {
				data.Flags[i] = imap.Flag(f)
			}
		case "RFC822.SIZE":
			n, err := dec.ReadNumber64()
			if err != nil {
				return err
			}
			data.Size = n
		case "INTERNALDATE":
			s, err := dec.ReadQuotedString()
			if err != nil {
				return err
			}
			t, err := time.Parse(imap.InternalDateLayout, s)
			if err != nil {
				return fmt.Errorf("bad INTERNALDATE %q: %w", s, err)
			}
			data.InternalDate = t
		case "ENVELOPE":
			subject, err := readEnvelopeSubject(dec)
			if err != nil {
				return err
			}
			data.Subject = decodeHeader(subject)
		default:
			return dec.Skip()
		}
		return nil
	})
	return data, err
}

// readEnvelopeSubject reads an ENVELOPE and returns its subject field.
func readEnvelopeSubject(dec *wire.Decoder) (string, error) {
	var subject string
	field := 0
	err := dec.ReadList(func() error {
		defer func() { field++ }()
		if field != 1 {
			return dec.Skip()
		}
		s, _, err := dec.ReadNString()
		subject = s
		return err
	})
	return subject, err
}

var wordDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}

// decodeHeader decodes RFC 2047 encoded words, leaving undecodable text
// as it arrived.
func decodeHeader(s string) string {
	decoded, err := wordDecoder.DecodeHeader(s)
	if err != nil {
		return s
	}
	return decoded
}
