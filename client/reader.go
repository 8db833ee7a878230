package client

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	imap "github.com/meszmate/imap-mailbox"
	"github.com/meszmate/imap-mailbox/wire"
)

// reader is the background goroutine that reads responses from the server.
type reader struct {
	decoder *wire.Decoder
	client  *Client
	bye     string
}

func newReader(decoder *wire.Decoder, c *Client) *reader {
	return &reader{
		decoder: decoder,
		client:  c,
	}
}

// run reads and dispatches server responses until the connection is closed.
func (r *reader) run() {
	for {
		line, err := r.decoder.ReadResponse()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
				if r.bye != "" {
					err = fmt.Errorf("server closed connection: %s", r.bye)
				}
			}
			r.client.options.Logger.Debug("reader error", "error", err)
			r.client.handleDisconnect(err)
			return
		}

		r.client.options.Logger.Debug("recv", "line", line)

		if err := r.processLine(line); err != nil {
			r.client.options.Logger.Debug("process error", "error", err)
		}
	}
}

// processLine handles a single response.
func (r *reader) processLine(line string) error {
	switch {
	case line == "":
		return nil
	case line[0] == '+':
		// Only non-synchronizing literals are sent, so no command waits
		// for a continuation.
		return nil
	case strings.HasPrefix(line, "* "):
		return r.processUntagged(line[2:])
	default:
		return r.processTagged(line)
	}
}

// processUntagged handles an untagged response. Everything a command may
// need is stored for it; state the client tracks is updated here.
func (r *reader) processUntagged(line string) error {
	if sp := strings.IndexByte(line, ' '); sp > 0 {
		if num, err := strconv.ParseUint(line[:sp], 10, 32); err == nil {
			r.processNumeric(uint32(num), line[sp+1:])
			return nil
		}
	}

	name, rest, _ := strings.Cut(line, " ")
	switch strings.ToUpper(name) {
	case "OK", "NO", "BAD", "PREAUTH":
		r.handleResponseCode(rest)
	case "BYE":
		r.bye = rest
	case "CAPABILITY":
		r.handleCapability(rest)
	}

	r.client.storeUntagged(line)
	return nil
}

// processNumeric handles "* 123 SOMETHING" responses.
func (r *reader) processNumeric(num uint32, rest string) {
	if u := r.client.options.Updates; u != nil {
		switch strings.ToUpper(rest) {
		case "EXISTS":
			if u.Exists != nil {
				u.Exists(num)
			}
		case "EXPUNGE":
			if u.Expunge != nil {
				u.Expunge(num)
			}
		}
	}
	r.client.storeUntagged(strconv.FormatUint(uint64(num), 10) + " " + rest)
}

// processTagged handles a tagged response (completes a pending command).
func (r *reader) processTagged(line string) error {
	tag, rest, ok := strings.Cut(line, " ")
	if !ok {
		return fmt.Errorf("malformed tagged response: %q", line)
	}

	status, code, text := parseStatusResponse(rest)
	if code != "" {
		r.handleResponseCode("[" + code + "]")
	}

	if !r.client.cmds.finish(tag, &commandResult{status: status, code: code, text: text}) {
		return fmt.Errorf("completion for unknown tag %q", tag)
	}
	return nil
}

// parseStatusResponse splits "STATUS [CODE] text".
func parseStatusResponse(s string) (status, code, text string) {
	status, rest, ok := strings.Cut(s, " ")
	if !ok {
		return s, "", ""
	}
	if strings.HasPrefix(rest, "[") {
		if end := strings.IndexByte(rest, ']'); end > 0 {
			code = rest[1:end]
			text = strings.TrimPrefix(rest[end+1:], " ")
			return status, code, text
		}
	}
	return status, "", rest
}

func (r *reader) handleResponseCode(text string) {
	if !strings.HasPrefix(text, "[") {
		return
	}
	end := strings.IndexByte(text, ']')
	if end < 0 {
		return
	}
	name, arg, _ := strings.Cut(text[1:end], " ")
	if strings.EqualFold(name, "CAPABILITY") {
		r.handleCapability(arg)
	}
}

func (r *reader) handleCapability(line string) {
	caps := imap.ParseCapSet(line)
	r.client.mu.Lock()
	r.client.caps = caps
	r.client.mu.Unlock()
}
