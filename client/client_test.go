package client

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	imap "github.com/meszmate/imap-mailbox"
)

func TestCommandRejectedDoesNotHang(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	go func() {
		fmt.Fprint(serverConn, "* OK ready\r\n")

		r := bufio.NewReader(serverConn)
		line, _ := r.ReadString('\n')
		if strings.HasPrefix(line, "S1 UID SORT") {
			fmt.Fprint(serverConn, "S1 BAD sort not allowed\r\n")
		}
	}()

	c, err := New(clientConn, WithTagPrefix("S"))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer c.Close()

	done := make(chan error, 1)
	go func() {
		_, err := c.UIDSort("(DATE) UTF-8 ALL")
		done <- err
	}()

	select {
	case err := <-done:
		var imapErr *imap.IMAPError
		if !errors.As(err, &imapErr) {
			t.Fatalf("UIDSort() error = %v, want *imap.IMAPError", err)
		}
		if imapErr.Type != imap.StatusResponseTypeBAD {
			t.Errorf("Type = %q, want BAD", imapErr.Type)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("UIDSort() timed out waiting for tagged rejection")
	}
}

func TestDisconnectWhileWaitingForResponse(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	go func() {
		fmt.Fprint(serverConn, "* OK ready\r\n")

		r := bufio.NewReader(serverConn)
		_, _ = r.ReadString('\n') // UID SEARCH
		_ = serverConn.Close()    // disconnect before completion
	}()

	c, err := New(clientConn)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer c.Close()

	done := make(chan error, 1)
	go func() {
		_, err := c.UIDSearch("ALL")
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("UIDSearch() error = nil, want non-nil")
		}
	case <-time.After(1 * time.Second):
		t.Fatal("UIDSearch() timed out waiting for disconnect")
	}
}

func TestCloseUnblocksPendingCommand(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	cmdSeen := make(chan struct{})
	go func() {
		fmt.Fprint(serverConn, "* OK ready\r\n")
		r := bufio.NewReader(serverConn)
		line, _ := r.ReadString('\n')
		if strings.Contains(line, " UID THREAD") {
			close(cmdSeen)
		}
		_, _ = r.ReadString('\n')
	}()

	c, err := New(clientConn)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer c.Close()

	done := make(chan error, 1)
	go func() {
		_, err := c.UIDThread("REFERENCES UTF-8 ALL")
		done <- err
	}()

	select {
	case <-cmdSeen:
	case <-time.After(1 * time.Second):
		t.Fatal("server did not receive UID THREAD command")
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("UIDThread() error = %v after Close(), want ErrClosed", err)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("UIDThread() timed out after Close()")
	}
}

func TestDoneClosedOnServerDisconnect(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	go func() {
		fmt.Fprint(serverConn, "* OK ready\r\n")
		fmt.Fprint(serverConn, "* BYE shutting down\r\n")
		_ = serverConn.Close()
	}()

	c, err := New(clientConn)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer c.Close()

	select {
	case <-c.Done():
	case <-time.After(1 * time.Second):
		t.Fatal("Done() was not closed after server disconnect")
	}

	err = c.DisconnectErr()
	if err == nil {
		t.Fatal("DisconnectErr() = nil, want non-nil")
	}
	if !strings.Contains(err.Error(), "shutting down") {
		t.Errorf("DisconnectErr() = %v, want the BYE text", err)
	}
	if c.State() != imap.ConnStateLogout {
		t.Errorf("State() = %v, want logout", c.State())
	}
	if err := c.Noop(); err == nil {
		t.Error("Noop() after disconnect error = nil, want non-nil")
	}
}

func TestDoneClosedOnClientClose(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	go func() {
		fmt.Fprint(serverConn, "* OK ready\r\n")
		r := bufio.NewReader(serverConn)
		_, _ = r.ReadString('\n')
	}()

	c, err := New(clientConn)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer c.Close()

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	select {
	case <-c.Done():
	case <-time.After(1 * time.Second):
		t.Fatal("Done() was not closed after Close()")
	}

	if err := c.DisconnectErr(); !errors.Is(err, ErrClosed) {
		t.Fatalf("DisconnectErr() = %v, want ErrClosed", err)
	}
}

func TestGreeting(t *testing.T) {
	tests := []struct {
		greeting string
		wantErr  bool
		state    imap.ConnState
		caps     []string
	}{
		{"* OK [CAPABILITY IMAP4rev1 MOVE] hello", false, imap.ConnStateNotAuthenticated, []string{"IMAP4rev1", "MOVE"}},
		{"* PREAUTH welcome back", false, imap.ConnStateAuthenticated, []string{}},
		{"* BYE too busy", true, 0, nil},
		{"HELLO", true, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.greeting, func(t *testing.T) {
			serverConn, clientConn := net.Pipe()
			defer serverConn.Close()
			defer clientConn.Close()

			go fmt.Fprint(serverConn, tt.greeting+"\r\n")

			c, err := New(clientConn)
			if tt.wantErr {
				if err == nil {
					c.Close()
					t.Fatal("New() error = nil, want non-nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			defer c.Close()

			if c.State() != tt.state {
				t.Errorf("State() = %v, want %v", c.State(), tt.state)
			}
			if got := c.Caps().String(); got != strings.Join(tt.caps, " ") {
				t.Errorf("Caps() = %q, want %q", got, tt.caps)
			}
		})
	}
}

func TestInflight(t *testing.T) {
	f := newInflight("T")
	tag1, done1 := f.begin()
	tag2, done2 := f.begin()
	if tag1 != "T1" || tag2 != "T2" {
		t.Fatalf("tags = %q, %q, want T1, T2", tag1, tag2)
	}

	if !f.finish(tag2, &commandResult{status: "OK"}) {
		t.Fatal("finish(T2) = false")
	}
	if res := <-done2; res.status != "OK" {
		t.Errorf("T2 status = %q", res.status)
	}
	if f.finish(tag2, &commandResult{status: "OK"}) {
		t.Error("second finish(T2) = true")
	}
	if f.finish("X9", &commandResult{}) {
		t.Error("finish of unknown tag = true")
	}

	f.abort(ErrClosed)
	if res := <-done1; res.err != ErrClosed {
		t.Errorf("aborted T1 err = %v", res.err)
	}
}

func TestParseStatusResponse(t *testing.T) {
	tests := []struct {
		in                 string
		status, code, text string
	}{
		{"OK done", "OK", "", "done"},
		{"NO [TRYCREATE] no such mailbox", "NO", "TRYCREATE", "no such mailbox"},
		{"BAD [BADCHARSET (UTF-8)]", "BAD", "BADCHARSET (UTF-8)", ""},
		{"OK", "OK", "", ""},
	}
	for _, tt := range tests {
		status, code, text := parseStatusResponse(tt.in)
		if status != tt.status || code != tt.code || text != tt.text {
			t.Errorf("parseStatusResponse(%q) = %q, %q, %q, want %q, %q, %q",
				tt.in, status, code, text, tt.status, tt.code, tt.text)
		}
	}
}

func TestParseFetch(t *testing.T) {
	att := "(UID 7 FLAGS (\\Seen $Work) RFC822.SIZE 1024 MODSEQ (12) " +
		"INTERNALDATE \" 1-Oct-2017 09:30:00 +0200\" " +
		"ENVELOPE (\"Sun, 1 Oct 2017 09:30:00 +0200\" \"=?KOI8-R?Q?=F0=D2=C9=D7=C5=D4?=\" ((NIL NIL \"bob\" \"example.org\")) NIL NIL NIL NIL NIL NIL NIL))"

	data, err := parseFetch(att)
	if err != nil {
		t.Fatalf("parseFetch() error: %v", err)
	}
	if data.UID != 7 {
		t.Errorf("UID = %d, want 7", data.UID)
	}
	if len(data.Flags) != 2 || data.Flags[0] != imap.FlagSeen || data.Flags[1] != "$Work" {
		t.Errorf("Flags = %v, want [\\Seen $Work]", data.Flags)
	}
	if data.Size != 1024 {
		t.Errorf("Size = %d, want 1024", data.Size)
	}
	want := time.Date(2017, time.October, 1, 7, 30, 0, 0, time.UTC)
	if !data.InternalDate.Equal(want) {
		t.Errorf("InternalDate = %v, want %v", data.InternalDate, want)
	}
	if data.Subject != "Привет" {
		t.Errorf("Subject = %q, want %q", data.Subject, "Привет")
	}
}

func TestParseFetchLiteralSubject(t *testing.T) {
	data, err := parseFetch("(ENVELOPE (NIL {5}\r\nhello NIL NIL NIL NIL NIL NIL NIL NIL) UID 3)")
	if err != nil {
		t.Fatalf("parseFetch() error: %v", err)
	}
	if data.Subject != "hello" || data.UID != 3 {
		t.Errorf("got subject %q uid %d, want hello 3", data.Subject, data.UID)
	}

	if _, err := parseFetch("(INTERNALDATE \"yesterday\")"); err == nil {
		t.Error("parseFetch() with a bad date error = nil, want non-nil")
	}
}

func TestDecodeHeaderUnknownCharset(t *testing.T) {
	in := "=?x-klingon?Q?qapla?="
	if got := decodeHeader(in); got != in {
		t.Errorf("decodeHeader(%q) = %q, want it unchanged", in, got)
	}
}
