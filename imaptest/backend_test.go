package imaptest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	imap "github.com/meszmate/imap-mailbox"
)

var base = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

func fixture(t *testing.T) (*Backend, *Session) {
	t.Helper()
	b := NewBackend()
	msgs := []Message{
		{Subject: "Budget", From: "alice@example.org", To: "team@example.org", Body: "numbers", InternalDate: base},
		{Subject: "Re: Budget", From: "bob@example.org", To: "alice@example.org", Body: "looks fine", Flags: []imap.Flag{imap.FlagSeen}, InternalDate: base.Add(time.Hour)},
		{Subject: "Agenda", From: "carol@example.org", Cc: "alice@example.org", Body: "monday", Flags: []imap.Flag{imap.FlagFlagged}, InternalDate: base.Add(48 * time.Hour)},
		{Subject: "Grüße aus Köln", From: "dieter@example.de", Body: "hallo", Header: map[string]string{"X-Mailer": "Postbote 2"}, InternalDate: base.Add(72 * time.Hour)},
	}
	for _, m := range msgs {
		_, err := b.Append("INBOX", m)
		require.NoError(t, err)
	}
	s := b.Session()
	require.NoError(t, s.SelectMailbox("inbox"))
	return b, s
}

func TestSessionUIDSearch(t *testing.T) {
	_, s := fixture(t)

	tests := []struct {
		args string
		want []imap.UID
	}{
		{"ALL", []imap.UID{1, 2, 3, 4}},
		{"SEEN", []imap.UID{2}},
		{"UNSEEN", []imap.UID{1, 3, 4}},
		{"FLAGGED", []imap.UID{3}},
		{`SUBJECT "budget"`, []imap.UID{1, 2}},
		{`FROM "carol"`, []imap.UID{3}},
		{`CC "alice"`, []imap.UID{3}},
		{`BODY "MONDAY"`, []imap.UID{3}},
		{`TEXT "team@"`, []imap.UID{1}},
		{`HEADER "X-Mailer" "postbote"`, []imap.UID{4}},
		{`NOT SEEN SUBJECT "budget"`, []imap.UID{1}},
		{`OR SEEN FLAGGED`, []imap.UID{2, 3}},
		{`OR (SUBJECT "agenda" FLAGGED) SEEN`, []imap.UID{2, 3}},
		{`SINCE "12-Mar-2024"`, []imap.UID{3, 4}},
		{`BEFORE "11-Mar-2024"`, []imap.UID{1, 2}},
		{`ON "13-Mar-2024"`, []imap.UID{4}},
		{"UID 2:3", []imap.UID{2, 3}},
		{"UID 3:*", []imap.UID{3, 4}},
		{"UID 99:*", []imap.UID{4}},
		{"UID 99998:99999", nil},
		{"2,4", []imap.UID{2, 4}},
		{`CHARSET UTF-8 SUBJECT "Grüße"`, []imap.UID{4}},
		{"CHARSET ISO-8859-1 SUBJECT \"Gr\xfc\xdfe\"", []imap.UID{4}},
		{"LARGER 1", []imap.UID{1, 2, 3, 4}},
		{"SMALLER 1", nil},
	}
	for _, tt := range tests {
		t.Run(tt.args, func(t *testing.T) {
			got, err := s.UIDSearch(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSessionUIDSearchErrors(t *testing.T) {
	_, s := fixture(t)

	for _, args := range []string{"", "BOGUS", "(SEEN", "SEEN)", `SUBJECT`, `SINCE "yesterday"`, "UID x"} {
		_, err := s.UIDSearch(args)
		assert.Error(t, err, args)
	}

	_, err := s.UIDSearch(`CHARSET KLINGON SUBJECT "x"`)
	assert.True(t, imap.HasCode(err, imap.ResponseCodeBadCharset))
}

func TestSessionRequiresSelect(t *testing.T) {
	b := NewBackend()
	s := b.Session()
	_, err := s.UIDSearch("ALL")
	assert.Error(t, err)

	err = s.SelectMailbox("Missing")
	assert.True(t, imap.HasCode(err, imap.ResponseCodeNonExistent))
}

func TestSessionUIDSort(t *testing.T) {
	_, s := fixture(t)

	got, err := s.UIDSort("(SUBJECT) UTF-8 ALL")
	require.NoError(t, err)
	assert.Equal(t, []imap.UID{3, 1, 2, 4}, got)

	got, err = s.UIDSort("(REVERSE DATE) UTF-8 ALL")
	require.NoError(t, err)
	assert.Equal(t, []imap.UID{4, 3, 2, 1}, got)

	got, err = s.UIDSort(`(FROM) UTF-8 NOT FROM "dieter"`)
	require.NoError(t, err)
	assert.Equal(t, []imap.UID{1, 2, 3}, got)

	for _, args := range []string{"SUBJECT UTF-8 ALL", "() UTF-8 ALL", "(REVERSE) UTF-8 ALL", "(COLOR) UTF-8 ALL"} {
		_, err := s.UIDSort(args)
		assert.Error(t, err, args)
	}
}

func TestSessionUIDThread(t *testing.T) {
	b, s := fixture(t)
	_, err := b.Append("INBOX", Message{Subject: "Fwd: budget", InternalDate: base.Add(96 * time.Hour)})
	require.NoError(t, err)

	got, err := s.UIDThread("REFERENCES UTF-8 ALL")
	require.NoError(t, err)
	assert.Equal(t, "(1 (2)(5))(3)(4)", got)

	got, err = s.UIDThread("ORDEREDSUBJECT UTF-8 UID 1:2")
	require.NoError(t, err)
	assert.Equal(t, "(1 2)", got)

	_, err = s.UIDThread("PSYCHIC UTF-8 ALL")
	assert.Error(t, err)
}

func TestSessionUIDStore(t *testing.T) {
	b, s := fixture(t)

	require.NoError(t, s.UIDStore("1:3", "+FLAGS.SILENT", `(\Deleted)`))
	require.NoError(t, s.UIDStore("2", "-FLAGS", `(\Seen)`))
	require.NoError(t, s.UIDStore("4", "FLAGS", `(\Answered $Work)`))

	msgs := b.Messages("INBOX")
	require.Len(t, msgs, 4)
	assert.Equal(t, []imap.Flag{imap.FlagDeleted}, msgs[0].Flags)
	assert.Equal(t, []imap.Flag{imap.FlagDeleted}, msgs[1].Flags)
	assert.Equal(t, []imap.Flag{imap.FlagFlagged, imap.FlagDeleted}, msgs[2].Flags)
	assert.Equal(t, []imap.Flag{imap.FlagAnswered, "$Work"}, msgs[3].Flags)

	assert.Error(t, s.UIDStore("1", "LABELS", `(\Seen)`))
	assert.Error(t, s.UIDStore("x", "+FLAGS", `(\Seen)`))
}

func TestSessionTransfer(t *testing.T) {
	b, s := fixture(t)
	require.NoError(t, b.CreateMailbox("Archive"))

	require.NoError(t, s.UIDCopy("1,2", "Archive"))
	require.NoError(t, s.UIDMove("3", "Archive"))

	archived := b.Messages("Archive")
	require.Len(t, archived, 3)
	assert.Equal(t, imap.UID(1), archived[0].UID)
	assert.Equal(t, "Agenda", archived[2].Subject)
	assert.Len(t, b.Messages("INBOX"), 3)

	err := s.UIDCopy("1", "Nowhere")
	assert.True(t, imap.HasCode(err, imap.ResponseCodeTryCreate))
}

func TestSessionFetchMessage(t *testing.T) {
	_, s := fixture(t)

	data, err := s.FetchMessage(2)
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, "Re: Budget", data.Subject)
	assert.True(t, data.HasFlag(imap.FlagSeen))
	assert.Equal(t, base.Add(time.Hour), data.InternalDate)
	assert.Positive(t, data.Size)

	data, err = s.FetchMessage(999)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSessionExpunge(t *testing.T) {
	b, s := fixture(t)
	require.NoError(t, s.UIDStore("2:3", "+FLAGS", `(\Deleted)`))

	seqs, err := s.Expunge(nil)
	require.NoError(t, err)
	assert.Equal(t, []uint32{2, 2}, seqs)
	assert.Len(t, b.Messages("INBOX"), 2)

	uid, err := b.Append("INBOX", Message{Subject: "late"})
	require.NoError(t, err)
	assert.Equal(t, imap.UID(5), uid)
}

func TestBackendMailboxes(t *testing.T) {
	b := NewBackend()
	require.NoError(t, b.CreateMailbox("Archive"))
	assert.Error(t, b.CreateMailbox("Archive"))
	assert.Equal(t, []string{"Archive", "INBOX"}, b.Mailboxes())

	assert.Error(t, b.DeleteMailbox("inbox"))
	require.NoError(t, b.DeleteMailbox("Archive"))
	assert.True(t, imap.HasCode(b.DeleteMailbox("Archive"), imap.ResponseCodeNonExistent))
	assert.Nil(t, b.Messages("Archive"))
}

func TestBaseSubject(t *testing.T) {
	tests := map[string]string{
		"Budget":             "budget",
		"Re: Budget":         "budget",
		"RE: Fwd: re: topic": "topic",
		"FW:  spaced":        "spaced",
		"Reply":              "reply",
	}
	for in, want := range tests {
		assert.Equal(t, want, baseSubject(in), in)
	}
}
