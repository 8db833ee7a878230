package mailbox_test

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	imap "github.com/meszmate/imap-mailbox"
	"github.com/meszmate/imap-mailbox/imaptest"
	"github.com/meszmate/imap-mailbox/mailbox"
	"github.com/meszmate/imap-mailbox/search"
)

var received = time.Date(2017, time.October, 1, 9, 30, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seed fills name with messages B, A and C, received in that order.
func seed(t *testing.T, b *imaptest.Backend, name string) {
	t.Helper()
	for i, subject := range []string{"B", "A", "C"} {
		_, err := b.Append(name, imaptest.Message{
			Subject:      subject,
			From:         "sender@example.org",
			Body:         "body of " + subject,
			InternalDate: received.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}
}

func newInbox(t *testing.T) (*imaptest.Backend, *imaptest.Session, *mailbox.Mailbox) {
	t.Helper()
	b := imaptest.NewBackend()
	seed(t, b, "INBOX")
	s := b.Session()
	return b, s, mailbox.New(s, "INBOX", mailbox.WithLogger(quietLogger()))
}

func subjects(t *testing.T, msgs *mailbox.Messages) []string {
	t.Helper()
	var out []string
	for msgs.Next() {
		subject, err := msgs.Message().Subject()
		require.NoError(t, err)
		out = append(out, subject)
	}
	require.NoError(t, msgs.Err())
	return out
}

func TestMessagesOrdering(t *testing.T) {
	_, _, inbox := newInbox(t)

	tests := []struct {
		name string
		c    search.Criterion
		opts *mailbox.SearchOptions
		want []string
	}{
		{"server order", nil, nil, []string{"B", "A", "C"}},
		{"sorted", nil, &mailbox.SearchOptions{Sort: imap.SortKeySubject}, []string{"A", "B", "C"}},
		{"reversed", nil, &mailbox.SearchOptions{Sort: imap.SortKeySubject, Reverse: true}, []string{"C", "B", "A"}},
		{"filtered", search.Subject("B"), &mailbox.SearchOptions{Sort: imap.SortKeySubject}, []string{"B"}},
		{"reverse without sort", nil, &mailbox.SearchOptions{Reverse: true}, []string{"B", "A", "C"}},
		{"arrival", search.Not(search.Subject("A")), &mailbox.SearchOptions{Sort: imap.SortKeyArrival, Reverse: true}, []string{"C", "B"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, err := inbox.Messages(tt.c, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, subjects(t, msgs))
		})
	}
}

func TestMessagesNonASCII(t *testing.T) {
	b, _, inbox := newInbox(t)
	_, err := b.Append("INBOX", imaptest.Message{Subject: "Привет, мир"})
	require.NoError(t, err)

	msgs, err := inbox.Messages(search.Subject("Привет"), nil)
	require.NoError(t, err)
	assert.Equal(t, []imap.UID{4}, msgs.UIDs())

	msgs, err = inbox.Messages(search.Subject("Привет"), &mailbox.SearchOptions{Charset: "KOI8-R"})
	require.NoError(t, err)
	assert.Equal(t, []imap.UID{4}, msgs.UIDs())
}

func TestMessagesInvalidCriteria(t *testing.T) {
	_, _, inbox := newInbox(t)

	_, err := inbox.Messages(search.Subject("line\r\nbreak"), nil)
	assert.ErrorIs(t, err, imap.ErrInvalidSearchCriteria)

	_, err = inbox.Messages(nil, &mailbox.SearchOptions{Sort: "COLOR"})
	assert.ErrorIs(t, err, imap.ErrInvalidSearchCriteria)
}

func TestCount(t *testing.T) {
	_, _, inbox := newInbox(t)
	n, err := inbox.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestBulkFlags(t *testing.T) {
	b, s, inbox := newInbox(t)
	require.NoError(t, b.CreateMailbox("Other"))
	seed(t, b, "Other")
	other := mailbox.New(s, "Other", mailbox.WithLogger(quietLogger()))

	require.NoError(t, inbox.SetFlag(imap.FlagSeen, []int{1, 2, 3}))

	seen, err := inbox.Messages(search.Seen, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, seen.Len())

	seen, err = other.Messages(search.Seen, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, seen.Len())

	require.NoError(t, inbox.ClearFlag(imap.FlagSeen, "2:3"))
	unseen, err := inbox.Messages(search.Unseen, nil)
	require.NoError(t, err)
	assert.Equal(t, []imap.UID{2, 3}, unseen.UIDs())

	all, err := other.All()
	require.NoError(t, err)
	require.NoError(t, other.SetFlag(imap.FlagFlagged, all))
	for _, m := range b.Messages("Other") {
		assert.Equal(t, []imap.Flag{imap.FlagFlagged}, m.Flags)
	}
}

func TestBulkFlagsRejectsBadInput(t *testing.T) {
	_, _, inbox := newInbox(t)

	for _, ids := range []any{"1:x", []int{}, -1, 3.5, ""} {
		assert.ErrorIs(t, inbox.SetFlag(imap.FlagSeen, ids), imap.ErrInvalidSearchCriteria, "%v", ids)
	}
	assert.ErrorIs(t, inbox.SetFlag("bad flag", 1), imap.ErrInvalidSearchCriteria)
	assert.ErrorIs(t, inbox.SetFlag(`\`, 1), imap.ErrInvalidSearchCriteria)
}

func TestCopyAndMove(t *testing.T) {
	b, s, inbox := newInbox(t)
	require.NoError(t, b.CreateMailbox("Archive"))
	archive := mailbox.New(s, "Archive", mailbox.WithLogger(quietLogger()))

	require.NoError(t, inbox.Copy([]int{1, 2}, archive))
	n, err := archive.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, inbox.Move(3, "Archive"))
	n, err = inbox.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	moved, err := archive.Messages(search.Subject("C"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, subjects(t, moved))
}

func TestCopyToDeletedMailbox(t *testing.T) {
	b, _, inbox := newInbox(t)
	require.NoError(t, b.CreateMailbox("Trash"))
	require.NoError(t, b.DeleteMailbox("Trash"))

	err := inbox.Copy(1, "Trash")
	require.Error(t, err)
	assert.ErrorIs(t, err, imap.ErrMessageCopyFailed)
	assert.True(t, imap.HasCode(err, imap.ResponseCodeTryCreate))
	assert.Contains(t, err.Error(), `to "Trash"`)

	err = inbox.Move(1, "Trash")
	require.Error(t, err)
	assert.ErrorIs(t, err, imap.ErrMessageMoveFailed)
	assert.False(t, errors.Is(err, imap.ErrMessageCopyFailed))
	assert.True(t, imap.HasCode(err, imap.ResponseCodeTryCreate))

	n, err := inbox.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestTransferDestinations(t *testing.T) {
	_, _, inbox := newInbox(t)

	assert.Error(t, inbox.Copy(1, ""))
	assert.Error(t, inbox.Copy(1, (*mailbox.Mailbox)(nil)))
	assert.Error(t, inbox.Move(1, 42))
	assert.ErrorIs(t, inbox.Move("x", "Archive"), imap.ErrInvalidSearchCriteria)
}

func TestMessageSequence(t *testing.T) {
	_, _, inbox := newInbox(t)

	msgs, err := inbox.MessageSequence("1:*")
	require.NoError(t, err)
	assert.Equal(t, 3, msgs.Len())

	msgs, err = inbox.MessageSequence("2,3")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, subjects(t, msgs))

	msgs, err = inbox.MessageSequence("99998:99999")
	require.NoError(t, err)
	assert.Equal(t, 0, msgs.Len())
	assert.False(t, msgs.Next())

	_, err = inbox.MessageSequence("-1:x")
	assert.ErrorIs(t, err, imap.ErrInvalidSearchCriteria)
}

func TestMessageHandle(t *testing.T) {
	b, _, inbox := newInbox(t)

	msg := inbox.Message(2)
	assert.Equal(t, imap.UID(2), msg.UID())
	assert.Same(t, inbox, msg.Mailbox())

	subject, err := msg.Subject()
	require.NoError(t, err)
	assert.Equal(t, "A", subject)

	date, err := msg.InternalDate()
	require.NoError(t, err)
	assert.True(t, date.Equal(received.Add(time.Hour)))

	size, err := msg.Size()
	require.NoError(t, err)
	assert.Positive(t, size)

	seen, err := msg.IsSeen()
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, msg.MarkAsSeen())
	seen, err = msg.IsSeen()
	require.NoError(t, err)
	assert.True(t, seen)
	assert.Equal(t, []imap.Flag{imap.FlagSeen}, b.Messages("INBOX")[1].Flags)

	require.NoError(t, msg.Delete())
	deleted, err := msg.IsDeleted()
	require.NoError(t, err)
	assert.True(t, deleted)

	require.NoError(t, msg.ClearFlag(imap.FlagSeen))
	flags, err := msg.Flags()
	require.NoError(t, err)
	assert.Equal(t, []imap.Flag{imap.FlagDeleted}, flags)
}

func TestMessageNotFound(t *testing.T) {
	_, _, inbox := newInbox(t)

	_, err := inbox.Message(999).Subject()
	require.Error(t, err)
	assert.ErrorIs(t, err, imap.ErrMessageNotFound)
	assert.Contains(t, err.Error(), `message "999" does not exist`)
}

func TestThread(t *testing.T) {
	b, _, inbox := newInbox(t)
	_, err := b.Append("INBOX", imaptest.Message{Subject: "Re: B", InternalDate: received.Add(3 * time.Hour)})
	require.NoError(t, err)

	nodes, err := inbox.Thread()
	require.NoError(t, err)
	assert.Equal(t, []imap.ThreadNode{
		{Num: 1, Next: 1, Branch: 2},
		{Num: 4},
		{Num: 2, Branch: 3},
		{Num: 3},
	}, nodes)
}

func TestMailboxMissing(t *testing.T) {
	b := imaptest.NewBackend()
	gone := mailbox.New(b.Session(), "Gone", mailbox.WithLogger(quietLogger()))

	_, err := gone.Count()
	require.Error(t, err)
	assert.True(t, imap.HasCode(err, imap.ResponseCodeNonExistent))
}
