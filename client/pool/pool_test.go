package pool_test

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	imap "github.com/meszmate/imap-mailbox"
	"github.com/meszmate/imap-mailbox/client"
	"github.com/meszmate/imap-mailbox/client/pool"
	"github.com/meszmate/imap-mailbox/imaptest"
)

func newPool(t *testing.T, maxSize int) (*pool.Pool, *int) {
	t.Helper()
	b := imaptest.NewBackend()
	_, err := b.Append("INBOX", imaptest.Message{Subject: "hello"})
	require.NoError(t, err)
	srv := imaptest.NewServer(t, b)

	dials := 0
	p := pool.New(maxSize, func() (*client.Client, error) {
		dials++
		c, err := client.Dial(srv.Addr(), client.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
		if err != nil {
			return nil, err
		}
		if err := c.Login("user", "pass"); err != nil {
			c.Close()
			return nil, err
		}
		return c, nil
	})
	t.Cleanup(func() { p.Close() })
	return p, &dials
}

func TestPoolReuse(t *testing.T) {
	p, dials := newPool(t, 1)

	c1, err := p.Get()
	require.NoError(t, err)
	c2, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, 2, *dials)

	p.Put(c1)
	p.Put(c2)
	assert.Equal(t, 1, p.Len())
	select {
	case <-c2.Done():
	default:
		t.Fatal("client beyond maxSize was not closed")
	}

	c3, err := p.Get()
	require.NoError(t, err)
	assert.Same(t, c1, c3)
	assert.Equal(t, 2, *dials)
}

func TestPoolDropsDeadClients(t *testing.T) {
	p, dials := newPool(t, 2)

	c, err := p.Get()
	require.NoError(t, err)
	p.Put(c)
	require.NoError(t, c.Close())

	fresh, err := p.Get()
	require.NoError(t, err)
	assert.NotSame(t, c, fresh)
	assert.Equal(t, 2, *dials)

	require.NoError(t, fresh.Logout())
	p.Put(fresh)
	assert.Equal(t, 0, p.Len())
}

func TestPoolDo(t *testing.T) {
	p, _ := newPool(t, 1)

	var uids []imap.UID
	err := p.Do(func(c *client.Client) error {
		n, err := c.Mailbox("INBOX").Count()
		if err != nil {
			return err
		}
		uids, err = c.UIDSearch("ALL")
		assert.Equal(t, 1, n)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []imap.UID{1}, uids)
	assert.Equal(t, 1, p.Len())

	boom := errors.New("boom")
	assert.ErrorIs(t, p.Do(func(*client.Client) error { return boom }), boom)

	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.Do(func(*client.Client) error { return nil }), pool.ErrClosed)
}
