// Package pool provides connection pooling for IMAP clients.
package pool

import (
	"errors"
	"sync"

	"github.com/meszmate/imap-mailbox/client"
)

// ErrClosed is returned by Get after Close.
var ErrClosed = errors.New("pool: closed")

// Pool manages a pool of IMAP client connections. Clients whose
// connection has ended are discarded instead of being handed out again.
type Pool struct {
	mu      sync.Mutex
	factory func() (*client.Client, error)
	clients []*client.Client
	maxSize int
	closed  bool
}

// New creates a new connection pool keeping at most maxSize idle clients.
// factory dials and authenticates a new client.
func New(maxSize int, factory func() (*client.Client, error)) *Pool {
	return &Pool{
		factory: factory,
		maxSize: maxSize,
	}
}

// Get returns a live client from the pool, creating a new one if necessary.
func (p *Pool) Get() (*client.Client, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	for len(p.clients) > 0 {
		c := p.clients[len(p.clients)-1]
		p.clients = p.clients[:len(p.clients)-1]
		if alive(c) {
			p.mu.Unlock()
			return c, nil
		}
		c.Close()
	}
	p.mu.Unlock()

	return p.factory()
}

// Put returns a client to the pool.
func (p *Pool) Put(c *client.Client) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || len(p.clients) >= p.maxSize || !alive(c) {
		c.Close()
		return
	}

	p.clients = append(p.clients, c)
}

// Do runs fn with a pooled client and returns the client to the pool
// afterwards. A client whose connection ended during fn is dropped.
func (p *Pool) Do(fn func(c *client.Client) error) error {
	c, err := p.Get()
	if err != nil {
		return err
	}
	defer p.Put(c)
	return fn(c)
}

// Close closes all clients in the pool.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	for _, c := range p.clients {
		c.Close()
	}
	p.clients = nil
	return nil
}

// Len returns the number of idle clients in the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

func alive(c *client.Client) bool {
	select {
	case <-c.Done():
		return false
	default:
		return true
	}
}
