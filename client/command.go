package client

import (
	"strconv"
	"sync"
	"sync/atomic"
)

// commandResult is what the tagged completion of a command carried.
type commandResult struct {
	status string
	code   string
	text   string
	err    error // set when the command never got its completion
}

// inflight issues command tags and hands each tagged completion to the
// goroutine waiting for it.
type inflight struct {
	prefix string
	seq    atomic.Uint64

	mu      sync.Mutex
	waiting map[string]chan *commandResult
}

func newInflight(prefix string) *inflight {
	return &inflight{prefix: prefix, waiting: make(map[string]chan *commandResult)}
}

// begin allocates a tag and registers a waiter for it.
func (f *inflight) begin() (string, <-chan *commandResult) {
	tag := f.prefix + strconv.FormatUint(f.seq.Add(1), 10)
	ch := make(chan *commandResult, 1)
	f.mu.Lock()
	f.waiting[tag] = ch
	f.mu.Unlock()
	return tag, ch
}

// finish delivers res to the waiter for tag and forgets it. A nil res only
// forgets. It reports whether tag was outstanding.
func (f *inflight) finish(tag string, res *commandResult) bool {
	f.mu.Lock()
	ch, ok := f.waiting[tag]
	delete(f.waiting, tag)
	f.mu.Unlock()
	if ok && res != nil {
		ch <- res
	}
	return ok
}

// abort fails every outstanding command with err.
func (f *inflight) abort(err error) {
	f.mu.Lock()
	waiting := f.waiting
	f.waiting = make(map[string]chan *commandResult)
	f.mu.Unlock()
	for _, ch := range waiting {
		ch <- &commandResult{err: err}
	}
}
