package imap

import (
	"strings"
	"sync"
)

// Cap represents an IMAP capability.
type Cap string

// Capabilities the mailbox layer and its transports look at.
const (
	CapIMAP4rev1     Cap = "IMAP4rev1"
	CapIMAP4rev2     Cap = "IMAP4rev2"
	CapStartTLS      Cap = "STARTTLS"
	CapLoginDisabled Cap = "LOGINDISABLED"

	// RFC 7888 - LITERAL+
	CapLiteralPlus Cap = "LITERAL+"

	// RFC 4315 - UIDPLUS
	CapUIDPlus Cap = "UIDPLUS"

	// RFC 6851 - MOVE
	CapMove Cap = "MOVE"

	// RFC 5256 - SORT and THREAD
	CapSort                 Cap = "SORT"
	CapThreadOrderedSubject Cap = "THREAD=ORDEREDSUBJECT"
	CapThreadReferences     Cap = "THREAD=REFERENCES"

	// RFC 9051 - IMAP4rev2
	CapThreadRefs Cap = "THREAD=REFS"
)

// ThreadCap returns the capability that advertises alg.
func ThreadCap(alg ThreadAlgorithm) Cap {
	return Cap("THREAD=" + strings.ToUpper(string(alg)))
}

// CapSet is an ordered set of IMAP capabilities. Capability names are
// atoms, so membership ignores case; the spelling first added is kept.
type CapSet struct {
	mu    sync.RWMutex
	caps  []Cap
	index map[string]struct{}
}

// NewCapSet creates a new CapSet with the given capabilities.
func NewCapSet(caps ...Cap) *CapSet {
	cs := &CapSet{index: make(map[string]struct{}, len(caps))}
	cs.Add(caps...)
	return cs
}

// ParseCapSet parses the space-separated capability list of a
// CAPABILITY response or response code.
func ParseCapSet(s string) *CapSet {
	fields := strings.Fields(s)
	caps := make([]Cap, len(fields))
	for i, f := range fields {
		caps[i] = Cap(f)
	}
	return NewCapSet(caps...)
}

// Has returns true if the set contains the given capability.
func (cs *CapSet) Has(cap Cap) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	_, ok := cs.index[strings.ToUpper(string(cap))]
	return ok
}

// Add adds capabilities to the set.
func (cs *CapSet) Add(caps ...Cap) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, c := range caps {
		key := strings.ToUpper(string(c))
		if _, ok := cs.index[key]; ok {
			continue
		}
		cs.index[key] = struct{}{}
		cs.caps = append(cs.caps, c)
	}
}

// All returns all capabilities in the order they were added.
func (cs *CapSet) All() []Cap {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	result := make([]Cap, len(cs.caps))
	copy(result, cs.caps)
	return result
}

// Len returns the number of capabilities in the set.
func (cs *CapSet) Len() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.caps)
}

// String returns the capabilities as a space-separated string.
func (cs *CapSet) String() string {
	caps := cs.All()
	strs := make([]string, len(caps))
	for i, c := range caps {
		strs[i] = string(c)
	}
	return strings.Join(strs, " ")
}
