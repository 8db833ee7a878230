package imap

import (
	"fmt"
	"io"
	"strings"

	"github.com/meszmate/imap-mailbox/wire"
)

// ThreadAlgorithm represents a threading algorithm.
type ThreadAlgorithm string

const (
	ThreadAlgorithmOrderedSubject ThreadAlgorithm = "ORDEREDSUBJECT"
	ThreadAlgorithmReferences     ThreadAlgorithm = "REFERENCES"
	ThreadAlgorithmRefs           ThreadAlgorithm = "REFS"
)

// Valid reports whether a is a known algorithm.
func (a ThreadAlgorithm) Valid() bool {
	switch a {
	case ThreadAlgorithmOrderedSubject, ThreadAlgorithmReferences, ThreadAlgorithmRefs:
		return true
	}
	return false
}

// Thread represents a message in a thread tree.
type Thread struct {
	// Num is the message sequence number or UID at this node.
	Num uint32
	// Children are the replies to this message, one per branch.
	Children []Thread
}

// ThreadData represents the result of a THREAD command.
type ThreadData struct {
	Threads []Thread
}

// ThreadNode is one entry of a flattened THREAD response.
//
// Next and Branch are indexes into the slice returned by DecodeThread. Index
// 0 always holds the root of the first thread, which nothing links to, so a
// link of 0 means "none".
type ThreadNode struct {
	// Num is the message number this node stands for.
	Num uint32
	// Next is the index of the following message in this thread: the reply
	// to Num, or the first message of its first branch.
	Next uint32
	// Branch is the index of the next alternative at the same point: the
	// next reply to the same parent, or the root of the next thread.
	Branch uint32
}

// DecodeThread parses the thread lists of a THREAD response into nodes
// ordered as their message numbers appear in the text. raw may carry the
// leading "* THREAD" or "THREAD"; an empty response yields no nodes.
func DecodeThread(raw string) ([]ThreadNode, error) {
	a, err := parseThreads(raw)
	if err != nil {
		return nil, err
	}

	nodes := make([]ThreadNode, len(a.nums))
	for i, num := range a.nums {
		nodes[i].Num = num
		if kids := a.children[i]; len(kids) > 0 {
			nodes[i].Next = uint32(kids[0])
			linkBranches(nodes, kids)
		}
	}
	linkBranches(nodes, a.roots)
	return nodes, nil
}

// ParseThreadData parses a THREAD response into a tree of threads.
func ParseThreadData(raw string) (*ThreadData, error) {
	a, err := parseThreads(raw)
	if err != nil {
		return nil, err
	}

	// Children always have a larger index than their parent, so walking
	// backwards completes every subtree before it is copied into its parent.
	built := make([]Thread, len(a.nums))
	for i := len(a.nums) - 1; i >= 0; i-- {
		t := Thread{Num: a.nums[i]}
		if kids := a.children[i]; len(kids) > 0 {
			t.Children = make([]Thread, len(kids))
			for k, c := range kids {
				t.Children[k] = built[c]
			}
		}
		built[i] = t
	}

	data := &ThreadData{Threads: make([]Thread, len(a.roots))}
	for i, r := range a.roots {
		data.Threads[i] = built[r]
	}
	return data, nil
}

func linkBranches(nodes []ThreadNode, siblings []int) {
	for k := 0; k+1 < len(siblings); k++ {
		nodes[siblings[k]].Branch = uint32(siblings[k+1])
	}
}

// threadArena holds parsed messages in encounter order.
type threadArena struct {
	nums     []uint32
	children [][]int
	roots    []int
}

func (a *threadArena) add(num uint32, parent int) int {
	id := len(a.nums)
	a.nums = append(a.nums, num)
	a.children = append(a.children, nil)
	if parent < 0 {
		a.roots = append(a.roots, id)
	} else {
		a.children[parent] = append(a.children[parent], id)
	}
	return id
}

// threadFrame is an open parenthesized list. Messages in the list hang off
// last, or off parent when the list has no message yet.
type threadFrame struct {
	parent int
	last   int
}

// parseThreads reads the thread-list grammar of RFC 5256 with an explicit
// stack, so deeply nested responses do not grow the call stack.
func parseThreads(raw string) (*threadArena, error) {
	return readThreads(strings.NewReader(raw))
}

func readThreads(r io.Reader) (*threadArena, error) {
	a := &threadArena{}
	dec := wire.NewDecoder(r)
	if err := skipThreadPrefix(dec); err != nil {
		return nil, err
	}

	var stack []threadFrame
	for {
		b, err := dec.PeekByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch {
		case b == '(':
			_ = dec.ExpectByte('(')
			parent := -1
			if n := len(stack); n > 0 {
				parent = stack[n-1].last
				if parent < 0 {
					parent = stack[n-1].parent
				}
			}
			stack = append(stack, threadFrame{parent: parent, last: -1})
		case b == ')':
			_ = dec.ExpectByte(')')
			if len(stack) == 0 {
				return nil, fmt.Errorf("imap: unbalanced ')' in thread response")
			}
			stack = stack[:len(stack)-1]
		case b >= '0' && b <= '9':
			if len(stack) == 0 {
				return nil, fmt.Errorf("imap: message number outside thread list")
			}
			num, err := dec.ReadNumber()
			if err != nil {
				return nil, fmt.Errorf("imap: thread response: %w", err)
			}
			if num == 0 {
				return nil, fmt.Errorf("imap: thread response: message number must be non-zero")
			}
			top := &stack[len(stack)-1]
			owner := top.last
			if owner < 0 {
				owner = top.parent
			}
			top.last = a.add(num, owner)
		case isThreadSpace(b):
			_ = dec.DiscardN(1)
		default:
			return nil, fmt.Errorf("imap: unexpected %q in thread response", b)
		}
	}

	if len(stack) != 0 {
		return nil, fmt.Errorf("imap: unbalanced '(' in thread response")
	}
	return a, nil
}

// skipThreadPrefix consumes an optional "* " and "THREAD" keyword.
func skipThreadPrefix(dec *wire.Decoder) error {
	b, err := skipThreadSpace(dec)
	if err != nil {
		return eofOK(err)
	}
	if b == '*' {
		_ = dec.ExpectByte('*')
		if b, err = skipThreadSpace(dec); err != nil {
			return eofOK(err)
		}
	}
	if (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') {
		atom, err := dec.ReadAtom()
		if err != nil {
			return err
		}
		if !strings.EqualFold(atom, "THREAD") {
			return fmt.Errorf("imap: expected THREAD response, got %q", atom)
		}
	}
	return nil
}

func eofOK(err error) error {
	if err == io.EOF {
		return nil
	}
	return err
}

func skipThreadSpace(dec *wire.Decoder) (byte, error) {
	for {
		b, err := dec.PeekByte()
		if err != nil {
			return 0, err
		}
		if !isThreadSpace(b) {
			return b, nil
		}
		_ = dec.DiscardN(1)
	}
}

func isThreadSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}
