package imap

import (
	"fmt"
	"strconv"
	"strings"
)

// UID represents an IMAP unique identifier.
type UID uint32

// NumRange is one element of a message set. A zero bound stands for "*",
// the largest number in use. Start == Stop denotes a single number.
type NumRange struct {
	Start uint32
	Stop  uint32
}

// Contains reports whether num falls in the range once "*" is resolved to
// last. Bounds may be written in either order.
func (r NumRange) Contains(num, last uint32) bool {
	lo, hi := resolveStar(r.Start, last), resolveStar(r.Stop, last)
	if lo > hi {
		lo, hi = hi, lo
	}
	return num >= lo && num <= hi
}

func resolveStar(n, last uint32) uint32 {
	if n == 0 {
		return last
	}
	return n
}

func (r NumRange) String() string {
	if r.Start == r.Stop {
		return formatSetNum(r.Start)
	}
	return formatSetNum(r.Start) + ":" + formatSetNum(r.Stop)
}

func formatSetNum(n uint32) string {
	if n == 0 {
		return "*"
	}
	return strconv.FormatUint(uint64(n), 10)
}

// UIDSet is an ordered list of UID ranges. String renders the set argument
// sent to the server, ranges kept in the order they were added.
type UIDSet struct {
	Set []NumRange
}

// ParseUIDSet reads a set received on the wire, such as "1,2:5,10:*".
// It accepts "*" on either side of a range; outgoing sets are checked with
// NormalizeUIDs instead.
func ParseUIDSet(s string) (*UIDSet, error) {
	if s == "" {
		return nil, fmt.Errorf("imap: empty message set")
	}
	set := &UIDSet{}
	for _, part := range strings.Split(s, ",") {
		lo, hi, isRange := strings.Cut(part, ":")
		start, err := parseWireNum(lo)
		if err != nil {
			return nil, err
		}
		stop := start
		if isRange {
			if stop, err = parseWireNum(hi); err != nil {
				return nil, err
			}
		}
		set.Set = append(set.Set, NumRange{Start: start, Stop: stop})
	}
	return set, nil
}

func parseWireNum(s string) (uint32, error) {
	if s == "*" {
		return 0, nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("imap: bad message number %q", s)
	}
	return uint32(n), nil
}

// Contains reports whether num is in the set, with "*" standing for last.
func (us *UIDSet) Contains(num, last uint32) bool {
	for _, r := range us.Set {
		if r.Contains(num, last) {
			return true
		}
	}
	return false
}

// AddNum appends single UIDs.
func (us *UIDSet) AddNum(uids ...UID) {
	for _, u := range uids {
		us.Set = append(us.Set, NumRange{Start: uint32(u), Stop: uint32(u)})
	}
}

func (us *UIDSet) String() string {
	parts := make([]string, len(us.Set))
	for i, r := range us.Set {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}
