package imap

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var reSetToken = regexp.MustCompile(`^([0-9]+)(?::([0-9]+|\*))?$`)

// NormalizeUIDs validates the identifier shapes accepted by bulk operations
// and returns them as a UID set. Accepted inputs are a single id (int,
// uint32, UID), a set string such as "1,2,4:6,8:*", a list of set strings,
// a list of ids, or an existing *UIDSet. List elements are joined with ",".
//
// Every token must be a positive number or a range low:high where high may
// be "*". Ranges are kept in the order written. Anything else, including an
// unsupported input type, fails with ErrInvalidSearchCriteria.
func NormalizeUIDs(input any) (*UIDSet, error) {
	switch v := input.(type) {
	case int:
		return normalizeNums([]int{v})
	case uint32:
		return normalizeNums([]int{int(v)})
	case UID:
		return normalizeNums([]int{int(v)})
	case []int:
		return normalizeNums(v)
	case []uint32:
		nums := make([]int, len(v))
		for i, n := range v {
			nums[i] = int(n)
		}
		return normalizeNums(nums)
	case []UID:
		nums := make([]int, len(v))
		for i, n := range v {
			nums[i] = int(n)
		}
		return normalizeNums(nums)
	case string:
		return normalizeSetString(v)
	case []string:
		return normalizeSetString(strings.Join(v, ","))
	case *UIDSet:
		if v == nil {
			return nil, fmt.Errorf("%w: nil UID set", ErrInvalidSearchCriteria)
		}
		return normalizeSetString(v.String())
	default:
		return nil, fmt.Errorf("%w: unsupported message set input %T", ErrInvalidSearchCriteria, input)
	}
}

func normalizeNums(nums []int) (*UIDSet, error) {
	if len(nums) == 0 {
		return nil, fmt.Errorf("%w: empty message set", ErrInvalidSearchCriteria)
	}
	set := &UIDSet{Set: make([]NumRange, 0, len(nums))}
	for _, n := range nums {
		if n < 1 || int64(n) > math.MaxUint32 {
			return nil, fmt.Errorf("%w: message id %d out of range", ErrInvalidSearchCriteria, n)
		}
		set.AddNum(UID(n))
	}
	return set, nil
}

func normalizeSetString(s string) (*UIDSet, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty message set", ErrInvalidSearchCriteria)
	}
	tokens := strings.Split(s, ",")
	set := &UIDSet{Set: make([]NumRange, 0, len(tokens))}
	for _, tok := range tokens {
		m := reSetToken.FindStringSubmatch(tok)
		if m == nil {
			return nil, fmt.Errorf("%w: malformed message set token %q", ErrInvalidSearchCriteria, tok)
		}
		start, err := parseSetNum(m[1])
		if err != nil {
			return nil, err
		}
		stop := start
		switch m[2] {
		case "":
		case "*":
			stop = 0
		default:
			if stop, err = parseSetNum(m[2]); err != nil {
				return nil, err
			}
		}
		set.Set = append(set.Set, NumRange{Start: start, Stop: stop})
	}
	return set, nil
}

func parseSetNum(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: message id %q out of range", ErrInvalidSearchCriteria, s)
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: message id must be non-zero", ErrInvalidSearchCriteria)
	}
	return uint32(n), nil
}
