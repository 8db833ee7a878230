package search

import (
	"fmt"
	"strings"

	imap "github.com/meszmate/imap-mailbox"
)

// Format serializes c after checking every key in it. It fails with
// imap.ErrInvalidSearchCriteria for key types this package does not define,
// for values that contain CR, LF or NUL, and for OR or NOT operands that are
// missing or empty.
func Format(c Criterion) (string, error) {
	if err := validate(c, false); err != nil {
		return "", err
	}
	return c.String(), nil
}

// validate walks the tree with an explicit stack so that deeply nested
// user-built trees cannot exhaust the goroutine stack.
func validate(root Criterion, operand bool) error {
	type item struct {
		c       Criterion
		operand bool
	}
	stack := []item{{root, operand}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch k := it.c.(type) {
		case nil:
			return fmt.Errorf("%w: nil criterion", imap.ErrInvalidSearchCriteria)
		case TextKey:
			if !k.Field.valid() {
				return fmt.Errorf("%w: unknown text key %q", imap.ErrInvalidSearchCriteria, k.Field)
			}
			if err := checkQuotable(k.Value); err != nil {
				return err
			}
		case AddressKey:
			if !k.Field.valid() {
				return fmt.Errorf("%w: unknown address key %q", imap.ErrInvalidSearchCriteria, k.Field)
			}
			if err := checkQuotable(k.Value); err != nil {
				return err
			}
		case DateKey:
			if !k.Field.valid() {
				return fmt.Errorf("%w: unknown date key %q", imap.ErrInvalidSearchCriteria, k.Field)
			}
		case FlagKey:
			if !k.valid() {
				return fmt.Errorf("%w: unknown flag key %q", imap.ErrInvalidSearchCriteria, string(k))
			}
		case Raw:
			if strings.TrimSpace(string(k)) == "" {
				return fmt.Errorf("%w: empty raw criterion", imap.ErrInvalidSearchCriteria)
			}
			if strings.ContainsAny(string(k), "\r\n\x00") {
				return fmt.Errorf("%w: raw criterion contains a line break", imap.ErrInvalidSearchCriteria)
			}
		case All:
		case OrKey:
			stack = append(stack, item{k.Right, true}, item{k.Left, true})
		case NotKey:
			stack = append(stack, item{k.Criterion, true})
		case HeaderKey:
			if k.Name == "" {
				return fmt.Errorf("%w: empty header name", imap.ErrInvalidSearchCriteria)
			}
			if err := checkQuotable(k.Name); err != nil {
				return err
			}
			if err := checkQuotable(k.Value); err != nil {
				return err
			}
		case SizeKey:
		case UIDKey:
			if _, err := imap.NormalizeUIDs(k.Set); err != nil {
				return err
			}
		case *Expression:
			if it.operand && (k.Len() == 0 || k.String() == "") {
				return fmt.Errorf("%w: empty expression as operand", imap.ErrInvalidSearchCriteria)
			}
			for i := len(k.conds) - 1; i >= 0; i-- {
				stack = append(stack, item{k.conds[i], false})
			}
		default:
			return fmt.Errorf("%w: unknown criterion %T", imap.ErrInvalidSearchCriteria, it.c)
		}
	}
	return nil
}

func checkQuotable(s string) error {
	if i := strings.IndexAny(s, "\r\n\x00"); i >= 0 {
		return fmt.Errorf("%w: value %q contains a character that cannot be quoted", imap.ErrInvalidSearchCriteria, s)
	}
	return nil
}
