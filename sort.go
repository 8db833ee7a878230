package imap

// SortKey represents a SORT criterion key (RFC 5256).
type SortKey string

const (
	SortKeyArrival SortKey = "ARRIVAL"
	SortKeyCc      SortKey = "CC"
	SortKeyDate    SortKey = "DATE"
	SortKeyFrom    SortKey = "FROM"
	SortKeySize    SortKey = "SIZE"
	SortKeySubject SortKey = "SUBJECT"
	SortKeyTo      SortKey = "TO"
)

// Valid reports whether k is one of the RFC 5256 sort keys.
func (k SortKey) Valid() bool {
	switch k {
	case SortKeyArrival, SortKeyCc, SortKeyDate, SortKeyFrom, SortKeySize, SortKeySubject, SortKeyTo:
		return true
	}
	return false
}

// SortCriterion represents a single sort criterion.
type SortCriterion struct {
	Key     SortKey
	Reverse bool
}

// String returns the criterion as it appears in the sort program,
// e.g. "REVERSE SUBJECT".
func (c SortCriterion) String() string {
	if c.Reverse {
		return "REVERSE " + string(c.Key)
	}
	return string(c.Key)
}
