package imap

// StoreAction specifies how flags should be modified.
type StoreAction int

const (
	// StoreFlagsSet replaces existing flags.
	StoreFlagsSet StoreAction = iota
	// StoreFlagsAdd adds to existing flags.
	StoreFlagsAdd
	// StoreFlagsDel removes from existing flags.
	StoreFlagsDel
)

// String returns the IMAP representation of the store action.
func (a StoreAction) String() string {
	switch a {
	case StoreFlagsAdd:
		return "+FLAGS"
	case StoreFlagsDel:
		return "-FLAGS"
	default:
		return "FLAGS"
	}
}

// Item returns the STORE data item name, with the .SILENT suffix when the
// server should not echo the new flags back.
func (a StoreAction) Item(silent bool) string {
	if silent {
		return a.String() + ".SILENT"
	}
	return a.String()
}

// FlagList formats flags as a parenthesized STORE flag list.
func FlagList(flags ...Flag) string {
	b := make([]byte, 0, 16*len(flags)+2)
	b = append(b, '(')
	for i, f := range flags {
		if i > 0 {
			b = append(b, ' ')
		}
		b = append(b, f...)
	}
	return string(append(b, ')'))
}
