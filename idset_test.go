package imap

import (
	"errors"
	"testing"
)

func TestNormalizeUIDs(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"single int", 3, "3"},
		{"single uint32", uint32(7), "7"},
		{"single UID", UID(9), "9"},
		{"set string", "7,8:10", "7,8:10"},
		{"star range", "1:*", "1:*"},
		{"string list", []string{"1,2", "3", "4:6"}, "1,2,3,4:6"},
		{"int list", []int{1, 2, 3}, "1,2,3"},
		{"uint32 list", []uint32{4, 5}, "4,5"},
		{"UID list", []UID{10, 11}, "10,11"},
		{"reversed range kept", "6:4", "6:4"},
		{"degenerate range collapses", "4:4", "4"},
		{"uid set", &UIDSet{Set: []NumRange{{Start: 2, Stop: 0}}}, "2:*"},
		{"large", "99998:99999", "99998:99999"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := NormalizeUIDs(tt.input)
			if err != nil {
				t.Fatalf("NormalizeUIDs(%v) error: %v", tt.input, err)
			}
			if got := set.String(); got != tt.want {
				t.Errorf("NormalizeUIDs(%v).String() = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeUIDs_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{"negative range", "-1:x"},
		{"letters", "abc"},
		{"empty string", ""},
		{"empty segment", "1,,2"},
		{"trailing comma", "1,2,"},
		{"whitespace", "1, 2"},
		{"zero", "0"},
		{"zero in range", "0:5"},
		{"star start", "*:5"},
		{"bare star", "*"},
		{"double colon", "1:2:3"},
		{"overflow", "4294967296"},
		{"negative int", -1},
		{"zero int", 0},
		{"empty int list", []int{}},
		{"empty string list", []string{}},
		{"bad list element", []string{"1", "x"}},
		{"nil set", (*UIDSet)(nil)},
		{"float", 1.5},
		{"nil", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeUIDs(tt.input)
			if !errors.Is(err, ErrInvalidSearchCriteria) {
				t.Fatalf("NormalizeUIDs(%#v) error = %v, want ErrInvalidSearchCriteria", tt.input, err)
			}
		})
	}
}

func TestNormalizeUIDs_Idempotent(t *testing.T) {
	inputs := []any{
		[]string{"1,2", "3", "4:6"},
		"7,8:10",
		"1:*",
		"9:2",
		[]int{5, 1, 3},
		"4:4,5",
	}
	for _, in := range inputs {
		first, err := NormalizeUIDs(in)
		if err != nil {
			t.Fatalf("NormalizeUIDs(%v) error: %v", in, err)
		}
		second, err := NormalizeUIDs(first.String())
		if err != nil {
			t.Fatalf("NormalizeUIDs(%q) error: %v", first.String(), err)
		}
		if len(first.Set) != len(second.Set) {
			t.Fatalf("ranges differ: %v vs %v", first.Set, second.Set)
		}
		for i := range first.Set {
			if first.Set[i] != second.Set[i] {
				t.Errorf("range %d: %+v vs %+v", i, first.Set[i], second.Set[i])
			}
		}
	}
}
