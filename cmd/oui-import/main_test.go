package main

import (
	"strings"
	"testing"
)

func TestPrefixFromAssignment(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"A85C2C", "A8:5C:2C", false},
		{"a85c2c", "A8:5C:2C", false},
		{" A85C2C ", "A8:5C:2C", false},
		{"A85C", "", true},
		{"A85C2C2C", "", true},
		{"A85G2C", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := prefixFromAssignment(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("prefixFromAssignment(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("prefixFromAssignment(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("prefixFromAssignment(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseRegistryCSV(t *testing.T) {
	csvData := `Registry,Assignment,Organization Name,Organization Address
MA-L,A85C2C,"Apple, Inc.",1 Infinite Loop Cupertino CA
MA-L,9476B7,Samsung Electronics,Somewhere
MA-L,BADHEX,Nobody,Nowhere
MA-L,F01898,,Missing Name
`
	entries, skipped, err := parseRegistryCSV(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("parseRegistryCSV failed: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Prefix != "A8:5C:2C" || entries[0].Manufacturer != "Apple, Inc." {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].Prefix != "94:76:B7" {
		t.Errorf("entry 1 = %+v", entries[1])
	}
	if skipped != 2 {
		t.Errorf("skipped = %d, want 2 (bad hex and empty name)", skipped)
	}
}
