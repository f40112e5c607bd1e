package services

import (
	"testing"

	"places-reviews/utils"
)

func newTestLogger() *utils.Logger { return utils.Discard() }

func TestCleanQueries(t *testing.T) {
	c := NewCleaner(newTestLogger())

	got := c.CleanQueries([]string{"  Subway,\tNew-York ", "", "   ", "Anita", "Anita"})
	want := []string{"Subway, New-York", "Anita", "Anita"}

	if len(got) != len(want) {
		t.Fatalf("len: got %d (%v), want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("query %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNameMatches(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"Subway", "Subway, New-York", true},
		{"subway", "SUBWAY new york", true},
		{"Shuffle Bar", "Shuffle Bar, Tel-Aviv", true},
		{"Shuffle", "shafel", false},
		{"Anita Gelato", "Anita", false},
		{"", "anything", true},
	}

	for _, tt := range tests {
		if got := nameMatches(tt.name, tt.query); got != tt.want {
			t.Errorf("nameMatches(%q, %q) = %v; want %v", tt.name, tt.query, got, tt.want)
		}
	}
}
