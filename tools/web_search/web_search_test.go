package web_search

import (
	"encoding/json"
	"testing"
)

func TestClampTopK(t *testing.T) {
	tests := []struct{ in, want int }{
		{-1, 1}, {0, 1}, {1, 1}, {5, 5}, {20, 20}, {21, 20},
	}
	for _, tt := range tests {
		if got := ClampTopK(tt.in); got != tt.want {
			t.Fatalf("ClampTopK(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestInFreshnessWindow(t *testing.T) {
	tests := []struct {
		days int
		want bool
	}{
		{-1, false}, {0, false}, {1, true}, {365, true}, {366, false}, {DefaultRecencyDays, false},
	}
	for _, tt := range tests {
		if got := InFreshnessWindow(tt.days); got != tt.want {
			t.Fatalf("InFreshnessWindow(%d) = %v, want %v", tt.days, got, tt.want)
		}
	}
}

func TestEmptyEncodesAsArray(t *testing.T) {
	b, err := json.Marshal(Empty())
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"results":[]}` {
		t.Fatalf("got %s", b)
	}
}
