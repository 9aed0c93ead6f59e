package logging

import "testing"

func TestNewLevels(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error"} {
		for _, json := range []bool{false, true} {
			l, err := New(lvl, json)
			if err != nil {
				t.Fatalf("New(%q, %v): %v", lvl, json, err)
			}
			_ = l.Sync()
		}
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("chatty", false); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
