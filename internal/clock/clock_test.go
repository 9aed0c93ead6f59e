package clock

import (
	"testing"
	"time"
)

func TestNowIsMonotonic(t *testing.T) {
	prev := Now()
	for i := 0; i < 10000; i++ {
		cur := Now()
		if cur < prev {
			t.Fatalf("clock went backwards: %d < %d", cur, prev)
		}
		prev = cur
	}
}

func TestSince(t *testing.T) {
	start := Now()
	time.Sleep(10 * time.Millisecond)
	if d := Since(start); d < 5*time.Millisecond {
		t.Fatalf("Since reported %v after a 10ms sleep", d)
	}
}
