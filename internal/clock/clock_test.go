package clock

import (
	"testing"
	"time"
)

func TestSimulated(t *testing.T) {
	t.Parallel()

	start := time.Unix(1430006400, 0)
	c := NewSimulated(start)
	if got := c.Now(); !got.Equal(start) {
		t.Errorf("initial time: got %v, want %v", got, start)
	}

	c.Sleep(3 * time.Second)
	c.Sleep(500 * time.Millisecond)
	want := start.Add(3500 * time.Millisecond)
	if got := c.Now(); !got.Equal(want) {
		t.Errorf("after sleeps: got %v, want %v", got, want)
	}
}

func TestRealNow(t *testing.T) {
	t.Parallel()

	before := time.Now()
	got := Real{}.Now()
	if got.Before(before) {
		t.Errorf("real clock went backward: %v before %v", got, before)
	}
}
