package media

import (
	"testing"
	"time"
)

func TestTimeFromReal(t *testing.T) {
	t.Parallel()

	cases := []struct {
		real time.Time
		want Time
	}{
		{time.Unix(0, 0), 0},
		{time.Unix(1, 0), TimeUnitsPerSec},
		{time.Unix(1430006400, 0), 1430006400 * TimeUnitsPerSec},
		{time.Unix(1, 500_000_000), TimeUnitsPerSec + TimeUnitsPerSec/2},
	}
	for _, tc := range cases {
		if got := TimeFromReal(tc.real); got != tc.want {
			t.Errorf("TimeFromReal(%v): got %d, want %d", tc.real, got, tc.want)
		}
	}
}

func TestTimeRealRoundTrip(t *testing.T) {
	t.Parallel()

	orig := time.Unix(1430006403, 555_555_555)
	back := TimeFromReal(orig).Real()
	// Tick precision is 1/90000 s.
	if d := orig.Sub(back); d < 0 || d >= time.Second/TimeUnitsPerSec+1 {
		t.Errorf("round trip drifted by %v", d)
	}
}
