package backoff_test

import (
	"testing"
	"time"

	"github.com/courierhq/courier/backoff"
)

func TestConstant(t *testing.T) {
	c := backoff.NewConstant(5 * time.Second)
	for _, attempt := range []int{1, 2, 10} {
		if got := c.Delay(attempt); got != 5*time.Second {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, 5*time.Second)
		}
	}
}

func TestExponential(t *testing.T) {
	e := backoff.NewExponential(time.Second, time.Minute)

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{6, 32 * time.Second},
		{7, time.Minute},   // capped
		{100, time.Minute}, // still capped
	}
	for _, tc := range cases {
		if got := e.Delay(tc.attempt); got != tc.want {
			t.Errorf("Delay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}

	// Large attempts must never wrap into a negative delay.
	for attempt := 1; attempt <= 200; attempt++ {
		if got := e.Delay(attempt); got < 0 {
			t.Fatalf("Delay(%d) = %v, want non-negative", attempt, got)
		}
	}
}

func TestFullJitter_Bounds(t *testing.T) {
	f := backoff.NewFullJitter(time.Second, 30*time.Second)

	for attempt := 1; attempt <= 10; attempt++ {
		ceiling := time.Second << (attempt - 1)
		if ceiling > 30*time.Second {
			ceiling = 30 * time.Second
		}
		for i := 0; i < 50; i++ {
			d := f.Delay(attempt)
			if d < 0 || d > ceiling {
				t.Fatalf("Delay(%d) = %v out of [0, %v]", attempt, d, ceiling)
			}
		}
	}
}
