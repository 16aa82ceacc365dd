package lifecycle

import (
	"testing"
	"time"
)

func TestRetryBackoff_DoublesPerRetry(t *testing.T) {
	cases := []struct {
		retryCount int
		want       time.Duration
	}{
		{0, 60 * time.Second},
		{1, 120 * time.Second},
		{2, 240 * time.Second},
		{3, 480 * time.Second},
	}
	for _, c := range cases {
		got := RetryBackoff(c.retryCount)
		if got != c.want {
			t.Errorf("RetryBackoff(%d) = %v, want %v", c.retryCount, got, c.want)
		}
	}
}

func TestRetryBackoff_CapsAtOneHour(t *testing.T) {
	got := RetryBackoff(10)
	if got != maxBackoff {
		t.Fatalf("expected cap at %v, got %v", maxBackoff, got)
	}
}

func TestRetryBackoff_NegativeTreatedAsZero(t *testing.T) {
	if RetryBackoff(-5) != 60*time.Second {
		t.Fatalf("expected negative retry count to behave like 0")
	}
}
