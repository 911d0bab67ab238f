package bridge

import (
	"math/rand"
	"testing"
	"time"

	"github.com/BuggedPlayer/ableton-mcpv2/internal/testutil/testlog"
)

func TestBackoffDoublesToCap(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     10 * time.Second,
	}
	want := []time.Duration{
		250 * time.Millisecond,
		500 * time.Millisecond,
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}
	for i, expect := range want {
		got := NextBackoffDelay(cfg, i+1, nil)
		if got != expect {
			t.Fatalf("attempt %d: got %v want %v", i+1, got, expect)
		}
	}
}

func TestBackoffJitterStaysBounded(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultBackoffConfig()
	rng := rand.New(rand.NewSource(1))
	for attempt := 2; attempt <= 12; attempt++ {
		base := NextBackoffDelay(BackoffConfig{
			InitialDelay: cfg.InitialDelay,
			Multiplier:   cfg.Multiplier,
			MaxDelay:     cfg.MaxDelay,
		}, attempt, nil)
		got := NextBackoffDelay(cfg, attempt, rng)
		if got < base/2 || got > base+base/2 {
			t.Fatalf("attempt %d: %v outside [%v, %v]", attempt, got, base/2, base+base/2)
		}
	}
}

func TestBackoffDegenerateConfigs(t *testing.T) {
	testlog.Start(t)
	if got := NextBackoffDelay(BackoffConfig{}, 5, nil); got != 0 {
		t.Fatalf("zero config: %v", got)
	}
	cfg := BackoffConfig{InitialDelay: time.Second, Multiplier: 0.1, MaxDelay: time.Minute}
	if got := NextBackoffDelay(cfg, 3, nil); got != time.Second {
		t.Fatalf("sub-1 multiplier must clamp: %v", got)
	}
}
