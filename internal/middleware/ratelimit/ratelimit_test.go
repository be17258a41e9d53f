package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinLimit(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 3, CleanupInterval: time.Hour})
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("request over the limit should be rejected")
	}
}

func TestClientsAreIndependent(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1, CleanupInterval: time.Hour})
	defer rl.Stop()

	if !rl.Allow("10.0.0.1") {
		t.Fatal("first client should be allowed")
	}
	if !rl.Allow("10.0.0.2") {
		t.Fatal("second client should be allowed")
	}
	if rl.ActiveClients() != 2 {
		t.Fatalf("ActiveClients() = %d, want 2", rl.ActiveClients())
	}
}

func TestStopIsIdempotent(t *testing.T) {
	rl := NewLimiter(DefaultConfig())
	rl.Stop()
	rl.Stop()
}
