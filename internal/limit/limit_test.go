package limit

import "testing"

func TestAllowPerAgentBuckets(t *testing.T) {
	// 1 rps, burst 2: two immediate calls pass, the third is rejected.
	l := NewAgentLimiter(1, 2)

	if !l.Allow("a1") || !l.Allow("a1") {
		t.Fatal("burst allowance rejected")
	}
	if l.Allow("a1") {
		t.Error("third immediate call allowed, want rejection")
	}

	// A different agent has its own bucket.
	if !l.Allow("a2") {
		t.Error("fresh agent rejected, want its own bucket")
	}
}

func TestAllowDisabled(t *testing.T) {
	l := NewAgentLimiter(0, 0)
	for range 100 {
		if !l.Allow("a1") {
			t.Fatal("disabled limiter rejected a call")
		}
	}

	var nilLimiter *AgentLimiter
	if !nilLimiter.Allow("a1") {
		t.Error("nil limiter rejected a call")
	}
}
