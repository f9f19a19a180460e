package api

import "testing"

func TestLimiterPerKey(t *testing.T) {
	l := NewLimiter(60, 2, 0)
	defer l.Stop()

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("burst of 2 not honoured")
	}
	if l.Allow("a") {
		t.Error("third immediate event allowed")
	}
	if !l.Allow("b") {
		t.Error("b limited by a's usage")
	}
}
