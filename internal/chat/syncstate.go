package chat

import (
	"sync"
	"time"
)

// TransportKind names the live transport attached to a conversation.
type TransportKind string

const (
	TransportNone TransportKind = "none"
	TransportPush TransportKind = "push"
	TransportPoll TransportKind = "poll"
)

// SyncState is the per-attachment bookkeeping of the Transport Manager.
// Every delivery into the Store happens under mu with active checked, and
// detaching flips active under the same lock, so nothing a transport
// delivers after detach returns can reach the Store.
type SyncState struct {
	mu             sync.Mutex
	active         bool
	kind           TransportKind
	lastKnownCount int
	lastSeenMax    time.Time
	sub            Subscription
}

func newSyncState(kind TransportKind) *SyncState {
	return &SyncState{active: true, kind: kind}
}

// Active reports whether the attachment still accepts deliveries.
func (s *SyncState) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Kind returns the transport currently serving the attachment.
func (s *SyncState) Kind() TransportKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kind
}

// Watermark returns the message count and newest timestamp of the last
// poll page that was delivered.
func (s *SyncState) Watermark() (int, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastKnownCount, s.lastSeenMax
}

func (s *SyncState) setKind(kind TransportKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	s.kind = kind
	return true
}

// deliver runs fn if the attachment is still active.
func (s *SyncState) deliver(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	fn()
	return true
}

// deliverPage hands a poll page to fn unless it carries nothing new
// relative to the watermark.
func (s *SyncState) deliverPage(page []Message, fn func([]Message)) bool {
	var newest time.Time
	for _, m := range page {
		if m.CreatedAt.After(newest) {
			newest = m.CreatedAt
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	if len(page) == s.lastKnownCount && newest.Equal(s.lastSeenMax) {
		return false
	}
	s.lastKnownCount = len(page)
	s.lastSeenMax = newest
	fn(page)
	return true
}

// setSubscription records the live push subscription. It returns false if
// the attachment was torn down in the meantime; the caller owns sub then.
func (s *SyncState) setSubscription(sub Subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	s.sub = sub
	return true
}

func (s *SyncState) clearSubscription(sub Subscription) {
	s.mu.Lock()
	if s.sub == sub {
		s.sub = nil
	}
	s.mu.Unlock()
}

// deactivate ends the attachment and returns the push subscription, if
// any, for the caller to release outside the lock.
func (s *SyncState) deactivate() Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.kind = TransportNone
	sub := s.sub
	s.sub = nil
	return sub
}
