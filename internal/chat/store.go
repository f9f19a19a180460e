package chat

import (
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Store is the in-memory transcript of one conversation session. It is the
// only thing the presentation layer reads from. Entries are kept sorted by
// CreatedAt (ties by ID) and deduplicated by ID.
type Store struct {
	mu       sync.Mutex
	msgs     []Message
	logger   *zap.Logger
	onChange func()
}

// NewStore creates an empty transcript.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{logger: logger}
}

// SetOnChange registers fn to run after every mutation. fn runs outside the
// store lock and must not block.
func (s *Store) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Read returns a copy of the transcript in display order.
func (s *Store) Read() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.msgs)
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

// Get returns the entry with the given id.
func (s *Store) Get(id string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexByID(id); i >= 0 {
		return s.msgs[i], true
	}
	return Message{}, false
}

// FindByNonce returns the entry carrying nonce for senderID, whatever its
// status. An empty senderID matches any sender.
func (s *Store) FindByNonce(nonce, senderID string) (Message, bool) {
	if nonce == "" {
		return Message{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.msgs {
		if m.Nonce != nonce {
			continue
		}
		if senderID == "" || m.SenderID == "" || m.SenderID == senderID {
			return m, true
		}
	}
	return Message{}, false
}

// Merge reconciles incoming messages into the transcript and returns how
// many entries changed. Poll pages are full replacement pages: they are
// diffed by id, so merging the same page twice is a no-op.
func (s *Store) Merge(msgs ...Message) int {
	s.mu.Lock()
	changed := 0
	for _, m := range msgs {
		if s.mergeOne(m) {
			changed++
		}
	}
	fn := s.onChange
	s.mu.Unlock()

	if changed > 0 && fn != nil {
		fn()
	}
	return changed
}

// Insert adds a provisional entry. It refuses a second unconfirmed entry
// for the same (sender, nonce) and an id that already exists.
func (s *Store) Insert(m Message) bool {
	s.mu.Lock()
	if s.indexByID(m.ID) >= 0 {
		s.mu.Unlock()
		return false
	}
	if m.Nonce != "" {
		for _, e := range s.msgs {
			if e.Status == StatusPending && e.Nonce == m.Nonce && e.SenderID == m.SenderID {
				s.mu.Unlock()
				return false
			}
		}
	}
	s.insertSorted(m)
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
	return true
}

// Confirm replaces the provisional entry tempID with the server-confirmed
// record, keeping its position. If a transport already delivered the
// confirmed record, the provisional entry is dropped instead.
func (s *Store) Confirm(tempID string, confirmed Message) bool {
	confirmed.Status = StatusConfirmed

	s.mu.Lock()
	i := s.indexByID(tempID)
	var changed bool
	switch {
	case i < 0:
		// Already reconciled through the nonce, or removed by the user.
		changed = s.mergeOne(confirmed)
	case s.msgs[i].Status == StatusConfirmed:
		changed = false
	case confirmed.ID != tempID && s.indexByID(confirmed.ID) >= 0:
		s.msgs = slices.Delete(s.msgs, i, i+1)
		changed = true
	default:
		s.replaceAt(i, confirmed)
		changed = true
	}
	fn := s.onChange
	s.mu.Unlock()

	if changed && fn != nil {
		fn()
	}
	return changed
}

// Fail marks a pending entry as failed. Entries in any other state are left alone.
func (s *Store) Fail(id string) bool {
	return s.transition(id, StatusPending, StatusFailed)
}

// Resend moves a failed entry back to pending for another delivery attempt
// and returns it. The entry keeps its id, nonce and position.
func (s *Store) Resend(id string) (Message, bool) {
	if !s.transition(id, StatusFailed, StatusPending) {
		return Message{}, false
	}
	return s.Get(id)
}

// Remove deletes an entry that has not been confirmed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	i := s.indexByID(id)
	if i < 0 || s.msgs[i].Status == StatusConfirmed {
		s.mu.Unlock()
		return false
	}
	s.msgs = slices.Delete(s.msgs, i, i+1)
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
	return true
}

// ConfirmedCount returns the number of confirmed entries.
func (s *Store) ConfirmedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.msgs {
		if m.Status == StatusConfirmed {
			n++
		}
	}
	return n
}

func (s *Store) transition(id string, from, to Status) bool {
	s.mu.Lock()
	i := s.indexByID(id)
	if i < 0 || s.msgs[i].Status != from {
		s.mu.Unlock()
		return false
	}
	s.msgs[i].Status = to
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
	return true
}

// mergeOne applies the reconciliation rules for a single message. Caller holds mu.
func (s *Store) mergeOne(m Message) bool {
	if m.Status == "" {
		m.Status = StatusConfirmed
	}

	if i := s.indexByID(m.ID); i >= 0 {
		existing := s.msgs[i]
		if existing.Status == StatusConfirmed {
			if m.Status == StatusConfirmed && existing.Body != m.Body {
				s.logger.Warn("conflicting confirmed message, keeping earlier record",
					zap.String("msg_id", m.ID),
					zap.String("conversation_id", m.ConversationID))
			}
			return false
		}
		if m.Status != StatusConfirmed {
			return false
		}
		s.replaceAt(i, m)
		return true
	}

	if m.Nonce != "" && m.Status == StatusConfirmed {
		if i := s.indexByNonce(m.Nonce, m.SenderID); i >= 0 {
			s.replaceAt(i, m)
			return true
		}
	}

	s.insertSorted(m)
	return true
}

// replaceAt swaps entry i for m in place. Server time is authoritative, so
// the entry only moves if its new CreatedAt would break the ordering.
func (s *Store) replaceAt(i int, m Message) {
	s.msgs[i] = m
	inOrder := (i == 0 || s.msgs[i-1].before(m)) &&
		(i == len(s.msgs)-1 || m.before(s.msgs[i+1]))
	if inOrder {
		return
	}
	s.msgs = slices.Delete(s.msgs, i, i+1)
	s.insertSorted(m)
}

func (s *Store) insertSorted(m Message) {
	i, _ := slices.BinarySearchFunc(s.msgs, m, func(e, target Message) int {
		switch {
		case e.before(target):
			return -1
		case target.before(e):
			return 1
		default:
			return 0
		}
	})
	s.msgs = slices.Insert(s.msgs, i, m)
}

func (s *Store) indexByID(id string) int {
	for i := range s.msgs {
		if s.msgs[i].ID == id {
			return i
		}
	}
	return -1
}

// indexByNonce finds the unconfirmed entry a confirmed echo belongs to.
// An empty senderID on the echo matches any sender.
func (s *Store) indexByNonce(nonce, senderID string) int {
	for i := range s.msgs {
		e := s.msgs[i]
		if e.Status == StatusConfirmed || e.Nonce != nonce {
			continue
		}
		if senderID == "" || e.SenderID == "" || e.SenderID == senderID {
			return i
		}
	}
	return -1
}
