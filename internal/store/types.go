package store

// Conversation is a thread with its participants. Times are Unix milliseconds.
type Conversation struct {
	ID            string
	Participants  []Participant
	CreatedAt     int64
	LastMessageAt int64
	// UnreadCount is relative to the member the conversation was listed for.
	UnreadCount int
}

// HasMember reports whether memberID takes part in the conversation.
func (c *Conversation) HasMember(memberID string) bool {
	for _, p := range c.Participants {
		if p.MemberID == memberID {
			return true
		}
	}
	return false
}

// Participant is one member of a conversation.
type Participant struct {
	MemberID   string
	MemberType string
	LastReadAt int64
}

// Message is a stored message.
type Message struct {
	Seq            int64
	ID             string
	ConversationID string
	SenderID       string
	SenderType     string
	Body           string
	ClientNonce    string
	CreatedAt      int64
}
