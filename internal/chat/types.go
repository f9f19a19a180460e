// Package chat keeps a locally rendered conversation transcript consistent
// with the remote conversation. It resolves the conversation, seeds the
// transcript from history, attaches exactly one live transport (push or
// poll) and reconciles optimistic sends with their server-confirmed records.
package chat

import (
	"context"
	"time"
)

// Status is the delivery state of a message in the local transcript.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Message is one entry of a conversation transcript.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	SenderType     string
	Body           string
	CreatedAt      time.Time
	Status         Status
	// Nonce is the client-generated correlation token of an optimistic send.
	// Servers echo it back on the confirmed record.
	Nonce string
}

// before reports whether m sorts ahead of o: by CreatedAt, ties broken by ID.
func (m Message) before(o Message) bool {
	if !m.CreatedAt.Equal(o.CreatedAt) {
		return m.CreatedAt.Before(o.CreatedAt)
	}
	return m.ID < o.ID
}

// Participant identifies a member of a conversation.
type Participant struct {
	ID   string
	Type string
}

// Conversation is a thread between two or more participants.
type Conversation struct {
	ID            string
	Participants  []Participant
	LastMessageAt time.Time
	UnreadCount   int
}

// HasParticipant reports whether id takes part in the conversation.
func (c Conversation) HasParticipant(id string) bool {
	for _, p := range c.Participants {
		if p.ID == id {
			return true
		}
	}
	return false
}

// Handle names the conversation a session talks to. A handle without a
// ConversationID is deferred: the conversation is created by the first send.
type Handle struct {
	ConversationID string
	RecipientID    string
}

// Deferred reports whether the conversation does not exist server-side yet.
func (h Handle) Deferred() bool {
	return h.ConversationID == ""
}

// PageRequest selects a page of messages. Page 1 is the most recent page.
type PageRequest struct {
	Page  int
	Limit int
}

// SendRequest is what the send pipeline hands to the server.
type SendRequest struct {
	RecipientID    string
	ConversationID string
	Body           string
	Nonce          string
}

// Directory lists the conversations visible to the current member.
type Directory interface {
	ListConversations(ctx context.Context) ([]Conversation, error)
}

// MessageSource fetches pages of messages of a conversation.
type MessageSource interface {
	GetMessages(ctx context.Context, conversationID string, page PageRequest) ([]Message, error)
}

// MessageSender delivers a message. The returned message carries the
// server-assigned id and the (possibly newly created) conversation id.
type MessageSender interface {
	SendMessage(ctx context.Context, req SendRequest) (Message, error)
}

// ReadMarker receives the fire-and-forget "messages read" notification.
type ReadMarker interface {
	MarkRead(ctx context.Context, conversationID string) error
}

// Subscription is a live insert stream for one conversation.
type Subscription interface {
	// Done is closed when the stream ends, whether it dropped or was unsubscribed.
	Done() <-chan struct{}
	// Unsubscribe tears the stream down. Safe to call more than once.
	Unsubscribe()
}

// PushFactory opens insert subscriptions. Its presence selects the push
// transport; a nil PushFactory selects polling.
type PushFactory interface {
	SubscribeInserts(ctx context.Context, conversationID string, onInsert func(Message)) (Subscription, error)
}
