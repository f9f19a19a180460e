// Package wire holds the JSON shapes exchanged between chat clients and
// the chat server, and their translation to engine types.
package wire

import (
	"encoding/json"
	"net/url"
	"time"

	"github.com/matheus3301/chatsync/internal/chat"
)

// HTTP routes.
const (
	PathToken         = "/api/auth/token"
	PathConversations = "/api/conversations"
	PathMessages      = "/api/messages"
	PathInserts       = "/api/ws"
	PathHealth        = "/healthz"
)

// ConversationMessagesPath returns the messages route of a conversation.
func ConversationMessagesPath(id string) string {
	return PathConversations + "/" + url.PathEscape(id) + "/messages"
}

// ConversationReadPath returns the read-marker route of a conversation.
func ConversationReadPath(id string) string {
	return PathConversations + "/" + url.PathEscape(id) + "/read"
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	SenderType     string    `json:"senderType,omitempty"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"createdAt"`
	ClientNonce    string    `json:"clientNonce,omitempty"`
}

type Participant struct {
	ID   string `json:"id"`
	Type string `json:"type,omitempty"`
}

type Conversation struct {
	ID            string        `json:"id"`
	Participants  []Participant `json:"participants"`
	LastMessageAt time.Time     `json:"lastMessageAt"`
	UnreadCount   int           `json:"unreadCount"`
}

type TokenRequest struct {
	UserID string `json:"userId" binding:"required,max=64"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type ConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
}

type MessagesResponse struct {
	Messages []Message `json:"messages"`
}

// SendMessageRequest creates the conversation with RecipientID when
// ConversationID is empty.
type SendMessageRequest struct {
	RecipientID    string `json:"recipientId" binding:"required_without=ConversationID"`
	ConversationID string `json:"conversationId"`
	Body           string `json:"body" binding:"required,max=4000"`
	ClientNonce    string `json:"clientNonce" binding:"omitempty,max=64"`
}

type SendMessageResponse struct {
	Message Message `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Websocket envelope types.
const (
	TypeSubscribe     = "subscribe"
	TypeSubscribed    = "subscribed"
	TypeMessageInsert = "message.insert"
	TypeError         = "error"
)

// Envelope frames every websocket message.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type SubscribePayload struct {
	ConversationID string `json:"conversationId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// NewEnvelope marshals payload into an envelope of the given type.
func NewEnvelope(typ string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: typ, Payload: raw}, nil
}

// ToChat converts a server record to an engine message. Everything that
// comes off the wire is confirmed.
func (m Message) ToChat() chat.Message {
	return chat.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderType:     m.SenderType,
		Body:           m.Body,
		CreatedAt:      m.CreatedAt,
		Status:         chat.StatusConfirmed,
		Nonce:          m.ClientNonce,
	}
}

// MessagesToChat converts a page of server records.
func MessagesToChat(msgs []Message) []chat.Message {
	out := make([]chat.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.ToChat()
	}
	return out
}

// ToChat converts a conversation summary.
func (c Conversation) ToChat() chat.Conversation {
	out := chat.Conversation{
		ID:            c.ID,
		LastMessageAt: c.LastMessageAt,
		UnreadCount:   c.UnreadCount,
	}
	for _, p := range c.Participants {
		out.Participants = append(out.Participants, chat.Participant{ID: p.ID, Type: p.Type})
	}
	return out
}

// MessageFromChat converts an engine message to its wire shape.
func MessageFromChat(m chat.Message) Message {
	return Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderType:     m.SenderType,
		Body:           m.Body,
		CreatedAt:      m.CreatedAt,
		ClientNonce:    m.Nonce,
	}
}

// ConversationFromChat converts an engine conversation to its wire shape.
func ConversationFromChat(c chat.Conversation) Conversation {
	out := Conversation{
		ID:            c.ID,
		Participants:  make([]Participant, 0, len(c.Participants)),
		LastMessageAt: c.LastMessageAt,
		UnreadCount:   c.UnreadCount,
	}
	for _, p := range c.Participants {
		out.Participants = append(out.Participants, Participant{ID: p.ID, Type: p.Type})
	}
	return out
}
