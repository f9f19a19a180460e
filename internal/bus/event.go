package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds published by the chat engine and the reference server.
const (
	MessagePending    = "message.pending"
	MessageSendAck    = "message.send_ack"
	MessageSendFailed = "message.send_failed"
	MessageMerged     = "message.merged"
	MessageInserted   = "message.inserted"

	ConversationRead    = "conversation.read"
	ConversationCreated = "conversation.created"

	SyncStatusChanged = "sync.status_changed"
	SyncPollFailed    = "sync.poll_failed"
	SyncDisconnected  = "sync.disconnected"
	SyncFallback      = "sync.fallback"
)
