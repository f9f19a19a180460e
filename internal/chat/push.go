package chat

import (
	"context"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/status"
	"go.uber.org/zap"
)

// runPush keeps an insert subscription open for the lifetime of ctx,
// resubscribing after a fixed delay when it drops. After
// MaxReconnectAttempts consecutive failures it falls back to polling for
// the rest of the attachment. Every resubscription is followed by one page
// fetch so inserts made while the channel was down are not lost.
func (m *Manager) runPush(ctx context.Context, conversationID string, st *SyncState, onEvent func([]Message)) {
	log := m.logger.With(zap.String("conversation_id", conversationID), zap.String("transport", string(TransportPush)))

	onInsert := func(msg Message) {
		msg.Status = StatusConfirmed
		if msg.ConversationID == "" {
			msg.ConversationID = conversationID
		}
		st.deliver(func() { onEvent([]Message{msg}) })
	}

	failures := 0
	resubscribe := false
	for {
		sub, err := m.push.SubscribeInserts(ctx, conversationID, onInsert)
		if err == nil {
			if !st.setSubscription(sub) {
				sub.Unsubscribe()
				return
			}
			failures = 0
			m.transition(status.Live)
			log.Info("push channel subscribed")
			if resubscribe && m.source != nil {
				m.pollOnce(ctx, conversationID, st, onEvent, log)
			}
			resubscribe = true

			select {
			case <-sub.Done():
			case <-ctx.Done():
				return
			}
			st.clearSubscription(sub)
			sub.Unsubscribe()
			if ctx.Err() != nil {
				return
			}
			err = ErrTransport
		}
		if ctx.Err() != nil {
			return
		}

		failures++
		log.Warn("push channel unavailable", zap.Error(err), zap.Int("attempt", failures))
		m.bus.Emit(bus.SyncDisconnected, map[string]any{
			"conversation_id": conversationID,
			"attempt":         failures,
		})

		if m.cfg.MaxReconnectAttempts > 0 && failures >= m.cfg.MaxReconnectAttempts {
			if !st.setKind(TransportPoll) {
				return
			}
			log.Warn("push reconnects exhausted, falling back to polling", zap.Int("attempts", failures))
			m.bus.Emit(bus.SyncFallback, map[string]string{"conversation_id": conversationID})
			m.transition(status.Polling)
			m.runPoll(ctx, conversationID, st, onEvent)
			return
		}

		m.transition(status.Reconnecting)
		t := time.NewTimer(m.cfg.ReconnectDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}
}
