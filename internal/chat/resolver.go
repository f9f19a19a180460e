package chat

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ResolveInput names a conversation either by id or by the other participant.
type ResolveInput struct {
	ConversationID string
	RecipientID    string
}

// Resolver turns a ResolveInput into a Handle. It never creates conversations.
type Resolver struct {
	dir    Directory
	selfID string
	logger *zap.Logger
}

// NewResolver creates a Resolver. selfID narrows recipient matches to
// conversations the current member is part of; it may be empty.
func NewResolver(dir Directory, selfID string, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{dir: dir, selfID: selfID, logger: logger}
}

// Resolve returns the handle for in. A known conversation id is used as is.
// For a recipient the existing conversations are searched; no match gives
// a deferred handle. A failed lookup also gives a deferred handle, along
// with an error wrapping ErrResolutionFailed.
func (r *Resolver) Resolve(ctx context.Context, in ResolveInput) (Handle, error) {
	if in.ConversationID != "" {
		return Handle{ConversationID: in.ConversationID, RecipientID: in.RecipientID}, nil
	}
	if in.RecipientID == "" {
		return Handle{}, ErrInvalidInput
	}

	deferred := Handle{RecipientID: in.RecipientID}
	if r.dir == nil {
		return deferred, nil
	}

	convs, err := r.dir.ListConversations(ctx)
	if err != nil {
		r.logger.Warn("conversation lookup failed", zap.String("recipient_id", in.RecipientID), zap.Error(err))
		return deferred, fmt.Errorf("%w: %w", ErrResolutionFailed, err)
	}

	var best *Conversation
	for i := range convs {
		c := &convs[i]
		if !r.matches(*c, in.RecipientID) {
			continue
		}
		if best == nil || c.LastMessageAt.After(best.LastMessageAt) {
			best = c
		}
	}
	if best == nil {
		r.logger.Debug("no conversation with recipient yet", zap.String("recipient_id", in.RecipientID))
		return deferred, nil
	}
	return Handle{ConversationID: best.ID, RecipientID: in.RecipientID}, nil
}

// matches accepts direct threads only: the recipient, plus ourselves when known.
func (r *Resolver) matches(c Conversation, recipientID string) bool {
	if !c.HasParticipant(recipientID) {
		return false
	}
	if r.selfID == "" {
		return len(c.Participants) <= 2
	}
	if recipientID == r.selfID {
		return len(c.Participants) == 1
	}
	return c.HasParticipant(r.selfID) && len(c.Participants) == 2
}
