package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/matheus3301/chatsync/internal/store"
	"github.com/matheus3301/chatsync/internal/wire"
)

func ok(c *gin.Context, code int, v any) {
	c.JSON(code, v)
}

func fail(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, wire.ErrorResponse{Error: msg})
}

// bindFailed turns a binding error into a 400 naming the offending fields.
func bindFailed(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fail(c, http.StatusBadRequest, "malformed request body")
		return
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fieldMessage(fe))
	}
	fail(c, http.StatusBadRequest, strings.Join(fields, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.ActualTag() {
	case "required", "required_without":
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " is too long"
	default:
		return fe.Field() + " is invalid"
	}
}

func millis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func toWireMessage(m store.Message) wire.Message {
	return wire.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderType:     m.SenderType,
		Body:           m.Body,
		CreatedAt:      millis(m.CreatedAt),
		ClientNonce:    m.ClientNonce,
	}
}

func toWireConversation(c store.Conversation) wire.Conversation {
	out := wire.Conversation{
		ID:            c.ID,
		LastMessageAt: millis(c.LastMessageAt),
		UnreadCount:   c.UnreadCount,
		Participants:  make([]wire.Participant, 0, len(c.Participants)),
	}
	for _, p := range c.Participants {
		out.Participants = append(out.Participants, wire.Participant{ID: p.MemberID, Type: p.MemberType})
	}
	return out
}
