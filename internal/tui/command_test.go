package tui

import (
	"testing"

	"github.com/matheus3301/chatsync/internal/chat"
)

func TestCommandTarget(t *testing.T) {
	tests := []struct {
		in      string
		want    chat.ResolveInput
		wantErr bool
	}{
		{"open c1", chat.ResolveInput{ConversationID: "c1"}, false},
		{" TO  bob ", chat.ResolveInput{RecipientID: "bob"}, false},
		{"dm agent-7", chat.ResolveInput{RecipientID: "agent-7"}, false},
		{"open", chat.ResolveInput{}, true},
		{"frobnicate x", chat.ResolveInput{}, true},
	}
	for _, tt := range tests {
		got, err := ParseCommand(tt.in).Target()
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: got %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
