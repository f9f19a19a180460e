package main

import (
	"strings"
	"testing"

	"github.com/matheus3301/chatsync/internal/chat"
)

func TestOthers(t *testing.T) {
	tests := []struct {
		name string
		conv chat.Conversation
		want string
	}{
		{"direct", chat.Conversation{Participants: []chat.Participant{{ID: "me"}, {ID: "bob"}}}, "bob"},
		{"group", chat.Conversation{Participants: []chat.Participant{{ID: "bob"}, {ID: "me"}, {ID: "carol"}}}, "bob, carol"},
		{"self", chat.Conversation{Participants: []chat.Participant{{ID: "me"}}}, "(you)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := others(tt.conv, "me"); got != tt.want {
				t.Errorf("others() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSendNeedsExactlyOneTarget(t *testing.T) {
	t.Cleanup(func() { sendTo, sendConversation = "", "" })

	for _, args := range [][]string{
		{"send", "hello"},
		{"send", "--to", "bob", "--conversation", "c1", "hello"},
	} {
		sendTo, sendConversation = "", ""
		rootCmd.SetArgs(args)
		err := rootCmd.Execute()
		if err == nil || !strings.Contains(err.Error(), "exactly one") {
			t.Errorf("%v: err = %v", args, err)
		}
	}
}
