package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateAppliesOnFreshDB(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + read markers)", result.Version)
	}
}

func TestMigrateRefusesDirtySchema(t *testing.T) {
	db := testDB(t)
	if _, err := db.Exec(`UPDATE schema_migrations SET dirty = 1`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); !errors.Is(err, ErrDirty) {
		t.Errorf("Migrate() on dirty schema = %v, want ErrDirty", err)
	}
}

func TestFindOrCreateDirectIsSymmetric(t *testing.T) {
	db := testDB(t)

	c1, created, err := db.FindOrCreateDirect("alice", "bob", "member", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if !created || c1.ID != "c1" {
		t.Fatalf("first call: created=%v id=%s", created, c1.ID)
	}
	if len(c1.Participants) != 2 || !c1.HasMember("alice") || !c1.HasMember("bob") {
		t.Errorf("participants = %+v", c1.Participants)
	}

	c2, created, err := db.FindOrCreateDirect("bob", "alice", "member", "c2")
	if err != nil {
		t.Fatal(err)
	}
	if created || c2.ID != "c1" {
		t.Errorf("second call: created=%v id=%s, want existing c1", created, c2.ID)
	}
}

func TestFindOrCreateDirectSelf(t *testing.T) {
	db := testDB(t)

	c, _, err := db.FindOrCreateDirect("alice", "alice", "member", "self")
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Participants) != 1 {
		t.Errorf("participants = %+v, want one", c.Participants)
	}
}

func TestGetConversationNotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetConversation("nope"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestIsParticipant(t *testing.T) {
	db := testDB(t)
	if _, _, err := db.FindOrCreateDirect("alice", "bob", "member", "c1"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		member string
		want   bool
	}{
		{"alice", true},
		{"bob", true},
		{"carol", false},
	}
	for _, tt := range tests {
		got, err := db.IsParticipant("c1", tt.member)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("IsParticipant(%q) = %v, want %v", tt.member, got, tt.want)
		}
	}
}

func TestInsertMessageDedupsByNonce(t *testing.T) {
	db := testDB(t)
	if _, _, err := db.FindOrCreateDirect("alice", "bob", "member", "c1"); err != nil {
		t.Fatal(err)
	}

	first, inserted, err := db.InsertMessage(Message{
		ID: "m1", ConversationID: "c1", SenderID: "alice", SenderType: "member",
		Body: "hi", ClientNonce: "n1", CreatedAt: 1000,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !inserted || first.Seq == 0 {
		t.Fatalf("first insert: inserted=%v seq=%d", inserted, first.Seq)
	}

	again, inserted, err := db.InsertMessage(Message{
		ID: "m2", ConversationID: "c1", SenderID: "alice", SenderType: "member",
		Body: "hi", ClientNonce: "n1", CreatedAt: 2000,
	})
	if err != nil {
		t.Fatal(err)
	}
	if inserted {
		t.Error("retry with the same nonce should not insert")
	}
	if again.ID != "m1" || again.CreatedAt != 1000 {
		t.Errorf("duplicate returned %+v, want stored m1", again)
	}

	// Messages without a nonce never collide.
	for _, id := range []string{"m3", "m4"} {
		if _, inserted, err := db.InsertMessage(Message{
			ID: id, ConversationID: "c1", SenderID: "bob", SenderType: "member", Body: "x", CreatedAt: 3000,
		}); err != nil || !inserted {
			t.Fatalf("insert %s: inserted=%v err=%v", id, inserted, err)
		}
	}

	msgs, err := db.ListMessages("c1", 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Errorf("got %d messages, want 3", len(msgs))
	}
}

func TestListMessagesPagesNewestFirstAscendingWithin(t *testing.T) {
	db := testDB(t)
	if _, _, err := db.FindOrCreateDirect("alice", "bob", "member", "c1"); err != nil {
		t.Fatal(err)
	}
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		if _, _, err := db.InsertMessage(Message{
			ID: id, ConversationID: "c1", SenderID: "alice", Body: id, CreatedAt: int64(1000 * (i + 1)),
		}); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		page int
		want []string
	}{
		{1, []string{"c", "d", "e"}},
		{2, []string{"a", "b"}},
		{3, nil},
	}
	for _, tt := range tests {
		msgs, err := db.ListMessages("c1", tt.page, 3)
		if err != nil {
			t.Fatal(err)
		}
		var got []string
		for _, m := range msgs {
			got = append(got, m.ID)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("page %d = %v, want %v", tt.page, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("page %d = %v, want %v", tt.page, got, tt.want)
				break
			}
		}
	}
}

func TestListConversationsUnreadAndMarkRead(t *testing.T) {
	db := testDB(t)
	if _, _, err := db.FindOrCreateDirect("alice", "bob", "member", "c1"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := db.FindOrCreateDirect("alice", "carol", "member", "c2"); err != nil {
		t.Fatal(err)
	}

	msgs := []Message{
		{ID: "m1", ConversationID: "c1", SenderID: "bob", Body: "1", CreatedAt: 1000},
		{ID: "m2", ConversationID: "c1", SenderID: "bob", Body: "2", CreatedAt: 2000},
		{ID: "m3", ConversationID: "c1", SenderID: "alice", Body: "3", CreatedAt: 3000},
		{ID: "m4", ConversationID: "c2", SenderID: "carol", Body: "4", CreatedAt: 4000},
	}
	for _, m := range msgs {
		if _, _, err := db.InsertMessage(m); err != nil {
			t.Fatal(err)
		}
	}

	convs, err := db.ListConversations("alice", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}
	if convs[0].ID != "c2" || convs[0].LastMessageAt != 4000 {
		t.Errorf("most recent = %+v, want c2 at 4000", convs[0])
	}
	if convs[1].UnreadCount != 2 {
		t.Errorf("c1 unread = %d, want 2 (own messages excluded)", convs[1].UnreadCount)
	}

	if err := db.MarkRead("c1", "alice", 2000); err != nil {
		t.Fatal(err)
	}
	// An older marker never moves the read position back.
	if err := db.MarkRead("c1", "alice", 500); err != nil {
		t.Fatal(err)
	}
	convs, err = db.ListConversations("alice", 0)
	if err != nil {
		t.Fatal(err)
	}
	if convs[1].UnreadCount != 0 {
		t.Errorf("c1 unread after MarkRead = %d, want 0", convs[1].UnreadCount)
	}

	if err := db.MarkRead("c1", "carol", 1); err != ErrNotFound {
		t.Errorf("MarkRead for non-member = %v, want ErrNotFound", err)
	}
}

func TestGetMessage(t *testing.T) {
	db := testDB(t)
	if _, _, err := db.FindOrCreateDirect("alice", "bob", "member", "c1"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := db.InsertMessage(Message{ID: "m1", ConversationID: "c1", SenderID: "alice", Body: "hi", CreatedAt: 1}); err != nil {
		t.Fatal(err)
	}
	m, err := db.GetMessage("m1")
	if err != nil || m.Body != "hi" || m.ClientNonce != "" {
		t.Errorf("GetMessage = %+v, %v", m, err)
	}
	if _, err := db.GetMessage("m2"); err != ErrNotFound {
		t.Errorf("missing message err = %v", err)
	}
}
