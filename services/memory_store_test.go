package services

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"docqa-backend/models"
)

func newTestStore(t *testing.T) (*MemoryStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewMemoryStore(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	return store, dir
}

func TestGetOrCreateGeneratesDistinctIDs(t *testing.T) {
	store, _ := newTestStore(t)

	_, id1 := store.GetOrCreate("")
	_, id2 := store.GetOrCreate("")

	if id1 == "" || id2 == "" {
		t.Fatal("generated ids must not be empty")
	}
	if id1 == id2 {
		t.Fatalf("two bare GetOrCreate calls returned the same id %q", id1)
	}

	ids := store.ListIDs()
	found := map[string]bool{}
	for _, id := range ids {
		found[id] = true
	}
	if !found[id1] || !found[id2] {
		t.Fatalf("ListIDs missing new conversations: %v", ids)
	}
}

func TestGetOrCreateExistingIsIdempotentRead(t *testing.T) {
	store, _ := newTestStore(t)

	conv, id := store.GetOrCreate("")
	store.AppendTurn(conv, "hello", "hi there")

	before := conv.Messages()
	again, resolvedID := store.GetOrCreate(id)
	if resolvedID != id {
		t.Fatalf("existing id %q resolved to %q", id, resolvedID)
	}
	after := again.Messages()

	if len(after) != len(before) {
		t.Fatalf("history changed by a read: %d -> %d messages", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("message %d changed: %+v -> %+v", i, before[i], after[i])
		}
	}
}

func TestGetOrCreateUnknownIDGetsFreshID(t *testing.T) {
	store, _ := newTestStore(t)

	conv, resolvedID := store.GetOrCreate("no-such-conversation")
	if resolvedID == "no-such-conversation" {
		t.Fatal("an unknown id should resolve to a freshly generated one")
	}
	if len(conv.Messages()) != 0 {
		t.Fatal("fresh conversation should have no history")
	}
}

func TestAppendTurnOrdering(t *testing.T) {
	store, _ := newTestStore(t)

	conv, _ := store.GetOrCreate("")
	store.AppendTurn(conv, "first question", "first answer")
	store.AppendTurn(conv, "second question", "second answer")

	msgs := conv.Messages()
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	expect := []models.ChatMessage{
		{Type: models.MessageTypeHuman, Content: "first question"},
		{Type: models.MessageTypeAI, Content: "first answer"},
		{Type: models.MessageTypeHuman, Content: "second question"},
		{Type: models.MessageTypeAI, Content: "second answer"},
	}
	for i, want := range expect {
		if msgs[i] != want {
			t.Fatalf("message %d: got %+v, want %+v", i, msgs[i], want)
		}
	}
}

func TestStoreRoundTripAcrossReload(t *testing.T) {
	store, dir := newTestStore(t)

	histories := map[string][]models.ChatMessage{}
	for i := 0; i < 3; i++ {
		conv, id := store.GetOrCreate("")
		store.AppendTurn(conv, "question", "answer")
		histories[id] = conv.Messages()
	}

	// Simulate a restart.
	reloaded, err := NewMemoryStore(dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	ids := reloaded.ListIDs()
	if len(ids) != len(histories) {
		t.Fatalf("expected %d conversations after reload, got %d", len(histories), len(ids))
	}
	for id, want := range histories {
		conv, ok := reloaded.Get(id)
		if !ok {
			t.Fatalf("conversation %s lost across reload", id)
		}
		got := conv.Messages()
		if len(got) != len(want) {
			t.Fatalf("conversation %s: %d messages, want %d", id, len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("conversation %s message %d: %+v, want %+v", id, i, got[i], want[i])
			}
		}
	}
}

func TestLoadTreatsUnknownMessageTypeAsHuman(t *testing.T) {
	dir := t.TempDir()
	raw := `{"conv-1":[{"type":"system","content":"what is this"},{"type":"ai","content":"an answer"}]}`
	if err := os.WriteFile(filepath.Join(dir, conversationFileName), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := NewMemoryStore(dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	conv, ok := store.Get("conv-1")
	if !ok {
		t.Fatal("conversation not loaded")
	}
	msgs := conv.Messages()
	if msgs[0].Type != models.MessageTypeHuman {
		t.Fatalf("unknown type should fall back to human, got %q", msgs[0].Type)
	}
	if msgs[1].Type != models.MessageTypeAI {
		t.Fatalf("valid ai message mangled: %q", msgs[1].Type)
	}
}

func TestNewConversationIsPersistedBeforeAnyMessage(t *testing.T) {
	store, dir := newTestStore(t)

	_, id := store.GetOrCreate("")

	data, err := os.ReadFile(filepath.Join(dir, conversationFileName))
	if err != nil {
		t.Fatal(err)
	}
	var m map[string][]models.ChatMessage
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("store file is not valid JSON: %v", err)
	}
	if _, ok := m[id]; !ok {
		t.Fatal("empty conversation not durably recorded")
	}
}

func TestStoreFileAlwaysValidJSON(t *testing.T) {
	store, dir := newTestStore(t)

	conv, _ := store.GetOrCreate("")
	for i := 0; i < 10; i++ {
		store.AppendTurn(conv, "q", "a")
	}

	data, err := os.ReadFile(filepath.Join(dir, conversationFileName))
	if err != nil {
		t.Fatal(err)
	}
	var m map[string][]models.ChatMessage
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("store file torn or invalid: %v", err)
	}
}
