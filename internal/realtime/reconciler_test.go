package realtime

import (
	"strings"
	"testing"

	"maxwell-extraction/internal/notify"
	"maxwell-extraction/internal/suggestion"
	"maxwell-extraction/pkg/codex"
)

type captureNotifier struct {
	sent []notify.Notification
}

func (c *captureNotifier) Notify(n notify.Notification) {
	c.sent = append(c.sent, n)
}

type reconcilerHarness struct {
	rec          *Reconciler
	store        *suggestion.Store
	notifier     *captureNotifier
	marked       int
	highlighted  [][]DetectedEntity
	manuscriptID string
}

func newReconcilerHarness(t *testing.T) *reconcilerHarness {
	t.Helper()
	h := &reconcilerHarness{
		store:        suggestion.NewStore(nil, nil),
		notifier:     &captureNotifier{},
		manuscriptID: "m1",
	}
	h.rec = NewReconciler(
		h.manuscriptID,
		h.store,
		h.notifier,
		func() { h.marked++ },
		func(ents []DetectedEntity) { h.highlighted = append(h.highlighted, ents) },
		nil,
	)
	return h
}

func entitiesMsg(ents ...DetectedEntity) EntitiesMessage {
	return EntitiesMessage{NewEntities: ents, Timestamp: "2024-01-01T00:00:00Z"}
}

func TestNewEntityInsertsRecordAndNotifies(t *testing.T) {
	h := newReconcilerHarness(t)

	h.rec.HandleMessage(entitiesMsg(DetectedEntity{
		Name:         "Elena",
		Type:         codex.KindCharacter,
		Confidence:   "high",
		SuggestionID: "s1",
		IsNew:        true,
	}))

	rec, ok := h.store.Get("s1")
	if !ok {
		t.Fatal("no record inserted for s1")
	}
	if rec.Name != "Elena" || rec.Status != suggestion.StatusPending || rec.ManuscriptID != "m1" {
		t.Errorf("record = %+v", rec)
	}

	if len(h.notifier.sent) != 1 {
		t.Fatalf("%d notifications, want exactly 1", len(h.notifier.sent))
	}
	if !strings.Contains(h.notifier.sent[0].Message, "Elena") {
		t.Errorf("notification %q does not name the entity", h.notifier.sent[0].Message)
	}
	if h.notifier.sent[0].ActionURL == "" {
		t.Error("notification is missing the queue deep link")
	}
	if h.marked != 1 {
		t.Errorf("markResponse called %d times, want 1", h.marked)
	}
	if len(h.highlighted) != 1 || len(h.highlighted[0]) != 1 {
		t.Errorf("highlight callback = %v", h.highlighted)
	}
}

// Entities already in the codex never produce a record or notification.
func TestAlreadyInCodexIsFilteredOut(t *testing.T) {
	h := newReconcilerHarness(t)

	h.rec.HandleMessage(entitiesMsg(DetectedEntity{
		Name:           "Elena",
		Type:           codex.KindCharacter,
		SuggestionID:   "s1",
		IsNew:          true,
		AlreadyInCodex: true,
	}))

	if h.store.Count() != 0 {
		t.Errorf("store count = %d, want 0", h.store.Count())
	}
	if len(h.notifier.sent) != 0 {
		t.Errorf("%d notifications, want 0", len(h.notifier.sent))
	}
	if len(h.highlighted) != 0 {
		t.Error("highlight callback fired for a fully filtered message")
	}
	// The processing indicator still clears: a response arrived.
	if h.marked != 1 {
		t.Errorf("markResponse called %d times, want 1", h.marked)
	}
}

func TestPluralNotificationNamesDistinctTypes(t *testing.T) {
	h := newReconcilerHarness(t)

	h.rec.HandleMessage(entitiesMsg(
		DetectedEntity{Name: "Blackreach", Type: codex.KindLocation, SuggestionID: "s1", IsNew: true},
		DetectedEntity{Name: "Sundered Crown", Type: codex.KindItem, SuggestionID: "s2", IsNew: true},
	))

	if h.store.Count() != 2 {
		t.Errorf("store count = %d, want 2", h.store.Count())
	}
	if len(h.notifier.sent) != 1 {
		t.Fatalf("%d notifications, want exactly 1", len(h.notifier.sent))
	}

	msg := h.notifier.sent[0].Message
	if !strings.Contains(msg, "location") || !strings.Contains(msg, "item") {
		t.Errorf("plural notification %q should reference both types", msg)
	}
}

func TestNotNewOrMissingSuggestionIDSkipsStore(t *testing.T) {
	h := newReconcilerHarness(t)

	h.rec.HandleMessage(entitiesMsg(
		DetectedEntity{Name: "Elena", Type: codex.KindCharacter, SuggestionID: "s1", IsNew: false},
		DetectedEntity{Name: "Marcus", Type: codex.KindCharacter, IsNew: true}, // no id
	))

	if h.store.Count() != 0 {
		t.Errorf("store count = %d, want 0", h.store.Count())
	}
	// Entities still reach the highlight callback and one notification
	// still fires: they passed the codex filter.
	if len(h.highlighted) != 1 {
		t.Error("highlight callback should still fire")
	}
	if len(h.notifier.sent) != 1 {
		t.Errorf("%d notifications, want 1", len(h.notifier.sent))
	}
}

func TestDuplicateSuggestionIDOverwrites(t *testing.T) {
	h := newReconcilerHarness(t)

	h.rec.HandleMessage(entitiesMsg(DetectedEntity{Name: "Elena", Type: codex.KindCharacter, SuggestionID: "s1", IsNew: true}))
	h.rec.HandleMessage(entitiesMsg(DetectedEntity{Name: "Elena Voss", Type: codex.KindCharacter, SuggestionID: "s1", IsNew: true}))

	if h.store.Count() != 1 {
		t.Errorf("store count = %d, want 1 (overwrite, not duplicate)", h.store.Count())
	}
	rec, _ := h.store.Get("s1")
	if rec.Name != "Elena Voss" {
		t.Errorf("record name = %q, want latest payload", rec.Name)
	}
}

func TestPongAndConfigAckAreIgnored(t *testing.T) {
	h := newReconcilerHarness(t)

	h.rec.HandleMessage(PongMessage{})
	h.rec.HandleMessage(ConfigAckMessage{})

	if h.marked != 0 || h.store.Count() != 0 || len(h.notifier.sent) != 0 {
		t.Error("pong/config_ack should cause no side effects")
	}
}
