package realtime

import (
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"maxwell-extraction/internal/settings"
	"maxwell-extraction/internal/storage"
	"maxwell-extraction/pkg/codex"
)

type captureSender struct {
	mu   sync.Mutex
	sent []interface{}
}

func (c *captureSender) Send(payload interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, payload)
}

func (c *captureSender) payloads() []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]interface{}(nil), c.sent...)
}

func newDispatcherHarness(t *testing.T) (*Dispatcher, *captureSender, *settings.Store) {
	t.Helper()
	kv, err := storage.Open(filepath.Join(t.TempDir(), "local.db"))
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	store := settings.NewStore(kv, nil)
	sender := &captureSender{}
	d := NewDispatcher(sender, store, nil, nil)
	t.Cleanup(d.Stop)
	return d, sender, store
}

func TestSubmitDeltaSendsEagerly(t *testing.T) {
	d, sender, _ := newDispatcherHarness(t)

	d.SubmitDelta("hello")
	d.SubmitDelta("hello world")

	sent := sender.payloads()
	if len(sent) != 2 {
		t.Fatalf("%d payloads sent, want 2 (eager send per delta)", len(sent))
	}
	if delta := sent[1].(TextDeltaMessage); delta.TextDelta != "hello world" {
		t.Errorf("latest delta = %q", delta.TextDelta)
	}
}

func TestSubmitDeltaNoOpWhileDisabled(t *testing.T) {
	d, sender, _ := newDispatcherHarness(t)

	off := false
	d.UpdateSettings(settings.Partial{Enabled: &off})
	before := len(sender.payloads()) // the config message

	d.SubmitDelta("hello")

	if got := len(sender.payloads()); got != before {
		t.Errorf("delta sent while disabled (%d payloads, want %d)", got, before)
	}
	if d.IsProcessing() {
		t.Error("processing flag raised while disabled")
	}
}

// The processing flag goes up synchronously with a send and comes back
// down within the processing timeout even if no response ever arrives.
func TestProcessingFlagBounded(t *testing.T) {
	d, _, _ := newDispatcherHarness(t)
	d.timeoutFor = func(settings.ExtractionSettings) time.Duration { return 50 * time.Millisecond }

	d.SubmitDelta("hello")
	if !d.IsProcessing() {
		t.Fatal("IsProcessing = false right after SubmitDelta")
	}

	deadline := time.Now().Add(2 * time.Second)
	for d.IsProcessing() {
		if time.Now().After(deadline) {
			t.Fatal("processing flag never reset")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Only the most recent timer is live: resubmitting restarts the window.
func TestResubmitRestartsTimer(t *testing.T) {
	d, _, _ := newDispatcherHarness(t)
	d.timeoutFor = func(settings.ExtractionSettings) time.Duration { return 80 * time.Millisecond }

	d.SubmitDelta("one")
	time.Sleep(50 * time.Millisecond)
	d.SubmitDelta("two")
	time.Sleep(50 * time.Millisecond)

	// 100ms after the first submit, but only 50ms after the second.
	if !d.IsProcessing() {
		t.Error("processing flag dropped although the window was restarted")
	}
}

func TestMarkResponseReceivedClearsFlag(t *testing.T) {
	var flips []bool
	var mu sync.Mutex

	kv, err := storage.Open(filepath.Join(t.TempDir(), "local.db"))
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	defer kv.Close()

	d := NewDispatcher(&captureSender{}, settings.NewStore(kv, nil), nil, func(on bool) {
		mu.Lock()
		flips = append(flips, on)
		mu.Unlock()
	})
	defer d.Stop()

	d.SubmitDelta("hello")
	d.MarkResponseReceived()

	if d.IsProcessing() {
		t.Error("IsProcessing = true after MarkResponseReceived")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(flips) != 2 || !flips[0] || flips[1] {
		t.Errorf("processing observer flips = %v, want [true false]", flips)
	}
}

// probeSender observes dispatcher state from inside Send, the way a
// slow socket write overlaps concurrent IsProcessing calls.
type probeSender struct {
	d          *Dispatcher
	processing bool
}

func (p *probeSender) Send(interface{}) {
	p.processing = p.d.IsProcessing()
}

// The dispatcher must not hold its lock across the socket write: state
// queries stay responsive however long a send takes.
func TestSubmitDeltaDoesNotHoldLockDuringSend(t *testing.T) {
	kv, err := storage.Open(filepath.Join(t.TempDir(), "local.db"))
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	defer kv.Close()

	sender := &probeSender{}
	d := NewDispatcher(sender, settings.NewStore(kv, nil), nil, nil)
	defer d.Stop()
	sender.d = d

	done := make(chan struct{})
	go func() {
		d.SubmitDelta("hello")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SubmitDelta deadlocked querying state from within Send")
	}
	if !sender.processing {
		t.Error("processing flag was not yet set when the delta went out")
	}
}

func TestUpdateSettingsPersistsAndPushesConfig(t *testing.T) {
	d, sender, store := newDispatcherHarness(t)

	delay := 10
	d.UpdateSettings(settings.Partial{
		DebounceDelaySeconds: &delay,
		EntityTypes:          []codex.Kind{codex.KindLocation},
	})

	// Persisted.
	reloaded := store.Load()
	if reloaded.DebounceDelaySeconds != 10 {
		t.Errorf("persisted delay = %d, want 10", reloaded.DebounceDelaySeconds)
	}

	// Pushed to the server as a config message.
	sent := sender.payloads()
	if len(sent) != 1 {
		t.Fatalf("%d payloads, want 1 config message", len(sent))
	}
	cfg, ok := sent[0].(ConfigMessage)
	if !ok {
		t.Fatalf("payload is %T, want ConfigMessage", sent[0])
	}
	if cfg.Type != "config" || cfg.Settings.DebounceDelaySeconds != 10 {
		raw, _ := json.Marshal(cfg)
		t.Errorf("config message = %s", raw)
	}
}
