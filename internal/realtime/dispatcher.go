package realtime

import (
	"sync"
	"time"

	"maxwell-extraction/internal/pkg/logger"
	"maxwell-extraction/internal/settings"
)

// Sender is the slice of the connection manager the dispatcher needs.
type Sender interface {
	Send(payload interface{})
}

// Dispatcher converts the editor's high-frequency text-change stream
// into text_delta messages. Deltas are sent eagerly — the latest queued
// text is the source of truth, not an accumulated diff — and debouncing
// of processing happens server-side. The local timer only bounds the
// "processing" indicator so the UI can never show a stuck spinner.
type Dispatcher struct {
	conn  Sender
	store *settings.Store
	log   logger.ILogger

	// onProcessing observes the processing flag for UI feedback.
	onProcessing func(bool)

	mu         sync.Mutex
	current    settings.ExtractionSettings
	processing bool
	timer      *time.Timer

	// timeoutFor is swappable in tests; defaults to the settings-derived
	// processing timeout.
	timeoutFor func(settings.ExtractionSettings) time.Duration
}

func NewDispatcher(conn Sender, store *settings.Store, log logger.ILogger, onProcessing func(bool)) *Dispatcher {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Dispatcher{
		conn:         conn,
		store:        store,
		log:          log,
		onProcessing: onProcessing,
		current:      store.Load(),
		timeoutFor:   settings.ExtractionSettings.ProcessingTimeout,
	}
}

// Settings returns the current extraction settings.
func (d *Dispatcher) Settings() settings.ExtractionSettings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// IsProcessing reports whether a delta is awaiting a server response.
func (d *Dispatcher) IsProcessing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.processing
}

// SubmitDelta queues the latest manuscript text for analysis. A no-op
// while extraction is disabled. The processing flag flips on
// synchronously and is guaranteed to flip back off within the settings'
// processing timeout even if no response ever arrives.
func (d *Dispatcher) SubmitDelta(text string) {
	d.mu.Lock()
	if !d.current.Enabled {
		d.mu.Unlock()
		return
	}

	d.processing = true
	if d.timer != nil {
		d.timer.Stop()
	}
	timeout := d.timeoutFor(d.current)
	d.timer = time.AfterFunc(timeout, d.expireProcessing)
	d.mu.Unlock()

	// Send outside the lock: a slow socket write must not stall
	// IsProcessing or MarkResponseReceived.
	d.conn.Send(TextDeltaMessage{TextDelta: text})
	d.emitProcessing(true)
}

// MarkResponseReceived clears the processing indicator; a real response
// supersedes the timeout fallback.
func (d *Dispatcher) MarkResponseReceived() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	was := d.processing
	d.processing = false
	d.mu.Unlock()

	if was {
		d.emitProcessing(false)
	}
}

// UpdateSettings merges a partial update, persists it, and mirrors the
// result to the server as a config message (best-effort; the config_ack
// is logged but not required).
func (d *Dispatcher) UpdateSettings(p settings.Partial) settings.ExtractionSettings {
	d.mu.Lock()
	d.current = d.current.Merge(p)
	merged := d.current
	d.mu.Unlock()

	if err := d.store.Save(merged); err != nil {
		d.log.Error("Dispatcher", "Failed to persist extraction settings", map[string]interface{}{
			"error": err.Error(),
		})
	}

	d.conn.Send(NewConfigMessage(merged))
	return merged
}

// Stop cancels the pending processing timer at session teardown.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.processing = false
	d.mu.Unlock()
}

func (d *Dispatcher) expireProcessing() {
	d.mu.Lock()
	if !d.processing {
		d.mu.Unlock()
		return
	}
	d.processing = false
	d.timer = nil
	d.mu.Unlock()

	d.log.Debug("Dispatcher", "Processing indicator timed out without a response", nil)
	d.emitProcessing(false)
}

func (d *Dispatcher) emitProcessing(on bool) {
	if d.onProcessing != nil {
		d.onProcessing(on)
	}
}
