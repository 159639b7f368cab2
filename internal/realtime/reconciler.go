package realtime

import (
	"fmt"
	"strings"
	"time"

	"maxwell-extraction/internal/notify"
	"maxwell-extraction/internal/pkg/logger"
	"maxwell-extraction/internal/suggestion"
	"maxwell-extraction/pkg/codex"
)

const notificationDurationMs = 5000

// Reconciler folds inbound entity messages into the suggestion store
// and drives user notifications, without re-surfacing entities the
// server already judges known. Messages arrive one at a time from the
// connection's read loop, so no internal locking is needed.
type Reconciler struct {
	manuscriptID string
	store        *suggestion.Store
	notifier     notify.Notifier
	log          logger.ILogger

	// markResponse clears the dispatcher's processing indicator.
	markResponse func()

	// onEntityDetected lets the editor highlight detected spans,
	// independent of store mutation. Optional.
	onEntityDetected func([]DetectedEntity)
}

func NewReconciler(
	manuscriptID string,
	store *suggestion.Store,
	notifier notify.Notifier,
	markResponse func(),
	onEntityDetected func([]DetectedEntity),
	log logger.ILogger,
) *Reconciler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Reconciler{
		manuscriptID:     manuscriptID,
		store:            store,
		notifier:         notifier,
		markResponse:     markResponse,
		onEntityDetected: onEntityDetected,
		log:              log,
	}
}

// HandleMessage processes one inbound message. Called strictly
// sequentially, in delivery order.
func (r *Reconciler) HandleMessage(msg ServerMessage) {
	switch m := msg.(type) {
	case PongMessage:
		r.log.Debug("Reconciler", "Keep-alive pong received", nil)

	case ConfigAckMessage:
		r.log.Info("Reconciler", "Server acknowledged extraction settings", map[string]interface{}{
			"enabled":        m.Settings.Enabled,
			"debounce_delay": m.Settings.DebounceDelaySeconds,
		})

	case EntitiesMessage:
		r.handleEntities(m)

	default:
		r.log.Warn("Reconciler", "Unhandled message variant", map[string]interface{}{
			"type": fmt.Sprintf("%T", msg),
		})
	}
}

func (r *Reconciler) handleEntities(m EntitiesMessage) {
	// A real response supersedes the processing-timeout fallback.
	if r.markResponse != nil {
		r.markResponse()
	}

	// Entities the server judges already known are never surfaced again.
	fresh := make([]DetectedEntity, 0, len(m.NewEntities))
	for _, e := range m.NewEntities {
		if !e.AlreadyInCodex {
			fresh = append(fresh, e)
		}
	}
	if len(fresh) == 0 {
		return
	}

	now := time.Now()
	for _, e := range fresh {
		if !e.IsNew || e.SuggestionID == "" {
			continue
		}
		// Insert is idempotent per id: a resent id overwrites.
		r.store.Insert(suggestion.Record{
			ID:           e.SuggestionID,
			ManuscriptID: r.manuscriptID,
			Name:         e.Name,
			Type:         e.Type,
			Context:      e.Context,
			Confidence:   e.Confidence,
			Status:       suggestion.StatusPending,
			CreatedAt:    now,
		})
	}

	if r.onEntityDetected != nil {
		r.onEntityDetected(fresh)
	}

	if r.notifier != nil {
		r.notifier.Notify(notify.Notification{
			Message:      r.notificationText(fresh),
			ManuscriptID: r.manuscriptID,
			DurationMs:   notificationDurationMs,
			ActionURL:    fmt.Sprintf("/manuscripts/%s/suggestions", r.manuscriptID),
		})
	}

	r.log.Info("Reconciler", "Entity suggestions reconciled", map[string]interface{}{
		"manuscript_id": r.manuscriptID,
		"count":         len(fresh),
		"queued":        r.store.Count(),
	})
}

// notificationText names the entity when there is exactly one, and the
// distinct types involved when there are several.
func (r *Reconciler) notificationText(fresh []DetectedEntity) string {
	if len(fresh) == 1 {
		e := fresh[0]
		return fmt.Sprintf("New entity detected: %s (%s)", e.Name, e.Type.Label())
	}

	seen := make(map[codex.Kind]bool)
	kinds := make([]string, 0, len(fresh))
	for _, e := range fresh {
		if !seen[e.Type] {
			seen[e.Type] = true
			kinds = append(kinds, e.Type.Label())
		}
	}
	return fmt.Sprintf("%d new entities detected: %s", len(fresh), strings.Join(kinds, ", "))
}
