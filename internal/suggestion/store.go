// Package suggestion holds the client-side queue of proposed new
// entities awaiting user approval or rejection.
package suggestion

import (
	"context"
	"fmt"
	"sort"
	"time"

	"maxwell-extraction/internal/pkg/logger"
	"maxwell-extraction/internal/settings"
	"maxwell-extraction/pkg/codex"

	"github.com/patrickmn/go-cache"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Record is the client projection of one suggestion. Created when a new
// detection arrives; removed when the user approves or rejects it. No
// terminal state is retained client-side — durable status lives with
// the backend.
type Record struct {
	ID           string              `json:"id"`
	ManuscriptID string              `json:"manuscript_id"`
	Name         string              `json:"name"`
	Type         codex.Kind          `json:"type"`
	Context      string              `json:"context"`
	Confidence   settings.Confidence `json:"confidence"`
	Status       Status              `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
}

// Committer reports a terminal approve/reject decision to the backend.
// Implemented by the REST client layer; nil means decisions are local
// only (tests, offline mode).
type Committer interface {
	Commit(ctx context.Context, rec Record) error
}

// Store keeps pending suggestions in memory, keyed by suggestion id.
// Insert carries map semantics: a resent id overwrites rather than
// duplicates.
type Store struct {
	cache     *cache.Cache
	committer Committer
	log       logger.ILogger
}

func NewStore(committer Committer, log logger.ILogger) *Store {
	if log == nil {
		log = logger.NewNopLogger()
	}
	// Suggestions live until the user acts on them; no TTL.
	return &Store{
		cache:     cache.New(cache.NoExpiration, 0),
		committer: committer,
		log:       log,
	}
}

// Insert adds or overwrites a record by id.
func (s *Store) Insert(rec Record) {
	s.cache.Set(rec.ID, rec, cache.NoExpiration)
}

// Get returns the record for id, if present.
func (s *Store) Get(id string) (Record, bool) {
	if x, found := s.cache.Get(id); found {
		return x.(Record), true
	}
	return Record{}, false
}

// Remove deletes a record. Removing a missing id is a no-op.
func (s *Store) Remove(id string) {
	s.cache.Delete(id)
}

// List returns all records, oldest first.
func (s *Store) List() []Record {
	items := s.cache.Items()
	records := make([]Record, 0, len(items))
	for _, item := range items {
		records = append(records, item.Object.(Record))
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records
}

// Count returns the queue badge value.
func (s *Store) Count() int {
	return s.cache.ItemCount()
}

// Approve commits an accepted suggestion and removes it from the queue.
func (s *Store) Approve(ctx context.Context, id string) error {
	return s.resolve(ctx, id, StatusApproved)
}

// Reject commits a declined suggestion and removes it from the queue.
func (s *Store) Reject(ctx context.Context, id string) error {
	return s.resolve(ctx, id, StatusRejected)
}

func (s *Store) resolve(ctx context.Context, id string, status Status) error {
	rec, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("suggestion %q not found", id)
	}
	rec.Status = status

	if s.committer != nil {
		if err := s.committer.Commit(ctx, rec); err != nil {
			// Keep the record queued so the user can retry.
			return fmt.Errorf("commit suggestion %q: %w", id, err)
		}
	}

	s.cache.Delete(id)
	s.log.Info("SuggestionStore", "Suggestion resolved", map[string]interface{}{
		"id":     id,
		"status": string(status),
	})
	return nil
}
