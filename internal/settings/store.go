package settings

import (
	"encoding/json"
	"fmt"

	"maxwell-extraction/internal/pkg/logger"
	"maxwell-extraction/internal/storage"

	"github.com/go-playground/validator/v10"
)

// StorageKey is where settings live in local storage.
const StorageKey = "maxwell_extraction_settings"

// Store persists ExtractionSettings in the local key-value store.
// Corrupt or invalid stored values degrade to Defaults without
// surfacing an error; the user just sees factory settings.
type Store struct {
	kv       *storage.KV
	validate *validator.Validate
	log      logger.ILogger
}

func NewStore(kv *storage.KV, log logger.ILogger) *Store {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Store{
		kv:       kv,
		validate: validator.New(),
		log:      log,
	}
}

// Load reads settings from local storage, falling back to Defaults on
// any parse or validation failure.
func (s *Store) Load() ExtractionSettings {
	raw, ok, err := s.kv.Get(StorageKey)
	if err != nil {
		s.log.Warn("SettingsStore", "Failed to read stored settings, using defaults", map[string]interface{}{"error": err.Error()})
		return Defaults()
	}
	if !ok {
		return Defaults()
	}

	var loaded ExtractionSettings
	if err := json.Unmarshal(raw, &loaded); err != nil {
		s.log.Warn("SettingsStore", "Stored settings are corrupt, using defaults", map[string]interface{}{"error": err.Error()})
		return Defaults()
	}
	if err := s.validate.Struct(loaded); err != nil {
		s.log.Warn("SettingsStore", "Stored settings failed validation, using defaults", map[string]interface{}{"error": err.Error()})
		return Defaults()
	}

	return loaded
}

// Save validates and writes settings to local storage.
func (s *Store) Save(v ExtractionSettings) error {
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("invalid extraction settings: %w", err)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal extraction settings: %w", err)
	}
	if err := s.kv.Set(StorageKey, raw); err != nil {
		return fmt.Errorf("persist extraction settings: %w", err)
	}
	return nil
}
