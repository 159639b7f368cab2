// Package settings holds the user-configurable extraction settings and
// their persistence in local storage.
package settings

import (
	"time"

	"maxwell-extraction/pkg/codex"
)

// Confidence is the detection confidence level reported by the backend
// and the minimum level the user is willing to see.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Rank orders confidence levels for threshold filtering.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceLow:
		return 0
	case ConfidenceMedium:
		return 1
	case ConfidenceHigh:
		return 2
	default:
		return -1
	}
}

// ExtractionSettings is the per-user extraction configuration. It is
// loaded at session start, mutated only through Merge, and mirrored to
// the server as a config message whenever it changes.
type ExtractionSettings struct {
	Enabled              bool         `json:"enabled"`
	DebounceDelaySeconds int          `json:"debounceDelaySeconds" validate:"oneof=2 5 10"`
	ConfidenceThreshold  Confidence   `json:"confidenceThreshold" validate:"oneof=low medium high"`
	EntityTypes          []codex.Kind `json:"entityTypes" validate:"min=1"`
}

// Defaults returns the hard-coded fallback used on first run and when
// stored settings fail to parse.
func Defaults() ExtractionSettings {
	return ExtractionSettings{
		Enabled:              true,
		DebounceDelaySeconds: 2,
		ConfidenceThreshold:  ConfidenceMedium,
		EntityTypes:          codex.DefaultKinds(),
	}
}

// ProcessingTimeout is how long the UI "processing" indicator may stay
// on after a delta is sent with no response: the configured debounce
// delay plus a one second grace period.
func (s ExtractionSettings) ProcessingTimeout() time.Duration {
	return time.Duration(s.DebounceDelaySeconds)*time.Second + time.Second
}

// WantsKind reports whether the user asked for this entity type.
func (s ExtractionSettings) WantsKind(k codex.Kind) bool {
	for _, want := range s.EntityTypes {
		if want == k {
			return true
		}
	}
	return false
}

// MeetsThreshold reports whether a detection confidence clears the
// configured minimum.
func (s ExtractionSettings) MeetsThreshold(c Confidence) bool {
	return c.Rank() >= s.ConfidenceThreshold.Rank()
}

// Partial is a sparse settings update; nil fields keep their current
// value.
type Partial struct {
	Enabled              *bool        `json:"enabled,omitempty"`
	DebounceDelaySeconds *int         `json:"debounceDelaySeconds,omitempty"`
	ConfidenceThreshold  *Confidence  `json:"confidenceThreshold,omitempty"`
	EntityTypes          []codex.Kind `json:"entityTypes,omitempty"`
}

// Merge applies a partial update and returns the resulting settings.
func (s ExtractionSettings) Merge(p Partial) ExtractionSettings {
	if p.Enabled != nil {
		s.Enabled = *p.Enabled
	}
	if p.DebounceDelaySeconds != nil {
		s.DebounceDelaySeconds = *p.DebounceDelaySeconds
	}
	if p.ConfidenceThreshold != nil {
		s.ConfidenceThreshold = *p.ConfidenceThreshold
	}
	if p.EntityTypes != nil {
		s.EntityTypes = append([]codex.Kind(nil), p.EntityTypes...)
	}
	return s
}
