package realtime

import (
	"context"

	"maxwell-extraction/internal/notify"
	"maxwell-extraction/internal/pkg/logger"
	"maxwell-extraction/internal/settings"
	"maxwell-extraction/internal/suggestion"
)

// SessionConfig assembles one extraction session's collaborators. All
// state is constructor-injected; nothing here is process-global, so two
// manuscripts can run side by side without sharing anything but the
// settings store they were given.
type SessionConfig struct {
	BaseURL      string
	ManuscriptID string

	Settings    *settings.Store
	Suggestions *suggestion.Store
	Notifier    notify.Notifier

	OnEntityDetected func([]DetectedEntity)
	OnStatusChange   func(Status)
	OnProcessing     func(bool)

	Logger logger.ILogger
}

// Session is the live extraction pipeline for one open manuscript:
// editor deltas in, suggestion records and notifications out.
type Session struct {
	conn       *ConnManager
	dispatcher *Dispatcher
	reconciler *Reconciler
	log        logger.ILogger
}

func NewSession(cfg SessionConfig) *Session {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	s := &Session{log: log}

	s.conn = NewConnManager(ConnConfig{
		BaseURL:      cfg.BaseURL,
		ManuscriptID: cfg.ManuscriptID,
		Settings: func() settings.ExtractionSettings {
			return s.dispatcher.Settings()
		},
		OnMessage: func(msg ServerMessage) {
			s.reconciler.HandleMessage(msg)
		},
		OnStatusChange: cfg.OnStatusChange,
		Logger:         log,
	})

	s.dispatcher = NewDispatcher(s.conn, cfg.Settings, log, cfg.OnProcessing)

	s.reconciler = NewReconciler(
		cfg.ManuscriptID,
		cfg.Suggestions,
		cfg.Notifier,
		s.dispatcher.MarkResponseReceived,
		cfg.OnEntityDetected,
		log,
	)

	return s
}

// Start opens the extraction stream.
func (s *Session) Start(ctx context.Context) error {
	return s.conn.Connect(ctx)
}

// Close tears the session down: pending timers cancelled, socket
// closed, no further reconnects.
func (s *Session) Close() {
	s.conn.Disconnect()
	s.dispatcher.Stop()
}

// SubmitDelta forwards the latest manuscript text for analysis.
func (s *Session) SubmitDelta(text string) {
	s.dispatcher.SubmitDelta(text)
}

// UpdateSettings merges, persists and mirrors a settings change.
func (s *Session) UpdateSettings(p settings.Partial) settings.ExtractionSettings {
	return s.dispatcher.UpdateSettings(p)
}

// Settings returns the session's current extraction settings.
func (s *Session) Settings() settings.ExtractionSettings {
	return s.dispatcher.Settings()
}

// IsProcessing reports whether a delta is awaiting a server response.
func (s *Session) IsProcessing() bool {
	return s.dispatcher.IsProcessing()
}

// Status returns the connection state.
func (s *Session) Status() Status {
	return s.conn.Status()
}
