package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"maxwell-extraction/internal/config"
	"maxwell-extraction/internal/notify"
	"maxwell-extraction/internal/pkg/logger"
	"maxwell-extraction/internal/realtime"
	"maxwell-extraction/internal/settings"
	"maxwell-extraction/internal/storage"
	"maxwell-extraction/internal/suggestion"

	"github.com/fsnotify/fsnotify"
)

// logCommitter records approvals in the log only. A full deployment
// would push the approved entry into the codex service instead.
type logCommitter struct {
	log logger.ILogger
}

func (c *logCommitter) Commit(_ context.Context, rec suggestion.Record) error {
	c.log.Info("Committer", "Suggestion committed", map[string]interface{}{
		"name": rec.Name,
		"type": rec.Type,
	})
	return nil
}

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Logger
	appLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	defer appLogger.Sync()

	// 3. Open local storage
	kv, err := storage.Open(cfg.Extraction.StoragePath)
	if err != nil {
		log.Panicf("Unable to open local storage: %v", err)
	}
	defer kv.Close()

	settingsStore := settings.NewStore(kv, appLogger)
	suggestions := suggestion.NewStore(&logCommitter{log: appLogger}, appLogger)

	// 4. Notification bus: print everything the pipeline surfaces.
	bus := notify.NewBus(appLogger)
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifications, err := bus.Subscribe(ctx)
	if err != nil {
		log.Panicf("Unable to subscribe to notifications: %v", err)
	}
	go func() {
		for n := range notifications {
			log.Printf("🔔 %s (%s)", n.Message, n.ActionURL)
		}
	}()

	// 5. Extraction session
	session := realtime.NewSession(realtime.SessionConfig{
		BaseURL:      cfg.Extraction.ServiceURL,
		ManuscriptID: cfg.Extraction.ManuscriptID,
		Settings:     settingsStore,
		Suggestions:  suggestions,
		Notifier:     bus,
		OnStatusChange: func(s realtime.Status) {
			appLogger.Info("Main", "Connection status changed", map[string]interface{}{"status": string(s)})
		},
		Logger: appLogger,
	})
	if err := session.Start(ctx); err != nil {
		appLogger.Warn("Main", "Initial connect failed, retrying in background", map[string]interface{}{"error": err.Error()})
	}
	defer session.Close()

	// 6. Watch the manuscript file and stream appended text as deltas.
	if err := watchManuscript(ctx, cfg.Extraction.ManuscriptPath, session, appLogger); err != nil {
		log.Panicf("Manuscript watch failed: %v", err)
	}
}

// watchManuscript tails the manuscript file. Editors replace files on
// save, so the watch is on the parent directory rather than the file.
func watchManuscript(ctx context.Context, path string, session *realtime.Session, appLogger logger.ILogger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	last := readFileOrEmpty(abs)
	appLogger.Info("Watcher", "Watching manuscript", map[string]interface{}{"path": abs})

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != abs || !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			current := readFileOrEmpty(abs)
			delta := diffDelta(last, current)
			last = current
			if delta == "" {
				continue
			}
			session.SubmitDelta(delta)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			appLogger.Warn("Watcher", "Watch error", map[string]interface{}{"error": err.Error()})
		}
	}
}

func readFileOrEmpty(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

// diffDelta returns the appended text when the file only grew, or the
// whole new content after an edit anywhere else.
func diffDelta(old, current string) string {
	if current == old {
		return ""
	}
	if strings.HasPrefix(current, old) {
		return current[len(old):]
	}
	return current
}
