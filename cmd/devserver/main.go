package main

import (
	"log"

	"maxwell-extraction/internal/config"
	"maxwell-extraction/internal/extract"
	"maxwell-extraction/internal/pkg/logger"
	"maxwell-extraction/internal/server"
	ws "maxwell-extraction/internal/websocket"
	"maxwell-extraction/pkg/codex"
)

// sampleCodex stands in when no codex file is configured, so the
// server is usable out of the box.
var sampleCodex = []codex.Entry{
	{ID: "char-elena", Name: "Elena Voss", Kind: codex.KindCharacter, Aliases: []string{"Elena"}},
	{ID: "char-marcus", Name: "Marcus Tully", Kind: codex.KindCharacter},
	{ID: "loc-blackreach", Name: "Blackreach Hold", Kind: codex.KindLocation, Aliases: []string{"Blackreach"}},
	{ID: "loc-mistwood", Name: "Mistwood", Kind: codex.KindLocation},
	{ID: "item-ember", Name: "Ember Blade", Kind: codex.KindItem},
	{ID: "org-ashen", Name: "Ashen Order", Kind: codex.KindOrganization},
}

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Logger
	appLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	defer appLogger.Sync()

	// 3. Build the codex index
	var idx *codex.Index
	if cfg.Extraction.CodexPath != "" {
		var err error
		idx, err = codex.LoadFile(cfg.Extraction.CodexPath)
		if err != nil {
			log.Panicf("Unable to load codex file: %v", err)
		}
		appLogger.Info("Main", "Codex loaded from file", map[string]interface{}{
			"path":    cfg.Extraction.CodexPath,
			"entries": idx.Len(),
		})
	} else {
		idx = codex.NewIndex(sampleCodex)
		appLogger.Info("Main", "Using built-in sample codex", map[string]interface{}{"entries": idx.Len()})
	}

	// 4. Detection engine + session hub
	engine := extract.NewEngine(idx, appLogger)
	hub := ws.NewHub(appLogger)
	go hub.Run()

	// 5. Initialize and run the server
	srv := server.New(cfg, hub, engine)
	log.Fatal(srv.Run())
}
