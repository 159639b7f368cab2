package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	Extraction ExtractionConfig
}

type AppConfig struct {
	Port        string
	BaseURL     string
	Environment string
	LogFilePath string
}

type ExtractionConfig struct {
	// ServiceURL is the base URL of the entity-extraction backend. The
	// client derives the per-manuscript WebSocket endpoint from it.
	ServiceURL string

	// StoragePath is the local durable key-value database holding
	// extraction settings and the cached codex seed.
	StoragePath string

	// ManuscriptID identifies the session opened by the extractor CLI.
	ManuscriptID string

	// ManuscriptPath is the text file the extractor CLI watches for
	// changes (the editor stand-in).
	ManuscriptPath string

	// CodexPath optionally points at a JSON codex file to seed the
	// server's known-entity index. Empty means the built-in sample set.
	CodexPath string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:        getEnv("APP_PORT", "3000"),
			BaseURL:     getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment: getEnv("GO_ENV", "development"),
			LogFilePath: getEnv("LOG_FILE_PATH", "maxwell.log"),
		},
		Extraction: ExtractionConfig{
			ServiceURL:     getEnv("EXTRACTION_SERVICE_URL", "http://localhost:3000"),
			StoragePath:    getEnv("LOCAL_STORAGE_PATH", "maxwell_local.db"),
			ManuscriptID:   getEnv("MANUSCRIPT_ID", "draft"),
			ManuscriptPath: getEnv("MANUSCRIPT_PATH", "manuscript.txt"),
			CodexPath:      getEnv("CODEX_PATH", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}
