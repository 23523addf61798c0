package config

import (
	"os"

	"github.com/otterable/minifitna/internal/models"
)

// LoadServer returns the backend server configuration from environment variables
func LoadServer() models.ServerConfig {
	return models.ServerConfig{
		Port:   getEnv("PORT", "8743"),
		DBPath: getEnv("DB_PATH", "minifitna.db"),
	}
}

// LoadEngine returns the engine configuration from environment variables
func LoadEngine() models.EngineConfig {
	return models.EngineConfig{
		BaseURL:     getEnv("API_BASE_URL", "http://localhost:8743"),
		StorePath:   getEnv("STORE_PATH", "engine.db"),
		Port:        getEnv("ENGINE_PORT", "8750"),
		ShoutrrrURL: getEnv("SHOUTRRR_URL", ""),
		Username:    getEnv("API_USER", ""),
		Password:    getEnv("API_PASS", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
