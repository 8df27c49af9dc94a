package config

import (
	"errors"
	"log"
	"os"

	"github.com/joho/godotenv"
)

// devJWTSecret keeps local development working without any environment at
// all. Load refuses to fall back to it in production.
const devJWTSecret = "dev_secret_change_me"

type Config struct {
	HTTPPort     string
	DatabaseURL  string
	JWTSecret    string
	GeminiAPIKey string
	OpenAIAPIKey string
	AppEnv       string
	LogLevel     string
}

func (c *Config) Production() bool {
	return c.AppEnv == "production"
}

// Load reads the optional .env file and assembles the configuration from
// environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		DatabaseURL:  getEnv("DATABASE_URL", "tanisma.db"),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		AppEnv:       getEnv("APP_ENV", "development"),
		LogLevel:     getEnv("LOG_LEVEL", "INFO"),
	}

	if cfg.JWTSecret == "" {
		if cfg.Production() {
			return nil, errors.New("JWT_SECRET environment variable is required in production")
		}
		cfg.JWTSecret = devJWTSecret
	}

	return cfg, nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
