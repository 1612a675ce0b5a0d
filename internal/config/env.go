package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// loadEnvFiles reads provider secrets from .env files next to the config file
// and in the working directory. Variables already present in the process
// environment are never overwritten.
func loadEnvFiles(configPath string) {
	candidates := []string{".env"}
	if dir := filepath.Dir(strings.TrimSpace(configPath)); dir != "" && dir != "." {
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}
	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		_ = godotenv.Load(path)
	}
}

// lookupEnv returns the first non-empty value among keys.
func lookupEnv(keys ...string) (string, bool) {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed, true
			}
		}
	}
	return "", false
}
