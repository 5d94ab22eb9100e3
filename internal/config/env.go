package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// loadEnvFiles loads .env and .env.local from the working directory and from
// the directory holding the configuration file. Existing process variables win.
func loadEnvFiles(configPath string) {
	dirs := []string{"."}
	if dir := filepath.Dir(configPath); dir != "." && dir != "" {
		dirs = append(dirs, dir)
	}
	for _, dir := range dirs {
		for _, name := range []string{".env", ".env.local"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if err := godotenv.Load(path); err != nil {
				slog.Warn("Failed to load environment file", "path", path, "error", err)
				continue
			}
			slog.Debug("Loaded environment variables", "path", path)
		}
	}
}
