package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"eastask-go/pkg/logger"
	"github.com/joho/godotenv"
)

const dotenvFilename = ".env"

func loadDotEnv(log logger.Logger) error {
	path, err := findDotEnv(dotenvFilename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Debug("dotenv: no .env file found")
			return nil
		}
		return err
	}

	loaded, skipped, err := applyDotEnv(path)
	if err != nil {
		return err
	}

	log.Info("dotenv: loaded variables", "count", loaded, "path", path)
	if skipped > 0 {
		log.Info("dotenv: skipped variables already set in env", "count", skipped)
	}

	return nil
}

func findDotEnv(filename string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, filename)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", os.ErrNotExist
}

// applyDotEnv sets every variable from path that is not already present in
// the process environment.
func applyDotEnv(path string) (int, int, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return 0, 0, fmt.Errorf("parse %s: %w", path, err)
	}

	loaded := 0
	skipped := 0
	for key, value := range values {
		if _, exists := os.LookupEnv(key); exists {
			skipped++
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return loaded, skipped, err
		}
		loaded++
	}

	return loaded, skipped, nil
}
