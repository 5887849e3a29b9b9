package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

var envOnce sync.Once

// LoadEnvOnce loads the .env file at most once per process, from the first
// candidate path that exists. Safe to call from every package that needs it.
func LoadEnvOnce() {
	envOnce.Do(func() {
		paths := []string{
			".env",
			"../.env",
			"../../.env",
			filepath.Join(os.Getenv("APP_ROOT"), ".env"),
		}
		for _, p := range paths {
			if p == "" {
				continue
			}
			if _, err := os.Stat(p); err == nil {
				if err := godotenv.Load(p); err == nil {
					log.Printf("config: environment loaded from %s", p)
					return
				}
			}
		}
		log.Println("config: no .env file found, using process environment")
	})
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
