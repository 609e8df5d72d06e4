package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where chatpet stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string
	// Secret signs session tokens
	Secret string

	// AI configuration
	AIAPIKey      string // CHATPET_AI_API_KEY, fallback when no key is stored in settings
	AIBaseURL     string // CHATPET_AI_BASE_URL (default: https://api.moonshot.cn/v1)
	AIChatModel   string // CHATPET_AI_CHAT_MODEL (default: moonshot-v1-8k)
	AIVisionModel string // CHATPET_AI_VISION_MODEL (default: moonshot-v1-8k-vision-preview)

	// DefaultPetName seeds the companion persona until the user picks a name.
	DefaultPetName string // CHATPET_DEFAULT_PET_NAME (default: Wangcai)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from CHATPET_* environment variables.
func (p *Profile) FromEnv() {
	p.AIAPIKey = os.Getenv("CHATPET_AI_API_KEY")
	p.AIBaseURL = getEnvOrDefault("CHATPET_AI_BASE_URL", "https://api.moonshot.cn/v1")
	p.AIChatModel = getEnvOrDefault("CHATPET_AI_CHAT_MODEL", "moonshot-v1-8k")
	p.AIVisionModel = getEnvOrDefault("CHATPET_AI_VISION_MODEL", "moonshot-v1-8k-vision-preview")
	p.DefaultPetName = getEnvOrDefault("CHATPET_DEFAULT_PET_NAME", "Wangcai")
	if p.Secret == "" {
		p.Secret = os.Getenv("CHATPET_SECRET")
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "chatpet")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/chatpet"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("chatpet_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	if p.Secret == "" {
		p.Secret = "chatpet"
	}

	return nil
}
