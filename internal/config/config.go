package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds runtime configuration. Secrets (the API key) are read from the
// environment or from the config file at runtime; never committed.
type Config struct {
	// APIKey authenticates against the completion service. Set from STEWARD_API_KEY.
	APIKey string `json:"api_key"`
	// BaseURL is the OpenAI-compatible endpoint root (STEWARD_BASE_URL).
	BaseURL string `json:"base_url"`
	// Model is the completion model id (STEWARD_MODEL).
	Model string `json:"model"`
	// Temperature for completion requests.
	Temperature float64 `json:"temperature"`
	// MaxIterations bounds decision/execute round-trips per request.
	MaxIterations int `json:"max_iterations"`
	// ListenAddr is the front-door bind address for the serve command.
	ListenAddr string `json:"listen_addr"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level"`

	// DataDir is where steward.db and config.json live (e.g. ~/.config/steward).
	DataDir string `json:"-"`
	// DBPath is the path to steward.db.
	DBPath string `json:"-"`
}

// DefaultBaseURL is the completion endpoint used when none is configured.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// DefaultDataDir returns the default data directory (project-local .steward if
// present, else ~/.config/steward).
func DefaultDataDir() string {
	cwd, _ := os.Getwd()
	local := filepath.Join(cwd, ".steward")
	if info, err := os.Stat(local); err == nil && info.IsDir() {
		return local
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "steward")
}

// New builds config from env and optional data dir. dataDir can be empty to
// use STEWARD_DATA_DIR or the default location.
func New(dataDir string) *Config {
	if dataDir == "" {
		if d := os.Getenv("STEWARD_DATA_DIR"); d != "" {
			dataDir = d
		} else {
			dataDir = DefaultDataDir()
		}
	}

	temperature := 0.2
	if v := os.Getenv("STEWARD_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			temperature = f
		}
	}
	maxIterations := 5
	if v := os.Getenv("STEWARD_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxIterations = n
		}
	}
	listenAddr := os.Getenv("STEWARD_LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = "127.0.0.1:8580"
	}
	baseURL := os.Getenv("STEWARD_BASE_URL")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	logLevel := os.Getenv("STEWARD_LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	cfg := &Config{
		APIKey:        os.Getenv("STEWARD_API_KEY"),
		BaseURL:       baseURL,
		Model:         os.Getenv("STEWARD_MODEL"),
		Temperature:   temperature,
		MaxIterations: maxIterations,
		ListenAddr:    listenAddr,
		LogLevel:      logLevel,
		DataDir:       dataDir,
		DBPath:        filepath.Join(dataDir, "steward.db"),
	}

	// Priority: Env < Config File. Keys present in config.json overwrite the
	// env-derived fields; missing keys leave them untouched.
	configPath := filepath.Join(dataDir, "config.json")
	if data, err := os.ReadFile(configPath); err == nil {
		_ = json.Unmarshal(data, cfg)
	}

	return cfg
}
