package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile             = ".env"
	defaultAPITimeout          = 15 * time.Second
	defaultStorageDriver       = DriverFile
	defaultStorageDir          = ".miniapp"
	defaultStorageNamespace    = "default"
	defaultRedisAddr           = "localhost:6379"
	defaultFirestoreCollection = "miniappStorage"
	defaultBridgePort          = "8787"
	defaultBridgeReadTimeout   = 15 * time.Second
	defaultBridgeWriteTimeout  = 30 * time.Second
	defaultBridgeIdleTimeout   = 120 * time.Second
	defaultInitDataMaxAge      = time.Hour
	defaultLogLevel            = "info"
)

// Storage drivers understood by the storage package.
const (
	DriverFile      = "file"
	DriverMemory    = "memory"
	DriverRedis     = "redis"
	DriverFirestore = "firestore"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	API      APIConfig
	Storage  StorageConfig
	Bridge   BridgeConfig
	Telegram TelegramConfig
	Log      LogConfig
}

// APIConfig configures the storefront REST client.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// StorageConfig selects and configures the durable cart storage.
type StorageConfig struct {
	Driver    string
	Dir       string
	Namespace string
	Redis     RedisConfig
	Firestore FirestoreConfig
}

// RedisConfig stores redis connection parameters.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
	Collection   string
}

// BridgeConfig configures the local webview bridge server.
type BridgeConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// TelegramConfig carries host platform credentials used by developer tooling.
type TelegramConfig struct {
	InitData       string
	BotToken       string
	InitDataMaxAge time.Duration
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level string
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.LookupEnv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the configuration by combining defaults, .env overrides, environment
// variables and explicit maps. It does not validate; see Validate.
func Load(_ context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		API: APIConfig{
			BaseURL: strings.TrimRight(strings.TrimSpace(stringWithDefault(lookup, "MINIAPP_API_BASE_URL", "")), "/"),
			Timeout: durationWithDefault(lookup, "MINIAPP_API_TIMEOUT", defaultAPITimeout),
		},
		Storage: StorageConfig{
			Driver:    strings.ToLower(stringWithDefault(lookup, "MINIAPP_STORAGE_DRIVER", defaultStorageDriver)),
			Dir:       stringWithDefault(lookup, "MINIAPP_STORAGE_DIR", defaultStorageDir),
			Namespace: stringWithDefault(lookup, "MINIAPP_STORAGE_NAMESPACE", defaultStorageNamespace),
			Redis: RedisConfig{
				Addr:     stringWithDefault(lookup, "MINIAPP_REDIS_ADDR", defaultRedisAddr),
				Password: stringWithDefault(lookup, "MINIAPP_REDIS_PASSWORD", ""),
				DB:       intWithDefault(lookup, "MINIAPP_REDIS_DB", 0),
			},
			Firestore: FirestoreConfig{
				ProjectID:    stringWithDefault(lookup, "MINIAPP_FIRESTORE_PROJECT_ID", ""),
				EmulatorHost: stringWithDefault(lookup, "MINIAPP_FIRESTORE_EMULATOR_HOST", ""),
				Collection:   stringWithDefault(lookup, "MINIAPP_FIRESTORE_COLLECTION", defaultFirestoreCollection),
			},
		},
		Bridge: BridgeConfig{
			Port:         stringWithDefault(lookup, "MINIAPP_BRIDGE_PORT", defaultBridgePort),
			ReadTimeout:  durationWithDefault(lookup, "MINIAPP_BRIDGE_READ_TIMEOUT", defaultBridgeReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "MINIAPP_BRIDGE_WRITE_TIMEOUT", defaultBridgeWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "MINIAPP_BRIDGE_IDLE_TIMEOUT", defaultBridgeIdleTimeout),
		},
		Telegram: TelegramConfig{
			InitData:       stringWithDefault(lookup, "MINIAPP_INIT_DATA", ""),
			BotToken:       stringWithDefault(lookup, "MINIAPP_TELEGRAM_BOT_TOKEN", ""),
			InitDataMaxAge: durationWithDefault(lookup, "MINIAPP_INIT_DATA_MAX_AGE", defaultInitDataMaxAge),
		},
		Log: LogConfig{
			Level: strings.ToLower(stringWithDefault(lookup, "MINIAPP_LOG_LEVEL", stringWithDefault(lookup, "LOG_LEVEL", defaultLogLevel))),
		},
	}

	return cfg, nil
}

// Validate reports missing or invalid fields. A missing API base URL is reported
// but callers are expected to keep running; requests then fail at call time.
func Validate(cfg Config) error {
	var missing []string

	if cfg.API.BaseURL == "" {
		missing = append(missing, "API.BaseURL")
	} else if u, err := url.Parse(cfg.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		missing = append(missing, "API.BaseURL")
	}
	if cfg.API.Timeout <= 0 {
		missing = append(missing, "API.Timeout")
	}

	switch cfg.Storage.Driver {
	case DriverFile:
		if strings.TrimSpace(cfg.Storage.Dir) == "" {
			missing = append(missing, "Storage.Dir")
		}
	case DriverMemory:
	case DriverRedis:
		if strings.TrimSpace(cfg.Storage.Redis.Addr) == "" {
			missing = append(missing, "Storage.Redis.Addr")
		}
	case DriverFirestore:
		if strings.TrimSpace(cfg.Storage.Firestore.ProjectID) == "" {
			missing = append(missing, "Storage.Firestore.ProjectID")
		}
		if strings.TrimSpace(cfg.Storage.Firestore.Collection) == "" {
			missing = append(missing, "Storage.Firestore.Collection")
		}
	default:
		missing = append(missing, "Storage.Driver")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

// MissingBaseURL reports whether err flags an absent or malformed API base URL.
func MissingBaseURL(err error) bool {
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return false
	}
	for _, field := range verr.fields {
		if field == "API.BaseURL" {
			return true
		}
	}
	return false
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
