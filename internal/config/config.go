package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL      = "http://127.0.0.1:7333"
	DefaultDBFileName  = ".statsvault.db"
	DefaultLogLevel    = "debug"
	ConfigFileName     = ".statsvault.toml"
	DefaultBlobBackend = "sqlite"

	DefaultMaxPayloadBytes int64 = 16 * 1024
	DefaultBudget          int64 = 10
	DefaultPushPolicy            = "unmetered"

	configDirEnvKey          = "STATSVAULT_CONFIG_DIR"
	trustProjectConfigEnvKey = "STATSVAULT_TRUST_PROJECT_CONFIG"
	apiURLEnvKey             = "STATSVAULT_API_URL"
	dbPathEnvKey             = "STATSVAULT_DB"
	adminTokenHashEnvKey     = "STATSVAULT_ADMIN_TOKEN_HASH"
)

// VaultConfig controls coordinator policy.
type VaultConfig struct {
	MaxPayloadBytes int64  `toml:"max_payload_bytes"`
	DefaultBudget   int64  `toml:"default_budget"`
	PushPolicy      string `toml:"push_policy"`
	PurgeOnExhaust  bool   `toml:"purge_on_exhaust"`
}

// BlobsConfig selects where payloads are stored.
type BlobsConfig struct {
	Backend string `toml:"backend"`
	Root    string `toml:"root"`
}

// ServerConfig holds listener and admin settings.
type ServerConfig struct {
	TLSCertFile    string `toml:"tls_cert_file"`
	TLSKeyFile     string `toml:"tls_key_file"`
	AdminTokenHash string `toml:"admin_token_hash"`
}

// Config defines runtime configuration for statsvault.
type Config struct {
	APIURL                   string       `toml:"api_url"`
	DBPath                   string       `toml:"db_path"`
	LogLevel                 string       `toml:"log_level"`
	Vault                    VaultConfig  `toml:"vault"`
	Blobs                    BlobsConfig  `toml:"blobs"`
	Server                   ServerConfig `toml:"server"`
	TrustedProjectConfigPath string       `toml:"-"`

	fileKeys map[string]struct{}
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		LogLevel: DefaultLogLevel,
		Vault: VaultConfig{
			MaxPayloadBytes: DefaultMaxPayloadBytes,
			DefaultBudget:   DefaultBudget,
			PushPolicy:      DefaultPushPolicy,
		},
		Blobs: BlobsConfig{
			Backend: DefaultBlobBackend,
		},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if cfg.fileKeys == nil {
		cfg.fileKeys = make(map[string]struct{})
	}
	for _, key := range md.Keys() {
		cfg.fileKeys[key.String()] = struct{}{}
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, ConfigFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"log_level",
	"vault.max_payload_bytes",
	"vault.default_budget",
	"vault.push_policy",
	"vault.purge_on_exhaust",
	"blobs.backend",
	"blobs.root",
	"server.tls_cert_file",
	"server.tls_key_file",
	"server.admin_token_hash",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "log_level":
		return c.LogLevel, nil
	case "vault.max_payload_bytes":
		return strconv.FormatInt(c.Vault.MaxPayloadBytes, 10), nil
	case "vault.default_budget":
		return strconv.FormatInt(c.Vault.DefaultBudget, 10), nil
	case "vault.push_policy":
		return c.Vault.PushPolicy, nil
	case "vault.purge_on_exhaust":
		return strconv.FormatBool(c.Vault.PurgeOnExhaust), nil
	case "blobs.backend":
		return c.Blobs.Backend, nil
	case "blobs.root":
		return c.Blobs.Root, nil
	case "server.tls_cert_file":
		return c.Server.TLSCertFile, nil
	case "server.tls_key_file":
		return c.Server.TLSKeyFile, nil
	case "server.admin_token_hash":
		return c.Server.AdminTokenHash, nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// IsSetInFile reports whether key was present in a loaded config file.
func (c *Config) IsSetInFile(key string) bool {
	_, ok := c.fileKeys[key]
	return ok
}

// BlobRoot returns the directory used by the fs blob backend.
func (c *Config) BlobRoot() string {
	if root := strings.TrimSpace(c.Blobs.Root); root != "" {
		return root
	}
	return c.DBPath + ".blobs"
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, ConfigFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	// The file may hold the admin token hash.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, ConfigFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, ConfigFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}

	if apiURL := os.Getenv(apiURLEnvKey); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if dbPath := os.Getenv(dbPathEnvKey); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if hash := strings.TrimSpace(os.Getenv(adminTokenHashEnvKey)); hash != "" {
		cfg.Server.AdminTokenHash = hash
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) normalize() error {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Vault.MaxPayloadBytes <= 0 {
		c.Vault.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if c.Vault.DefaultBudget <= 0 {
		c.Vault.DefaultBudget = DefaultBudget
	}
	c.Vault.PushPolicy = strings.ToLower(strings.TrimSpace(c.Vault.PushPolicy))
	if c.Vault.PushPolicy == "" {
		c.Vault.PushPolicy = DefaultPushPolicy
	}
	if _, err := parseSetValue("vault.push_policy", c.Vault.PushPolicy); err != nil {
		return err
	}
	c.Blobs.Backend = strings.ToLower(strings.TrimSpace(c.Blobs.Backend))
	if c.Blobs.Backend == "" {
		c.Blobs.Backend = DefaultBlobBackend
	}
	if _, err := parseSetValue("blobs.backend", c.Blobs.Backend); err != nil {
		return err
	}
	return nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "vault.max_payload_bytes", "vault.default_budget":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "vault.purge_on_exhaust":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "vault.push_policy":
		switch strings.ToLower(value) {
		case "unmetered", "metered":
			return strings.ToLower(value), nil
		}
		return nil, fmt.Errorf("%s must be unmetered or metered", key)
	case "blobs.backend":
		switch strings.ToLower(value) {
		case "sqlite", "fs":
			return strings.ToLower(value), nil
		}
		return nil, fmt.Errorf("%s must be sqlite or fs", key)
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}
