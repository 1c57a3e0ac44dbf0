package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is read from a YAML file under the user's home directory.
// All fields are optional; defaults are applied by the accessors.
//
// Example (~/.choraleia-explorer/config.yaml):
//
// server:
//   host: 127.0.0.1
//   port: 8089
// storage:
//   backend: sftp
//   root: /srv/media
//   sftp:
//     host: files.internal
//     username: media
//     private_key_path: ~/.ssh/id_ed25519
// uploads:
//   grace_period_ms: 250
// permissions:
//   read_only: [archive]
//
// Notes:
// - If the config file does not exist, Load returns defaults without error.
// - If the config file exists but cannot be parsed, Load returns an error.
// - Port must be between 1 and 65535.

type AppConfig struct {
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Uploads     UploadsConfig     `yaml:"uploads"`
	Permissions PermissionsConfig `yaml:"permissions"`
	Database    DatabaseConfig    `yaml:"database"`
	Log         LogConfig         `yaml:"log"`
}

type ServerConfig struct {
	Host *string `yaml:"host"`
	Port *int    `yaml:"port"`
}

type StorageConfig struct {
	// Backend is "local", "sftp" or "s3".
	Backend *string    `yaml:"backend"`
	Root    *string    `yaml:"root"`
	SFTP    SFTPConfig `yaml:"sftp"`
	S3      S3Config   `yaml:"s3"`
}

type SFTPConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password,omitempty"`
	PrivateKeyPath string `yaml:"private_key_path,omitempty"`
	Passphrase     string `yaml:"passphrase,omitempty"`
}

// S3Config points at an S3 compatible bucket. Empty credentials fall back
// to the default AWS credential chain.
type S3Config struct {
	Endpoint  string `yaml:"endpoint,omitempty"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
}

type UploadsConfig struct {
	GracePeriodMs *int  `yaml:"grace_period_ms"`
	Overwrite     *bool `yaml:"overwrite"`
}

type PermissionsConfig struct {
	// ReadOnly lists directory IDs whose subtree cannot be edited.
	ReadOnly []string `yaml:"read_only"`
}

type DatabaseConfig struct {
	Path *string `yaml:"path"`
}

type LogConfig struct {
	Level *string `yaml:"level"`
}

const (
	DefaultHost          = "127.0.0.1"
	DefaultPort          = 8089
	DefaultBackend       = "local"
	DefaultGracePeriodMs = 250
	DefaultLogLevel      = "info"
	DefaultSFTPPort      = 22
	DefaultS3Region      = "us-east-1"

	BackendLocal = "local"
	BackendSFTP  = "sftp"
	BackendS3    = "s3"

	// PortEnv overrides server.port when set to a valid port.
	PortEnv = "EXPLORER_PORT"
)

// DefaultPaths returns the config dir and config file path.
func DefaultPaths() (configDir string, configFile string, err error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("get user home dir: %w", err)
	}
	configDir = filepath.Join(home, ".choraleia-explorer")
	configFile = filepath.Join(configDir, "config.yaml")
	return configDir, configFile, nil
}

// Load reads ~/.choraleia-explorer/config.yaml.
// If the file doesn't exist, it returns a default config and nil error.
func Load() (*AppConfig, string, error) {
	_, configFile, err := DefaultPaths()
	if err != nil {
		return nil, "", err
	}

	cfg := &AppConfig{}

	b, err := os.ReadFile(configFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, configFile, nil
		}
		return nil, "", fmt.Errorf("read config file %s: %w", configFile, err)
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, "", fmt.Errorf("parse yaml config %s: %w", configFile, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("%w in %s", err, configFile)
	}

	return cfg, configFile, nil
}

// Validate checks the values that have no safe fallback.
func (c *AppConfig) Validate() error {
	if c.Server.Host != nil && strings.TrimSpace(*c.Server.Host) == "" {
		return errors.New("invalid server.host (empty)")
	}

	if port := c.Port(); port < 1 || port > 65535 {
		return fmt.Errorf("invalid server.port %d", port)
	}

	switch c.Backend() {
	case BackendLocal:
	case BackendSFTP:
		if strings.TrimSpace(c.Storage.SFTP.Host) == "" {
			return errors.New("storage.sftp.host is required for the sftp backend")
		}
		if strings.TrimSpace(c.Storage.SFTP.Username) == "" {
			return errors.New("storage.sftp.username is required for the sftp backend")
		}
	case BackendS3:
		if strings.TrimSpace(c.Storage.S3.Bucket) == "" {
			return errors.New("storage.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Backend())
	}

	if c.Uploads.GracePeriodMs != nil && *c.Uploads.GracePeriodMs < 0 {
		return fmt.Errorf("invalid uploads.grace_period_ms %d", *c.Uploads.GracePeriodMs)
	}
	return nil
}

// EnsureDefaultConfig writes a default config file if it doesn't already exist.
// It is safe to call on startup.
func EnsureDefaultConfig() (string, error) {
	configDir, configFile, err := DefaultPaths()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configFile); err == nil {
		return configFile, nil
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("create config dir %s: %w", configDir, err)
	}

	defaultCfg := AppConfig{
		Server:  ServerConfig{Host: ptr(DefaultHost), Port: ptr(DefaultPort)},
		Storage: StorageConfig{Backend: ptr(DefaultBackend)},
		Uploads: UploadsConfig{GracePeriodMs: ptr(DefaultGracePeriodMs), Overwrite: ptr(false)},
		Log:     LogConfig{Level: ptr(DefaultLogLevel)},
	}
	b, err := yaml.Marshal(&defaultCfg)
	if err != nil {
		return "", fmt.Errorf("marshal default config: %w", err)
	}

	// Write with restrictive permissions.
	if err := os.WriteFile(configFile, b, 0o600); err != nil {
		return "", fmt.Errorf("write default config file %s: %w", configFile, err)
	}

	return configFile, nil
}

func (c *AppConfig) Host() string {
	if c == nil {
		return DefaultHost
	}
	if c.Server.Host == nil {
		return DefaultHost
	}
	v := strings.TrimSpace(*c.Server.Host)
	if v == "" {
		return DefaultHost
	}
	return v
}

func (c *AppConfig) Port() int {
	if c == nil {
		return DefaultPort
	}
	if c.Server.Port == nil {
		return DefaultPort
	}
	return *c.Server.Port
}

func (c *AppConfig) Backend() string {
	if c == nil || c.Storage.Backend == nil {
		return DefaultBackend
	}
	v := strings.ToLower(strings.TrimSpace(*c.Storage.Backend))
	if v == "" {
		return DefaultBackend
	}
	return v
}

// StorageRoot is the directory the explorer root maps to. Local storage
// defaults to the user's home directory, SFTP to the login directory and S3
// to the bucket root.
func (c *AppConfig) StorageRoot() string {
	if c != nil && c.Storage.Root != nil {
		if v := strings.TrimSpace(*c.Storage.Root); v != "" {
			return expandHome(v)
		}
	}
	switch c.Backend() {
	case BackendSFTP:
		return ""
	case BackendS3:
		return "/"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func (c *AppConfig) SFTP() SFTPConfig {
	if c == nil {
		return SFTPConfig{Port: DefaultSFTPPort}
	}
	out := c.Storage.SFTP
	if out.Port == 0 {
		out.Port = DefaultSFTPPort
	}
	out.PrivateKeyPath = expandHome(out.PrivateKeyPath)
	return out
}

func (c *AppConfig) S3() S3Config {
	if c == nil {
		return S3Config{Region: DefaultS3Region}
	}
	out := c.Storage.S3
	if strings.TrimSpace(out.Region) == "" {
		out.Region = DefaultS3Region
	}
	return out
}

func (c *AppConfig) GracePeriod() time.Duration {
	if c == nil || c.Uploads.GracePeriodMs == nil {
		return DefaultGracePeriodMs * time.Millisecond
	}
	return time.Duration(*c.Uploads.GracePeriodMs) * time.Millisecond
}

func (c *AppConfig) OverwriteUploads() bool {
	if c == nil || c.Uploads.Overwrite == nil {
		return false
	}
	return *c.Uploads.Overwrite
}

func (c *AppConfig) ReadOnly() []string {
	if c == nil {
		return nil
	}
	return c.Permissions.ReadOnly
}

// DatabasePath defaults to explorer.db next to the config file.
func (c *AppConfig) DatabasePath() string {
	if c != nil && c.Database.Path != nil {
		if v := strings.TrimSpace(*c.Database.Path); v != "" {
			return expandHome(v)
		}
	}
	configDir, _, err := DefaultPaths()
	if err != nil {
		return "explorer.db"
	}
	return filepath.Join(configDir, "explorer.db")
}

func (c *AppConfig) LogLevel() string {
	if c == nil || c.Log.Level == nil || strings.TrimSpace(*c.Log.Level) == "" {
		return DefaultLogLevel
	}
	return strings.TrimSpace(*c.Log.Level)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

func ptr[T any](v T) *T { return &v }
