// Package config manages the ~/.pinata directory: the credentials file shared
// with earlier versions of the tool and the optional config.yaml settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/GraphPe/pinata-cli/pkg/pinata"
)

// Environment variables consulted by Dir, LoadJWT and ApplyEnv. The ones
// shared with the SDK runtime come from package pinata.
const (
	EnvDir        = "PINATA_CONFIG_DIR"
	EnvLogLevel   = "PINATA_LOG_LEVEL"
	EnvJWT        = pinata.EnvJWT
	EnvAPIURL     = pinata.EnvAPIURL
	EnvUploadURL  = pinata.EnvUploadURL
	EnvGatewayURL = pinata.EnvGatewayURL
	EnvMode       = pinata.EnvMode
	EnvMockSeed   = pinata.EnvMockSeed
)

const (
	credentialsFile = ".credentials"
	settingsFile    = "config.yaml"
	dirName         = ".pinata"
)

// ErrNoCredentials is returned when neither PINATA_JWT nor the credentials
// file provide a JWT.
var ErrNoCredentials = errors.New("config: no credentials found")

// Settings are the user tunable options. Zero values are replaced by
// Defaults when loading.
type Settings struct {
	APIURL     string        `yaml:"api_url,omitempty"`
	UploadURL  string        `yaml:"upload_url,omitempty"`
	GatewayURL string        `yaml:"gateway_url,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	MaxRetries *int          `yaml:"max_retries,omitempty"`
	LogLevel   string        `yaml:"log_level,omitempty"`
	Output     string        `yaml:"output,omitempty"`
	Mode       string        `yaml:"mode,omitempty"`
	MockSeed   string        `yaml:"mock_seed,omitempty"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	retries := 3
	return Settings{
		APIURL:     pinata.DefaultAPIURL,
		UploadURL:  pinata.DefaultUploadURL,
		GatewayURL: pinata.DefaultGatewayURL,
		Timeout:    30 * time.Second,
		MaxRetries: &retries,
		LogLevel:   "warn",
		Output:     "table",
		Mode:       pinata.ModeHTTP,
	}
}

// Dir returns the configuration directory, honouring PINATA_CONFIG_DIR.
func Dir() (string, error) {
	if d := strings.TrimSpace(os.Getenv(EnvDir)); d != "" {
		return d, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: locate home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// EnsureDir creates dir with owner-only permissions. An existing directory
// keeps its mode.
func EnsureDir(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		return fmt.Errorf("config: %s is not a directory", dir)
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("config: stat %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("config: create %s: %w", dir, err)
	}
	return os.Chmod(dir, 0o700)
}

// Load reads config.yaml from dir on top of Defaults. A missing file is not
// an error.
func Load(dir string) (Settings, error) {
	s := Defaults()
	path := filepath.Join(dir, settingsFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("config: read %s: %w", path, err)
	}
	fileSettings, err := Decode(bytes.NewReader(data))
	if err != nil {
		return s, fmt.Errorf("config: %s: %w", path, err)
	}
	s.merge(fileSettings)
	return s, nil
}

// Decode parses a settings document, rejecting unknown keys.
func Decode(r io.Reader) (Settings, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s Settings
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// ReadFile returns only what config.yaml in dir sets, without defaults.
func ReadFile(dir string) (Settings, error) {
	path := filepath.Join(dir, settingsFile)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Settings{}, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	s, err := Decode(f)
	if err != nil {
		return Settings{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return s, nil
}

// Save writes s to config.yaml in dir.
func Save(dir string, s Settings) error {
	if err := s.validate(); err != nil {
		return err
	}
	if err := EnsureDir(dir); err != nil {
		return err
	}
	data, err := yaml.Marshal(&s)
	if err != nil {
		return fmt.Errorf("config: encode settings: %w", err)
	}
	return writeFileAtomic(filepath.Join(dir, settingsFile), data, 0o600)
}

// ApplyEnv overrides s with the PINATA_* environment variables that are set.
func ApplyEnv(s *Settings) {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	override(&s.APIURL, EnvAPIURL)
	override(&s.UploadURL, EnvUploadURL)
	override(&s.GatewayURL, EnvGatewayURL)
	override(&s.Mode, EnvMode)
	override(&s.LogLevel, EnvLogLevel)
	override(&s.MockSeed, EnvMockSeed)
}

// Keys lists the names accepted by Set.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var setters = map[string]func(s *Settings, v string) error{
	"api_url":     func(s *Settings, v string) error { s.APIURL = v; return nil },
	"upload_url":  func(s *Settings, v string) error { s.UploadURL = v; return nil },
	"gateway_url": func(s *Settings, v string) error { s.GatewayURL = v; return nil },
	"log_level":   func(s *Settings, v string) error { s.LogLevel = v; return nil },
	"output":      func(s *Settings, v string) error { s.Output = v; return nil },
	"mode":        func(s *Settings, v string) error { s.Mode = v; return nil },
	"mock_seed":   func(s *Settings, v string) error { s.MockSeed = v; return nil },
	"timeout": func(s *Settings, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: timeout: %w", err)
		}
		s.Timeout = d
		return nil
	},
	"max_retries": func(s *Settings, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: max_retries: %w", err)
		}
		s.MaxRetries = &n
		return nil
	},
}

// Set assigns value to the named key.
func (s *Settings) Set(key, value string) error {
	set, ok := setters[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return fmt.Errorf("config: unknown key %q (known: %s)", key, strings.Join(Keys(), ", "))
	}
	next := *s
	if err := set(&next, strings.TrimSpace(value)); err != nil {
		return err
	}
	if err := next.validate(); err != nil {
		return err
	}
	*s = next
	return nil
}

// Retries returns MaxRetries, or -1 when unset.
func (s Settings) Retries() int {
	if s.MaxRetries == nil {
		return -1
	}
	return *s.MaxRetries
}

func (s *Settings) merge(o Settings) {
	mergeString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	mergeString(&s.APIURL, o.APIURL)
	mergeString(&s.UploadURL, o.UploadURL)
	mergeString(&s.GatewayURL, o.GatewayURL)
	mergeString(&s.LogLevel, o.LogLevel)
	mergeString(&s.Output, o.Output)
	mergeString(&s.Mode, o.Mode)
	mergeString(&s.MockSeed, o.MockSeed)
	if o.Timeout != 0 {
		s.Timeout = o.Timeout
	}
	if o.MaxRetries != nil {
		n := *o.MaxRetries
		s.MaxRetries = &n
	}
}

func (s Settings) validate() error {
	if s.Timeout < 0 {
		return fmt.Errorf("config: timeout must not be negative")
	}
	if s.MaxRetries != nil && *s.MaxRetries < 0 {
		return fmt.Errorf("config: max_retries must not be negative")
	}
	switch strings.ToLower(s.Output) {
	case "", "table", "json":
	default:
		return fmt.Errorf("config: output must be table or json, got %q", s.Output)
	}
	switch strings.ToLower(s.Mode) {
	case "", "http", "mock", "auto":
	default:
		return fmt.Errorf("config: mode must be http, mock or auto, got %q", s.Mode)
	}
	switch strings.ToLower(s.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", s.LogLevel)
	}
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("config: create temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("config: chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("config: close %s: %w", path, err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("config: replace %s: %w", path, err)
	}
	return nil
}
