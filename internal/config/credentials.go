package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CredentialsPath returns the location of the JWT file inside dir.
func CredentialsPath(dir string) string {
	return filepath.Join(dir, credentialsFile)
}

// SaveJWT stores jwt in dir/.credentials, readable by the owner only.
func SaveJWT(dir, jwt string) error {
	jwt = strings.TrimSpace(jwt)
	if jwt == "" {
		return fmt.Errorf("config: JWT must not be empty")
	}
	if err := EnsureDir(dir); err != nil {
		return err
	}
	return writeFileAtomic(CredentialsPath(dir), []byte(jwt), 0o600)
}

// LoadJWT returns PINATA_JWT when set, otherwise the stored JWT.
func LoadJWT(dir string) (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvJWT)); v != "" {
		return v, nil
	}
	data, err := os.ReadFile(CredentialsPath(dir))
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoCredentials
	}
	if err != nil {
		return "", fmt.Errorf("config: read credentials: %w", err)
	}
	jwt := strings.TrimSpace(string(data))
	if jwt == "" {
		return "", ErrNoCredentials
	}
	return jwt, nil
}

// MaskJWT keeps the first and last few characters of a token.
func MaskJWT(jwt string) string {
	jwt = strings.TrimSpace(jwt)
	switch {
	case jwt == "":
		return ""
	case len(jwt) <= 12:
		return strings.Repeat("*", len(jwt))
	default:
		return jwt[:6] + "..." + jwt[len(jwt)-4:]
	}
}
