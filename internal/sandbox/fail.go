package sandbox

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// FailConfig injects errors into a share of the requests.
type FailConfig struct {
	Rate float64
	Code int
}

// ParseFailConfig parses "rate=<float>,code=<httpStatus>". An empty string
// disables failure injection.
func ParseFailConfig(raw string) (FailConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return FailConfig{}, nil
	}
	cfg := FailConfig{Code: http.StatusInternalServerError}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		keyVal := strings.SplitN(part, "=", 2)
		if len(keyVal) != 2 {
			return FailConfig{}, fmt.Errorf("sandbox: invalid fail segment %q", part)
		}
		value := strings.TrimSpace(keyVal[1])
		switch strings.TrimSpace(keyVal[0]) {
		case "rate":
			val, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return FailConfig{}, fmt.Errorf("sandbox: fail rate: %w", err)
			}
			if val < 0 || val > 1 {
				return FailConfig{}, fmt.Errorf("sandbox: fail rate must be within [0,1], got %v", val)
			}
			cfg.Rate = val
		case "code":
			val, err := strconv.Atoi(value)
			if err != nil {
				return FailConfig{}, fmt.Errorf("sandbox: fail code: %w", err)
			}
			if val < 400 || val > 599 {
				return FailConfig{}, fmt.Errorf("sandbox: fail code must be an HTTP error status, got %d", val)
			}
			cfg.Code = val
		default:
			return FailConfig{}, fmt.Errorf("sandbox: unknown fail key %q", keyVal[0])
		}
	}
	return cfg, nil
}
