package pinata

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"github.com/GraphPe/pinata-cli/internal/devseed"
	"github.com/GraphPe/pinata-cli/internal/httpx"
	"github.com/GraphPe/pinata-cli/pkg/account"
	"github.com/GraphPe/pinata-cli/pkg/files"
	"github.com/GraphPe/pinata-cli/pkg/files/mock"
	"github.com/GraphPe/pinata-cli/pkg/gateway"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvMode       = "PINATA_RUNTIME_MODE"
	EnvJWT        = "PINATA_JWT"
	EnvAPIURL     = "PINATA_API_URL"
	EnvUploadURL  = "PINATA_UPLOAD_URL"
	EnvGatewayURL = "PINATA_GATEWAY_URL"
	EnvMockSeed   = "PINATA_MOCK_SEED"
)

// Runtime modes accepted in Config.Mode. ModeAuto picks ModeHTTP when a JWT
// is configured and ModeMock otherwise.
const (
	ModeAuto = "auto"
	ModeHTTP = "http"
	ModeMock = "mock"
)

// Public Pinata hosts used when Config leaves a URL empty.
const (
	DefaultAPIURL     = "https://api.pinata.cloud"
	DefaultUploadURL  = "https://uploads.pinata.cloud"
	DefaultGatewayURL = "https://gateway.pinata.cloud"
)

// Config selects the runtime mode and configures the HTTP clients. Empty
// URLs fall back to the public Pinata hosts.
type Config struct {
	Mode       string
	JWT        string
	APIURL     string
	UploadURL  string
	GatewayURL string
	// Timeout bounds each API attempt. Gateway downloads are not bounded.
	Timeout time.Duration
	// MaxRetries < 0 keeps the default retry policy.
	MaxRetries int
	UserAgent  string
	Logger     *zap.Logger
	// SeedPath pre-populates the in-memory store in mock mode.
	SeedPath string
}

// Clients groups the clients for one runtime mode.
type Clients struct {
	Files   *files.Client
	Account *account.Client
	Gateway *gateway.Client
	// Mode is the resolved mode, "http" or "mock".
	Mode string
	// Store is the in-memory backend in mock mode and nil otherwise.
	Store *mock.Mock
}

// New resolves cfg.Mode and builds the matching clients.
func New(cfg Config) (*Clients, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	switch mode {
	case "", ModeAuto:
		if strings.TrimSpace(cfg.JWT) != "" {
			return newHTTPClients(cfg)
		}
		return newMockClients(cfg)
	case ModeHTTP:
		if strings.TrimSpace(cfg.JWT) == "" {
			return nil, fmt.Errorf("pinata: http mode requires a JWT (%s or pinata setup)", EnvJWT)
		}
		return newHTTPClients(cfg)
	case ModeMock:
		return newMockClients(cfg)
	default:
		return nil, fmt.Errorf("pinata: unsupported mode %q", cfg.Mode)
	}
}

// NewFromEnv builds clients from environment variables.
func NewFromEnv() (*Clients, error) {
	return New(ConfigFromEnv())
}

// ConfigFromEnv returns a Config populated from environment variables.
func ConfigFromEnv() Config {
	return Config{
		Mode:       os.Getenv(EnvMode),
		JWT:        strings.TrimSpace(os.Getenv(EnvJWT)),
		APIURL:     strings.TrimSpace(os.Getenv(EnvAPIURL)),
		UploadURL:  strings.TrimSpace(os.Getenv(EnvUploadURL)),
		GatewayURL: strings.TrimSpace(os.Getenv(EnvGatewayURL)),
		MaxRetries: -1,
		SeedPath:   strings.TrimSpace(os.Getenv(EnvMockSeed)),
	}
}

func newHTTPClients(cfg Config) (*Clients, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	// Gateway hosts may be third parties and never see the JWT.
	gatewayOpts := []httpx.Option{
		httpx.WithUserAgent(cfg.UserAgent),
		httpx.WithRequestID(uuid.NewString()),
		httpx.WithLogger(logger),
	}
	if cfg.MaxRetries >= 0 {
		policy := httpx.DefaultRetryPolicy
		policy.MaxRetries = cfg.MaxRetries
		gatewayOpts = append(gatewayOpts, httpx.WithRetryPolicy(policy))
	}
	apiOpts := append([]httpx.Option{httpx.WithBearerToken(cfg.JWT)}, gatewayOpts...)
	if cfg.Timeout > 0 {
		apiOpts = append(apiOpts, httpx.WithTimeout(cfg.Timeout))
	}

	fs, err := files.New(orDefault(cfg.APIURL, DefaultAPIURL), orDefault(cfg.UploadURL, DefaultUploadURL), apiOpts...)
	if err != nil {
		return nil, fmt.Errorf("pinata: init files client: %w", err)
	}
	acct, err := account.New(orDefault(cfg.APIURL, DefaultAPIURL), apiOpts...)
	if err != nil {
		return nil, fmt.Errorf("pinata: init account client: %w", err)
	}
	gw, err := gateway.New(orDefault(cfg.GatewayURL, DefaultGatewayURL), gatewayOpts...)
	if err != nil {
		return nil, fmt.Errorf("pinata: init gateway client: %w", err)
	}
	return &Clients{Files: fs, Account: acct, Gateway: gw, Mode: ModeHTTP}, nil
}

func newMockClients(cfg Config) (*Clients, error) {
	store := mock.New()
	if path := strings.TrimSpace(cfg.SeedPath); path != "" {
		seed, err := devseed.Load(path)
		if err != nil {
			return nil, fmt.Errorf("pinata: load mock seed: %w", err)
		}
		if err := store.Seed(seed); err != nil {
			return nil, fmt.Errorf("pinata: apply mock seed: %w", err)
		}
	}
	return NewMockClients(store), nil
}

// NewMockClients wraps an existing in-memory store.
func NewMockClients(store *mock.Mock) *Clients {
	return &Clients{
		Files:   files.NewWithBackend(store),
		Account: account.NewWithBackend(&accountMockBackend{store: store}),
		Gateway: gateway.NewWithBackend(&gatewayMockBackend{store: store}),
		Mode:    ModeMock,
		Store:   store,
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

type accountMockBackend struct {
	store *mock.Mock
}

func (b *accountMockBackend) TestAuthentication(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "Congratulations! You are communicating with the Pinata API (mock mode).", nil
}

func (b *accountMockBackend) Usage(ctx context.Context) (*account.Usage, error) {
	u, err := b.store.Usage(ctx)
	if err != nil {
		return nil, err
	}
	// The store keeps a single replica.
	return &account.Usage{
		PinCount:                     u.PinCount,
		PinSizeTotal:                 u.PinSizeTotal,
		PinSizeWithReplicationsTotal: u.PinSizeTotal,
	}, nil
}

type gatewayMockBackend struct {
	store *mock.Mock
}

func (b *gatewayMockBackend) Open(ctx context.Context, c cid.Cid) (io.ReadCloser, error) {
	data, err := b.store.Content(ctx, c.String())
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
