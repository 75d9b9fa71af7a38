// Package cli implements the pinata command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GraphPe/pinata-cli/internal/config"
	"github.com/GraphPe/pinata-cli/internal/logging"
	"github.com/GraphPe/pinata-cli/internal/output"
	"github.com/GraphPe/pinata-cli/pkg/pinata"
)

// BuildInfo is stamped into the binary at link time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// App holds the process streams and the state resolved for one invocation.
type App struct {
	In    io.Reader
	Out   io.Writer
	Err   io.Writer
	Build BuildInfo
	// ReadSecret reads a line without echo. Nil reads from the terminal
	// when In is one, otherwise a plain line from In.
	ReadSecret func(prompt string) (string, error)

	flags    globalFlags
	dir      string
	settings config.Settings
	logger   *zap.Logger
	printer  *output.Printer
	clients  *pinata.Clients
}

type globalFlags struct {
	output    string
	logLevel  string
	noColor   bool
	timeout   time.Duration
	mode      string
	configDir string
}

// NewApp returns an App bound to the process streams.
func NewApp(build BuildInfo) *App {
	return &App{In: os.Stdin, Out: os.Stdout, Err: os.Stderr, Build: build}
}

// Run executes args and returns the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	root := a.newRootCommand()
	root.SetArgs(translateLegacyArgs(args))
	root.SetIn(a.In)
	root.SetOut(a.Out)
	root.SetErr(a.Err)

	err := root.ExecuteContext(ctx)
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if err == nil {
		return 0
	}
	msg := err.Error()
	if errors.Is(err, config.ErrNoCredentials) {
		msg += " (run `pinata setup` first)"
	}
	fmt.Fprintf(a.Err, "Error: %s\n", msg)
	return 1
}

func (a *App) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "pinata",
		Short: "Command line client for Pinata Cloud",
		Long: `Upload, list, inspect, update and delete files stored on Pinata Cloud.

Examples:
  pinata setup                      Save your Pinata JWT
  pinata upload photo.jpg           Upload a file
  pinata list --limit 20            List recent files
  pinata get <file-id>              Show file metadata
  pinata download <cid> -o out.bin  Fetch content through the gateway`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.prepare,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.output, "output", "", "output format: table or json")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.BoolVar(&a.flags.noColor, "no-color", false, "disable colored output")
	pf.DurationVar(&a.flags.timeout, "timeout", 0, "per-request timeout (e.g. 45s)")
	pf.StringVar(&a.flags.mode, "mode", "", "runtime mode: http, mock or auto")
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default ~/.pinata)")

	root.AddCommand(
		a.newSetupCommand(),
		a.newAuthCommand(),
		a.newUploadCommand(),
		a.newListCommand(),
		a.newGetCommand(),
		a.newUpdateCommand(),
		a.newDeleteCommand(),
		a.newDownloadCommand(),
		a.newUsageCommand(),
		a.newGroupsCommand(),
		a.newConfigCommand(),
		a.newVersionCommand(),
	)
	return root
}

// prepare resolves settings with the precedence flags > environment >
// config file > defaults, then builds the logger and printer.
func (a *App) prepare(cmd *cobra.Command, _ []string) error {
	dir := strings.TrimSpace(a.flags.configDir)
	if dir == "" {
		var err error
		if dir, err = config.Dir(); err != nil {
			return err
		}
	}
	a.dir = dir

	s, err := config.Load(dir)
	if err != nil {
		return err
	}
	config.ApplyEnv(&s)
	flags := cmd.Flags()
	if flags.Changed("output") {
		s.Output = a.flags.output
	}
	if flags.Changed("log-level") {
		s.LogLevel = a.flags.logLevel
	}
	if flags.Changed("timeout") {
		s.Timeout = a.flags.timeout
	}
	if flags.Changed("mode") {
		s.Mode = a.flags.mode
	}
	a.settings = s

	format, err := output.ParseFormat(s.Output)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{Level: s.LogLevel, Output: a.Err, NoColor: a.flags.noColor})
	if err != nil {
		return err
	}
	a.logger = logger
	a.printer = output.New(a.Out, format, !a.flags.noColor && logging.IsTerminal(a.Out))

	logger.Debug("settings resolved",
		zap.String("command", cmd.CommandPath()),
		zap.String("config_dir", dir),
		zap.String("mode", s.Mode),
		zap.String("api_url", s.APIURL),
		zap.String("upload_url", s.UploadURL),
		zap.String("gateway_url", s.GatewayURL),
		zap.Duration("timeout", s.Timeout),
	)
	return nil
}

// pinataClients builds the API clients on first use so that commands which
// never talk to Pinata work without credentials.
func (a *App) pinataClients() (*pinata.Clients, error) {
	if a.clients != nil {
		return a.clients, nil
	}
	jwt, err := config.LoadJWT(a.dir)
	if err != nil && !errors.Is(err, config.ErrNoCredentials) {
		return nil, err
	}
	mode := strings.ToLower(strings.TrimSpace(a.settings.Mode))
	if jwt == "" && (mode == "" || mode == pinata.ModeHTTP) {
		return nil, config.ErrNoCredentials
	}
	clients, err := pinata.New(pinata.Config{
		Mode:       mode,
		JWT:        jwt,
		APIURL:     a.settings.APIURL,
		UploadURL:  a.settings.UploadURL,
		GatewayURL: a.settings.GatewayURL,
		Timeout:    a.settings.Timeout,
		MaxRetries: a.settings.Retries(),
		UserAgent:  "pinata-cli/" + a.version(),
		Logger:     a.logger,
		SeedPath:   a.settings.MockSeed,
	})
	if err != nil {
		return nil, err
	}
	a.logger.Debug("clients ready", zap.String("mode", clients.Mode))
	a.clients = clients
	return clients, nil
}

func (a *App) version() string {
	if a.Build.Version == "" {
		return "dev"
	}
	return a.Build.Version
}

var legacyFlags = map[string]string{
	"-s": "setup", "--setup": "setup",
	"-a": "auth", "--authtest": "auth",
	"-u": "upload", "--uploadfile": "upload",
	"-l": "list", "--listfiles": "list",
	"-f": "get", "--getfile": "get",
	"-p": "update", "--updatefile": "update",
	"-d": "delete", "--deletefile": "delete",
}

// globalValueFlags are the persistent flags that consume the next argument.
var globalValueFlags = map[string]bool{
	"--output": true, "--log-level": true, "--timeout": true, "--mode": true, "--config-dir": true,
}

// translateLegacyArgs maps the single-flag invocations of the first pinata
// CLI (pinata -u file.txt) onto subcommands. Global flags may precede the
// legacy flag.
func translateLegacyArgs(args []string) []string {
	i := skipGlobalFlags(args)
	if i >= len(args) {
		return args
	}
	head := args[i]
	value := ""
	if j := strings.Index(head, "="); j > 0 && strings.HasPrefix(head, "--") {
		head, value = head[:j], head[j+1:]
	}
	sub, ok := legacyFlags[head]
	if !ok {
		return args
	}
	out := append([]string{}, args[:i]...)
	out = append(out, sub)
	if value != "" {
		out = append(out, value)
	}
	return append(out, args[i+1:]...)
}

// skipGlobalFlags returns the index of the first argument that is not a
// global flag or its value.
func skipGlobalFlags(args []string) int {
	i := 0
	for i < len(args) {
		arg := args[i]
		name, _, hasValue := strings.Cut(arg, "=")
		switch {
		case arg == "--no-color", globalValueFlags[name] && hasValue:
			i++
		case globalValueFlags[arg]:
			i += 2
		default:
			return i
		}
	}
	return i
}
