package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/GraphPe/pinata-cli/internal/config"
	"github.com/GraphPe/pinata-cli/internal/output"
)

func (a *App) newSetupCommand() *cobra.Command {
	var (
		jwt    string
		verify bool
	)
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Save your Pinata JWT",
		Long: `Save the Pinata JWT used to authenticate API requests.

The token is stored in <config-dir>/.credentials with owner-only
permissions. Without --jwt it is read from a hidden prompt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(jwt) == "" {
				var err error
				jwt, err = a.readSecret("Enter your Pinata JWT: ")
				if err != nil {
					return err
				}
			}
			if err := config.SaveJWT(a.dir, jwt); err != nil {
				return err
			}
			a.logger.Info("credentials saved", zap.String("path", config.CredentialsPath(a.dir)))
			if err := a.printer.Success("Token saved to %s", config.CredentialsPath(a.dir)); err != nil {
				return err
			}
			if !verify {
				return nil
			}
			return a.runAuth(cmd)
		},
	}
	cmd.Flags().StringVar(&jwt, "jwt", "", "JWT to save instead of prompting")
	cmd.Flags().BoolVar(&verify, "verify", false, "test the token against the API after saving")
	return cmd
}

func (a *App) readSecret(prompt string) (string, error) {
	if a.ReadSecret != nil {
		return a.ReadSecret(prompt)
	}
	fmt.Fprint(a.Err, prompt)
	if f, ok := a.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.Err)
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := readLine(a.In)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return line, nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *App) newAuthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Test authentication with the Pinata API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runAuth(cmd)
		},
	}
}

func (a *App) runAuth(cmd *cobra.Command) error {
	clients, err := a.pinataClients()
	if err != nil {
		return err
	}
	msg, err := clients.Account.TestAuthentication(cmd.Context())
	if err != nil {
		return err
	}
	if a.printer.Format() == output.FormatJSON {
		return a.printer.JSON(map[string]string{"message": msg})
	}
	_, err = fmt.Fprintln(a.Out, msg)
	return err
}

func (a *App) newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.showConfig()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a setting to config.yaml",
		Long:  "Write a setting to config.yaml. Keys: " + strings.Join(config.Keys(), ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.ReadFile(a.dir)
			if err != nil {
				return err
			}
			if err := s.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := config.Save(a.dir, s); err != nil {
				return err
			}
			return a.printer.Success("Set %s = %s", strings.ToLower(args[0]), args[1])
		},
	})
	return cmd
}

func (a *App) showConfig() error {
	s := a.settings
	jwt, err := config.LoadJWT(a.dir)
	if err != nil && !errors.Is(err, config.ErrNoCredentials) {
		return err
	}
	masked := config.MaskJWT(jwt)
	source := "not set"
	switch {
	case strings.TrimSpace(os.Getenv(config.EnvJWT)) != "":
		source = config.EnvJWT
	case jwt != "":
		source = config.CredentialsPath(a.dir)
	}

	values := map[string]string{
		"config_dir":  a.dir,
		"api_url":     s.APIURL,
		"upload_url":  s.UploadURL,
		"gateway_url": s.GatewayURL,
		"timeout":     s.Timeout.String(),
		"max_retries": strconv.Itoa(s.Retries()),
		"log_level":   s.LogLevel,
		"output":      s.Output,
		"mode":        s.Mode,
		"mock_seed":   s.MockSeed,
		"jwt":         masked,
		"jwt_source":  source,
	}
	if a.printer.Format() == output.FormatJSON {
		return a.printer.JSON(values)
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([][2]string, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, [2]string{k, values[k]})
	}
	return a.printer.Fields(fields)
}
