package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	authbridge "github.com/opengovern/authbridge"
	"github.com/opengovern/authbridge/adapters"
	"github.com/opengovern/authbridge/api"
	"github.com/opengovern/authbridge/internal/logging"
	"github.com/opengovern/authbridge/notify"
	"github.com/opengovern/authbridge/session"
)

type app struct {
	configPath string
	logLevel   string
	logJSON    bool

	logger *slog.Logger
	bridge *authbridge.AuthBridge
	api    *api.Client
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "authbridge",
		Short: "Authenticated client for the social backend",
		Long: `authbridge sends requests to the social backend through the shared
authenticated pipeline: bearer tokens are attached from the configured
session, and a rejected token is renewed once and the request replayed.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file (yaml, toml or json)")
	flags.StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.BoolVar(&a.logJSON, "log-json", false, "Emit JSON logs")

	root.AddCommand(
		a.requestCmd(),
		a.whoamiCmd(),
		a.feedCmd(),
		a.discoverCmd(),
		a.connectionsCmd(),
		a.userActionCmd("follow", "Follow a user", (*api.Client).Follow),
		a.userActionCmd("unfollow", "Unfollow a user", (*api.Client).Unfollow),
		a.userActionCmd("connect", "Send a connection request", (*api.Client).Connect),
		a.userActionCmd("accept", "Accept a connection request", (*api.Client).Accept),
		a.burstCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.logger = logging.Setup(cmd.ErrOrStderr(), a.logLevel, a.logJSON)

	cfg, err := authbridge.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	cfg.Logger = a.logger

	sess, err := buildSession(cmd.Context(), cfg.Session)
	if err != nil {
		return err
	}
	adapter, err := adapters.NewHTTPAdapterFromConfig(cfg)
	if err != nil {
		return err
	}

	a.bridge, err = authbridge.NewAuthBridge(*cfg, sess, adapter,
		authbridge.WithNotifier(notify.LogNotifier{Logger: a.logger}),
		authbridge.WithSessionExpiredHandler(func(err error) {
			a.logger.Error("session is no longer valid, sign in again", slog.Any("error", err))
		}),
	)
	if err != nil {
		return err
	}
	a.api = api.NewClient(a.bridge)
	return nil
}

// buildSession picks the session provider the configuration describes.
func buildSession(ctx context.Context, cfg authbridge.SessionConfig) (authbridge.SessionProvider, error) {
	switch {
	case cfg.ClientID != "":
		return session.NewOAuthSession(ctx, session.Config{
			Issuer:             cfg.Issuer,
			TokenURL:           cfg.TokenURL,
			ClientID:           cfg.ClientID,
			ClientSecret:       cfg.ClientSecret,
			Scopes:             cfg.Scopes,
			RefreshToken:       cfg.RefreshToken,
			AccessToken:        cfg.AccessToken,
			ClientCertPath:     cfg.ClientCertPath,
			ClientCertPassword: cfg.ClientCertPassword,
		})
	case cfg.AccessToken != "":
		return session.Static(cfg.AccessToken), nil
	default:
		return session.Funcs{}, nil
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
