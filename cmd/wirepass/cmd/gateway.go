package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wirepass/wirepass/internal/gateway"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run the HTTP gateway in front of the backend",
	Long: "Run an HTTP proxy that answers CORS preflights, forwards requests to the\n" +
		"backend and returns the profile redirect target as plain text.\n" +
		"WIREPASS_UPSTREAM_URL, WIREPASS_NETWORK and WIREPASS_LISTEN override the\n" +
		"gateway section of the config file.",
	Args: cobra.NoArgs,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
}

func runGateway(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("wirepass gateway: %w", err)
	}
	logger := setupLogger(cfg.LogLevel)

	envCfg, err := gateway.LoadConfigFromEnv()
	if err != nil {
		return fmt.Errorf("wirepass gateway: %w", err)
	}
	gwCfg := mergeGatewayConfig(cfg.Gateway, envCfg)

	srv, err := gateway.NewServer(gwCfg, logger)
	if err != nil {
		return fmt.Errorf("wirepass gateway: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("wirepass gateway: %w", err)
	}
	return nil
}

// mergeGatewayConfig overlays settings present in the environment on the
// file configuration.
func mergeGatewayConfig(file, env gateway.Config) gateway.Config {
	out := file
	if _, ok := os.LookupEnv(gateway.EnvPrefix + "_UPSTREAM_URL"); ok || out.UpstreamURL == "" {
		out.UpstreamURL = env.UpstreamURL
	}
	if _, ok := os.LookupEnv(gateway.EnvPrefix + "_NETWORK"); ok || out.Network == "" {
		out.Network = env.Network
	}
	if _, ok := os.LookupEnv(gateway.EnvPrefix + "_LISTEN"); ok {
		out.Listen = env.Listen
	}
	if _, ok := os.LookupEnv(gateway.EnvPrefix + "_PROFILE_PATH"); ok {
		out.ProfilePath = env.ProfilePath
	}
	if _, ok := os.LookupEnv(gateway.EnvPrefix + "_SHUTDOWN_TIMEOUT"); ok {
		out.ShutdownTimeout = env.ShutdownTimeout
	}
	return out
}
