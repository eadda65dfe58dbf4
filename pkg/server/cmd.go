package server

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/heathcliff26/hookguard/pkg/client"
	"github.com/heathcliff26/hookguard/pkg/config"
	"github.com/heathcliff26/hookguard/pkg/version"
	"github.com/heathcliff26/hookguard/pkg/webhook"
	"github.com/spf13/cobra"
)

const (
	flagNameConfig   = "config"
	flagNameLogLevel = "log"
	flagNameEnv      = "env"
	flagNameSecret   = "secret"
)

func Execute() {
	err := NewServerCmd().Execute()
	if err != nil {
		slog.Error("Failed to execute command", "err", err)
		os.Exit(1)
	}
}

func NewServerCmd() *cobra.Command {
	cobra.AddTemplateFunc(
		"ProgramName", func() string {
			return version.Name
		},
	)

	rootCmd := &cobra.Command{
		Use:   version.Name,
		Short: version.Name + " guards the GitHub webhook ingress of a GitHub App",
		Run: func(cmd *cobra.Command, args []string) {
			err := run(cmd)
			if err != nil {
				fmt.Println("Fatal: " + err.Error())
				os.Exit(1)
			}
		},
	}

	rootCmd.Flags().StringP(flagNameConfig, "c", "", "Config file to use")
	rootCmd.Flags().String(flagNameLogLevel, "", "Override the log level given in the config file")
	rootCmd.Flags().Bool(flagNameEnv, false, "Expand enviroment variables in the config file")

	rootCmd.AddCommand(
		version.NewCommand(),
		newSignCmd(),
	)

	return rootCmd
}

// Compute the X-Hub-Signature-256 header for a payload, useful for sending test deliveries
func newSignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign [file]",
		Short: "Print the X-Hub-Signature-256 value for a payload read from file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := cmd.Flags().GetString(flagNameSecret)
			if err != nil {
				return fmt.Errorf("failed to get secret flag: %w", err)
			}
			if secret == "" {
				secret = os.Getenv(config.ENV_WEBHOOK_SECRET)
			}
			if secret == "" {
				return fmt.Errorf("no secret given, use --%s or %s", flagNameSecret, config.ENV_WEBHOOK_SECRET)
			}

			var body []byte
			if len(args) == 0 || args[0] == "-" {
				body, err = io.ReadAll(cmd.InOrStdin())
			} else {
				// #nosec G304 -- Local users can decide on their file path themselves.
				body, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read payload: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), webhook.Sign(body, secret))
			return err
		},
	}
	cmd.Flags().StringP(flagNameSecret, "s", "", "Webhook secret, defaults to $"+config.ENV_WEBHOOK_SECRET)
	return cmd
}

func run(cmd *cobra.Command) error {
	configPath, err := cmd.Flags().GetString(flagNameConfig)
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	logLevel, err := cmd.Flags().GetString(flagNameLogLevel)
	if err != nil {
		return fmt.Errorf("failed to get log level flag: %w", err)
	}
	env, err := cmd.Flags().GetBool(flagNameEnv)
	if err != nil {
		return fmt.Errorf("failed to get env flag: %w", err)
	}

	cfg, err := config.LoadConfig(configPath, env, logLevel)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	github := client.NewGithubClient(cfg.Github, cfg.Retry.Policy())

	server, err := NewServer(cfg, github)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return server.Run()
}
