package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/m2tx/agent_chat/internal/config"
	"github.com/m2tx/agent_chat/internal/logger"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "agent-chat",
	Short: "Streaming chat service with tool calling",
	Long:  `agent-chat streams model answers over HTTP, runs the tools the model asks for and stores finished conversations.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd)
		if err != nil {
			return err
		}

		logger.Setup(cfg.Server.LogLevel)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "YAML config file")
	flags.String("log-level", config.DefaultServerLogLevel, "log level (debug, info, warn, error)")
	flags.String("auth-secret", "", "HS256 secret for session tokens")

	addServeFlags(rootCmd)
	rootCmd.AddCommand(serveCmd, tokenCmd)
}
