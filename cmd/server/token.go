package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/m2tx/agent_chat/internal/config"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a session token for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		user, _ := cmd.Flags().GetString("user")
		if user == "" {
			return fmt.Errorf("--user is required")
		}

		ttl, err := config.DurationOrDefault(cfg.Auth.TokenTTL, config.DefaultAuthTokenTTL)
		if err != nil {
			return err
		}

		authenticator, err := newAuthenticator(cfg.Auth)
		if err != nil {
			return err
		}

		token, err := authenticator.Generate(user, ttl)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("user", "", "user id placed in the sub claim")
	tokenCmd.Flags().String("token-ttl", config.DefaultAuthTokenTTL, "token lifetime")
}
