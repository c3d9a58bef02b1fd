package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yuca-profiler/yuca/internal/config"
	"github.com/yuca-profiler/yuca/internal/core/auth"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the rpc surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			tokens := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)
			if !tokens.Enabled() {
				return errors.New("YUCA_JWT_SECRET is not set")
			}

			subject, _ := cmd.Flags().GetString("subject")
			token, err := tokens.Issue(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("subject", "cli", "Token subject")
	return cmd
}
