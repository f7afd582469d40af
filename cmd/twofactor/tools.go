package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/twofactor/internal/config"
	"github.com/dmitrymomot/twofactor/pkg/jwt"
	"github.com/dmitrymomot/twofactor/pkg/secrets"
	"github.com/dmitrymomot/twofactor/pkg/totp"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a new base64 master key for SECRETS_ENCRYPTION_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := secrets.GenerateEncodedKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func newCodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "code <secret>",
		Short: "Print the current TOTP code for a base32 secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := totp.GenerateTOTP(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), code)
			return nil
		},
	}
}

func newTokenCmd(envFiles *[]string) *cobra.Command {
	var userID, email string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user, for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			var cfg jwt.Config
			if err := config.Load(&cfg, *envFiles...); err != nil {
				return err
			}
			tokens, err := jwt.New(cfg)
			if err != nil {
				return err
			}
			token, err := tokens.Issue(jwt.Identity{UserID: id, Email: email})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user UUID")
	cmd.Flags().StringVar(&email, "email", "", "email shown in authenticator apps")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
