package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/haven/pkg/auth"
	"github.com/platinummonkey/haven/pkg/config"
)

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print the bcrypt hash of a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

// passwordReport is the output of check-password
type passwordReport struct {
	auth.StrengthResult
	Common bool `json:"common"`
}

func checkPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-password <password>",
		Short: "Report the strength of a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report := passwordReport{
				StrengthResult: auth.ValidatePasswordStrength(args[0]),
				Common:         auth.IsCommonPassword(args[0]),
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}

func genSecretCmd() *cobra.Command {
	var bytes int
	cmd := &cobra.Command{
		Use:   "gen-secret",
		Short: "Generate a random hex secret for HAVEN_JWT_SECRET or HAVEN_API_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := auth.GenerateSecureToken(bytes)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	}
	cmd.Flags().IntVar(&bytes, "bytes", 32, "Number of random bytes")
	return cmd
}

func genPasswordCmd() *cobra.Command {
	var length int
	cmd := &cobra.Command{
		Use:   "gen-password",
		Short: "Generate a random password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := auth.GenerateRandomPassword(length)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), password)
			return nil
		},
	}
	cmd.Flags().IntVar(&length, "length", 12, "Password length (at least 4)")
	return cmd
}

func issueTokenCmd() *cobra.Command {
	var (
		id    string
		role  string
		email string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Issue a bearer token with the configured secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			parsed, err := auth.ParseRole(role)
			if err != nil {
				return err
			}
			expiresIn := cfg.Auth.JWTExpiresIn
			if ttl > 0 {
				expiresIn = ttl
			}
			issuer, err := auth.NewTokenIssuer(auth.TokenConfig{
				Secret:    cfg.Auth.JWTSecret,
				ExpiresIn: expiresIn,
				Issuer:    cfg.Auth.JWTIssuer,
			})
			if err != nil {
				return err
			}
			token, err := issuer.GenerateToken(id, parsed, email)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Account ID")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleUser), "Account role (guest, user, agent, admin)")
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to HAVEN_JWT_EXPIRES_IN)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
