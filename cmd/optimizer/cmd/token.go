package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"PriceOptimizer/internal/identity"
)

var (
	tokenOwner string
	tokenTTL   time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for an owner",
	Long: `Prints an HS256 JWT for the given owner id, signed with auth.secret and
valid for auth.token_ttl unless --ttl is given.
Clients send it as "Authorization: Bearer <token>".`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenOwner, "owner", "", "owner id ([A-Za-z0-9_-], required)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default auth.token_ttl)")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	if tokenOwner == "" {
		return errors.New("--owner is required")
	}
	cfg, err := loadConfig()
	if err != nil {
		printError("config", err)
		return err
	}
	ttl := cfg.Auth.TokenTTL.Duration
	if tokenTTL > 0 {
		ttl = tokenTTL
	}
	ids, err := identity.NewJWTResolver(cfg.Auth.Secret, ttl)
	if err != nil {
		printError("auth.secret", err)
		return err
	}
	token, err := ids.Issue(tokenOwner)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
