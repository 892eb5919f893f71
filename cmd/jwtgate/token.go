package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/MrEthical07/jwtgate/httpapi"
	"github.com/MrEthical07/jwtgate/jwt"
	"github.com/spf13/cobra"
)

func tokenCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint and inspect tokens with the configured secret",
	}
	cmd.AddCommand(tokenIssueCmd(flags), tokenInspectCmd(flags))
	return cmd
}

func tokenIssueCmd(flags *globalFlags) *cobra.Command {
	var (
		subject string
		roles   []string
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue an access/refresh pair for a subject",
		Long: `Issue an access/refresh pair for a subject and register the refresh token
with the configured store. With the memory backend the refresh token is
forgotten when the command exits.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadAppConfig(flags.configPath, nil)
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), flags.logLevel)

			be, err := openBackend(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer be.Close()

			engine, err := buildEngine(cfg, be, logger)
			if err != nil {
				return err
			}
			defer engine.Close()

			pair, err := engine.IssueTokens(cmd.Context(), subject, roles)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), httpapi.TokenResponse{
				AccessToken:                pair.AccessToken,
				RefreshToken:               pair.RefreshToken,
				AccessTokenExpiresAtMillis: pair.AccessTokenExpiresAtMillis(),
			})
		},
	}

	cmd.Flags().StringVarP(&subject, "subject", "s", "", "Token subject (required)")
	cmd.Flags().StringSliceVarP(&roles, "role", "r", nil, "Role to grant, repeatable")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

type inspectOutput struct {
	Type      jwt.TokenType `json:"type"`
	Subject   string        `json:"subject"`
	Issuer    string        `json:"issuer"`
	Roles     []string      `json:"roles,omitempty"`
	JTI       string        `json:"jti,omitempty"`
	IssuedAt  time.Time     `json:"issuedAt"`
	ExpiresAt time.Time     `json:"expiresAt"`
	// Active is set for refresh tokens only.
	Active *bool `json:"active,omitempty"`
}

func tokenInspectCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect TOKEN",
		Short: "Verify a token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAppConfig(flags.configPath, nil)
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), flags.logLevel)

			be, err := openBackend(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer be.Close()

			engine, err := buildEngine(cfg, be, logger)
			if err != nil {
				return err
			}
			defer engine.Close()

			claims, err := engine.Codec().DecodeAndVerify(args[0])
			if err != nil {
				return fmt.Errorf("token rejected: %w", err)
			}

			out := inspectOutput{
				Type:    claims.Type,
				Subject: claims.Subject,
				Issuer:  claims.Issuer,
				Roles:   claims.Roles,
				JTI:     claims.ID,
			}
			if claims.IssuedAt != nil {
				out.IssuedAt = claims.IssuedAt.Time.UTC()
			}
			if claims.ExpiresAt != nil {
				out.ExpiresAt = claims.ExpiresAt.Time.UTC()
			}
			if claims.Type == jwt.TypeRefresh {
				info, err := engine.InspectRefreshToken(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("inspect refresh token: %w", err)
				}
				out.Active = &info.Active
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
