package main

import (
	"fmt"
	"time"

	"github.com/smallbiznis/catalog/internal/auth"
	"github.com/smallbiznis/catalog/internal/config"
	"github.com/smallbiznis/catalog/internal/credential"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Work with API tokens",
	}

	var (
		cred credential.Credential
		ttl  time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Sign a bearer token for a company user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := auth.NewTokenService(config.Load()).Issue(cred, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	issue.Flags().Int64Var(&cred.CompanyID, "company-id", 0, "company the token acts for")
	issue.Flags().Int64Var(&cred.UserID, "user-id", 0, "user id")
	issue.Flags().StringVar(&cred.UserName, "user-name", "", "name written to created_by and updated_by")
	issue.Flags().StringVar(&cred.Role, "role", "", "owner, admin, member or viewer; empty uses AUTH_DEFAULT_ROLE")
	issue.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.AddCommand(issue)

	cmd.AddCommand(&cobra.Command{
		Use:   "hash-app-key <key>",
		Short: "Print the APP_KEY_HASH value for an internal app key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashAppKey(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	})

	return cmd
}
