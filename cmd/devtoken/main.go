package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"campusattend/internal/auth"
	"campusattend/internal/config"
	"campusattend/internal/model"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		subject string
		role    string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "devtoken",
		Short: "Mint a development access token for a user id",
		Long: `devtoken signs an access token with JWT_SIGNING_KEY and JWT_ISSUER from the
environment (or .env), so API routes can be exercised without a login flow.`,
		Example: "  devtoken --sub s1 --role student",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := model.Role(role)
			switch r {
			case model.RoleStudent, model.RoleTeacher, model.RoleAdmin:
			default:
				return fmt.Errorf("unknown role %q", role)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			tok, err := auth.Issue(subject, r, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
			if err != nil {
				return err
			}
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(tok)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.AccessToken)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "", "user id to put in the token subject")
	cmd.Flags().StringVar(&role, "role", string(model.RoleStudent), "student, teacher or admin")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the token and its expiry as JSON")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}
