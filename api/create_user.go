package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rogerio-castellano/stock-ledger/internal/auth"
	"github.com/rogerio-castellano/stock-ledger/internal/cache"
	"github.com/rogerio-castellano/stock-ledger/internal/models"
	"github.com/rogerio-castellano/stock-ledger/internal/repo"
)

func createUserCmd() *cobra.Command {
	var username, role, password string

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user, printing a generated password when none is given",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, database, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			generated := password == ""
			if generated {
				if password, err = generatePassword(); err != nil {
					return err
				}
			}

			authService := auth.NewService(
				repo.NewSQLUserRepository(database),
				auth.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.TTL, cfg.JWT.Issuer),
				cache.NewMemoryRevocations(),
				nil,
				log,
			)
			user, err := authService.Register(cmd.Context(), models.Registration{
				Username:        strings.TrimSpace(username),
				Password:        password,
				ConfirmPassword: password,
				Role:            models.Role(strings.ToLower(role)),
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created %s user %q (id %d)\n", user.Role, user.Username, user.ID)
			if generated {
				fmt.Fprintf(cmd.OutOrStdout(), "password: %s\n", password)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "admin", "login name")
	cmd.Flags().StringVar(&role, "role", string(models.RoleAdmin), "admin or guest")
	cmd.Flags().StringVar(&password, "password", "", "password (generated when empty)")
	return cmd
}

func generatePassword() (string, error) {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
