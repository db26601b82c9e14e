/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/devsketch/apiserver/internal/store"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// usersCmd represents the users command
var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user accounts",
}

var usersVerifyCmd = &cobra.Command{
	Use:   "verify <email>",
	Short: "Mark an account as verified so it can receive roles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, conn, log, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		return verifyUser(cmd.Context(), conn, args[0], log)
	},
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersVerifyCmd)
}

func verifyUser(ctx context.Context, conn *sqlx.DB, email string, log *zap.Logger) error {
	users := store.NewUserRepository(conn)
	user, err := users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return fmt.Errorf("load user %q: %w", email, err)
	}
	if err := users.SetVerified(ctx, user.ID, true); err != nil {
		return fmt.Errorf("verify user: %w", err)
	}
	log.Info("user verified", zap.Int64("user_id", user.ID))
	return nil
}
