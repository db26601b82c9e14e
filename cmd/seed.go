/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/devsketch/apiserver/internal/store"
	"github.com/devsketch/apiserver/types"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var globalRoleDescriptions = map[types.RoleName]string{
	types.RoleSuperAdmin: "Creates and deletes every project, grants and revokes every role except super_admin",
	types.RoleAdmin:      "Sees every project, grants and revokes project roles",
	types.RoleUser:       "Default account role",
}

var (
	seedEmail    string
	seedName     string
	seedPassword string
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the global roles and the first super admin",
	Long: `Creates any missing global role. When an email is given (flag or
SEED_ADMIN_EMAIL) the account is created if needed, marked verified and
granted super_admin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, conn, log, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		return seed(cmd.Context(), conn, seedAccount{
			Email:    firstNonEmpty(seedEmail, os.Getenv("SEED_ADMIN_EMAIL")),
			Name:     firstNonEmpty(seedName, os.Getenv("SEED_ADMIN_NAME"), "Administrator"),
			Password: firstNonEmpty(seedPassword, os.Getenv("SEED_ADMIN_PASSWORD")),
		}, log)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringVar(&seedEmail, "email", "", "super admin email")
	seedCmd.Flags().StringVar(&seedName, "name", "", "super admin display name")
	seedCmd.Flags().StringVar(&seedPassword, "password", "", "super admin password, used only when the account is created")
}

type seedAccount struct {
	Email    string
	Name     string
	Password string
}

func seed(ctx context.Context, conn *sqlx.DB, account seedAccount, log *zap.Logger) error {
	roles := store.NewRoleRepository(conn)
	users := store.NewUserRepository(conn)

	var superAdmin types.Role
	for _, name := range []types.RoleName{types.RoleSuperAdmin, types.RoleAdmin, types.RoleUser} {
		role, err := roles.EnsureGlobalRole(ctx, name, globalRoleDescriptions[name])
		if err != nil {
			return fmt.Errorf("ensure role %s: %w", name, err)
		}
		if name == types.RoleSuperAdmin {
			superAdmin = role
		}
	}

	email := strings.ToLower(strings.TrimSpace(account.Email))
	if email == "" {
		log.Info("global roles seeded")
		return nil
	}

	user, err := users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if len(account.Password) < 8 {
			return errors.New("a password of at least 8 characters is required to create the super admin")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(account.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		user, err = users.Create(ctx, types.User{Email: email, Name: account.Name, PasswordHash: string(hash)})
		if err != nil {
			return fmt.Errorf("create super admin: %w", err)
		}
	case err != nil:
		return fmt.Errorf("load super admin: %w", err)
	}

	if !user.IsVerified {
		if err := users.SetVerified(ctx, user.ID, true); err != nil {
			return fmt.Errorf("verify super admin: %w", err)
		}
	}

	grant := types.RoleAssignment{UserID: user.ID, RoleID: superAdmin.ID}
	exists, err := roles.AssignmentExists(ctx, grant)
	if err != nil {
		return fmt.Errorf("check super admin grant: %w", err)
	}
	if !exists {
		if _, err := roles.CreateAssignment(ctx, grant); err != nil {
			return fmt.Errorf("grant super admin: %w", err)
		}
	}

	log.Info("super admin seeded", zap.Int64("user_id", user.ID), zap.String("email", email))
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
