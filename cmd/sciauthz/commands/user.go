package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hms-dbmi/sciauthz/pkg/authz/models"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
	Long: `Manage user accounts in the permission store.

Most users never need an account created by hand: granting a permission to an
email address provisions one automatically. These commands exist for local
accounts that authenticate directly against the service (operators, service
accounts) and for enabling or disabling existing users.`,
}

var userAddAdmin bool

var userAddCmd = &cobra.Command{
	Use:   "add <email>",
	Short: "Add a local user account (prompts for password)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := models.CanonicalEmail(args[0])

		_, s, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		ctx := context.Background()

		password, err := promptNewPassword()
		if err != nil {
			return err
		}

		hash, err := models.HashPassword(password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		role := string(models.RoleUser)
		if userAddAdmin {
			role = string(models.RoleAdmin)
		}

		user := &models.User{
			Username:     email,
			Email:        email,
			PasswordHash: hash,
			Enabled:      true,
			Role:         role,
		}
		if _, err := s.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		fmt.Printf("User %q created (role: %s)\n", email, role)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, s, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		users, err := s.ListUsers(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}

		if len(users) == 0 {
			fmt.Println("No users")
			return nil
		}

		fmt.Printf("%-40s %-8s %-8s %s\n", "EMAIL", "ROLE", "ENABLED", "LAST LOGIN")
		fmt.Println(strings.Repeat("-", 80))
		for _, u := range users {
			enabled := "yes"
			if !u.Enabled {
				enabled = "no"
			}
			lastLogin := "-"
			if u.LastLogin != nil {
				lastLogin = u.LastLogin.Format("2006-01-02 15:04")
			}
			fmt.Printf("%-40s %-8s %-8s %s\n", u.Email, u.Role, enabled, lastLogin)
		}
		return nil
	},
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd <username>",
	Short: "Change a user's password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := args[0]

		_, s, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		ctx := context.Background()
		if _, err := s.GetUser(ctx, username); err != nil {
			return fmt.Errorf("user %q not found", username)
		}

		password, err := promptNewPassword()
		if err != nil {
			return err
		}

		hash, err := models.HashPassword(password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		if err := s.SetPassword(ctx, username, hash); err != nil {
			return fmt.Errorf("failed to set password: %w", err)
		}

		fmt.Printf("Password changed for user %q\n", username)
		return nil
	},
}

var userEnableCmd = &cobra.Command{
	Use:   "enable <username>",
	Short: "Enable a user account",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setUserEnabled(args[0], true) },
}

var userDisableCmd = &cobra.Command{
	Use:   "disable <username>",
	Short: "Disable a user account",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setUserEnabled(args[0], false) },
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Delete a user account",
	Long: `Delete a user account.

Permission records for the user's email are kept. They are keyed by email
address, not account, and apply again if the user is re-provisioned.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := args[0]

		_, s, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		if err := s.DeleteUser(context.Background(), username); err != nil {
			return fmt.Errorf("failed to delete user %q: %w", username, err)
		}

		fmt.Printf("User %q deleted\n", username)
		return nil
	},
}

func setUserEnabled(username string, enabled bool) error {
	_, s, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if err := s.SetUserEnabled(context.Background(), username, enabled); err != nil {
		return fmt.Errorf("failed to update user %q: %w", username, err)
	}

	state := "enabled"
	if !enabled {
		state = "disabled"
	}
	fmt.Printf("User %q %s\n", username, state)
	return nil
}

func init() {
	userAddCmd.Flags().BoolVar(&userAddAdmin, "admin", false, "Create the user with the admin role")

	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userPasswdCmd)
	userCmd.AddCommand(userEnableCmd)
	userCmd.AddCommand(userDisableCmd)
	userCmd.AddCommand(userDeleteCmd)
}
