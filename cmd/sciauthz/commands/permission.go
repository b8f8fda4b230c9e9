package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hms-dbmi/sciauthz/pkg/authz/models"
)

var permissionCmd = &cobra.Command{
	Use:   "permission",
	Short: "Manage permission records directly",
	Long: `Manage permission records directly in the store.

The REST API only lets existing managers of an item grant access to it, so
the very first MANAGE record for an item has to come from somewhere else.
These commands are that somewhere else: they write records with no
authorization check and are meant for operators on the server host.`,
}

var permissionGrantCmd = &cobra.Command{
	Use:   "grant <email> <item> <VIEW|MANAGE>",
	Short: "Grant a permission on an item",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := args[0]
		item := args[1]

		permission := models.Permission(strings.ToUpper(args[2]))
		if permission != models.PermissionView && permission != models.PermissionManage {
			return fmt.Errorf("invalid permission %q (valid: VIEW, MANAGE)", args[2])
		}

		_, s, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		ctx := context.Background()

		// Grantees get an account like API-driven grants do
		if _, _, err := s.EnsureUser(ctx, email); err != nil {
			return fmt.Errorf("failed to provision user: %w", err)
		}

		record, created, err := s.UpsertPermission(ctx, email, item, permission)
		if err != nil {
			return fmt.Errorf("failed to grant permission: %w", err)
		}

		if created {
			fmt.Printf("Granted %s on %q to %s\n", permission, item, record.UserEmail)
		} else {
			fmt.Printf("%s already holds %s on %q\n", record.UserEmail, permission, item)
		}
		return nil
	},
}

var permissionRevokeCmd = &cobra.Command{
	Use:   "revoke <email> <item> <VIEW|MANAGE>",
	Short: "Revoke a permission on an item",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := args[0]
		item := args[1]

		permission := models.Permission(strings.ToUpper(args[2]))
		if permission != models.PermissionView && permission != models.PermissionManage {
			return fmt.Errorf("invalid permission %q (valid: VIEW, MANAGE)", args[2])
		}

		_, s, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		record, err := s.DeletePermission(context.Background(), email, item, permission)
		if err != nil {
			return fmt.Errorf("failed to revoke permission: %w", err)
		}

		fmt.Printf("Revoked %s on %q from %s\n", record.Permission, record.Item, record.UserEmail)
		return nil
	},
}

var permissionListCmd = &cobra.Command{
	Use:   "list [email]",
	Short: "List permission records, optionally for one user",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, s, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		ctx := context.Background()

		var records []*models.UserPermission
		if len(args) == 1 {
			records, err = s.ListPermissionsForUser(ctx, args[0])
		} else {
			records, err = s.ListAllPermissions(ctx)
		}
		if err != nil {
			return fmt.Errorf("failed to list permissions: %w", err)
		}

		if len(records) == 0 {
			fmt.Println("No permission records")
			return nil
		}

		fmt.Printf("%-40s %-30s %s\n", "EMAIL", "ITEM", "PERMISSION")
		fmt.Println(strings.Repeat("-", 80))
		for _, p := range records {
			fmt.Printf("%-40s %-30s %s\n", p.UserEmail, p.Item, p.Permission)
		}
		return nil
	},
}

func init() {
	permissionCmd.AddCommand(permissionGrantCmd)
	permissionCmd.AddCommand(permissionRevokeCmd)
	permissionCmd.AddCommand(permissionListCmd)
}
