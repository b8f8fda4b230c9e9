package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hms-dbmi/sciauthz/pkg/authz/models"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage authorizable projects",
	Long: `Manage authorizable projects in the permission store.

Projects can also be registered through the REST API by an admin user; these
commands cover bootstrap and scripted setups where no API token is at hand.`,
}

var (
	projectAddName        string
	projectAddDUARequired bool
)

var projectAddCmd = &cobra.Command{
	Use:   "add <project-key>",
	Short: "Register an authorizable project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectKey := args[0]

		name := projectAddName
		if name == "" {
			name = projectKey
		}

		_, s, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		project := &models.AuthorizableProject{
			Name:        name,
			ProjectKey:  projectKey,
			DUARequired: projectAddDUARequired,
		}
		if _, err := s.CreateProject(context.Background(), project); err != nil {
			return fmt.Errorf("failed to create project %q: %w", projectKey, err)
		}

		fmt.Printf("Project %q registered (key: %s, DUA required: %t)\n", name, projectKey, projectAddDUARequired)
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, s, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		projects, err := s.ListProjects(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list projects: %w", err)
		}

		if len(projects) == 0 {
			fmt.Println("No projects")
			return nil
		}

		fmt.Printf("%-25s %-30s %-14s %s\n", "KEY", "NAME", "DUA REQUIRED", "AGREEMENTS")
		fmt.Println(strings.Repeat("-", 80))
		for _, p := range projects {
			required := "no"
			if p.DUARequired {
				required = "yes"
			}
			fmt.Printf("%-25s %-30s %-14s %d\n", p.ProjectKey, p.Name, required, len(p.DUAs))
		}
		return nil
	},
}

func init() {
	projectAddCmd.Flags().StringVar(&projectAddName, "name", "", "Display name (defaults to the project key)")
	projectAddCmd.Flags().BoolVar(&projectAddDUARequired, "dua-required", true, "Require a signed data use agreement")

	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectListCmd)
}
