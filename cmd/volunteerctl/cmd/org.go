package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/civicworks/volunteerhub/internal/models"
)

var (
	orgDBPath     string
	orgName       string
	orgDesc       string
	orgWebsite    string
	orgAdmin      string
	orgUsername   string
	orgMemberRole string
)

// orgCmd represents the org command group
var orgCmd = &cobra.Command{
	Use:   "org",
	Short: "Organization management commands",
	Long: `Commands for managing nonprofit organizations.

Organizations own projects; organization members can create and staff
them. These commands operate directly on the database file.

Examples:
  # List all organizations
  volunteerctl org list

  # Register an organization with an initial admin member
  volunteerctl org create --name "Ocean Cleanup" --admin dana

  # Add a member to an organization
  volunteerctl org add-member --name "Ocean Cleanup" --username lee --role staff`,
}

// orgListCmd lists all organizations
var orgListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all organizations",
	Long: `List all organizations in the database.

Displays organization ID, name, member count, and creation date.

Example:
  volunteerctl org list`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(orgDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		orgs, err := store.Organizations().List(ctx)
		if err != nil {
			return fmt.Errorf("list organizations: %w", err)
		}

		if len(orgs) == 0 {
			fmt.Println("No organizations found.")
			return nil
		}

		// Print header
		fmt.Printf("\n%-36s  %-30s  %-8s  %s\n",
			"ID", "NAME", "MEMBERS", "CREATED")
		fmt.Println(strings.Repeat("-", 95))

		for _, o := range orgs {
			memberIDs, err := store.Organizations().ListMemberIDs(ctx, o.ID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not fetch members for %s: %v\n", o.Name, err)
			}
			fmt.Printf("%-36s  %-30s  %-8d  %s\n",
				o.ID,
				truncate(o.Name, 30),
				len(memberIDs),
				o.CreatedAt.Format("2006-01-02 15:04"),
			)
		}
		fmt.Printf("\nTotal: %d organization(s)\n", len(orgs))

		return nil
	},
}

// orgCreateCmd registers a new organization
var orgCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a new organization",
	Long: `Register a new nonprofit organization.

If --admin is given, that user is added as an organization admin
member, which lets them create projects and manage further members
through the API.

Example:
  volunteerctl org create --name "Ocean Cleanup" --website https://ocean.example.org --admin dana`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if orgName == "" {
			return fmt.Errorf("--name is required")
		}

		store, err := openDatabase(orgDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()

		// Check if name already exists
		existing, err := store.Organizations().GetByName(ctx, orgName)
		if err != nil {
			return fmt.Errorf("check organization name: %w", err)
		}
		if existing != nil {
			return fmt.Errorf("organization '%s' already exists", orgName)
		}

		// Resolve the admin user before creating anything
		var admin *models.User
		if orgAdmin != "" {
			admin, err = store.Users().GetByUsername(ctx, orgAdmin)
			if err != nil {
				return fmt.Errorf("find admin user: %w", err)
			}
			if admin == nil {
				return fmt.Errorf("user '%s' not found", orgAdmin)
			}
		}

		org := models.NewOrganization(strings.TrimSpace(orgName), strings.TrimSpace(orgDesc))
		org.ID = uuid.New().String()
		org.Website = strings.TrimSpace(orgWebsite)

		if err := store.Organizations().Create(ctx, org); err != nil {
			return fmt.Errorf("create organization: %w", err)
		}

		if admin != nil {
			if err := store.Organizations().AddMember(ctx, org.ID, admin.ID, models.OrgRoleAdmin); err != nil {
				return fmt.Errorf("add admin member: %w", err)
			}
		}

		fmt.Printf("\nOrganization created successfully:\n")
		fmt.Printf("  ID:   %s\n", org.ID)
		fmt.Printf("  Name: %s\n", org.Name)
		if admin != nil {
			fmt.Printf("  Admin member: %s\n", admin.Username)
		}

		return nil
	},
}

// orgAddMemberCmd adds a user to an organization
var orgAddMemberCmd = &cobra.Command{
	Use:   "add-member",
	Short: "Add a user to an organization",
	Long: `Add an existing user as a member of an organization.

Available roles:
  - admin: Can manage members and all organization projects
  - staff: Can create and staff organization projects

Example:
  volunteerctl org add-member --name "Ocean Cleanup" --username lee --role staff`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if orgName == "" {
			return fmt.Errorf("--name is required")
		}
		if orgUsername == "" {
			return fmt.Errorf("--username is required")
		}

		role := models.OrgRoleStaff
		if orgMemberRole == "admin" {
			role = models.OrgRoleAdmin
		} else if orgMemberRole != "" && orgMemberRole != "staff" {
			return fmt.Errorf("role must be 'admin' or 'staff'")
		}

		store, err := openDatabase(orgDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()

		org, err := store.Organizations().GetByName(ctx, orgName)
		if err != nil {
			return fmt.Errorf("find organization: %w", err)
		}
		if org == nil {
			return fmt.Errorf("organization '%s' not found", orgName)
		}

		user, err := store.Users().GetByUsername(ctx, orgUsername)
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}
		if user == nil {
			return fmt.Errorf("user '%s' not found", orgUsername)
		}

		isMember, err := store.Organizations().IsMember(ctx, org.ID, user.ID)
		if err != nil {
			return fmt.Errorf("check membership: %w", err)
		}
		if isMember {
			return fmt.Errorf("user '%s' is already a member of '%s'", user.Username, org.Name)
		}

		if err := store.Organizations().AddMember(ctx, org.ID, user.ID, role); err != nil {
			return fmt.Errorf("add member: %w", err)
		}

		fmt.Printf("Added '%s' to '%s' as %s.\n", user.Username, org.Name, role)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(orgCmd)
	orgCmd.AddCommand(orgListCmd)
	orgCmd.AddCommand(orgCreateCmd)
	orgCmd.AddCommand(orgAddMemberCmd)

	// Common flags (db has default value)
	for _, cmd := range []*cobra.Command{orgListCmd, orgCreateCmd, orgAddMemberCmd} {
		cmd.Flags().StringVar(&orgDBPath, "db", defaultDBPath, "path to SQLite database file")
	}

	// Create-specific flags
	orgCreateCmd.Flags().StringVar(&orgName, "name", "", "organization name (required)")
	orgCreateCmd.Flags().StringVar(&orgDesc, "description", "", "organization description")
	orgCreateCmd.Flags().StringVar(&orgWebsite, "website", "", "organization website URL")
	orgCreateCmd.Flags().StringVar(&orgAdmin, "admin", "", "username of the initial admin member")
	orgCreateCmd.MarkFlagRequired("name")

	// Add-member flags
	orgAddMemberCmd.Flags().StringVar(&orgName, "name", "", "organization name (required)")
	orgAddMemberCmd.Flags().StringVar(&orgUsername, "username", "", "username to add (required)")
	orgAddMemberCmd.Flags().StringVar(&orgMemberRole, "role", "staff", "membership role: admin or staff")
	orgAddMemberCmd.MarkFlagRequired("name")
	orgAddMemberCmd.MarkFlagRequired("username")
}

// truncate shortens a string to at most n characters.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 2 {
		return s[:n]
	}
	return s[:n-2] + ".."
}
