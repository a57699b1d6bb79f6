// Package cmd contains the CLI commands for volunteerctl.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Used for flags
	verbose bool
	output  string
)

// defaultDBPath is the default database path, can be overridden via
// VOLUNTEERHUB_DB_PATH env var or the --db flag.
var defaultDBPath = "/data/volunteerhub.db"

func init() {
	if envPath := os.Getenv("VOLUNTEERHUB_DB_PATH"); envPath != "" {
		defaultDBPath = envPath
	}
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "volunteerctl",
	Short: "VolunteerHub - Volunteer marketplace administration",
	Long: `volunteerctl manages a VolunteerHub installation directly on the
database file, outside of the REST API.

It is intended for system administrators: bootstrapping the first
accounts, recovering locked-out users, and registering nonprofit
organizations.

Examples:
  # List all users
  volunteerctl user list

  # Create an admin user
  volunteerctl user create --username admin --email admin@example.org --role admin

  # Reset a user's password
  volunteerctl user passwd --username admin

  # Register a nonprofit organization
  volunteerctl org create --name "Ocean Cleanup" --admin admin`,
	Run: func(cmd *cobra.Command, args []string) {
		// Show help by default
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format (table, json, plain)")
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}

// GetOutput returns the output format.
func GetOutput() string {
	return output
}

// PrintError prints an error message and exits if fatal is true.
func PrintError(msg string, fatal bool) {
	fmt.Fprintln(os.Stderr, "Error:", msg)
	if fatal {
		os.Exit(1)
	}
}

// PrintVerbose prints a message only if verbose mode is enabled.
func PrintVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Printf(format+"\n", args...)
	}
}
