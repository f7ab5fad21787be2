package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/arnobt78/linkboard/internal/config"
)

var (
	version string
	commit  string
	date    string

	configPath string
	userID     string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "linkboardd",
	Short: "Linkboardd - shared link list sync engine",
	Long: `Linkboardd keeps a local view of a shared link list in sync with its
backend: optimistic mutations, drag-reorder reconciliation, realtime
invalidation over Redis or WebSocket, and bulk import.

It maintains a single canonical snapshot, applies local changes
immediately, and reconciles server responses without bouncing the
user's intent.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// If no subcommand is specified, show help
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Silence Cobra's default error and usage printing
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "linkboard.yml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "Acting user id (defaults to LINKBOARD_USER)")
}

// loadConfig resolves configuration for a command: .env file (if any),
// then the YAML file, then environment overrides.
func loadConfig() (*config.Config, error) {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := config.Default()
		cfg.Remote.Token = os.Getenv("LINKBOARD_TOKEN")
		if v := os.Getenv("REDIS_URL"); v != "" {
			cfg.Redis.URL = v
		}
		if v := os.Getenv("LINKBOARD_API_URL"); v != "" {
			cfg.Remote.BaseURL = v
		}
		return cfg, nil
	}
	return config.Load(configPath)
}

func resolveUserID() string {
	if userID != "" {
		return userID
	}
	return os.Getenv("LINKBOARD_USER")
}
