package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arnobt78/linkboard/internal/engine"
	"github.com/arnobt78/linkboard/internal/printer"
	"github.com/arnobt78/linkboard/pkg/linklist"
)

var runCmd = &cobra.Command{
	Use:   "run <list-slug>",
	Short: "Open a list and keep it in sync",
	Long: `Open the list behind <list-slug> and run the sync session until
interrupted.

The session subscribes to the list's push channel, refetches on remote
changes, and reconnects with backoff when the channel drops.

Examples:
  # Sync the team-links list
  linkboardd run team-links

  # With an explicit config file
  linkboardd run team-links --config /etc/linkboard.yml`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	slug := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return printer.Error(
			"configuration error",
			err.Error(),
			[]string{"Check the file passed via --config"},
		)
	}

	eng, err := engine.New(cfg, resolveUserID())
	if err != nil {
		return printer.Error("failed to start engine", err.Error(), nil)
	}
	defer eng.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	list, err := eng.Open(ctx, slug)
	if err != nil {
		return printer.Error(
			"failed to open list",
			fmt.Sprintf("Could not fetch %q: %v", slug, err),
			[]string{
				"Check remote.base_url and your token",
				"Check the list slug",
			},
		)
	}

	printer.Header("%s (%d items)", list.Title, len(list.Items))
	printer.Info("Watching for changes. Press Ctrl+C to stop.\n")

	if err := eng.Run(ctx); err != nil {
		if linklist.IsPermission(err) {
			return printer.Error(
				"access revoked",
				"Your access to this list was removed while the session was running.",
				nil,
			)
		}
		return printer.Error("sync session failed", err.Error(), nil)
	}

	printer.Success("Session stopped\n")
	return nil
}
