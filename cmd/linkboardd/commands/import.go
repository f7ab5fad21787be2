package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arnobt78/linkboard/internal/engine"
	"github.com/arnobt78/linkboard/internal/importer"
	"github.com/arnobt78/linkboard/internal/printer"
	"github.com/arnobt78/linkboard/pkg/linklist"
)

var importFile string

var importCmd = &cobra.Command{
	Use:   "import <list-slug>",
	Short: "Bulk-import links into a list",
	Long: `Import links from a JSON file into the list behind <list-slug>.

The file holds an array of records:
  [{"url": "https://...", "title": "...", "tags": ["..."]}, ...]

Records missing a title are enriched from page metadata where possible.
Imports run a bounded number at a time; a record that stalls is dropped
rather than blocking the rest.

Examples:
  # Import bookmarks into team-links
  linkboardd import team-links --file bookmarks.json`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "JSON file of records to import (required)")
	importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	slug := args[0]

	data, err := os.ReadFile(importFile)
	if err != nil {
		return printer.Error("failed to read import file", err.Error(), nil)
	}
	var records []linklist.ImportRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return printer.Error(
			"invalid import file",
			err.Error(),
			[]string{"Expected a JSON array of {url, title, ...} records"},
		)
	}
	if len(records) == 0 {
		printer.Warning("Nothing to import\n")
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return printer.Error("configuration error", err.Error(), nil)
	}

	eng, err := engine.New(cfg, resolveUserID())
	if err != nil {
		return printer.Error("failed to start engine", err.Error(), nil)
	}
	defer eng.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := eng.Open(ctx, slug); err != nil {
		return printer.Error(
			"failed to open list",
			fmt.Sprintf("Could not fetch %q: %v", slug, err),
			nil,
		)
	}

	printer.Step("Importing %d records into %s\n", len(records), slug)

	imp := eng.Importer(func(rec linklist.ImportRecord, outcome importer.Outcome, done, total int) {
		printer.Progress(done, total, rec.URL)
	})
	result, err := imp.Run(ctx, records)
	printer.Println()

	if len(result.EnrichmentFailures) > 0 {
		printer.Warning("Metadata lookup failed for %d records (imported without titles)\n",
			len(result.EnrichmentFailures))
	}
	if err != nil {
		printer.Warning("Import interrupted: %s\n", result.Summary())
		return err
	}
	if result.Failed > 0 {
		printer.Warning("%s\n", result.Summary())
		return nil
	}
	printer.Success("%s\n", result.Summary())
	return nil
}
