package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func newCatalogCmd(app *App) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the local card catalog",
	}

	var fromFile string
	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Replace the catalog from a bulk card payload",
		Long: `Downloads the current bulk card data and replaces the catalog with
it, or loads a local JSON payload with --file. Reprints and duplicate
name printings are deduplicated before anything is written.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var payload []byte
			if fromFile != "" {
				data, err := os.ReadFile(fromFile)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", fromFile, err)
				}
				payload = data
			} else {
				fmt.Println("Fetching bulk data listing...")
				list, err := app.scry.GetBulkData(ctx)
				if err != nil {
					return err
				}
				bulk := list.DefaultCards()
				if bulk == nil {
					return fmt.Errorf("no default card bulk data available")
				}

				fmt.Printf("Downloading %s (%d bytes compressed)...\n", bulk.Name, bulk.CompressedSize)
				body, err := app.scry.DownloadBulkData(ctx, bulk)
				if err != nil {
					return err
				}
				defer func() { _ = body.Close() }()

				result, err := app.importer.ImportFromReader(ctx, body)
				if err != nil {
					return err
				}
				printImportResult(result.CardCount, result.Collisions)
				return nil
			}

			result, err := app.importer.Import(ctx, payload)
			if err != nil {
				return err
			}
			printImportResult(result.CardCount, result.Collisions)
			return nil
		},
	}
	loadCmd.Flags().StringVarP(&fromFile, "file", "f", "", "Load from a local JSON file instead of downloading")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every card from the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !app.confirmer().Confirm("Remove every card from the catalog?") {
				return fmt.Errorf("clear aborted")
			}
			if err := app.cards.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Catalog cleared.")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show catalog size and storage usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			count, err := app.cards.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Cards:   %d\n", count)

			usage, err := app.db.EstimateStorageUsage(ctx)
			if err == nil {
				fmt.Printf("Storage: %.1f MiB\n", float64(usage)/(1024*1024))
			}
			return nil
		},
	}

	catalogCmd.AddCommand(loadCmd, clearCmd, statusCmd)
	return catalogCmd
}

func printImportResult(count int, collisions map[string]int) {
	fmt.Printf("Catalog loaded: %d cards.\n", count)
	if len(collisions) == 0 {
		return
	}

	names := make([]string, 0, len(collisions))
	for name := range collisions {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("Resolved %d name collisions:\n", len(names))
	for _, name := range names {
		fmt.Printf("  %s (%d printings)\n", name, collisions[name])
	}
}

func newSearchCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "search <prefix>",
		Short: "Search cards by name prefix",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := app.searcher.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("No matches.")
				return nil
			}

			for _, card := range results {
				line := card.Name
				if card.ManaCost != "" {
					line += "  " + card.ManaCost
				}
				if card.TypeLine != "" {
					line += "  " + card.TypeLine
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}
