package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/robdennis/trappist/internal/storage/models"
	"github.com/robdennis/trappist/internal/tag"
)

func newTagCmd(app *App) *cobra.Command {
	tagCmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage tag definitions and card tagging",
	}
	tagCmd.AddCommand(
		newTagListCmd(app),
		newTagAddCmd(app),
		newTagDeleteCmd(app),
		newTagApplyCmd(app),
		newTagCacheCmd(app),
		newTagExportCmd(app),
		newTagImportCmd(app),
	)
	return tagCmd
}

func newTagListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tag definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			tags, err := app.tags.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(tags) == 0 {
				fmt.Println("No tags.")
				return nil
			}
			for _, t := range tags {
				detail := ""
				switch t.Type {
				case models.TagTypeRemote:
					detail = fmt.Sprintf("remote %q (%d cached names)", t.ScryfallQuery, len(t.CachedCardNames))
				default:
					if t.Query != nil {
						detail = fmt.Sprintf("local %s %s %q", t.Query.Field, t.Query.Op, t.Query.Value)
					}
				}
				fmt.Printf("%-4s %-24s %s\n", t.Icon, t.Name, detail)
			}
			return nil
		},
	}
}

func newTagAddCmd(app *App) *cobra.Command {
	var (
		icon        string
		description string
		category    string
		field       string
		op          string
		value       string
		remote      string
	)
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add or update a tag definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := &models.Tag{
				Name:        args[0],
				Icon:        icon,
				Description: description,
				Category:    category,
				Type:        models.TagTypeLocal,
			}
			if existing, err := app.tags.GetByName(cmd.Context(), args[0]); err != nil {
				return err
			} else if existing != nil {
				t.ID = existing.ID
				t.CreatedAt = existing.CreatedAt
			}

			switch {
			case remote != "":
				t.Type = models.TagTypeRemote
				t.ScryfallQuery = remote
			case field != "":
				t.Query = &models.TagQuery{Field: field, Op: op, Value: value}
			default:
				return fmt.Errorf("either --field or --remote is required")
			}

			if err := app.tags.Save(cmd.Context(), t); err != nil {
				return err
			}
			fmt.Printf("Saved tag %q.\n", t.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&icon, "icon", "", "Glyph shown on matching cards")
	cmd.Flags().StringVar(&description, "description", "", "Tag description")
	cmd.Flags().StringVar(&category, "category", "", "Grouping category")
	cmd.Flags().StringVar(&field, "field", "", "Card field the query tests")
	cmd.Flags().StringVar(&op, "op", models.OpEQ, "Query operator (regex, lt, lte, eq, gte, gt, ne)")
	cmd.Flags().StringVar(&value, "value", "", "Query comparison value")
	cmd.Flags().StringVar(&remote, "remote", "", "Scryfall query for a remote tag")
	return cmd
}

func newTagDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a tag definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := app.tags.GetByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if t == nil {
				return fmt.Errorf("no tag named %q", args[0])
			}
			if !app.confirmer().Confirm(fmt.Sprintf("Delete tag %q? Cards keep its icon until the next apply.", t.Name)) {
				return &tag.ErrAborted{Operation: "delete"}
			}
			if err := app.tags.Delete(cmd.Context(), t.ID); err != nil {
				return err
			}
			fmt.Printf("Deleted tag %q.\n", t.Name)
			return nil
		},
	}
}

func newTagApplyCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Recompute tag icons for every cataloged card",
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := app.tags.ApplyAllTags(cmd.Context(), app.confirmer(), func(done, total int) {
				if done == total || done%1000 == 0 {
					fmt.Printf("Tagged %d/%d cards\n", done, total)
				}
			})
			if err != nil {
				return err
			}
			fmt.Printf("Retagged %d cards.\n", count)
			return nil
		},
	}
}

func newTagCacheCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cache <name>",
		Short: "Refresh a remote tag's cached card names from Scryfall",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := app.tags.GetByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if t == nil {
				return fmt.Errorf("no tag named %q", args[0])
			}
			if err := app.tags.CacheRemoteTag(cmd.Context(), t); err != nil {
				return err
			}
			if err := app.tags.Save(cmd.Context(), t); err != nil {
				return err
			}
			fmt.Printf("Cached %d card names for %q.\n", len(t.CachedCardNames), t.Name)
			return nil
		},
	}
}

func newTagExportCmd(app *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export tag definitions to JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := app.tags.ExportJSON(cmd.Context())
			if err != nil {
				return err
			}
			if output == "" {
				fmt.Println(string(payload))
				return nil
			}
			if err := os.WriteFile(output, payload, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Printf("Exported to %s.\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func newTagImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import tag definitions from JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			count, err := app.tags.Import(cmd.Context(), payload)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d tags.\n", count)
			return nil
		},
	}
}
