package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robdennis/trappist/internal/pack"
	"github.com/robdennis/trappist/internal/storage/models"
)

func newPackCmd(app *App) *cobra.Command {
	packCmd := &cobra.Command{
		Use:   "pack",
		Short: "Manage packs and their revision histories",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// The root PersistentPreRunE is overridden by this one.
			if err := app.open(); err != nil {
				return err
			}
			return app.engine.Load(cmd.Context())
		},
	}

	packCmd.AddCommand(
		newPackCreateCmd(app),
		newPackListCmd(app),
		newPackShowCmd(app),
		newPackSetCmd(app),
		newPackCommitCmd(app),
		newPackDiscardCmd(app),
		newPackDeleteCmd(app),
		newPackRevertCmd(app),
		newPackHistoryCmd(app),
		newPackExportCmd(app),
		newPackImportCmd(app),
	)
	return packCmd
}

// findPack resolves a name argument against the loaded working set.
func findPack(app *App, name string) (*models.Pack, error) {
	for _, p := range app.engine.List() {
		if p.Draft.Name == name || p.ID == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no pack named %q", name)
}

func newPackCreateCmd(app *App) *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new pack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := app.engine.Create(args[0], size, nil)
			if _, err := app.engine.Commit(cmd.Context(), p.ID); err != nil {
				return err
			}
			fmt.Printf("Created pack %q with %d slots.\n", args[0], p.Draft.Size)
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "size", models.DefaultPackSize, "Slot capacity")
	return cmd
}

func newPackListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active packs",
		RunE: func(cmd *cobra.Command, args []string) error {
			packs := app.engine.List()
			if len(packs) == 0 {
				fmt.Println("No packs.")
				return nil
			}
			for _, p := range packs {
				filled := 0
				for _, id := range p.Draft.CardIDs {
					if id != models.EmptySlot {
						filled++
					}
				}
				fmt.Printf("%-30s %2d/%2d slots  %d revisions\n",
					p.Draft.Name, filled, p.Draft.Size, len(p.Revisions))
			}
			return nil
		},
	}
}

func newPackShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a pack's slots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := findPack(app, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("%s (%d slots)\n", p.Draft.Name, p.Draft.Size)
			if p.Draft.Archetype != "" {
				fmt.Printf("Archetype: %s\n", p.Draft.Archetype)
			}
			if len(p.Draft.Themes) > 0 {
				fmt.Printf("Themes:    %s\n", strings.Join(p.Draft.Themes, ", "))
			}
			for i, card := range p.Cards {
				label := ""
				if i < len(p.Draft.Slots) && p.Draft.Slots[i] != "" {
					label = " [" + p.Draft.Slots[i] + "]"
				}
				name := "(empty)"
				if card != nil {
					name = card.Name
					if p.Draft.Signpost == card.ID {
						name += " *"
					}
				}
				fmt.Printf("%3d. %s%s\n", i, name, label)
			}
			return nil
		},
	}
}

func newPackSetCmd(app *App) *cobra.Command {
	var (
		clear     bool
		signpost  bool
		rename    string
		archetype string
		themes    []string
		label     string
		moveTo    int
	)
	cmd := &cobra.Command{
		Use:   "set <pack> [slot] [card name]",
		Short: "Edit a pack's slots or metadata, then commit",
		Long: `Applies one edit and commits it as a new revision. Slot edits take a
slot index and, unless --clear is given, a card name resolved against
the catalog.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := findPack(app, args[0])
			if err != nil {
				return err
			}

			switch {
			case rename != "":
				if err := app.engine.Rename(p.ID, rename); err != nil {
					return err
				}
			case archetype != "" || len(themes) > 0:
				if err := app.engine.SetMetadata(p.ID, archetype, themes); err != nil {
					return err
				}
			default:
				if len(args) < 2 {
					return fmt.Errorf("a slot index is required")
				}
				slot, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid slot index %q", args[1])
				}

				switch {
				case clear:
					ok, err := app.engine.ClearSlot(p.ID, slot)
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("slot %d is out of range", slot)
					}
				case label != "":
					ok, err := app.engine.SetSlotLabel(p.ID, slot, label)
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("slot %d is out of range", slot)
					}
				case cmd.Flags().Changed("move-to"):
					ok, err := app.engine.MoveSlot(p.ID, slot, moveTo)
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("cannot move slot %d to %d", slot, moveTo)
					}
				default:
					if len(args) < 3 {
						return fmt.Errorf("a card name is required")
					}
					card, err := resolveCard(app, cmd, strings.Join(args[2:], " "))
					if err != nil {
						return err
					}
					ok, err := app.engine.SetSlot(ctx, p.ID, slot, card.ID)
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("slot %d is out of range", slot)
					}
					if signpost {
						if _, err := app.engine.SetSignpost(p.ID, card.ID); err != nil {
							return err
						}
					}
				}
			}

			rev, err := app.engine.Commit(ctx, p.ID)
			if err != nil {
				return err
			}
			fmt.Printf("Committed revision %d: %s\n", rev.Seq, rev.Reason)
			return nil
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "Empty the slot")
	cmd.Flags().BoolVar(&signpost, "signpost", false, "Also mark the card as the pack's signpost")
	cmd.Flags().StringVar(&rename, "rename", "", "Rename the pack")
	cmd.Flags().StringVar(&archetype, "archetype", "", "Set the archetype")
	cmd.Flags().StringSliceVar(&themes, "theme", nil, "Set the themes")
	cmd.Flags().StringVar(&label, "label", "", "Set the slot's role label")
	cmd.Flags().IntVar(&moveTo, "move-to", 0, "Move the slot's card to this slot")
	return cmd
}

func resolveCard(app *App, cmd *cobra.Command, name string) (*models.Card, error) {
	byName, err := app.cards.GetByNames(cmd.Context(), []string{name})
	if err != nil {
		return nil, err
	}
	if card, ok := byName[name]; ok {
		return card, nil
	}

	// Fall back to a prefix search so close names produce a hint.
	matches, err := app.searcher.Search(cmd.Context(), name)
	if err != nil {
		return nil, err
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	if len(matches) > 1 {
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Name
		}
		return nil, fmt.Errorf("ambiguous card name %q; candidates: %s", name, strings.Join(names, ", "))
	}
	return nil, fmt.Errorf("no card named %q in the catalog", name)
}

func newPackCommitCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "commit <name>",
		Short: "Commit a pack's provisional changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := findPack(app, args[0])
			if err != nil {
				return err
			}
			if !app.engine.IsDirty(p.ID) {
				fmt.Println("Nothing to commit.")
				return nil
			}
			rev, err := app.engine.Commit(cmd.Context(), p.ID)
			if err != nil {
				return err
			}
			fmt.Printf("Committed revision %d: %s\n", rev.Seq, rev.Reason)
			return nil
		},
	}
}

func newPackDiscardCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "discard <name>",
		Short: "Discard a pack's provisional changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := findPack(app, args[0])
			if err != nil {
				return err
			}
			if err := app.engine.Discard(cmd.Context(), p.ID); err != nil {
				return err
			}
			fmt.Println("Changes discarded.")
			return nil
		},
	}
}

func newPackDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Soft-delete a pack (history is retained)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := findPack(app, args[0])
			if err != nil {
				return err
			}
			if err := app.engine.Delete(cmd.Context(), p.ID, app.confirmer()); err != nil {
				return err
			}
			fmt.Printf("Deleted pack %q.\n", args[0])
			return nil
		},
	}
}

func newPackRevertCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "revert <name> <revision>",
		Short: "Append a new revision copying a historical one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := findPack(app, args[0])
			if err != nil {
				return err
			}
			seq, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid revision %q", args[1])
			}
			rev, err := app.engine.Revert(cmd.Context(), p.ID, seq, app.confirmer())
			if err != nil {
				return err
			}
			fmt.Printf("Committed revision %d: %s\n", rev.Seq, rev.Reason)
			return nil
		},
	}
}

func newPackHistoryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "history <name>",
		Short: "Show a pack's revision log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := findPack(app, args[0])
			if err != nil {
				return err
			}
			for _, rev := range p.Revisions {
				fmt.Printf("%3d  %s  %s\n", rev.Seq,
					rev.Timestamp.Local().Format("2006-01-02 15:04"), rev.Reason)
			}
			return nil
		},
	}
}

func newPackExportCmd(app *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every pack to a portable JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := app.engine.ExportJSON(cmd.Context(), app.dirtyExportPrompt)
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

// dirtyExportPrompt asks what to do about uncommitted packs before an
// export: commit them first, export the drafts as they stand, or abort
// the export. --yes commits.
func (a *App) dirtyExportPrompt(dirtyNames []string) pack.DirtyDecision {
	if a.assumeYes {
		return pack.CommitDirty
	}

	fmt.Printf("Uncommitted changes in: %s\n", strings.Join(dirtyNames, ", "))
	fmt.Print("[c]ommit them first, [e]xport the drafts as they stand, or [a]bort? ")
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return pack.AbortExport
	}
	return parseDirtyExportAnswer(answer)
}

func parseDirtyExportAnswer(answer string) pack.DirtyDecision {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "c", "commit":
		return pack.CommitDirty
	case "e", "export":
		return pack.ExportDirty
	default:
		return pack.AbortExport
	}
}

func newPackImportCmd(app *App) *cobra.Command {
	var asCopy bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import packs from a portable JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			results, err := app.engine.Import(cmd.Context(), payload, func(name string) pack.CollisionChoice {
				if asCopy {
					return pack.ImportAsCopy
				}
				if app.confirmer().Confirm(fmt.Sprintf("A pack named %q already exists. Overwrite it? (declining imports a copy)", name)) {
					return pack.Overwrite
				}
				return pack.ImportAsCopy
			})
			var formatErr *pack.ImportFormatError
			if errors.As(err, &formatErr) {
				return fmt.Errorf("%s (nothing was imported)", formatErr.Reason)
			}
			if err != nil {
				return err
			}

			for _, result := range results {
				note := ""
				if result.Copied {
					note = " (copy)"
				}
				if result.Unresolved > 0 {
					note += fmt.Sprintf(" [%d names not in catalog]", result.Unresolved)
				}
				fmt.Printf("Imported %q%s\n", result.Name, note)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asCopy, "as-copy", false, "Always import colliding packs as copies")
	return cmd
}
