// Package cli implements the trappist command-line interface.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robdennis/trappist/internal/catalog"
	"github.com/robdennis/trappist/internal/config"
	"github.com/robdennis/trappist/internal/pack"
	"github.com/robdennis/trappist/internal/scryfall"
	"github.com/robdennis/trappist/internal/storage"
	"github.com/robdennis/trappist/internal/storage/repository"
	"github.com/robdennis/trappist/internal/tag"
)

// App wires the storage, engines, and clients behind the commands.
type App struct {
	cfg    *config.Config
	db     *storage.DB
	logger *log.Logger

	cards repository.CardRepository
	packs repository.PackRepository

	importer *catalog.Importer
	searcher *catalog.Searcher
	engine   *pack.Engine
	tags     *tag.Engine
	scry     *scryfall.Client

	// Flags
	dbPath    string
	assumeYes bool
	debug     bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	app := &App{}

	rootCmd := &cobra.Command{
		Use:   "trappist",
		Short: "Local-first pack building for trading card games",
		Long: `Trappist keeps a local card catalog, append-only pack histories,
and tag classification rules in an embedded store, with portable
JSON import/export for sharing packs between installs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.open()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.close()
		},
	}

	rootCmd.PersistentFlags().StringVar(&app.dbPath, "db", "", "Use an alternate store path")
	rootCmd.PersistentFlags().BoolVarP(&app.assumeYes, "yes", "y", false, "Answer yes to every confirmation")
	rootCmd.PersistentFlags().BoolVar(&app.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newCatalogCmd(app))
	rootCmd.AddCommand(newSearchCmd(app))
	rootCmd.AddCommand(newPackCmd(app))
	rootCmd.AddCommand(newTagCmd(app))
	rootCmd.AddCommand(newBackupCmd(app))
	rootCmd.AddCommand(newWatchCmd(app))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the root command under the given context.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (a *App) open() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	a.logger = log.New(os.Stderr, "", log.LstdFlags)
	if !a.debug && !cfg.App.DebugMode {
		a.logger.SetOutput(io.Discard)
	}

	path := a.dbPath
	if path == "" {
		if path, err = cfg.StorePath(); err != nil {
			return err
		}
	}
	a.dbPath = path

	storeCfg := storage.DefaultConfig(path)
	storeCfg.AutoMigrate = true
	if timeout, err := cfg.GetBusyTimeout(); err == nil {
		storeCfg.BusyTimeout = timeout
	}
	storeCfg.JournalMode = cfg.Store.JournalMode
	storeCfg.Synchronous = cfg.Store.Synchronous

	db, err := storage.Open(storeCfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	a.db = db

	a.cards = repository.NewCardRepository(db)
	a.packs = repository.NewPackRepository(db)
	tagRepo := repository.NewTagRepository(db)

	a.scry = scryfall.NewClient()
	a.importer = catalog.NewImporter(a.cards, a.logger)
	a.searcher = catalog.NewSearcher(a.cards)
	a.engine = pack.NewEngine(a.packs, a.cards, a.logger)
	a.tags = tag.NewEngine(tagRepo, a.cards, a.scry, a.logger)
	return nil
}

func (a *App) close() error {
	if a.db == nil {
		return nil
	}
	db := a.db
	a.db = nil
	return db.Close()
}

// confirm prompts on the terminal unless --yes was given. It satisfies
// both engines' confirmer interfaces.
type confirm struct {
	assumeYes bool
}

// Confirm asks the user for a y/N answer.
func (c confirm) Confirm(message string) bool {
	if c.assumeYes {
		return true
	}
	fmt.Printf("%s [y/N]: ", message)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func (a *App) confirmer() confirm {
	return confirm{assumeYes: a.assumeYes}
}
