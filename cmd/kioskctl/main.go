// kioskctl is the operator command line for a kiosk fleet database.
//
// It works directly on the SQLite database kioskd uses, so it can manage
// the fleet while kioskd is stopped. Mutations go through the same device
// registry and are recorded in the audit trail with source "cli".
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "github.com/nerrad567/kiosk-fleet-core/migrations"

	"github.com/nerrad567/kiosk-fleet-core/internal/audit"
	"github.com/nerrad567/kiosk-fleet-core/internal/device"
	"github.com/nerrad567/kiosk-fleet-core/internal/document"
	"github.com/nerrad567/kiosk-fleet-core/internal/infrastructure/config"
	"github.com/nerrad567/kiosk-fleet-core/internal/infrastructure/database"
	"github.com/nerrad567/kiosk-fleet-core/internal/resolver"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds the flags shared by every command.
type app struct {
	configPath string
	dbPath     string
	actor      string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "kioskctl",
		Short:         "Kiosk fleet CLI",
		Long:          "Command-line tool for inspecting and managing a kiosk fleet database.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", configPathFromEnv(), "Configuration file path")
	root.PersistentFlags().StringVarP(&a.dbPath, "database", "d", "", "Database file path (overrides the config file)")
	root.PersistentFlags().StringVar(&a.actor, "actor", defaultActor(), "Name recorded in the audit trail")

	root.AddCommand(
		a.devicesCmd(),
		a.pairingsCmd(),
		a.resolveCmd(),
		a.documentsCmd(),
		a.operatorsCmd(),
		a.auditCmd(),
		a.tokenCmd(),
		a.schemaCmd(),
		a.migrateCmd(),
		a.eventsCmd(),
	)
	return root
}

func configPathFromEnv() string {
	if path := os.Getenv("KIOSK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func defaultActor() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "kioskctl"
}

// loadConfig reads the config file and applies --database.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if a.dbPath != "" {
		cfg.Database.Path = a.dbPath
	}
	return cfg, nil
}

// openDB opens and migrates the fleet database.
func (a *app) openDB(ctx context.Context) (*config.Config, *database.DB, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	db, err := openRaw(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	return cfg, db, nil
}

// openRaw opens the database without migrating it.
func openRaw(cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// fleet is the set of domain services a command works with.
type fleet struct {
	cfg      *config.Config
	db       *database.DB
	registry *device.Registry
	store    *document.Store
	resolver *resolver.Resolver
	audit    *audit.SQLiteRepository
}

// withFleet opens the database, wires the services and runs fn with a
// context carrying the CLI actor.
func (a *app) withFleet(cmd *cobra.Command, fn func(ctx context.Context, f *fleet) error) error {
	ctx := cmd.Context()
	cfg, db, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // read-mostly CLI session

	auditRepo := audit.NewSQLiteRepository(db.DB)
	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB), device.Options{
		PairingTTL:           cfg.Fleet.PairingTTL(),
		OnlineThreshold:      cfg.Fleet.OnlineThreshold(),
		ClaimedCodeRetention: cfg.Fleet.ClaimedCodeRetention(),
	})
	registry.AddNotifier(audit.NewNotifier(auditRepo))

	store := document.NewStore(db.DB)
	if err := store.EnsureDefaults(ctx); err != nil {
		return fmt.Errorf("seeding default documents: %w", err)
	}

	f := &fleet{
		cfg:      cfg,
		db:       db,
		registry: registry,
		store:    store,
		resolver: resolver.New(registry, store),
		audit:    auditRepo,
	}
	return fn(audit.WithActor(ctx, a.actor, audit.SourceCLI), f)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
