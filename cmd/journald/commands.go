package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-journal-backend/internal/config"
	"github.com/tbourn/go-journal-backend/internal/domain"
	"github.com/tbourn/go-journal-backend/internal/repo"
	"github.com/tbourn/go-journal-backend/internal/services"
	"github.com/tbourn/go-journal-backend/internal/sysutil"
)

// openStore opens the configured SQLite store for offline tooling. The
// caller must invoke the returned closer.
func openStore() (*gorm.DB, func(), error) {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	sysutil.SetLogLevel(cfg.LogLevel)

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, nil, fmt.Errorf("migrating store: %w", err)
	}
	closer := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return db, closer, nil
}

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the full store as a JSON snapshot",
	Long: `Export the full store as a JSON snapshot.

The snapshot contains every entry, every analysis record, and the id
counter, so an import reproduces the store exactly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		db, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		snap, err := services.NewEntryService(db).ExportSnapshot(context.Background())
		if err != nil {
			return fmt.Errorf("exporting snapshot: %w", err)
		}

		writer := os.Stdout
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			writer = f
		}

		enc := json.NewEncoder(writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return err
		}
		if output != "" {
			printSuccess("Exported %d entries to %s", len(snap.Entries), output)
		}
		return nil
	},
}

// --- import ---

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the store with a JSON snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("Import replaces ALL stored entries. Use --confirm to proceed.")
			return nil
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading snapshot: %w", err)
		}
		var snap domain.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return fmt.Errorf("invalid snapshot JSON: %w", err)
		}

		db, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		if err := services.NewEntryService(db).ImportSnapshot(context.Background(), &snap); err != nil {
			return fmt.Errorf("importing snapshot: %w", err)
		}
		printSuccess("Imported %d entries, %d analyses", len(snap.Entries), len(snap.Analyses))
		return nil
	},
}

// --- check ---

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run an integrity scan over the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		issues, err := services.NewEntryService(db).CheckIntegrity(context.Background())
		if err != nil {
			return fmt.Errorf("integrity scan: %w", err)
		}
		if len(issues) == 0 {
			printSuccess("Store is clean")
			return nil
		}
		for _, issue := range issues {
			printError("%s (entry %d): %s", issue.Kind, issue.EntryID, issue.Detail)
		}
		return fmt.Errorf("%d integrity issue(s) found", len(issues))
	},
}

func init() {
	exportCmd.Flags().String("output", "", "output file path (default: stdout)")
	importCmd.Flags().Bool("confirm", false, "confirm replacing the store")
}
