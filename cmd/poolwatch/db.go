package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"poolwatch/internal/config"
	"poolwatch/internal/storage/sqlite"
)

func newDBCommand() *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the embedded SQLite database",
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE:  runDBMigrate,
	}
	migrateCmd.Flags().String("db-path", "./data/poolwatch.db", "SQLite database path")
	migrateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	dbCmd.AddCommand(migrateCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE:  runDBVersion,
	}
	versionCmd.Flags().String("db-path", "./data/poolwatch.db", "SQLite database path")
	dbCmd.AddCommand(versionCmd)

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the database file so the next start recreates it",
		RunE:  runDBReset,
	}
	resetCmd.Flags().String("db-path", "./data/poolwatch.db", "SQLite database path")
	resetCmd.Flags().Bool("force", false, "actually delete the database")
	dbCmd.AddCommand(resetCmd)

	return dbCmd
}

func runDBMigrate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := sqlite.OpenDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	from, to, err := sqlite.Migrate(db, logger)
	if err != nil {
		return err
	}

	if from == to {
		fmt.Printf("schema up to date at version %d\n", to)
		return nil
	}
	fmt.Printf("migrated schema from version %d to %d\n", from, to)
	return nil
}

func runDBVersion(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfg.DBPath); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("no database at %s", cfg.DBPath)
	}

	db, err := sqlite.OpenDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := sqlite.SchemaVersion(db)
	if err != nil {
		return err
	}

	fmt.Printf("schema version %d (latest %d)\n", version, len(sqlite.Migrations))
	return nil
}

func runDBReset(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	force, _ := cmd.Flags().GetBool("force")
	if !force {
		return fmt.Errorf("refusing to delete %s without --force", cfg.DBPath)
	}

	// WAL mode leaves -wal and -shm files next to the database.
	removed := false
	for _, path := range []string{cfg.DBPath, cfg.DBPath + "-wal", cfg.DBPath + "-shm"} {
		err := os.Remove(path)
		if err == nil {
			if path == cfg.DBPath {
				removed = true
			}
			continue
		}
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}

	if !removed {
		fmt.Printf("no database at %s\n", cfg.DBPath)
		return nil
	}
	fmt.Printf("removed %s, the schema is recreated on next start\n", cfg.DBPath)
	return nil
}
