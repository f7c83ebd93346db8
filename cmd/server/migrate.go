package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg, log)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.RunMigrations(); err != nil {
				return err
			}
			log.Info("Migrations completed successfully")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations (default one step)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("steps must be a positive integer, got %q", args[0])
				}
				steps = n
			}

			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg, log)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.RollbackMigrations(steps); err != nil {
				return err
			}
			log.WithField("steps", steps).Info("Migrations rolled back")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg, log)
			if err != nil {
				return err
			}
			defer db.Close()

			v, dirty, err := db.MigrationVersion()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", v, dirty)
			return nil
		},
	})

	return cmd
}
