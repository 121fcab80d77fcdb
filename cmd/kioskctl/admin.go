package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nerrad567/kiosk-fleet-core/internal/audit"
	"github.com/nerrad567/kiosk-fleet-core/internal/telemetry"
)

func (a *app) auditCmd() *cobra.Command {
	var filter audit.Filter

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the audit trail, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withFleet(cmd, func(ctx context.Context, f *fleet) error {
				result, err := f.audit.List(ctx, filter)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TIME\tACTION\tENTITY\tACTOR\tSOURCE")
				fmt.Fprintln(w, "----\t------\t------\t-----\t------")
				for _, l := range result.Logs {
					fmt.Fprintf(w, "%s\t%s\t%s:%s\t%s\t%s\n",
						l.CreatedAt.Local().Format("2006-01-02 15:04:05"),
						l.Action, l.EntityType, l.EntityID, orDash(l.Actor), l.Source)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d of %d entries\n", len(result.Logs), result.Total)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filter.Action, "action", "", "Filter by action (e.g. device.paired)")
	cmd.Flags().StringVar(&filter.EntityType, "entity-type", "", "Filter by entity type")
	cmd.Flags().StringVar(&filter.EntityID, "entity-id", "", "Filter by entity ID")
	cmd.Flags().StringVar(&filter.Actor, "actor-filter", "", "Filter by actor")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 20, "Number of entries to show")
	return cmd
}

func (a *app) schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the telemetry schemas heartbeats are sanitized with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd.OutOrStdout(), telemetry.DefaultSchemas())
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check <file|->",
		Short: "Show how a heartbeat body would be stored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			var body map[string]any
			if err := json.Unmarshal(data, &body); err != nil {
				return fmt.Errorf("heartbeat must be a JSON object: %w", err)
			}
			clean := telemetry.DefaultSchemas().Clean(telemetry.ExtractPayload(body))
			return printJSON(cmd.OutOrStdout(), clean)
		},
	})
	return cmd
}

func (a *app) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Show or change the database schema version",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "List applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				// openDB migrates; status reads the raw database instead.
				cfg, err := a.loadConfig()
				if err != nil {
					return err
				}
				db, err := openRaw(cfg)
				if err != nil {
					return err
				}
				defer db.Close() //nolint:errcheck // read-only

				applied, pending, err := db.GetMigrationStatus(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tSTATE")
				for _, m := range applied {
					fmt.Fprintf(w, "%s\tapplied %s\n", m.Version, m.AppliedAt.Local().Format("2006-01-02 15:04"))
				}
				for _, m := range pending {
					fmt.Fprintf(w, "%s\tpending (%s)\n", m.Version, m.Name)
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, db, err := a.openDB(cmd.Context())
				if err != nil {
					return err
				}
				defer db.Close() //nolint:errcheck // nothing left to flush
				fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := a.loadConfig()
				if err != nil {
					return err
				}
				db, err := openRaw(cfg)
				if err != nil {
					return err
				}
				defer db.Close() //nolint:errcheck // nothing left to flush

				if err := db.MigrateDown(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "rolled back one migration")
				return nil
			},
		},
	)
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
