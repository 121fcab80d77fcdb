package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/kiosk-fleet-core/internal/device"
	"github.com/nerrad567/kiosk-fleet-core/internal/telemetry"
)

func (a *app) devicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Inspect and manage paired devices",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List all devices with their presence",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withFleet(cmd, func(ctx context.Context, f *fleet) error {
					devices, err := f.registry.ListDevices(ctx, time.Now())
					if err != nil {
						return err
					}
					return printDevices(cmd, devices)
				})
			},
		},
		&cobra.Command{
			Use:   "show <device-id>",
			Short: "Show one device as JSON",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withFleet(cmd, func(ctx context.Context, f *fleet) error {
					d, err := f.registry.GetDevice(ctx, args[0])
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), d)
				})
			},
		},
		&cobra.Command{
			Use:   "history <device-id>",
			Short: "Show recent heartbeats, newest first",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withFleet(cmd, func(ctx context.Context, f *fleet) error {
					d, err := f.registry.GetDevice(ctx, args[0])
					if err != nil {
						return err
					}
					recorder := telemetry.NewRecorder(f.db.DB, f.cfg.Fleet.HistorySize)
					history, err := recorder.History(ctx, d.ID, time.Now())
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), history)
				})
			},
		},
		&cobra.Command{
			Use:   "rename <device-id> <name>",
			Short: "Rename a device",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withFleet(cmd, func(ctx context.Context, f *fleet) error {
					d, err := f.registry.Rename(ctx, args[0], args[1])
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s renamed to %q\n", d.ID, d.Name)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "mode <device-id> <auto|override>",
			Short: "Switch a device between global and override configuration",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withFleet(cmd, func(ctx context.Context, f *fleet) error {
					d, err := f.registry.SetMode(ctx, args[0], args[1])
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s mode is now %s\n", d.ID, d.Mode)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "clear-overrides <device-id>",
			Short: "Remove a device's schedule and settings overrides",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withFleet(cmd, func(ctx context.Context, f *fleet) error {
					d, err := f.registry.ClearOverrides(ctx, args[0])
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s overrides cleared\n", d.ID)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "unpair <device-id>",
			Short: "Remove a device and its history",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withFleet(cmd, func(ctx context.Context, f *fleet) error {
					if err := f.registry.Unpair(ctx, args[0]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s unpaired\n", device.NormalizeID(args[0]))
					return nil
				})
			},
		},
	)
	return cmd
}

func printDevices(cmd *cobra.Command, devices []device.Device) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tMODE\tPRESENCE\tLAST SEEN")
	fmt.Fprintln(w, "--\t----\t----\t--------\t---------")

	for _, d := range devices {
		lastSeen := "-"
		if d.LastSeenAt != nil {
			lastSeen = d.LastSeenAt.Local().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.Name, d.Mode, d.Presence, lastSeen)
	}
	return w.Flush()
}
