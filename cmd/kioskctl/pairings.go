package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func (a *app) pairingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pairings",
		Short: "Manage pairing codes",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List pending pairing codes",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withFleet(cmd, func(ctx context.Context, f *fleet) error {
					codes, err := f.registry.PendingPairings(ctx)
					if err != nil {
						return err
					}

					w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
					fmt.Fprintln(w, "CODE\tEXPIRES IN")
					fmt.Fprintln(w, "----\t----------")
					for _, p := range codes {
						fmt.Fprintf(w, "%s\t%s\n", p.Code, time.Until(p.ExpiresAt).Round(time.Second))
					}
					return w.Flush()
				})
			},
		},
		&cobra.Command{
			Use:   "claim <code> <name>",
			Short: "Claim a pairing code, creating a device",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withFleet(cmd, func(ctx context.Context, f *fleet) error {
					d, err := f.registry.Claim(ctx, args[0], args[1])
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "paired %s as %q\n", d.ID, d.Name)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "purge",
			Short: "Delete expired and old claimed codes now",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withFleet(cmd, func(ctx context.Context, f *fleet) error {
					n, err := f.registry.PurgeExpired(ctx, time.Now())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "purged %d codes\n", n)
					return nil
				})
			},
		},
	)
	return cmd
}

func (a *app) resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <device-id>",
		Short: "Print a device's effective schedule and settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withFleet(cmd, func(ctx context.Context, f *fleet) error {
				result, err := f.resolver.Resolve(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
}
