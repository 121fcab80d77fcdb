package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerrad567/kiosk-fleet-core/internal/audit"
	"github.com/nerrad567/kiosk-fleet-core/internal/document"
)

func (a *app) documentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "Read and replace the global schedule and settings",
	}

	var limit int
	historyCmd := &cobra.Command{
		Use:   "history <schedule|settings>",
		Short: "List stored versions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := document.ParseType(args[0])
			if err != nil {
				return err
			}
			return a.withFleet(cmd, func(ctx context.Context, f *fleet) error {
				docs, err := f.store.History(ctx, t, limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), docs)
			})
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of versions to show")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show <schedule|settings>",
			Short: "Print the active version",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				t, err := document.ParseType(args[0])
				if err != nil {
					return err
				}
				return a.withFleet(cmd, func(ctx context.Context, f *fleet) error {
					doc, err := f.store.Active(ctx, t)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), doc)
				})
			},
		},
		&cobra.Command{
			Use:   "set <schedule|settings> <file|->",
			Short: "Replace the active version with a JSON file (- reads stdin)",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				t, err := document.ParseType(args[0])
				if err != nil {
					return err
				}
				raw, err := readInput(cmd, args[1])
				if err != nil {
					return err
				}
				return a.withFleet(cmd, func(ctx context.Context, f *fleet) error {
					doc, created, err := f.store.Save(ctx, t, raw)
					if err != nil {
						return err
					}
					if err := f.audit.Create(ctx, audit.DocumentSaved(ctx, string(t), doc.Version, created)); err != nil {
						return fmt.Errorf("writing audit entry: %w", err)
					}
					if created {
						fmt.Fprintf(cmd.OutOrStdout(), "%s saved as version %d\n", t, doc.Version)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "%s unchanged at version %d\n", t, doc.Version)
					}
					return nil
				})
			},
		},
		historyCmd,
	)
	return cmd
}

func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}
