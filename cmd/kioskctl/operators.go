package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nerrad567/kiosk-fleet-core/internal/auth"
)

func (a *app) operatorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operators",
		Short: "Manage operator accounts for the admin API",
	}

	var (
		role     string
		password string
	)

	addCmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create an operator account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := auth.ParseRole(role)
			if err != nil {
				return err
			}
			if err := auth.ValidatePassword(password); err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			return a.withFleet(cmd, func(ctx context.Context, f *fleet) error {
				op := &auth.Operator{
					Username:     args[0],
					PasswordHash: hash,
					Role:         r,
					IsActive:     true,
				}
				if err := auth.NewOperatorRepository(f.db.DB).Create(ctx, op); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) as %s\n", op.Username, op.ID, op.Role)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&role, "role", string(auth.RoleOperator), "Role: viewer, operator or admin")
	addCmd.Flags().StringVar(&password, "password", "", "Initial password")
	_ = addCmd.MarkFlagRequired("password") //nolint:errcheck // flag is defined above

	passwdCmd := &cobra.Command{
		Use:   "passwd <username>",
		Short: "Set an operator's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := auth.ValidatePassword(password); err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			return a.withFleet(cmd, func(ctx context.Context, f *fleet) error {
				repo := auth.NewOperatorRepository(f.db.DB)
				op, err := repo.GetByUsername(ctx, args[0])
				if err != nil {
					return err
				}
				if err := repo.UpdatePassword(ctx, op.ID, hash); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "password updated for %s\n", op.Username)
				return nil
			})
		},
	}
	passwdCmd.Flags().StringVar(&password, "password", "", "New password")
	_ = passwdCmd.MarkFlagRequired("password") //nolint:errcheck // flag is defined above

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List operator accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withFleet(cmd, func(ctx context.Context, f *fleet) error {
				ops, err := auth.NewOperatorRepository(f.db.DB).List(ctx)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tUSERNAME\tROLE\tACTIVE")
				fmt.Fprintln(w, "--\t--------\t----\t------")
				for _, op := range ops {
					active := "N"
					if op.IsActive {
						active = "Y"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", op.ID, op.Username, op.Role, active)
				}
				return w.Flush()
			})
		},
	}

	cmd.AddCommand(listCmd, addCmd, passwdCmd)
	return cmd
}

func (a *app) tokenCmd() *cobra.Command {
	var (
		subject string
		role    string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token signed with the configured secret",
		Long: "Mint an access token signed with the configured secret.\n" +
			"Useful for scripts and for recovering access when no operator can log in.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			r, err := auth.ParseRole(role)
			if err != nil {
				return err
			}
			token, err := auth.GenerateAccessToken(subject, r, cfg.Security.JWT.Secret, cfg.Security.JWT.TokenTTL())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "kioskctl", "Token subject recorded as the audit actor")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleViewer), "Role: viewer, operator or admin")
	return cmd
}
