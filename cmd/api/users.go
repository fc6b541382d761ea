package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewUsersCmd creates the users subcommand for account maintenance.
func NewUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
	}

	var email string
	remove := &cobra.Command{
		Use:   "remove",
		Short: "Delete the account registered under an email",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				return oops.Code("FLAG_REQUIRED").Errorf("--email is required")
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.service.RemoveUser(cmd.Context(), email); err != nil {
				return err
			}

			cmd.Printf("removed %s\n", email)
			return nil
		},
	}
	remove.Flags().StringVar(&email, "email", "", "email of the account to remove")
	_ = remove.MarkFlagRequired("email")
	cmd.AddCommand(remove)

	return cmd
}
