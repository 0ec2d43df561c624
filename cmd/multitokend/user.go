package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	multitoken "github.com/goliatone/go-multitoken"
)

type userOptions struct {
	username  string
	email     string
	password  string
	superuser bool
	external  bool
}

func newUserCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage users of the reference credential store"}
	cmd.AddCommand(newUserCreateCommand(a))
	return cmd
}

func newUserCreateCommand(a *app) *cobra.Command {
	opts := &userOptions{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.username == "" {
				return errors.New("--username is required")
			}
			if opts.password == "" && !opts.external {
				return errors.New("--password is required unless --external is set")
			}

			return a.withDB(cmd.Context(), func(ctx context.Context, db *bun.DB) error {
				user := &multitoken.User{
					Username:  opts.username,
					Email:     opts.email,
					Active:    true,
					Superuser: opts.superuser,
				}

				if opts.external {
					user.SetUnusablePassword()
				} else {
					hash, err := multitoken.HashPasswordWithCost(opts.password, a.cfg.BcryptCost)
					if err != nil {
						return err
					}
					user.PasswordHash = hash
				}

				created, err := multitoken.NewUsersRepository(db).Create(ctx, user)
				if err != nil {
					return err
				}
				a.logger.Info("user created", "user_id", created.ID, "username", created.Username)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.username, "username", "", "username")
	cmd.Flags().StringVar(&opts.email, "email", "", "email address")
	cmd.Flags().StringVar(&opts.password, "password", "", "password")
	cmd.Flags().BoolVar(&opts.superuser, "superuser", false, "create a superuser")
	cmd.Flags().BoolVar(&opts.external, "external", false, "externally managed password, it can not be set or reset")
	return cmd
}
