package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/twofactor/internal/config"
	"github.com/dmitrymomot/twofactor/pkg/mongo"
	"github.com/dmitrymomot/twofactor/pkg/pg"
	"github.com/dmitrymomot/twofactor/svc/account"
)

func newUserCmd(envFiles *[]string) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	var email, password string
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user with a password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg config.Users
			if err := config.Load(&cfg, *envFiles...); err != nil {
				return err
			}
			ctx := cmd.Context()

			var storage account.Storage
			switch cfg.StorageDriver {
			case config.StoragePostgres:
				pool, err := pg.Connect(ctx, cfg.PG)
				if err != nil {
					return err
				}
				defer pool.Close()
				storage = account.NewPGStore(pool)
			case config.StorageMongo:
				db, err := mongo.NewDatabase(ctx, cfg.Mongo)
				if err != nil {
					return err
				}
				defer func() { _ = db.Client().Disconnect(ctx) }()
				store := account.NewMongoStore(db)
				if err := store.EnsureIndexes(ctx); err != nil {
					return err
				}
				storage = store
			default:
				return errors.New("user add needs a persistent STORAGE_DRIVER (postgres or mongo)")
			}

			id, err := account.NewService(storage).CreateUser(ctx, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id.String())
			return nil
		},
	}
	addCmd.Flags().StringVar(&email, "email", "", "user email")
	addCmd.Flags().StringVar(&password, "password", "", "user password")
	_ = addCmd.MarkFlagRequired("email")
	_ = addCmd.MarkFlagRequired("password")

	userCmd.AddCommand(addCmd)
	return userCmd
}
