package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sdoering/warp/internal/config"
	"github.com/sdoering/warp/internal/database"
	"github.com/sdoering/warp/internal/repository"
	"github.com/sdoering/warp/internal/service"
)

func newInitDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create or upgrade the schema and bootstrap the admin account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := cfg.NewLogger()
			ctx := cmd.Context()

			db, err := database.Connect(ctx, cfg.Database, cfg.DatabaseInitRetries, cfg.DatabaseInitRetriesDelay, log)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			created, err := service.NewAccounts(repository.NewUserRepo(db), cfg.SecretKey, log).EnsureAdmin(ctx, cfg.AdminUser, cfg.AdminPassword)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema is up to date (%s)\n", db.Dialect)
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "created admin account %q\n", cfg.AdminUser)
			}
			return nil
		},
	}
}
