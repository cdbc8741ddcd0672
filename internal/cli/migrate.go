package cli

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"quizbot/internal/app"
	"quizbot/internal/db"
	"quizbot/internal/store"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configPath != "" {
				_ = os.Setenv("CONFIG_PATH", configPath)
			}
			cfg := app.LoadConfig()
			if cfg.DBDriver == "memory" {
				return errors.New("nothing to migrate: no database configured")
			}

			ctx := cmd.Context()
			conn, err := db.Open(ctx, cfg.DBDriver, cfg.DBDSN, db.DefaultConfig())
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := store.Migrate(ctx, conn, cfg.DBDriver); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Printf("schema up to date (%s)", cfg.DBDriver)
			return nil
		},
	}
}
