package cmd

import (
	"context"
	"fmt"

	"github.com/framelight/previz-server/internal/config"
	"github.com/framelight/previz-server/internal/db"
	"github.com/framelight/previz-server/internal/db/models"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Utility for database management",
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the previz tables if they do not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, err := db.NewConnection(cmd.Context(), config.MustGetConfig())
		if err != nil {
			return err
		}

		conn := driver.GetDB()
		err = conn.RunInTx(cmd.Context(), nil, func(ctx context.Context, tx bun.Tx) error {
			tables := []interface{}{
				(*models.Asset)(nil),
				(*models.APIKey)(nil),
			}

			for _, table := range tables {
				if _, err := tx.NewCreateTable().
					Model(table).
					IfNotExists().
					Exec(ctx); err != nil {
					return fmt.Errorf("failed to create table: %w", err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		fmt.Println("database initialized")
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbInitCmd)
}
