package db

import (
	"context"
	"fmt"

	"github.com/framelight/previz-server/internal/config"
	"github.com/framelight/previz-server/internal/db/drivers"
	"github.com/uptrace/bun/extra/bundebug"
)

func NewConnection(ctx context.Context, config *config.Config) (drivers.Driver, error) {
	var (
		driver drivers.Driver
		err    error
	)

	switch config.DB.Driver {
	case "sqlite":
		driver, err = drivers.NewSQLiteDriver(ctx, "libsql", config.DB.DSN)
	case "pg":
		driver, err = drivers.NewPGDriver(ctx, config.DB.DSN)
	default:
		return nil, fmt.Errorf("invalid database driver: %s", config.DB.Driver)
	}
	if err != nil {
		return nil, err
	}

	// Query logging is off unless BUNDEBUG is set in the environment.
	driver.GetDB().AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithEnabled(false),
		bundebug.FromEnv(),
	))

	return driver, nil
}
