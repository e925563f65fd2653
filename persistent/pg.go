package persistent

import (
	"context"
	"database/sql"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	_ "github.com/uptrace/bun/driver/pgdriver"
)

// PgOpen connects to postgres and fails hard - a backend without its user
// directory has nothing to serve.
func PgOpen(ctx context.Context, pgDsn string) *bun.DB {
	sqldb, err := sql.Open("pg", pgDsn)
	if err != nil {
		logrus.WithError(err).Fatalln("Could not open pg database.")
	}
	if err := sqldb.PingContext(ctx); err != nil {
		logrus.WithError(err).Fatalln("Could not ping pg database.")
	}
	return bun.NewDB(sqldb, pgdialect.New())
}
