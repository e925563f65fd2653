package persistent

import (
	"context"
	"os"
	"testing"

	"github.com/uptrace/bun"
)

// PgOpenTest connects to the postgres instance pointed at by
// TEST_POSTGRES_DSN and prepares the schema. Integration tests are skipped
// in -short mode and when no test database is provisioned.
func PgOpenTest(ctx context.Context, t *testing.T) *bun.DB {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	db := PgOpen(ctx, dsn)
	for _, model := range []interface{}{(*User)(nil), (*ActivityLog)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			t.Fatalf("create table: %s", err)
		}
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
