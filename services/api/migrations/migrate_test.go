package migrations_test

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/Pain0402/CoolStyle/services/api/internal/testutil"
	"github.com/Pain0402/CoolStyle/services/api/migrations"
)

func TestApply_RecordsMigrations(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()

	if _, err := pool.Exec(ctx, `DROP TABLE IF EXISTS schema_migrations`); err != nil {
		t.Fatalf("drop schema_migrations: %v", err)
	}

	if _, err := pool.Exec(ctx, `DROP TABLE IF EXISTS order_items, orders, product_variants, products CASCADE`); err != nil {
		t.Fatalf("drop tables: %v", err)
	}

	applied, err := migrations.ApplyWithLogger(ctx, pool, zap.NewNop())
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	names, err := migrations.Names()
	if err != nil {
		t.Fatalf("list migrations: %v", err)
	}
	if len(applied) != len(names) {
		t.Fatalf("expected %d migrations applied, got %v", len(names), applied)
	}

	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count < 2 {
		t.Fatalf("expected at least 2 migrations, got %d", count)
	}

	reapplied, err := migrations.ApplyWithLogger(ctx, pool, zap.NewNop())
	if err != nil {
		t.Fatalf("re-apply migrations: %v", err)
	}
	if len(reapplied) != 0 {
		t.Fatalf("expected nothing re-applied, got %v", reapplied)
	}

	var count2 int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&count2); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count2 != count {
		t.Fatalf("expected migration count unchanged, got %d vs %d", count2, count)
	}
}

func TestNames_Ordered(t *testing.T) {
	names, err := migrations.Names()
	if err != nil {
		t.Fatalf("list migrations: %v", err)
	}
	want := []string{"0001_catalog.sql", "0002_orders.sql"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}
