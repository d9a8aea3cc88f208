package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urbanoasis/farmstand-backend/pkg/migrate"
)

func TestMigrationDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("migrations dir failed validation: %v", err)
	}
}

func TestOrdersMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_orders.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CHECK (total >= 0)",
		"CHECK (payment_method IN ('cash', 'card', 'voucher'))",
		"CREATE INDEX IF NOT EXISTS idx_orders_created_at",
		"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS order_items",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCartsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_carts.sql")

	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_cart_records_device_id",
		"CHECK (quantity > 0)",
		"CHECK (unit IN ('lb', 'each'))",
		"FOREIGN KEY (cart_id) REFERENCES cart_records(id) ON DELETE CASCADE",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOutboxMigrationContainsPendingIndex(t *testing.T) {
	content := readMigration(t, "*_create_outbox_events.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS outbox_events",
		"attempt_count INTEGER NOT NULL DEFAULT 0",
		"CREATE INDEX IF NOT EXISTS idx_outbox_events_pending",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %q found", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
