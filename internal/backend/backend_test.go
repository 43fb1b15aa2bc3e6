// ABOUTME: Tests for the backend contract helpers.
// ABOUTME: Covers qualified table name validation.

package backend

import (
	"errors"
	"testing"
)

func TestSplitTableName(t *testing.T) {
	t.Run("valid name", func(t *testing.T) {
		dataset, table, err := SplitTableName("sales.orders")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dataset != "sales" || table != "orders" {
			t.Errorf("got (%q, %q), want (sales, orders)", dataset, table)
		}
	})

	invalid := []string{
		"orders",
		"sales.orders.extra",
		".orders",
		"sales.",
		".",
		"",
	}
	for _, name := range invalid {
		t.Run("invalid "+name, func(t *testing.T) {
			_, _, err := SplitTableName(name)
			if !errors.Is(err, ErrInvalidTableName) {
				t.Fatalf("SplitTableName(%q) error = %v, want ErrInvalidTableName", name, err)
			}
		})
	}
}
