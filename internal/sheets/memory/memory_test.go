package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
)

func TestExporter(t *testing.T) {
	x := New()
	n, err := x.Export(context.Background(), []core.Expense{{
		Description:   "Harina",
		Currency:      core.CurrencyBs,
		AmountBs:      decimal.RequireFromString("365"),
		AmountUSD:     decimal.RequireFromString("10"),
		Type:          core.DailyPurchases,
		PaymentMethod: core.BsAccount,
		Date:          core.NewDate(2024, 3, 1),
	}})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("Export() = %d, want 1", n)
	}
	rows := x.Rows()
	want := []any{"2024-03-01", "Harina", "Bs", "365.00", "10.00", "comprasDiarias", "cuentaBs"}
	for i, v := range want {
		if rows[0][i] != v {
			t.Errorf("column %d = %v, want %v", i, rows[0][i], v)
		}
	}
}

func TestExporter_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Export(ctx, []core.Expense{{}}); err == nil {
		t.Error("Export() with canceled context error = nil")
	}
}
