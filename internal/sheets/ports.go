// Package sheets exports records to spreadsheets.
package sheets

import (
	"context"

	"gastos/internal/core"
)

// ExpenseExporter appends expenses to an external sheet and returns how many
// rows were written.
type ExpenseExporter interface {
	Export(ctx context.Context, expenses []core.Expense) (int, error)
}

// Header is the column layout of exported rows.
var Header = []string{"Fecha", "Descripción", "Moneda", "Monto Bs", "Monto $", "Tipo", "Método de pago"}

// Row renders an expense in Header order.
func Row(e core.Expense) []any {
	return []any{
		e.Date.String(),
		e.Description,
		string(e.Currency),
		e.AmountBs.StringFixed(2),
		e.AmountUSD.StringFixed(2),
		string(e.Type),
		string(e.PaymentMethod),
	}
}
