// Package memory is an in-process ExpenseExporter for tests and dry runs.
package memory

import (
	"context"
	"sync"

	"gastos/internal/core"
	"gastos/internal/sheets"
)

var _ sheets.ExpenseExporter = (*Exporter)(nil)

type Exporter struct {
	mu   sync.Mutex
	rows [][]any
}

func New() *Exporter {
	return &Exporter{}
}

// Export records one row per expense.
func (x *Exporter) Export(ctx context.Context, expenses []core.Expense) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, e := range expenses {
		x.rows = append(x.rows, sheets.Row(e))
	}
	return len(expenses), nil
}

// Rows returns a copy of every exported row.
func (x *Exporter) Rows() [][]any {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([][]any(nil), x.rows...)
}
