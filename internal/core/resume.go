package core

import "github.com/shopspring/decimal"

// PaymentMethodTotal aggregates expenses by payment method.
type PaymentMethodTotal struct {
	PaymentMethod string
	TotalUSD      decimal.Decimal
	TotalBs       decimal.Decimal
}

// TypeTotal aggregates expenses by expense type in their original currency.
type TypeTotal struct {
	Type     string
	Currency string
	Amount   decimal.Decimal
}

// ExpenseResume is the backend's summary of the expenses in a date range.
type ExpenseResume struct {
	Start           Date
	End             Date
	Expenses        []Expense
	TotalUSD        decimal.Decimal
	TotalBs         decimal.Decimal
	ByPaymentMethod []PaymentMethodTotal
	ByType          []TypeTotal
}

// Overview is what the main menu shows: recent expenses and invoices still to pay.
type Overview struct {
	Expenses        []Expense
	PendingInvoices []Invoice
}

// Pending filters out paid invoices.
func Pending(invoices []Invoice) []Invoice {
	out := make([]Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if !inv.Paid {
			out = append(out, inv)
		}
	}
	return out
}
