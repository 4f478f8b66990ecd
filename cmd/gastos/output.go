package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"gastos/internal/api"
	"gastos/internal/core"
	"gastos/internal/exchangerate"
	"gastos/internal/session"
)

// userMessage turns err into the text shown to the user.
func userMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrNotAuthenticated):
		return "you are not logged in, run: gastos login -u <username>"
	case errors.Is(err, api.ErrServerUnreachable):
		return api.ErrServerUnreachable.Error()
	case errors.Is(err, exchangerate.ErrSuperseded):
		return "the exchange rate changed while it was being saved, check it with: gastos rate"
	case errors.Is(err, core.ErrInvalidRate):
		return "the exchange rate must be a positive number, e.g. 36.5 or 36,5"
	}
	return err.Error()
}

func printExpenses(w io.Writer, expenses []core.Expense) {
	if len(expenses) == 0 {
		fmt.Fprintln(w, "No expenses")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tDESCRIPTION\tTYPE\tMETHOD\tBS\t$")
	for _, x := range expenses {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			x.Date, x.Description, x.Type, x.PaymentMethod,
			x.AmountBs.StringFixed(2), x.AmountUSD.StringFixed(2))
	}
	_ = tw.Flush()
}

func printInvoices(w io.Writer, invoices []core.Invoice) {
	if len(invoices) == 0 {
		fmt.Fprintln(w, "No pending invoices")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDUE\tSUPPLIER\tAMOUNT\tPAID")
	for _, inv := range invoices {
		paid := "no"
		if inv.Paid {
			paid = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%s\n",
			inv.ID, inv.DueDate, inv.Supplier, inv.Amount.StringFixed(2), inv.Currency, paid)
	}
	_ = tw.Flush()
}

func printResume(w io.Writer, r core.ExpenseResume) {
	fmt.Fprintf(w, "Expenses from %s to %s\n", r.Start, r.End)
	fmt.Fprintf(w, "Total: %s Bs / %s $\n\n", r.TotalBs.StringFixed(2), r.TotalUSD.StringFixed(2))

	if len(r.ByPaymentMethod) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "METHOD\tBS\t$")
		for _, t := range r.ByPaymentMethod {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", t.PaymentMethod, t.TotalBs.StringFixed(2), t.TotalUSD.StringFixed(2))
		}
		_ = tw.Flush()
		fmt.Fprintln(w)
	}
	if len(r.ByType) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TYPE\tAMOUNT")
		for _, t := range r.ByType {
			fmt.Fprintf(tw, "%s\t%s %s\n", t.Type, t.Amount.StringFixed(2), t.Currency)
		}
		_ = tw.Flush()
	}
}
