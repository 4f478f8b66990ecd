package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"gastos/internal/app"
	"gastos/internal/core"
	"gastos/internal/exchangerate"
	"gastos/internal/session"
)

// withApp opens the application, runs fn and closes it.
func withApp(ctx context.Context, e *env, fn func(a *app.App) error) (err error) {
	a, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return fn(a)
}

// withSession is withApp for commands that need a restored login.
func withSession(ctx context.Context, e *env, fn func(a *app.App, snap exchangerate.Snapshot) error) error {
	return withApp(ctx, e, func(a *app.App) error {
		sess, snap, err := a.Restore(ctx)
		if err != nil {
			return err
		}
		if sess.IsEmpty() {
			return session.ErrNotAuthenticated
		}
		return fn(a, snap)
	})
}

func runLogin(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "login")
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password (read from stdin when omitted)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *password == "" && *username != "" {
		fmt.Fprint(e.errOut, "Password: ")
		line, err := bufio.NewReader(e.in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read password: %w", err)
		}
		*password = strings.TrimRight(line, "\r\n")
	}

	return withApp(ctx, e, func(a *app.App) error {
		sess, snap, err := a.Login(ctx, *username, *password)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "Logged in as %s\n", sess.Username)
		printRate(e, a.Rates.Today(), snap)
		return nil
	})
}

func runLogout(ctx context.Context, e *env, args []string) error {
	if err := parse(newFlagSet(e, "logout"), args); err != nil {
		return err
	}
	return withApp(ctx, e, func(a *app.App) error {
		if _, _, err := a.Restore(ctx); err != nil {
			return err
		}
		if err := a.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(e.out, "Logged out")
		return nil
	})
}

func runWhoami(ctx context.Context, e *env, args []string) error {
	if err := parse(newFlagSet(e, "whoami"), args); err != nil {
		return err
	}
	return withSession(ctx, e, func(a *app.App, _ exchangerate.Snapshot) error {
		fmt.Fprintln(e.out, a.Session.Current().Username)
		return nil
	})
}

func runRate(ctx context.Context, e *env, args []string) error {
	if len(args) > 0 && args[0] == "set" {
		if len(args) != 2 {
			fmt.Fprintln(e.errOut, "usage: gastos rate set <value>")
			return errUsage
		}
		return withSession(ctx, e, func(a *app.App, _ exchangerate.Snapshot) error {
			snap, err := a.SubmitRate(ctx, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Exchange rate for %s set to %s Bs/$\n", snap.LastUpdated, snap.Rate)
			return nil
		})
	}
	if err := parse(newFlagSet(e, "rate"), args); err != nil {
		return err
	}
	return withSession(ctx, e, func(a *app.App, snap exchangerate.Snapshot) error {
		printRate(e, a.Rates.Today(), snap)
		return nil
	})
}

func printRate(e *env, today string, snap exchangerate.Snapshot) {
	if snap.HasRate() {
		fmt.Fprintf(e.out, "Exchange rate for %s: %s Bs/$\n", today, snap.Rate)
		return
	}
	fmt.Fprintf(e.out, "No exchange rate for %s yet. Set it with: gastos rate set <value>\n", today)
}

func runExpense(ctx context.Context, e *env, args []string) error {
	sub, rest, err := subcommand(e, "expense", args, "create", "list", "pay", "resume")
	if err != nil {
		return err
	}
	switch sub {
	case "create":
		return expenseCreate(ctx, e, rest)
	case "list":
		return expenseList(ctx, e, rest)
	case "pay":
		return expensePay(ctx, e, rest)
	default:
		return expenseResume(ctx, e, rest)
	}
}

func expenseCreate(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "expense create")
	desc := fs.String("desc", "", "description")
	amount := fs.String("amount", "", "amount, dot or comma decimals")
	currency := fs.String("currency", string(core.CurrencyBs), "Bs or $")
	typ := fs.String("type", string(core.DailyPurchases), "gastosFijos|comprasDiarias|gastosPersonales|gastosExtraordinarios")
	subType := fs.String("subtype", "", "optional subtype")
	method := fs.String("method", string(core.BsAccount), "cuentaBs|bsEfectivo|dolaresEfectivo")
	date := fs.String("date", "", "YYYY-MM-DD, defaults to today")
	if err := parse(fs, args); err != nil {
		return err
	}
	value, err := core.ParseAmount(*amount)
	if err != nil {
		return err
	}

	return withSession(ctx, e, func(a *app.App, snap exchangerate.Snapshot) error {
		day, err := dayOrToday(a, *date)
		if err != nil {
			return err
		}
		expense := core.Expense{
			Description:   *desc,
			Currency:      core.Currency(*currency),
			Amount:        value,
			Type:          core.ExpenseType(*typ),
			SubType:       *subType,
			PaymentMethod: core.PaymentMethod(*method),
			Date:          day,
		}
		id, err := a.Records.CreateExpense(ctx, expense)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "Expense recorded%s\n", idSuffix(id))
		if bs, usd, ok := snap.Convert(value, expense.Currency); ok {
			fmt.Fprintf(e.out, "  %s Bs = %s $ at %s Bs/$\n", bs.StringFixed(2), usd.StringFixed(2), snap.Rate)
		}
		return nil
	})
}

func expenseList(ctx context.Context, e *env, args []string) error {
	if err := parse(newFlagSet(e, "expense list"), args); err != nil {
		return err
	}
	return withSession(ctx, e, func(a *app.App, _ exchangerate.Snapshot) error {
		expenses, err := a.Records.ListExpenses(ctx)
		if err != nil {
			return err
		}
		printExpenses(e.out, expenses)
		return nil
	})
}

func expensePay(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "expense pay")
	invoice := fs.String("invoice", "", "invoice id")
	method := fs.String("method", string(core.InvoiceCash), "Efectivo|Transferencia")
	date := fs.String("date", "", "YYYY-MM-DD, defaults to today")
	if err := parse(fs, args); err != nil {
		return err
	}
	return withSession(ctx, e, func(a *app.App, _ exchangerate.Snapshot) error {
		day, err := dayOrToday(a, *date)
		if err != nil {
			return err
		}
		id, err := a.Records.PayInvoice(ctx, core.InvoicePayment{
			InvoiceID:     *invoice,
			PaymentMethod: core.PaymentMethod(*method),
			Date:          day,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "Invoice %s paid%s\n", *invoice, idSuffix(id))
		return nil
	})
}

func expenseResume(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "expense resume")
	from := fs.String("from", "", "first day, YYYY-MM-DD (defaults to the first of this month)")
	to := fs.String("to", "", "last day, YYYY-MM-DD (defaults to today)")
	if err := parse(fs, args); err != nil {
		return err
	}
	return withSession(ctx, e, func(a *app.App, _ exchangerate.Snapshot) error {
		end, err := dayOrToday(a, *to)
		if err != nil {
			return err
		}
		start := core.NewDate(end.Year(), int(end.Month()), 1)
		if *from != "" {
			if start, err = core.ParseDate(*from); err != nil {
				return err
			}
		}
		resume, err := a.Records.ExpensesResume(ctx, start, end)
		if err != nil {
			return err
		}
		printResume(e.out, resume)
		return nil
	})
}

func runInvoice(ctx context.Context, e *env, args []string) error {
	sub, rest, err := subcommand(e, "invoice", args, "create", "list")
	if err != nil {
		return err
	}
	if sub == "list" {
		fs := newFlagSet(e, "invoice list")
		all := fs.Bool("all", false, "include paid invoices")
		if err := parse(fs, rest); err != nil {
			return err
		}
		return withSession(ctx, e, func(a *app.App, _ exchangerate.Snapshot) error {
			invoices, err := a.Records.ListInvoices(ctx)
			if err != nil {
				return err
			}
			if !*all {
				invoices = core.Pending(invoices)
			}
			printInvoices(e.out, invoices)
			return nil
		})
	}

	fs := newFlagSet(e, "invoice create")
	supplier := fs.String("supplier", "", "supplier name")
	desc := fs.String("desc", "", "optional description")
	amount := fs.String("amount", "", "amount, dot or comma decimals")
	currency := fs.String("currency", string(core.CurrencyUSD), "Bs or $")
	due := fs.String("due", "", "due date, YYYY-MM-DD")
	if err := parse(fs, rest); err != nil {
		return err
	}
	value, err := core.ParseAmount(*amount)
	if err != nil {
		return err
	}
	dueDate, err := core.ParseDate(*due)
	if err != nil {
		return err
	}
	return withSession(ctx, e, func(a *app.App, _ exchangerate.Snapshot) error {
		id, err := a.Records.CreateInvoice(ctx, core.Invoice{
			Supplier:    *supplier,
			Description: *desc,
			Currency:    core.Currency(*currency),
			Amount:      value,
			Type:        core.SupplierType,
			DueDate:     dueDate,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "Invoice recorded%s\n", idSuffix(id))
		return nil
	})
}

func runIncome(ctx context.Context, e *env, args []string) error {
	_, rest, err := subcommand(e, "income", args, "create")
	if err != nil {
		return err
	}
	fs := newFlagSet(e, "income create")
	date := fs.String("date", "", "YYYY-MM-DD, defaults to today")
	notes := fs.String("notes", "", "free text")
	fields := []struct {
		name, help string
		value      *string
	}{
		{name: "cash-bs", help: "cash in Bs"},
		{name: "cash-usd", help: "cash in $"},
		{name: "sitef", help: "Sitef card terminal"},
		{name: "external-pos", help: "external card terminal"},
		{name: "pagomovil", help: "Pago Móvil"},
		{name: "biopago", help: "Biopago"},
		{name: "expenses-bs", help: "expenses paid from the till in Bs"},
		{name: "expenses-usd", help: "expenses paid from the till in $"},
		{name: "system-total", help: "total reported by the sales system"},
	}
	for i := range fields {
		fields[i].value = fs.String(fields[i].name, "0", fields[i].help)
	}
	if err := parse(fs, rest); err != nil {
		return err
	}
	parsed := make(map[string]decimal.Decimal, len(fields))
	for _, f := range fields {
		d, err := core.ParseNonNegativeAmount(*f.value)
		if err != nil {
			return fmt.Errorf("-%s: %w", f.name, err)
		}
		parsed[f.name] = d
	}

	return withSession(ctx, e, func(a *app.App, _ exchangerate.Snapshot) error {
		day, err := dayOrToday(a, *date)
		if err != nil {
			return err
		}
		id, err := a.Records.CreateIncome(ctx, core.Income{
			Date:        day,
			CashBs:      parsed["cash-bs"],
			CashUSD:     parsed["cash-usd"],
			Sitef:       parsed["sitef"],
			ExternalPOS: parsed["external-pos"],
			PagoMovil:   parsed["pagomovil"],
			Biopago:     parsed["biopago"],
			ExpensesBs:  parsed["expenses-bs"],
			ExpensesUSD: parsed["expenses-usd"],
			SystemTotal: parsed["system-total"],
			Notes:       *notes,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "Income recorded%s\n", idSuffix(id))
		return nil
	})
}

func runOverview(ctx context.Context, e *env, args []string) error {
	if err := parse(newFlagSet(e, "overview"), args); err != nil {
		return err
	}
	return withSession(ctx, e, func(a *app.App, snap exchangerate.Snapshot) error {
		ov, err := a.Records.Overview(ctx)
		if err != nil {
			return err
		}
		printRate(e, a.Rates.Today(), snap)
		fmt.Fprintln(e.out)
		printExpenses(e.out, ov.Expenses)
		fmt.Fprintln(e.out)
		printInvoices(e.out, ov.PendingInvoices)
		return nil
	})
}

func runExport(ctx context.Context, e *env, args []string) error {
	if err := parse(newFlagSet(e, "export"), args); err != nil {
		return err
	}
	return withSession(ctx, e, func(a *app.App, _ exchangerate.Snapshot) error {
		n, err := a.Export(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "Exported %d expenses\n", n)
		return nil
	})
}

// dayOrToday parses s, or returns today's business day when s is empty.
func dayOrToday(a *app.App, s string) (core.Date, error) {
	if strings.TrimSpace(s) == "" {
		return core.ParseDate(a.Rates.Today())
	}
	return core.ParseDate(s)
}

func idSuffix(id string) string {
	if id == "" {
		return ""
	}
	return " (id " + id + ")"
}
