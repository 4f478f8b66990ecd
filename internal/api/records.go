package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"gastos/internal/core"
)

// CreateExpense calls POST /expenses/create and returns the new record id, if sent.
func (c *Client) CreateExpense(ctx context.Context, token string, e core.Expense) (string, error) {
	return c.create(ctx, "CreateExpense", "/expenses/create", token, newExpenseRequest(e))
}

// CreateExpenseByInvoice calls POST /expenses/create-by-invoice, paying the invoice.
func (c *Client) CreateExpenseByInvoice(ctx context.Context, token string, p core.InvoicePayment) (string, error) {
	req := PayInvoiceRequest{
		InvoiceID:     p.InvoiceID,
		PaymentMethod: string(p.PaymentMethod),
		Paid:          true,
		Date:          p.Date.String(),
	}
	return c.create(ctx, "CreateExpenseByInvoice", "/expenses/create-by-invoice", token, req)
}

// ListExpenses calls GET /expenses/get.
func (c *Client) ListExpenses(ctx context.Context, token string) ([]core.Expense, error) {
	var body []ExpenseDTO
	if _, err := c.call(ctx, "ListExpenses", http.MethodGet, "/expenses/get", token, nil, nil, &body); err != nil {
		return nil, err
	}
	out := make([]core.Expense, 0, len(body))
	for _, dto := range body {
		out = append(out, dto.toCore())
	}
	return out, nil
}

// ExpensesResume calls GET /expenses/expenses-resume for [start, end].
func (c *Client) ExpensesResume(ctx context.Context, token string, start, end core.Date) (core.ExpenseResume, error) {
	query := url.Values{}
	query.Set("startDate", start.String())
	query.Set("endDate", end.String())
	var body ResumeResponse
	if _, err := c.call(ctx, "ExpensesResume", http.MethodGet, "/expenses/expenses-resume", token, query, nil, &body); err != nil {
		return core.ExpenseResume{}, err
	}
	return body.toCore(start, end), nil
}

// CreateInvoice calls POST /invoices/create.
func (c *Client) CreateInvoice(ctx context.Context, token string, i core.Invoice) (string, error) {
	return c.create(ctx, "CreateInvoice", "/invoices/create", token, newInvoiceRequest(i))
}

// ListInvoices calls GET /invoices/get.
func (c *Client) ListInvoices(ctx context.Context, token string) ([]core.Invoice, error) {
	var body []InvoiceDTO
	if _, err := c.call(ctx, "ListInvoices", http.MethodGet, "/invoices/get", token, nil, nil, &body); err != nil {
		return nil, err
	}
	out := make([]core.Invoice, 0, len(body))
	for _, dto := range body {
		out = append(out, dto.toCore())
	}
	return out, nil
}

// CreateIncome calls POST /incomes/create.
func (c *Client) CreateIncome(ctx context.Context, token string, in core.Income) (string, error) {
	return c.create(ctx, "CreateIncome", "/incomes/create", token, newIncomeRequest(in))
}

func (c *Client) create(ctx context.Context, op, path, token string, payload any) (string, error) {
	var body CreateResponse
	status, err := c.call(ctx, op, http.MethodPost, path, token, nil, payload, &body)
	if err != nil {
		return "", err
	}
	if message, rejected := body.rejection(); rejected {
		apiErr := &Error{Op: op, Kind: KindServer, Status: status, Message: message}
		if message == "" {
			apiErr.Err = errors.New("record rejected")
		}
		return "", apiErr
	}
	return body.recordID(), nil
}
