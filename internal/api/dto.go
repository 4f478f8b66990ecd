package api

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
)

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token.
type LoginResponse struct {
	Token   string `json:"token"`
	Message string `json:"message,omitempty"`
}

// ExchangeRateRequest is the body of POST /exchange-rate/create.
type ExchangeRateRequest struct {
	Rate json.Number `json:"rate"`
	Date string      `json:"date"`
}

// ExchangeRateResponse tolerates both {"rate": n} and {"exchangeRate": n|{...}}.
type ExchangeRateResponse struct {
	Rate         json.RawMessage `json:"rate"`
	ExchangeRate json.RawMessage `json:"exchangeRate"`
	Message      string          `json:"message"`
}

// ExpenseRequest is the body of POST /expenses/create.
type ExpenseRequest struct {
	Description   string      `json:"description"`
	Currency      string      `json:"currency"`
	Amount        json.Number `json:"amount"`
	Type          string      `json:"type"`
	SubType       string      `json:"subType,omitempty"`
	PaymentMethod string      `json:"paymentMethod"`
	Paid          bool        `json:"paid"`
	Date          string      `json:"date"`
}

// PayInvoiceRequest is the body of POST /expenses/create-by-invoice.
type PayInvoiceRequest struct {
	InvoiceID     string `json:"invoiceId"`
	PaymentMethod string `json:"paymentMethod"`
	Paid          bool   `json:"paid"`
	Date          string `json:"date"`
}

// ExpenseDTO is an expense as listed by the backend.
type ExpenseDTO struct {
	ID            string          `json:"_id"`
	AltID         string          `json:"id"`
	Description   string          `json:"description"`
	Currency      string          `json:"currency"`
	Amount        decimal.Decimal `json:"amount"`
	AmountBs      decimal.Decimal `json:"amountBs"`
	AmountDollars decimal.Decimal `json:"amountDollars"`
	Type          string          `json:"type"`
	SubType       string          `json:"subType"`
	PaymentMethod string          `json:"paymentMethod"`
	Paid          bool            `json:"paid"`
	Date          string          `json:"date"`
}

// InvoiceRequest is the body of POST /invoices/create.
type InvoiceRequest struct {
	Supplier    string      `json:"supplier"`
	Description string      `json:"description,omitempty"`
	Currency    string      `json:"currency"`
	Amount      json.Number `json:"amount"`
	Type        string      `json:"type"`
	DueDate     string      `json:"dueDate"`
}

// InvoiceDTO is an invoice as listed by the backend.
type InvoiceDTO struct {
	ID            string          `json:"_id"`
	AltID         string          `json:"id"`
	Supplier      string          `json:"supplier"`
	Description   string          `json:"description"`
	Currency      string          `json:"currency"`
	Amount        decimal.Decimal `json:"amount"`
	AmountBs      decimal.Decimal `json:"amountBs"`
	AmountDollars decimal.Decimal `json:"amountDollars"`
	Type          string          `json:"type"`
	DueDate       string          `json:"dueDate"`
	Paid          bool            `json:"paid"`
}

// IncomeRequest is the body of POST /incomes/create.
type IncomeRequest struct {
	Date            string      `json:"date"`
	EfectivoBs      json.Number `json:"efectivoBs"`
	EfectivoDolares json.Number `json:"efectivoDolares"`
	Sitef           json.Number `json:"sitef"`
	PuntoExterno    json.Number `json:"puntoExterno"`
	PagoMovil       json.Number `json:"pagomovil"`
	Biopago         json.Number `json:"biopago"`
	GastosBs        json.Number `json:"gastosBs"`
	GastosDolares   json.Number `json:"gastosDolares"`
	TotalSistema    json.Number `json:"totalSistema"`
	Notas           string      `json:"notas"`
}

// ResumeResponse is the body of GET /expenses/expenses-resume.
type ResumeResponse struct {
	Expenses []ExpenseDTO `json:"expenses"`
	Totals   struct {
		TotalDollars decimal.Decimal `json:"totalDollars"`
		TotalBs      decimal.Decimal `json:"totalBs"`
	} `json:"totals"`
	PaymentMethodTotals []struct {
		PaymentMethod string          `json:"paymentMethod"`
		TotalDollars  decimal.Decimal `json:"totalDollars"`
		TotalBs       decimal.Decimal `json:"totalBs"`
	} `json:"paymentMethodTotals"`
	ByType []struct {
		Type     string          `json:"type"`
		Currency string          `json:"currency"`
		Amount   decimal.Decimal `json:"amount"`
	} `json:"byType"`
}

// CreateResponse covers the create endpoints. Some of them answer 2xx with an
// envelope whose status is 404 to reject the record.
type CreateResponse struct {
	ID      string    `json:"_id"`
	AltID   string    `json:"id"`
	Message string    `json:"message"`
	Expense *envelope `json:"expense"`
	Invoice *envelope `json:"invoice"`
	Income  *envelope `json:"income"`
}

type envelope struct {
	ID      string `json:"_id"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// rejection returns the embedded rejection, if any.
func (r CreateResponse) rejection() (string, bool) {
	for _, env := range []*envelope{r.Expense, r.Invoice, r.Income} {
		if env != nil && env.Status >= 400 {
			return env.Message, true
		}
	}
	return "", false
}

func (r CreateResponse) recordID() string {
	if id := firstNonEmpty(r.ID, r.AltID); id != "" {
		return id
	}
	for _, env := range []*envelope{r.Expense, r.Invoice, r.Income} {
		if env != nil && env.ID != "" {
			return env.ID
		}
	}
	return ""
}

// errorBody covers the error payloads the backend is known to send.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    int    `json:"code"`
}

func (b errorBody) text() string {
	return strings.TrimSpace(firstNonEmpty(b.Message, b.Error))
}

func newExpenseRequest(e core.Expense) ExpenseRequest {
	return ExpenseRequest{
		Description:   strings.TrimSpace(e.Description),
		Currency:      string(e.Currency),
		Amount:        json.Number(e.Amount.String()),
		Type:          string(e.Type),
		SubType:       e.SubType,
		PaymentMethod: string(e.PaymentMethod),
		Paid:          e.Paid,
		Date:          e.Date.String(),
	}
}

func newInvoiceRequest(i core.Invoice) InvoiceRequest {
	typ := i.Type
	if typ == "" {
		typ = core.SupplierType
	}
	return InvoiceRequest{
		Supplier:    strings.TrimSpace(i.Supplier),
		Description: i.Description,
		Currency:    string(i.Currency),
		Amount:      json.Number(i.Amount.String()),
		Type:        typ,
		DueDate:     i.DueDate.String(),
	}
}

func newIncomeRequest(in core.Income) IncomeRequest {
	num := func(d decimal.Decimal) json.Number { return json.Number(d.String()) }
	return IncomeRequest{
		Date:            in.Date.String(),
		EfectivoBs:      num(in.CashBs),
		EfectivoDolares: num(in.CashUSD),
		Sitef:           num(in.Sitef),
		PuntoExterno:    num(in.ExternalPOS),
		PagoMovil:       num(in.PagoMovil),
		Biopago:         num(in.Biopago),
		GastosBs:        num(in.ExpensesBs),
		GastosDolares:   num(in.ExpensesUSD),
		TotalSistema:    num(in.SystemTotal),
		Notas:           in.Notes,
	}
}

func (d ExpenseDTO) toCore() core.Expense {
	return core.Expense{
		ID:            firstNonEmpty(d.ID, d.AltID),
		Description:   d.Description,
		Currency:      core.Currency(d.Currency),
		Amount:        d.Amount,
		AmountBs:      d.AmountBs,
		AmountUSD:     d.AmountDollars,
		Type:          core.ExpenseType(d.Type),
		SubType:       d.SubType,
		PaymentMethod: core.PaymentMethod(d.PaymentMethod),
		Paid:          d.Paid,
		Date:          wireDate(d.Date),
	}
}

func (d InvoiceDTO) toCore() core.Invoice {
	return core.Invoice{
		ID:          firstNonEmpty(d.ID, d.AltID),
		Supplier:    d.Supplier,
		Description: d.Description,
		Currency:    core.Currency(d.Currency),
		Amount:      d.Amount,
		AmountBs:    d.AmountBs,
		AmountUSD:   d.AmountDollars,
		Type:        d.Type,
		DueDate:     wireDate(d.DueDate),
		Paid:        d.Paid,
	}
}

func (r ResumeResponse) toCore(start, end core.Date) core.ExpenseResume {
	out := core.ExpenseResume{
		Start:    start,
		End:      end,
		Expenses: make([]core.Expense, 0, len(r.Expenses)),
		TotalUSD: r.Totals.TotalDollars,
		TotalBs:  r.Totals.TotalBs,
	}
	for _, e := range r.Expenses {
		out.Expenses = append(out.Expenses, e.toCore())
	}
	for _, p := range r.PaymentMethodTotals {
		out.ByPaymentMethod = append(out.ByPaymentMethod, core.PaymentMethodTotal{
			PaymentMethod: p.PaymentMethod,
			TotalUSD:      p.TotalDollars,
			TotalBs:       p.TotalBs,
		})
	}
	for _, t := range r.ByType {
		out.ByType = append(out.ByType, core.TypeTotal{Type: t.Type, Currency: t.Currency, Amount: t.Amount})
	}
	return out
}

// rateValue extracts a positive rate from a number, a numeric string or an
// object with a "rate" field.
func rateValue(raw json.RawMessage) (decimal.Decimal, bool) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return decimal.Zero, false
	}
	if strings.HasPrefix(text, "{") {
		var nested struct {
			Rate json.RawMessage `json:"rate"`
		}
		if err := json.Unmarshal(raw, &nested); err != nil {
			return decimal.Zero, false
		}
		return rateValue(nested.Rate)
	}
	var d decimal.Decimal
	if err := json.Unmarshal(raw, &d); err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

// wireDate accepts YYYY-MM-DD or a full ISO timestamp and keeps the calendar day.
func wireDate(s string) core.Date {
	s = strings.TrimSpace(s)
	if len(s) > len(core.DayLayout) {
		s = s[:len(core.DayLayout)]
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}
	}
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
