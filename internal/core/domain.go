package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/shopspring/decimal"
)

const (
	CurrencyBs  Currency = "Bs"
	CurrencyUSD Currency = "$"

	FixedExpenses         ExpenseType = "gastosFijos"
	DailyPurchases        ExpenseType = "comprasDiarias"
	PersonalExpenses      ExpenseType = "gastosPersonales"
	ExtraordinaryExpenses ExpenseType = "gastosExtraordinarios"

	BsAccount     PaymentMethod = "cuentaBs"
	BsCash        PaymentMethod = "bsEfectivo"
	USDCash       PaymentMethod = "dolaresEfectivo"
	InvoiceCash   PaymentMethod = "Efectivo"
	BankTransfer  PaymentMethod = "Transferencia"
	SupplierType                = "Proveedor"
	descriptionMax              = 200
)

type (
	Currency      string
	ExpenseType   string
	PaymentMethod string

	Date struct {
		time.Time
	}

	// Session is the authenticated identity. Both fields are empty when logged out.
	Session struct {
		Username string
		Token    string
	}

	// DailyRate is the exchange rate of the day (Bs per USD).
	DailyRate struct {
		Rate        decimal.Decimal
		LastUpdated string // business day, YYYY-MM-DD
	}

	Expense struct {
		ID            string
		Description   string        `validate:"max=200"`
		Currency      Currency      `validate:"oneof=Bs $"`
		Amount        decimal.Decimal
		AmountBs      decimal.Decimal // computed by the backend
		AmountUSD     decimal.Decimal // computed by the backend
		Type          ExpenseType   `validate:"oneof=gastosFijos comprasDiarias gastosPersonales gastosExtraordinarios"`
		SubType       string
		PaymentMethod PaymentMethod `validate:"oneof=cuentaBs bsEfectivo dolaresEfectivo"`
		Paid          bool
		Date          Date
	}

	// Invoice is a supplier bill, pending until paid.
	Invoice struct {
		ID          string
		Supplier    string   `validate:"max=200"`
		Description string
		Currency    Currency `validate:"oneof=Bs $"`
		Amount      decimal.Decimal
		AmountBs    decimal.Decimal
		AmountUSD   decimal.Decimal
		Type        string
		DueDate     Date
		Paid        bool
	}

	// InvoicePayment settles an invoice and produces an expense record.
	InvoicePayment struct {
		InvoiceID     string
		PaymentMethod PaymentMethod `validate:"oneof=Efectivo Transferencia"`
		Date          Date
	}

	// Income is a daily closing: per-channel collections plus expenses paid from the till.
	Income struct {
		Date        Date
		CashBs      decimal.Decimal
		CashUSD     decimal.Decimal
		Sitef       decimal.Decimal
		ExternalPOS decimal.Decimal
		PagoMovil   decimal.Decimal
		Biopago     decimal.Decimal
		ExpensesBs  decimal.Decimal
		ExpensesUSD decimal.Decimal
		SystemTotal decimal.Decimal
		Notes       string
	}
)

var (
	ErrInvalidRate         = errors.New("rate must be a positive number")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidDate         = errors.New("invalid date")
	ErrInvalidCurrency     = errors.New("invalid currency")
	ErrInvalidExpenseType  = errors.New("invalid expense type")
	ErrInvalidPayment      = errors.New("invalid payment method")
	ErrEmptyDescription    = errors.New("empty description")
	ErrDescriptionTooLong  = fmt.Errorf("description too long (max %d characters)", descriptionMax)
	ErrEmptySupplier       = errors.New("empty supplier")
	ErrEmptyInvoiceID      = errors.New("empty invoice id")
	ErrInvalidDateRange    = errors.New("start date must not be after end date")
	ErrMissingCredentials  = errors.New("username and password are required")
)

var validate = validator.New()

// IsEmpty reports whether the session lacks either identity or credential.
func (s Session) IsEmpty() bool {
	return strings.TrimSpace(s.Username) == "" || strings.TrimSpace(s.Token) == ""
}

func (r DailyRate) Validate() error {
	if !r.Rate.IsPositive() {
		return ErrInvalidRate
	}
	if _, err := time.Parse(DayLayout, r.LastUpdated); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, r.LastUpdated)
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD calendar day.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DayLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// DateOf returns the business day containing t as a Date.
func DateOf(t time.Time) Date {
	d, _ := ParseDate(BusinessDay(t))
	return d
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DayLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return structError(validate.Struct(e), map[string]error{
		"Description":   ErrDescriptionTooLong,
		"Currency":      ErrInvalidCurrency,
		"Type":          ErrInvalidExpenseType,
		"PaymentMethod": ErrInvalidPayment,
	})
}

func (i Invoice) Validate() error {
	if strings.TrimSpace(i.Supplier) == "" {
		return ErrEmptySupplier
	}
	if !i.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := i.DueDate.Validate(); err != nil {
		return err
	}
	return structError(validate.Struct(i), map[string]error{
		"Supplier": ErrDescriptionTooLong,
		"Currency": ErrInvalidCurrency,
	})
}

func (p InvoicePayment) Validate() error {
	if strings.TrimSpace(p.InvoiceID) == "" {
		return ErrEmptyInvoiceID
	}
	if err := p.Date.Validate(); err != nil {
		return err
	}
	return structError(validate.Struct(p), map[string]error{
		"PaymentMethod": ErrInvalidPayment,
	})
}

func (in Income) Validate() error {
	if err := in.Date.Validate(); err != nil {
		return err
	}
	for _, v := range in.Amounts() {
		if v.IsNegative() {
			return ErrInvalidAmount
		}
	}
	return nil
}

// Amounts returns every monetary field of the closing.
func (in Income) Amounts() []decimal.Decimal {
	return []decimal.Decimal{
		in.CashBs, in.CashUSD, in.Sitef, in.ExternalPOS, in.PagoMovil,
		in.Biopago, in.ExpensesBs, in.ExpensesUSD, in.SystemTotal,
	}
}

// structError maps the first failing field of a validator error to a sentinel.
func structError(err error, byField map[string]error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if sentinel, ok := byField[verrs[0].Field()]; ok {
			return sentinel
		}
		return fmt.Errorf("invalid %s", strings.ToLower(verrs[0].Field()))
	}
	return err
}
