package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"gastos/internal/core"
	"gastos/internal/metrics"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, Options{})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	_, err := New("", Options{})
	assert.Error(t, err)

	_, err = New("localhost:3000", Options{})
	assert.Error(t, err)
}

func TestLogin_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("Authorization"))
		_, err := uuid.Parse(r.Header.Get("X-Request-ID"))
		assert.NoError(t, err)

		var req LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, LoginRequest{Username: "ana", Password: "secret"}, req)
		writeJSON(w, http.StatusOK, map[string]string{"token": "tok-123"})
	})

	token, err := c.Login(context.Background(), "ana", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
}

func TestLogin_ServerMessageVerbatim(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Contraseña incorrecta"})
	})

	_, err := c.Login(context.Background(), "ana", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Contraseña incorrecta", err.Error())
	assert.Equal(t, KindAuth, KindOf(err))
}

func TestLogin_EmptyToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{})
	})

	_, err := c.Login(context.Background(), "ana", "secret")
	assert.Equal(t, KindDecode, KindOf(err))
}

func TestNetworkFailure_GenericMessage(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, Options{Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.Login(context.Background(), "ana", "secret")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServerUnreachable)
	assert.Equal(t, ErrServerUnreachable.Error(), err.Error())

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Retryable())
}

func TestStatusError_Bodies(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
		kind   ErrorKind
	}{
		{"message field", http.StatusBadRequest, `{"message":"fecha inválida"}`, "fecha inválida", KindServer},
		{"error field", http.StatusConflict, `{"error":"ya existe"}`, "ya existe", KindServer},
		{"code envelope", http.StatusUnprocessableEntity, `{"code":422,"message":"monto requerido"}`, "monto requerido", KindServer},
		{"plain text", http.StatusInternalServerError, `boom`, "boom", KindServer},
		{"empty body", http.StatusBadGateway, ``, "CreateExpense: unexpected status 502", KindServer},
		{"forbidden", http.StatusForbidden, `{"message":"token expirado"}`, "token expirado", KindAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.CreateExpense(context.Background(), "tok", core.Expense{})
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}

func TestGetExchangeRate(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantFound bool
		wantRate  string
	}{
		{"rate number", http.StatusOK, `{"rate":36.5}`, true, "36.5"},
		{"rate string", http.StatusOK, `{"rate":"36.50"}`, true, "36.5"},
		{"exchangeRate number", http.StatusOK, `{"exchangeRate":40.1}`, true, "40.1"},
		{"nested exchangeRate", http.StatusOK, `{"exchangeRate":{"rate":41,"date":"2024-03-01"}}`, true, "41"},
		{"no content", http.StatusNoContent, ``, false, ""},
		{"not found", http.StatusNotFound, `{"message":"No hay tasa"}`, false, ""},
		{"empty body", http.StatusOK, ``, false, ""},
		{"null rate", http.StatusOK, `{"exchangeRate":null,"message":"No hay tasa de cambio para esta fecha."}`, false, ""},
		{"zero rate", http.StatusOK, `{"rate":0}`, false, ""},
		{"non numeric", http.StatusOK, `{"rate":"abc"}`, false, ""},
		{"not json", http.StatusOK, `<html></html>`, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/exchange-rate/get/2024-03-01", r.URL.Path)
				assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			got, found, err := c.GetExchangeRate(context.Background(), "tok", "2024-03-01")
			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, found)
			if tt.wantFound {
				assert.True(t, decimal.RequireFromString(tt.wantRate).Equal(got), "got %s", got)
			}
		})
	}
}

func TestGetExchangeRate_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "db down"})
	})

	_, found, err := c.GetExchangeRate(context.Background(), "tok", "2024-03-01")
	assert.False(t, found)
	assert.Equal(t, KindServer, KindOf(err))
}

func TestCreateExchangeRate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/exchange-rate/create", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"rate":36.5,"date":"2024-03-01"}`, string(raw))
		writeJSON(w, http.StatusCreated, map[string]any{"rate": 36.5})
	})

	err := c.CreateExchangeRate(context.Background(), "tok", core.DailyRate{
		Rate:        decimal.RequireFromString("36.5"),
		LastUpdated: "2024-03-01",
	})
	require.NoError(t, err)
}

func TestCreateExchangeRate_InvalidNoRequest(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	err := c.CreateExchangeRate(context.Background(), "tok", core.DailyRate{Rate: decimal.Zero, LastUpdated: "2024-03-01"})
	assert.ErrorIs(t, err, core.ErrInvalidRate)
	assert.Zero(t, calls.Load())
}

func TestCreateExpense_Payload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"description":"Harina",
			"currency":"Bs",
			"amount":120.5,
			"type":"comprasDiarias",
			"paymentMethod":"cuentaBs",
			"paid":true,
			"date":"2024-03-01"
		}`, string(raw))
		writeJSON(w, http.StatusCreated, map[string]any{"_id": "e1"})
	})

	id, err := c.CreateExpense(context.Background(), "tok", core.Expense{
		Description:   " Harina ",
		Currency:      core.CurrencyBs,
		Amount:        decimal.RequireFromString("120.50"),
		Type:          core.DailyPurchases,
		PaymentMethod: core.BsAccount,
		Paid:          true,
		Date:          core.NewDate(2024, 3, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, "e1", id)
}

func TestCreateIncome_EnvelopeRejection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/incomes/create", r.URL.Path)
		var req IncomeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2024-03-01", req.Date)
		assert.Equal(t, json.Number("10"), req.EfectivoBs)
		writeJSON(w, http.StatusOK, map[string]any{
			"expense": map[string]any{"status": 404, "message": "No existe tasa para la fecha"},
		})
	})

	_, err := c.CreateIncome(context.Background(), "tok", core.Income{
		Date:   core.NewDate(2024, 3, 1),
		CashBs: decimal.NewFromInt(10),
	})
	require.Error(t, err)
	assert.Equal(t, "No existe tasa para la fecha", err.Error())
	assert.Equal(t, KindServer, KindOf(err))
}

func TestCreateExpenseByInvoice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/expenses/create-by-invoice", r.URL.Path)
		var req PayInvoiceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, PayInvoiceRequest{InvoiceID: "inv-9", PaymentMethod: "Transferencia", Paid: true, Date: "2024-03-02"}, req)
		writeJSON(w, http.StatusOK, map[string]any{"expense": map[string]any{"_id": "e7", "status": 200}})
	})

	id, err := c.CreateExpenseByInvoice(context.Background(), "tok", core.InvoicePayment{
		InvoiceID:     "inv-9",
		PaymentMethod: core.BankTransfer,
		Date:          core.NewDate(2024, 3, 2),
	})
	require.NoError(t, err)
	assert.Equal(t, "e7", id)
}

func TestListExpenses(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/expenses/get", r.URL.Path)
		_, _ = io.WriteString(w, `[
			{"_id":"a1","description":"Luz","currency":"$","amountDollars":12.5,"amountBs":456.25,
			 "type":"gastosFijos","subType":"servicios","date":"2024-03-01T04:00:00.000Z"}
		]`)
	})

	got, err := c.ListExpenses(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].ID)
	assert.Equal(t, core.FixedExpenses, got[0].Type)
	assert.Equal(t, "2024-03-01", got[0].Date.String())
	assert.True(t, decimal.RequireFromString("456.25").Equal(got[0].AmountBs))
}

func TestListInvoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[
			{"id":"i1","supplier":"Polar","currency":"Bs","amount":100,"type":"Proveedor","dueDate":"2024-03-10","paid":false},
			{"_id":"i2","supplier":"Pepsi","currency":"$","amount":5,"type":"Proveedor","dueDate":"2024-03-11","paid":true}
		]`)
	})

	got, err := c.ListInvoices(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "i1", got[0].ID)
	assert.Equal(t, "i2", got[1].ID)
	assert.Len(t, core.Pending(got), 1)
}

func TestExpensesResume(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/expenses/expenses-resume", r.URL.Path)
		assert.Equal(t, "2024-03-01", r.URL.Query().Get("startDate"))
		assert.Equal(t, "2024-03-31", r.URL.Query().Get("endDate"))
		_, _ = io.WriteString(w, `{
			"expenses":[{"_id":"a1","description":"Luz","currency":"$","amountDollars":10,"amountBs":365}],
			"totals":{"totalDollars":10,"totalBs":365},
			"paymentMethodTotals":[{"paymentMethod":"cuentaBs","totalDollars":10,"totalBs":365}],
			"byType":[{"type":"gastosFijos","currency":"$","amount":10}]
		}`)
	})

	start, end := core.NewDate(2024, 3, 1), core.NewDate(2024, 3, 31)
	got, err := c.ExpensesResume(context.Background(), "tok", start, end)
	require.NoError(t, err)
	assert.Len(t, got.Expenses, 1)
	assert.True(t, decimal.NewFromInt(365).Equal(got.TotalBs))
	require.Len(t, got.ByPaymentMethod, 1)
	assert.Equal(t, "cuentaBs", got.ByPaymentMethod[0].PaymentMethod)
	require.Len(t, got.ByType, 1)
	assert.Equal(t, "gastosFijos", got.ByType[0].Type)
	assert.Equal(t, start, got.Start)
}

func TestLimiter_HonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"token": "t"})
	}))
	t.Cleanup(srv.Close)

	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	c, err := New(srv.URL, Options{Limiter: limiter})
	require.NoError(t, err)

	_, err = c.Login(context.Background(), "a", "b")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Login(ctx, "a", "b")
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, NewLimiter(0))
	l := NewLimiter(0.5)
	require.NotNil(t, l)
	assert.Equal(t, 1, l.Burst())
}

func TestMetrics_CountOutcomes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "no"})
	}))
	t.Cleanup(srv.Close)

	m := metrics.New(nil)
	c, err := New(srv.URL, Options{Metrics: m})
	require.NoError(t, err)

	_, _ = c.Login(context.Background(), "a", "b")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.APIRequests.WithLabelValues("Login", "auth")))
}

func TestError_Nil(t *testing.T) {
	var e *Error
	assert.Equal(t, "api error", e.Error())
	assert.False(t, errors.Is(e, ErrServerUnreachable))
}
