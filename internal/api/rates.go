package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
)

// GetExchangeRate calls GET /exchange-rate/get/{day}. found is false when the
// backend has no usable rate for that day; that is not an error.
func (c *Client) GetExchangeRate(ctx context.Context, token, day string) (decimal.Decimal, bool, error) {
	const op = "GetExchangeRate"
	var body ExchangeRateResponse
	status, err := c.call(ctx, op, http.MethodGet, "/exchange-rate/get/"+url.PathEscape(day), token, nil, nil, &body)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && (apiErr.Kind == KindNotFound || apiErr.Kind == KindDecode) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, err
	}
	if status == http.StatusNoContent {
		return decimal.Zero, false, nil
	}
	if r, ok := rateValue(body.Rate); ok {
		return r, true, nil
	}
	if r, ok := rateValue(body.ExchangeRate); ok {
		return r, true, nil
	}
	return decimal.Zero, false, nil
}

// CreateExchangeRate calls POST /exchange-rate/create.
func (c *Client) CreateExchangeRate(ctx context.Context, token string, r core.DailyRate) error {
	const op = "CreateExchangeRate"
	if err := r.Validate(); err != nil {
		return err
	}
	req := ExchangeRateRequest{Rate: json.Number(r.Rate.String()), Date: r.LastUpdated}
	_, err := c.call(ctx, op, http.MethodPost, "/exchange-rate/create", token, nil, req, nil)
	return err
}
