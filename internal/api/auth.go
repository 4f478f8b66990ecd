package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Login calls POST /login and returns the bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	const op = "Login"
	var body LoginResponse
	status, err := c.call(ctx, op, http.MethodPost, "/login", "", nil,
		LoginRequest{Username: username, Password: password}, &body)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Kind == KindNotFound {
			// Unknown users come back as 404 from some deployments.
			apiErr.Kind = KindAuth
		}
		return "", err
	}
	token := strings.TrimSpace(body.Token)
	if token == "" {
		return "", &Error{Op: op, Kind: KindDecode, Status: status, Err: errors.New("empty token")}
	}
	return token, nil
}
