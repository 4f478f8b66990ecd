package log

import (
	"log/slog"
	"net/http"
	"time"
)

// Transport logs every outbound HTTP request made through it.
type Transport struct {
	logger *Logger
	next   http.RoundTripper
}

// NewTransport wraps next (http.DefaultTransport when nil).
func NewTransport(logger *Logger, next http.RoundTripper) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{logger: logger, next: next}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	elapsed := time.Since(start).Milliseconds()

	fields := NewFields().
		WithHTTPRequest(req.Method, req.URL.Path).
		WithRequestID(req.Header.Get("X-Request-ID"))

	if err != nil {
		fields.WithError(err).WithErrorType(ErrorTypeNetwork)
		t.logger.WarnContext(req.Context(), "API request failed", fields.ToSlice()...)
		return nil, err
	}

	level := slog.LevelDebug
	switch {
	case resp.StatusCode >= 500:
		level = slog.LevelError
	case resp.StatusCode >= 400:
		level = slog.LevelWarn
	}
	fields.WithHTTPResponse(resp.StatusCode, elapsed, resp.StatusCode < 400)
	t.logger.Log(req.Context(), level, "API request completed", fields.ToSlice()...)
	return resp, nil
}
