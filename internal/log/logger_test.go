package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Output: &buf}).WithComponent(ComponentRate)

	logger.Info("rate checked", FieldDay, "2024-03-01")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, ComponentRate, rec[FieldComponent])
	assert.Equal(t, "2024-03-01", rec[FieldDay])
	assert.Equal(t, ComponentRate, logger.Component())
}

func TestTransportLogsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Output: &buf})
	client := &http.Client{Transport: NewTransport(logger, nil)}

	resp, err := client.Get(srv.URL + "/expenses/get")
	require.NoError(t, err)
	resp.Body.Close()

	out := buf.String()
	assert.True(t, strings.Contains(out, "status_code=400"), out)
	assert.True(t, strings.Contains(out, "path=/expenses/get"), out)
	assert.True(t, strings.Contains(out, "level=WARN"), out)
}
