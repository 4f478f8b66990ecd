package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"gastos/internal/core"
	applog "gastos/internal/log"
	ports "gastos/internal/sheets"
)

// batchSize caps rows per append call.
const batchSize = 500

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	logger        *applog.Logger
}

var _ ports.ExpenseExporter = (*Client)(nil)

// Options selects the target sheet.
type Options struct {
	SpreadsheetID string
	SheetName     string
	Logger        *applog.Logger
}

// New creates a client with explicit Google API client options.
func New(ctx context.Context, opts Options, clientOpts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheet := strings.TrimSpace(opts.SheetName)
	if sheet == "" {
		sheet = "Gastos"
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.Discard()
	}

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		sheet:         sheet,
		logger:        logger.WithComponent(applog.ComponentSheets),
	}, nil
}

// NewFromEnv creates a client authenticated with a service account.
// Credentials come from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE
// or GOOGLE_APPLICATION_CREDENTIALS, in that order.
func NewFromEnv(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := serviceAccountJSON()
	if err != nil {
		return nil, err
	}
	return New(ctx, opts,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

func serviceAccountJSON() ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}
	path := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// Export appends one row per expense below the existing data.
func (c *Client) Export(ctx context.Context, expenses []core.Expense) (int, error) {
	if c.svc == nil {
		return 0, errors.New("sheets service not initialized")
	}
	if len(expenses) == 0 {
		return 0, nil
	}

	rng := fmt.Sprintf("%s!A:%c", c.sheet, 'A'+len(ports.Header)-1)
	written := 0
	for start := 0; start < len(expenses); start += batchSize {
		end := min(start+batchSize, len(expenses))
		values := make([][]any, 0, end-start)
		for _, e := range expenses[start:end] {
			values = append(values, ports.Row(e))
		}

		resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		if err != nil {
			c.logger.ErrorContext(ctx, "Failed to append rows",
				applog.FieldOperation, applog.OpExport,
				applog.FieldSpreadsheet, c.spreadsheetID,
				"written", written,
				applog.FieldError, err)
			return written, fmt.Errorf("append to %s: %w", c.sheet, err)
		}
		if resp.Updates != nil && resp.Updates.UpdatedRows > 0 {
			written += int(resp.Updates.UpdatedRows)
		} else {
			written += len(values)
		}
	}

	c.logger.InfoContext(ctx, "Expenses exported",
		applog.FieldOperation, applog.OpExport,
		applog.FieldSpreadsheet, c.spreadsheetID,
		"sheet", c.sheet,
		"rows", written)
	return written, nil
}
