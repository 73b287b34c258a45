// Package google mirrors the ledger into a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/export"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client writes one row per transaction. Column A holds the transaction
// id, which is the upsert and delete key.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ export.Target = (*Client)(nil)

// NewFromEnv creates a Sheets export target from environment variables.
// Required: GOOGLE_SPREADSHEET_ID plus service account credentials in
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS. Optional: GOOGLE_SHEET_NAME (default
// "Transactions").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	sheetName := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "Transactions"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// newSheetsService initializes a Sheets service using service account
// credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return service, nil
}

// row renders a transaction as a sheet row: id, date, amount, category,
// category type, description.
func row(tx core.ClassifiedTransaction) []any {
	return []any{
		strconv.FormatInt(tx.ID, 10),
		tx.Date.String(),
		float64(tx.Amount.Cents) / 100.0,
		tx.CategoryName,
		string(tx.CategoryType),
		tx.Description,
	}
}

// UpsertTransaction updates the row keyed by the transaction id, or
// appends a new one.
func (c *Client) UpsertTransaction(ctx context.Context, tx core.ClassifiedTransaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rowNum, err := c.findRow(ctx, tx.ID)
	if err != nil {
		return err
	}

	vr := &gsheet.ValueRange{Values: [][]any{row(tx)}}

	if rowNum == 0 {
		appendRange := fmt.Sprintf("%s!A:F", c.sheetName)
		_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, appendRange, vr).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("append transaction %d to sheet %s: %w", tx.ID, c.sheetName, err)
		}
		return nil
	}

	updateRange := fmt.Sprintf("%s!A%d:F%d", c.sheetName, rowNum, rowNum)
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, updateRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update transaction %d in sheet %s: %w", tx.ID, c.sheetName, err)
	}
	return nil
}

// DeleteTransaction clears the row keyed by the transaction id. A row
// that is already gone is not an error.
func (c *Client) DeleteTransaction(ctx context.Context, id int64) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rowNum, err := c.findRow(ctx, id)
	if err != nil {
		return err
	}
	if rowNum == 0 {
		return nil
	}

	clearRange := fmt.Sprintf("%s!A%d:F%d", c.sheetName, rowNum, rowNum)
	_, err = c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear transaction %d in sheet %s: %w", id, c.sheetName, err)
	}
	return nil
}

// findRow scans column A for the transaction id, returning the 1-based
// row number or 0 when absent.
func (c *Client) findRow(ctx context.Context, id int64) (int, error) {
	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read id column of sheet %s: %w", c.sheetName, err)
	}

	want := strconv.FormatInt(id, 10)
	for i, r := range resp.Values {
		if len(r) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(r[0])) == want {
			return i + 1, nil
		}
	}
	return 0, nil
}
