package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	ports "sangha/internal/sheets"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	membersSheet  string
	paymentsSheet string
}

// Ensure interface conformance
var _ ports.RowSource = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Optional sheet names: GOOGLE_MEMBERS_SHEET_NAME (default "Members"),
// GOOGLE_PAYMENTS_SHEET_NAME (default "Payments").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	membersSheet := strings.TrimSpace(os.Getenv("GOOGLE_MEMBERS_SHEET_NAME"))
	if membersSheet == "" {
		membersSheet = "Members"
	}
	paymentsSheet := strings.TrimSpace(os.Getenv("GOOGLE_PAYMENTS_SHEET_NAME"))
	if paymentsSheet == "" {
		paymentsSheet = "Payments"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		membersSheet:  membersSheet,
		paymentsSheet: paymentsSheet,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
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
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created",
		"credentials_size", len(credentialsJSON))
	return service, nil
}

// MemberRows reads the members sheet and parses it by header position.
func (c *Client) MemberRows(ctx context.Context) ([]ports.MemberRow, error) {
	values, err := c.readSheet(ctx, c.membersSheet)
	if err != nil {
		return nil, err
	}
	rows, err := parseMemberRows(values)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", c.membersSheet, err)
	}
	slog.InfoContext(ctx, "Read member rows", "sheet", c.membersSheet, "rows", len(rows))
	return rows, nil
}

// PaymentRows reads the payments sheet and parses it by header position.
func (c *Client) PaymentRows(ctx context.Context) ([]ports.PaymentRow, error) {
	values, err := c.readSheet(ctx, c.paymentsSheet)
	if err != nil {
		return nil, err
	}
	rows, err := parsePaymentRows(values)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", c.paymentsSheet, err)
	}
	slog.InfoContext(ctx, "Read payment rows", "sheet", c.paymentsSheet, "rows", len(rows))
	return rows, nil
}

func (c *Client) readSheet(ctx context.Context, sheetName string) ([][]any, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:Z", sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}
