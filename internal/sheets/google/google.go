// Package google appends expense rows to a Google Sheet.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expensetracker/internal/core"
	"expensetracker/internal/sheets"
)

// Credentials selects how the client authenticates. A service account wins
// over an OAuth client+token pair; GOOGLE_APPLICATION_CREDENTIALS is the fallback.
type Credentials struct {
	ServiceAccountJSON string
	ServiceAccountFile string
	OAuthClientJSON    string
	OAuthClientFile    string
	OAuthTokenJSON     string
	OAuthTokenFile     string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ sheets.ExpenseMirror = (*Client)(nil)

func New(ctx context.Context, spreadsheetID, sheetName string, creds Credentials) (*Client, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	opts, err := clientOptions(ctx, creds)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, spreadsheetID, sheetName), nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test endpoint.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	if sheetName == "" {
		sheetName = "Expenses"
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

func clientOptions(ctx context.Context, creds Credentials) ([]goption.ClientOption, error) {
	saJSON := strings.TrimSpace(creds.ServiceAccountJSON)
	saFile := strings.TrimSpace(creds.ServiceAccountFile)
	hasOAuth := (creds.OAuthClientJSON != "" || creds.OAuthClientFile != "") &&
		(creds.OAuthTokenJSON != "" || creds.OAuthTokenFile != "")

	if saJSON == "" && saFile == "" && !hasOAuth {
		saFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case saJSON != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		return serviceAccountOptions([]byte(saJSON)), nil
	case saFile != "":
		slog.InfoContext(ctx, "Reading service account credentials", "path", saFile)
		b, err := os.ReadFile(saFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return serviceAccountOptions(b), nil
	case hasOAuth:
		httpClient, err := oauthHTTPClient(ctx, creds)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "Using OAuth user credentials")
		return []goption.ClientOption{goption.WithHTTPClient(httpClient)}, nil
	default:
		return nil, errors.New("missing Google credentials (set a service account or an OAuth client and token)")
	}
}

func serviceAccountOptions(credentialsJSON []byte) []goption.ClientOption {
	return []goption.ClientOption{
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}
}

func oauthHTTPClient(ctx context.Context, creds Credentials) (*http.Client, error) {
	clientJSON, err := readInlineOrFile(creds.OAuthClientJSON, creds.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client: %w", err)
	}
	cfg, err := googleoauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}

	tokenJSON, err := readInlineOrFile(creds.OAuthTokenJSON, creds.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("decode oauth token: %w", err)
	}

	base := &http.Client{Transport: pooledTransport(), Timeout: 60 * time.Second}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	return cfg.Client(ctx, &tok), nil
}

func readInlineOrFile(inline, path string) ([]byte, error) {
	if strings.TrimSpace(inline) != "" {
		return []byte(inline), nil
	}
	return os.ReadFile(path)
}

func pooledTransport() *http.Transport {
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}

// AppendExpense appends one row after the last non-empty row of the sheet.
func (c *Client) AppendExpense(ctx context.Context, e core.Expense, username string) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	vr := &gsheet.ValueRange{Values: [][]any{sheets.ExpenseRow(e, username)}}
	resp, err := c.svc.Spreadsheets.Values.
		Append(c.spreadsheetID, fmt.Sprintf("%s!A:G", c.sheetName), vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("append row: %w", err)
	}

	ref := ""
	if resp.Updates != nil {
		ref = resp.Updates.UpdatedRange
	}
	slog.InfoContext(ctx, "Expense mirrored to sheet",
		"expense_id", e.ID,
		"range", ref)
	return ref, nil
}
