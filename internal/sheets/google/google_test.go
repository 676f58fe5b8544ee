package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expensetracker/internal/core"
)

func testExpense() core.Expense {
	return core.Expense{
		ID:          "e1",
		UserID:      "u1",
		Category:    core.Medical,
		Description: "dentist",
		Amount:      core.Money{Cents: 8000},
		YearMonth:   "2024-09",
		CreatedAt:   time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC),
	}
}

func TestAppendExpense(t *testing.T) {
	var gotPath, gotQuery string
	var gotBody gsheet.ValueRange
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"updates":{"updatedRange":"Expenses!A5:G5"}}`)
	}))
	defer srv.Close()

	ctx := context.Background()
	svc, err := gsheet.NewService(ctx, goption.WithEndpoint(srv.URL), goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	c := NewWithService(svc, "sheet-id", "")

	ref, err := c.AppendExpense(ctx, testExpense(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "Expenses!A5:G5", ref)
	assert.True(t, strings.HasPrefix(gotPath, "/v4/spreadsheets/sheet-id/values/"), gotPath)
	assert.True(t, strings.HasSuffix(gotPath, ":append"), gotPath)
	assert.Contains(t, gotQuery, "valueInputOption=USER_ENTERED")
	require.Len(t, gotBody.Values, 1)
	assert.Equal(t, "alice", gotBody.Values[0][2])
	assert.Equal(t, "80.00", gotBody.Values[0][5])
}

func TestAppendExpenseValidates(t *testing.T) {
	c := &Client{spreadsheetID: "x", sheetName: "Expenses"}
	bad := testExpense()
	bad.Category = "Unknown"
	_, err := c.AppendExpense(context.Background(), bad, "alice")
	assert.ErrorIs(t, err, core.ErrInvalidCategory)

	_, err = c.AppendExpense(context.Background(), testExpense(), "alice")
	assert.Error(t, err, "nil service")
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), "", "Expenses", Credentials{})
	assert.Error(t, err)

	_, err = New(context.Background(), "sheet-id", "Expenses", Credentials{})
	assert.ErrorContains(t, err, "missing Google credentials")
}

func TestNewRejectsBadOAuthClient(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), "sheet-id", "Expenses", Credentials{
		OAuthClientJSON: "invalid-json",
		OAuthTokenJSON:  `{"access_token":"test"}`,
	})
	assert.ErrorContains(t, err, "oauth config")
}

func TestNewWithOAuthToken(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	client := `{"installed":{"client_id":"id","client_secret":"secret","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost"]}}`
	c, err := New(context.Background(), "sheet-id", "", Credentials{
		OAuthClientJSON: client,
		OAuthTokenJSON:  `{"access_token":"test","token_type":"Bearer"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "Expenses", c.sheetName)
}
