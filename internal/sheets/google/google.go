package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"bilancio/internal/core"
	ports "bilancio/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client appends budget snapshots and goal balances to a Google spreadsheet.
type Client struct {
	svc            *gsheet.Service
	spreadsheetID  string
	snapshotsSheet string
	goalsSheet     string
}

var (
	_ ports.SnapshotWriter = (*Client)(nil)
	_ ports.ProgressWriter = (*Client)(nil)
)

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID plus service account credentials
// (GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS).
// Optional sheet names: GOOGLE_SNAPSHOTS_SHEET_NAME (default "Snapshots"),
// GOOGLE_GOALS_SHEET_NAME (default "Goals").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	snapshotsSheet := strings.TrimSpace(os.Getenv("GOOGLE_SNAPSHOTS_SHEET_NAME"))
	if snapshotsSheet == "" {
		snapshotsSheet = "Snapshots"
	}
	goalsSheet := strings.TrimSpace(os.Getenv("GOOGLE_GOALS_SHEET_NAME"))
	if goalsSheet == "" {
		goalsSheet = "Goals"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:            svc,
		spreadsheetID:  spreadsheetID,
		snapshotsSheet: snapshotsSheet,
		goalsSheet:     goalsSheet,
	}, nil
}

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

// AppendSnapshot writes one row per evaluation:
// date, period index, safe budget, FLE, amortization, savings, override, budget.
func (c *Client) AppendSnapshot(ctx context.Context, state core.BudgetState) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	row := []any{
		state.AsOf.ISO(),
		state.PeriodIndex,
		euros(state.SafeBudgetCents),
		euros(state.FLEDeductionCents),
		euros(state.AmortizationDeduction),
		euros(state.SavingsDeduction),
		state.ManualOverrideActive,
		euros(state.BudgetCents),
	}

	rng := fmt.Sprintf("%s!A:H", c.snapshotsSheet)
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append snapshot to sheet %s: %w", c.snapshotsSheet, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

// AppendGoalProgress writes one row per goal:
// date, name, saved, target, reached.
func (c *Client) AppendGoalProgress(ctx context.Context, asOf core.Date, goals []ports.GoalRow) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if len(goals) == 0 {
		return nil
	}

	values := make([][]any, 0, len(goals))
	for _, g := range goals {
		values = append(values, []any{
			asOf.ISO(),
			g.Name,
			euros(g.Progress.SavedCents),
			euros(g.Progress.TargetCents),
			g.Progress.IsReached,
		})
	}

	rng := fmt.Sprintf("%s!A:E", c.goalsSheet)
	vr := &gsheet.ValueRange{Values: values}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append goal progress to sheet %s: %w", c.goalsSheet, err)
	}
	return nil
}

func euros(cents int64) float64 {
	return float64(cents) / 100.0
}
