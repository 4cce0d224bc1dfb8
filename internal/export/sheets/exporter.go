// Package sheets pushes monthly spend reports into a Google spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"ledger/internal/core"
	"ledger/internal/report"
)

// Header is the first row of every exported report sheet.
var Header = []any{"Bucket", "Total spend", "Monthly limit", "Utilization", "Over budget"}

type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
}

// NewFromEnv creates an Exporter from GOOGLE_SPREADSHEET_ID and service account
// credentials. It returns (nil, nil) when no spreadsheet is configured.
func NewFromEnv(ctx context.Context) (*Exporter, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, nil
	}
	creds, err := credentialsFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	return New(ctx, spreadsheetID, creds)
}

// New builds an Exporter for spreadsheetID authenticated with a service
// account JSON key.
func New(ctx context.Context, spreadsheetID string, credentialsJSON []byte) (*Exporter, error) {
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if len(credentialsJSON) == 0 {
		return nil, errors.New("missing service account credentials")
	}

	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}

	// WithHTTPClient overrides every other auth option, so the token source
	// has to be part of the client itself.
	pooled := newHTTPClientWithPooling()
	client := &http.Client{
		Transport: &oauth2.Transport{Source: creds.TokenSource, Base: pooled.Transport},
		Timeout:   pooled.Timeout,
	}

	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets exporter ready", "spreadsheet_id", spreadsheetID)
	return &Exporter{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// credentialsFromEnv reads GOOGLE_SERVICE_ACCOUNT_JSON, then
// GOOGLE_SERVICE_ACCOUNT_FILE, then GOOGLE_APPLICATION_CREDENTIALS.
func credentialsFromEnv(ctx context.Context) ([]byte, error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	if inline != "" {
		slog.InfoContext(ctx, "Using inline JSON credentials")
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
	slog.InfoContext(ctx, "Read credentials file", "path", path, "size", len(data))
	return data, nil
}

func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// SheetName is the tab a given month is exported to.
func SheetName(year, month int) string {
	return fmt.Sprintf("Report %04d-%02d", year, month)
}

// ExportMonthly replaces the contents of the month's tab with rows, creating
// the tab when the spreadsheet does not have it yet.
func (e *Exporter) ExportMonthly(ctx context.Context, year, month int, rows []core.ReportRow) error {
	if e == nil || e.svc == nil {
		return errors.New("sheets service not initialized")
	}
	name := SheetName(year, month)

	if err := e.ensureSheet(ctx, name); err != nil {
		return err
	}

	rng := quoteSheet(name) + "!A:E"
	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", name, err)
	}

	values := Values(rows)
	vr := &gsheet.ValueRange{Values: values}
	_, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, quoteSheet(name)+"!A1", vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	slog.InfoContext(ctx, "Exported monthly report",
		"sheet", name,
		"rows", len(rows),
		"total_spend", report.Total(rows).StringFixed(2))
	return nil
}

func (e *Exporter) ensureSheet(ctx context.Context, name string) error {
	ss, err := e.svc.Spreadsheets.Get(e.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == name {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: name},
			},
		}},
	}
	if _, err := e.svc.Spreadsheets.BatchUpdate(e.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", name, err)
	}
	slog.InfoContext(ctx, "Created report sheet", "sheet", name)
	return nil
}

// Values renders rows as sheet cells, header first. Missing limits and
// utilizations are left blank.
func Values(rows []core.ReportRow) [][]any {
	out := make([][]any, 0, len(rows)+1)
	out = append(out, Header)
	for _, r := range rows {
		limit, util := "", ""
		if r.Limit != nil {
			limit = r.Limit.StringFixed(2)
		}
		if r.Utilization != nil {
			util = r.Utilization.String()
		}
		out = append(out, []any{r.Bucket, r.TotalSpend.StringFixed(2), limit, util, r.OverBudget})
	}
	return out
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
