// Package sheets appends classification outcomes to a Google Sheet so a human
// can review what the pipeline filed where.
package sheets

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"docpipe/internal/logger"
)

// DefaultSheetName is the tab rows are appended to.
const DefaultSheetName = "Review"

var headers = []interface{}{
	"Document", "File", "Drive File", "Category", "Confidence", "Reasoning", "Status", "Classified",
}

var spreadsheetURLPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// ReviewRow is one classification outcome.
type ReviewRow struct {
	DocumentID   string
	FileName     string
	DriveFileID  string
	CategoryName string
	Confidence   float64
	Reasoning    string
	Status       string
	ClassifiedAt time.Time
}

// Ledger appends review rows to one tab of a spreadsheet.
type Ledger struct {
	sheetsService *sheets.Service
	spreadsheetID string
	sheetName     string
	log           zerolog.Logger
}

// NewLedger creates a ledger for the spreadsheet at sheetURL.
func NewLedger(ctx context.Context, sheetURL, sheetName string, opts ...option.ClientOption) (*Ledger, error) {
	const op = "NewLedger"

	log := logger.WithComponent("sheets")

	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to extract spreadsheet ID: %w", op, err)
	}
	log.Debug().Str("spreadsheet_id", spreadsheetID).Msg("Extracted spreadsheet ID")

	sheetsService, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	if sheetName == "" {
		sheetName = DefaultSheetName
	}

	return &Ledger{
		sheetsService: sheetsService,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		log:           log,
	}, nil
}

// extractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL
func extractSpreadsheetID(url string) (string, error) {
	matches := spreadsheetURLPattern.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL format")
	}
	return matches[1], nil
}

// Append writes row below the existing rows, creating the tab and its header
// row first if needed.
func (l *Ledger) Append(ctx context.Context, row ReviewRow) error {
	const op = "Append"

	if err := l.ensureSheetWithHeaders(ctx); err != nil {
		return fmt.Errorf("%s: failed to ensure sheet exists: %w", op, err)
	}

	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{rowToValues(row)},
	}

	_, err := l.sheetsService.Spreadsheets.Values.Append(
		l.spreadsheetID,
		l.sheetName+"!A:H",
		valueRange,
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to append values to sheet: %w", op, err)
	}

	l.log.Info().
		Str("sheet", l.sheetName).
		Str("document_id", row.DocumentID).
		Msg("Appended review row")
	return nil
}

func rowToValues(row ReviewRow) []interface{} {
	category := row.CategoryName
	if category == "" {
		category = "-"
	}
	return []interface{}{
		row.DocumentID,
		row.FileName,
		row.DriveFileID,
		category,
		row.Confidence,
		row.Reasoning,
		row.Status,
		row.ClassifiedAt.UTC().Format(time.RFC3339),
	}
}

// ensureSheetWithHeaders ensures the sheet exists and has proper headers
func (l *Ledger) ensureSheetWithHeaders(ctx context.Context) error {
	const op = "ensureSheetWithHeaders"

	spreadsheet, err := l.sheetsService.Spreadsheets.Get(l.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}

	var sheetExists bool
	var sheetID int64
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title == l.sheetName {
			sheetExists = true
			sheetID = sheet.Properties.SheetId
			break
		}
	}

	if !sheetExists {
		l.log.Info().Str("sheet", l.sheetName).Msg("Creating new sheet")

		batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{
				{AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: l.sheetName},
				}},
			},
		}

		resp, err := l.sheetsService.Spreadsheets.BatchUpdate(l.spreadsheetID, batchUpdateReq).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%s: failed to create sheet: %w", op, err)
		}
		sheetID = resp.Replies[0].AddSheet.Properties.SheetId
	}

	headerRange := fmt.Sprintf("%s!A1:H1", l.sheetName)
	resp, err := l.sheetsService.Spreadsheets.Values.Get(l.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get headers: %w", op, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	l.log.Info().Str("sheet", l.sheetName).Msg("Adding headers to sheet")

	_, err = l.sheetsService.Spreadsheets.Values.Update(
		l.spreadsheetID,
		headerRange,
		&sheets.ValueRange{Values: [][]interface{}{headers}},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to add headers: %w", op, err)
	}

	if err := l.formatHeaders(ctx, sheetID); err != nil {
		l.log.Warn().Err(err).Msg("Failed to format headers, continuing anyway")
	}
	return nil
}

// formatHeaders makes the header row bold
func (l *Ledger) formatHeaders(ctx context.Context, sheetID int64) error {
	const op = "formatHeaders"

	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   int64(len(headers)),
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{Bold: true},
						BackgroundColor: &sheets.Color{
							Red:   0.9,
							Green: 0.9,
							Blue:  0.9,
						},
					},
				},
				Fields: "userEnteredFormat(textFormat,backgroundColor)",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   int64(len(headers)),
				},
			},
		},
	}

	batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}
	if _, err := l.sheetsService.Spreadsheets.BatchUpdate(l.spreadsheetID, batchUpdateReq).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%s: failed to format headers: %w", op, err)
	}
	return nil
}
