package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"nba-stats-scraper/models"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Writer exports stat tables to Google Sheets
type Writer struct {
	service       *sheets.Service
	spreadsheetID string
}

// NewWriter creates a new Google Sheets writer. Credentials come from
// credentialsPath, or from GOOGLE_SHEETS_CREDENTIALS when the path is empty.
func NewWriter(ctx context.Context, spreadsheetID string, credentialsPath string) (*Writer, error) {
	var credsJSON []byte
	var err error

	if credentialsPath != "" {
		credsJSON, err = os.ReadFile(credentialsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
	} else {
		credsEnv := strings.TrimSpace(os.Getenv("GOOGLE_SHEETS_CREDENTIALS"))
		if credsEnv == "" {
			return nil, fmt.Errorf("credentials not found: GOOGLE_SHEETS_CREDENTIALS environment variable is empty or not set")
		}
		log.Printf("Reading credentials from GOOGLE_SHEETS_CREDENTIALS environment variable (%d bytes)\n", len(credsEnv))
		credsJSON = []byte(credsEnv)
	}

	var creds map[string]interface{}
	if err := json.Unmarshal(credsJSON, &creds); err != nil {
		return nil, fmt.Errorf("invalid credentials JSON (check if JSON is properly formatted): %w", err)
	}
	if creds["type"] != "service_account" {
		return nil, fmt.Errorf("credentials must be a service account JSON file (type: service_account), got type: %v", creds["type"])
	}

	service, err := sheets.NewService(ctx, option.WithCredentialsJSON(credsJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Writer{
		service:       service,
		spreadsheetID: spreadsheetID,
	}, nil
}

// CreateSheetAndWriteTable adds a sheet at the front of the spreadsheet and
// writes the table into it. A non-empty info line is written above the header.
// Returns the sheet name and sheet ID (gid) that was created.
func (w *Writer) CreateSheetAndWriteTable(sheetName string, table *models.Table, info string) (string, int64, error) {
	sheetName = sanitizeSheetName(sheetName)
	if len(sheetName) > 100 {
		sheetName = sheetName[:100]
	}

	batchUpdateRequest := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: sheetName, Index: 0},
				},
			},
		},
	}

	resp, err := w.service.Spreadsheets.BatchUpdate(w.spreadsheetID, batchUpdateRequest).Do()
	if err != nil {
		return "", 0, fmt.Errorf("failed to create sheet: %w", err)
	}

	var sheetID int64
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil {
		sheetID = resp.Replies[0].AddSheet.Properties.SheetId
	}
	log.Printf("Created sheet '%s' with ID %d\n", sheetName, sheetID)

	var values [][]interface{}
	if info != "" {
		values = append(values, []interface{}{info})
	}
	values = append(values, tableValues(table)...)

	_, err = w.service.Spreadsheets.Values.Update(w.spreadsheetID, fmt.Sprintf("%s!A1", sheetName), &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Do()
	if err != nil {
		return "", 0, fmt.Errorf("failed to write to sheet: %w", err)
	}

	log.Printf("Successfully wrote %d rows to sheet '%s'\n", len(table.Records), sheetName)
	return sheetName, sheetID, nil
}

// tableValues lays the table out as sheet rows: header first, nulls as blanks
func tableValues(table *models.Table) [][]interface{} {
	values := make([][]interface{}, 0, len(table.Records)+1)

	header := make([]interface{}, 0, len(models.IdentityColumns)+len(table.Categories))
	for _, h := range table.Header() {
		header = append(header, h)
	}
	values = append(values, header)

	for _, rec := range table.Records {
		row := []interface{}{rec.Key.Team, rec.Key.Season, rec.Key.Conference, rec.Key.Position}
		for _, c := range table.Categories {
			if v := rec.Values[c]; v != nil {
				row = append(row, *v)
			} else {
				row = append(row, "")
			}
		}
		values = append(values, row)
	}
	return values
}

// SheetURL returns a link that opens sheetID inside the spreadsheet at spreadsheetURL
func SheetURL(spreadsheetURL string, sheetID int64) string {
	spreadsheetID := ExtractSpreadsheetID(spreadsheetURL)
	if spreadsheetID == "" {
		return spreadsheetURL
	}
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit#gid=%d", spreadsheetID, sheetID)
}

// sanitizeSheetName removes invalid characters from sheet name
func sanitizeSheetName(name string) string {
	// Google Sheets sheet names cannot contain: / \ ? * [ ]
	invalidChars := []string{"/", "\\", "?", "*", "[", "]"}
	result := name
	for _, char := range invalidChars {
		result = strings.ReplaceAll(result, char, "_")
	}
	result = strings.TrimSpace(result)
	if result == "" {
		result = "Sheet1"
	}
	return result
}

// ExtractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL
func ExtractSpreadsheetID(url string) string {
	// https://docs.google.com/spreadsheets/d/SPREADSHEET_ID/edit?usp=sharing
	parts := strings.Split(url, "/d/")
	if len(parts) < 2 {
		return ""
	}

	idPart := parts[1]
	if idx := strings.Index(idPart, "/"); idx != -1 {
		idPart = idPart[:idx]
	}
	if idx := strings.Index(idPart, "?"); idx != -1 {
		idPart = idPart[:idx]
	}

	return strings.TrimSpace(idPart)
}
