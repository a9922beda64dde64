package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"nba-stats-scraper/models"
)

const (
	// Comma separates fields in the plain variant
	Comma = ','
	// Semicolon separates fields in the spreadsheet-friendly variant
	Semicolon = ';'
	// ExcelSuffix is appended to the base name of the semicolon variant
	ExcelSuffix = "_excel"
)

// WriteCSV writes the table to path with the given field delimiter.
// Null cells are written as empty fields.
func WriteCSV(path string, table *models.Table, delim rune) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := Encode(f, table, delim); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// Encode writes the table as delimited text
func Encode(w io.Writer, table *models.Table, delim rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = delim

	if err := cw.Write(table.Header()); err != nil {
		return err
	}
	for _, rec := range table.Records {
		if err := cw.Write(Row(table.Categories, rec)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Row renders one record as serialized fields in header order
func Row(categories []string, rec models.MergedRecord) []string {
	fields := make([]string, 0, len(models.IdentityColumns)+len(categories))
	fields = append(fields, rec.Key.Team, rec.Key.Season, rec.Key.Conference, rec.Key.Position)
	for _, c := range categories {
		fields = append(fields, FormatValue(rec.Values[c]))
	}
	return fields
}

// FormatValue renders a nullable number in its shortest round-trip form
func FormatValue(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// WriteBoth writes <name>.csv and <name>_excel.csv into dir and returns
// the paths written
func WriteBoth(dir, name string, table *models.Table) ([]string, error) {
	paths := []string{
		filepath.Join(dir, name+".csv"),
		filepath.Join(dir, name+ExcelSuffix+".csv"),
	}
	delims := []rune{Comma, Semicolon}

	for i, path := range paths {
		if err := WriteCSV(path, table, delims[i]); err != nil {
			return nil, err
		}
		log.Printf("Saved %d rows to %s\n", len(table.Records), path)
	}
	return paths, nil
}

// ReadCSV loads a table previously written by WriteCSV. The delimiter is
// taken from the header line.
func ReadCSV(path string) (*models.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	table, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return table, nil
}

// Decode parses delimited text produced by Encode
func Decode(r io.Reader) (*models.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(strings.NewReader(string(data)))
	cr.Comma = detectDelimiter(string(data))

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("missing header: %w", err)
	}
	idCount := len(models.IdentityColumns)
	if len(header) < idCount {
		return nil, fmt.Errorf("header has %d columns, need at least %d", len(header), idCount)
	}
	for i, name := range models.IdentityColumns {
		if header[i] != name {
			return nil, fmt.Errorf("header column %d is %q, want %q", i, header[i], name)
		}
	}

	table := &models.Table{Categories: append([]string(nil), header[idCount:]...)}
	for line := 2; ; line++ {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		rec := models.MergedRecord{
			Key: models.CompositeKey{
				Team: fields[0],
				FilterCombination: models.FilterCombination{
					Season:     fields[1],
					Conference: fields[2],
					Position:   fields[3],
				},
			},
			Values: make(map[string]*float64, len(table.Categories)),
		}
		for i, c := range table.Categories {
			raw := strings.TrimSpace(fields[idCount+i])
			if raw == "" {
				rec.Values[c] = nil
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, c, err)
			}
			rec.Values[c] = &v
		}
		table.Records = append(table.Records, rec)
	}
	return table, nil
}

func detectDelimiter(data string) rune {
	first, _, _ := strings.Cut(data, "\n")
	if strings.Count(first, string(Semicolon)) > strings.Count(first, string(Comma)) {
		return Semicolon
	}
	return Comma
}
