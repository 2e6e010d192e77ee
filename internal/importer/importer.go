// Package importer reads the public mobile food facility permit export
// (CSV or XLSX) into permits.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mohammed-shakir/food-facility-search/internal/core/model"
)

// Stats summarises one read.
type Stats struct {
	Rows    int
	Skipped int
}

// column names in the export, matched case-insensitively
var columns = map[string][]string{
	"locationid": {"locationid"},
	"applicant":  {"applicant"},
	"status":     {"status"},
	"address":    {"address", "locationdescription"},
	"latitude":   {"latitude"},
	"longitude":  {"longitude"},
	"zipcodes":   {"zip codes", "zipcodes", "zip_codes"},
}

var ErrMissingColumn = errors.New("missing required column")

// ReadFile picks the reader from the file extension.
func ReadFile(path string) ([]model.Permit, Stats, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path, "")
	case ".csv", "":
		f, err := os.Open(path)
		if err != nil {
			return nil, Stats{}, fmt.Errorf("open %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		return ReadCSV(f)
	default:
		return nil, Stats{}, fmt.Errorf("unsupported file type %q (csv|xlsx)", filepath.Ext(path))
	}
}

func ReadCSV(r io.Reader) ([]model.Permit, Stats, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, Stats{}, fmt.Errorf("read csv: %w", err)
	}
	return fromRows(rows)
}

// ReadXLSX reads sheet, or the first sheet when sheet is empty.
func ReadXLSX(path, sheet string) ([]model.Permit, Stats, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("open xlsx %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return fromRows(rows)
}

func fromRows(rows [][]string) ([]model.Permit, Stats, error) {
	if len(rows) == 0 {
		return nil, Stats{}, fmt.Errorf("%w: empty file", ErrMissingColumn)
	}
	idx, err := headerIndex(rows[0])
	if err != nil {
		return nil, Stats{}, err
	}

	var st Stats
	out := make([]model.Permit, 0, len(rows)-1)
	for _, row := range rows[1:] {
		st.Rows++
		p, ok := toPermit(row, idx)
		if !ok {
			st.Skipped++
			continue
		}
		out = append(out, p)
	}
	return out, st, nil
}

func headerIndex(header []string) (map[string]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	idx := make(map[string]int, len(columns))
	for field, names := range columns {
		for _, n := range names {
			if i, ok := pos[n]; ok {
				idx[field] = i
				break
			}
		}
	}
	for _, required := range []string{"locationid", "applicant", "status"} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}
	return idx, nil
}

func toPermit(row []string, idx map[string]int) (model.Permit, bool) {
	get := func(field string) string {
		i, ok := idx[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	id, err := strconv.ParseInt(get("locationid"), 10, 64)
	if err != nil || id <= 0 {
		return model.Permit{}, false
	}
	return model.Permit{
		LocationID: id,
		Applicant:  get("applicant"),
		Status:     strings.ToUpper(get("status")),
		Address:    get("address"),
		Latitude:   parseCoord(get("latitude")),
		Longitude:  parseCoord(get("longitude")),
		Zipcodes:   get("zipcodes"),
	}, true
}

// unparsable coordinates are stored as 0, the export's "unknown"
func parseCoord(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
