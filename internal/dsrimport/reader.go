// Package dsrimport loads the external circuit provisioning feed (CSV or
// XLSX), bulk-upserts the order records, and appends change history for
// fields that differ from the stored rows.
package dsrimport

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/crestline-networks/circuit-cli/internal/model"
)

// headerAliases maps feed column spellings to canonical field names. The
// feed's export format has drifted over the years; all known spellings are
// accepted.
var headerAliases = map[string]string{
	"site name":     "site",
	"site":          "site",
	"store":         "site",
	"provider":      "provider",
	"provider name": "provider",
	"vendor":        "provider",
	"speed":         "speed",
	"bandwidth":     "speed",
	"purpose":       "purpose",
	"circuit type":  "purpose",
	"status":        "status",
	"start ip":      "start_ip",
	"ip":            "start_ip",
	"ip address":    "start_ip",
	"monthly cost":  "cost",
	"mrc":           "cost",
	"cost":          "cost",
}

// ReadFile parses a provisioning feed file into order records. The format
// is chosen by extension: .csv or .xlsx.
func ReadFile(path string) ([]model.OrderCircuit, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx":
		rows, err = readXLSX(path)
	default:
		return nil, eris.Errorf("dsrimport: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	return parseRows(rows)
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "dsrimport: open csv")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // allow variable fields
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "dsrimport: read csv row")
		}
		rows = append(rows, record)
	}
}

func readXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "dsrimport: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("dsrimport: xlsx file has no sheets")
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// parseRows maps the header row to fields and converts the remainder.
// Rows missing a site or provider are skipped; they cannot be keyed.
func parseRows(rows [][]string) ([]model.OrderCircuit, error) {
	if len(rows) == 0 {
		return nil, eris.New("dsrimport: empty feed")
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		if field, ok := headerAliases[strings.ToLower(strings.TrimSpace(h))]; ok {
			if _, dup := cols[field]; !dup {
				cols[field] = i
			}
		}
	}
	for _, required := range []string{"site", "provider"} {
		if _, ok := cols[required]; !ok {
			return nil, eris.Errorf("dsrimport: feed header missing %q column", required)
		}
	}

	cell := func(row []string, field string) string {
		i, ok := cols[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	now := time.Now().UTC()
	var out []model.OrderCircuit
	for _, row := range rows[1:] {
		c := model.OrderCircuit{
			SiteName:     cell(row, "site"),
			ProviderName: cell(row, "provider"),
			Speed:        cell(row, "speed"),
			Purpose:      normalizePurpose(cell(row, "purpose")),
			Status:       cell(row, "status"),
			StartIP:      cell(row, "start_ip"),
			UpdatedAt:    now,
		}
		if c.SiteName == "" || c.ProviderName == "" {
			continue
		}
		if raw := cell(row, "cost"); raw != "" {
			cost, err := parseCost(raw)
			if err != nil {
				return nil, eris.Wrapf(err, "dsrimport: bad cost for site %s", c.SiteName)
			}
			c.MonthlyCost = cost
		}
		out = append(out, c)
	}
	return out, nil
}

func normalizePurpose(s string) string {
	switch strings.ToLower(s) {
	case "primary":
		return model.PurposePrimary
	case "secondary", "backup":
		return model.PurposeSecondary
	}
	return s
}

// parseCost accepts "$1,234.56" style values.
func parseCost(s string) (float64, error) {
	s = strings.NewReplacer("$", "", ",", "").Replace(s)
	return strconv.ParseFloat(s, 64)
}
