// Package productimport loads a product catalog from a CSV export into one
// user's products.
package productimport

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

type Row struct {
	Line        int
	SKU         string
	Name        string
	Description string
	Category    string
	UnitPrice   *decimal.Decimal
	Unit        string
}

// ParseCSV reads a header row followed by product rows. Only "name" is
// required; unknown columns are ignored.
func ParseCSV(in io.Reader) ([]Row, error) {
	r := csv.NewReader(bufio.NewReader(in))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, errors.New("csv has no data rows")
	}

	header := records[0]
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["name"]; !ok {
		return nil, errors.New("missing required column: name")
	}

	seenSKUs := map[string]int{}
	var out []Row

	for i := 1; i < len(records); i++ {
		rec := records[i]
		line := i + 1
		get := func(name string) string {
			idx, ok := col[name]
			if !ok || idx >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[idx])
		}

		if isBlank(rec) {
			continue
		}

		row := Row{
			Line:        line,
			SKU:         get("sku"),
			Name:        get("name"),
			Description: get("description"),
			Category:    get("category"),
			Unit:        get("unit"),
		}
		if row.Name == "" {
			return nil, fmt.Errorf("row %d: name is required", line)
		}
		if row.SKU != "" {
			key := strings.ToUpper(row.SKU)
			if prev, dup := seenSKUs[key]; dup {
				return nil, fmt.Errorf("row %d: sku %q already used on row %d", line, row.SKU, prev)
			}
			seenSKUs[key] = line
		}
		if raw := strings.TrimPrefix(get("unit_price"), "$"); raw != "" {
			price, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
			if err != nil || price.IsNegative() {
				return nil, fmt.Errorf("row %d: invalid unit_price %q", line, raw)
			}
			row.UnitPrice = &price
		}

		out = append(out, row)
	}

	return out, nil
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
