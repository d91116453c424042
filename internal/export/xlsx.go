// Package export renders receipts as an XLSX workbook.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const Sheet = "Receipts"

// ContentType is the MIME type of the workbook WriteReceipts produces.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var headers = []string{
	"Receipt Date",
	"Vendor",
	"Project",
	"Status",
	"Total",
	"AI Parsed",
	"File Name",
	"Uploaded",
}

type ReceiptRow struct {
	Date     *time.Time
	Vendor   string
	Project  string
	Status   string
	Total    *decimal.Decimal
	AIParsed bool
	FileName string
	Uploaded time.Time
}

// WriteReceipts writes one header row plus one row per receipt to w.
// Totals are numeric cells with two decimals; missing values are blank.
func WriteReceipts(w io.Writer, rows []ReceiptRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", Sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 2}) // 0.00
	if err != nil {
		return err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(Sheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(Sheet, "A1", last, bold); err != nil {
		return err
	}

	for i, r := range rows {
		row := i + 2
		write := func(col int, v any) error {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			return f.SetCellValue(Sheet, cell, v)
		}

		date := ""
		if r.Date != nil {
			date = r.Date.Format(time.DateOnly)
		}
		aiParsed := "no"
		if r.AIParsed {
			aiParsed = "yes"
		}

		values := []any{date, r.Vendor, r.Project, r.Status, nil, aiParsed, r.FileName, r.Uploaded.Format(time.DateOnly)}
		if r.Total != nil {
			values[4] = r.Total.Round(2).InexactFloat64()
		}
		for col, v := range values {
			if v == nil {
				continue
			}
			if err := write(col+1, v); err != nil {
				return err
			}
		}
		cell, _ := excelize.CoordinatesToCellName(5, row)
		if err := f.SetCellStyle(Sheet, cell, cell, money); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(Sheet, "A", "A", 14)
	_ = f.SetColWidth(Sheet, "B", "C", 28)
	_ = f.SetColWidth(Sheet, "D", "F", 12)
	_ = f.SetColWidth(Sheet, "G", "G", 36)
	_ = f.SetColWidth(Sheet, "H", "H", 14)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}
