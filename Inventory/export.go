package Inventory

import (
	"bytes"
	"fmt"

	"SpareLink/Models"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Movements"

var exportHeaders = []string{
	"Movement No", "Type", "Status", "Created At", "Source", "Destination",
	"Reference", "Spare ID", "Qty", "From Bucket", "To Bucket", "Movement Total",
}

// ExportHistory renders movements as an xlsx workbook, one row per item.
func ExportHistory(movements []Models.StockMovement) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(exportSheet, cell, header)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6E6FA"}, Pattern: 1},
	})
	if err == nil {
		f.SetRowStyle(exportSheet, 1, 1, headerStyle)
	}

	row := 2
	for _, m := range movements {
		for _, item := range m.Items {
			values := []interface{}{
				m.MovementNo,
				string(m.Type),
				string(m.Status),
				m.CreatedAt.Format("2006-01-02 15:04:05"),
				locationLabel(m.Source()),
				locationLabel(m.Destination()),
				fmt.Sprintf("%s#%d", m.ReferenceType, m.ReferenceID),
				item.SpareID,
				item.Qty,
				string(item.SourceCondition),
				string(item.Condition),
				m.TotalQty,
			}
			for col, value := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row)
				f.SetCellValue(exportSheet, cell, value)
			}
			row++
		}
	}

	f.SetColWidth(exportSheet, "A", "L", 18)
	if f.GetSheetName(0) != exportSheet {
		f.DeleteSheet("Sheet1")
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("error writing Excel file to buffer: %w", err)
	}
	return &buf, nil
}

func locationLabel(loc *Models.Location) string {
	if loc == nil {
		return "-"
	}
	return loc.String()
}
