package historical

import (
	"fmt"

	"github.com/aristath/beam/internal/domain"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet written by ExportXLSX
const SheetName = "Historique"

var exportHeader = []interface{}{
	"Date", "Valeur d'acquisition", "Valeur actuelle", "Valeur H52", "Valeur LT",
	"Gain/Perte", "Gain/Perte (%)", "Devise",
}

// ExportXLSX renders totals as a single-sheet workbook
func ExportXLSX(totals []domain.DailyTotal) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &exportHeader); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, t := range totals {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{
			domain.DateKey(t.Date), t.Acquisition, t.Current, t.H52, t.LT,
			t.GainAbs(), t.GainPct(), t.Currency,
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
