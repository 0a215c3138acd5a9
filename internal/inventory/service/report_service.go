package service

import (
	"context"
	"fmt"
	"time"

	"github.com/haldiram/distribution/internal/inventory/repository"
	"github.com/xuri/excelize/v2"
)

var movementExportHeaders = []string{
	"Date", "Product", "Batch", "Kind", "Quantity", "Reference", "Actor", "Notes",
}

// ReportService stock movement reporting.
type ReportService struct {
	movementRepo *repository.MovementRepository
}

func NewReportService(repos *repository.Repositories) *ReportService {
	return &ReportService{movementRepo: repos.Movement}
}

// ExportMovements renders the filtered movement log as an xlsx workbook.
func (s *ReportService) ExportMovements(ctx context.Context, filters map[string]string) (*excelize.File, string, error) {
	// Export is unpaginated; cap at a generous page to bound memory.
	movements, _, err := s.movementRepo.FindAll(ctx, 1, 10000, filters)
	if err != nil {
		return nil, "", fmt.Errorf("list movements: %w", err)
	}

	f := excelize.NewFile()
	sheet := "Movements"
	f.SetSheetName("Sheet1", sheet)

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, h := range movementExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	var totalIn, totalOut int
	for rowIdx, m := range movements {
		row := rowIdx + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), m.CreatedAt.Format("2006-01-02 15:04"))
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), m.ProductID)
		if m.BatchID != nil {
			f.SetCellValue(sheet, fmt.Sprintf("C%d", row), *m.BatchID)
		}
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), m.Kind)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), m.Quantity)
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), m.Reference)
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), m.ActorID)
		f.SetCellValue(sheet, fmt.Sprintf("H%d", row), m.Notes)

		if m.Quantity > 0 {
			totalIn += m.Quantity
		} else {
			totalOut += -m.Quantity
		}
	}

	summaryRow := len(movements) + 2
	summaryStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow), "Total")
	f.SetCellValue(sheet, fmt.Sprintf("D%d", summaryRow), fmt.Sprintf("in: %d / out: %d", totalIn, totalOut))
	f.SetCellValue(sheet, fmt.Sprintf("E%d", summaryRow), totalIn-totalOut)
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", summaryRow), fmt.Sprintf("H%d", summaryRow), summaryStyle)

	colWidths := []float64{18, 34, 34, 10, 10, 24, 34, 30}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	filename := fmt.Sprintf("stock-movements-%s.xlsx", time.Now().Format("20060102"))
	return f, filename, nil
}
