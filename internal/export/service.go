// Package export renders assessed bills into an XLSX audit workbook.
package export

import (
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/clearclaim/billaudit/internal/entity"
)

type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// AuditXLSX returns a workbook with one row per assessed bill.
func (s *Service) AuditXLSX(bills []*entity.AssessedBill) ([]byte, error) {
	f := excelize.NewFile()
	const sheet = "Assessments"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if defaultIndex, _ := f.GetSheetIndex("Sheet1"); defaultIndex != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	headers := []string{
		"Bill ID",
		"Provider",
		"Bill Date",
		"Currency",
		"Total",
		"Line Items",
		"Findings",
		"Duplicate Of",
		"Fraud Score",
		"Partial",
		"Low Confidence",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, b := range bills {
		total := ""
		if b.Bill.Total != nil {
			total = b.Bill.Total.String()
		}
		date := ""
		if b.Bill.BillDate != nil {
			date = b.Bill.BillDate.Format("2006-01-02")
		}
		dupOf := ""
		if b.Duplicate != nil {
			dupOf = b.Duplicate.BillID
		}
		values := []any{
			b.BillID,
			b.Bill.ProviderID,
			date,
			b.Bill.Currency,
			total,
			len(b.Bill.LineItems),
			len(b.Findings),
			dupOf,
			b.Fraud.Score,
			b.Partial,
			b.LowConfidence,
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("writing cell: %w", err)
			}
		}
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	s.logger.Info("export.audit.ok", "rows", len(bills))
	return buf.Bytes(), nil
}
