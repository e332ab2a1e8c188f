// Package export renders procurement documents into Excel workbooks:
// the comparative quote statement an approver reviews and the order
// sheet sent alongside a PO.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/sitewise/procure/internal/domain/entity"
	"github.com/sitewise/procure/internal/rfq"
)

// Exporter writes Excel exports into a configured output directory.
type Exporter struct {
	outputDir string
	currency  string
	logger    *zap.Logger
}

// NewExporter creates a new Excel exporter
func NewExporter(outputDir, currency string, logger *zap.Logger) (*Exporter, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	return &Exporter{outputDir: outputDir, currency: currency, logger: logger}, nil
}

// QuoteComparison renders the vendor x item matrix of a PR: one row
// per item, one quote/make column pair per vendor, cheapest suggestion
// in the final column. Returns the written file path.
func (e *Exporter) QuoteComparison(pr *entity.ProcurementRequest) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Quote Comparison"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return "", fmt.Errorf("failed to name sheet: %w", err)
	}

	headers := []interface{}{"Item", "Category", "Unit", "Quantity"}
	for _, v := range pr.RFQ.SelectedVendors {
		name := v.Name
		if name == "" {
			name = v.ID
		}
		headers = append(headers, fmt.Sprintf("%s Quote (%s)", name, e.currency), fmt.Sprintf("%s Make", name))
	}
	headers = append(headers, "Suggested Vendor")
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return "", fmt.Errorf("failed to write header row: %w", err)
	}

	matrix := rfq.NewMatrix(pr)
	for i, item := range pr.Items {
		row := []interface{}{item.ItemRef, item.Category, item.Unit, item.Quantity}
		detail := pr.RFQ.Details[item.ID]
		for _, v := range pr.RFQ.SelectedVendors {
			q := detail.VendorQuotes[v.ID]
			if q.Quote != nil {
				row = append(row, *q.Quote)
			} else {
				row = append(row, "")
			}
			row = append(row, q.Make)
		}
		if vendor, _, ok := matrix.CheapestVendor(item.ID); ok {
			name := vendor.Name
			if name == "" {
				name = vendor.ID
			}
			row = append(row, name)
		} else {
			row = append(row, "")
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return "", fmt.Errorf("failed to write item row: %w", err)
		}
	}

	path := filepath.Join(e.outputDir, fmt.Sprintf("quote_comparison_%s.xlsx", pr.ID))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}
	e.logger.Info("Quote comparison exported", zap.String("pr", pr.ID), zap.String("path", path))
	return path, nil
}

// OrderSheet renders one PO as a printable order sheet.
func (e *Exporter) OrderSheet(po *entity.ProcurementOrder) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Purchase Order"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return "", fmt.Errorf("failed to name sheet: %w", err)
	}

	vendorName := po.Vendor.Name
	if vendorName == "" {
		vendorName = po.Vendor.ID
	}
	meta := [][]interface{}{
		{"PO", po.ID},
		{"Vendor", vendorName},
		{"Project", po.Project},
		{"Source", po.SourceKey()},
		{"Status", po.Status},
	}
	for i, pair := range meta {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return "", err
		}
		if err := f.SetSheetRow(sheet, cell, &pair); err != nil {
			return "", fmt.Errorf("failed to write metadata row: %w", err)
		}
	}

	headerRow := len(meta) + 2
	headers := []interface{}{"Item", "Make", "Unit", "Quantity", fmt.Sprintf("Rate (%s)", e.currency), "Tax %", fmt.Sprintf("Amount (%s)", e.currency)}
	cell, err := excelize.CoordinatesToCellName(1, headerRow)
	if err != nil {
		return "", err
	}
	if err := f.SetSheetRow(sheet, cell, &headers); err != nil {
		return "", fmt.Errorf("failed to write header row: %w", err)
	}

	for i, line := range po.Items {
		row := []interface{}{line.ItemRef, line.Make, line.Unit, line.Quantity, line.Quote, line.Tax, line.Total()}
		cell, err := excelize.CoordinatesToCellName(1, headerRow+1+i)
		if err != nil {
			return "", err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return "", fmt.Errorf("failed to write line row: %w", err)
		}
	}

	totalCell, err := excelize.CoordinatesToCellName(6, headerRow+1+len(po.Items))
	if err != nil {
		return "", err
	}
	totalRow := []interface{}{"Total", po.Total()}
	if err := f.SetSheetRow(sheet, totalCell, &totalRow); err != nil {
		return "", fmt.Errorf("failed to write total row: %w", err)
	}

	path := filepath.Join(e.outputDir, fmt.Sprintf("po_%s.xlsx", po.ID))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}
	e.logger.Info("PO order sheet exported", zap.String("po", po.ID), zap.String("path", path))
	return path, nil
}
